// Package renderer draws planet terrain with OpenGL 4.1 and implements the
// terrain render backend on top of it.
package renderer

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/planetlod/internal/engine/shader"
	"github.com/Faultbox/planetlod/internal/logger"
)

// Config holds renderer configuration.
type Config struct {
	Width     int
	Height    int
	Wireframe bool
}

// Frame is the per-frame state shared by every terrain draw.
type Frame struct {
	View       mgl32.Mat4
	Projection mgl32.Mat4
	Eye        mgl32.Vec3
	SunDir     mgl32.Vec3
	Radius     float32
	Amplitude  float32
}

// Renderer owns the GL state and the terrain program.
type Renderer struct {
	config  Config
	log     *zap.Logger
	program *shader.Program
	store   *vertexStore

	drawCalls int
	indices   int
}

// New creates a renderer. The GL context must be current.
func New(cfg Config) (*Renderer, error) {
	r := &Renderer{
		config: cfg,
		log:    logger.Named("renderer"),
	}

	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}

	r.log.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
	)

	program, err := shader.Compile(terrainVertexShader, terrainFragmentShader)
	if err != nil {
		return nil, fmt.Errorf("terrain program: %w", err)
	}
	r.program = program

	r.Resize(cfg.Width, cfg.Height)
	return r, nil
}

// Close releases GL resources owned by the renderer. The vertex store is
// owned by the terrain manager and destroyed by it.
func (r *Renderer) Close() {
	if r.program != nil {
		r.program.Delete()
		r.program = nil
	}
	r.log.Info("renderer closed")
}

// Resize updates the viewport.
func (r *Renderer) Resize(width, height int) {
	r.config.Width = width
	r.config.Height = height
	gl.Viewport(0, 0, int32(width), int32(height))
}

// Aspect returns the viewport aspect ratio.
func (r *Renderer) Aspect() float64 {
	if r.config.Height == 0 {
		return 1
	}
	return float64(r.config.Width) / float64(r.config.Height)
}

// Wireframe reports whether polygons are drawn as lines.
func (r *Renderer) Wireframe() bool {
	return r.config.Wireframe
}

// SetWireframe switches between filled and line polygons from the next Begin.
func (r *Renderer) SetWireframe(on bool) {
	r.config.Wireframe = on
}

// applyState sets the fixed-function state terrain drawing relies on. It is
// reapplied every frame since a UI pass may share the context.
func (r *Renderer) applyState() {
	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.Enable(gl.CULL_FACE)
	gl.CullFace(gl.BACK)
	gl.FrontFace(gl.CCW)
	gl.ClearColor(0.02, 0.02, 0.05, 1.0)
	if r.config.Wireframe {
		gl.PolygonMode(gl.FRONT_AND_BACK, gl.LINE)
	} else {
		gl.PolygonMode(gl.FRONT_AND_BACK, gl.FILL)
	}
}

// Begin clears the frame and binds the terrain program.
func (r *Renderer) Begin(f Frame) {
	r.applyState()
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
	r.drawCalls, r.indices = 0, 0

	r.program.Use()
	r.program.SetMat4("uViewProj", f.Projection.Mul4(f.View))
	r.program.SetVec3("uEye", f.Eye)
	r.program.SetVec3("uSunDir", f.SunDir.Normalize())
	r.program.SetFloat("uRadius", f.Radius)
	r.program.SetFloat("uAmplitude", f.Amplitude)

	if r.store != nil {
		gl.BindVertexArray(r.store.vao)
	}
}

// End unbinds frame state.
func (r *Renderer) End() {
	gl.BindVertexArray(0)
	gl.UseProgram(0)
	gl.PolygonMode(gl.FRONT_AND_BACK, gl.FILL)
}

// DrawStats returns the draw calls and indices issued since Begin.
func (r *Renderer) DrawStats() (drawCalls, indices int) {
	return r.drawCalls, r.indices
}

// ReadPixels reads the back buffer as bottom-up RGBA rows.
func (r *Renderer) ReadPixels() (pixels []byte, width, height int) {
	width, height = r.config.Width, r.config.Height
	pixels = make([]byte, width*height*4)
	if len(pixels) == 0 {
		return pixels, width, height
	}
	gl.ReadBuffer(gl.BACK)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(width), int32(height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	return pixels, width, height
}
