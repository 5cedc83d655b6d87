// Package viewer runs the interactive planet viewer frame loop.
package viewer

import (
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/planetlod/internal/config"
	"github.com/Faultbox/planetlod/internal/engine/camera"
	"github.com/Faultbox/planetlod/internal/engine/debug"
	"github.com/Faultbox/planetlod/internal/engine/input"
	"github.com/Faultbox/planetlod/internal/engine/lighting"
	"github.com/Faultbox/planetlod/internal/engine/renderer"
	"github.com/Faultbox/planetlod/internal/engine/terrain"
	"github.com/Faultbox/planetlod/internal/engine/terrain/heightfield"
	"github.com/Faultbox/planetlod/internal/engine/window"
	"github.com/Faultbox/planetlod/internal/logger"
)

const (
	statsInterval = 2 * time.Second
	sunRate       = 10 // degrees per second while the sun is moving
)

// Viewer owns the window, the renderer and the terrain of one planet.
type Viewer struct {
	cfg      *config.Config
	log      *zap.Logger
	window   *window.Window
	renderer *renderer.Renderer
	input    *input.Input
	camera   *camera.PlanetCamera
	gen      *heightfield.Generator
	terrain  *terrain.Manager
	mode     terrain.Mode
	sun      lighting.Sun
	shots    *debug.Screenshots
	capture  bool
}

// New opens the window and builds the terrain described by cfg.
func New(cfg *config.Config) (*Viewer, error) {
	v := &Viewer{
		cfg:  cfg,
		log:  logger.Named("viewer"),
		mode: terrain.Mode(cfg.Terrain.Mode),
		sun:  lighting.DefaultSun(),
	}

	var err error
	v.window, err = window.New(window.Config{
		Title:      "Planet LOD",
		Width:      cfg.Graphics.Width,
		Height:     cfg.Graphics.Height,
		Fullscreen: cfg.Graphics.Fullscreen,
		VSync:      cfg.Graphics.VSync,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	width, height := v.window.DrawableSize()
	v.renderer, err = renderer.New(renderer.Config{
		Width:     width,
		Height:    height,
		Wireframe: cfg.Graphics.Wireframe,
	})
	if err != nil {
		v.window.Close()
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	v.input = input.New()
	v.gen = heightfield.New(cfg.HeightfieldParams())
	v.camera = cfg.PlanetCamera()
	v.shots = debug.NewScreenshots(cfg.Graphics.ScreenshotDir, "planet")
	if err := v.shots.SetFormat(cfg.Graphics.ScreenshotFormat); err != nil {
		v.Close()
		return nil, err
	}

	if err := v.buildTerrain(v.mode); err != nil {
		v.Close()
		return nil, err
	}
	return v, nil
}

// buildTerrain replaces the terrain manager with one running mode.
func (v *Viewer) buildTerrain(mode terrain.Mode) error {
	if v.terrain != nil {
		v.terrain.Close()
		v.terrain = nil
	}
	tc := v.cfg.TerrainSettings()
	tc.Mode = mode
	m, err := terrain.NewManager(tc, v.gen, v.renderer, terrain.WithLogger(logger.Named("terrain")))
	if err != nil {
		return fmt.Errorf("failed to create terrain: %w", err)
	}
	v.terrain = m
	v.mode = mode
	return nil
}

// Run loops until the window is closed or Escape is pressed.
func (v *Viewer) Run() error {
	var minFrame time.Duration
	if v.cfg.Graphics.FPSLimit > 0 {
		minFrame = time.Second / time.Duration(v.cfg.Graphics.FPSLimit)
	}

	lastTime := time.Now()
	statsTimer := lastTime
	frames := 0

	v.log.Info("starting frame loop", zap.String("mode", string(v.mode)))
	for {
		now := time.Now()
		dt := now.Sub(lastTime).Seconds()
		lastTime = now

		if v.input.Update() {
			return nil
		}
		if err := v.handleInput(dt); err != nil {
			return err
		}

		_, height := v.window.DrawableSize()
		v.terrain.Update(v.camera.Snapshot(height))
		v.sun.Advance(dt)
		v.render()
		if v.capture {
			v.screenshot()
		}
		v.window.SwapBuffers()

		frames++
		if since := time.Since(statsTimer); since >= statsInterval {
			v.report(float64(frames) / since.Seconds())
			frames = 0
			statsTimer = time.Now()
		}

		if minFrame > 0 {
			if elapsed := time.Since(now); elapsed < minFrame {
				time.Sleep(minFrame - elapsed)
			}
		}
	}
}

func (v *Viewer) handleInput(dt float64) error {
	in := v.input
	if w, h, ok := in.Resized(); ok {
		dw, dh := v.window.DrawableSize()
		v.renderer.Resize(dw, dh)
		v.log.Debug("resized", zap.Int("window_width", w), zap.Int("window_height", h))
	}

	dx, dy := in.Drag()
	v.camera.HandleDrag(dx, dy)
	v.camera.HandleZoom(in.Wheel())
	v.camera.HandleMovement(
		in.Axis(sdl.SCANCODE_W, sdl.SCANCODE_S),
		in.Axis(sdl.SCANCODE_D, sdl.SCANCODE_A),
		in.Axis(sdl.SCANCODE_E, sdl.SCANCODE_Q),
		dt,
	)

	if in.Pressed(sdl.SCANCODE_F) {
		v.renderer.SetWireframe(!v.renderer.Wireframe())
	}
	if in.Pressed(sdl.SCANCODE_L) {
		if v.sun.Rate == 0 {
			v.sun.Rate = sunRate
		} else {
			v.sun.Rate = 0
		}
	}
	v.capture = in.Pressed(sdl.SCANCODE_F12)
	if in.Pressed(sdl.SCANCODE_G) {
		next := terrain.ModeGrid
		if v.mode == terrain.ModeGrid {
			next = terrain.ModeQuadtree
		}
		v.log.Info("switching terrain mode", zap.String("mode", string(next)))
		if err := v.buildTerrain(next); err != nil {
			return err
		}
	}
	return nil
}

func (v *Viewer) render() {
	pos := v.camera.Position()
	v.renderer.Begin(renderer.Frame{
		View:       v.camera.ViewMatrix(),
		Projection: v.camera.ProjectionMatrix(v.renderer.Aspect()),
		Eye:        mgl32.Vec3{float32(pos[0]), float32(pos[1]), float32(pos[2])},
		SunDir:     v.sun.Direction(),
		Radius:     float32(v.cfg.Planet.Radius),
		Amplitude:  float32(v.cfg.Planet.Amplitude),
	})
	v.terrain.Draw()
	v.renderer.End()
}

func (v *Viewer) screenshot() {
	pixels, width, height := v.renderer.ReadPixels()
	path, err := v.shots.Save(pixels, width, height)
	if err != nil {
		v.log.Warn("screenshot failed", zap.Error(err))
		return
	}
	v.log.Info("screenshot saved", zap.String("path", path))
}

func (v *Viewer) report(fps float64) {
	s := v.terrain.Stats()
	drawCalls, indices := v.renderer.DrawStats()
	v.window.SetTitle(fmt.Sprintf("Planet LOD [%s] %.0f fps, %d patches, alt %.0f",
		s.Mode, fps, s.Patches, v.camera.Altitude))
	v.log.Debug("frame stats",
		zap.Float64("fps", fps),
		zap.Float64("altitude", v.camera.Altitude),
		zap.Int("patches", s.Patches),
		zap.Int("triangles", s.Triangles),
		zap.Int("nodes", s.Nodes),
		zap.Int("finest_level", s.FinestLevel),
		zap.Int("visible_faces", s.VisibleFaces),
		zap.Uint64("deferred", s.Deferred),
		zap.Int("pool_used", s.Pool.Used),
		zap.Int("pool_free_blocks", s.Pool.FreeBlocks),
		zap.Int("queue_depth", s.Queue.Depth),
		zap.Int("gl_draw_calls", drawCalls),
		zap.Int("gl_indices", indices),
	)
}

// Close tears everything down in reverse order of creation.
func (v *Viewer) Close() {
	v.log.Info("closing viewer")
	if v.terrain != nil {
		v.terrain.Close()
	}
	if v.renderer != nil {
		v.renderer.Close()
	}
	if v.window != nil {
		v.window.Close()
	}
}
