package main

import (
	"fmt"
	"time"

	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/sqweek/dialog"
	"go.uber.org/zap"

	"github.com/Faultbox/planetlod/internal/config"
	"github.com/Faultbox/planetlod/internal/engine/camera"
	"github.com/Faultbox/planetlod/internal/engine/debug"
	"github.com/Faultbox/planetlod/internal/engine/framebuffer"
	"github.com/Faultbox/planetlod/internal/engine/lighting"
	"github.com/Faultbox/planetlod/internal/engine/renderer"
	"github.com/Faultbox/planetlod/internal/engine/terrain"
	"github.com/Faultbox/planetlod/internal/engine/terrain/heightfield"
	"github.com/Faultbox/planetlod/internal/engine/ui"
	"github.com/Faultbox/planetlod/internal/logger"
)

const (
	controlsWidth = float32(340)
	statusTimeout = 4 * time.Second
)

// dialogResult carries a file dialog choice back to the UI thread.
type dialogResult struct {
	path string
	save bool
}

// App is the inspector state. Everything except the dialog goroutines runs
// on the UI thread.
type App struct {
	cfg *config.Config
	log *zap.Logger

	backend  *ui.Backend
	renderer *renderer.Renderer
	target   *framebuffer.Framebuffer
	view     ui.View
	shots    *debug.Screenshots

	camera  *camera.PlanetCamera
	terrain *terrain.Manager
	running terrain.Config
	sun     lighting.Sun

	// Controls, applied to the terrain by rebuild.
	mode       terrain.Mode
	pixelError float32
	cullFaces  bool
	wireframe  bool
	freeze     bool

	dialogs    chan dialogResult
	lastFrame  time.Time
	status     string
	statusTime time.Time
}

// NewApp opens the inspector window and builds the terrain.
func NewApp(cfg *config.Config) (*App, error) {
	app := &App{
		log:     logger.Named("inspector"),
		dialogs: make(chan dialogResult, 1),
		sun:     lighting.DefaultSun(),
	}

	var err error
	app.backend, err = ui.NewBackend("Planet Inspector", cfg.Graphics.Width, cfg.Graphics.Height)
	if err != nil {
		return nil, err
	}

	app.renderer, err = renderer.New(renderer.Config{Width: cfg.Graphics.Width, Height: cfg.Graphics.Height})
	if err != nil {
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}
	app.target, err = framebuffer.New(cfg.Graphics.Width, cfg.Graphics.Height)
	if err != nil {
		app.renderer.Close()
		return nil, fmt.Errorf("failed to create render target: %w", err)
	}

	if err := app.apply(cfg); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

// apply adopts cfg wholesale: controls, camera and terrain. Nothing changes
// when the terrain cannot be built.
func (app *App) apply(cfg *config.Config) error {
	shots := debug.NewScreenshots(cfg.Graphics.ScreenshotDir, "inspect")
	if err := shots.SetFormat(cfg.Graphics.ScreenshotFormat); err != nil {
		return err
	}
	tc := cfg.TerrainSettings()
	if err := app.replaceTerrain(cfg, tc); err != nil {
		return err
	}

	app.cfg = cfg
	app.shots = shots
	app.camera = cfg.PlanetCamera()
	app.mode = tc.Mode
	app.pixelError = float32(tc.PixelError)
	app.cullFaces = tc.CullFaces
	app.wireframe = cfg.Graphics.Wireframe
	return nil
}

// rebuild recreates the terrain from the current controls. On failure the
// controls are reset to what the running terrain uses.
func (app *App) rebuild() error {
	tc := app.cfg.TerrainSettings()
	tc.Mode = app.mode
	tc.PixelError = float64(app.pixelError)
	tc.CullFaces = app.cullFaces
	if err := app.replaceTerrain(app.cfg, tc); err != nil {
		app.mode = app.running.Mode
		app.pixelError = float32(app.running.PixelError)
		app.cullFaces = app.running.CullFaces
		return err
	}
	return nil
}

// replaceTerrain builds a manager for tc and swaps it in.
func (app *App) replaceTerrain(cfg *config.Config, tc terrain.Config) error {
	if err := tc.Validate(); err != nil {
		return err
	}
	gen := heightfield.New(cfg.HeightfieldParams())
	m, err := terrain.NewManager(tc, gen, app.renderer, terrain.WithLogger(logger.Named("terrain")))
	if err != nil {
		return fmt.Errorf("failed to create terrain: %w", err)
	}
	if app.terrain != nil {
		app.terrain.Close()
	}
	app.terrain = m
	app.running = tc
	app.log.Info("terrain built",
		zap.String("mode", string(tc.Mode)),
		zap.Float64("pixel_error", tc.PixelError),
		zap.Bool("cull_faces", tc.CullFaces),
	)
	return nil
}

// Run enters the UI loop.
func (app *App) Run() {
	app.lastFrame = time.Now()
	app.backend.Run(app.frame)
}

// Close releases resources in reverse order of creation.
func (app *App) Close() {
	if app.terrain != nil {
		app.terrain.Close()
		app.terrain = nil
	}
	if app.target != nil {
		app.target.Destroy()
		app.target = nil
	}
	if app.renderer != nil {
		app.renderer.Close()
		app.renderer = nil
	}
}

func (app *App) setStatus(format string, args ...any) {
	app.status = fmt.Sprintf(format, args...)
	app.statusTime = time.Now()
}

func (app *App) frame() {
	now := time.Now()
	dt := now.Sub(app.lastFrame).Seconds()
	app.lastFrame = now

	app.handleDialogs()

	pos, size := ui.WorkArea()
	flags := imgui.WindowFlagsNoMove | imgui.WindowFlagsNoResize | imgui.WindowFlagsNoCollapse

	imgui.SetNextWindowPos(pos)
	imgui.SetNextWindowSize(imgui.NewVec2(size.X-controlsWidth, size.Y))
	if imgui.BeginV("Planet", nil, flags|imgui.WindowFlagsNoScrollbar) {
		avail := imgui.ContentRegionAvail()
		app.drawTerrain(int(avail.X), int(avail.Y), dt)
		in := app.view.Image(app.target.Texture(), avail)
		if in.Hovered {
			app.camera.HandleDrag(float64(in.DragX), float64(in.DragY))
			app.camera.HandleZoom(float64(in.Wheel))
		}
	}
	imgui.End()

	imgui.SetNextWindowPos(imgui.NewVec2(pos.X+size.X-controlsWidth, pos.Y))
	imgui.SetNextWindowSize(imgui.NewVec2(controlsWidth, size.Y))
	if imgui.BeginV("Controls", nil, flags) {
		app.drawControls()
	}
	imgui.End()
}

func (app *App) drawTerrain(width, height int, dt float64) {
	if !imgui.IsAnyItemActive() {
		app.camera.HandleMovement(
			ui.Axis(imgui.KeyW, imgui.KeyS),
			ui.Axis(imgui.KeyD, imgui.KeyA),
			ui.Axis(imgui.KeyE, imgui.KeyQ),
			dt,
		)
		if ui.KeyPressed(imgui.KeyF) {
			app.wireframe = !app.wireframe
		}
	}
	app.sun.Advance(dt)

	app.target.Resize(width, height)
	if !app.freeze {
		app.terrain.Update(app.camera.Snapshot(height))
	}

	restore := app.target.Bind()
	app.renderer.Resize(app.target.Size())
	app.renderer.SetWireframe(app.wireframe)

	eye := app.camera.Position()
	app.renderer.Begin(renderer.Frame{
		View:       app.camera.ViewMatrix(),
		Projection: app.camera.ProjectionMatrix(app.renderer.Aspect()),
		Eye:        mgl32.Vec3{float32(eye[0]), float32(eye[1]), float32(eye[2])},
		SunDir:     app.sun.Direction(),
		Radius:     float32(app.cfg.Planet.Radius),
		Amplitude:  float32(app.cfg.Planet.Amplitude),
	})
	app.terrain.Draw()
	app.renderer.End()
	restore()

	if ui.KeyPressed(imgui.KeyF12) {
		app.screenshot()
	}
}

func (app *App) drawControls() {
	imgui.Text("Mode:")
	for _, mode := range []terrain.Mode{terrain.ModeQuadtree, terrain.ModeGrid} {
		label := string(mode)
		if mode == app.mode {
			label = "[" + label + "]"
		}
		imgui.SameLine()
		if imgui.Button(label+"##mode") && mode != app.mode {
			app.mode = mode
			app.rebuildOrReport()
		}
	}

	imgui.SetNextItemWidth(160)
	imgui.SliderFloatV("Pixel error", &app.pixelError, 0.5, 16, "%.1f px", imgui.SliderFlagsNone)
	imgui.Checkbox("Cull hidden faces", &app.cullFaces)
	if imgui.Button("Apply") {
		app.rebuildOrReport()
	}
	imgui.Separator()

	imgui.Checkbox("Wireframe", &app.wireframe)
	imgui.Checkbox("Freeze detail", &app.freeze)
	moving := app.sun.Rate != 0
	if imgui.Checkbox("Move sun", &moving) {
		app.sun.Rate = 0
		if moving {
			app.sun.Rate = 10
		}
	}
	imgui.Separator()

	imgui.Text(fmt.Sprintf("Altitude: %.1f", app.camera.Altitude))
	imgui.Text(fmt.Sprintf("Lat %.3f  Lon %.3f",
		mgl64.RadToDeg(app.camera.Latitude), mgl64.RadToDeg(app.camera.Longitude)))
	imgui.TextDisabled("(Drag to look, scroll to zoom, WASD/QE to fly)")
	imgui.Separator()

	ui.TerrainStats(app.terrain.Stats())
	imgui.Separator()

	if imgui.Button("Open config...") {
		app.fileDialog(false)
	}
	imgui.SameLine()
	if imgui.Button("Save config...") {
		app.fileDialog(true)
	}
	imgui.SameLine()
	if imgui.Button("Screenshot") {
		app.screenshot()
	}

	if app.status != "" && time.Since(app.statusTime) < statusTimeout {
		imgui.Spacing()
		imgui.TextWrapped(app.status)
	}
}

func (app *App) rebuildOrReport() {
	if err := app.rebuild(); err != nil {
		app.log.Warn("rebuild failed", zap.Error(err))
		app.setStatus("Rebuild failed: %v", err)
	}
}

// fileDialog runs the native dialog off the UI thread; the choice is picked
// up by handleDialogs.
func (app *App) fileDialog(save bool) {
	go func() {
		b := dialog.File().Filter("YAML config", "yaml", "yml").Filter("All Files", "*")
		var path string
		var err error
		if save {
			path, err = b.Title("Save configuration").Save()
		} else {
			path, err = b.Title("Open configuration").Load()
		}
		if err != nil {
			if err != dialog.ErrCancelled {
				app.log.Warn("file dialog failed", zap.Error(err))
			}
			return
		}
		select {
		case app.dialogs <- dialogResult{path: path, save: save}:
		default:
		}
	}()
}

func (app *App) handleDialogs() {
	select {
	case res := <-app.dialogs:
		if res.save {
			app.saveConfig(res.path)
		} else {
			app.openConfig(res.path)
		}
	default:
	}
}

func (app *App) openConfig(path string) {
	cfg, err := config.LoadFile(path)
	if err == nil {
		err = app.apply(cfg)
	}
	if err != nil {
		app.log.Warn("open config failed", zap.String("path", path), zap.Error(err))
		app.setStatus("Open failed: %v", err)
		return
	}
	app.backend.SetWindowTitle("Planet Inspector - " + path)
	app.setStatus("Loaded %s", path)
}

// saveConfig writes the loaded config with the current controls folded in.
func (app *App) saveConfig(path string) {
	cfg := *app.cfg
	cfg.Terrain.Mode = string(app.mode)
	cfg.Terrain.PixelError = float64(app.pixelError)
	cfg.Terrain.CullFaces = app.cullFaces
	cfg.Graphics.Wireframe = app.wireframe
	if err := cfg.SaveTo(path); err != nil {
		app.log.Warn("save config failed", zap.String("path", path), zap.Error(err))
		app.setStatus("Save failed: %v", err)
		return
	}
	app.setStatus("Saved %s", path)
}

func (app *App) screenshot() {
	width, height := app.target.Size()
	path, err := app.shots.Save(app.target.ReadPixels(), width, height)
	if err != nil {
		app.setStatus("Screenshot failed: %v", err)
		return
	}
	app.log.Info("screenshot saved", zap.String("path", path))
	app.setStatus("Saved %s", path)
}
