package config

import "flag"

var (
	flagConfig     = flag.String("config", "", "Path to config file")
	flagDebug      = flag.Bool("debug", false, "Enable debug logging")
	flagMode       = flag.String("mode", "", "Terrain mode: quadtree or grid")
	flagPixelError = flag.Float64("pixel-error", 0, "Tolerated screen-space error in pixels")
	flagWireframe  = flag.Bool("wireframe", false, "Draw terrain as wireframe")
	flagNoCull     = flag.Bool("no-cull", false, "Draw faces beyond the horizon")
	flagWindowed   = flag.Bool("windowed", false, "Run in windowed mode")
	flagFullscreen = flag.Bool("fullscreen", false, "Run in fullscreen mode")
	flagWidth      = flag.Int("width", 0, "Window width")
	flagHeight     = flag.Int("height", 0, "Window height")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagMode != "" {
		cfg.Terrain.Mode = *flagMode
	}
	if *flagPixelError > 0 {
		cfg.Terrain.PixelError = *flagPixelError
	}
	if *flagWireframe {
		cfg.Graphics.Wireframe = true
	}
	if *flagNoCull {
		cfg.Terrain.CullFaces = false
	}
	if *flagWindowed {
		cfg.Graphics.Fullscreen = false
	}
	if *flagFullscreen {
		cfg.Graphics.Fullscreen = true
	}
	if *flagWidth > 0 {
		cfg.Graphics.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Graphics.Height = *flagHeight
	}
}
