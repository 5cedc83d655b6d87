// Package config handles viewer configuration loading and management.
package config

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/planetlod/internal/engine/camera"
	"github.com/Faultbox/planetlod/internal/engine/debug"
	"github.com/Faultbox/planetlod/internal/engine/terrain"
	"github.com/Faultbox/planetlod/internal/engine/terrain/heightfield"
)

// Config holds all viewer settings.
type Config struct {
	Graphics GraphicsConfig `yaml:"graphics"`
	Camera   CameraConfig   `yaml:"camera"`
	Planet   PlanetConfig   `yaml:"planet"`
	Terrain  TerrainConfig  `yaml:"terrain"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// GraphicsConfig holds display and rendering settings.
type GraphicsConfig struct {
	Width      int  `yaml:"width"`
	Height     int  `yaml:"height"`
	Fullscreen bool `yaml:"fullscreen"`
	VSync      bool `yaml:"vsync"`
	FPSLimit   int  `yaml:"fps_limit"`
	Wireframe  bool `yaml:"wireframe"`

	ScreenshotDir    string `yaml:"screenshot_dir"`
	ScreenshotFormat string `yaml:"screenshot_format"` // png or bmp
}

// CameraConfig holds the projection and the starting orbit.
type CameraConfig struct {
	FovY      float64 `yaml:"fov_y"` // degrees
	Near      float64 `yaml:"near"`
	Far       float64 `yaml:"far"`
	Altitude  float64 `yaml:"altitude"` // above the surface radius
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Speed     float64 `yaml:"speed"` // altitudes per second
}

// PlanetConfig holds the procedural surface parameters.
type PlanetConfig struct {
	Radius      float64 `yaml:"radius"`
	Amplitude   float64 `yaml:"amplitude"`
	Frequency   float64 `yaml:"frequency"`
	Octaves     int     `yaml:"octaves"`
	Persistence float64 `yaml:"persistence"`
	Lacunarity  float64 `yaml:"lacunarity"`
	Seed        int64   `yaml:"seed"`
}

// TerrainConfig holds level of detail settings.
type TerrainConfig struct {
	Mode       string         `yaml:"mode"` // quadtree or grid
	PixelError float64        `yaml:"pixel_error"`
	CullFaces  bool           `yaml:"cull_faces"`
	Quadtree   QuadtreeConfig `yaml:"quadtree"`
	Grid       GridConfig     `yaml:"grid"`
}

// QuadtreeConfig holds quadtree strategy settings.
type QuadtreeConfig struct {
	MaxLodLevels    int     `yaml:"max_lod_levels"`
	PatchResolution int     `yaml:"patch_resolution"`
	PoolBlocks      int     `yaml:"pool_blocks"`
	SkirtDepth      float32 `yaml:"skirt_depth"`
}

// GridConfig holds fixed-grid strategy settings.
type GridConfig struct {
	MaxLodLevels     int `yaml:"max_lod_levels"`
	PatchResolution  int `yaml:"patch_resolution"`
	GridSize         int `yaml:"grid_size"`
	PoolSizePerLevel int `yaml:"pool_size_per_level"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
	JSON    bool   `yaml:"json"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	t := terrain.DefaultConfig()
	p := heightfield.DefaultParams()
	return &Config{
		Graphics: GraphicsConfig{
			Width:            1280,
			Height:           720,
			VSync:            true,
			ScreenshotDir:    "screenshots",
			ScreenshotFormat: "png",
		},
		Camera: CameraConfig{
			FovY:     60,
			Near:     1,
			Far:      100000,
			Altitude: 12000,
			Speed:    0.5,
		},
		Planet: PlanetConfig{
			Radius:      p.Radius,
			Amplitude:   p.Amplitude,
			Frequency:   p.Frequency,
			Octaves:     p.Octaves,
			Persistence: p.Persistence,
			Lacunarity:  p.Lacunarity,
			Seed:        p.Seed,
		},
		Terrain: TerrainConfig{
			Mode:       string(t.Mode),
			PixelError: t.PixelError,
			CullFaces:  t.CullFaces,
			Quadtree: QuadtreeConfig{
				MaxLodLevels:    t.Quadtree.MaxLodLevels,
				PatchResolution: t.Quadtree.PatchResolution,
				PoolBlocks:      t.Quadtree.PoolBlocks,
				SkirtDepth:      t.Quadtree.SkirtDepth,
			},
			Grid: GridConfig{
				MaxLodLevels:     t.Grid.MaxLodLevels,
				PatchResolution:  t.Grid.PatchResolution,
				GridSize:         t.Grid.GridSize,
				PoolSizePerLevel: t.Grid.PoolSizePerLevel,
			},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// TerrainSettings converts the terrain and planet sections.
func (c *Config) TerrainSettings() terrain.Config {
	return terrain.Config{
		Mode:       terrain.Mode(c.Terrain.Mode),
		Radius:     c.Planet.Radius,
		PixelError: c.Terrain.PixelError,
		CullFaces:  c.Terrain.CullFaces,
		Quadtree: terrain.QuadtreeConfig{
			MaxLodLevels:    c.Terrain.Quadtree.MaxLodLevels,
			PatchResolution: c.Terrain.Quadtree.PatchResolution,
			PoolBlocks:      c.Terrain.Quadtree.PoolBlocks,
			SkirtDepth:      c.Terrain.Quadtree.SkirtDepth,
		},
		Grid: terrain.GridConfig{
			MaxLodLevels:     c.Terrain.Grid.MaxLodLevels,
			PatchResolution:  c.Terrain.Grid.PatchResolution,
			GridSize:         c.Terrain.Grid.GridSize,
			PoolSizePerLevel: c.Terrain.Grid.PoolSizePerLevel,
		},
	}
}

// HeightfieldParams converts the planet section.
func (c *Config) HeightfieldParams() heightfield.Params {
	return heightfield.Params{
		Radius:      c.Planet.Radius,
		Amplitude:   c.Planet.Amplitude,
		Frequency:   c.Planet.Frequency,
		Octaves:     c.Planet.Octaves,
		Persistence: c.Planet.Persistence,
		Lacunarity:  c.Planet.Lacunarity,
		Seed:        c.Planet.Seed,
	}
}

// PlanetCamera builds the starting camera from the camera and planet sections.
func (c *Config) PlanetCamera() *camera.PlanetCamera {
	cam := camera.NewPlanetCamera(c.Planet.Radius, c.Camera.Altitude)
	cam.FovY = c.Camera.FovY
	cam.Near = c.Camera.Near
	cam.Far = c.Camera.Far
	cam.Latitude = mgl64.DegToRad(c.Camera.Latitude)
	cam.Longitude = mgl64.DegToRad(c.Camera.Longitude)
	cam.Speed = c.Camera.Speed
	return cam
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch {
	case c.Graphics.Width <= 0 || c.Graphics.Height <= 0:
		return fmt.Errorf("graphics: window %dx%d must be positive", c.Graphics.Width, c.Graphics.Height)
	case debug.Formats[c.Graphics.ScreenshotFormat] == nil:
		return fmt.Errorf("graphics: unknown screenshot_format %q", c.Graphics.ScreenshotFormat)
	case c.Camera.FovY <= 0 || c.Camera.FovY >= 180:
		return fmt.Errorf("camera: fov_y %g out of (0, 180)", c.Camera.FovY)
	case c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near:
		return fmt.Errorf("camera: near %g and far %g must satisfy 0 < near < far", c.Camera.Near, c.Camera.Far)
	case c.Camera.Altitude <= 0:
		return fmt.Errorf("camera: altitude %g must be positive", c.Camera.Altitude)
	case c.Planet.Amplitude < 0 || c.Planet.Amplitude >= c.Planet.Radius:
		return fmt.Errorf("planet: amplitude %g out of [0, radius)", c.Planet.Amplitude)
	case c.Planet.Octaves < 1:
		return fmt.Errorf("planet: octaves %d below 1", c.Planet.Octaves)
	}
	if err := c.TerrainSettings().Validate(); err != nil {
		return fmt.Errorf("terrain: %w", err)
	}
	return nil
}
