package terrain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		ok     bool
	}{
		{name: "default", modify: func(*Config) {}, ok: true},
		{name: "default grid", modify: func(c *Config) { c.Mode = ModeGrid }, ok: true},
		{name: "unknown mode", modify: func(c *Config) { c.Mode = "octree" }},
		{name: "zero radius", modify: func(c *Config) { c.Radius = 0 }},
		{name: "zero pixel error", modify: func(c *Config) { c.PixelError = 0 }},
		{name: "resolution 1", modify: func(c *Config) { c.Quadtree.PatchResolution = 1 }},
		{name: "resolution 2", modify: func(c *Config) { c.Quadtree.PatchResolution = 2 }, ok: true},
		{name: "pool below roots", modify: func(c *Config) { c.Quadtree.PoolBlocks = 5 }},
		{name: "negative skirt", modify: func(c *Config) { c.Quadtree.SkirtDepth = -1 }},
		{name: "negative lod", modify: func(c *Config) { c.Quadtree.MaxLodLevels = -1 }},
		{
			name: "grid too many levels",
			modify: func(c *Config) {
				c.Mode = ModeGrid
				c.Grid.MaxLodLevels = 6
			},
		},
		{
			name: "grid resolution not nested",
			modify: func(c *Config) {
				c.Mode = ModeGrid
				c.Grid.PatchResolution = 64
			},
		},
		{
			name: "grid pool below patches",
			modify: func(c *Config) {
				c.Mode = ModeGrid
				c.Grid.PoolSizePerLevel = 95
			},
		},
		{
			name: "grid size zero",
			modify: func(c *Config) {
				c.Mode = ModeGrid
				c.Grid.GridSize = 0
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}
