// Package terrain renders a cube-sphere planet as patches of bounded size
// whose level of detail follows the camera. Two strategies exist: an adaptive
// quadtree per cube face, and a fixed grid of patches per face that each move
// one level at a time.
//
// All exported methods must be called from one goroutine, the render loop.
// Vertex generation runs on the build queue's worker.
package terrain

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/planetlod/internal/engine/terrain/build"
	"github.com/Faultbox/planetlod/internal/engine/terrain/pool"
)

// ErrInvalidConfig wraps every configuration rejected by Validate.
var ErrInvalidConfig = errors.New("terrain: invalid config")

// Mode selects the level of detail strategy.
type Mode string

const (
	ModeQuadtree Mode = "quadtree"
	ModeGrid     Mode = "grid"
)

// Camera is the per-frame camera state the terrain needs.
type Camera struct {
	Position       mgl64.Vec3 // relative to the planet centre
	FovY           float64    // vertical field of view, degrees
	Near           float64
	ViewportHeight float64 // pixels
}

// QuadtreeConfig configures the quadtree strategy.
type QuadtreeConfig struct {
	MaxLodLevels    int     // root level; leaves reach level 0
	PatchResolution int     // vertices per patch edge, every level
	PoolBlocks      int     // patches that can hold geometry at once
	SkirtDepth      float32 // skirt depth of a root patch, halved per level
}

// GridConfig configures the fixed-grid strategy.
type GridConfig struct {
	MaxLodLevels     int // coarsest level; every patch starts here
	PatchResolution  int // vertices per patch edge at level 0
	GridSize         int // patches per face edge
	PoolSizePerLevel int // vertex pool slots per level
}

// Config holds terrain parameters.
type Config struct {
	Mode       Mode
	Radius     float64
	PixelError float64 // tolerated screen-space error in pixels
	CullFaces  bool    // skip faces beyond the horizon
	Quadtree   QuadtreeConfig
	Grid       GridConfig
}

// DefaultConfig returns settings suitable for a planet of radius 6000.
func DefaultConfig() Config {
	return Config{
		Mode:       ModeQuadtree,
		Radius:     6000,
		PixelError: 2,
		CullFaces:  true,
		Quadtree: QuadtreeConfig{
			MaxLodLevels:    10,
			PatchResolution: 33,
			PoolBlocks:      1536,
			SkirtDepth:      400,
		},
		Grid: GridConfig{
			MaxLodLevels:     4,
			PatchResolution:  65,
			GridSize:         4,
			PoolSizePerLevel: 96,
		},
	}
}

// Validate rejects degenerate configurations.
func (c Config) Validate() error {
	if c.Radius <= 0 {
		return fmt.Errorf("%w: radius %g must be positive", ErrInvalidConfig, c.Radius)
	}
	if c.PixelError <= 0 {
		return fmt.Errorf("%w: pixel error %g must be positive", ErrInvalidConfig, c.PixelError)
	}
	switch c.Mode {
	case ModeQuadtree:
		q := c.Quadtree
		if q.MaxLodLevels < 0 || q.MaxLodLevels > 30 {
			return fmt.Errorf("%w: quadtree max lod %d out of [0, 30]", ErrInvalidConfig, q.MaxLodLevels)
		}
		if q.PatchResolution < 2 {
			return fmt.Errorf("%w: quadtree patch resolution %d below 2", ErrInvalidConfig, q.PatchResolution)
		}
		if q.PoolBlocks < len(Faces) {
			return fmt.Errorf("%w: pool of %d blocks cannot hold %d roots", ErrInvalidConfig, q.PoolBlocks, len(Faces))
		}
		if q.SkirtDepth < 0 {
			return fmt.Errorf("%w: negative skirt depth", ErrInvalidConfig)
		}
	case ModeGrid:
		g := c.Grid
		if g.MaxLodLevels < 0 || g.MaxLodLevels > 30 {
			return fmt.Errorf("%w: grid max lod %d out of [0, 30]", ErrInvalidConfig, g.MaxLodLevels)
		}
		if g.PatchResolution < 3 || (g.PatchResolution-1)>>g.MaxLodLevels < 2 {
			return fmt.Errorf("%w: grid resolution %d too small for %d levels", ErrInvalidConfig, g.PatchResolution, g.MaxLodLevels)
		}
		if (g.PatchResolution-1)%(1<<g.MaxLodLevels) != 0 {
			return fmt.Errorf("%w: grid resolution %d - 1 not divisible by 2^%d", ErrInvalidConfig, g.PatchResolution, g.MaxLodLevels)
		}
		if g.GridSize < 1 {
			return fmt.Errorf("%w: grid size %d below 1", ErrInvalidConfig, g.GridSize)
		}
		if need := len(Faces) * g.GridSize * g.GridSize; g.PoolSizePerLevel < need {
			return fmt.Errorf("%w: %d slots per level, %d patches need %d", ErrInvalidConfig, g.PoolSizePerLevel, need, need)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, c.Mode)
	}
	return nil
}

// Stats is a per-frame summary.
type Stats struct {
	Mode         Mode
	Patches      int // patches drawn
	Triangles    int
	Nodes        int // live patches, drawn or not
	FinestLevel  int // lowest level drawn, -1 when nothing is drawn
	VisibleFaces int
	Deferred     uint64 // level changes postponed by pool exhaustion
	Pool         pool.Stats
	Queue        build.Stats
}
