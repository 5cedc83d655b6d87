package terrain

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/planetlod/internal/engine/terrain/stitch"
)

func gridOf(m *Manager) *grid {
	return m.strat.(*grid)
}

func TestResolutionAt(t *testing.T) {
	assert.Equal(t, 65, resolutionAt(65, 0))
	assert.Equal(t, 33, resolutionAt(65, 1))
	assert.Equal(t, 5, resolutionAt(65, 4))
	assert.Equal(t, []int{81, 25, 9}, levelVertices(gridConfig().Grid))
}

func TestGrid_LinksEveryEdge(t *testing.T) {
	m, _ := newTestManager(t, gridConfig(), &sphereGen{radius: 50}, inlineExecutor{})
	g := gridOf(m)
	require.Len(t, g.patches, 24)

	crossFace := 0
	for _, p := range g.patches {
		for _, e := range stitch.Edges {
			nb := p.neighbors[e]
			require.NotNil(t, nb, "%s patch %d,%d edge %s", p.face, p.col, p.row, e)
			assert.Contains(t, nb.neighbors, p, "link is symmetric")
			if nb.face != p.face {
				crossFace++
			}
		}
	}
	assert.Equal(t, 6*8, crossFace)

	// Inside a face the neighbor across the right edge is the next column.
	p := g.patches[0]
	assert.Equal(t, g.patches[1], p.neighbors[stitch.Right])
	assert.Equal(t, g.patches[2], p.neighbors[stitch.Top])
}

func TestGrid_StartsAtCoarsestLevel(t *testing.T) {
	m, rec := newTestManager(t, gridConfig(), &sphereGen{radius: 50}, inlineExecutor{})
	assert.Equal(t, 24*9, m.Stats().Pool.Used, "one coarsest slot per patch")

	frame(m, rec, testCamera(mgl64.Vec3{0, 0, 1e6}))
	s := m.Stats()
	assert.Equal(t, 24, s.Patches)
	assert.Equal(t, 2, s.FinestLevel)
	assert.Equal(t, 24*2*2*2, s.Triangles)
	assert.Zero(t, openEdges(rec.Triangles(nil)))
}

// checkGrid asserts the level bound between neighbors and that the pool holds
// exactly the slots the patches own.
func checkGrid(t *testing.T, m *Manager) {
	t.Helper()
	used := 0
	for _, p := range gridOf(m).patches {
		if p.geom.handle.Valid() {
			used += p.geom.handle.Count
		}
		if p.pending.Valid() {
			used += p.pending.Count
			assert.Equal(t, p.target, p.pending.Level())
		}
		for _, nb := range p.neighbors {
			assert.LessOrEqual(t, absInt(p.Level-nb.Level), 1)
			assert.LessOrEqual(t, absInt(p.target-nb.target), 1)
		}
	}
	assert.Equal(t, used, m.Stats().Pool.Used)
}

func TestGrid_DescentKeepsMeshClosed(t *testing.T) {
	cfg := gridConfig()
	cfg.PixelError = 2.5
	m, rec := newTestManager(t, cfg, &sphereGen{radius: 50}, inlineExecutor{})
	g := gridOf(m)

	prev := make([]int, len(g.patches))
	for i, p := range g.patches {
		prev[i] = p.Level
	}
	sawMixed := false
	finest := cfg.Grid.MaxLodLevels

	for _, h := range descent(2000, 52, 40) {
		frame(m, rec, testCamera(mgl64.Vec3{0, 0, h}))
		checkGrid(t, m)

		for i, p := range g.patches {
			require.LessOrEqual(t, absInt(p.Level-prev[i]), 1, "level moves one step per update")
			prev[i] = p.Level
			if p.deltas(p.Level) != (stitch.Deltas{}) {
				sawMixed = true
			}
			finest = min(finest, p.Level)
		}
		require.Zero(t, openEdges(rec.Triangles(nil)), "camera at %g", h)
	}
	assert.True(t, sawMixed, "descent produced neighbors at different levels")
	assert.Less(t, finest, cfg.Grid.MaxLodLevels)

	for i := 0; i < 20; i++ {
		frame(m, rec, testCamera(mgl64.Vec3{0, 0, 1e6}))
	}
	for _, p := range g.patches {
		assert.Equal(t, cfg.Grid.MaxLodLevels, p.Level)
	}
	assert.Equal(t, 24*9, m.Stats().Pool.Used)
}

func TestGrid_StitchesAgainstCoarserNeighbor(t *testing.T) {
	m, rec := newTestManager(t, gridConfig(), &sphereGen{radius: 50}, inlineExecutor{})
	frame(m, rec, testCamera(mgl64.Vec3{0, 0, 1e6}))
	g := gridOf(m)

	// Refine one patch by hand, as a level change would.
	p := g.patches[0]
	h, err := g.pool.Allocate(1)
	require.NoError(t, err)
	p.pending = h
	p.target = 1
	g.request(p)
	frame(m, rec, testCamera(mgl64.Vec3{0, 0, 1e6}))

	require.Equal(t, 1, p.Level)
	n := resolutionAt(gridConfig().Grid.PatchResolution, 1)
	assert.Equal(t, stitch.Deltas{1, 1, 1, 1}, p.deltas(1))
	// Each bent edge drops (n-1)/2 triangles.
	assert.Equal(t, 3*(2*(n-1)*(n-1)-4*(n-1)/2), p.geom.ib.Count())
	assert.Zero(t, openEdges(rec.Triangles(nil)))
}

func TestGrid_FailedBuildKeepsLevel(t *testing.T) {
	gen := &sphereGen{radius: 50}
	exec := &manualExecutor{}
	m, rec := newTestManager(t, gridConfig(), gen, exec)

	gen.fail.Store(1)
	exec.run(-1)
	frame(m, rec, testCamera(mgl64.Vec3{0, 0, 1e6}))
	assert.Equal(t, 23, m.Stats().Patches)

	exec.run(-1)
	frame(m, rec, testCamera(mgl64.Vec3{0, 0, 1e6}))
	assert.Equal(t, 24, m.Stats().Patches)
	assert.Zero(t, openEdges(rec.Triangles(nil)))
	checkGrid(t, m)
}
