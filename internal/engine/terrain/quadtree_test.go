package terrain

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/planetlod/internal/engine/terrain/heightfield"
	"github.com/Faultbox/planetlod/internal/engine/terrain/surface"
)

var farAway = mgl64.Vec3{0, 0, 1e6}

func treeOf(m *Manager) *quadtree {
	return m.strat.(*quadtree)
}

// checkTree asserts the structural invariants of every live node and that
// the pool holds exactly the blocks the nodes own.
func checkTree(t *testing.T, m *Manager) {
	t.Helper()
	tree := treeOf(m)
	owned := 0
	for _, r := range tree.roots {
		r.walk(func(n *Node) {
			if n.geom.handle.Valid() {
				owned++
			}
			if n.reserved.Valid() {
				owned++
			}
			if !n.attached() {
				assert.False(t, n.geom.rendered(), "detached node holds geometry")
				return
			}
			switch n.phase {
			case split:
				assert.False(t, n.geom.rendered(), "split node at level %d holds geometry", n.Level)
			case leafStable:
				assert.Nil(t, n.kids[0])
			default:
				assert.Nil(t, n.cached[0])
			}
			for _, k := range n.kids {
				if k != nil {
					assert.Equal(t, n.Level-1, k.Level)
				}
			}
		})
	}
	s := m.Stats().Pool
	assert.Equal(t, owned, s.Blocks-s.FreeBlocks, "pool blocks in use")
}

func TestQuadtree_SplitThresholdIsStrict(t *testing.T) {
	cfg := quadConfig()
	cfg.Quadtree.MaxLodLevels = 1

	for _, tt := range []struct {
		name  string
		above float64
		split bool
	}{
		{name: "inside", above: 259.5, split: true},
		{name: "outside", above: 260.2, split: false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			gen := &sphereGen{radius: 50, err: 2}
			m, _ := newTestManager(t, cfg, gen, inlineExecutor{})
			m.Update(testCamera(farAway))

			root := treeOf(m).roots[PosZ]
			require.True(t, root.Rendered())
			require.True(t, root.errKnown)

			m.Update(testCamera(root.Centre.Add(mgl64.Vec3{0, 0, tt.above})))
			assert.Equal(t, tt.split, root.phase == splitting, "phase %s", root.phase)
			for _, f := range []Face{PosX, NegX, PosY, NegY, NegZ} {
				assert.Equal(t, leafStable, treeOf(m).roots[f].phase, "face %s", f)
			}
		})
	}
}

func TestQuadtree_SplitIsAtomic(t *testing.T) {
	gen := &sphereGen{radius: 50, err: 2}
	exec := &manualExecutor{}
	m, rec := newTestManager(t, quadConfig(), gen, exec)
	cam := testCamera(mgl64.Vec3{0, 0, 60})
	root := treeOf(m).roots[PosX]

	exec.run(-1)
	frame(m, rec, cam)
	require.Equal(t, splitting, root.phase)
	assert.Equal(t, 6, rec.DrawCalls())

	// Two of the +X children land: the parent still draws alone.
	exec.run(2)
	frame(m, rec, cam)
	assert.Equal(t, splitting, root.phase)
	assert.True(t, root.Rendered())
	assert.Equal(t, 6, rec.DrawCalls())
	checkTree(t, m)

	exec.run(2)
	frame(m, rec, cam)
	assert.Equal(t, split, root.phase)
	assert.False(t, root.Rendered())
	assert.Equal(t, 5+4, rec.DrawCalls())
	checkTree(t, m)
}

func TestQuadtree_ReachesFinestLevelAndBack(t *testing.T) {
	gen := &sphereGen{radius: 50, err: 2}
	m, rec := newTestManager(t, quadConfig(), gen, inlineExecutor{})

	for i := 0; i < 8; i++ {
		frame(m, rec, testCamera(mgl64.Vec3{0, 0, 51}))
		checkTree(t, m)
	}
	assert.Equal(t, 0, m.Stats().FinestLevel)
	assert.Equal(t, 6*16, rec.DrawCalls(), "every face fully refined")

	for i := 0; i < 8; i++ {
		frame(m, rec, testCamera(farAway))
		checkTree(t, m)
	}
	assert.Equal(t, 2, m.Stats().FinestLevel)
	assert.Equal(t, 6, rec.DrawCalls())
	assert.Equal(t, 6*quadConfig().Quadtree.PatchResolution*quadConfig().Quadtree.PatchResolution+6*4*5,
		m.Stats().Pool.Used)
}

func TestQuadtree_MergeThenSplitReusesChildren(t *testing.T) {
	cfg := quadConfig()
	cfg.Quadtree.MaxLodLevels = 1
	gen := &sphereGen{radius: 50, err: 2}
	m, rec := newTestManager(t, cfg, gen, inlineExecutor{})
	near := testCamera(mgl64.Vec3{0, 0, 60})

	for i := 0; i < 3; i++ {
		frame(m, rec, near)
	}
	root := treeOf(m).roots[PosZ]
	require.Equal(t, split, root.phase)
	kids := root.kids
	nodes := m.Stats().Nodes
	errCalls := gen.errCalls.Load()
	assert.Equal(t, int64(6+24), errCalls)

	for i := 0; i < 3; i++ {
		frame(m, rec, testCamera(farAway))
	}
	require.Equal(t, leafStable, root.phase)
	assert.Equal(t, kids, root.cached)
	for _, k := range kids {
		assert.False(t, k.Rendered())
	}

	for i := 0; i < 3; i++ {
		frame(m, rec, near)
	}
	require.Equal(t, split, root.phase)
	assert.Equal(t, kids, root.kids, "same child nodes")
	assert.Equal(t, nodes, m.Stats().Nodes, "no nodes created")
	assert.Equal(t, errCalls, gen.errCalls.Load(), "errors not recomputed")
	checkTree(t, m)
}

func TestQuadtree_ExhaustedPoolDefersSplit(t *testing.T) {
	cfg := quadConfig()
	cfg.Quadtree.PoolBlocks = 6 + 4
	gen := &sphereGen{radius: 50, err: 2}
	m, rec := newTestManager(t, cfg, gen, inlineExecutor{})

	frame(m, rec, testCamera(mgl64.Vec3{0, 0, 60}))

	tree := treeOf(m)
	splitRoots := 0
	for _, r := range tree.roots {
		if r.phase != leafStable {
			splitRoots++
		}
	}
	assert.Equal(t, 1, splitRoots, "only one root fits its four children")
	s := m.Stats()
	assert.Zero(t, s.Pool.FreeBlocks)
	assert.Equal(t, uint64(5), s.Deferred)
	checkTree(t, m)

	// Once the children land the parent's block comes back, still too few
	// for anyone else.
	frame(m, rec, testCamera(mgl64.Vec3{0, 0, 60}))
	assert.Equal(t, split, tree.roots[PosX].phase)
	assert.Equal(t, 1, m.Stats().Pool.FreeBlocks)
	checkTree(t, m)

	// With three blocks left no split can start and none is half-made.
	cfg.Quadtree.PoolBlocks = 6 + 3
	m2, rec2 := newTestManager(t, cfg, gen, inlineExecutor{})
	frame(m2, rec2, testCamera(mgl64.Vec3{0, 0, 60}))
	for _, r := range treeOf(m2).roots {
		assert.Equal(t, leafStable, r.phase)
	}
	assert.Equal(t, 3, m2.Stats().Pool.FreeBlocks)
	checkTree(t, m2)
}

func TestQuadtree_FailedBuildIsRetried(t *testing.T) {
	cfg := quadConfig()
	cfg.Quadtree.MaxLodLevels = 1
	gen := &sphereGen{radius: 50, err: 2}
	exec := &manualExecutor{}
	m, rec := newTestManager(t, cfg, gen, exec)
	cam := testCamera(mgl64.Vec3{0, 0, 60})
	root := treeOf(m).roots[PosX]

	exec.run(-1)
	frame(m, rec, cam)
	require.Equal(t, splitting, root.phase)

	gen.fail.Store(1)
	exec.run(-1)
	frame(m, rec, cam)
	assert.Equal(t, splitting, root.phase, "one child failed")
	assert.Equal(t, uint64(1), m.Stats().Queue.Failed)
	checkTree(t, m)

	exec.run(-1)
	frame(m, rec, cam)
	assert.Equal(t, split, root.phase)
	checkTree(t, m)
}

func TestQuadtree_RootSurfaceIsClosed(t *testing.T) {
	gen := &sphereGen{radius: 50, err: 2}
	m, rec := newTestManager(t, quadConfig(), gen, inlineExecutor{})
	frame(m, rec, testCamera(farAway))
	frame(m, rec, testCamera(farAway))

	n := quadConfig().Quadtree.PatchResolution
	surfaceOnly := func(int) int { return 6 * (n - 1) * (n - 1) }
	tris := rec.Triangles(surfaceOnly)
	require.Len(t, tris, 6*2*(n-1)*(n-1))
	assert.Zero(t, openEdges(tris))
}

func TestQuadtree_SkirtsHangBelowEdges(t *testing.T) {
	gen := &sphereGen{radius: 50, err: 2}
	m, rec := newTestManager(t, quadConfig(), gen, inlineExecutor{})
	m.Update(testCamera(farAway))

	root := treeOf(m).roots[PosY]
	n := quadConfig().Quadtree.PatchResolution
	verts := rec.Vertices(root.Handle().Offset, surface.SkirtedVertexCount(n))
	require.Len(t, verts, surface.SkirtedVertexCount(n))
	for i := n * n; i < len(verts); i++ {
		r := mgl64.Vec3{float64(verts[i].Position[0]), float64(verts[i].Position[1]), float64(verts[i].Position[2])}.Len()
		assert.InDelta(t, 49, r, 1e-3, "root skirt depth")
	}
}

func TestQuadtree_StaleSplitLandsThenMerges(t *testing.T) {
	cfg := quadConfig()
	cfg.Quadtree.MaxLodLevels = 1
	gen := &sphereGen{radius: 50, err: 2}
	exec := &manualExecutor{}
	m, rec := newTestManager(t, cfg, gen, exec)
	root := treeOf(m).roots[PosZ]

	exec.run(-1)
	frame(m, rec, testCamera(mgl64.Vec3{0, 0, 60}))
	require.Equal(t, splitting, root.phase)
	kids := root.kids

	// The camera leaves before any child lands.
	far := testCamera(farAway)
	frame(m, rec, far)
	assert.Equal(t, splitting, root.phase, "a split in flight is not cancelled")
	assert.Equal(t, 6, rec.DrawCalls())

	exec.run(-1)
	frame(m, rec, far)
	assert.Equal(t, merging, root.phase)
	assert.Equal(t, 6*4, rec.DrawCalls(), "children draw until the parent lands")
	checkTree(t, m)

	exec.run(-1)
	frame(m, rec, far)
	require.Equal(t, leafStable, root.phase)
	assert.Equal(t, kids, root.cached)
	for _, k := range kids {
		assert.False(t, k.Rendered())
	}
	assert.Equal(t, 6, rec.DrawCalls())
	assert.Zero(t, m.Pending())
	checkTree(t, m)
}

func TestQuadtree_ResultForCachedNodeIsReleased(t *testing.T) {
	cfg := quadConfig()
	cfg.Quadtree.MaxLodLevels = 1
	gen := &sphereGen{radius: 50, err: 2}
	m, rec := newTestManager(t, cfg, gen, inlineExecutor{})

	for i := 0; i < 3; i++ {
		frame(m, rec, testCamera(mgl64.Vec3{0, 0, 60}))
	}
	for i := 0; i < 4; i++ {
		frame(m, rec, testCamera(farAway))
	}
	tree := treeOf(m)
	root := tree.roots[PosZ]
	require.Equal(t, leafStable, root.phase)
	require.NotNil(t, root.cached[0])
	free := m.Stats().Pool.FreeBlocks

	k := root.cached[0]
	h, err := tree.pool.Allocate()
	require.NoError(t, err)
	k.reserved = h
	tree.request(k)

	frame(m, rec, testCamera(farAway))
	assert.False(t, k.building)
	assert.False(t, k.Rendered(), "nothing draws a cached node")
	assert.False(t, k.reserved.Valid())
	assert.Equal(t, free, m.Stats().Pool.FreeBlocks, "block returned to the pool")
	assert.Equal(t, 6, rec.DrawCalls())
	checkTree(t, m)
}

// drawnLeaves returns the nodes that make up the settled surface.
func drawnLeaves(m *Manager) []*Node {
	var out []*Node
	var visit func(n *Node)
	visit = func(n *Node) {
		if n.phase == split || n.phase == merging {
			for _, k := range n.kids {
				visit(k)
			}
			return
		}
		out = append(out, n)
	}
	for _, r := range treeOf(m).roots {
		visit(r)
	}
	return out
}

// worstNeighborDelta returns the largest level difference between two
// leaves sharing part of an edge, within a face or across a cube edge.
func worstNeighborDelta(leaves []*Node) int {
	worst := 0
	for i, a := range leaves {
		ab := a.box()
		for _, b := range leaves[i+1:] {
			if !ab.touches(b.box()) {
				continue
			}
			d := a.Level - b.Level
			if d < 0 {
				d = -d
			}
			if d > worst {
				worst = d
			}
		}
	}
	return worst
}

func TestQuadtree_NeighborsWithinOneLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Quadtree.MaxLodLevels = 8
	cfg.Quadtree.PatchResolution = 17
	cfg.Quadtree.PoolBlocks = 2048
	p := heightfield.DefaultParams()
	p.Radius = cfg.Radius
	m, rec := newTestManager(t, cfg, heightfield.New(p), inlineExecutor{})

	// Toward a cube corner, so leaves meet across face borders.
	dir := mgl64.Vec3{1, 1, 1}.Normalize()
	for _, above := range []float64{20000, 2000, 500, 200, 2000, 20000} {
		cam := testCamera(dir.Mul(cfg.Radius + above))
		quiet := 0
		for i := 0; i < 300 && quiet < 2; i++ {
			frame(m, rec, cam)
			if m.Pending() == 0 {
				quiet++
			} else {
				quiet = 0
			}
		}
		require.Equal(t, 2, quiet, "settled at %g", above)

		leaves := drawnLeaves(m)
		for _, n := range leaves {
			assert.Equal(t, leafStable, n.phase)
		}
		assert.LessOrEqual(t, worstNeighborDelta(leaves), 1, "at %g", above)
		checkTree(t, m)
		if above == 200 {
			assert.Less(t, m.Stats().FinestLevel, cfg.Quadtree.MaxLodLevels-2, "refined near the ground")
		}
	}
}

func TestBox_Touches(t *testing.T) {
	a := spanning(mgl64.Vec3{0, 0, 1}, mgl64.Vec3{1, 1, 1})
	for _, tt := range []struct {
		name string
		b    box
		want bool
	}{
		{name: "shared edge", b: spanning(mgl64.Vec3{1, 0, 1}, mgl64.Vec3{2, 0.5, 1}), want: true},
		{name: "cube edge", b: spanning(mgl64.Vec3{1, 0, 1}, mgl64.Vec3{1, 1, 0}), want: true},
		{name: "corner only", b: spanning(mgl64.Vec3{1, 1, 1}, mgl64.Vec3{2, 2, 1}), want: false},
		{name: "apart", b: spanning(mgl64.Vec3{1.5, 0, 1}, mgl64.Vec3{2, 1, 1}), want: false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.touches(tt.b))
		})
	}
}
