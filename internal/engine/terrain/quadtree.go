package terrain

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/Faultbox/planetlod/internal/engine/terrain/build"
	"github.com/Faultbox/planetlod/internal/engine/terrain/pool"
	"github.com/Faultbox/planetlod/internal/engine/terrain/stitch"
	"github.com/Faultbox/planetlod/internal/engine/terrain/surface"
)

// phase is where a node is in its split/merge cycle.
type phase uint8

const (
	// leafStable: the node draws itself. cached may hold children from an
	// earlier split.
	leafStable phase = iota
	// splitting: kids are building, the node still draws itself.
	splitting
	// split: the node holds no geometry, kids draw.
	split
	// merging: the node is rebuilding itself, kids still draw.
	merging
)

func (p phase) String() string {
	switch p {
	case leafStable:
		return "leaf"
	case splitting:
		return "splitting"
	case split:
		return "split"
	case merging:
		return "merging"
	}
	return "?"
}

// Node is one quadtree patch.
type Node struct {
	Patch

	tree     *quadtree
	parent   *Node
	quadrant int
	phase    phase
	kids     [4]*Node // pending while splitting, live while split or merging
	cached   [4]*Node // only while leafStable

	reserved   pool.Handle // block the next result is written into
	building   bool
	needsBuild bool
	err        float32
	errKnown   bool
	hold       uint64 // last frame a finer neighbor needs this node split
}

type quadtree struct {
	eng   *engine
	pool  *pool.BlockPool
	cfg   QuadtreeConfig
	roots [6]*Node
	live  int
	frame uint64
	nudge float64 // less than the edge of the finest patch
}

func blockVertices(cfg QuadtreeConfig) int {
	if cfg.SkirtDepth > 0 {
		return surface.SkirtedVertexCount(cfg.PatchResolution)
	}
	return surface.GridVertexCount(cfg.PatchResolution)
}

func newQuadtree(eng *engine, bp *pool.BlockPool) (*quadtree, error) {
	t := &quadtree{
		eng:  eng,
		pool: bp,
		cfg:  eng.cfg.Quadtree,
	}
	t.nudge = math.Ldexp(0.5, -t.cfg.MaxLodLevels)
	for _, f := range Faces {
		origin, u, v := f.Bounds()
		root := t.newNode(nil, 0, newPatch(f, origin, u, v, t.cfg.MaxLodLevels, eng.cfg.Radius))
		h, err := bp.Allocate()
		if err != nil {
			return nil, fmt.Errorf("allocate root %s: %w", f, err)
		}
		root.reserved = h
		t.roots[f] = root
		t.request(root)
	}
	return t, nil
}

func (t *quadtree) newNode(parent *Node, quadrant int, p Patch) *Node {
	t.live++
	return &Node{
		Patch:    p,
		tree:     t,
		parent:   parent,
		quadrant: quadrant,
	}
}

// skirtDepth halves per level below the root, following the patch size.
func (t *quadtree) skirtDepth(level int) float32 {
	return float32(math.Ldexp(float64(t.cfg.SkirtDepth), level-t.cfg.MaxLodLevels))
}

func (t *quadtree) indices(base int) []uint32 {
	if t.cfg.SkirtDepth > 0 {
		return stitch.Skirted(t.cfg.PatchResolution, uint32(base))
	}
	return stitch.GridIndices(nil, t.cfg.PatchResolution, uint32(base))
}

// request queues a build of n into its reserved block.
func (t *quadtree) request(n *Node) {
	res := t.cfg.PatchResolution
	uStep, vStep := n.steps(res)
	req := build.Request{
		Level:        n.Level,
		Origin:       n.Origin,
		UStep:        uStep,
		VStep:        vStep,
		Resolution:   res,
		SkirtDepth:   t.skirtDepth(n.Level),
		ComputeError: !n.errKnown,
	}
	if err := t.eng.submit(n, req); err != nil {
		t.eng.log.Warn("queue patch build", zap.Stringer("face", n.face), lodField(n.Level), zap.Error(err))
		n.needsBuild = true
		return
	}
	n.building = true
	n.needsBuild = false
}

func (t *quadtree) update() {
	t.frame++
	for _, r := range t.roots {
		r.update()
	}
}

func (t *quadtree) draw(s *drawStats) {
	for _, r := range t.roots {
		if t.eng.visible[r.face] {
			r.draw(s)
		}
	}
}

func (t *quadtree) nodes() int {
	return t.live
}

func (t *quadtree) release() {
	for _, r := range t.roots {
		r.walk(func(n *Node) {
			t.eng.release(&n.geom)
			t.eng.releaseHandle(&n.reserved)
		})
	}
}

// walk visits n and every live or cached descendant.
func (n *Node) walk(fn func(*Node)) {
	fn(n)
	for _, k := range n.kids {
		if k != nil {
			k.walk(fn)
		}
	}
	for _, k := range n.cached {
		if k != nil {
			k.walk(fn)
		}
	}
}

func (n *Node) increaseDetailDistance() float32 {
	return IncreaseDetailDistance(n.err, n.tree.eng.factor)
}

// ready reports whether n is a drawn leaf that can start a split.
func (n *Node) ready() bool {
	return n.phase == leafStable && !n.building && !n.needsBuild && n.errKnown && n.Level > 0
}

func (n *Node) update() {
	t := n.tree
	switch n.phase {
	case leafStable:
		if n.needsBuild {
			t.request(n)
			return
		}
		if !n.ready() {
			return
		}
		if t.eng.distance(&n.Patch) < n.increaseDetailDistance() && n.allowSplit() {
			n.split()
		}
	case splitting:
		for _, k := range n.kids {
			if k.needsBuild {
				t.request(k)
			}
		}
	case split:
		if t.eng.distance(&n.Patch) > n.increaseDetailDistance() && n.safeToMerge() && n.allowMerge() && n.merge() {
			return
		}
		for _, k := range n.kids {
			k.update()
		}
	case merging:
		if n.needsBuild {
			t.request(n)
		}
	}
}

// split reserves a block per child, all or nothing, and queues their builds.
// The node keeps drawing until every child has geometry.
func (n *Node) split() {
	t := n.tree
	var blocks [4]pool.Handle
	for i := range blocks {
		h, err := t.pool.Allocate()
		if err != nil {
			for j := 0; j < i; j++ {
				t.eng.releaseHandle(&blocks[j])
			}
			t.eng.exhausted(err)
			return
		}
		blocks[i] = h
	}

	for i := range n.kids {
		k := n.cached[i]
		if k == nil {
			origin, u, v := n.quarter(i)
			k = t.newNode(n, i, newPatch(n.face, origin, u, v, n.Level-1, t.eng.cfg.Radius))
		}
		k.reserved = blocks[i]
		n.kids[i] = k
	}
	n.cached = [4]*Node{}
	n.phase = splitting
	for _, k := range n.kids {
		t.request(k)
	}
}

// merge reserves a block for the node itself and queues its rebuild. The
// children keep drawing until it lands.
func (n *Node) merge() bool {
	t := n.tree
	h, err := t.pool.Allocate()
	if err != nil {
		t.eng.exhausted(err)
		return false
	}
	n.reserved = h
	n.phase = merging
	t.request(n)
	return true
}

// safeToMerge reports whether the subtree below n has nothing in flight.
func (n *Node) safeToMerge() bool {
	if n.phase != split {
		return false
	}
	for _, k := range n.kids {
		switch k.phase {
		case leafStable:
			if k.building || k.needsBuild || k.reserved.Valid() {
				return false
			}
		case split:
			if !k.safeToMerge() {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func (n *Node) applyBuild(res *build.Result) {
	t := n.tree
	n.building = false
	if res.Err != nil {
		n.needsBuild = true
		return
	}

	h := n.reserved
	n.reserved = pool.Handle{}
	if err := t.eng.install(&n.Patch, h, res, t.indices(h.Offset)); err != nil {
		t.eng.log.Error("install patch geometry", zap.Stringer("face", n.face), lodField(n.Level), zap.Error(err))
		n.reserved = h
		n.needsBuild = true
		return
	}
	if res.Request.ComputeError {
		n.err = res.Error
		n.errKnown = true
	}

	switch {
	case n.phase == merging:
		n.finishMerge()
	case n.parent != nil && n.parent.phase == splitting:
		n.parent.finishSplit()
	}

	// A node nothing draws any more gives its block back.
	if !n.attached() {
		t.eng.release(&n.geom)
	}
}

// finishSplit swaps to the children once all four have geometry.
func (n *Node) finishSplit() {
	for _, k := range n.kids {
		if k.building || !k.geom.rendered() {
			return
		}
	}
	n.phase = split
	n.tree.eng.release(&n.geom)
}

// finishMerge drops the subtree's geometry and keeps the children for reuse.
func (n *Node) finishMerge() {
	for _, k := range n.kids {
		k.collapse()
	}
	n.cached = n.kids
	n.kids = [4]*Node{}
	n.phase = leafStable
}

func (n *Node) collapse() {
	if n.phase == split {
		for _, k := range n.kids {
			k.collapse()
		}
		n.cached = n.kids
		n.kids = [4]*Node{}
	}
	n.phase = leafStable
	n.tree.eng.release(&n.geom)
}

// attached reports whether n is part of the live tree.
func (n *Node) attached() bool {
	for c := n; c.parent != nil; c = c.parent {
		p := c.parent
		if p.phase == leafStable || p.kids[c.quadrant] != c {
			return false
		}
	}
	return true
}

func (n *Node) draw(s *drawStats) {
	switch n.phase {
	case leafStable, splitting:
		if n.geom.rendered() {
			n.tree.eng.draw(&n.Patch, s)
		}
	default:
		for _, k := range n.kids {
			k.draw(s)
		}
	}
}
