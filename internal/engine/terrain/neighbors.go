package terrain

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/planetlod/internal/engine/terrain/stitch"
)

// box is an axis-aligned box in cube space. Patches are flat boxes: one axis
// has zero thickness.
type box struct {
	min, max mgl64.Vec3
}

func spanning(a, b mgl64.Vec3) box {
	var r box
	for k := 0; k < 3; k++ {
		r.min[k] = math.Min(a[k], b[k])
		r.max[k] = math.Max(a[k], b[k])
	}
	return r
}

func (p *Patch) box() box {
	return spanning(p.Origin, p.Origin.Add(p.U).Add(p.V))
}

// touches reports whether a and b share more than a point.
func (a box) touches(b box) bool {
	length := 0.0
	for k := 0; k < 3; k++ {
		lo := math.Max(a.min[k], b.min[k])
		hi := math.Min(a.max[k], b.max[k])
		if lo > hi {
			return false
		}
		length = math.Max(length, hi-lo)
	}
	return length > 0
}

// edge returns the end points of one side of the patch and the in-plane
// direction pointing away from it.
func (p *Patch) edge(e stitch.Edge) (a, b, out mgl64.Vec3) {
	u, v := p.U.Normalize(), p.V.Normalize()
	far := p.Origin.Add(p.U).Add(p.V)
	switch e {
	case stitch.Bottom:
		return p.Origin, p.Origin.Add(p.U), v.Mul(-1)
	case stitch.Right:
		return p.Origin.Add(p.U), far, u
	case stitch.Top:
		return p.Origin.Add(p.V), far, v
	default:
		return p.Origin, p.Origin.Add(p.V), u.Mul(-1)
	}
}

// faceOnAxis returns the face whose normal points along axis k with the sign
// of s.
func faceOnAxis(k int, s float64) Face {
	if s > 0 {
		return Face(2 * k)
	}
	return Face(2*k + 1)
}

// across returns the root to search and the region just beyond edge e of n.
// Inside a face the edge is pushed outward by less than the finest patch;
// on a face border the edge itself is searched on the adjoining face.
func (t *quadtree) across(n *Node, e stitch.Edge) (*Node, box) {
	a, b, out := n.edge(e)
	shift := out.Mul(t.nudge)
	mid := a.Add(b).Mul(0.5).Add(shift)
	for k := 0; k < 3; k++ {
		if math.Abs(mid[k]) > 1 {
			return t.roots[faceOnAxis(k, mid[k])], spanning(a, b)
		}
	}
	return t.roots[n.face], spanning(a.Add(shift), b.Add(shift))
}

// coarse descends only into nodes whose children draw for good.
func coarse(n *Node) bool { return n.phase == split }

// fine descends into any node with children, pending or draining.
func fine(n *Node) bool { return n.kids[0] != nil }

// leaves calls fn for the outermost nodes under n that touch r and that
// deeper does not descend into. With hold set every node visited is kept from
// merging through the next frame.
func (n *Node) leaves(r box, deeper func(*Node) bool, hold bool, fn func(*Node)) {
	if !n.Patch.box().touches(r) {
		return
	}
	if hold {
		n.hold = n.tree.frame + 1
	}
	if deeper(n) {
		for _, k := range n.kids {
			k.leaves(r, deeper, hold, fn)
		}
		return
	}
	fn(n)
}

// allowSplit reports whether n's children would stay within one level of
// every neighbor. Coarser neighbors that are idle leaves are split first.
func (n *Node) allowSplit() bool {
	t := n.tree
	ok := true
	for _, e := range stitch.Edges {
		root, r := t.across(n, e)
		root.leaves(r, coarse, true, func(nb *Node) {
			if nb.Level <= n.Level {
				return
			}
			ok = false
			if nb.phase == leafStable {
				nb.forceSplit()
			}
		})
	}
	return ok
}

// forceSplit splits a leaf a finer neighbor is waiting on, regardless of the
// camera.
func (n *Node) forceSplit() {
	if !n.allowSplit() || !n.ready() {
		return
	}
	n.split()
}

// allowMerge reports whether every neighbor would stay within one level of n
// once it draws itself again.
func (n *Node) allowMerge() bool {
	t := n.tree
	if n.hold >= t.frame {
		return false
	}
	ok := true
	for _, e := range stitch.Edges {
		root, r := t.across(n, e)
		root.leaves(r, fine, false, func(nb *Node) {
			if nb.Level < n.Level-1 {
				ok = false
			}
		})
	}
	return ok
}
