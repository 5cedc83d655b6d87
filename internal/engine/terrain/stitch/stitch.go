// Package stitch builds triangle-list index buffers for terrain patches and
// hides cracks between patches of differing detail, either with skirts or with
// connecting strips.
//
// Grid vertices are laid out row-major (index = y*n + x) with x running along
// the patch U axis and y along V. Skirt vertices follow the grid, one row of n
// per edge in Edge order.
package stitch

import "fmt"

// Edge identifies a side of a patch.
type Edge int

const (
	Bottom Edge = iota // y = 0
	Right              // x = n-1
	Top                // y = n-1
	Left               // x = 0
)

// Edges lists all four edges in index order.
var Edges = [4]Edge{Bottom, Right, Top, Left}

func (e Edge) String() string {
	switch e {
	case Bottom:
		return "bottom"
	case Right:
		return "right"
	case Top:
		return "top"
	case Left:
		return "left"
	}
	return fmt.Sprintf("edge(%d)", int(e))
}

// Opposite returns the edge facing e on the same patch.
func (e Edge) Opposite() Edge {
	return (e + 2) % 4
}

// EdgeVertex maps an edge-local coordinate to a grid index. t runs along the
// edge counter-clockwise around the patch, d runs inward from the edge. Every
// edge frame is a rotation of the grid frame, so winding is preserved.
func EdgeVertex(n int, e Edge, t, d int) int {
	last := n - 1
	var x, y int
	switch e {
	case Bottom:
		x, y = t, d
	case Right:
		x, y = last-d, t
	case Top:
		x, y = last-t, last-d
	case Left:
		x, y = d, last-t
	}
	return y*n + x
}

// SkirtVertex returns the index of the skirt vertex hanging below edge vertex t.
func SkirtVertex(n int, e Edge, t int) int {
	return n*n + int(e)*n + t
}

// GridIndices emits two counter-clockwise triangles per grid cell.
func GridIndices(dst []uint32, n int, base uint32) []uint32 {
	return appendCells(dst, n, base, 0, n-1)
}

// appendCells emits the cells whose lower-left corner lies in [lo, hi) on both axes.
func appendCells(dst []uint32, n int, base uint32, lo, hi int) []uint32 {
	for y := lo; y < hi; y++ {
		for x := lo; x < hi; x++ {
			i0 := base + uint32(y*n+x)
			i1 := i0 + 1
			i2 := i0 + uint32(n)
			i3 := i2 + 1
			dst = append(dst, i0, i1, i2, i2, i1, i3)
		}
	}
	return dst
}

// SkirtIndices connects each edge row to its skirt row.
func SkirtIndices(dst []uint32, n int, base uint32) []uint32 {
	for _, e := range Edges {
		for t := 0; t < n-1; t++ {
			e0 := base + uint32(EdgeVertex(n, e, t, 0))
			e1 := base + uint32(EdgeVertex(n, e, t+1, 0))
			s0 := base + uint32(SkirtVertex(n, e, t))
			s1 := base + uint32(SkirtVertex(n, e, t+1))
			dst = append(dst, e0, s0, s1, e0, s1, e1)
		}
	}
	return dst
}

// Skirted returns the full index buffer of a skirted patch: grid first, then
// the four skirts.
func Skirted(n int, base uint32) []uint32 {
	dst := make([]uint32, 0, SkirtedIndexCount(n))
	dst = GridIndices(dst, n, base)
	return SkirtIndices(dst, n, base)
}

// SkirtedIndexCount is the index count produced by Skirted.
func SkirtedIndexCount(n int) int {
	return 6*(n-1)*(n-1) + 4*6*(n-1)
}

// Deltas holds, per edge, how many levels coarser the neighbor across that
// edge is. Zero means same detail, finer, or no neighbor.
type Deltas [4]int

// Stitched returns the index buffer of a patch whose border rows are bent to
// meet coarser neighbors. The interior is a plain grid; each edge is a strip
// between the outer row and the first inner row. Requires n >= 3.
func Stitched(n int, base uint32, deltas Deltas) []uint32 {
	dst := make([]uint32, 0, 6*(n-1)*(n-1))
	dst = appendCells(dst, n, base, 1, n-2)
	for _, e := range Edges {
		dst = ConnectingStrip(dst, n, base, e, deltas[e])
	}
	return dst
}

// ConnectingStrip emits the zig-zag between the inner row (t = 1..n-2) and the
// outer row of edge e, using only every errorStep-th outer vertex where
// errorStep = 2^delta. Outer vertices kept are exactly the ones the coarser
// neighbor shares, so both corners and every kept vertex line up.
func ConnectingStrip(dst []uint32, n int, base uint32, e Edge, delta int) []uint32 {
	errorStep := 1
	for delta > 0 && errorStep*2 <= n-1 && (n-1)%(errorStep*2) == 0 {
		errorStep *= 2
		delta--
	}
	outerLast := (n - 1) / errorStep
	innerLast := n - 2

	outer := func(k int) uint32 { return base + uint32(EdgeVertex(n, e, k*errorStep, 0)) }
	inner := func(j int) uint32 { return base + uint32(EdgeVertex(n, e, j, 1)) }

	// a walks the kept outer vertices, b the inner row. The accumulator
	// compares the next outer position against the midpoint of the current
	// inner segment, in half units to stay integral.
	a, b := 0, 1
	for a < outerLast || b < innerLast {
		var advanceOuter bool
		switch {
		case b == innerLast:
			advanceOuter = true
		case a == outerLast:
			advanceOuter = false
		default:
			advanceOuter = 2*(a+1)*errorStep < 2*b+1
		}
		if advanceOuter {
			dst = append(dst, outer(a), outer(a+1), inner(b))
			a++
		} else {
			dst = append(dst, outer(a), inner(b+1), inner(b))
			b++
		}
	}
	return dst
}

// Triangles returns the number of triangles in a triangle-list index buffer.
func Triangles(indices []uint32) int {
	return len(indices) / 3
}
