// Package surface defines the terrain vertex layout, the contract a terrain
// generator must satisfy, and the per-patch helpers shared by every generator:
// skirt extrusion and the midpoint error metric.
package surface

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/planetlod/internal/engine/terrain/stitch"
)

// Vertex is a terrain vertex as uploaded to the GPU.
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
}

// VertexSize is the byte size of one Vertex.
const VertexSize = 6 * 4

// Generator converts patch grids in cube-face space into displaced planet-space
// vertices. Implementations must be pure functions of their arguments: they
// are called from the background build worker.
type Generator interface {
	// GeneratePatchVertices fills out[:resolution*resolution] row-major and
	// returns the planet-space centroid of the generated points.
	GeneratePatchVertices(origin, uStep, vStep mgl64.Vec3, resolution int, out []Vertex) mgl64.Vec3

	// GeneratePatchVerticesWithError does the same and also reports the
	// maximum deviation from the next finer level of detail.
	GeneratePatchVerticesWithError(origin, uStep, vStep mgl64.Vec3, resolution int, out []Vertex) (mgl64.Vec3, float32)
}

// GridVertexCount is the number of vertices in a patch grid without skirts.
func GridVertexCount(resolution int) int {
	return resolution * resolution
}

// SkirtedVertexCount is the number of vertices in a patch grid plus one skirt
// row per edge.
func SkirtedVertexCount(resolution int) int {
	return resolution*resolution + 4*resolution
}

// AppendSkirts writes the skirt rows after the grid in out. Each skirt vertex
// is its edge vertex pushed towards the planet centre by depth, keeping the
// edge normal so lighting stays continuous over the seam.
func AppendSkirts(out []Vertex, resolution int, depth float32) {
	for _, e := range stitch.Edges {
		for t := 0; t < resolution; t++ {
			src := out[stitch.EdgeVertex(resolution, e, t, 0)]
			p := mgl32.Vec3(src.Position)
			down := p.Normalize().Mul(depth)
			out[stitch.SkirtVertex(resolution, e, t)] = Vertex{
				Position: p.Sub(down),
				Normal:   src.Normal,
			}
		}
	}
}

// Centroid averages the positions of a generated grid in double precision.
func Centroid(vertices []Vertex) mgl64.Vec3 {
	var sum mgl64.Vec3
	if len(vertices) == 0 {
		return sum
	}
	for i := range vertices {
		p := vertices[i].Position
		sum = sum.Add(mgl64.Vec3{float64(p[0]), float64(p[1]), float64(p[2])})
	}
	return sum.Mul(1 / float64(len(vertices)))
}

// MidpointError measures how far the next finer level of detail departs from
// this patch: the finer grid is generated at half steps and each point that
// the coarse grid does not contain is compared with the bilinear
// interpolation of its coarse cell.
func MidpointError(gen Generator, origin, uStep, vStep mgl64.Vec3, resolution int, grid []Vertex) float32 {
	fineRes := 2*resolution - 1
	fine := make([]Vertex, GridVertexCount(fineRes))
	gen.GeneratePatchVertices(origin, uStep.Mul(0.5), vStep.Mul(0.5), fineRes, fine)

	var maxErr float32
	for fy := 0; fy < fineRes; fy++ {
		for fx := 0; fx < fineRes; fx++ {
			if fx%2 == 0 && fy%2 == 0 {
				continue
			}
			cx, cy := fx/2, fy/2
			if cx == resolution-1 {
				cx--
			}
			if cy == resolution-1 {
				cy--
			}
			tx := float32(fx-2*cx) * 0.5
			ty := float32(fy-2*cy) * 0.5

			p00 := mgl32.Vec3(grid[cy*resolution+cx].Position)
			p10 := mgl32.Vec3(grid[cy*resolution+cx+1].Position)
			p01 := mgl32.Vec3(grid[(cy+1)*resolution+cx].Position)
			p11 := mgl32.Vec3(grid[(cy+1)*resolution+cx+1].Position)

			// Bottom and top rows first, then between them.
			bottom := p00.Mul(1 - tx).Add(p10.Mul(tx))
			top := p01.Mul(1 - tx).Add(p11.Mul(tx))
			interp := bottom.Mul(1 - ty).Add(top.Mul(ty))

			d := mgl32.Vec3(fine[fy*fineRes+fx].Position).Sub(interp)
			dist := math32.Sqrt(d.Dot(d))
			maxErr = math32.Max(maxErr, dist)
		}
	}
	return maxErr
}
