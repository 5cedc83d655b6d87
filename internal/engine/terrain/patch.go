package terrain

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/planetlod/internal/engine/terrain/backend"
	"github.com/Faultbox/planetlod/internal/engine/terrain/pool"
)

// Patch is one rectangle of a cube face drawn with a single index buffer.
type Patch struct {
	Origin mgl64.Vec3 // cube-face corner
	U, V   mgl64.Vec3 // full edge vectors in cube-face space
	Level  int
	Centre mgl64.Vec3 // planet space, from the last generated vertices

	face Face
	geom geometry
}

// geometry is what a patch holds while it can be drawn.
type geometry struct {
	handle pool.Handle
	ib     backend.IndexBuffer
	res    int
	level  int
}

func (g *geometry) rendered() bool {
	return g.ib != nil
}

func newPatch(face Face, origin, u, v mgl64.Vec3, level int, radius float64) Patch {
	return Patch{
		Origin: origin,
		U:      u,
		V:      v,
		Level:  level,
		Centre: estimateCentre(origin, u, v, radius),
		face:   face,
	}
}

// Face returns the cube face the patch lies on.
func (p *Patch) Face() Face {
	return p.face
}

// Rendered reports whether the patch holds geometry.
func (p *Patch) Rendered() bool {
	return p.geom.rendered()
}

// Handle returns the pool block backing the patch's geometry.
func (p *Patch) Handle() pool.Handle {
	return p.geom.handle
}

// steps returns the cube-space spacing between vertices at a resolution.
func (p *Patch) steps(res int) (u, v mgl64.Vec3) {
	s := 1 / float64(res-1)
	return p.U.Mul(s), p.V.Mul(s)
}

// quarter returns the bounds of one quadrant: i&1 selects the U half, i>>1
// the V half.
func (p *Patch) quarter(i int) (origin, u, v mgl64.Vec3) {
	u = p.U.Mul(0.5)
	v = p.V.Mul(0.5)
	origin = p.Origin.Add(u.Mul(float64(i & 1))).Add(v.Mul(float64(i >> 1)))
	return origin, u, v
}
