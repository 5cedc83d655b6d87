// Package heightfield provides a procedural terrain generator for a spherical
// planet: fractal value noise sampled on the unit sphere, displacing the
// surface along its radius.
package heightfield

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/planetlod/internal/engine/terrain/surface"
)

// Params configures the generator.
type Params struct {
	Radius      float64 // planet radius in world units
	Amplitude   float64 // maximum displacement
	Frequency   float64 // base noise frequency on the unit sphere
	Octaves     int
	Persistence float64 // amplitude falloff per octave
	Lacunarity  float64 // frequency growth per octave
	Seed        int64
}

// DefaultParams returns a small rocky planet.
func DefaultParams() Params {
	return Params{
		Radius:      6000,
		Amplitude:   120,
		Frequency:   2.5,
		Octaves:     8,
		Persistence: 0.5,
		Lacunarity:  2.0,
		Seed:        1,
	}
}

// Generator implements surface.Generator. It holds no mutable state and is
// safe to call from the build worker.
type Generator struct {
	p    Params
	norm float64 // sum of octave amplitudes
}

var _ surface.Generator = (*Generator)(nil)

// New creates a generator.
func New(p Params) *Generator {
	if p.Octaves < 1 {
		p.Octaves = 1
	}
	norm, amp := 0.0, 1.0
	for i := 0; i < p.Octaves; i++ {
		norm += amp
		amp *= p.Persistence
	}
	return &Generator{p: p, norm: norm}
}

// Params returns the generator configuration.
func (g *Generator) Params() Params {
	return g.p
}

// Height returns the displacement at a unit direction, in [-Amplitude, Amplitude].
func (g *Generator) Height(dir mgl64.Vec3) float64 {
	sum, amp, freq := 0.0, 1.0, g.p.Frequency
	for i := 0; i < g.p.Octaves; i++ {
		sum += amp * valueNoise(dir.Mul(freq), g.p.Seed+int64(i))
		amp *= g.p.Persistence
		freq *= g.p.Lacunarity
	}
	return g.p.Amplitude * sum / g.norm
}

// Surface maps a cube-face point to its displaced planet-space position.
func (g *Generator) Surface(cube mgl64.Vec3) mgl64.Vec3 {
	dir := cube.Normalize()
	return dir.Mul(g.p.Radius + g.Height(dir))
}

// GeneratePatchVertices fills out row-major with displaced positions and
// normals and returns the centroid.
func (g *Generator) GeneratePatchVertices(origin, uStep, vStep mgl64.Vec3, resolution int, out []surface.Vertex) mgl64.Vec3 {
	var sum mgl64.Vec3
	du := uStep.Mul(0.25)
	dv := vStep.Mul(0.25)
	for y := 0; y < resolution; y++ {
		row := origin.Add(vStep.Mul(float64(y)))
		for x := 0; x < resolution; x++ {
			cube := row.Add(uStep.Mul(float64(x)))
			p := g.Surface(cube)
			sum = sum.Add(p)

			// Normal from two forward samples; U x V points away from the planet.
			pu := g.Surface(cube.Add(du)).Sub(p)
			pv := g.Surface(cube.Add(dv)).Sub(p)
			n := pu.Cross(pv)
			if l := n.Len(); l > 0 {
				n = n.Mul(1 / l)
			} else {
				n = p.Normalize()
			}

			out[y*resolution+x] = surface.Vertex{
				Position: [3]float32{float32(p[0]), float32(p[1]), float32(p[2])},
				Normal:   [3]float32{float32(n[0]), float32(n[1]), float32(n[2])},
			}
		}
	}
	return sum.Mul(1 / float64(resolution*resolution))
}

// GeneratePatchVerticesWithError also measures the deviation from the next
// finer level.
func (g *Generator) GeneratePatchVerticesWithError(origin, uStep, vStep mgl64.Vec3, resolution int, out []surface.Vertex) (mgl64.Vec3, float32) {
	centre := g.GeneratePatchVertices(origin, uStep, vStep, resolution, out)
	return centre, surface.MidpointError(g, origin, uStep, vStep, resolution, out[:resolution*resolution])
}

// valueNoise returns smooth noise in [-1, 1] by trilinear interpolation of
// hashed lattice values.
func valueNoise(p mgl64.Vec3, seed int64) float64 {
	fx, fy, fz := math.Floor(p[0]), math.Floor(p[1]), math.Floor(p[2])
	x, y, z := int64(fx), int64(fy), int64(fz)

	// Fractional position within the cell, eased.
	tx := fade(p[0] - fx)
	ty := fade(p[1] - fy)
	tz := fade(p[2] - fz)

	// Lerp along x on the four cell edges, then along y, then z.
	c00 := lerp(lattice(x, y, z, seed), lattice(x+1, y, z, seed), tx)
	c10 := lerp(lattice(x, y+1, z, seed), lattice(x+1, y+1, z, seed), tx)
	c01 := lerp(lattice(x, y, z+1, seed), lattice(x+1, y, z+1, seed), tx)
	c11 := lerp(lattice(x, y+1, z+1, seed), lattice(x+1, y+1, z+1, seed), tx)

	near := lerp(c00, c10, ty)
	far := lerp(c01, c11, ty)
	return lerp(near, far, tz)
}

// lattice hashes a lattice point to [-1, 1].
func lattice(x, y, z, seed int64) float64 {
	h := uint64(x)*0x9E3779B97F4A7C15 ^ uint64(y)*0xC2B2AE3D27D4EB4F ^
		uint64(z)*0x165667B19E3779F9 ^ uint64(seed)*0xD6E8FEB86659FD93
	h ^= h >> 33
	h *= 0xFF51AFD7ED558CCD
	h ^= h >> 33
	h *= 0xC4CEB9FE1A85EC53
	h ^= h >> 33
	return float64(h>>11)/float64(1<<53)*2 - 1
}

func fade(t float64) float64 {
	return t * t * (3 - 2*t)
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
