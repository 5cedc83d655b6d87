package heightfield

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/planetlod/internal/engine/terrain/surface"
)

func TestHeight_BoundedAndDeterministic(t *testing.T) {
	g := New(DefaultParams())
	dirs := []mgl64.Vec3{
		{1, 0, 0}, {0, 1, 0}, {0, 0, -1},
		mgl64.Vec3{1, 1, 1}.Normalize(),
		mgl64.Vec3{-0.3, 0.8, 0.2}.Normalize(),
	}
	for _, d := range dirs {
		h := g.Height(d)
		assert.LessOrEqual(t, h, g.Params().Amplitude)
		assert.GreaterOrEqual(t, h, -g.Params().Amplitude)
		assert.Equal(t, h, New(DefaultParams()).Height(d))
	}
}

func TestHeight_SeedChangesTerrain(t *testing.T) {
	a := DefaultParams()
	b := DefaultParams()
	b.Seed = 99
	d := mgl64.Vec3{0.2, 0.9, -0.4}.Normalize()
	assert.NotEqual(t, New(a).Height(d), New(b).Height(d))
}

func TestGeneratePatchVertices(t *testing.T) {
	p := DefaultParams()
	g := New(p)
	res := 9
	step := 2.0 / float64(res-1)
	out := make([]surface.Vertex, surface.GridVertexCount(res))

	centre, err := g.GeneratePatchVerticesWithError(
		mgl64.Vec3{1, -1, -1}, mgl64.Vec3{0, step, 0}, mgl64.Vec3{0, 0, step}, res, out)

	assert.Positive(t, err)
	assert.Greater(t, centre.X(), 0.0, "+X face centroid lies on +X side")

	for i, v := range out {
		pos := mgl32.Vec3(v.Position)
		r := float64(pos.Len())
		require.InDelta(t, p.Radius, r, p.Amplitude+1, "vertex %d", i)
		assert.Positive(t, mgl32.Vec3(v.Normal).Dot(pos.Normalize()), "normal %d points inward", i)
	}
}

func TestGeneratePatchVertices_SharedEdgesMatch(t *testing.T) {
	g := New(DefaultParams())
	res := 5
	step := 1.0 / float64(res-1)

	// Two neighbouring quadrants of the +Z face sharing the x = 0 line.
	left := make([]surface.Vertex, res*res)
	right := make([]surface.Vertex, res*res)
	u := mgl64.Vec3{step, 0, 0}
	v := mgl64.Vec3{0, step, 0}
	g.GeneratePatchVertices(mgl64.Vec3{-1, -1, 1}, u, v, res, left)
	g.GeneratePatchVertices(mgl64.Vec3{0, -1, 1}, u, v, res, right)

	for y := 0; y < res; y++ {
		assert.Equal(t, left[y*res+res-1].Position, right[y*res].Position)
	}
}
