package terrain

import (
	"sync/atomic"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/planetlod/internal/engine/terrain/backend"
	"github.com/Faultbox/planetlod/internal/engine/terrain/build"
	"github.com/Faultbox/planetlod/internal/engine/terrain/surface"
)

// sphereGen projects cube points onto a smooth sphere. A zero err reports the
// real midpoint error.
type sphereGen struct {
	radius   float64
	err      float32
	errCalls atomic.Int64
	fail     atomic.Int64 // generations left to panic
}

func (g *sphereGen) GeneratePatchVertices(origin, uStep, vStep mgl64.Vec3, res int, out []surface.Vertex) mgl64.Vec3 {
	if g.fail.Add(-1) >= 0 {
		panic("generator failure")
	}
	for y := 0; y < res; y++ {
		for x := 0; x < res; x++ {
			d := origin.Add(uStep.Mul(float64(x))).Add(vStep.Mul(float64(y))).Normalize()
			p := d.Mul(g.radius)
			out[y*res+x] = surface.Vertex{
				Position: [3]float32{float32(p[0]), float32(p[1]), float32(p[2])},
				Normal:   [3]float32{float32(d[0]), float32(d[1]), float32(d[2])},
			}
		}
	}
	return surface.Centroid(out[:res*res])
}

func (g *sphereGen) GeneratePatchVerticesWithError(origin, uStep, vStep mgl64.Vec3, res int, out []surface.Vertex) (mgl64.Vec3, float32) {
	g.errCalls.Add(1)
	c := g.GeneratePatchVertices(origin, uStep, vStep, res, out)
	if g.err != 0 {
		return c, g.err
	}
	return c, surface.MidpointError(g, origin, uStep, vStep, res, out[:res*res])
}

type inlineExecutor struct{}

func (inlineExecutor) Submit(task func()) { task() }
func (inlineExecutor) StopAndWait()       {}

// manualExecutor holds tasks until the test runs them.
type manualExecutor struct {
	tasks []func()
}

func (e *manualExecutor) Submit(task func()) { e.tasks = append(e.tasks, task) }
func (e *manualExecutor) StopAndWait()       {}

func (e *manualExecutor) run(n int) {
	if n < 0 || n > len(e.tasks) {
		n = len(e.tasks)
	}
	tasks := e.tasks[:n]
	e.tasks = e.tasks[n:]
	for _, task := range tasks {
		task()
	}
}

func testCamera(pos mgl64.Vec3) Camera {
	return Camera{Position: pos, FovY: 60, Near: 1, ViewportHeight: 600}
}

func quadConfig() Config {
	return Config{
		Mode:       ModeQuadtree,
		Radius:     50,
		PixelError: 4,
		Quadtree: QuadtreeConfig{
			MaxLodLevels:    2,
			PatchResolution: 5,
			PoolBlocks:      256,
			SkirtDepth:      1,
		},
	}
}

func gridConfig() Config {
	return Config{
		Mode:       ModeGrid,
		Radius:     50,
		PixelError: 0.5,
		Grid: GridConfig{
			MaxLodLevels:     2,
			PatchResolution:  9,
			GridSize:         2,
			PoolSizePerLevel: 24,
		},
	}
}

func newTestManager(t *testing.T, cfg Config, gen surface.Generator, exec build.Executor) (*Manager, *backend.Recorder) {
	t.Helper()
	rec := backend.NewRecorder()
	m, err := NewManager(cfg, gen, rec, WithExecutor(exec))
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m, rec
}

func frame(m *Manager, rec *backend.Recorder, cam Camera) {
	m.Update(cam)
	rec.BeginFrame()
	m.Draw()
}

type edgeKey [2][3]float32

func less(a, b [3]float32) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// openEdges returns the number of triangle edges not used exactly twice.
func openEdges(tris []backend.Triangle) int {
	count := make(map[edgeKey]int, len(tris)*3/2)
	for _, tri := range tris {
		for i := 0; i < 3; i++ {
			a, b := tri[i], tri[(i+1)%3]
			if less(b, a) {
				a, b = b, a
			}
			count[edgeKey{a, b}]++
		}
	}
	open := 0
	for _, c := range count {
		if c != 2 {
			open++
		}
	}
	return open
}

// descent returns camera distances from far to near and back.
func descent(far, near float64, steps int) []float64 {
	var out []float64
	for i := 0; i <= steps; i++ {
		out = append(out, far+(near-far)*float64(i)/float64(steps))
	}
	for i := steps - 1; i >= 0; i-- {
		out = append(out, out[i])
	}
	return out
}
