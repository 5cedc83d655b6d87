package build

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/planetlod/internal/engine/terrain/surface"
)

// planeGen lays the grid out on the cube face itself.
type planeGen struct {
	panicOn int // resolution that triggers a panic
	calls   int
	mu      sync.Mutex
}

func (g *planeGen) GeneratePatchVertices(origin, uStep, vStep mgl64.Vec3, res int, out []surface.Vertex) mgl64.Vec3 {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	if res == g.panicOn {
		panic("boom")
	}
	for y := 0; y < res; y++ {
		for x := 0; x < res; x++ {
			p := origin.Add(uStep.Mul(float64(x))).Add(vStep.Mul(float64(y)))
			out[y*res+x] = surface.Vertex{
				Position: [3]float32{float32(p[0]), float32(p[1]), float32(p[2])},
				Normal:   [3]float32{1, 0, 0},
			}
		}
	}
	return surface.Centroid(out[:res*res])
}

func (g *planeGen) GeneratePatchVerticesWithError(origin, uStep, vStep mgl64.Vec3, res int, out []surface.Vertex) (mgl64.Vec3, float32) {
	return g.GeneratePatchVertices(origin, uStep, vStep, res, out), 2.5
}

// inline runs each task as soon as it is submitted.
type inline struct{}

func (inline) Submit(task func()) { task() }
func (inline) StopAndWait()       {}

// manual holds tasks until the test runs them.
type manual struct {
	tasks []func()
}

func (m *manual) Submit(task func()) { m.tasks = append(m.tasks, task) }
func (m *manual) StopAndWait()       { m.RunAll() }
func (m *manual) RunAll() {
	for len(m.tasks) > 0 {
		task := m.tasks[0]
		m.tasks = m.tasks[1:]
		task()
	}
}

func request(ticket uint64, res int) Request {
	step := 2.0 / float64(res-1)
	return Request{
		Ticket:     ticket,
		Origin:     mgl64.Vec3{1, -1, -1},
		UStep:      mgl64.Vec3{0, step, 0},
		VStep:      mgl64.Vec3{0, 0, step},
		Resolution: res,
	}
}

func TestQueue_InlineRoundTrip(t *testing.T) {
	q := NewQueue(&planeGen{}, WithExecutor(inline{}))

	req := request(1, 5)
	req.ComputeError = true
	req.SkirtDepth = 0.5
	require.NoError(t, q.AddRequest(req))

	var got []*Result
	n := q.Drain(func(res *Result) {
		assert.Len(t, res.Vertices, surface.SkirtedVertexCount(5))
		got = append(got, res)
	})
	require.Equal(t, 1, n)
	res := got[0]
	assert.NoError(t, res.Err)
	assert.Equal(t, float32(2.5), res.Error)
	assert.InDelta(t, 1.0, res.Centre.X(), 1e-6)
	assert.NotEqual(t, uuid.Nil, res.Request.ID)
	assert.Nil(t, res.Vertices, "buffer must be checked in after drain")
}

func TestQueue_ReusesBuffers(t *testing.T) {
	q := NewQueue(&planeGen{}, WithExecutor(inline{}))
	for i := 0; i < 10; i++ {
		require.NoError(t, q.AddRequest(request(uint64(i), 9)))
		q.Drain(func(*Result) {})
	}
	s := q.Stats()
	assert.Equal(t, 1, s.Buffers)
	assert.Zero(t, s.CheckedOut)
	assert.Equal(t, uint64(10), s.Applied)
}

func TestQueue_FIFOOnWorker(t *testing.T) {
	q := NewQueue(&planeGen{})
	defer q.Close()

	const total = 64
	for i := 0; i < total; i++ {
		require.NoError(t, q.AddRequest(request(uint64(i), 9)))
	}

	var order []uint64
	require.Eventually(t, func() bool {
		q.Drain(func(res *Result) {
			order = append(order, res.Request.Ticket)
		})
		return len(order) == total
	}, 5*time.Second, time.Millisecond)

	for i, ticket := range order {
		assert.Equal(t, uint64(i), ticket)
	}
	assert.Zero(t, q.Pending())
}

func TestQueue_GeneratorPanicIsContained(t *testing.T) {
	gen := &planeGen{panicOn: 3}
	q := NewQueue(gen, WithExecutor(inline{}))

	require.NoError(t, q.AddRequest(request(1, 3)))
	require.NoError(t, q.AddRequest(request(2, 5)))

	var errs []error
	q.Drain(func(res *Result) { errs = append(errs, res.Err) })
	require.Len(t, errs, 2)
	assert.True(t, errors.Is(errs[0], ErrGenerator))
	assert.NoError(t, errs[1])

	s := q.Stats()
	assert.Equal(t, uint64(1), s.Failed)
	assert.Zero(t, s.CheckedOut)
}

func TestQueue_DepthAndPending(t *testing.T) {
	exec := &manual{}
	q := NewQueue(&planeGen{}, WithExecutor(exec))

	for i := 0; i < 3; i++ {
		require.NoError(t, q.AddRequest(request(uint64(i), 5)))
	}
	assert.Equal(t, 3, q.Depth())
	assert.Equal(t, 3, q.Pending())

	exec.tasks[0]()
	exec.tasks = exec.tasks[1:]
	s := q.Stats()
	assert.Equal(t, 2, s.Depth)
	assert.Equal(t, 1, s.Completed)

	exec.RunAll()
	assert.Equal(t, 3, q.Drain(func(*Result) {}))
	assert.Zero(t, q.Pending())
}

func TestQueue_RejectsBadRequests(t *testing.T) {
	q := NewQueue(&planeGen{}, WithExecutor(inline{}))
	assert.Error(t, q.AddRequest(request(1, 1)))

	q.Close()
	err := q.AddRequest(request(2, 5))
	assert.True(t, errors.Is(err, ErrClosed))
}
