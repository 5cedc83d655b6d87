// Package build runs terrain vertex generation on one background worker.
//
// Requests are served strictly in submission order. The worker only reads the
// generator and writes into a checked-out result buffer; results are handed
// back through Drain, which the owning goroutine calls once per frame. The
// queue, the completed list and the buffer list are the only shared state.
package build

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/planetlod/internal/engine/terrain/surface"
)

var (
	// ErrClosed is returned by AddRequest after Close.
	ErrClosed = errors.New("build: queue closed")

	// ErrGenerator marks a result whose generation panicked.
	ErrGenerator = errors.New("build: generator failed")
)

// Request describes the geometry of one patch to generate. Ticket is opaque to
// the queue and identifies the requesting patch to the owner.
type Request struct {
	ID           uuid.UUID
	Ticket       uint64
	Level        int
	Origin       mgl64.Vec3
	UStep        mgl64.Vec3
	VStep        mgl64.Vec3
	Resolution   int
	SkirtDepth   float32 // zero disables skirts
	ComputeError bool
	Camera       mgl64.Vec3 // camera position when the request was made
}

// VertexCount is the number of vertices the request produces.
func (r Request) VertexCount() int {
	if r.SkirtDepth > 0 {
		return surface.SkirtedVertexCount(r.Resolution)
	}
	return surface.GridVertexCount(r.Resolution)
}

// Result is a finished request. Vertices is only valid during the Drain
// callback that delivers it.
type Result struct {
	Request  Request
	Vertices []surface.Vertex
	Centre   mgl64.Vec3
	Error    float32
	Err      error
	Elapsed  time.Duration
}

// Executor runs worker tasks. The queue submits one task per request and
// relies on the executor never running two tasks at once.
type Executor interface {
	Submit(task func())
	StopAndWait()
}

type pondExecutor struct {
	pool pond.Pool
}

// NewWorker returns the default executor: a pond pool capped at one goroutine.
func NewWorker() Executor {
	return &pondExecutor{pool: pond.NewPool(1)}
}

func (e *pondExecutor) Submit(task func()) {
	e.pool.Submit(task)
}

func (e *pondExecutor) StopAndWait() {
	e.pool.StopAndWait()
}

// Stats is a snapshot of queue activity.
type Stats struct {
	Depth      int    // requests waiting for the worker
	InFlight   int    // requests being generated
	Completed  int    // results waiting for Drain
	Submitted  uint64 // total requests accepted
	Applied    uint64 // total results drained
	Failed     uint64 // total results carrying Err
	Buffers    int    // result buffers allocated
	CheckedOut int    // result buffers currently in use
}

// Queue is a single-worker FIFO build queue.
type Queue struct {
	gen  surface.Generator
	exec Executor
	log  *zap.Logger

	mu        sync.Mutex
	requests  []Request
	completed []*Result
	free      [][]surface.Vertex
	closed    bool
	stats     Stats
}

// Option configures a Queue.
type Option func(*Queue)

// WithExecutor replaces the default single-goroutine worker.
func WithExecutor(e Executor) Option {
	return func(q *Queue) { q.exec = e }
}

// WithLogger sets the queue logger.
func WithLogger(l *zap.Logger) Option {
	return func(q *Queue) { q.log = l }
}

// NewQueue creates a queue that generates vertices with gen.
func NewQueue(gen surface.Generator, opts ...Option) *Queue {
	q := &Queue{
		gen: gen,
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.exec == nil {
		q.exec = NewWorker()
	}
	return q
}

// AddRequest enqueues req and wakes the worker. It never blocks on generation.
func (q *Queue) AddRequest(req Request) error {
	if req.Resolution < 2 {
		return fmt.Errorf("request %d: resolution %d below 2", req.Ticket, req.Resolution)
	}
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.requests = append(q.requests, req)
	q.stats.Submitted++
	q.mu.Unlock()

	q.exec.Submit(q.work)
	return nil
}

// work generates the request at the front of the queue. Each submitted task
// consumes exactly one request.
func (q *Queue) work() {
	q.mu.Lock()
	if len(q.requests) == 0 {
		q.mu.Unlock()
		return
	}
	req := q.requests[0]
	q.requests[0] = Request{}
	q.requests = q.requests[1:]
	q.stats.InFlight++
	buf := q.checkout(req.VertexCount())
	q.mu.Unlock()

	res := q.generate(req, buf)

	q.mu.Lock()
	q.stats.InFlight--
	q.completed = append(q.completed, res)
	q.mu.Unlock()
}

func (q *Queue) generate(req Request, buf []surface.Vertex) (res *Result) {
	start := time.Now()
	res = &Result{Request: req, Vertices: buf}
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("%w: %v", ErrGenerator, r)
		}
		res.Elapsed = time.Since(start)
	}()

	grid := buf[:surface.GridVertexCount(req.Resolution)]
	if req.ComputeError {
		res.Centre, res.Error = q.gen.GeneratePatchVerticesWithError(req.Origin, req.UStep, req.VStep, req.Resolution, grid)
	} else {
		res.Centre = q.gen.GeneratePatchVertices(req.Origin, req.UStep, req.VStep, req.Resolution, grid)
	}
	if req.SkirtDepth > 0 {
		surface.AppendSkirts(buf, req.Resolution, req.SkirtDepth)
	}
	return res
}

// checkout hands out a buffer of exactly n vertices. Must hold q.mu.
func (q *Queue) checkout(n int) []surface.Vertex {
	q.stats.CheckedOut++
	for i := len(q.free) - 1; i >= 0; i-- {
		if cap(q.free[i]) >= n {
			buf := q.free[i][:n]
			q.free[i] = q.free[len(q.free)-1]
			q.free[len(q.free)-1] = nil
			q.free = q.free[:len(q.free)-1]
			return buf
		}
	}
	q.stats.Buffers++
	return make([]surface.Vertex, n)
}

// checkin returns a result buffer for reuse. Must hold q.mu.
func (q *Queue) checkin(buf []surface.Vertex) {
	if buf == nil {
		return
	}
	q.stats.CheckedOut--
	q.free = append(q.free, buf[:0])
}

// Drain hands every completed result to apply in completion order, then checks
// the result buffers back in. Call it from the goroutine that owns the patches.
func (q *Queue) Drain(apply func(*Result)) int {
	q.mu.Lock()
	done := q.completed
	q.completed = nil
	q.mu.Unlock()

	for _, res := range done {
		if res.Err != nil {
			q.log.Warn("patch generation failed",
				zap.Uint64("ticket", res.Request.Ticket),
				zap.String("request", res.Request.ID.String()),
				zap.Error(res.Err),
			)
		}
		apply(res)
	}

	q.mu.Lock()
	for _, res := range done {
		q.checkin(res.Vertices)
		q.stats.Applied++
		if res.Err != nil {
			q.stats.Failed++
		}
		res.Vertices = nil
	}
	q.mu.Unlock()
	return len(done)
}

// Depth returns the number of requests not yet picked up by the worker.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.requests)
}

// Pending returns the number of requests whose results have not been drained.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.requests) + q.stats.InFlight + len(q.completed)
}

// Stats returns a snapshot of queue activity.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.stats
	s.Depth = len(q.requests)
	s.Completed = len(q.completed)
	return s
}

// Close rejects further requests and waits for the worker to finish what was
// already submitted. Undrained results are discarded.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.exec.StopAndWait()

	q.mu.Lock()
	q.completed = nil
	q.requests = nil
	q.mu.Unlock()
}
