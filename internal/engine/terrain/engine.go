package terrain

import (
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/planetlod/internal/engine/terrain/backend"
	"github.com/Faultbox/planetlod/internal/engine/terrain/build"
	"github.com/Faultbox/planetlod/internal/engine/terrain/pool"
	"github.com/Faultbox/planetlod/internal/engine/terrain/surface"
)

// vertexPool is the part of BlockPool and LevelPool shared by both strategies.
type vertexPool interface {
	Attach(vs backend.VertexStore)
	Release(h pool.Handle) error
	Write(h pool.Handle, vertices []surface.Vertex) error
	Capacity() int
	Stats() pool.Stats
}

// target receives the result of a build it requested.
type target interface {
	applyBuild(res *build.Result)
}

// strategy is a level of detail policy over the six faces.
type strategy interface {
	update()
	draw(s *drawStats)
	nodes() int
	release()
}

type drawStats struct {
	patches   int
	triangles int
	finest    int
}

// lodField tags a log entry with a patch's level of detail. The key stays
// clear of the encoder's severity key.
func lodField(level int) zap.Field {
	return zap.Int("lod", level)
}

const (
	warnInterval   = time.Second
	queueWarnDepth = 512
)

// engine is the state both strategies share: pool, queue, backend and the
// ticket table routing build results back to patches.
type engine struct {
	cfg   Config
	be    backend.Backend
	store backend.VertexStore
	pool  vertexPool
	queue *build.Queue
	log   *zap.Logger

	targets map[uint64]target
	ticket  uint64

	cam     Camera
	factor  float64
	visible [6]bool

	deferred    uint64
	lastExhaust time.Time
	lastDepth   time.Time
}

// begin records the frame's camera and face visibility.
func (e *engine) begin(cam Camera) {
	e.cam = cam
	e.factor = DetailFactor(cam, e.cfg.PixelError)
	for _, f := range Faces {
		e.visible[f] = !e.cfg.CullFaces || faceVisible(f, cam.Position, e.cfg.Radius)
	}
}

// distance from the camera to a patch, infinite when its face is culled so
// hidden faces relax towards their coarsest level.
func (e *engine) distance(p *Patch) float32 {
	if !e.visible[p.face] {
		return infDistance
	}
	return distance(e.cam.Position, p.Centre)
}

func (e *engine) submit(t target, req build.Request) error {
	e.ticket++
	req.Ticket = e.ticket
	req.Camera = e.cam.Position
	if err := e.queue.AddRequest(req); err != nil {
		return err
	}
	e.targets[req.Ticket] = t
	return nil
}

// drain applies every finished build to the patch that asked for it.
func (e *engine) drain() int {
	return e.queue.Drain(func(res *build.Result) {
		t, ok := e.targets[res.Request.Ticket]
		if !ok {
			e.log.Debug("result for unknown ticket", zap.Uint64("ticket", res.Request.Ticket))
			return
		}
		delete(e.targets, res.Request.Ticket)
		t.applyBuild(res)
	})
}

// install uploads a result into h and makes it the patch's geometry, releasing
// whatever the patch drew before.
func (e *engine) install(p *Patch, h pool.Handle, res *build.Result, indices []uint32) error {
	if err := e.pool.Write(h, res.Vertices); err != nil {
		return err
	}
	ib, err := e.be.CreateIndexBuffer(indices)
	if err != nil {
		return err
	}
	e.release(&p.geom)
	p.geom = geometry{
		handle: h,
		ib:     ib,
		res:    res.Request.Resolution,
		level:  res.Request.Level,
	}
	p.Centre = res.Centre
	return nil
}

func (e *engine) release(g *geometry) {
	if g.ib != nil {
		g.ib.Destroy()
	}
	e.releaseHandle(&g.handle)
	*g = geometry{}
}

func (e *engine) releaseHandle(h *pool.Handle) {
	if !h.Valid() {
		return
	}
	if err := e.pool.Release(*h); err != nil {
		e.log.Error("release vertex block", zap.Int("offset", h.Offset), zap.Error(err))
	}
	*h = pool.Handle{}
}

// exhausted counts a postponed allocation and warns at most once a second.
func (e *engine) exhausted(err error) {
	e.deferred++
	if now := time.Now(); now.Sub(e.lastExhaust) >= warnInterval {
		e.lastExhaust = now
		s := e.pool.Stats()
		e.log.Warn("vertex pool exhausted, deferring detail change",
			zap.Int("used", s.Used),
			zap.Int("capacity", s.Capacity),
			zap.Uint64("deferred", e.deferred),
			zap.Error(err),
		)
	}
}

func (e *engine) checkDepth() {
	depth := e.queue.Depth()
	if depth < queueWarnDepth {
		return
	}
	if now := time.Now(); now.Sub(e.lastDepth) >= warnInterval {
		e.lastDepth = now
		e.log.Warn("build queue backing up", zap.Int("depth", depth))
	}
}

func (e *engine) draw(p *Patch, s *drawStats) {
	e.be.Draw(p.geom.ib)
	s.patches++
	s.triangles += p.geom.ib.Count() / 3
	if s.finest < 0 || p.geom.level < s.finest {
		s.finest = p.geom.level
	}
}
