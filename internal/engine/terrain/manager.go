package terrain

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/planetlod/internal/engine/terrain/backend"
	"github.com/Faultbox/planetlod/internal/engine/terrain/build"
	"github.com/Faultbox/planetlod/internal/engine/terrain/pool"
	"github.com/Faultbox/planetlod/internal/engine/terrain/surface"
)

// Manager owns the planet's patches, vertex pool and build queue.
type Manager struct {
	eng    *engine
	strat  strategy
	last   drawStats
	closed bool
}

type options struct {
	log  *zap.Logger
	exec build.Executor
}

// Option configures a Manager.
type Option func(*options)

// WithLogger sets the logger. The build queue logs under a "build" child.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithExecutor runs builds on e instead of a background worker.
func WithExecutor(e build.Executor) Option {
	return func(o *options) { o.exec = e }
}

// NewManager validates cfg, creates the vertex store on be and queues the
// initial build of every face.
func NewManager(cfg Config, gen surface.Generator, be backend.Backend, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	qopts := []build.Option{build.WithLogger(o.log.Named("build"))}
	if o.exec != nil {
		qopts = append(qopts, build.WithExecutor(o.exec))
	}
	eng := &engine{
		cfg:     cfg,
		be:      be,
		log:     o.log,
		targets: make(map[uint64]target),
	}
	for _, f := range Faces {
		eng.visible[f] = true
	}

	var (
		bp  *pool.BlockPool
		lp  *pool.LevelPool
		err error
	)
	switch cfg.Mode {
	case ModeGrid:
		lp, err = pool.NewLevelPool(levelVertices(cfg.Grid), cfg.Grid.PoolSizePerLevel)
		eng.pool = lp
	default:
		bp, err = pool.NewBlockPool(blockVertices(cfg.Quadtree), cfg.Quadtree.PoolBlocks)
		eng.pool = bp
	}
	if err != nil {
		return nil, fmt.Errorf("create vertex pool: %w", err)
	}

	store, err := be.CreateVertexStore(eng.pool.Capacity())
	if err != nil {
		return nil, fmt.Errorf("create vertex store: %w", err)
	}
	eng.store = store
	eng.pool.Attach(store)
	eng.queue = build.NewQueue(gen, qopts...)

	m := &Manager{eng: eng, last: drawStats{finest: -1}}
	if cfg.Mode == ModeGrid {
		m.strat, err = newGrid(eng, lp)
	} else {
		m.strat, err = newQuadtree(eng, bp)
	}
	if err != nil {
		eng.queue.Close()
		store.Destroy()
		return nil, err
	}

	eng.log.Info("terrain initialised",
		zap.String("mode", string(cfg.Mode)),
		zap.Float64("radius", cfg.Radius),
		zap.Int("pool_vertices", eng.pool.Capacity()),
		zap.Int("patches", m.strat.nodes()),
	)
	return m, nil
}

// Update applies finished builds, culls faces and moves patches towards the
// detail the camera needs. Call once per frame before Draw.
func (m *Manager) Update(cam Camera) {
	if m.closed {
		return
	}
	m.eng.drain()
	m.eng.begin(cam)
	m.strat.update()
	m.eng.checkDepth()
}

// Draw issues one draw per visible patch.
func (m *Manager) Draw() {
	if m.closed {
		return
	}
	s := drawStats{finest: -1}
	m.strat.draw(&s)
	m.last = s
}

// Stats reports the last drawn frame and current pool and queue state.
func (m *Manager) Stats() Stats {
	s := Stats{
		Mode:        m.eng.cfg.Mode,
		Patches:     m.last.patches,
		Triangles:   m.last.triangles,
		FinestLevel: m.last.finest,
		Deferred:    m.eng.deferred,
		Pool:        m.eng.pool.Stats(),
		Queue:       m.eng.queue.Stats(),
	}
	if m.strat != nil {
		s.Nodes = m.strat.nodes()
	}
	for _, v := range m.eng.visible {
		if v {
			s.VisibleFaces++
		}
	}
	return s
}

// Pending returns the number of builds whose results have not been applied.
func (m *Manager) Pending() int {
	return m.eng.queue.Pending()
}

// Close stops the build worker and releases every GPU resource.
func (m *Manager) Close() {
	if m.closed {
		return
	}
	m.closed = true
	m.eng.queue.Close()
	m.strat.release()
	m.eng.targets = make(map[uint64]target)
	m.eng.store.Destroy()
	m.eng.log.Info("terrain closed", zap.Uint64("deferred", m.eng.deferred))
}
