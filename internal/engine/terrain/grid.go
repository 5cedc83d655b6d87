package terrain

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/Faultbox/planetlod/internal/engine/terrain/build"
	"github.com/Faultbox/planetlod/internal/engine/terrain/pool"
	"github.com/Faultbox/planetlod/internal/engine/terrain/stitch"
)

// resolutionAt returns the vertices per edge of a grid patch at a level.
func resolutionAt(finest, level int) int {
	return ((finest - 1) >> level) + 1
}

// levelVertices lists the block size of every level for the LevelPool.
func levelVertices(cfg GridConfig) []int {
	sizes := make([]int, cfg.MaxLodLevels+1)
	for l := range sizes {
		r := resolutionAt(cfg.PatchResolution, l)
		sizes[l] = r * r
	}
	return sizes
}

// GridPatch is a fixed patch that moves one level at a time and bends its
// border to meet coarser neighbors.
type GridPatch struct {
	Patch

	grid      *grid
	col, row  int
	neighbors [4]*GridPatch // by stitch.Edge, nil if unlinked
	target    int           // level being built, equal to Level when idle

	pending    pool.Handle
	building   bool
	needsBuild bool
	errs       []float32
	known      uint64 // bit per level with a measured error
	dirty      bool
}

func (p *GridPatch) errorAt(level int) (float32, bool) {
	if p.known&(1<<level) == 0 {
		return 0, false
	}
	return p.errs[level], true
}

func (p *GridPatch) setError(level int, e float32) {
	p.errs[level] = e
	p.known |= 1 << level
}

type grid struct {
	eng     *engine
	pool    *pool.LevelPool
	cfg     GridConfig
	patches []*GridPatch
}

func newGrid(eng *engine, lp *pool.LevelPool) (*grid, error) {
	g := &grid{
		eng:  eng,
		pool: lp,
		cfg:  eng.cfg.Grid,
	}
	n := g.cfg.GridSize
	for _, f := range Faces {
		origin, u, v := f.Bounds()
		du := u.Mul(1 / float64(n))
		dv := v.Mul(1 / float64(n))
		for row := 0; row < n; row++ {
			for col := 0; col < n; col++ {
				o := origin.Add(du.Mul(float64(col))).Add(dv.Mul(float64(row)))
				p := &GridPatch{
					Patch:  newPatch(f, o, du, dv, g.cfg.MaxLodLevels, eng.cfg.Radius),
					grid:   g,
					col:    col,
					row:    row,
					target: g.cfg.MaxLodLevels,
					errs:   make([]float32, g.cfg.MaxLodLevels+1),
				}
				g.patches = append(g.patches, p)
			}
		}
	}
	link(g.patches)

	for _, p := range g.patches {
		h, err := lp.Allocate(p.target)
		if err != nil {
			return nil, fmt.Errorf("allocate %s patch %d,%d: %w", p.face, p.col, p.row, err)
		}
		p.pending = h
		g.request(p)
	}
	return g, nil
}

// link connects patches whose edges share a midpoint in cube space. Faces
// meet edge to edge, so this also links across faces.
func link(patches []*GridPatch) {
	type edgeRef struct {
		p *GridPatch
		e stitch.Edge
	}
	open := make(map[[3]int64]edgeRef, 2*len(patches))
	for _, p := range patches {
		for _, e := range stitch.Edges {
			k := quantize(p.edgeMidpoint(e))
			if o, ok := open[k]; ok {
				p.neighbors[e] = o.p
				o.p.neighbors[o.e] = p
				delete(open, k)
				continue
			}
			open[k] = edgeRef{p, e}
		}
	}
}

func quantize(v mgl64.Vec3) [3]int64 {
	const scale = 1 << 20
	return [3]int64{
		int64(math.Round(v[0] * scale)),
		int64(math.Round(v[1] * scale)),
		int64(math.Round(v[2] * scale)),
	}
}

func (p *GridPatch) edgeMidpoint(e stitch.Edge) mgl64.Vec3 {
	hu, hv := p.U.Mul(0.5), p.V.Mul(0.5)
	switch e {
	case stitch.Bottom:
		return p.Origin.Add(hu)
	case stitch.Right:
		return p.Origin.Add(p.U).Add(hv)
	case stitch.Top:
		return p.Origin.Add(hu).Add(p.V)
	default:
		return p.Origin.Add(hv)
	}
}

func (g *grid) request(p *GridPatch) {
	res := resolutionAt(g.cfg.PatchResolution, p.target)
	uStep, vStep := p.steps(res)
	_, known := p.errorAt(p.target)
	req := build.Request{
		Level:        p.target,
		Origin:       p.Origin,
		UStep:        uStep,
		VStep:        vStep,
		Resolution:   res,
		ComputeError: !known,
	}
	if err := g.eng.submit(p, req); err != nil {
		g.eng.log.Warn("queue patch build", zap.Stringer("face", p.face), lodField(p.target), zap.Error(err))
		p.needsBuild = true
		return
	}
	p.building = true
	p.needsBuild = false
}

func (g *grid) update() {
	for _, p := range g.patches {
		if p.needsBuild {
			g.request(p)
		}
	}
	for _, p := range g.patches {
		if p.building || p.needsBuild || !p.geom.rendered() {
			continue
		}
		want := p.desiredLevel()
		if want == p.Level || !p.fits(want) {
			continue
		}
		h, err := g.pool.Allocate(want)
		if err != nil {
			g.eng.exhausted(err)
			continue
		}
		p.pending = h
		p.target = want
		g.request(p)
	}
	g.restitch()
}

// desiredLevel moves one level finer when the current error is visible and
// one level coarser when the coarser level's error would not be.
func (p *GridPatch) desiredLevel() int {
	eng := p.grid.eng
	d := eng.distance(&p.Patch)
	if p.Level > 0 {
		if e, ok := p.errorAt(p.Level); ok && d < IncreaseDetailDistance(e, eng.factor) {
			return p.Level - 1
		}
	}
	if p.Level < p.grid.cfg.MaxLodLevels {
		if e, ok := p.errorAt(p.Level + 1); ok && d > IncreaseDetailDistance(e, eng.factor) {
			return p.Level + 1
		}
	}
	return p.Level
}

// fits keeps every linked neighbor, drawn or being built, within one level.
func (p *GridPatch) fits(level int) bool {
	for _, nb := range p.neighbors {
		if nb == nil {
			continue
		}
		if absInt(level-nb.target) > 1 || absInt(level-nb.Level) > 1 {
			return false
		}
	}
	return true
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// deltas returns how much coarser each drawn neighbor is than level.
func (p *GridPatch) deltas(level int) stitch.Deltas {
	var d stitch.Deltas
	for e, nb := range p.neighbors {
		if nb != nil && nb.geom.rendered() && nb.geom.level > level {
			d[e] = nb.geom.level - level
		}
	}
	return d
}

func (p *GridPatch) applyBuild(res *build.Result) {
	g := p.grid
	p.building = false
	if res.Err != nil {
		p.needsBuild = true
		return
	}

	level := res.Request.Level
	h := p.pending
	p.pending = pool.Handle{}
	indices := stitch.Stitched(res.Request.Resolution, uint32(h.Offset), p.deltas(level))
	if err := g.eng.install(&p.Patch, h, res, indices); err != nil {
		g.eng.log.Error("install patch geometry", zap.Stringer("face", p.face), lodField(level), zap.Error(err))
		p.pending = h
		p.needsBuild = true
		return
	}
	p.Level = level
	if res.Request.ComputeError {
		p.setError(level, res.Error)
	}

	// Neighbors finer than us now border a different level.
	p.dirty = true
	for _, nb := range p.neighbors {
		if nb != nil {
			nb.dirty = true
		}
	}
}

// restitch rebuilds the border strips of patches whose neighbors changed.
func (g *grid) restitch() {
	for _, p := range g.patches {
		if !p.dirty {
			continue
		}
		p.dirty = false
		if !p.geom.rendered() {
			continue
		}
		indices := stitch.Stitched(p.geom.res, uint32(p.geom.handle.Offset), p.deltas(p.geom.level))
		if err := p.geom.ib.Replace(indices); err != nil {
			g.eng.log.Error("restitch patch", zap.Stringer("face", p.face), zap.Error(err))
		}
	}
}

func (g *grid) draw(s *drawStats) {
	for _, p := range g.patches {
		if g.eng.visible[p.face] && p.geom.rendered() {
			g.eng.draw(&p.Patch, s)
		}
	}
}

func (g *grid) nodes() int {
	return len(g.patches)
}

func (g *grid) release() {
	for _, p := range g.patches {
		g.eng.release(&p.geom)
		g.eng.releaseHandle(&p.pending)
	}
}
