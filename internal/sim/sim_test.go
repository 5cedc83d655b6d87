package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/planetlod/internal/engine/camera"
	"github.com/Faultbox/planetlod/internal/engine/terrain"
	"github.com/Faultbox/planetlod/internal/engine/terrain/backend"
	"github.com/Faultbox/planetlod/internal/engine/terrain/heightfield"
)

type inlineExecutor struct{}

func (inlineExecutor) Submit(task func()) { task() }
func (inlineExecutor) StopAndWait()       {}

func newRunner(t *testing.T, mode terrain.Mode) *Runner {
	t.Helper()
	cfg := terrain.Config{
		Mode:       mode,
		Radius:     50,
		PixelError: 4,
		CullFaces:  true,
		Quadtree:   terrain.QuadtreeConfig{MaxLodLevels: 2, PatchResolution: 5, PoolBlocks: 256, SkirtDepth: 1},
		Grid:       terrain.GridConfig{MaxLodLevels: 2, PatchResolution: 9, GridSize: 2, PoolSizePerLevel: 24},
	}
	params := heightfield.DefaultParams()
	params.Radius = 50
	params.Amplitude = 1

	rec := backend.NewRecorder()
	m, err := terrain.NewManager(cfg, heightfield.New(params), rec, terrain.WithExecutor(inlineExecutor{}))
	require.NoError(t, err)
	t.Cleanup(m.Close)

	return &Runner{
		Manager:  m,
		Recorder: rec,
		Camera:   camera.NewPlanetCamera(50, 1000),
	}
}

func TestScriptAltitudes(t *testing.T) {
	s := Script{From: 1000, To: 10, Steps: 3}
	alts := s.Altitudes()
	require.Len(t, alts, 3)
	assert.Equal(t, 1000.0, alts[0])
	assert.InDelta(t, 100.0, alts[1], 1e-9)
	assert.Equal(t, 10.0, alts[2])

	assert.Equal(t, []float64{1000}, Script{From: 1000, To: 10, Steps: 1}.Altitudes())
}

func TestScriptValidate(t *testing.T) {
	assert.NoError(t, DefaultScript(6000).Validate())

	bad := []Script{
		{From: 0, To: 1, Steps: 2, Settle: 1, ViewportHeight: 1},
		{From: 10, To: 1, Steps: 0, Settle: 1, ViewportHeight: 1},
		{From: 10, To: 1, Steps: 2, Settle: 0, ViewportHeight: 1},
		{From: 10, To: 1, Steps: 2, Settle: 1, ViewportHeight: 0},
	}
	for _, s := range bad {
		assert.Error(t, s.Validate(), "%+v", s)
	}
}

func TestDescendRefines(t *testing.T) {
	for _, mode := range []terrain.Mode{terrain.ModeQuadtree, terrain.ModeGrid} {
		t.Run(string(mode), func(t *testing.T) {
			r := newRunner(t, mode)
			script := Script{From: 50000, To: 0.5, Steps: 6, Settle: 500, ViewportHeight: 1080}

			var samples []Sample
			require.NoError(t, r.Descend(context.Background(), script, func(s Sample) {
				samples = append(samples, s)
			}))
			require.Len(t, samples, 6)

			for _, s := range samples {
				assert.True(t, s.Settled, "step %d", s.Step)
				assert.Equal(t, s.Stats.Patches, s.DrawCalls, "step %d", s.Step)
				assert.Zero(t, s.Stats.Deferred, "step %d", s.Step)
			}
			first, last := samples[0], samples[len(samples)-1]
			assert.Equal(t, 2, first.Stats.FinestLevel)
			assert.Less(t, last.Stats.FinestLevel, first.Stats.FinestLevel)
			assert.Greater(t, last.Stats.Triangles, first.Stats.Triangles)
		})
	}
}

func TestSettleHonoursContext(t *testing.T) {
	r := newRunner(t, terrain.ModeQuadtree)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	frames, settled, err := r.Settle(ctx, r.Camera.Snapshot(600), 10, time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, settled)
	assert.Zero(t, frames)
}
