package terrain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Faultbox/planetlod/internal/engine/terrain/backend"
	"github.com/Faultbox/planetlod/internal/engine/terrain/heightfield"
)

func TestNewManager_RejectsInvalidConfig(t *testing.T) {
	cfg := quadConfig()
	cfg.Quadtree.PatchResolution = 1
	_, err := NewManager(cfg, &sphereGen{radius: 50}, backend.NewRecorder())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestManager_CullsHiddenFaces(t *testing.T) {
	for _, cfg := range []Config{quadConfig(), gridConfig()} {
		t.Run(string(cfg.Mode), func(t *testing.T) {
			cfg.CullFaces = true
			m, rec := newTestManager(t, cfg, &sphereGen{radius: 50, err: 2}, inlineExecutor{})
			frame(m, rec, testCamera(mgl64.Vec3{0, 0, 1e6}))

			s := m.Stats()
			assert.Equal(t, 5, s.VisibleFaces, "-Z is behind the planet")
			assert.Equal(t, s.Nodes*5/6, s.Patches)
		})
	}
}

func TestManager_CloseReleasesEverything(t *testing.T) {
	rec := backend.NewRecorder()
	m, err := NewManager(quadConfig(), &sphereGen{radius: 50, err: 2}, rec, WithExecutor(inlineExecutor{}))
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		frame(m, rec, testCamera(mgl64.Vec3{0, 0, 55}))
	}
	require.Positive(t, rec.LiveBuffers())

	m.Close()
	assert.Zero(t, rec.LiveBuffers())
	assert.Zero(t, m.Stats().Pool.Used)

	// Closed managers ignore further frames.
	m.Update(testCamera(mgl64.Vec3{0, 0, 55}))
	rec.BeginFrame()
	m.Draw()
	assert.Zero(t, rec.DrawCalls())
	m.Close()
}

func TestManager_LogsExhaustion(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	cfg := quadConfig()
	cfg.Quadtree.PoolBlocks = 6
	rec := backend.NewRecorder()
	m, err := NewManager(cfg, &sphereGen{radius: 50, err: 2}, rec,
		WithExecutor(inlineExecutor{}), WithLogger(zap.New(core)))
	require.NoError(t, err)
	defer m.Close()

	for i := 0; i < 3; i++ {
		frame(m, rec, testCamera(mgl64.Vec3{0, 0, 55}))
	}
	assert.Equal(t, 1, logs.FilterMessage("vertex pool exhausted, deferring detail change").Len(), "throttled")
	assert.Equal(t, uint64(6*3), m.Stats().Deferred)
}

func TestManager_BackgroundWorker(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Radius = 1000
	cfg.Quadtree.MaxLodLevels = 4
	cfg.Quadtree.PatchResolution = 9
	cfg.Quadtree.PoolBlocks = 512
	p := heightfield.DefaultParams()
	p.Radius = cfg.Radius
	p.Amplitude = 20

	rec := backend.NewRecorder()
	m, err := NewManager(cfg, heightfield.New(p), rec)
	require.NoError(t, err)
	defer m.Close()

	cam := testCamera(mgl64.Vec3{0, 0, 1100})
	require.Eventually(t, func() bool {
		frame(m, rec, cam)
		return m.Pending() == 0 && m.Stats().Patches > 0
	}, 5*time.Second, time.Millisecond)

	// Settle: keep updating until a frame queues nothing new.
	require.Eventually(t, func() bool {
		frame(m, rec, cam)
		return m.Pending() == 0
	}, 10*time.Second, time.Millisecond)

	s := m.Stats()
	assert.Less(t, s.FinestLevel, cfg.Quadtree.MaxLodLevels, "refined below the root")
	assert.Zero(t, s.Queue.Failed)
	assert.Equal(t, s.Queue.Submitted, s.Queue.Applied)
}

func TestLodField_KeepsSeverity(t *testing.T) {
	enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	buf, err := enc.EncodeEntry(zapcore.Entry{Level: zapcore.WarnLevel, Message: "queue patch build"},
		[]zap.Field{lodField(3)})
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, 3.0, entry["lod"])
}
