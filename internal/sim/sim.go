// Package sim drives a terrain manager headless through scripted camera
// paths and samples its statistics once detail has settled.
package sim

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/planetlod/internal/engine/camera"
	"github.com/Faultbox/planetlod/internal/engine/terrain"
	"github.com/Faultbox/planetlod/internal/engine/terrain/backend"
)

// Script describes a descent from From to To altitude in Steps samples
// spaced geometrically.
type Script struct {
	From, To       float64
	Steps          int
	Settle         int           // frame limit per sample
	Pause          time.Duration // sleep between unsettled frames
	ViewportHeight int
}

// DefaultScript descends from ten radii to a hundredth of the planet radius.
func DefaultScript(radius float64) Script {
	return Script{
		From:           radius * 10,
		To:             radius / 100,
		Steps:          12,
		Settle:         5000,
		Pause:          time.Millisecond,
		ViewportHeight: 1080,
	}
}

// Validate rejects scripts that cannot run.
func (s Script) Validate() error {
	switch {
	case s.From <= 0 || s.To <= 0:
		return fmt.Errorf("altitudes %g and %g must be positive", s.From, s.To)
	case s.Steps < 1:
		return fmt.Errorf("steps %d below 1", s.Steps)
	case s.Settle < 1:
		return fmt.Errorf("settle %d below 1", s.Settle)
	case s.ViewportHeight < 1:
		return fmt.Errorf("viewport height %d below 1", s.ViewportHeight)
	}
	return nil
}

// Altitudes returns the sample altitudes.
func (s Script) Altitudes() []float64 {
	if s.Steps == 1 {
		return []float64{s.From}
	}
	out := make([]float64, s.Steps)
	ratio := s.To / s.From
	for i := range out {
		out[i] = s.From * math.Pow(ratio, float64(i)/float64(s.Steps-1))
	}
	out[len(out)-1] = s.To
	return out
}

// Sample is the state of the terrain at one altitude.
type Sample struct {
	Step      int
	Altitude  float64
	Frames    int  // frames until settled
	Settled   bool // false when the frame limit was hit
	DrawCalls int
	Stats     terrain.Stats
}

// Runner owns the manager under test and the recorder it draws into.
type Runner struct {
	Manager  *terrain.Manager
	Recorder *backend.Recorder
	Camera   *camera.PlanetCamera
	Log      *zap.Logger
}

// Settle runs frames at a fixed camera until an update issues no new work
// or limit frames have run.
func (r *Runner) Settle(ctx context.Context, cam terrain.Camera, limit int, pause time.Duration) (frames int, settled bool, err error) {
	for frames < limit {
		if err := ctx.Err(); err != nil {
			return frames, false, err
		}
		r.Manager.Update(cam)
		r.Recorder.BeginFrame()
		r.Manager.Draw()
		frames++
		if r.Manager.Pending() == 0 {
			return frames, true, nil
		}
		if pause > 0 {
			time.Sleep(pause)
		}
	}
	return frames, false, nil
}

// Descend runs s and calls emit after every sample.
func (r *Runner) Descend(ctx context.Context, s Script, emit func(Sample)) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("script: %w", err)
	}
	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}
	for i, alt := range s.Altitudes() {
		r.Camera.Altitude = alt
		frames, settled, err := r.Settle(ctx, r.Camera.Snapshot(s.ViewportHeight), s.Settle, s.Pause)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		if !settled {
			log.Warn("terrain did not settle", zap.Int("step", i), zap.Float64("altitude", alt), zap.Int("frames", frames))
		}
		emit(Sample{
			Step:      i,
			Altitude:  alt,
			Frames:    frames,
			Settled:   settled,
			DrawCalls: r.Recorder.DrawCalls(),
			Stats:     r.Manager.Stats(),
		})
	}
	return nil
}
