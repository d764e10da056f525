package server

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeongseonghan/fft-ocean/internal/logger"
	"github.com/jeongseonghan/fft-ocean/internal/ocean"
	"github.com/jeongseonghan/fft-ocean/internal/protocol"
)

// DefaultTickRate is used when the configured rate is not positive.
const DefaultTickRate = 30

// FrameSink receives every frame the runner produces. Publish is called
// from the tick goroutine and must not block for long.
type FrameSink interface {
	Publish(f *protocol.HeightFrame)
}

// ParamsListener is implemented by sinks that want parameter changes as
// values instead of a PARAMS frame.
type ParamsListener interface {
	ParamsChanged(p ocean.Params)
}

// Status is a snapshot of the runner state.
type Status struct {
	Ticks   uint64           `json:"ticks"`
	Seq     uint32           `json:"seq"`
	SimTime float64          `json:"time"`
	Stats   ocean.FieldStats `json:"stats"`
}

// Runner owns a Simulation and drives it at a fixed tick rate. All access to
// the simulation goes through the runner's mutex.
type Runner struct {
	sim      *ocean.Simulation
	sinks    []FrameSink
	interval time.Duration
	log      *zap.Logger
	mu       sync.Mutex

	seq     uint32
	ticks   uint64
	simTime float64
	latest  *protocol.HeightFrame
	stats   ocean.FieldStats
}

// NewRunner creates a runner ticking sim tickRate times per second.
func NewRunner(sim *ocean.Simulation, tickRate int, sinks ...FrameSink) *Runner {
	if tickRate <= 0 {
		tickRate = DefaultTickRate
	}
	return &Runner{
		sim:      sim,
		sinks:    sinks,
		interval: time.Second / time.Duration(tickRate),
		log:      logger.Named("runner"),
	}
}

// AddSink registers another frame consumer.
func (r *Runner) AddSink(s FrameSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks = append(r.sinks, s)
}

// Run ticks the simulation with t = seconds since Run started until ctx is
// cancelled.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	start := time.Now()
	r.log.Info("Tick loop started",
		zap.Int("size", r.Params().Size),
		zap.Duration("interval", r.interval))

	r.Step(0)
	for {
		select {
		case <-ctx.Done():
			r.log.Info("Tick loop stopped", zap.Uint64("ticks", r.Ticks()))
			return nil
		case now := <-ticker.C:
			r.Step(now.Sub(start).Seconds())
		}
	}
}

// Step advances the simulation to time t, publishes the frame to every sink
// and returns it.
func (r *Runner) Step(t float64) *protocol.HeightFrame {
	r.mu.Lock()
	heights := r.sim.Tick(t)
	p := r.sim.Params()
	r.seq++
	frame := protocol.NewHeightFrame(r.seq, p.Size, t, p.Amplitude, p.Choppiness, heights)
	r.ticks++
	r.simTime = t
	r.latest = frame
	r.stats = ocean.Stats(frame.Heights)
	sinks := append([]FrameSink(nil), r.sinks...)
	r.mu.Unlock()

	for _, s := range sinks {
		s.Publish(frame)
	}
	return frame
}

// Latest returns the most recent frame, or nil before the first tick.
func (r *Runner) Latest() *protocol.HeightFrame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest
}

// Ticks returns the number of ticks run so far.
func (r *Runner) Ticks() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ticks
}

// Status returns a snapshot of tick counters and field statistics.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Status{
		Ticks:   r.ticks,
		Seq:     r.seq,
		SimTime: r.simTime,
		Stats:   r.stats,
	}
}

// Params returns the current simulation parameters.
func (r *Runner) Params() ocean.Params {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sim.Params()
}

// ParamUpdate holds optional parameter changes. Nil fields are left alone.
type ParamUpdate struct {
	WaveHeight *float32 `json:"waveHeight,omitempty"`
	WaveSpeed  *float32 `json:"waveSpeed,omitempty"`
	Choppiness *float32 `json:"choppiness,omitempty"`
}

// Validate checks every present field.
func (u ParamUpdate) Validate() error {
	if u.WaveHeight != nil && !(*u.WaveHeight >= 0 && !isInf(*u.WaveHeight)) {
		return fmt.Errorf("%w: wave height must not be negative, got %v", ocean.ErrInvalidParams, *u.WaveHeight)
	}
	if u.WaveSpeed != nil && !(*u.WaveSpeed > 0 && !isInf(*u.WaveSpeed)) {
		return fmt.Errorf("%w: wave speed must be positive, got %v", ocean.ErrInvalidParams, *u.WaveSpeed)
	}
	if u.Choppiness != nil && !(*u.Choppiness >= 0 && !isInf(*u.Choppiness)) {
		return fmt.Errorf("%w: choppiness must not be negative, got %v", ocean.ErrInvalidParams, *u.Choppiness)
	}
	return nil
}

func isInf(v float32) bool {
	return math.IsInf(float64(v), 0)
}

// Apply validates u and applies it atomically. Changes show up on the next
// tick. Sinks implementing ParamsListener are told the new parameters;
// every other sink gets a PARAMS frame. A zero wave height gives a flat sea.
func (r *Runner) Apply(u ParamUpdate) (ocean.Params, error) {
	if err := u.Validate(); err != nil {
		return r.Params(), err
	}

	r.mu.Lock()
	if u.WaveSpeed != nil {
		if err := r.sim.SetWaveSpeed(*u.WaveSpeed); err != nil {
			p := r.sim.Params()
			r.mu.Unlock()
			return p, err
		}
	}
	if u.WaveHeight != nil {
		r.sim.SetWaveHeight(*u.WaveHeight)
	}
	if u.Choppiness != nil {
		r.sim.SetChoppiness(*u.Choppiness)
	}
	p := r.sim.Params()
	r.seq++
	frame := protocol.NewParamsFrame(r.seq, p.Size, p.Amplitude, p.Choppiness)
	sinks := append([]FrameSink(nil), r.sinks...)
	r.mu.Unlock()

	r.log.Info("Parameters updated",
		zap.Float32("waveHeight", p.Amplitude),
		zap.Float32("waveSpeed", p.WindSpeed),
		zap.Float32("choppiness", p.Choppiness))

	for _, s := range sinks {
		if l, ok := s.(ParamsListener); ok {
			l.ParamsChanged(p)
			continue
		}
		s.Publish(frame)
	}
	return p, nil
}

// SetWaveHeight changes the height scale.
func (r *Runner) SetWaveHeight(a float32) error {
	_, err := r.Apply(ParamUpdate{WaveHeight: &a})
	return err
}

// SetWaveSpeed changes the wind speed and resynthesizes the spectrum.
func (r *Runner) SetWaveSpeed(w float32) error {
	_, err := r.Apply(ParamUpdate{WaveSpeed: &w})
	return err
}

// SetChoppiness changes the pass-through choppiness.
func (r *Runner) SetChoppiness(c float32) error {
	_, err := r.Apply(ParamUpdate{Choppiness: &c})
	return err
}
