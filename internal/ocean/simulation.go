// Package ocean synthesizes a time-varying ocean height field from the
// Phillips spectrum.
//
// A Simulation draws one random complex amplitude per wave vector (H0),
// rotates each amplitude by its dispersion frequency on every tick, and
// runs the inverse 2D FFT to obtain heights on an N×N grid.
package ocean

import (
	"fmt"
	"math"
	"math/cmplx"
	"math/rand"

	"github.com/jeongseonghan/fft-ocean/internal/fft"
	"github.com/jeongseonghan/fft-ocean/internal/spectrum"
)

// Simulation owns the spectrum and the per-tick buffers of one ocean patch.
// It is not safe for concurrent use; hosts that tick and mutate from
// different goroutines must serialise the calls.
type Simulation struct {
	params Params
	engine *fft.Engine
	rng    *rand.Rand

	kLen  []float32 // |k| per cell, fixed by Size and Extent
	omega []float32 // dispersion frequency per cell

	h0      []complex64
	evolved []float32 // interleaved re/im, overwritten every tick
	heights []float32
}

// New validates p, allocates the grid and synthesizes the initial spectrum
// from rng. Nothing is allocated when validation fails.
func New(p Params, rng *rand.Rand) (*Simulation, error) {
	if rng == nil {
		return nil, fmt.Errorf("%w: nil random source", ErrInvalidParams)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.WindDirection = p.WindDirection.Normalize()

	n := p.Size
	cells := n * n
	s := &Simulation{
		params:  p,
		engine:  fft.NewEngine(n),
		rng:     rng,
		kLen:    make([]float32, cells),
		omega:   make([]float32, cells),
		h0:      make([]complex64, cells),
		evolved: make([]float32, 2*cells),
		heights: make([]float32, cells),
	}

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			idx := i*n + j
			k := spectrum.WaveVector(i, j, n, p.Extent).Len()
			s.kLen[idx] = k
			s.omega[idx] = spectrum.Dispersion(k)
		}
	}

	s.Synthesize()
	return s, nil
}

// Synthesize redraws the initial spectrum H0 from the current wind.
// Cells below spectrum.Epsilon keep zero amplitude and consume no random
// numbers.
func (s *Simulation) Synthesize() {
	n := s.params.Size
	wind := s.params.wind()

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			idx := i*n + j
			if s.kLen[idx] < spectrum.Epsilon {
				s.h0[idx] = 0
				continue
			}

			k := spectrum.WaveVector(i, j, n, s.params.Extent)
			density := spectrum.Phillips(k, wind, s.params.PhillipsConstant)
			s.h0[idx] = s.draw(density)
		}
	}
}

// draw returns a random amplitude with magnitude scale sqrt(density/2).
func (s *Simulation) draw(density float32) complex64 {
	scale := math.Sqrt(float64(density) / 2)

	if s.params.Draw == DrawGaussian {
		g1, g2 := boxMuller(s.rng)
		return complex64(complex(g1*scale, g2*scale))
	}

	r1, r2 := s.rng.Float64(), s.rng.Float64()
	for r1 == 0 && r2 == 0 {
		r1, r2 = s.rng.Float64(), s.rng.Float64()
	}
	norm := math.Hypot(r1, r2)
	return complex64(complex(r1/norm*scale, r2/norm*scale))
}

// boxMuller returns two independent standard normal samples.
func boxMuller(rng *rand.Rand) (float64, float64) {
	u1 := 1 - rng.Float64() // (0, 1], keeps the log finite
	u2 := rng.Float64()
	r := math.Sqrt(-2 * math.Log(u1))
	theta := 2 * math.Pi * u2
	return r * math.Cos(theta), r * math.Sin(theta)
}

// Tick evolves the spectrum to time t, inverse-transforms it and returns
// the N×N row-major height buffer scaled by Amplitude. The result is a
// pure function of t and H0. The slice is reused by the next Tick.
func (s *Simulation) Tick(t float64) []float32 {
	s.evolve(t)
	s.engine.Transform2D(s.evolved, true)

	a := s.params.Amplitude
	for i := range s.heights {
		s.heights[i] = s.evolved[2*i] * a
	}
	return s.heights
}

// evolve writes H0·e^(iωt) into the evolved buffer.
func (s *Simulation) evolve(t float64) {
	for idx, h := range s.h0 {
		if s.kLen[idx] < spectrum.Epsilon {
			s.evolved[2*idx] = 0
			s.evolved[2*idx+1] = 0
			continue
		}

		rot := complex64(cmplx.Rect(1, float64(s.omega[idx])*t))
		e := h * rot
		s.evolved[2*idx] = real(e)
		s.evolved[2*idx+1] = imag(e)
	}
}

// SetWaveHeight changes the amplitude applied to the next tick's heights.
func (s *Simulation) SetWaveHeight(a float32) {
	s.params.Amplitude = a
}

// SetWaveSpeed changes the wind speed and resynthesizes H0, which costs
// N² random draws and spectrum evaluations.
func (s *Simulation) SetWaveSpeed(w float32) error {
	if !positive(w) {
		return fmt.Errorf("%w: wind speed must be positive and finite, got %v", ErrInvalidParams, w)
	}
	s.params.WindSpeed = w
	s.Synthesize()
	return nil
}

// SetChoppiness stores the choppiness for the shading side. Heights do not
// depend on it.
func (s *Simulation) SetChoppiness(c float32) {
	s.params.Choppiness = c
}

// Params returns a copy of the current parameters.
func (s *Simulation) Params() Params { return s.params }

// Size returns the grid dimension N.
func (s *Simulation) Size() int { return s.params.Size }

// Choppiness returns the pass-through choppiness value.
func (s *Simulation) Choppiness() float32 { return s.params.Choppiness }

// InitialSpectrum returns a copy of H0.
func (s *Simulation) InitialSpectrum() []complex64 {
	out := make([]complex64, len(s.h0))
	copy(out, s.h0)
	return out
}
