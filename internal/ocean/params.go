package ocean

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/jeongseonghan/fft-ocean/internal/fft"
	"github.com/jeongseonghan/fft-ocean/internal/spectrum"
)

// ErrInvalidParams is returned when simulation parameters fail validation.
var ErrInvalidParams = errors.New("ocean: invalid parameters")

// DrawMode selects how the random complex amplitude of each cell is drawn.
type DrawMode int

const (
	// DrawUniform takes two uniform [0,1) samples and normalises them into
	// a unit direction.
	DrawUniform DrawMode = iota
	// DrawGaussian takes a Box-Muller pair of standard normal samples.
	DrawGaussian
)

// String returns the mode name used in configuration files.
func (m DrawMode) String() string {
	switch m {
	case DrawUniform:
		return "uniform"
	case DrawGaussian:
		return "gaussian"
	default:
		return fmt.Sprintf("DrawMode(%d)", int(m))
	}
}

// ParseDrawMode maps a configuration name to a DrawMode.
func ParseDrawMode(s string) (DrawMode, error) {
	switch s {
	case "", "uniform":
		return DrawUniform, nil
	case "gaussian":
		return DrawGaussian, nil
	default:
		return 0, fmt.Errorf("%w: unknown draw mode %q", ErrInvalidParams, s)
	}
}

// Params are the simulation parameters.
//
// Size and Extent are fixed for the lifetime of a Simulation. Amplitude and
// Choppiness may change every tick; changing WindSpeed resynthesizes the
// initial spectrum.
type Params struct {
	Size             int        // grid dimension N, power of two
	Extent           float32    // physical side length L in metres
	Amplitude        float32    // height scale A applied after the transform
	PhillipsConstant float32    // spectrum amplitude constant
	WindSpeed        float32    // m/s
	WindDirection    mgl32.Vec2 // normalised by New
	Choppiness       float32    // forwarded to the shading side only
	Draw             DrawMode
}

// DefaultParams returns the parameters of a moderate sea on a 128² grid.
func DefaultParams() Params {
	return Params{
		Size:             128,
		Extent:           1000,
		Amplitude:        1.0,
		PhillipsConstant: spectrum.DefaultPhillipsConstant,
		WindSpeed:        1.0,
		WindDirection:    mgl32.Vec2{1, 1}.Normalize(),
		Choppiness:       1.5,
		Draw:             DrawUniform,
	}
}

// Validate checks every construction precondition. Every float must be
// finite; NaN fails the comparisons.
func (p Params) Validate() error {
	if p.Size < 2 || !fft.IsPowerOfTwo(p.Size) {
		return fmt.Errorf("%w: size %d is not a power of two >= 2", ErrInvalidParams, p.Size)
	}
	if !positive(p.Extent) {
		return fmt.Errorf("%w: extent must be positive and finite, got %v", ErrInvalidParams, p.Extent)
	}
	if !nonNegative(p.Amplitude) {
		return fmt.Errorf("%w: amplitude must be non-negative and finite, got %v", ErrInvalidParams, p.Amplitude)
	}
	if !positive(p.WindSpeed) {
		return fmt.Errorf("%w: wind speed must be positive and finite, got %v", ErrInvalidParams, p.WindSpeed)
	}
	if !positive(p.PhillipsConstant) {
		return fmt.Errorf("%w: phillips constant must be positive and finite, got %v", ErrInvalidParams, p.PhillipsConstant)
	}
	if !finite(p.WindDirection.X()) || !finite(p.WindDirection.Y()) {
		return fmt.Errorf("%w: wind direction %v is not finite", ErrInvalidParams, p.WindDirection)
	}
	if l := p.WindDirection.Len(); !(l > spectrum.Epsilon) {
		return fmt.Errorf("%w: wind direction %v has no length", ErrInvalidParams, p.WindDirection)
	}
	if !nonNegative(p.Choppiness) {
		return fmt.Errorf("%w: choppiness must be non-negative and finite, got %v", ErrInvalidParams, p.Choppiness)
	}
	if p.Draw != DrawUniform && p.Draw != DrawGaussian {
		return fmt.Errorf("%w: unknown draw mode %d", ErrInvalidParams, int(p.Draw))
	}
	return nil
}

func finite(v float32) bool {
	return !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0)
}

func positive(v float32) bool { return v > 0 && finite(v) }

func nonNegative(v float32) bool { return v >= 0 && finite(v) }

func (p Params) wind() spectrum.Wind {
	return spectrum.Wind{Speed: p.WindSpeed, Direction: p.WindDirection}
}
