// Package spectrum holds the statistical wave model: the Phillips spectrum
// for a directional wind and the deep-water dispersion relation.
package spectrum

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	// Gravity is the gravitational acceleration in m/s².
	Gravity = 9.81

	// Epsilon is the wave-number magnitude below which a wave vector is
	// treated as the DC term and contributes nothing.
	Epsilon = 1e-6

	// DefaultPhillipsConstant is the amplitude constant of the spectrum.
	DefaultPhillipsConstant = 0.0081
)

// Wind describes the wind that drives the spectrum.
// Direction is expected to be a unit vector.
type Wind struct {
	Speed     float32
	Direction mgl32.Vec2
}

// LargestWave returns Speed²/g, the largest wave a continuous wind of this
// speed can sustain.
func (w Wind) LargestWave() float32 {
	return w.Speed * w.Speed / Gravity
}

// Dispersion returns the angular frequency of a deep-water wave with
// wave number k.
func Dispersion(k float32) float32 {
	return DispersionWithGravity(k, Gravity)
}

// DispersionWithGravity is Dispersion with an explicit gravity.
// It returns 0 for wave numbers below Epsilon.
func DispersionWithGravity(k, gravity float32) float32 {
	if k < Epsilon {
		return 0
	}
	return float32(math.Sqrt(float64(gravity * k)))
}

// Phillips evaluates the Phillips spectrum at wave vector k.
//
// The DC term and waves travelling against the wind get zero density.
func Phillips(k mgl32.Vec2, wind Wind, amplitude float32) float32 {
	kLen := k.Len()
	if kLen < Epsilon {
		return 0
	}

	kNorm := k.Mul(1 / kLen)
	dir := kNorm.Dot(wind.Direction)
	if dir < 0 {
		return 0
	}

	l := float64(wind.LargestWave())
	kl := float64(kLen) * l
	k2 := float64(kLen) * float64(kLen)

	density := float64(amplitude) * math.Exp(-1/(kl*kl)) / (k2 * k2) * float64(dir*dir)
	return float32(density)
}

// WaveVector returns the wave vector of grid cell (i, j) on an n×n grid
// spanning extent metres. k = 0 sits at cell (n/2, n/2).
func WaveVector(i, j, n int, extent float32) mgl32.Vec2 {
	half := n / 2
	scale := 2 * math.Pi / float64(extent)
	return mgl32.Vec2{
		float32(scale * float64(i-half)),
		float32(scale * float64(j-half)),
	}
}
