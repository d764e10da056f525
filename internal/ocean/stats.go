package ocean

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// FieldStats summarises one height buffer.
type FieldStats struct {
	Mean float64 `json:"mean"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	RMS  float64 `json:"rms"`
}

// Stats computes summary statistics of a height buffer.
// An empty buffer yields zero stats.
func Stats(heights []float32) FieldStats {
	if len(heights) == 0 {
		return FieldStats{}
	}

	x := make([]float64, len(heights))
	for i, h := range heights {
		x[i] = float64(h)
	}

	n := float64(len(x))
	return FieldStats{
		Mean: floats.Sum(x) / n,
		Min:  floats.Min(x),
		Max:  floats.Max(x),
		RMS:  floats.Norm(x, 2) / math.Sqrt(n),
	}
}
