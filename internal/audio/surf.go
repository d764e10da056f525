package audio

import (
	"fmt"
	"math"
	"math/cmplx"
	"math/rand"
	"sync"

	"github.com/jeongseonghan/fft-ocean/internal/fft"
)

const (
	// SynthBlockSize is the spectral block length used by the player.
	SynthBlockSize = 1024

	// FullScaleRMS is the field RMS height (metres) mapped to full loudness.
	FullScaleRMS = 2.0

	// levelSmoothing is the fraction of the distance to the target level
	// covered per block.
	levelSmoothing = 0.2

	// outputGain keeps unit-RMS noise well inside [-1, 1].
	outputGain = 0.25
)

// SurfSynth produces band-limited surf noise whose loudness follows the
// sea state. Each block is a random-phase spectrum with a 1/f magnitude
// roll-off, inverse-transformed and crossfaded into the previous block.
type SurfSynth struct {
	n       int
	overlap int
	rng     *rand.Rand
	volume  float32

	mu     sync.Mutex
	target float32
	level  float32

	spec []complex128
	tail []float32
	out  []float32
}

// NewSurfSynth creates a synthesizer with power-of-two block size n.
func NewSurfSynth(n int, volume float32, rng *rand.Rand) (*SurfSynth, error) {
	if n < 16 || !fft.IsPowerOfTwo(n) {
		return nil, fmt.Errorf("surf block size must be a power of two >= 16, got %d", n)
	}
	if rng == nil {
		return nil, fmt.Errorf("surf synth needs a random source")
	}
	overlap := n / 8
	return &SurfSynth{
		n:       n,
		overlap: overlap,
		rng:     rng,
		volume:  clamp01(volume),
		spec:    make([]complex128, n),
		tail:    make([]float32, overlap),
		out:     make([]float32, n-overlap),
	}, nil
}

// BlockLen returns the number of samples Next produces.
func (s *SurfSynth) BlockLen() int { return s.n - s.overlap }

// SetLevel maps a field RMS height to a target loudness in [0, 1].
func (s *SurfSynth) SetLevel(rms float64) {
	l := clamp01(float32(rms / FullScaleRMS))
	s.mu.Lock()
	s.target = l
	s.mu.Unlock()
}

// Level returns the current smoothed loudness.
func (s *SurfSynth) Level() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level
}

func clamp01(v float32) float32 {
	switch {
	case !(v > 0):
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Next returns the next block of samples. The slice is reused.
func (s *SurfSynth) Next() []float32 {
	s.mu.Lock()
	from := s.level
	s.level += (s.target - s.level) * levelSmoothing
	to := s.level
	s.mu.Unlock()

	block := s.noiseBlock()

	// raised-cosine crossfade from the previous tail into this head
	for i := 0; i < s.overlap; i++ {
		w := float32(0.5 - 0.5*math.Cos(math.Pi*float64(i)/float64(s.overlap)))
		s.out[i] = s.tail[i]*(1-w) + block[i]*w
	}
	copy(s.out[s.overlap:], block[s.overlap:s.n-s.overlap])

	// tail stays unscaled; gain is applied to the mixed output
	copy(s.tail, block[s.n-s.overlap:])

	g := s.volume * outputGain
	m := float32(len(s.out))
	for i := range s.out {
		l := from + (to-from)*float32(i)/m
		s.out[i] *= l * g
	}
	return s.out
}

// noiseBlock returns n samples of unit-RMS 1/f noise.
func (s *SurfSynth) noiseBlock() []float32 {
	half := s.n / 2
	s.spec[0] = 0
	for k := 1; k < half; k++ {
		c := cmplx.Rect(1/float64(k), 2*math.Pi*s.rng.Float64())
		s.spec[k] = c
		s.spec[s.n-k] = cmplx.Conj(c)
	}
	s.spec[half] = complex(1/float64(half), 0)

	x := fft.RealIFFT(s.spec)

	var sum float64
	for _, v := range x {
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(len(x)))

	block := make([]float32, len(x))
	if rms == 0 {
		return block
	}
	for i, v := range x {
		block[i] = float32(v / rms)
	}
	return block
}
