// Package fft implements a fixed-size radix-2 Cooley-Tukey transform and the
// separable 2D transform built on top of it.
package fft

import (
	"fmt"
	"math"
)

// Order selects which axis the 2D transform processes first.
type Order int

const (
	RowsFirst Order = iota
	ColumnsFirst
)

// Engine is a radix-2 FFT for one fixed size N.
//
// Transform1D only reads the bit-reversal table and may be called from
// several goroutines on distinct buffers. The 2D transforms reuse the
// engine's split planes between calls, so an Engine must not run two 2D
// transforms at once.
type Engine struct {
	n   int
	rev []int

	// 2D scratch, allocated on first use
	re, im       []float32
	colRe, colIm []float32
}

// NewEngine creates an engine for size n.
// n must be a power of two and at least 2.
func NewEngine(n int) *Engine {
	if n < 2 || !IsPowerOfTwo(n) {
		panic(fmt.Sprintf("fft: size %d is not a power of two >= 2", n))
	}

	bits := Log2(n)
	rev := make([]int, n)
	for i := range rev {
		rev[i] = ReverseBits(i, bits)
	}
	return &Engine{n: n, rev: rev}
}

// Size returns N.
func (e *Engine) Size() int { return e.n }

// Transform1D runs an in-place FFT over the parallel real and imaginary
// sequences. The inverse transform is scaled by 1/N.
func (e *Engine) Transform1D(re, im []float32, inverse bool) {
	n := e.n
	if len(re) != n || len(im) != n {
		panic(fmt.Sprintf("fft: buffer length re=%d im=%d, engine size %d", len(re), len(im), n))
	}

	for i, j := range e.rev {
		if i < j {
			re[i], re[j] = re[j], re[i]
			im[i], im[j] = im[j], im[i]
		}
	}

	sign := -2.0
	if inverse {
		sign = 2.0
	}

	for size := 2; size <= n; size <<= 1 {
		halfSize := size >> 1
		step := sign * math.Pi / float64(size)

		// Each twiddle is shared by every group of the stage.
		for j := 0; j < halfSize; j++ {
			ang := step * float64(j)
			wr := float32(math.Cos(ang))
			wi := float32(math.Sin(ang))

			for start := 0; start < n; start += size {
				a := start + j
				b := a + halfSize

				tr := re[b]*wr - im[b]*wi
				ti := re[b]*wi + im[b]*wr

				re[b] = re[a] - tr
				im[b] = im[a] - ti
				re[a] += tr
				im[a] += ti
			}
		}
	}

	if inverse {
		scale := 1 / float32(n)
		for i := range re {
			re[i] *= scale
			im[i] *= scale
		}
	}
}

// Transform2D runs the separable 2D transform in place over an interleaved
// row-major buffer of 2*N*N floats (re, im pairs). Rows are processed first.
func (e *Engine) Transform2D(buf []float32, inverse bool) {
	e.Transform2DOrder(buf, inverse, RowsFirst)
}

// Transform2DOrder is Transform2D with an explicit axis order.
func (e *Engine) Transform2DOrder(buf []float32, inverse bool, order Order) {
	n := e.n
	if len(buf) != 2*n*n {
		panic(fmt.Sprintf("fft: 2D buffer length %d, want %d", len(buf), 2*n*n))
	}

	if e.re == nil {
		e.re = make([]float32, n*n)
		e.im = make([]float32, n*n)
		e.colRe = make([]float32, n)
		e.colIm = make([]float32, n)
	}
	re, im := e.re, e.im
	for i := range re {
		re[i] = buf[2*i]
		im[i] = buf[2*i+1]
	}

	if order == ColumnsFirst {
		e.columns(re, im, inverse)
		e.rows(re, im, inverse)
	} else {
		e.rows(re, im, inverse)
		e.columns(re, im, inverse)
	}

	for i := range re {
		buf[2*i] = re[i]
		buf[2*i+1] = im[i]
	}
}

// rows transforms each contiguous row of the planes in place.
func (e *Engine) rows(re, im []float32, inverse bool) {
	n := e.n
	for r := 0; r < n; r++ {
		e.Transform1D(re[r*n:(r+1)*n], im[r*n:(r+1)*n], inverse)
	}
}

func (e *Engine) columns(re, im []float32, inverse bool) {
	n := e.n
	colRe, colIm := e.colRe, e.colIm
	for c := 0; c < n; c++ {
		for r := 0; r < n; r++ {
			colRe[r] = re[r*n+c]
			colIm[r] = im[r*n+c]
		}
		e.Transform1D(colRe, colIm, inverse)
		for r := 0; r < n; r++ {
			re[r*n+c] = colRe[r]
			im[r*n+c] = colIm[r]
		}
	}
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Log2 returns the base-2 logarithm of a power of two.
func Log2(n int) int {
	bits := 0
	for tmp := n; tmp > 1; tmp >>= 1 {
		bits++
	}
	return bits
}

// ReverseBits reverses the lower bits of x.
func ReverseBits(x, bits int) int {
	result := 0
	for i := 0; i < bits; i++ {
		result = (result << 1) | (x & 1)
		x >>= 1
	}
	return result
}
