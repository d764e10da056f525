package fft

// FFT returns the forward transform of x. len(x) must be a power of two.
// The computation runs in single precision.
func FFT(x []complex128) []complex128 {
	return transformComplex(x, false)
}

// IFFT returns the inverse transform of x, scaled by 1/N.
func IFFT(x []complex128) []complex128 {
	return transformComplex(x, true)
}

// RealIFFT performs IFFT and returns only the real part.
func RealIFFT(x []complex128) []float64 {
	result := IFFT(x)
	out := make([]float64, len(result))
	for i, v := range result {
		out[i] = real(v)
	}
	return out
}

func transformComplex(x []complex128, inverse bool) []complex128 {
	n := len(x)
	out := make([]complex128, n)
	if n <= 1 {
		copy(out, x)
		return out
	}

	re := make([]float32, n)
	im := make([]float32, n)
	for i, v := range x {
		re[i] = float32(real(v))
		im[i] = float32(imag(v))
	}

	NewEngine(n).Transform1D(re, im, inverse)

	for i := range out {
		out[i] = complex(float64(re[i]), float64(im[i]))
	}
	return out
}
