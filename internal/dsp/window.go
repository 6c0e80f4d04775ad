package dsp

import "math"

// PowerComplementaryWindow returns the rising half of the CELT overlap
// window of length n:
//
//	w[i] = sin(pi/2 * sin(pi*(i+0.5)/(2n))^2)
//
// It satisfies w[i]^2 + w[n-1-i]^2 = 1, which is what makes overlap-add of
// the MDCT alias free.
func PowerComplementaryWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		s := math.Sin(math.Pi * (float64(i) + 0.5) / float64(2*n))
		w[i] = math.Sin(math.Pi / 2 * s * s)
	}
	return w
}

// HannWindow returns a symmetric Hann window of length n.
func HannWindow(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// AsymmetricWindow returns the LPC analysis window: a sine ramp over the
// first rise samples, flat, then a sine ramp down over the last fall
// samples.
func AsymmetricWindow(n, rise, fall int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	for i := 0; i < rise && i < n; i++ {
		w[i] = math.Sin(math.Pi / 2 * (float64(i) + 0.5) / float64(rise))
	}
	for i := 0; i < fall && i < n; i++ {
		w[n-1-i] = math.Sin(math.Pi / 2 * (float64(i) + 0.5) / float64(fall))
	}
	return w
}
