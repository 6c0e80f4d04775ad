package dsp

import "math"

// Predictor coefficients use the convention
//
//	x̂[n] = sum_{j=1..p} a[j-1] * x[n-j]
//
// so the residual is e[n] = x[n] - x̂[n].

// Autocorrelation computes r[k] = sum x[n]*x[n-k] for k in [0, len(r)).
func Autocorrelation(x, r []float64) {
	for k := range r {
		var acc float64
		for n := k; n < len(x); n++ {
			acc += x[n] * x[n-k]
		}
		r[k] = acc
	}
}

// LagWindow applies a Gaussian lag window with the given bandwidth
// expansion in Hz and adds white noise correction to r[0].
func LagWindow(r []float64, bandwidthHz float64, sampleRate int, noiseFloor float64) {
	if len(r) == 0 {
		return
	}
	a := 2 * math.Pi * bandwidthHz / float64(sampleRate)
	for k := 1; k < len(r); k++ {
		fk := a * float64(k)
		r[k] *= math.Exp(-0.5 * fk * fk)
	}
	r[0] *= 1 + noiseFloor
}

// Levinson solves the normal equations for len(a) predictor coefficients
// from the autocorrelation r (len(r) > len(a)). The reflection coefficients
// are stored in k when it is non-nil. It returns the residual energy.
// A non-positive r[0] yields an all-zero predictor.
func Levinson(r, a, k []float64) float64 {
	p := len(a)
	for i := range a {
		a[i] = 0
	}
	for i := range k {
		k[i] = 0
	}
	e := r[0]
	if e <= 0 {
		return 0
	}
	var tmp [maxOrder]float64
	for i := 0; i < p; i++ {
		acc := r[i+1]
		for j := 0; j < i; j++ {
			acc -= a[j] * r[i-j]
		}
		ki := acc / e
		// Guard against ill-conditioned input.
		ki = math.Max(-0.9999, math.Min(ki, 0.9999))
		copy(tmp[:i], a[:i])
		for j := 0; j < i; j++ {
			a[j] = tmp[j] - ki*tmp[i-1-j]
		}
		a[i] = ki
		if k != nil {
			k[i] = ki
		}
		e *= 1 - ki*ki
	}
	return e
}

// maxOrder bounds the prediction order accepted by Levinson and
// ReflectionToLPC.
const maxOrder = 32

// ReflectionToLPC converts reflection coefficients into predictor
// coefficients with the step-up recursion. Any |k| < 1 gives a stable
// synthesis filter.
func ReflectionToLPC(k, a []float64) {
	var tmp [maxOrder]float64
	for i, ki := range k {
		copy(tmp[:i], a[:i])
		for j := 0; j < i; j++ {
			a[j] = tmp[j] - ki*tmp[i-1-j]
		}
		a[i] = ki
	}
}

// Chirp scales a[j] by g^(j+1), moving the poles toward the origin.
func Chirp(a []float64, g float64) {
	f := g
	for j := range a {
		a[j] *= f
		f *= g
	}
}

// Residual computes e[n] = x[n] - sum a[j]*x[n-1-j] for n in
// [len(a), len(x)). x must carry len(a) samples of history in front; out
// receives len(x)-len(a) values.
func Residual(x, a, out []float64) {
	p := len(a)
	for n := p; n < len(x); n++ {
		acc := x[n]
		for j := 0; j < p; j++ {
			acc -= a[j] * x[n-1-j]
		}
		out[n-p] = acc
	}
}

// Energy returns the sum of squares of x.
func Energy(x []float64) float64 {
	var e float64
	for _, v := range x {
		e += v * v
	}
	return e
}

// InnerProduct returns sum x[i]*y[i] over the shorter slice.
func InnerProduct(x, y []float64) float64 {
	n := min(len(x), len(y))
	var acc float64
	for i := 0; i < n; i++ {
		acc += x[i] * y[i]
	}
	return acc
}
