package dsp

import (
	"errors"
	"math"
	"math/cmplx"
)

// ErrFFTSize is returned for transform sizes that do not factor into
// radices 2, 3, 4 and 5.
var ErrFFTSize = errors.New("dsp: unsupported FFT size")

// FFT is a precomputed mixed-radix decimation-in-time complex FFT.
// Plans carry scratch space and are not safe for concurrent use.
type FFT struct {
	n       int
	factors []int
	twiddle []complex128
	scratch []complex128
}

// NewFFT plans a forward transform of size n.
func NewFFT(n int) (*FFT, error) {
	if n < 1 {
		return nil, ErrFFTSize
	}
	factors, ok := factorize(n)
	if !ok {
		return nil, ErrFFTSize
	}
	f := &FFT{
		n:       n,
		factors: factors,
		twiddle: make([]complex128, n),
		scratch: make([]complex128, n),
	}
	for k := range f.twiddle {
		f.twiddle[k] = cmplx.Rect(1, -2*math.Pi*float64(k)/float64(n))
	}
	return f, nil
}

// Size returns the transform length.
func (f *FFT) Size() int { return f.n }

func factorize(n int) ([]int, bool) {
	var out []int
	for n%4 == 0 {
		out = append(out, 4)
		n /= 4
	}
	for _, p := range []int{2, 3, 5} {
		for n%p == 0 {
			out = append(out, p)
			n /= p
		}
	}
	return out, n == 1
}

// Forward computes X[k] = sum x[n] e^{-2 pi i nk/N} of x in place.
func (f *FFT) Forward(x []complex128) {
	copy(f.scratch, x)
	f.pass(x, 0, f.scratch, 0, 1, f.n, f.factors)
}

func (f *FFT) pass(out []complex128, oo int, in []complex128, io, stride, n int, factors []int) {
	if n == 1 {
		out[oo] = in[io]
		return
	}
	p := factors[0]
	m := n / p
	for r := 0; r < p; r++ {
		f.pass(out, oo+r*m, in, io+r*stride, stride*p, m, factors[1:])
	}
	step := f.n / n
	var tmp [5]complex128
	for k := 0; k < m; k++ {
		for r := 0; r < p; r++ {
			tmp[r] = out[oo+r*m+k] * f.twiddle[(r*k*step)%f.n]
		}
		for q := 0; q < p; q++ {
			s := tmp[0]
			for r := 1; r < p; r++ {
				s += tmp[r] * f.twiddle[((r*q*m)%n)*step]
			}
			out[oo+k+q*m] = s
		}
	}
}
