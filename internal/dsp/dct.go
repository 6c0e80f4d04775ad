package dsp

import (
	"errors"
	"math"
	"math/cmplx"
)

// ErrDCTSize is returned for odd or unsupported DCT-IV lengths.
var ErrDCTSize = errors.New("dsp: unsupported DCT-IV size")

// DCT4 computes the orthonormal type-IV DCT
//
//	X[k] = sqrt(2/N) * sum x[n] cos(pi/N (n+1/2)(k+1/2))
//
// through a complex FFT of size N/2. The transform is its own inverse.
type DCT4 struct {
	n    int
	fft  *FFT
	pre  []complex128
	post []complex128
	buf  []complex128
}

// NewDCT4 plans a DCT-IV of even size n.
func NewDCT4(n int) (*DCT4, error) {
	if n < 2 || n%2 != 0 {
		return nil, ErrDCTSize
	}
	m := n / 2
	fft, err := NewFFT(m)
	if err != nil {
		return nil, errors.Join(ErrDCTSize, err)
	}
	d := &DCT4{
		n:    n,
		fft:  fft,
		pre:  make([]complex128, m),
		post: make([]complex128, m),
		buf:  make([]complex128, m),
	}
	scale := math.Sqrt(2 / float64(n))
	for p := 0; p < m; p++ {
		d.pre[p] = cmplx.Rect(1, -math.Pi*(float64(p)+0.25)/float64(n))
		d.post[p] = cmplx.Rect(scale, -math.Pi*float64(p)/float64(n))
	}
	return d, nil
}

// Size returns the transform length.
func (d *DCT4) Size() int { return d.n }

// Transform writes the DCT-IV of in to out. Both must hold Size values and
// may alias.
func (d *DCT4) Transform(in, out []float64) {
	n := d.n
	m := n / 2
	for p := 0; p < m; p++ {
		d.buf[p] = complex(in[2*p], in[n-1-2*p]) * d.pre[p]
	}
	d.fft.Forward(d.buf)
	for q := 0; q < m; q++ {
		y := d.buf[q] * d.post[q]
		out[2*q] = real(y)
		out[n-1-2*q] = -imag(y)
	}
}
