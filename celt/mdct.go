package celt

import "github.com/thesyncim/opuscore/internal/dsp"

// window is the rising half of the power-complementary overlap window.
var window = dsp.PowerComplementaryWindow(Overlap)

// mdct is a low-overlap MDCT of N coefficients. The transform is a 2N-point
// MDCT whose window is zero for (N-Overlap)/2 samples at each end, so a frame
// only touches N+Overlap input samples.
//
// The folding identity used in both directions, with the 2N input split in
// quarters (a, b, c, d) and _R denoting reversal:
//
//	MDCT(a, b, c, d) = DCT-IV(-c_R - d, a - b_R)
//	IMDCT(X)         = (u2, -u2_R, -u1_R, -u1), where (u1, u2) = DCT-IV(X)
type mdct struct {
	n    int
	dct  *dsp.DCT4
	buf  []float64 // 2N
	fold []float64 // N
}

func newMDCT(n int) *mdct {
	d, err := dsp.NewDCT4(n)
	if err != nil {
		// All CELT sizes factor into 2, 3 and 5.
		panic(err)
	}
	return &mdct{n: n, dct: d, buf: make([]float64, 2*n), fold: make([]float64, n)}
}

// windowed fills m.buf with the windowed 2N frame of in (N+Overlap samples).
func (m *mdct) windowed(in []float64) {
	n := m.n
	z := (n - Overlap) / 2
	clear(m.buf)
	for i := 0; i < Overlap; i++ {
		m.buf[z+i] = in[i] * window[i]
	}
	copy(m.buf[z+Overlap:z+n], in[Overlap:n])
	for i := 0; i < Overlap; i++ {
		m.buf[z+n+i] = in[n+i] * window[Overlap-1-i]
	}
}

// forward transforms N+Overlap input samples into N coefficients.
func (m *mdct) forward(in, out []float64) {
	m.windowed(in)
	n := m.n
	h := n / 2
	a := m.buf[0:h]
	b := m.buf[h:n]
	c := m.buf[n : n+h]
	d := m.buf[n+h:]
	for i := 0; i < h; i++ {
		m.fold[i] = -c[h-1-i] - d[i]
		m.fold[h+i] = a[i] - b[h-1-i]
	}
	m.dct.Transform(m.fold, out)
}

// inverse transforms N coefficients and writes the N+Overlap windowed
// output samples that overlap-add with neighbouring frames.
func (m *mdct) inverse(in, out []float64) {
	n := m.n
	h := n / 2
	m.dct.Transform(in, m.fold)
	u1 := m.fold[:h]
	u2 := m.fold[h:]
	y := m.buf
	for i := 0; i < h; i++ {
		y[i] = u2[i]
		y[h+i] = -u2[h-1-i]
		y[n+i] = -u1[h-1-i]
		y[n+h+i] = -u1[i]
	}
	z := (n - Overlap) / 2
	for i := 0; i < Overlap; i++ {
		out[i] = y[z+i] * window[i]
	}
	copy(out[Overlap:n], y[z+Overlap:z+n])
	for i := 0; i < Overlap; i++ {
		out[n+i] = y[z+n+i] * window[Overlap-1-i]
	}
}

// mdctSet owns one transform per frame size.
type mdctSet [MaxLM + 1]*mdct

func newMDCTSet() *mdctSet {
	var s mdctSet
	for lm := range s {
		s[lm] = newMDCT(120 << lm)
	}
	return &s
}
