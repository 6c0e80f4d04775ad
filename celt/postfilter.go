package celt

import "math"

// The pitch comb filter boosts the harmonics of a periodic signal after
// decoding. The encoder applies the FIR inverse before the MDCT so the coded
// spectrum is flatter, and the decoder applies the IIR form
//
//	y[n] = x[n] + g * (k0*y[n-T] + k1*(y[n-T-1]+y[n-T+1]) + k2*(y[n-T-2]+y[n-T+2]))
//
// Parameter changes are cross-faded over the first Overlap samples of a frame
// using the squared overlap window.

const (
	minPeriod = 15
	maxPeriod = 1022

	// combMem is the filter history kept per channel.
	combMem = 1024
)

// combTaps are the three selectable kernels.
var combTaps = [3][3]float64{
	{0.3066406250, 0.2170410156, 0.1296386719},
	{0.4638671875, 0.2680664062, 0.0000000000},
	{0.7998046875, 0.1000976562, 0.0000000000},
}

// postFilter is one set of comb filter parameters.
type postFilter struct {
	period int
	gain   float64
	tapset int
}

func (p postFilter) active() bool { return p.gain != 0 }

// gainFromIndex maps the 3-bit gain index to the filter gain.
func gainFromIndex(qg int) float64 {
	return 3 * float64(qg+1) / 32
}

func combTap(buf []float64, pos int, p postFilter) float64 {
	k := &combTaps[p.tapset]
	t := pos - p.period
	return k[0]*buf[t] + k[1]*(buf[t-1]+buf[t+1]) + k[2]*(buf[t-2]+buf[t+2])
}

// applyPrefilter runs the FIR inverse of the post-filter over
// buf[combMem:combMem+n] into out. buf carries combMem samples of raw
// history in front of the frame.
func applyPrefilter(buf, out []float64, n int, old, cur postFilter) {
	if !old.active() && !cur.active() {
		copy(out[:n], buf[combMem:combMem+n])
		return
	}
	for i := 0; i < n; i++ {
		pos := combMem + i
		var f float64
		if i < Overlap {
			w := window[i] * window[i]
			if old.active() {
				f += (1 - w) * old.gain * combTap(buf, pos, old)
			}
			if cur.active() {
				f += w * cur.gain * combTap(buf, pos, cur)
			}
		} else if cur.active() {
			f = cur.gain * combTap(buf, pos, cur)
		}
		out[i] = buf[pos] - f
	}
}

// applyPostfilter runs the IIR comb filter in place over
// buf[combMem:combMem+n]; the combMem samples in front are past output.
func applyPostfilter(buf []float64, n int, old, cur postFilter) {
	if !old.active() && !cur.active() {
		return
	}
	for i := 0; i < n; i++ {
		pos := combMem + i
		var f float64
		if i < Overlap {
			w := window[i] * window[i]
			if old.active() {
				f += (1 - w) * old.gain * combTap(buf, pos, old)
			}
			if cur.active() {
				f += w * cur.gain * combTap(buf, pos, cur)
			}
		} else if cur.active() {
			f = cur.gain * combTap(buf, pos, cur)
		}
		buf[pos] += f
	}
}

// findPitch searches buf[combMem:combMem+n] against its own past for the
// period with the highest normalized correlation. A coarse search on a 2x
// decimated signal is refined at full rate; shorter submultiples that
// correlate nearly as well are preferred to avoid octave errors.
func findPitch(buf []float64, n int, dec []float64, effort int) (period int, corr float64) {
	total := combMem + n
	half := total / 2
	for i := 0; i < half; i++ {
		dec[i] = 0.5 * (buf[2*i] + buf[2*i+1])
	}
	dn := n / 2
	dstart := combMem / 2
	x := dec[dstart : dstart+dn]
	ex := energy(x)
	if ex <= 1e-9 {
		return 0, 0
	}

	bestLag, bestScore := 0, -1.0
	for lag := minPeriod / 2; lag <= maxPeriod/2; lag++ {
		y := dec[dstart-lag : dstart-lag+dn]
		xy := dot(x, y)
		if xy <= 0 {
			continue
		}
		score := xy * xy / (energy(y) + 1e-9)
		if score > bestScore {
			bestLag, bestScore = lag, score
		}
	}
	if bestLag == 0 {
		return 0, 0
	}

	refine := 1 + effort/4
	period, corr = 0, -1
	for t := 2*bestLag - refine; t <= 2*bestLag+refine; t++ {
		if t < minPeriod || t > maxPeriod {
			continue
		}
		if c := normCorr(buf, n, t); c > corr {
			period, corr = t, c
		}
	}
	for _, div := range []int{3, 2} {
		t := (period + div/2) / div
		if t < minPeriod {
			continue
		}
		if c := normCorr(buf, n, t); c > 0.85*corr {
			period, corr = t, c
		}
	}
	return period, corr
}

func normCorr(buf []float64, n, t int) float64 {
	x := buf[combMem : combMem+n]
	y := buf[combMem-t : combMem-t+n]
	ex, ey := energy(x), energy(y)
	if ex <= 1e-9 || ey <= 1e-9 {
		return 0
	}
	return dot(x, y) / math.Sqrt(ex*ey)
}

func energy(x []float64) float64 {
	var e float64
	for _, v := range x {
		e += v * v
	}
	return e
}

func dot(x, y []float64) float64 {
	var e float64
	for i, v := range x {
		e += v * y[i]
	}
	return e
}
