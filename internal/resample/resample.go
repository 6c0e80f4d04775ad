// Package resample converts between 48 kHz and the integer sub-rates used by
// the codec (8, 12, 16 and 24 kHz).
//
// Every direction uses the same 121-tap Kaiser-windowed sinc prototype
// running at 48 kHz, so every conversion has a group delay of exactly
// DelayAt48k samples at 48 kHz regardless of the factor. A round trip
// through a sub-rate therefore costs 2*DelayAt48k, which equals the CELT
// overlap delay and keeps the SILK and CELT paths aligned in hybrid frames.
package resample

import (
	"errors"
	"math"
)

const (
	// Taps is the prototype filter length at 48 kHz.
	Taps = 121

	// DelayAt48k is the group delay of one conversion in 48 kHz samples.
	DelayAt48k = (Taps - 1) / 2

	kaiserBeta = 6.0

	// cutoffRatio places the -6 dB point relative to the sub-rate Nyquist.
	cutoffRatio = 0.88
)

// ErrUnsupportedRate is returned for rate pairs other than 48 kHz to or from
// 8, 12, 16, 24 or 48 kHz.
var ErrUnsupportedRate = errors.New("resample: unsupported rate pair")

// Resampler is a stateful single-channel converter.
type Resampler struct {
	factor int
	up     bool
	taps   []float64
	hist   []float64
	work   []float64
}

// New returns a resampler from inRate to outRate. One of the rates must be
// 48000 and the other must divide it by 1, 2, 3, 4 or 6.
func New(inRate, outRate int) (*Resampler, error) {
	switch {
	case inRate == 48000 && validSubRate(outRate):
		return build(48000/outRate, false), nil
	case outRate == 48000 && validSubRate(inRate):
		return build(48000/inRate, true), nil
	default:
		return nil, ErrUnsupportedRate
	}
}

func validSubRate(rate int) bool {
	switch rate {
	case 8000, 12000, 16000, 24000, 48000:
		return true
	}
	return false
}

func build(factor int, up bool) *Resampler {
	r := &Resampler{factor: factor, up: up}
	if factor == 1 {
		return r
	}
	r.taps = design(factor)
	if up {
		r.hist = make([]float64, (Taps-1)/factor)
	} else {
		r.hist = make([]float64, Taps-1)
	}
	return r
}

// design returns the lowpass prototype normalized to unity DC gain.
func design(factor int) []float64 {
	h := make([]float64, Taps)
	fc := cutoffRatio * 0.5 / float64(factor)
	center := float64(DelayAt48k)
	norm := bessel0(kaiserBeta)
	var sum float64
	for k := range h {
		t := float64(k) - center
		var s float64
		if t == 0 {
			s = 2 * fc
		} else {
			s = math.Sin(2*math.Pi*fc*t) / (math.Pi * t)
		}
		ratio := t / center
		w := bessel0(kaiserBeta*math.Sqrt(1-ratio*ratio)) / norm
		h[k] = s * w
		sum += h[k]
	}
	for k := range h {
		h[k] /= sum
	}
	return h
}

// bessel0 is the zeroth order modified Bessel function of the first kind.
func bessel0(x float64) float64 {
	sum, term := 1.0, 1.0
	half := x / 2
	for k := 1; k < 50; k++ {
		term *= half / float64(k)
		sum += term * term
		if term*term < sum*1e-17 {
			break
		}
	}
	return sum
}

// Factor returns the integer rate ratio.
func (r *Resampler) Factor() int { return r.factor }

// Delay returns the group delay in 48 kHz samples.
func (r *Resampler) Delay() int {
	if r.factor == 1 {
		return 0
	}
	return DelayAt48k
}

// Reset clears the filter history.
func (r *Resampler) Reset() {
	clear(r.hist)
}

// Process converts in and appends the result to dst. Downsamplers require
// len(in) to be a multiple of the factor.
func (r *Resampler) Process(dst, in []float64) []float64 {
	switch {
	case r.factor == 1:
		return append(dst, in...)
	case r.up:
		return r.upsample(dst, in)
	default:
		return r.downsample(dst, in)
	}
}

func (r *Resampler) downsample(dst, in []float64) []float64 {
	L := r.factor
	n := len(r.hist) + len(in)
	if cap(r.work) < n {
		r.work = make([]float64, n)
	}
	buf := r.work[:n]
	copy(buf, r.hist)
	copy(buf[len(r.hist):], in)
	for pos := len(r.hist); pos+L <= n; pos += L {
		var acc float64
		for k, h := range r.taps {
			acc += h * buf[pos-k]
		}
		dst = append(dst, acc)
	}
	copy(r.hist, buf[n-len(r.hist):])
	return dst
}

func (r *Resampler) upsample(dst, in []float64) []float64 {
	L := r.factor
	H := len(r.hist)
	n := H + len(in)
	if cap(r.work) < n {
		r.work = make([]float64, n)
	}
	buf := r.work[:n]
	copy(buf, r.hist)
	copy(buf[H:], in)
	gain := float64(L)
	for m := H; m < n; m++ {
		for phase := 0; phase < L; phase++ {
			var acc float64
			for i := 0; i*L+phase < Taps; i++ {
				acc += r.taps[i*L+phase] * buf[m-i]
			}
			dst = append(dst, gain*acc)
		}
	}
	copy(r.hist, buf[n-H:])
	return dst
}

// History is a copy of a resampler's filter memory.
type History [Taps - 1]float64

// State returns a copy of the filter history.
func (r *Resampler) State() History {
	var h History
	copy(h[:], r.hist)
	return h
}

// SetState restores a history returned by State.
func (r *Resampler) SetState(h History) {
	copy(r.hist, h[:])
}
