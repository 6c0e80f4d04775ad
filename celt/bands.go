package celt

import (
	"math"

	"github.com/thesyncim/opuscore/rangecoding"
)

// bandCoder holds the scratch space of the shape quantizer.
type bandCoder struct {
	// refine is the number of pulse refinement passes of the encoder.
	refine int
	y      [maxPVQDim]int
	absX   [maxPVQDim]float64
}

// thetaBits returns the resolution of the split angle of an n-dimensional
// vector with the given budget (1/8 bits).
func thetaBits(n, bits int) int {
	qb := bits/(8*n) + bitsLen(n)/2
	qb = max(2, min(qb, 12))
	return max(1, min(qb, bits/16))
}

func bitsLen(n int) int {
	l := 0
	for n > 0 {
		l++
		n >>= 1
	}
	return l
}

// splitBudget returns the share of rem given to the first half of a split
// vector. The share follows the coded angle and is weighted by the half
// sizes; it is computed in integers so both ends agree exactly.
func splitBudget(n1, n2, itheta, qn, rem int) int {
	switch {
	case rem <= 0:
		return 0
	case itheta == 0:
		return rem
	case itheta == qn:
		return 0
	}
	w1 := n1 * (3*qn - 2*itheta)
	w2 := n2 * (qn + 2*itheta)
	return rem * w1 / (w1 + w2)
}

func thetaAngle(itheta, qn int) float64 {
	return float64(itheta) * (math.Pi / 2) / float64(qn)
}

// encodeShape codes the unit vector x with at most bits (1/8 bits). x is
// clobbered.
func (bc *bandCoder) encodeShape(enc *rangecoding.Encoder, x []float64, bits int) {
	n := len(x)
	if n == 1 {
		if bits >= 8 {
			enc.EncodeRawBits(uint32(boolInt(x[0] < 0)), 1)
		}
		return
	}
	k, capped := pulsesForBudget(n, bits)
	if capped {
		bc.encodeSplit(enc, x, bits)
		return
	}
	if k == 0 {
		return
	}
	y := bc.y[:n]
	pvqSearch(x, k, y, bc.absX[:n], bc.refine)
	enc.EncodeUniform(encodePulses(y, k), pvqCount(n, k))
}

func (bc *bandCoder) encodeSplit(enc *rangecoding.Encoder, x []float64, bits int) {
	n := len(x)
	n1 := n / 2
	x1, x2 := x[:n1], x[n1:]
	e1 := math.Sqrt(energy(x1))
	e2 := math.Sqrt(energy(x2))

	qn := 1 << thetaBits(n, bits)
	itheta := int(math.Floor(math.Atan2(e2, e1)/(math.Pi/2)*float64(qn) + 0.5))
	itheta = max(0, min(itheta, qn))

	start := enc.TellFrac()
	enc.EncodeUniform(uint64(itheta), uint64(qn+1))
	rem := bits - (enc.TellFrac() - start)

	scaleUnit(x1, e1)
	scaleUnit(x2, e2)

	b1 := splitBudget(n1, n-n1, itheta, qn, rem)
	start = enc.TellFrac()
	bc.encodeShape(enc, x1, b1)
	if itheta == 0 {
		return
	}
	bc.encodeShape(enc, x2, rem-(enc.TellFrac()-start))
}

func scaleUnit(x []float64, norm float64) {
	if norm < 1e-15 {
		clear(x)
		return
	}
	g := 1 / norm
	for i := range x {
		x[i] *= g
	}
}

// decodeShape mirrors encodeShape and writes a unit vector into x. Parts
// that received no pulses are filled with noise drawn from seed.
func (bc *bandCoder) decodeShape(dec *rangecoding.Decoder, x []float64, bits int, seed *uint32) {
	n := len(x)
	if n == 1 {
		var neg bool
		if bits >= 8 {
			neg = dec.DecodeRawBits(1) == 1
		} else {
			neg = lcgNext(seed) < 0
		}
		x[0] = 1
		if neg {
			x[0] = -1
		}
		return
	}
	k, capped := pulsesForBudget(n, bits)
	if capped {
		bc.decodeSplit(dec, x, bits, seed)
		return
	}
	if k == 0 {
		noiseFill(x, seed)
		return
	}
	y := bc.y[:n]
	decodePulses(dec.DecodeUniform(pvqCount(n, k)), y, k)
	normalizePulses(y, x)
}

func (bc *bandCoder) decodeSplit(dec *rangecoding.Decoder, x []float64, bits int, seed *uint32) {
	n := len(x)
	n1 := n / 2
	x1, x2 := x[:n1], x[n1:]

	qn := 1 << thetaBits(n, bits)
	start := dec.TellFrac()
	itheta := int(dec.DecodeUniform(uint64(qn + 1)))
	rem := bits - (dec.TellFrac() - start)

	b1 := splitBudget(n1, n-n1, itheta, qn, rem)
	start = dec.TellFrac()
	bc.decodeShape(dec, x1, b1, seed)
	if itheta == 0 {
		clear(x2)
		return
	}
	bc.decodeShape(dec, x2, rem-(dec.TellFrac()-start), seed)

	theta := thetaAngle(itheta, qn)
	g1, g2 := math.Cos(theta), math.Sin(theta)
	for i := range x1 {
		x1[i] *= g1
	}
	for i := range x2 {
		x2[i] *= g2
	}
}

// lcgNext advances the noise generator and returns its new state as a
// signed value.
func lcgNext(seed *uint32) int32 {
	*seed = *seed*1664525 + 1013904223
	return int32(*seed)
}

// noiseFill writes a unit-norm pseudo-random vector into x.
func noiseFill(x []float64, seed *uint32) {
	for i := range x {
		x[i] = float64(lcgNext(seed) >> 20)
	}
	scaleUnit(x, math.Sqrt(energy(x)))
	if energy(x) == 0 {
		x[0] = 1
	}
}

// stereoShare returns the mid channel's share of a band budget in 1/16
// units given the mid and side log-energies. Energies are rounded to 3 dB
// steps before the decision so small float differences cannot desync the
// two ends.
func stereoShare(eMid, eSide float64) int {
	d := int(math.Floor(2*(eMid-eSide) + 0.5))
	return max(2, min(8+d, 14))
}

// encodeBands codes the normalized shapes of all bands. X holds the
// normalized spectrum of each coded channel (mid and side for stereo).
// total is the frame budget in 1/8 bits.
func (bc *bandCoder) encodeBands(enc *rangecoding.Encoder, X *[2][MaxFrameSize]float64,
	logE *[2][MaxBands]float64, a *allocation, start, end, lm, channels, total int) {
	balance := 0
	for i := start; i < end; i++ {
		lo, hi := bandRange(i, lm)
		b := bandBudget(a.shape[i]+balance, total-enc.TellFrac()-8)
		before := enc.TellFrac()
		if channels == 2 {
			bm := b * stereoShare(logE[0][i], logE[1][i]) / 16
			bc.encodeShape(enc, X[0][lo:hi], bm)
			bc.encodeShape(enc, X[1][lo:hi], b-bm)
		} else {
			bc.encodeShape(enc, X[0][lo:hi], b)
		}
		balance = b - (enc.TellFrac() - before)
	}
}

// decodeBands mirrors encodeBands, writing unit-norm shapes into X.
func (bc *bandCoder) decodeBands(dec *rangecoding.Decoder, X *[2][MaxFrameSize]float64,
	logE *[2][MaxBands]float64, a *allocation, start, end, lm, channels, total int, seed *uint32) {
	balance := 0
	for i := start; i < end; i++ {
		lo, hi := bandRange(i, lm)
		b := bandBudget(a.shape[i]+balance, total-dec.TellFrac()-8)
		before := dec.TellFrac()
		if channels == 2 {
			bm := b * stereoShare(logE[0][i], logE[1][i]) / 16
			bc.decodeShape(dec, X[0][lo:hi], bm, seed)
			bc.decodeShape(dec, X[1][lo:hi], b-bm, seed)
		} else {
			bc.decodeShape(dec, X[0][lo:hi], b, seed)
		}
		balance = b - (dec.TellFrac() - before)
	}
}

func bandBudget(want, remaining int) int {
	return max(0, min(want, remaining))
}
