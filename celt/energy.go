package celt

import (
	"math"

	"github.com/thesyncim/opuscore/rangecoding"
)

// bandEnergies computes the log2 amplitude of each band relative to eMeans
// and normalizes the band to unit norm in place. Bands outside [start, end)
// are cleared.
func bandEnergies(x []float64, start, end, lm int, logE *[MaxBands]float64) {
	for b := 0; b < MaxBands; b++ {
		lo, hi := bandRange(b, lm)
		if b < start || b >= end {
			clear(x[lo:hi])
			logE[b] = energyFloor
			continue
		}
		var e float64
		for _, v := range x[lo:hi] {
			e += v * v
		}
		amp := math.Sqrt(e + 1e-27)
		g := 1 / amp
		for j := lo; j < hi; j++ {
			x[j] *= g
		}
		logE[b] = math.Max(energyFloor, math.Log2(amp)-eMeans[b])
	}
	clear(x[EBands[MaxBands]<<lm:])
}

// bandGain converts a quantized log-energy back to a linear amplitude.
func bandGain(b int, logE float64) float64 {
	return math.Exp2(math.Min(logE+eMeans[b], 32))
}

// coarseParams selects the predictor and Laplace model of a frame.
func coarseParams(lm int, intra bool) (coef, beta float64, prob *[42]uint8) {
	if intra {
		return 0, betaIntra, &eProbModel[lm][1]
	}
	return alphaCoef[lm], betaCoef[lm], &eProbModel[lm][0]
}

// coarseCost estimates the size of the residuals a frame would code with
// the given prediction, used to pick between intra and inter frames.
func coarseCost(target, old *[2][MaxBands]float64, start, end, channels, lm int, intra bool) float64 {
	coef, beta, _ := coarseParams(lm, intra)
	var prev [2]float64
	var cost float64
	for i := start; i < end; i++ {
		for c := 0; c < channels; c++ {
			oldE := math.Max(-9, old[c][i])
			f := target[c][i] - coef*oldE - prev[c]
			q := math.Floor(f + 0.5)
			cost += math.Abs(q)
			prev[c] += q - beta*q
		}
	}
	return cost
}

// quantCoarse codes the coarse band energies. old holds the previous frame's
// quantized energies on entry and this frame's on return; errE receives the
// remaining quantization error for the fine pass. budget is the frame size
// in bits.
func quantCoarse(enc *rangecoding.Encoder, target, old, errE *[2][MaxBands]float64,
	start, end, channels, lm int, intra bool, budget int) {
	coef, beta, prob := coarseParams(lm, intra)
	var prev [2]float64
	for i := start; i < end; i++ {
		pi := 2 * min(i, 20)
		for c := 0; c < channels; c++ {
			x := target[c][i]
			oldE := math.Max(-9, old[c][i])
			f := x - coef*oldE - prev[c]
			qi := int(math.Floor(f + 0.5))
			// Keep the energy from collapsing faster than the floor allows.
			if floor := energyFloor - coef*oldE - prev[c]; float64(qi) < math.Floor(floor) {
				qi = int(math.Floor(floor))
			}

			tell := enc.Tell()
			left := budget - tell - 3*channels*(end-i)
			if i != start && left < 30 {
				if left < 24 {
					qi = min(1, qi)
				}
				if left < 16 {
					qi = max(-1, qi)
				}
			}
			switch {
			case budget-tell >= 15:
				qi = max(-40, min(qi, 40))
				qi = enc.EncodeLaplace(qi, uint32(prob[pi])<<7, int(prob[pi+1])<<6)
			case budget-tell >= 2:
				qi = max(-1, min(qi, 1))
				enc.EncodeICDF(2*qi^-boolInt(qi < 0), smallEnergyICDF, 2)
			case budget-tell >= 1:
				qi = min(0, qi)
				enc.EncodeBit(-qi, 1)
			default:
				qi = -1
			}
			q := float64(qi)
			old[c][i] = coef*oldE + prev[c] + q
			errE[c][i] = x - old[c][i]
			prev[c] += q - beta*q
		}
	}
}

// decodeCoarse mirrors quantCoarse.
func decodeCoarse(dec *rangecoding.Decoder, old *[2][MaxBands]float64,
	start, end, channels, lm int, intra bool, budget int) {
	coef, beta, prob := coarseParams(lm, intra)
	var prev [2]float64
	for i := start; i < end; i++ {
		pi := 2 * min(i, 20)
		for c := 0; c < channels; c++ {
			tell := dec.Tell()
			var qi int
			switch {
			case budget-tell >= 15:
				qi = dec.DecodeLaplace(uint32(prob[pi])<<7, int(prob[pi+1])<<6)
			case budget-tell >= 2:
				s := dec.DecodeICDF(smallEnergyICDF, 2)
				qi = (s >> 1) ^ -(s & 1)
			case budget-tell >= 1:
				qi = -dec.DecodeBit(1)
			default:
				qi = -1
			}
			oldE := math.Max(-9, old[c][i])
			q := float64(qi)
			old[c][i] = coef*oldE + prev[c] + q
			prev[c] += q - beta*q
		}
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// quantFine refines each band by fine[i] raw bits per channel.
func quantFine(enc *rangecoding.Encoder, old, errE *[2][MaxBands]float64, fine *[MaxBands]int,
	start, end, channels int) {
	for i := start; i < end; i++ {
		f := fine[i]
		if f == 0 {
			continue
		}
		scale := float64(int(1) << f)
		for c := 0; c < channels; c++ {
			q := int(math.Floor((errE[c][i] + 0.5) * scale))
			q = max(0, min(q, int(scale)-1))
			enc.EncodeRawBits(uint32(q), uint(f))
			off := (float64(q)+0.5)/scale - 0.5
			old[c][i] += off
			errE[c][i] -= off
		}
	}
}

// decodeFine mirrors quantFine.
func decodeFine(dec *rangecoding.Decoder, old *[2][MaxBands]float64, fine *[MaxBands]int,
	start, end, channels int) {
	for i := start; i < end; i++ {
		f := fine[i]
		if f == 0 {
			continue
		}
		scale := float64(int(1) << f)
		for c := 0; c < channels; c++ {
			q := dec.DecodeRawBits(uint(f))
			old[c][i] += (float64(q)+0.5)/scale - 0.5
		}
	}
}

// quantFinal spends the bits left after shape coding on one more bit of
// energy resolution per band and channel, in two passes over the bands.
func quantFinal(enc *rangecoding.Encoder, old, errE *[2][MaxBands]float64, fine *[MaxBands]int,
	start, end, channels, bitsLeft int) {
	var extra [MaxBands]int
	for pass := 0; pass < 2; pass++ {
		for i := start; i < end && bitsLeft >= channels; i++ {
			res := fine[i] + extra[i]
			if res >= maxFineBits {
				continue
			}
			step := math.Exp2(-float64(res + 1))
			for c := 0; c < channels; c++ {
				q := 1
				if errE[c][i] < 0 {
					q = 0
				}
				enc.EncodeRawBits(uint32(q), 1)
				off := (float64(q) - 0.5) * step
				old[c][i] += off
				errE[c][i] -= off
			}
			bitsLeft -= channels
			extra[i]++
		}
	}
}

// decodeFinal mirrors quantFinal.
func decodeFinal(dec *rangecoding.Decoder, old *[2][MaxBands]float64, fine *[MaxBands]int,
	start, end, channels, bitsLeft int) {
	var extra [MaxBands]int
	for pass := 0; pass < 2; pass++ {
		for i := start; i < end && bitsLeft >= channels; i++ {
			res := fine[i] + extra[i]
			if res >= maxFineBits {
				continue
			}
			step := math.Exp2(-float64(res + 1))
			for c := 0; c < channels; c++ {
				q := dec.DecodeRawBits(1)
				old[c][i] += (float64(q) - 0.5) * step
			}
			bitsLeft -= channels
			extra[i]++
		}
	}
}
