package celt

import "math"

// allocation is the per-band bit budget derived identically by encoder and
// decoder from the frame budget, the quantized band energies, band range,
// LM and channel count.
type allocation struct {
	// shape is the PVQ budget of each band for all channels, in 1/8 bits.
	shape [MaxBands]int
	// fine is the fine energy resolution of each band per channel, in bits.
	fine [MaxBands]int
}

// maxBitsPerBin caps the shape budget of a band, in 1/8 bits per bin.
const maxBitsPerBin = 64

// maxEnergyTilt bounds how far, in 3 dB steps, a band's energy may move its
// share away from the table.
const maxEnergyTilt = 6

// energyWeights returns a 1/16-unit weight per band from the quantized
// log2 energies: 16 for a band at the frame's mean level, more for louder
// bands and less for quieter ones. Energies are rounded to 3 dB steps so
// both ends derive the same weights.
func energyWeights(logE *[2][MaxBands]float64, start, end, channels int) [MaxBands]int {
	var level [MaxBands]int
	sum := 0
	for j := start; j < end; j++ {
		e := logE[0][j]
		if channels == 2 {
			e = math.Max(e, logE[1][j])
		}
		level[j] = int(math.Floor(2*e + 0.5))
		sum += level[j]
	}
	mean := sum / (end - start)
	var w [MaxBands]int
	for j := start; j < end; j++ {
		d := max(-maxEnergyTilt, min(level[j]-mean, maxEnergyTilt))
		w[j] = 16 + 2*d
	}
	return w
}

func rowBits(row, band, lm, channels int) int {
	w := EBands[band+1] - EBands[band]
	return (channels * w * bandAlloc[row][band] << lm) >> 2
}

func rowTotal(row, start, end, lm, channels int) int {
	t := 0
	for j := start; j < end; j++ {
		t += rowBits(row, j, lm, channels)
	}
	return t
}

// computeAllocation splits total (1/8 bits) across bands [start, end). The
// static table rows are interpolated in 1/64 steps to meet the budget; bits
// beyond the top row are spread in proportion to band width. With logE, the
// result is then redistributed toward the louder bands without changing its
// sum.
func computeAllocation(start, end, lm, channels, total int, logE *[2][MaxBands]float64) allocation {
	var a allocation
	var bits [MaxBands]int
	if total <= 0 || start >= end {
		return a
	}

	top := len(bandAlloc) - 1
	lo := 0
	for lo < top && rowTotal(lo+1, start, end, lm, channels) <= total {
		lo++
	}
	if lo == top {
		used := 0
		for j := start; j < end; j++ {
			bits[j] = rowBits(top, j, lm, channels)
			used += bits[j]
		}
		width := EBands[end] - EBands[start]
		extra := total - used
		for j := start; j < end; j++ {
			bits[j] += extra * (EBands[j+1] - EBands[j]) / width
		}
	} else {
		hi := lo + 1
		interp := func(alpha int) int {
			t := 0
			for j := start; j < end; j++ {
				l := rowBits(lo, j, lm, channels)
				h := rowBits(hi, j, lm, channels)
				t += l + (alpha*(h-l))>>6
			}
			return t
		}
		alpha := 0
		for step := 32; step > 0; step >>= 1 {
			if interp(alpha+step) <= total {
				alpha += step
			}
		}
		alpha = min(alpha, 63)
		for j := start; j < end; j++ {
			l := rowBits(lo, j, lm, channels)
			h := rowBits(hi, j, lm, channels)
			bits[j] = l + (alpha*(h-l))>>6
		}
	}

	if logE != nil {
		w := energyWeights(logE, start, end, channels)
		sum, weighted := 0, 0
		for j := start; j < end; j++ {
			sum += bits[j]
			weighted += bits[j] * w[j]
		}
		if weighted > 0 {
			for j := start; j < end; j++ {
				bits[j] = bits[j] * w[j] * sum / weighted
			}
		}
	}

	for j := start; j < end; j++ {
		n := (EBands[j+1] - EBands[j]) << lm
		b := min(bits[j], channels*n*maxBitsPerBin)
		per := b / channels
		var f int
		if n == 1 {
			f = per/8 - 1
		} else {
			f = (per+4*n)/(8*n) - 1
		}
		f = max(0, min(f, maxFineBits))
		f = min(f, b/(8*channels))
		a.fine[j] = f
		a.shape[j] = b - 8*f*channels
	}
	return a
}
