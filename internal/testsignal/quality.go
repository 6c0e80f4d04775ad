package testsignal

import "math"

// SNR returns the signal-to-noise ratio in dB of got against ref, with got
// delayed by delay samples per channel. Samples before the delay are
// skipped.
func SNR(ref, got []float32, channels, delay int) float64 {
	var sig, noise float64
	for i := 0; i+delay*channels < len(got) && i < len(ref); i++ {
		r := float64(ref[i])
		d := r - float64(got[i+delay*channels])
		sig += r * r
		noise += d * d
	}
	if sig == 0 {
		return math.Inf(-1)
	}
	return 10 * math.Log10(sig/(noise+1e-20))
}

// AlignedSNR searches delays 0..maxDelay and returns the best SNR and the
// delay that produced it.
func AlignedSNR(ref, got []float32, channels, maxDelay int) (float64, int) {
	best, at := math.Inf(-1), 0
	for d := 0; d <= maxDelay; d++ {
		if s := SNR(ref, got, channels, d); s > best {
			best, at = s, d
		}
	}
	return best, at
}

// Peak returns the largest absolute sample.
func Peak(x []float32) float64 {
	var p float64
	for _, v := range x {
		p = math.Max(p, math.Abs(float64(v)))
	}
	return p
}

// RMS returns the root mean square of x.
func RMS(x []float32) float64 {
	if len(x) == 0 {
		return 0
	}
	var s float64
	for _, v := range x {
		s += float64(v) * float64(v)
	}
	return math.Sqrt(s / float64(len(x)))
}
