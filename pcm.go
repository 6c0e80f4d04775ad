package opuscore

import "math"

// float32ToInt16 scales a sample in [-1, 1] to int16 with saturation.
func float32ToInt16(sample float32) int16 {
	scaled := float64(sample) * 32768.0
	if scaled > 32767.0 {
		return 32767
	}
	if scaled < -32768.0 {
		return -32768
	}
	return int16(math.RoundToEven(scaled))
}

func int16ToFloat64(dst []float64, src []int16) []float64 {
	dst = growFloat64(dst, len(src))
	for i, v := range src {
		dst[i] = float64(v) / 32768.0
	}
	return dst
}

func float32ToFloat64(dst []float64, src []float32) []float64 {
	dst = growFloat64(dst, len(src))
	for i, v := range src {
		dst[i] = float64(v)
	}
	return dst
}

func growFloat64(s []float64, n int) []float64 {
	if cap(s) < n {
		return make([]float64, n)
	}
	return s[:n]
}
