// Package util provides small numeric helpers shared by the codec cores.
package util

import "math/bits"

// Signed is a constraint for signed integer and float types.
type Signed interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~float32 | ~float64
}

// Abs returns the absolute value of x.
func Abs[T Signed](x T) T {
	if x < 0 {
		return -x
	}
	return x
}

// Clamp limits x to [lo, hi].
func Clamp[T Signed](x, lo, hi T) T {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// ILog returns the number of bits needed to represent x (0 for x == 0).
func ILog(x uint32) int {
	return bits.Len32(x)
}

// ILog64 is the 64-bit variant of ILog.
func ILog64(x uint64) int {
	return bits.Len64(x)
}
