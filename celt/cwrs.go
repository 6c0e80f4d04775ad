package celt

import "math/bits"

// Pulse vectors are enumerated recursively: the first coordinate runs
// through 0, +1, -1, +2, -2, ... and, for each value, the remaining N-1
// coordinates are enumerated with the pulses that are left. V(N, K) counts
// the integer vectors of dimension N with sum |y_i| = K.

const (
	// maxPVQDim is the widest band at LM = 3.
	maxPVQDim = (100 - 78) << MaxLM

	// maxPulses bounds K for a single codeword.
	maxPulses = 128

	// maxCodewords is the largest index space coded in one piece.
	maxCodewords = uint64(1) << 62

	vSaturated = ^uint64(0)
)

// pvqV[n][k] = V(n, k), saturated at vSaturated.
var pvqV = buildPVQTable()

func buildPVQTable() *[maxPVQDim + 1][maxPulses + 1]uint64 {
	var t [maxPVQDim + 1][maxPulses + 1]uint64
	t[0][0] = 1
	for n := 1; n <= maxPVQDim; n++ {
		t[n][0] = 1
		for k := 1; k <= maxPulses; k++ {
			t[n][k] = satAdd(satAdd(t[n-1][k], t[n][k-1]), t[n-1][k-1])
		}
	}
	return &t
}

func satAdd(a, b uint64) uint64 {
	s, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return vSaturated
	}
	return s
}

// pvqCount returns V(n, k).
func pvqCount(n, k int) uint64 {
	return pvqV[n][k]
}

// encodePulses returns the index of y (sum |y_i| = k) in [0, V(n, k)).
// V(n, k) must not exceed maxCodewords.
func encodePulses(y []int, k int) uint64 {
	var idx uint64
	n := len(y)
	for i := 0; i < n && k > 0; i++ {
		rest := n - i - 1
		v := y[i]
		m := v
		if m < 0 {
			m = -m
		}
		if m == 0 {
			continue
		}
		idx += pvqV[rest][k]
		for j := 1; j < m; j++ {
			idx += 2 * pvqV[rest][k-j]
		}
		if v < 0 {
			idx += pvqV[rest][k-m]
		}
		k -= m
	}
	return idx
}

// decodePulses inverts encodePulses into y.
func decodePulses(idx uint64, y []int, k int) {
	n := len(y)
	for i := 0; i < n; i++ {
		y[i] = 0
	}
	for i := 0; i < n && k > 0; i++ {
		rest := n - i - 1
		zero := pvqV[rest][k]
		if idx < zero {
			continue
		}
		idx -= zero
		m := 1
		for ; m < k; m++ {
			c := pvqV[rest][k-m]
			if idx < 2*c {
				break
			}
			idx -= 2 * c
		}
		c := pvqV[rest][k-m]
		if idx < c {
			y[i] = m
		} else {
			y[i] = -m
			idx -= c
		}
		k -= m
	}
}

// log2Frac8 holds 256*2^(i/8) for i in 1..7.
var log2Frac8 = [7]uint64{279, 304, 332, 362, 395, 431, 470}

// codewordCost returns an upper bound, in 1/8 bits, on the cost of coding a
// uniform index over v values.
func codewordCost(v uint64) int {
	if v <= 1 {
		return 0
	}
	l := bits.Len64(v)
	var m uint64
	if l >= 9 {
		m = v >> uint(l-9)
	} else {
		m = v << uint(9-l)
	}
	frac := 0
	for _, th := range log2Frac8 {
		if m >= th {
			frac++
		}
	}
	return 8*(l-1) + frac + 2
}

// pulsesForBudget returns the largest K whose codeword fits in bits (1/8
// bit units) and reports whether K was limited by the codebook size rather
// than the budget.
func pulsesForBudget(n, bits int) (k int, capped bool) {
	for k < maxPulses {
		v := pvqCount(n, k+1)
		if codewordCost(v) > bits {
			return k, false
		}
		if v > maxCodewords {
			return k, true
		}
		k++
	}
	return k, true
}
