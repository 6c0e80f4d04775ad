package celt

import "math"

// pvqSearch finds the pulse vector y with sum |y_i| = k that maximizes the
// normalized correlation with x. refine extra passes try moving single
// pulses after the greedy placement.
func pvqSearch(x []float64, k int, y []int, absX []float64, refine int) {
	n := len(x)
	for j := range y[:n] {
		y[j] = 0
	}
	if k == 0 {
		return
	}
	var sumAbs float64
	for j, v := range x {
		absX[j] = math.Abs(v)
		sumAbs += absX[j]
	}
	if sumAbs < 1e-30 {
		y[0] = k
		return
	}

	pulses := 0
	var rxy, ryy float64
	if k > n/2 {
		// Project onto the pyramid, leaving at least one pulse for the
		// greedy pass.
		scale := float64(k-1) / sumAbs
		for j := 0; j < n; j++ {
			y[j] = int(absX[j] * scale)
			pulses += y[j]
			rxy += absX[j] * float64(y[j])
			ryy += float64(y[j] * y[j])
		}
	}
	for ; pulses < k; pulses++ {
		best := bestPosition(absX[:n], y, rxy, ryy)
		rxy += absX[best]
		ryy += float64(2*y[best] + 1)
		y[best]++
	}

	for pass := 0; pass < refine; pass++ {
		improved := false
		score := rxy * rxy / ryy
		for src := 0; src < n; src++ {
			if y[src] == 0 {
				continue
			}
			rxy1 := rxy - absX[src]
			ryy1 := ryy - float64(2*y[src]-1)
			y[src]--
			dst := bestPosition(absX[:n], y, rxy1, ryy1)
			rxy2 := rxy1 + absX[dst]
			ryy2 := ryy1 + float64(2*y[dst]+1)
			if dst != src && rxy2*rxy2/ryy2 > score*(1+1e-12) {
				y[dst]++
				rxy, ryy = rxy2, ryy2
				score = rxy * rxy / ryy
				improved = true
			} else {
				y[src]++
			}
		}
		if !improved {
			break
		}
	}

	for j := 0; j < n; j++ {
		if x[j] < 0 {
			y[j] = -y[j]
		}
	}
}

// bestPosition returns the coordinate where one more pulse gives the largest
// rxy^2/ryy.
func bestPosition(absX []float64, y []int, rxy, ryy float64) int {
	best := 0
	bestNum, bestDen := -1.0, 1.0
	for j, a := range absX {
		r := rxy + a
		num := r * r
		den := ryy + float64(2*y[j]+1)
		if num*bestDen > bestNum*den {
			best, bestNum, bestDen = j, num, den
		}
	}
	return best
}

// normalizePulses writes y scaled to unit norm into x.
func normalizePulses(y []int, x []float64) {
	var e float64
	for _, v := range y[:len(x)] {
		e += float64(v * v)
	}
	if e == 0 {
		clear(x)
		return
	}
	g := 1 / math.Sqrt(e)
	for j := range x {
		x[j] = float64(y[j]) * g
	}
}
