package dsp

// PreemphCoef is the first-order emphasis coefficient used by CELT.
const PreemphCoef = 0.85

// PreEmphasize applies y[n] = x[n] - coef*x[n-1] in place. mem holds x[-1]
// and is updated to the last input sample.
func PreEmphasize(x []float64, coef float64, mem *float64) {
	prev := *mem
	for i, v := range x {
		x[i] = v - coef*prev
		prev = v
	}
	*mem = prev
}

// DeEmphasize applies y[n] = x[n] + coef*y[n-1] in place, inverting
// PreEmphasize. mem holds y[-1].
func DeEmphasize(x []float64, coef float64, mem *float64) {
	prev := *mem
	for i, v := range x {
		prev = v + coef*prev
		x[i] = prev
	}
	*mem = prev
}
