package dsp

import "math"

// HighPass is a second-order Butterworth high-pass biquad used to remove DC
// and rumble ahead of the encoder.
type HighPass struct {
	b0, b1, b2 float64
	a1, a2     float64
	x1, x2     float64
	y1, y2     float64
}

// NewHighPass designs a filter with the given cut-off in Hz.
func NewHighPass(cutoffHz float64, sampleRate int) HighPass {
	var h HighPass
	h.Design(cutoffHz, sampleRate)
	return h
}

// Design recomputes the coefficients without touching the filter memory.
func (h *HighPass) Design(cutoffHz float64, sampleRate int) {
	w0 := 2 * math.Pi * cutoffHz / float64(sampleRate)
	cosw := math.Cos(w0)
	alpha := math.Sin(w0) / math.Sqrt2 // Q = 1/sqrt(2)
	a0 := 1 + alpha
	h.b0 = (1 + cosw) / 2 / a0
	h.b1 = -(1 + cosw) / a0
	h.b2 = h.b0
	h.a1 = -2 * cosw / a0
	h.a2 = (1 - alpha) / a0
}

// Process filters x in place.
func (h *HighPass) Process(x []float64) {
	for i, v := range x {
		y := h.b0*v + h.b1*h.x1 + h.b2*h.x2 - h.a1*h.y1 - h.a2*h.y2
		h.x2, h.x1 = h.x1, v
		h.y2, h.y1 = h.y1, y
		x[i] = y
	}
}

// Reset clears the filter memory.
func (h *HighPass) Reset() {
	h.x1, h.x2, h.y1, h.y2 = 0, 0, 0, 0
}
