package opuscore

// softClipper bends decoded samples that exceed [-1, 1] back into range
// with a quadratic non-linearity, so int16 conversion does not hard-clip.
// The curvature of the last excursion of each channel carries into the next
// frame to keep the waveform continuous across frame boundaries.
type softClipper struct {
	mem [2]float32
}

func (s *softClipper) reset() { s.mem = [2]float32{} }

// apply processes n interleaved frames of channels samples in place.
func (s *softClipper) apply(x []float32, n, channels int) {
	if n < 1 || channels < 1 || len(x) < n*channels {
		return
	}
	x = x[:n*channels]
	for i, v := range x {
		if v > 2 {
			x[i] = 2
		} else if v < -2 {
			x[i] = -2
		}
	}
	for c := 0; c < channels; c++ {
		s.mem[c] = s.channel(x, n, channels, c, s.mem[c])
	}
}

func (s *softClipper) channel(x []float32, n, stride, c int, a float32) float32 {
	at := func(i int) *float32 { return &x[i*stride+c] }

	// Finish the previous frame's excursion until the first zero crossing.
	for i := 0; i < n; i++ {
		v := *at(i)
		if v*a >= 0 {
			break
		}
		*at(i) = v + a*v*v
	}

	first := *at(0)
	curr := 0
	for {
		i := curr
		for ; i < n; i++ {
			if v := *at(i); v > 1 || v < -1 {
				break
			}
		}
		if i == n {
			return 0
		}

		ref := *at(i)
		peak, peakPos := abs32(ref), i
		start, end := i, i
		for start > 0 && ref**at(start-1) >= 0 {
			start--
		}
		for end < n && ref**at(end) >= 0 {
			if v := abs32(*at(end)); v > peak {
				peak, peakPos = v, end
			}
			end++
		}
		atStart := start == 0 && ref**at(0) >= 0

		a = (peak - 1) / (peak * peak)
		a += a * 2.4e-7
		if ref > 0 {
			a = -a
		}
		for j := start; j < end; j++ {
			v := *at(j)
			*at(j) = v + a*v*v
		}

		// An excursion starting at the frame edge would leave a step
		// against the previous frame; ramp it out up to the peak.
		if atStart && peakPos >= 2 {
			offset := first - *at(0)
			delta := offset / float32(peakPos)
			for j := curr; j < peakPos; j++ {
				offset -= delta
				v := *at(j) + offset
				if v > 1 {
					v = 1
				} else if v < -1 {
					v = -1
				}
				*at(j) = v
			}
		}

		curr = end
		if curr == n {
			return a
		}
	}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
