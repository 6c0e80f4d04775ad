package audioio

// Resample converts a to sampleRate by linear interpolation. It is meant
// for bringing host files to a codec rate, not for codec-internal use.
func Resample(a *Audio, sampleRate int) *Audio {
	if a.SampleRate == sampleRate || a.Frames() == 0 {
		out := *a
		out.SampleRate = sampleRate
		return &out
	}
	ch := a.Channels
	in := a.Frames()
	n := int(int64(in) * int64(sampleRate) / int64(a.SampleRate))
	out := &Audio{SampleRate: sampleRate, Channels: ch, Samples: make([]float32, n*ch)}
	ratio := float64(a.SampleRate) / float64(sampleRate)
	for i := 0; i < n; i++ {
		pos := float64(i) * ratio
		j := int(pos)
		frac := float32(pos - float64(j))
		k := min(j+1, in-1)
		for c := 0; c < ch; c++ {
			x0 := a.Samples[j*ch+c]
			x1 := a.Samples[k*ch+c]
			out.Samples[i*ch+c] = x0 + (x1-x0)*frac
		}
	}
	return out
}

// Remix converts a to channels (1 or 2) by averaging or duplicating.
func Remix(a *Audio, channels int) *Audio {
	if a.Channels == channels {
		return a
	}
	frames := a.Frames()
	out := &Audio{SampleRate: a.SampleRate, Channels: channels, Samples: make([]float32, frames*channels)}
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < a.Channels; c++ {
			sum += a.Samples[i*a.Channels+c]
		}
		mean := sum / float32(a.Channels)
		for c := 0; c < channels; c++ {
			if channels == 1 {
				out.Samples[i] = mean
			} else if a.Channels == 1 {
				out.Samples[i*channels+c] = mean
			} else {
				out.Samples[i*channels+c] = a.Samples[i*a.Channels+min(c, a.Channels-1)]
			}
		}
	}
	return out
}
