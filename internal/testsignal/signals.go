// Package testsignal generates deterministic test audio and measures
// reconstruction quality for codec tests.
package testsignal

import (
	"fmt"
	"math"
)

// Kind names a generated signal.
type Kind string

const (
	Silence     Kind = "silence"
	Tone        Kind = "tone"         // 440 Hz sine
	AMMultisine Kind = "am_multisine" // three partials with slow amplitude modulation
	ChirpSweep  Kind = "chirp_sweep"  // exponential sweep 60 Hz to 12 kHz
	Impulses    Kind = "impulses"     // decaying rings every 35 ms
	SpeechLike  Kind = "speech_like"  // gliding pitch with voiced and fricative segments
)

// Kinds returns every non-silent signal kind.
func Kinds() []Kind {
	return []Kind{Tone, AMMultisine, ChirpSweep, Impulses, SpeechLike}
}

// Generate returns frames samples per channel of kind at sampleRate,
// interleaved for stereo.
func Generate(kind Kind, sampleRate, frames, channels int) ([]float32, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", sampleRate)
	}
	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("invalid channel count: %d", channels)
	}
	if frames < 0 {
		return nil, fmt.Errorf("invalid sample count: %d", frames)
	}
	var gen func(i, ch int, t float64) float64
	switch kind {
	case Silence:
		gen = func(int, int, float64) float64 { return 0 }
	case Tone:
		gen = func(_, ch int, t float64) float64 {
			return 0.5 * math.Sin(2*math.Pi*440*(1+0.01*float64(ch))*t)
		}
	case AMMultisine:
		gen = amMultisine(sampleRate)
	case ChirpSweep:
		gen = chirpSweep(sampleRate, frames)
	case Impulses:
		gen = impulses(sampleRate)
	case SpeechLike:
		gen = speechLike(sampleRate, channels)
	default:
		return nil, fmt.Errorf("unknown signal kind %q", kind)
	}
	out := make([]float32, frames*channels)
	for i := 0; i < frames; i++ {
		t := float64(i) / float64(sampleRate)
		for ch := 0; ch < channels; ch++ {
			out[i*channels+ch] = float32(clip(gen(i, ch, t)))
		}
	}
	return out, nil
}

// MustGenerate is Generate for tests with known-good arguments.
func MustGenerate(kind Kind, sampleRate, frames, channels int) []float32 {
	out, err := Generate(kind, sampleRate, frames, channels)
	if err != nil {
		panic(err)
	}
	return out
}

func amMultisine(sampleRate int) func(int, int, float64) float64 {
	freqs := []float64{440, 1000, 2000}
	mods := []float64{1.3, 2.7, 0.9}
	onset := int(0.010 * float64(sampleRate))
	return func(i, ch int, t float64) float64 {
		var v float64
		for k, f := range freqs {
			if ch == 1 {
				f *= 1.01
			}
			depth := 0.5 + 0.5*math.Sin(2*math.Pi*mods[k]*t)
			v += 0.3 * depth * math.Sin(2*math.Pi*f*t)
		}
		if i < onset {
			frac := float64(i) / float64(onset)
			v *= frac * frac * frac
		}
		return v
	}
}

func chirpSweep(sampleRate, frames int) func(int, int, float64) float64 {
	duration := math.Max(float64(frames)/float64(sampleRate), 1e-3)
	const f0, f1 = 60.0, 12000.0
	k := math.Log(f1/f0) / duration
	fade := 0.005 * float64(sampleRate)
	return func(i, ch int, t float64) float64 {
		phase := 2 * math.Pi * f0 * (math.Exp(k*t) - 1) / k
		env := 0.2 + 0.8*(0.5+0.5*math.Sin(2*math.Pi*0.41*t+0.3*float64(ch)))
		v := 0.85 * env * math.Sin((1+0.006*float64(ch))*phase)
		if float64(i) < fade {
			v *= float64(i) / fade
		}
		return v
	}
}

func impulses(sampleRate int) func(int, int, float64) float64 {
	period := max(int(0.035*float64(sampleRate)), 4)
	ringLen := int(0.015 * float64(sampleRate))
	decay := 0.0035 * float64(sampleRate)
	return func(i, ch int, t float64) float64 {
		pos := i % period
		var v float64
		if pos == 0 {
			v = 0.92
		}
		if pos < ringLen {
			v += 0.75 * math.Exp(-float64(pos)/decay) *
				math.Sin(2*math.Pi*(540+80*float64(ch))*float64(pos)/float64(sampleRate))
		}
		v += 0.02 * Noise(i, ch, 17)
		return v * (0.6 + 0.4*math.Sin(2*math.Pi*0.19*t+0.4*float64(ch)))
	}
}

func speechLike(sampleRate, channels int) func(int, int, float64) float64 {
	phase := make([]float64, channels)
	prev := make([]float64, channels)
	return func(i, ch int, t float64) float64 {
		pitch := 95.0 + 28.0*math.Sin(2*math.Pi*0.63*t) + 16.0*math.Sin(2*math.Pi*0.17*t)
		pitch *= 1 + 0.01*float64(ch)
		phase[ch] = math.Mod(phase[ch]+2*math.Pi*pitch/float64(sampleRate), 2*math.Pi)
		voiced := math.Sin(phase[ch]) + 0.35*math.Sin(2*phase[ch]) + 0.2*math.Sin(3*phase[ch])

		voicing := 0.5 + 0.5*math.Sin(2*math.Pi*0.78*t+0.25)
		syllable := 0.25 + 0.75*math.Pow(0.5+0.5*math.Sin(2*math.Pi*3.2*t), 2)

		n := Noise(i, ch, 71)
		high := n - 0.86*prev[ch]
		prev[ch] = n
		mix := voicing*voiced + (1-voicing)*(0.38*high+0.22*math.Sin(2*math.Pi*3200*t))
		return 0.82 * syllable * mix
	}
}

// Noise returns a deterministic value in [-1, 1] for a sample position.
func Noise(sampleIdx, channel, salt int) float64 {
	x := uint32(sampleIdx*1664525 + channel*1013904223 + salt*2246822519)
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	return float64(int32(x)) / 2147483647.0
}

func clip(v float64) float64 {
	return math.Max(-0.98, math.Min(0.98, v))
}
