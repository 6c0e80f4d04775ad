package encoder

import (
	"math"

	"github.com/thesyncim/opuscore/internal/dsp"
	"github.com/thesyncim/opuscore/types"
)

// ModePreference overrides the controller's mode choice.
type ModePreference int

const (
	// ModeAuto lets the controller pick the mode.
	ModeAuto ModePreference = iota
	// ModeSILK forces SILK-only frames where the frame size allows it.
	ModeSILK
	// ModeHybrid forces hybrid frames where the frame size allows it.
	ModeHybrid
	// ModeCELT forces CELT-only frames.
	ModeCELT
)

// String returns the preference name.
func (m ModePreference) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeSILK:
		return "silk"
	case ModeHybrid:
		return "hybrid"
	case ModeCELT:
		return "celt"
	}
	return "unknown"
}

// BandwidthAuto lets the controller derive the bandwidth from the bitrate.
const BandwidthAuto types.Bandwidth = 0xff

// Crossover rates.
const (
	// SILKCrossoverMono is the bitrate below which wideband-or-narrower
	// mono input is coded with SILK.
	SILKCrossoverMono = 32000
	// SILKCrossoverStereo is the stereo counterpart of SILKCrossoverMono.
	SILKCrossoverStereo = 48000
	// HybridCeilingMono is the bitrate below which super-wideband speech is
	// coded as hybrid frames.
	HybridCeilingMono = 48000
	// HybridCeilingStereo is the stereo counterpart of HybridCeilingMono.
	HybridCeilingStereo = 64000
)

// Decision is the outcome of one mode evaluation.
type Decision struct {
	Mode      types.Mode
	Bandwidth types.Bandwidth
	Speech    bool
}

// Controller picks the coding mode and bandwidth. A decision is made once
// per configuration: on the first frame, and again after Invalidate or when
// the frame size changes.
type Controller struct {
	sampleRate int
	channels   int
	app        types.Application

	bitrate   int
	bandwidth types.Bandwidth
	pref      ModePreference
	signal    types.Signal

	valid     bool
	frameSize int
	decision  Decision
}

// NewController returns a controller for the given stream parameters with
// automatic bandwidth, mode and signal detection.
func NewController(sampleRate, channels int, app types.Application) *Controller {
	return &Controller{
		sampleRate: sampleRate,
		channels:   channels,
		app:        app,
		bitrate:    DefaultBitrate * channels,
		bandwidth:  BandwidthAuto,
		pref:       ModeAuto,
		signal:     types.SignalAuto,
	}
}

// SetBitrate changes the target bitrate and forces a new decision.
func (c *Controller) SetBitrate(bps int) {
	c.bitrate = bps
	c.valid = false
}

// Bitrate returns the target bitrate.
func (c *Controller) Bitrate() int { return c.bitrate }

// SetBandwidth fixes the bandwidth, or restores automatic selection with
// BandwidthAuto.
func (c *Controller) SetBandwidth(bw types.Bandwidth) {
	c.bandwidth = bw
	c.valid = false
}

// SetMode sets the mode preference.
func (c *Controller) SetMode(m ModePreference) {
	c.pref = m
	c.valid = false
}

// SetSignal sets the content hint.
func (c *Controller) SetSignal(s types.Signal) {
	c.signal = s
	c.valid = false
}

// Invalidate forces a new decision on the next frame.
func (c *Controller) Invalidate() { c.valid = false }

// Current returns the last decision and whether one has been made.
func (c *Controller) Current() (Decision, bool) { return c.decision, c.valid }

// Decide returns the mode and bandwidth for a frame of frameSize samples at
// 48 kHz. mono is the frame's downmix, used by the content classifier when
// the signal type is automatic. The second result reports whether a new
// evaluation took place.
func (c *Controller) Decide(frameSize int, mono []float64) (Decision, bool) {
	if c.valid && c.frameSize == frameSize {
		return c.decision, false
	}
	c.decision = c.evaluate(frameSize, mono)
	c.frameSize = frameSize
	c.valid = true
	return c.decision, true
}

func (c *Controller) evaluate(frameSize int, mono []float64) Decision {
	d := c.choose(frameSize, mono)
	// CELT has no medium-band configuration.
	if d.Mode == types.ModeCELT && d.Bandwidth == types.BandwidthMediumband {
		d.Bandwidth = types.BandwidthWideband
	}
	return d
}

func (c *Controller) choose(frameSize int, mono []float64) Decision {
	bw := c.bandwidth
	if bw == BandwidthAuto || !bw.Valid() {
		bw = BandwidthForBitrate(c.bitrate)
	}
	bw = min(bw, types.MaxBandwidthForRate(c.sampleRate))

	speech := c.signal == types.SignalVoice
	if c.signal == types.SignalAuto {
		speech = IsSpeech(mono)
	}
	d := Decision{Bandwidth: bw, Speech: speech}

	// 2.5 and 5 ms frames only exist in CELT.
	if frameSize < 480 || c.app == types.ApplicationLowDelay {
		d.Mode = types.ModeCELT
		return d
	}

	switch c.pref {
	case ModeCELT:
		d.Mode = types.ModeCELT
		return d
	case ModeSILK:
		d.Mode = types.ModeSILK
		d.Bandwidth = min(bw, types.BandwidthWideband)
		return d
	case ModeHybrid:
		if frameSize <= 960 && bw >= types.BandwidthSuperwideband {
			d.Mode = types.ModeHybrid
			return d
		}
		d.Mode = types.ModeSILK
		d.Bandwidth = min(bw, types.BandwidthWideband)
		return d
	}

	crossover, ceiling := SILKCrossoverMono, HybridCeilingMono
	if c.channels == 2 {
		crossover, ceiling = SILKCrossoverStereo, HybridCeilingStereo
	}
	switch {
	case bw <= types.BandwidthWideband && c.bitrate < crossover:
		d.Mode = types.ModeSILK
	case bw == types.BandwidthSuperwideband && speech && c.bitrate < ceiling && frameSize <= 960:
		d.Mode = types.ModeHybrid
	default:
		d.Mode = types.ModeCELT
	}
	return d
}

// BandwidthForBitrate maps a bitrate to the widest bandwidth it sustains.
func BandwidthForBitrate(bps int) types.Bandwidth {
	switch {
	case bps < 12000:
		return types.BandwidthNarrowband
	case bps < 15000:
		return types.BandwidthMediumband
	case bps < 20000:
		return types.BandwidthWideband
	case bps < 28000:
		return types.BandwidthSuperwideband
	default:
		return types.BandwidthFullband
	}
}

// Classifier thresholds.
const (
	minVoicing = 0.3
	maxVoicing = 0.97
	minTilt    = 0.5
)

// IsSpeech is the one-shot content classifier. Speech shows moderate but
// not perfect periodicity in the 2.5-16 ms pitch range together with a
// spectrum that falls toward high frequencies. Pure tones and broadband
// noise are classified as music.
func IsSpeech(x []float64) bool {
	if len(x) < 2*minClassifierLag {
		return false
	}
	e := dsp.Energy(x)
	if e < 1e-9*float64(len(x)) {
		return false
	}
	tilt := dsp.InnerProduct(x[1:], x[:len(x)-1]) / e
	v := voicing(x)
	return tilt > minTilt && v > minVoicing && v < maxVoicing
}

const (
	minClassifierLag = 120 // 2.5 ms at 48 kHz
	maxClassifierLag = 768 // 16 ms
)

// voicing returns the best normalized autocorrelation over the pitch range,
// searched on a 4x decimated copy of x. Lags longer than half the input are
// not searched.
func voicing(x []float64) float64 {
	d := make([]float64, len(x)/4)
	for i := range d {
		d[i] = x[4*i] + x[4*i+1] + x[4*i+2] + x[4*i+3]
	}
	maxLag := min(maxClassifierLag, len(x)/2) / 4
	cur := d[maxLag:]
	n := len(cur)
	ec := dsp.Energy(cur)
	best := 0.0
	for lag := minClassifierLag / 4; lag <= maxLag; lag++ {
		past := d[maxLag-lag : maxLag-lag+n]
		xy := dsp.InnerProduct(cur, past)
		if xy <= 0 {
			continue
		}
		if c := xy / math.Sqrt(ec*dsp.Energy(past)+1e-12); c > best {
			best = c
		}
	}
	return best
}
