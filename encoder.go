// encoder.go implements the public Encoder API for Opus encoding.

package opuscore

import (
	"context"
	"time"

	"github.com/thesyncim/opuscore/internal/encoder"
	"github.com/thesyncim/opuscore/silk"
	"github.com/thesyncim/opuscore/types"
)

// Application hints the encoder for optimization.
type Application = types.Application

const (
	// ApplicationVoIP optimizes for speech transmission with low latency.
	// Prefers SILK and hybrid frames and removes rumble below 60 Hz.
	ApplicationVoIP = types.ApplicationVoIP

	// ApplicationAudio optimizes for music and high-quality audio.
	ApplicationAudio = types.ApplicationAudio

	// ApplicationLowDelay minimizes algorithmic delay.
	// Uses CELT mode exclusively.
	ApplicationLowDelay = types.ApplicationLowDelay
)

// Signal hints the encoder about the content type.
type Signal = types.Signal

const (
	SignalAuto  = types.SignalAuto  // classify the first frame of each configuration
	SignalVoice = types.SignalVoice // bias toward SILK and hybrid
	SignalMusic = types.SignalMusic // bias toward CELT
)

// ModePreference overrides the automatic mode choice.
type ModePreference = encoder.ModePreference

const (
	PreferAuto   = encoder.ModeAuto
	PreferSILK   = encoder.ModeSILK
	PreferHybrid = encoder.ModeHybrid
	PreferCELT   = encoder.ModeCELT
)

// BandwidthAuto lets the encoder derive the bandwidth from the bitrate.
const BandwidthAuto = encoder.BandwidthAuto

// Encoder encodes PCM audio samples into Opus packets.
//
// An Encoder instance maintains internal state and is NOT safe for concurrent use.
// Each goroutine should create its own Encoder instance.
//
// The encoder supports three modes:
//   - SILK: optimized for speech at lower bitrates
//   - CELT: optimized for music and high-quality audio
//   - Hybrid: combines SILK and CELT for super-wideband speech
//
// The mode is chosen once per configuration from the application, bitrate,
// bandwidth and signal settings, and re-evaluated after any setter or Reset.
type Encoder struct {
	enc         *encoder.Encoder
	sampleRate  int
	channels    int
	application Application
	opts        encoderOptions

	lastMode Mode
	haveMode bool
	pcm      []float64
}

// NewEncoder creates a new Opus encoder.
//
// sampleRate must be one of: 8000, 12000, 16000, 24000, 48000.
// channels must be 1 (mono) or 2 (stereo).
// application hints the encoder for optimization.
//
// Invalid parameters return an error wrapping ErrInvalidConfiguration.
func NewEncoder(sampleRate, channels int, application Application, opts ...EncoderOption) (*Encoder, error) {
	if !validSampleRate(sampleRate) {
		return nil, ErrInvalidSampleRate
	}
	if channels < 1 || channels > 2 {
		return nil, ErrInvalidChannels
	}
	if !application.Valid() {
		return nil, ErrInvalidApplication
	}

	o := encoderOptions{
		commonOptions: defaultCommon(),
		bitrate:       encoder.DefaultBitrate * channels,
		complexity:    10,
		signal:        SignalAuto,
	}
	for _, opt := range opts {
		opt.applyEncoder(&o)
	}

	log := o.log.With("component", "encoder", "sample_rate", sampleRate, "channels", channels)
	inner, err := encoder.New(sampleRate, channels, application, log)
	if err != nil {
		return nil, err
	}
	inner.SetBitrate(encoder.ClampBitrate(o.bitrate))
	inner.SetComplexity(o.complexity)
	inner.SetSignal(o.signal)

	return &Encoder{
		enc:         inner,
		sampleRate:  sampleRate,
		channels:    channels,
		application: application,
		opts:        o,
	}, nil
}

// Encode encodes float32 PCM samples into an Opus packet.
//
// pcm holds frameSize samples per channel, interleaved if stereo. frameSize
// is counted at the encoder's sample rate and must correspond to 2.5, 5, 10,
// 20, 40, 60, 80, 100 or 120 ms. Packets longer than 20 ms (60 ms for SILK)
// carry several frames.
//
// The returned packet is newly allocated and never exceeds 1275 bytes. On
// error the encoder state is unchanged.
func (e *Encoder) Encode(pcm []float32, frameSize int) ([]byte, error) {
	if err := e.checkInput(len(pcm), frameSize); err != nil {
		return nil, err
	}
	e.pcm = float32ToFloat64(e.pcm, pcm[:frameSize*e.channels])
	return e.encode(frameSize)
}

// EncodeInt16 encodes int16 PCM samples into an Opus packet.
//
// The samples are converted from int16 by dividing by 32768.
func (e *Encoder) EncodeInt16(pcm []int16, frameSize int) ([]byte, error) {
	if err := e.checkInput(len(pcm), frameSize); err != nil {
		return nil, err
	}
	e.pcm = int16ToFloat64(e.pcm, pcm[:frameSize*e.channels])
	return e.encode(frameSize)
}

func (e *Encoder) checkInput(n, frameSize int) error {
	if _, ok := encoder.FrameSize48(frameSize, e.sampleRate); !ok {
		return ErrInvalidFrameSize
	}
	if n < frameSize*e.channels {
		return ErrFrameTooShort
	}
	return nil
}

func (e *Encoder) encode(frameSize int) ([]byte, error) {
	start := time.Now()
	var (
		packet []byte
		res    encoder.Result
	)
	err := e.enc.EncodeFunc(e.pcm, frameSize, func(r encoder.Result) error {
		p, err := BuildPacket(r.Mode, r.Bandwidth, r.FrameSize, r.Stereo, r.Frames)
		if err != nil {
			return err
		}
		packet, res = p, r
		return nil
	})
	if err != nil {
		return nil, mapEncodeError(err)
	}

	ctx := context.Background()
	m := e.opts.metrics
	if e.haveMode && res.Mode != e.lastMode {
		m.RecordModeSwitch(ctx, e.lastMode.String(), res.Mode.String())
	}
	e.lastMode, e.haveMode = res.Mode, true
	m.RecordRetries(ctx, res.Retries)
	m.RecordPacket(ctx, res.Mode.String(), len(res.Frames), len(packet), time.Since(start))
	return packet, nil
}

// SetBitrate sets the target bitrate in bits per second.
//
// Valid range is 6000 to 510000 (6 kbps to 510 kbps).
// Returns ErrInvalidBitrate if out of range.
func (e *Encoder) SetBitrate(bitrate int) error {
	if !encoder.ValidBitrate(bitrate) {
		return ErrInvalidBitrate
	}
	e.enc.SetBitrate(bitrate)
	return nil
}

// Bitrate returns the current target bitrate in bits per second.
func (e *Encoder) Bitrate() int {
	return e.enc.Bitrate()
}

// SetBandwidth limits the coded audio bandwidth. BandwidthAuto derives it
// from the bitrate. The API sample rate always caps the result.
func (e *Encoder) SetBandwidth(bw Bandwidth) error {
	if bw != BandwidthAuto && !bw.Valid() {
		return ErrInvalidBandwidth
	}
	e.enc.SetBandwidth(bw)
	return nil
}

// SetMode forces a coding mode where the frame size allows it.
func (e *Encoder) SetMode(m ModePreference) {
	e.enc.SetMode(m)
}

// SetSignal sets the content hint used by the mode decision.
func (e *Encoder) SetSignal(s Signal) {
	e.enc.SetSignal(s)
}

// SetComplexity sets the encoder's computational complexity.
//
// Lower values shorten the pitch search and the PVQ refinement.
// Returns ErrInvalidComplexity if out of range.
func (e *Encoder) SetComplexity(complexity int) error {
	if complexity < 0 || complexity > 10 {
		return ErrInvalidComplexity
	}
	e.enc.SetComplexity(complexity)
	return nil
}

// Complexity returns the current complexity setting.
func (e *Encoder) Complexity() int {
	return e.enc.Complexity()
}

// Mode returns the mode chosen for the current configuration. ok is false
// until a frame has been encoded since creation, Reset or a setter call.
func (e *Encoder) Mode() (mode Mode, bandwidth Bandwidth, ok bool) {
	d, ok := e.enc.Decision()
	return d.Mode, d.Bandwidth, ok
}

// SILKPhase reports the phase of the SILK layer's last frame.
func (e *Encoder) SILKPhase() silk.EncoderPhase {
	return e.enc.SILKPhase()
}

// Reset clears the encoder state for a new stream. Settings are kept; the
// mode is decided again on the next frame.
func (e *Encoder) Reset() {
	e.enc.Reset()
	e.haveMode = false
}

// Channels returns the number of audio channels (1 or 2).
func (e *Encoder) Channels() int {
	return e.channels
}

// SampleRate returns the sample rate in Hz.
func (e *Encoder) SampleRate() int {
	return e.sampleRate
}

// Application returns the application hint the encoder was created with.
func (e *Encoder) Application() Application {
	return e.application
}
