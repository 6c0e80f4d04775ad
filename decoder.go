// decoder.go implements the public Decoder API for Opus decoding.

package opuscore

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/thesyncim/opuscore/celt"
	"github.com/thesyncim/opuscore/hybrid"
	"github.com/thesyncim/opuscore/internal/resample"
	"github.com/thesyncim/opuscore/plc"
	"github.com/thesyncim/opuscore/rangecoding"
	"github.com/thesyncim/opuscore/silk"
)

// Decoder decodes Opus packets into PCM audio samples.
//
// A Decoder instance maintains internal state and is NOT safe for concurrent use.
// Each goroutine should create its own Decoder instance.
//
// The decoder supports all Opus modes (SILK, Hybrid, CELT) and detects the
// mode from the TOC byte of each packet. Mono packets are duplicated into
// stereo output and stereo packets are downmixed for mono output.
type Decoder struct {
	sampleRate int
	channels   int
	opts       decoderOptions
	log        *slog.Logger

	silkDecoder   *silk.Decoder
	celtDecoder   *celt.Decoder
	hybridDecoder *hybrid.Decoder

	// silkUp lifts SILK-only frames to 48 kHz; down converts 48 kHz to
	// the output rate.
	silkUp   [2]*resample.Resampler
	silkRate int
	down     [2]*resample.Resampler

	plc        *plc.State
	clip       softClipper
	lastMode   Mode
	haveMode   bool
	lastFrames int

	frame []float64 // one frame at 48 kHz, packet channel count
	low   []float64
	wide  []float64
	mixed []float64
	tmp   []float64
	pcm   []float64
}

// NewDecoder creates a new Opus decoder.
//
// sampleRate must be one of: 8000, 12000, 16000, 24000, 48000.
// channels must be 1 (mono) or 2 (stereo).
//
// Invalid parameters return an error wrapping ErrInvalidConfiguration.
func NewDecoder(sampleRate, channels int, opts ...DecoderOption) (*Decoder, error) {
	if !validSampleRate(sampleRate) {
		return nil, ErrInvalidSampleRate
	}
	if channels < 1 || channels > 2 {
		return nil, ErrInvalidChannels
	}
	o := decoderOptions{commonOptions: defaultCommon()}
	for _, opt := range opts {
		opt.applyDecoder(&o)
	}

	d := &Decoder{
		sampleRate:    sampleRate,
		channels:      channels,
		opts:          o,
		log:           o.log.With("component", "decoder", "sample_rate", sampleRate, "channels", channels),
		silkDecoder:   silk.NewDecoder(),
		celtDecoder:   celt.NewDecoder(),
		hybridDecoder: hybrid.NewDecoder(),
		plc:           plc.NewState(),
		lastFrames:    1,
	}
	for c := 0; c < channels; c++ {
		r, err := resample.New(48000, sampleRate)
		if err != nil {
			return nil, err
		}
		d.down[c] = r
	}
	return d, nil
}

// Decode decodes an Opus packet into float32 PCM samples, interleaved if
// stereo, at the decoder's sample rate.
//
// A nil or empty packet runs packet loss concealment for the duration of
// the last packet. Samples may slightly exceed [-1, 1]; DecodeInt16 applies
// soft clipping before conversion.
//
// A rejected packet returns ErrMalformedPacket or ErrCorruptStream and
// leaves the decoder as it was before the call, so the next packet decodes
// normally. With WithConcealment(true) a concealment frame is returned
// alongside the error.
func (d *Decoder) Decode(data []byte) ([]float32, error) {
	if err := d.decode(data); err != nil {
		if !d.opts.conceal {
			return nil, err
		}
		d.conceal()
		return d.output(), err
	}
	return d.output(), nil
}

// DecodeInt16 decodes an Opus packet into int16 PCM samples.
//
// The float output is soft clipped so that overshoot bends into range
// instead of saturating.
func (d *Decoder) DecodeInt16(data []byte) ([]int16, error) {
	pcm, err := d.Decode(data)
	if pcm == nil {
		return nil, err
	}
	d.clip.apply(pcm, len(pcm)/d.channels, d.channels)
	out := make([]int16, len(pcm))
	for i, v := range pcm {
		out[i] = float32ToInt16(v)
	}
	return out, err
}

func (d *Decoder) output() []float32 {
	out := make([]float32, len(d.pcm))
	for i, v := range d.pcm {
		out[i] = float32(v)
	}
	return out
}

func (d *Decoder) decode(data []byte) error {
	d.pcm = d.pcm[:0]
	if len(data) == 0 {
		d.conceal()
		return nil
	}

	start := time.Now()
	info, err := ParsePacket(data)
	if err != nil {
		return d.reject(data, err)
	}
	toc := info.TOC

	snap := d.snapshot()
	if d.haveMode && toc.Mode != d.lastMode {
		d.log.Debug("mode switch", "from", d.lastMode.String(), "to", toc.Mode.String())
		d.resetCores()
	}

	pc := 1
	if toc.Stereo {
		pc = 2
	}
	for _, frame := range info.frames(data) {
		if len(frame) == 0 {
			// A zero-length frame stands for a frame the sender skipped.
			d.concealFrame(toc.Mode, toc.FrameSize, 1)
			continue
		}
		if err := d.decodeFrame(toc, frame, pc); err != nil {
			d.restore(snap)
			d.pcm = d.pcm[:0]
			return d.reject(data, mapDecodeError(err))
		}
		d.emit(d.frame, toc.FrameSize, pc)
	}

	d.lastMode, d.haveMode = toc.Mode, true
	d.lastFrames = info.FrameCount
	d.plc.Reset()
	d.plc.SetLastFrame(toc.Mode, toc.FrameSize, pc)
	d.opts.metrics.RecordDecode(context.Background(), toc.Mode.String(), time.Since(start))
	return nil
}

func (d *Decoder) reject(data []byte, err error) error {
	d.log.Warn("packet rejected", "bytes", len(data), "err", err)
	d.opts.metrics.RecordDecodeError(context.Background(), errorKind(err))
	return err
}

// decodeFrame decodes one frame into d.frame at 48 kHz with pc channels.
func (d *Decoder) decodeFrame(toc TOC, data []byte, pc int) error {
	n := toc.FrameSize
	d.frame = growFloat64(d.frame, n*pc)

	switch toc.Mode {
	case ModeCELT:
		return d.celtDecoder.Decode(data, n, pc, toc.Bandwidth, d.frame)
	case ModeHybrid:
		return d.hybridDecoder.Decode(data, n, pc, toc.Bandwidth, d.frame)
	}

	rate := toc.Bandwidth.SampleRate()
	if err := d.silkResamplers(rate); err != nil {
		return err
	}
	m := n * rate / 48000
	d.low = growFloat64(d.low, m*pc)
	var rc rangecoding.Decoder
	rc.Init(data)
	if err := d.silkDecoder.Decode(&rc, toc.Bandwidth, pc, m, d.low); err != nil {
		return err
	}
	if err := rc.Err(); err != nil {
		return err
	}
	d.liftSILK(m, pc)
	return nil
}

// liftSILK upsamples m interleaved SILK samples per channel into d.frame.
func (d *Decoder) liftSILK(m, pc int) {
	for c := 0; c < pc; c++ {
		d.tmp = growFloat64(d.tmp, m)
		for i := range d.tmp {
			d.tmp[i] = d.low[i*pc+c]
		}
		d.wide = d.silkUp[c].Process(d.wide[:0], d.tmp)
		for i, v := range d.wide {
			d.frame[i*pc+c] = v
		}
	}
}

func (d *Decoder) silkResamplers(rate int) error {
	if rate == d.silkRate && d.silkUp[0] != nil {
		return nil
	}
	for c := range d.silkUp {
		r, err := resample.New(rate, 48000)
		if err != nil {
			return err
		}
		d.silkUp[c] = r
	}
	d.silkRate = rate
	return nil
}

// emit maps a 48 kHz frame with pc channels onto the output channel count,
// converts it to the output rate and appends it to d.pcm.
func (d *Decoder) emit(frame []float64, n, pc int) {
	C := d.channels
	base := len(d.pcm)
	d.mixed = growFloat64(d.mixed, n)
	for c := 0; c < C; c++ {
		for i := range d.mixed {
			switch {
			case pc == C:
				d.mixed[i] = frame[i*pc+c]
			case pc == 2:
				d.mixed[i] = 0.5 * (frame[2*i] + frame[2*i+1])
			default:
				d.mixed[i] = frame[i]
			}
		}
		d.tmp = d.down[c].Process(d.tmp[:0], d.mixed)
		if c == 0 {
			k := len(d.tmp) * C
			d.pcm = slices.Grow(d.pcm, k)[:base+k]
		}
		for i, v := range d.tmp {
			d.pcm[base+i*C+c] = v
		}
	}
}

// conceal synthesizes the duration of the last packet.
func (d *Decoder) conceal() {
	d.pcm = d.pcm[:0]
	mode, ok := d.plc.Mode()
	n := d.plc.LastFrameSize()
	for f := 0; f < d.lastFrames; f++ {
		// Every frame counts as a loss so the fade is the same for one
		// long packet as for several short ones.
		gain := d.plc.RecordLoss()
		if !ok {
			d.frame = growFloat64(d.frame, n)
			clear(d.frame)
			d.emit(d.frame, n, 1)
			continue
		}
		d.concealFrame(mode, n, gain)
	}
	d.opts.metrics.RecordConcealed(context.Background(), d.lastFrames)
}

// concealFrame extrapolates one frame of n samples from the core that coded
// the last good frame and appends it to the output.
func (d *Decoder) concealFrame(mode Mode, n int, gain float64) {
	pc := d.plc.LastChannels()
	var err error
	switch mode {
	case ModeCELT:
		pc = d.celtDecoder.LastChannels()
		d.frame = growFloat64(d.frame, n*pc)
		err = d.celtDecoder.Conceal(n, gain, d.frame)
	case ModeHybrid:
		pc = max(d.hybridDecoder.LastChannels(), 1)
		d.frame = growFloat64(d.frame, n*pc)
		err = d.hybridDecoder.Conceal(n, gain, d.frame)
	default:
		d.frame = growFloat64(d.frame, n*pc)
		bw, ok := d.silkDecoder.Bandwidth()
		if !ok || d.silkResamplers(bw.SampleRate()) != nil {
			clear(d.frame)
			break
		}
		m := n * d.silkRate / 48000
		d.low = growFloat64(d.low, m*pc)
		if err = d.silkDecoder.Conceal(m, gain, d.low); err == nil {
			d.liftSILK(m, pc)
		}
	}
	if err != nil {
		d.log.Debug("concealment failed", "mode", mode.String(), "err", err)
		clear(d.frame)
	}
	d.emit(d.frame, n, pc)
}

func (d *Decoder) resetCores() {
	d.celtDecoder.Reset()
	d.silkDecoder.Reset()
	d.hybridDecoder.Reset()
	for _, r := range d.silkUp {
		if r != nil {
			r.Reset()
		}
	}
}

// Reset clears the decoder state for a new stream.
func (d *Decoder) Reset() {
	d.resetCores()
	for _, r := range d.down {
		if r != nil {
			r.Reset()
		}
	}
	d.plc.Clear()
	d.clip.reset()
	d.haveMode = false
	d.lastFrames = 1
}

// LastMode returns the mode of the last decoded packet.
func (d *Decoder) LastMode() (Mode, bool) {
	return d.lastMode, d.haveMode
}

// SILKPhase reports where the SILK decoder stopped on the last SILK frame.
func (d *Decoder) SILKPhase() silk.DecoderPhase {
	if d.lastMode == ModeHybrid {
		return d.hybridDecoder.SILKPhase()
	}
	return d.silkDecoder.Phase()
}

// Channels returns the number of audio channels (1 or 2).
func (d *Decoder) Channels() int {
	return d.channels
}

// SampleRate returns the sample rate in Hz.
func (d *Decoder) SampleRate() int {
	return d.sampleRate
}

// decoderState is everything a packet may change before it is accepted.
type decoderState struct {
	silk       silk.DecoderState
	celt       celt.DecoderState
	hybrid     hybrid.DecoderState
	silkUp     [2]*resample.Resampler
	silkHist   [2]resample.History
	silkRate   int
	down       [2]resample.History
	lastMode   Mode
	haveMode   bool
	lastFrames int
}

func (d *Decoder) snapshot() decoderState {
	s := decoderState{
		silk:       d.silkDecoder.Snapshot(),
		celt:       d.celtDecoder.Snapshot(),
		hybrid:     d.hybridDecoder.Snapshot(),
		silkUp:     d.silkUp,
		silkRate:   d.silkRate,
		lastMode:   d.lastMode,
		haveMode:   d.haveMode,
		lastFrames: d.lastFrames,
	}
	for c := range d.silkUp {
		if d.silkUp[c] != nil {
			s.silkHist[c] = d.silkUp[c].State()
		}
	}
	for c := 0; c < d.channels; c++ {
		s.down[c] = d.down[c].State()
	}
	return s
}

func (d *Decoder) restore(s decoderState) {
	d.silkDecoder.Restore(s.silk)
	d.celtDecoder.Restore(s.celt)
	d.hybridDecoder.Restore(s.hybrid)
	d.silkUp, d.silkRate = s.silkUp, s.silkRate
	for c := range d.silkUp {
		if d.silkUp[c] != nil {
			d.silkUp[c].SetState(s.silkHist[c])
		}
	}
	for c := 0; c < d.channels; c++ {
		d.down[c].SetState(s.down[c])
	}
	d.lastMode, d.haveMode, d.lastFrames = s.lastMode, s.haveMode, s.lastFrames
}
