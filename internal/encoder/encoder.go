// Package encoder implements the encoder pipeline: rate conversion to
// 48 kHz, DC rejection, the mode controller, and dispatch of each frame to
// the SILK, CELT or hybrid core. Packet framing is left to the caller.
package encoder

import (
	"errors"
	"log/slog"

	"github.com/thesyncim/opuscore/celt"
	"github.com/thesyncim/opuscore/hybrid"
	"github.com/thesyncim/opuscore/internal/dsp"
	"github.com/thesyncim/opuscore/internal/resample"
	"github.com/thesyncim/opuscore/rangecoding"
	"github.com/thesyncim/opuscore/silk"
	"github.com/thesyncim/opuscore/types"
)

var (
	// ErrInvalidFrameSize indicates a frame duration other than 2.5, 5, 10,
	// 20, 40, 60, 80, 100 or 120 ms.
	ErrInvalidFrameSize = errors.New("encoder: invalid frame size")

	// ErrInvalidInput indicates a PCM buffer shorter than one frame.
	ErrInvalidInput = errors.New("encoder: input shorter than frame size")

	// ErrPacketTooLarge indicates a frame that did not fit its budget even
	// after re-coding at the coarsest step.
	ErrPacketTooLarge = errors.New("encoder: frame exceeds packet budget")
)

const (
	// maxRetries bounds how often a SILK frame is re-coded after
	// overflowing its budget.
	maxRetries = 3

	voipCutoffHz  = 60
	musicCutoffHz = 3
)

// Result describes the frames produced by one Encode call. All frames share
// mode, bandwidth and size and go into one packet.
type Result struct {
	Mode      types.Mode
	Bandwidth types.Bandwidth
	// FrameSize is the duration of each frame in samples at 48 kHz.
	FrameSize int
	Stereo    bool
	Frames    [][]byte

	// Switched reports that the mode changed on this call and the cores
	// were reset.
	Switched bool
	// Retries counts SILK layers re-coded with a coarser step.
	Retries int
}

// Encoder is the encoder pipeline for one stream.
//
// An Encoder is not safe for concurrent use.
type Encoder struct {
	sampleRate int
	channels   int
	app        types.Application
	signal     types.Signal
	complexity int
	log        *slog.Logger

	ctl *Controller
	hp  [2]dsp.HighPass
	up  [2]*resample.Resampler

	silk     *silk.Encoder
	silkDown [2]*resample.Resampler
	silkRate int
	celt     *celt.Encoder
	hyb      *hybrid.Encoder

	mode     types.Mode
	haveMode bool

	wide [2][]float64
	mono []float64
	ilv  []float64
	tmp  []float64
	low  []float64
	buf  []byte
}

// New returns a pipeline for PCM at sampleRate (8, 12, 16, 24 or 48 kHz)
// with 1 or 2 channels. A nil logger discards output.
func New(sampleRate, channels int, app types.Application, log *slog.Logger) (*Encoder, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	e := &Encoder{
		sampleRate: sampleRate,
		channels:   channels,
		app:        app,
		signal:     types.SignalAuto,
		complexity: 10,
		log:        log,
		ctl:        NewController(sampleRate, channels, app),
	}
	var err error
	if e.silk, err = silk.NewEncoder(channels); err != nil {
		return nil, err
	}
	if e.celt, err = celt.NewEncoder(channels); err != nil {
		return nil, err
	}
	if e.hyb, err = hybrid.NewEncoder(channels); err != nil {
		return nil, err
	}
	for c := 0; c < channels; c++ {
		if e.up[c], err = resample.New(sampleRate, 48000); err != nil {
			return nil, err
		}
	}
	e.designHighPass()
	return e, nil
}

func (e *Encoder) designHighPass() {
	cutoff := float64(musicCutoffHz)
	if e.app == types.ApplicationVoIP || e.signal == types.SignalVoice {
		cutoff = voipCutoffHz
	}
	for c := range e.hp {
		e.hp[c].Design(cutoff, 48000)
	}
}

// SetBitrate sets the total target bitrate.
func (e *Encoder) SetBitrate(bps int) {
	e.ctl.SetBitrate(bps)
	e.log.Debug("renegotiate", "bitrate", bps)
}

// Bitrate returns the total target bitrate.
func (e *Encoder) Bitrate() int { return e.ctl.Bitrate() }

// SetBandwidth fixes the coded bandwidth; BandwidthAuto restores automatic
// selection.
func (e *Encoder) SetBandwidth(bw types.Bandwidth) {
	e.ctl.SetBandwidth(bw)
	e.log.Debug("renegotiate", "bandwidth", bw.String())
}

// SetMode sets the mode preference.
func (e *Encoder) SetMode(m ModePreference) {
	e.ctl.SetMode(m)
	e.log.Debug("renegotiate", "mode", m.String())
}

// SetSignal sets the content hint.
func (e *Encoder) SetSignal(s types.Signal) {
	e.signal = s
	e.ctl.SetSignal(s)
	e.designHighPass()
	e.log.Debug("renegotiate", "signal", int(s))
}

// SetComplexity sets the CELT search effort (0-10).
func (e *Encoder) SetComplexity(c int) {
	e.complexity = c
	e.celt.SetComplexity(c)
	e.hyb.SetComplexity(c)
}

// Complexity returns the search effort.
func (e *Encoder) Complexity() int { return e.complexity }

// Decision returns the controller's current decision, if any.
func (e *Encoder) Decision() (Decision, bool) { return e.ctl.Current() }

// SILKPhase returns the pipeline phase of the SILK layer of the last frame.
func (e *Encoder) SILKPhase() silk.EncoderPhase {
	if e.mode == types.ModeHybrid {
		return e.hyb.SILKPhase()
	}
	return e.silk.Phase()
}

// Reset returns the pipeline to its initial state. Settings are kept; the
// next frame triggers a new mode decision.
func (e *Encoder) Reset() {
	e.ctl.Invalidate()
	e.resetCores()
	for c := range e.hp {
		e.hp[c].Reset()
	}
	for _, r := range e.up {
		if r != nil {
			r.Reset()
		}
	}
	e.haveMode = false
}

func (e *Encoder) resetCores() {
	e.silk.Reset()
	e.celt.Reset()
	e.hyb.Reset()
	for _, r := range e.silkDown {
		if r != nil {
			r.Reset()
		}
	}
}

// FrameSize48 converts a frame size at the API rate to 48 kHz and reports
// whether it is a supported duration.
func FrameSize48(frameSize, sampleRate int) (int, bool) {
	if frameSize <= 0 || frameSize*48000%sampleRate != 0 {
		return 0, false
	}
	n := frameSize * 48000 / sampleRate
	switch n {
	case 120, 240, 480, 960, 1920, 2880, 3840, 4800, 5760:
		return n, true
	}
	return 0, false
}

// Encode codes one packet worth of interleaved PCM at the API rate. On
// error the pipeline is left as it was before the call.
func (e *Encoder) Encode(pcm []float64, frameSize int) (Result, error) {
	var res Result
	err := e.EncodeFunc(pcm, frameSize, func(r Result) error {
		res = r
		return nil
	})
	return res, err
}

// EncodeFunc encodes like Encode and hands the result to commit before
// returning. If encoding or commit fails the pipeline is restored to its
// state before the call.
func (e *Encoder) EncodeFunc(pcm []float64, frameSize int, commit func(Result) error) error {
	n48, ok := FrameSize48(frameSize, e.sampleRate)
	if !ok {
		return ErrInvalidFrameSize
	}
	if len(pcm) < frameSize*e.channels {
		return ErrInvalidInput
	}
	snap := e.snapshot()
	res, err := e.encode(pcm[:frameSize*e.channels], frameSize, n48)
	if err == nil {
		err = commit(res)
	}
	if err != nil {
		e.restore(snap)
		return err
	}
	return nil
}

func (e *Encoder) encode(pcm []float64, frameSize, n48 int) (Result, error) {
	C := e.channels
	for c := 0; c < C; c++ {
		e.tmp = growSlice(e.tmp, frameSize)
		for i := range e.tmp {
			e.tmp[i] = pcm[i*C+c]
		}
		e.wide[c] = e.up[c].Process(e.wide[c][:0], e.tmp)
		e.hp[c].Process(e.wide[c])
	}
	e.mono = growSlice(e.mono, n48)
	for i := range e.mono {
		var v float64
		for c := 0; c < C; c++ {
			v += e.wide[c][i]
		}
		e.mono[i] = v / float64(C)
	}

	d, fresh := e.ctl.Decide(n48, e.mono)
	if fresh {
		e.log.Debug("mode decision", "mode", d.Mode.String(), "bandwidth", d.Bandwidth.String(), "speech", d.Speech, "frame_size", n48)
	}
	res := Result{Mode: d.Mode, Bandwidth: d.Bandwidth, Stereo: C == 2}
	if e.haveMode && d.Mode != e.mode {
		e.log.Debug("mode switch", "from", e.mode.String(), "to", d.Mode.String())
		e.resetCores()
		res.Switched = true
	}
	e.mode, e.haveMode = d.Mode, true

	sub, count := Layout(d.Mode, n48)
	res.FrameSize = sub
	budget := frameBudget(e.ctl.Bitrate(), sub, count)

	e.ilv = growSlice(e.ilv, n48*C)
	for c := 0; c < C; c++ {
		for i, v := range e.wide[c][:n48] {
			e.ilv[i*C+c] = v
		}
	}

	res.Frames = make([][]byte, 0, count)
	for i := 0; i < count; i++ {
		var (
			data []byte
			err  error
		)
		switch d.Mode {
		case types.ModeCELT:
			data, err = e.celt.Encode(e.ilv[i*sub*C:(i+1)*sub*C], sub, d.Bandwidth, budget)
		case types.ModeHybrid:
			before := e.hyb.Retries
			e.hyb.SetBitrate(e.ctl.Bitrate())
			data, err = e.hyb.Encode(e.ilv[i*sub*C:(i+1)*sub*C], sub, d.Bandwidth, budget)
			res.Retries += e.hyb.Retries - before
		default:
			var retries int
			data, retries, err = e.encodeSILK(i*sub, sub, d.Bandwidth, frameCap(count))
			res.Retries += retries
		}
		if err != nil {
			return Result{}, mapError(err)
		}
		res.Frames = append(res.Frames, append([]byte(nil), data...))
	}
	if res.Retries > 0 {
		e.log.Debug("rate control retry", "mode", d.Mode.String(), "retries", res.Retries)
	}
	return res, nil
}

// Layout splits a packet of n48 samples into frames. CELT and hybrid frames
// are at most 20 ms; SILK frames up to 60 ms are coded whole and longer
// packets are split into 20 ms frames.
func Layout(mode types.Mode, n48 int) (frameSize, count int) {
	limit := 960
	if mode == types.ModeSILK && n48 <= 2880 {
		limit = n48
	}
	frameSize = min(n48, limit)
	return frameSize, n48 / frameSize
}

// encodeSILK downsamples sub samples from offset off to the SILK rate of bw
// and codes them into one frame of at most maxBytes bytes.
func (e *Encoder) encodeSILK(off, sub int, bw types.Bandwidth, maxBytes int) ([]byte, int, error) {
	C := e.channels
	rate := bw.SampleRate()
	if err := e.silkResamplers(rate); err != nil {
		return nil, 0, err
	}
	n := sub * rate / 48000
	e.low = growSlice(e.low, n*C)
	for c := 0; c < C; c++ {
		e.tmp = e.silkDown[c].Process(e.tmp[:0], e.wide[c][off:off+sub])
		for i, v := range e.tmp[:n] {
			e.low[i*C+c] = v
		}
	}
	if e.silk.Bitrate() != e.ctl.Bitrate() {
		e.silk.SetBitrate(e.ctl.Bitrate())
	}
	if cap(e.buf) < maxBytes {
		e.buf = make([]byte, maxBytes)
	}

	e.silk.SetMaxBits(maxBytes * 8)
	snap := e.silk.Snapshot()
	for try := 0; ; try++ {
		var enc rangecoding.Encoder
		enc.Init(e.buf[:maxBytes])
		err := e.silk.Encode(&enc, e.low, bw)
		var data []byte
		if err == nil {
			data, err = enc.Done()
		}
		if err == nil {
			return data, try, nil
		}
		e.silk.Restore(snap)
		if !isOverflow(err) || try == maxRetries {
			return nil, try, err
		}
		for i := 0; i <= try; i++ {
			e.silk.Tighten()
		}
	}
}

func (e *Encoder) silkResamplers(rate int) error {
	if rate == e.silkRate && e.silkDown[0] != nil {
		return nil
	}
	for c := 0; c < e.channels; c++ {
		r, err := resample.New(48000, rate)
		if err != nil {
			return err
		}
		e.silkDown[c] = r
	}
	e.silkRate = rate
	return nil
}

func isOverflow(err error) bool {
	return errors.Is(err, silk.ErrFrameTooLarge) || errors.Is(err, rangecoding.ErrPacketTooLarge)
}

func mapError(err error) error {
	if isOverflow(err) {
		return ErrPacketTooLarge
	}
	return err
}

// pipelineState is everything Encode may change.
type pipelineState struct {
	ctl      Controller
	hp       [2]dsp.HighPass
	up       [2]resample.History
	silkDown [2]*resample.Resampler
	silkHist [2]resample.History
	silkRate int
	silk     silk.EncoderState
	celt     celt.EncoderState
	hyb      hybrid.EncoderState
	mode     types.Mode
	haveMode bool
}

func (e *Encoder) snapshot() pipelineState {
	s := pipelineState{
		ctl:      *e.ctl,
		hp:       e.hp,
		silkDown: e.silkDown,
		silkRate: e.silkRate,
		silk:     e.silk.Snapshot(),
		celt:     e.celt.Snapshot(),
		hyb:      e.hyb.Snapshot(),
		mode:     e.mode,
		haveMode: e.haveMode,
	}
	for c := 0; c < e.channels; c++ {
		s.up[c] = e.up[c].State()
		if e.silkDown[c] != nil {
			s.silkHist[c] = e.silkDown[c].State()
		}
	}
	return s
}

func (e *Encoder) restore(s pipelineState) {
	*e.ctl = s.ctl
	e.hp = s.hp
	e.silk.Restore(s.silk)
	e.celt.Restore(s.celt)
	e.hyb.Restore(s.hyb)
	e.mode, e.haveMode = s.mode, s.haveMode
	e.silkDown, e.silkRate = s.silkDown, s.silkRate
	for c := 0; c < e.channels; c++ {
		e.up[c].SetState(s.up[c])
		if e.silkDown[c] != nil {
			e.silkDown[c].SetState(s.silkHist[c])
		}
	}
}

func growSlice(s []float64, n int) []float64 {
	if cap(s) < n {
		return make([]float64, n)
	}
	return s[:n]
}
