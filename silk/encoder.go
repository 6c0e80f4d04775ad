package silk

import (
	"math"

	"github.com/thesyncim/opuscore/internal/dsp"
	"github.com/thesyncim/opuscore/rangecoding"
	"github.com/thesyncim/opuscore/types"
	"github.com/thesyncim/opuscore/util"
)

// EncoderState is the part of the encoder that carries over between frames.
// It is a plain value: assigning it takes a snapshot.
type EncoderState struct {
	// Reconstruction state of the mid (or mono) and side channels
	ch [2]channelState
	// Input history per channel for analysis
	ana [2][histLen]float64

	// Rate control: log2 of the residual level over the quantization step
	level     float64
	levelInit bool

	// Bandwidth of the previous frame; a change resets the channels
	bw     types.Bandwidth
	haveBW bool

	frames int
}

type encoderScratch struct {
	an     analysis
	synth  synthBuf
	err    [maxOrder + maxFrameLen]float64
	in     [2][maxFrameLen]float64
	y      [2][maxFrameLen]float64
	recon  []float64
	window map[int][]float64
}

// Encoder codes PCM at the internal rate into SILK frames. The inter-frame
// state lives in EncoderState; the scratch space is owned by the Encoder.
//
// An Encoder is not safe for concurrent use.
type Encoder struct {
	channels int
	bitrate  int
	maxBits  int
	phase    EncoderPhase

	st EncoderState
	sc *encoderScratch
}

// NewEncoder returns an encoder for 1 or 2 channels targeting 20 kbit/s.
func NewEncoder(channels int) (*Encoder, error) {
	if channels != 1 && channels != 2 {
		return nil, ErrInvalidChannels
	}
	return &Encoder{
		channels: channels,
		bitrate:  20000,
		sc:       &encoderScratch{window: make(map[int][]float64)},
	}, nil
}

// Channels returns the channel count.
func (e *Encoder) Channels() int { return e.channels }

// SetBitrate sets the target rate of the SILK layer in bits per second.
// The rate controller restarts from the new target.
func (e *Encoder) SetBitrate(bps int) {
	e.bitrate = max(bps, 1000)
	e.st.levelInit = false
}

// Bitrate returns the target rate of the SILK layer.
func (e *Encoder) Bitrate() int { return e.bitrate }

// SetMaxBits bounds the range coder position (as reported by Tell) at the
// end of each Encode call. The encoder spends fewer excitation bits, and
// drops to coarser side parameters, rather than exceed it. Zero removes the
// bound.
func (e *Encoder) SetMaxBits(bits int) { e.maxBits = max(bits, 0) }

// Phase returns the pipeline phase of the last processed frame.
func (e *Encoder) Phase() EncoderPhase { return e.phase }

// Reset clears the inter-frame state.
func (e *Encoder) Reset() {
	e.st = EncoderState{}
	e.phase = PhaseInactive
}

// Snapshot returns a copy of the inter-frame state.
func (e *Encoder) Snapshot() EncoderState { return e.st }

// Restore replaces the inter-frame state with s.
func (e *Encoder) Restore(s EncoderState) { e.st = s }

// Tighten lowers the rate controller's target quality by about 9 dB. The
// caller uses it to retry a frame that overflowed its budget.
func (e *Encoder) Tighten() {
	e.st.level = math.Max(e.st.level-1.5, minLevel)
	e.st.levelInit = true
}

// Reconstruction returns the encoder's own decoded output of the last
// Encode call, interleaved at the internal rate.
func (e *Encoder) Reconstruction() []float64 { return e.sc.recon }

const (
	minLevel = -4.0
	maxLevel = 6.0

	// symbolLoss bounds the range coder's rounding loss per symbol in bits.
	symbolLoss = 0.01
)

// Encode codes pcm (interleaved, nominal range [-1, 1], at the internal rate
// of bw) into enc. The duration must be 10, 20, 40 or 60 ms; 40 and 60 ms
// are coded as consecutive 20 ms frames. On ErrFrameTooLarge the state is
// left unchanged.
func (e *Encoder) Encode(enc *rangecoding.Encoder, pcm []float64, bw types.Bandwidth) error {
	cfg, err := ConfigFor(bw)
	if err != nil {
		return err
	}
	if len(pcm)%e.channels != 0 {
		return ErrInvalidFrameSize
	}
	total := len(pcm) / e.channels
	subframes, frames, ok := cfg.subframesFor(total)
	if !ok {
		return ErrInvalidFrameSize
	}
	snap := e.st
	if !e.st.haveBW || e.st.bw != bw {
		levelInit, level := e.st.levelInit, e.st.level
		e.st = EncoderState{bw: bw, haveBW: true, levelInit: levelInit, level: level, frames: e.st.frames}
	}
	if !e.st.levelInit {
		bps := float64(e.bitrate) / float64(cfg.SampleRate)
		e.st.level = util.Clamp(bps-2.3, minLevel, maxLevel)
		e.st.levelInit = true
	}

	n := subframes * cfg.SubframeSamples
	if cap(e.sc.recon) < total*e.channels {
		e.sc.recon = make([]float64, total*e.channels)
	}
	e.sc.recon = e.sc.recon[:total*e.channels]
	win := e.windowFor(n + cfg.SubframeSamples)

	// Limits are in 1/8 bit. One bit covers the rounding in Tell.
	start0, limit := enc.TellFrac(), 0
	if e.maxBits > 0 {
		limit = (e.maxBits - 1) * 8
		if limit <= start0 {
			e.st = snap
			return ErrFrameTooLarge
		}
	}

	for f := 0; f < frames; f++ {
		start := enc.TellFrac()
		frameLimit := 0
		if limit > 0 {
			frameLimit = start0 + (limit-start0)*(f+1)/frames
		}
		e.splitChannels(pcm, f*n, n)
		mid := e.sc.in[0][:n]

		skip := false
		if e.channels == 2 {
			skip = dsp.Energy(e.sc.in[1][:n]) <= sideSkipRatio*dsp.Energy(mid)+float64(n)
		}
		midLimit := frameLimit
		if frameLimit > 0 && e.channels == 2 {
			if !skip {
				midLimit = start + (frameLimit-start)*2/3
			}
			midLimit -= 8
		}
		p := e.prepareChannel(0, mid, cfg, subframes, win, nil)
		steps, ok := e.codeChannel(enc, 0, mid, &p, cfg, midLimit)
		if !ok && e.channels == 2 && !skip {
			// Give the side channel's share to the mid channel.
			skip = true
			steps, ok = e.codeChannel(enc, 0, mid, &p, cfg, frameLimit-8)
		}
		if !ok {
			e.st = snap
			return ErrFrameTooLarge
		}
		copy(e.sc.y[0][:n], e.sc.synth.output(n))

		var side []float64
		if e.channels == 2 {
			s := e.sc.in[1][:n]
			var ps frameParams
			if skip {
				shiftHistory(&e.st.ana[1], s)
			} else {
				ps = e.prepareChannel(1, s, cfg, subframes, win, &steps)
				if frameLimit > 0 && !e.fitParams(&ps, &e.st.ch[1], cfg, n, frameLimit-enc.TellFrac()-8) {
					skip = true
				}
			}
			enc.EncodeBit(boolInt(skip), 1)
			if skip {
				e.st.ch[1] = channelState{}
			} else {
				if _, ok := e.codeChannel(enc, 1, s, &ps, cfg, frameLimit); !ok {
					e.st = snap
					return ErrFrameTooLarge
				}
				copy(e.sc.y[1][:n], e.sc.synth.output(n))
				side = e.sc.y[1][:n]
			}
		}
		unmix(e.sc.y[0][:n], side, e.sc.recon, f*n, e.channels)

		if enc.Overflowed() {
			e.st = snap
			return ErrFrameTooLarge
		}
		used := float64(enc.TellFrac()-start) / 8
		target := float64(e.bitrate) * float64(n) / float64(cfg.SampleRate)
		step := util.Clamp(0.5*math.Log2(target/math.Max(used, 1)), -1, 1)
		e.st.level = util.Clamp(e.st.level+step, minLevel, maxLevel)
		e.st.frames++
	}
	return nil
}

func (e *Encoder) windowFor(n int) []float64 {
	w, ok := e.sc.window[n]
	if !ok {
		w = dsp.AsymmetricWindow(n, n/2, n/8)
		e.sc.window[n] = w
	}
	return w
}

// splitChannels converts n samples at offset off to the internal scale,
// forming mid and side for stereo input.
func (e *Encoder) splitChannels(pcm []float64, off, n int) {
	if e.channels == 1 {
		for i := 0; i < n; i++ {
			e.sc.in[0][i] = pcm[off+i] * sigScale
		}
		return
	}
	for i := 0; i < n; i++ {
		l := pcm[2*(off+i)] * sigScale
		r := pcm[2*(off+i)+1] * sigScale
		e.sc.in[0][i] = (l + r) / 2
		e.sc.in[1][i] = (l - r) / 2
	}
}

// unmix writes mid/side reconstructions back as interleaved PCM. A nil side
// is silence.
func unmix(mid, side, out []float64, off, channels int) {
	if channels == 1 {
		for i, m := range mid {
			out[off+i] = m / sigScale
		}
		return
	}
	for i, m := range mid {
		var s float64
		if side != nil {
			s = side[i]
		}
		out[2*(off+i)] = (m + s) / sigScale
		out[2*(off+i)+1] = (m - s) / sigScale
	}
}

func shiftHistory(hist *[histLen]float64, x []float64) {
	n := len(x)
	if n >= histLen {
		copy(hist[:], x[n-histLen:])
		return
	}
	copy(hist[:], hist[n:])
	copy(hist[histLen-n:], x)
}

// prepareChannel analyzes one channel frame and picks its parameters.
// minStep, when non-nil, bounds the quantization steps from below.
func (e *Encoder) prepareChannel(c int, x []float64, cfg BandwidthConfig, subframes int,
	win []float64, minStep *[maxSubframes]float64) frameParams {
	an := &e.sc.an

	e.phase = PhaseAnalyzing
	p := frameParams{subframes: subframes}
	an.analyze(&e.st.ana[c], x, cfg, &p, win)
	shiftHistory(&e.st.ana[c], x)

	e.phase = PhasePredicting
	scale := math.Exp2(-e.st.level)
	var mean float64
	for s := 0; s < subframes; s++ {
		q := math.Max(an.rms[s]*scale, 1)
		if minStep != nil {
			q = math.Max(q, minStep[s])
		}
		p.gain[s] = util.Clamp(int(math.Round(4*math.Log2(q))), 0, numGainLevels-1)
		mean += an.rms[s] / gainStep(p.gain[s])
	}
	p.decay = decayIndex(0.8 * mean / float64(subframes))
	return p
}

// codeChannel codes the parameters and excitation of one prepared channel
// frame and returns its quantization steps. A positive limit (1/8 bit) is
// the range coder position the frame must end at or before; ok is false if
// even the coarsest parameters do not fit.
func (e *Encoder) codeChannel(enc *rangecoding.Encoder, c int, x []float64, p *frameParams,
	cfg BandwidthConfig, limit int) (steps [maxSubframes]float64, ok bool) {
	st := &e.st.ch[c]
	order := cfg.LPCOrder
	n := len(x)
	if limit > 0 && !e.fitParams(p, st, cfg, n, limit-enc.TellFrac()) {
		return steps, false
	}

	e.phase = PhasePredicting
	p.encode(enc, cfg, st)
	var a [maxOrder]float64
	predictor(p, order, a[:])

	e.phase = PhaseQuantizing
	e.quantize(enc, st, p, cfg, x, a[:order], limit)
	st.commitFrame(p, cfg, a[:order], e.sc.synth.excitationRMS(n))
	e.phase = PhaseEncoded

	for s := 0; s < p.subframes; s++ {
		steps[s] = gainStep(p.gain[s])
	}
	return steps, true
}

// fitParams makes the parameters of an n-sample channel frame, plus an
// all-zero excitation, fit in avail (1/8 bit). It first moves to peakier
// excitation models with proportionally coarser steps, then gives up pitch
// prediction and repeats the previous frame's coefficients. It reports
// whether the result fits.
func (e *Encoder) fitParams(p *frameParams, st *channelState, cfg BandwidthConfig, n, avail int) bool {
	budget := float64(avail) / 8
	base := *p
	fits := func() bool {
		return paramBits(p, cfg, st)+zeroBits(p.decay)*float64(n)+slackBits(n) <= budget
	}
	search := func() bool {
		for d := base.decay; d >= 0; d-- {
			p.decay = d
			shift := int(math.Round(float64(base.decay-d) * 4 * math.Log2(decayRatio)))
			for s := 0; s < p.subframes; s++ {
				p.gain[s] = min(base.gain[s]+shift, numGainLevels-1)
			}
			if fits() {
				return true
			}
		}
		return false
	}
	if search() {
		return true
	}
	base.voiced = false
	base.lpc = st.prevLPC
	*p = base
	return search()
}

// paramBits returns the cost of coding p with frameParams.encode.
func paramBits(p *frameParams, cfg BandwidthConfig, st *channelState) float64 {
	bits := 1.0
	for i := 0; i < cfg.LPCOrder; i++ {
		bits += rangecoding.LaplaceBits(p.lpc[i]-st.prevLPC[i], lpcModel.fs, lpcModel.decay)
	}
	prev, have := st.prevGain, st.haveGain
	for s := 0; s < p.subframes; s++ {
		if !have {
			bits += rangecoding.UniformBits(numGainLevels)
			have = true
		} else {
			bits += rangecoding.LaplaceBits(p.gain[s]-prev, gainModel.fs, gainModel.decay)
		}
		prev = p.gain[s]
	}
	if p.voiced {
		bits += rangecoding.UniformBits(uint64(cfg.PitchLagMax - cfg.PitchLagMin + 1))
		for s := 0; s < p.subframes; s++ {
			d := util.Clamp(p.delta[s], -maxLagDelta, maxLagDelta)
			bits += rangecoding.LaplaceBits(d, deltaModel.fs, deltaModel.decay)
			bits += rangecoding.UniformBits(numLTPLevels)
		}
	}
	return bits + rangecoding.UniformBits(numDecayLevels)
}

// zeroBits returns the cost of one zero excitation index under decay model
// d, including the range coder's rounding loss.
func zeroBits(d int) float64 {
	m := decayModels[d]
	return rangecoding.LaplaceBits(0, m.fs, m.decay) + symbolLoss
}

// slackBits covers rounding in the cost estimate of an n-sample frame.
func slackBits(n int) float64 {
	return 2 + symbolLoss*float64(n+2*maxOrder)
}

// quantize runs the noise-shaping quantizer. The output error is fed back
// through A(z/gamma) so the coding noise follows the spectral envelope; each
// index is coded as soon as it is chosen and the reconstruction uses the
// coded value. With a positive limit (1/8 bit), an index is only coded
// nonzero while zeros for the rest of the frame still fit.
func (e *Encoder) quantize(enc *rangecoding.Encoder, st *channelState, p *frameParams, cfg BandwidthConfig, x, a []float64, limit int) {
	n := len(x)
	order := len(a)
	sb := &e.sc.synth
	sb.load(st)
	errBuf := e.sc.err[:maxOrder+n]
	copy(errBuf, st.errHist[:])

	var aw [maxOrder]float64
	copy(aw[:], a)
	dsp.Chirp(aw[:order], shapingGamma)

	model := decayModels[p.decay]
	zb := zeroBits(p.decay)
	budget := float64(limit)/8 - 1
	l := cfg.SubframeSamples
	for s := 0; s < p.subframes; s++ {
		q := gainStep(p.gain[s])
		lag := p.lagAt(s, cfg)
		ltp := p.ltpGain(s)
		for j := 0; j < l; j++ {
			i := s*l + j
			lpcPred, ltpPred := sb.predict(i, a, lag, ltp)
			m := maxOrder + i
			var fb float64
			for k := 0; k < order; k++ {
				fb += aw[k] * errBuf[m-1-k]
			}
			t := x[i] - lpcPred - ltpPred + fb
			idx := util.Clamp(int(math.Round(t/q)), -maxPulse, maxPulse)
			if limit > 0 && idx != 0 {
				rest := float64(enc.TellFrac())/8 + zb*float64(n-i-1)
				if rest+rangecoding.LaplaceBits(idx, model.fs, model.decay)+symbolLoss > budget {
					idx = util.Clamp(idx, -1, 1)
					if rest+rangecoding.LaplaceBits(idx, model.fs, model.decay)+symbolLoss > budget {
						idx = 0
					}
				}
			}
			idx = enc.EncodeLaplace(idx, model.fs, model.decay)
			y := sb.commit(i, lpcPred, ltpPred, q*float64(idx))
			errBuf[m] = y - x[i]
		}
	}
	sb.store(st, n)
	copy(st.errHist[:], errBuf[n:n+maxOrder])
}
