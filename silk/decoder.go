package silk

import (
	"math"

	"github.com/thesyncim/opuscore/internal/dsp"
	"github.com/thesyncim/opuscore/rangecoding"
	"github.com/thesyncim/opuscore/types"
)

// DecoderState is the part of the decoder that carries over between frames.
// It is a plain value: assigning it takes a snapshot.
type DecoderState struct {
	ch [2]channelState

	bw     types.Bandwidth
	haveBW bool

	// Channel count and side activity of the last frame, for concealment
	lastChannels int
	sideActive   bool

	// Concealment noise generator
	seed uint32
}

type decoderScratch struct {
	synth synthBuf
	y     [2][maxFrameLen]float64
}

// Decoder reconstructs PCM at the internal rate from SILK frames.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	phase DecoderPhase
	st    DecoderState
	sc    *decoderScratch
}

// NewDecoder returns a decoder in its reset state.
func NewDecoder() *Decoder {
	return &Decoder{sc: &decoderScratch{}}
}

// Phase returns the pipeline phase the decoder stopped in.
func (d *Decoder) Phase() DecoderPhase { return d.phase }

// Reset clears the inter-frame state.
func (d *Decoder) Reset() {
	d.st = DecoderState{}
	d.phase = PhaseDone
}

// Snapshot returns a copy of the inter-frame state.
func (d *Decoder) Snapshot() DecoderState { return d.st }

// Restore replaces the inter-frame state with s.
func (d *Decoder) Restore(s DecoderState) { d.st = s }

// Bandwidth returns the bandwidth of the last decoded frame.
func (d *Decoder) Bandwidth() (types.Bandwidth, bool) { return d.st.bw, d.st.haveBW }

// Decode reconstructs samples per channel at the internal rate of bw from
// dec into out (interleaved, nominal range [-1, 1]). Corrupt input is
// reported by dec.Err after the call.
func (d *Decoder) Decode(dec *rangecoding.Decoder, bw types.Bandwidth, channels, samples int, out []float64) error {
	cfg, err := ConfigFor(bw)
	if err != nil {
		return err
	}
	if channels != 1 && channels != 2 {
		return ErrInvalidChannels
	}
	subframes, frames, ok := cfg.subframesFor(samples)
	if !ok || len(out) < samples*channels {
		return ErrInvalidFrameSize
	}
	if !d.st.haveBW || d.st.bw != bw {
		d.st = DecoderState{bw: bw, haveBW: true, seed: d.st.seed}
	}

	n := subframes * cfg.SubframeSamples
	for f := 0; f < frames; f++ {
		d.decodeChannel(dec, 0, cfg, subframes)
		var side []float64
		if channels == 2 {
			if dec.DecodeBit(1) == 1 {
				d.st.ch[1] = channelState{}
				d.st.sideActive = false
			} else {
				d.decodeChannel(dec, 1, cfg, subframes)
				side = d.sc.y[1][:n]
				d.st.sideActive = true
			}
		} else {
			d.st.ch[1] = channelState{}
			d.st.sideActive = false
		}
		unmix(d.sc.y[0][:n], side, out, f*n, channels)
	}
	d.st.lastChannels = channels
	return nil
}

func (d *Decoder) decodeChannel(dec *rangecoding.Decoder, c int, cfg BandwidthConfig, subframes int) {
	st := &d.st.ch[c]
	order := cfg.LPCOrder

	d.phase = PhaseDecoding
	p := frameParams{subframes: subframes}
	p.decode(dec, cfg, st)
	var a [maxOrder]float64
	predictor(&p, order, a[:])

	d.phase = PhaseReconstructing
	sb := &d.sc.synth
	sb.load(st)
	model := decayModels[p.decay]
	l := cfg.SubframeSamples
	for s := 0; s < subframes; s++ {
		q := gainStep(p.gain[s])
		lag := p.lagAt(s, cfg)
		ltp := p.ltpGain(s)
		for j := 0; j < l; j++ {
			i := s*l + j
			lpcPred, ltpPred := sb.predict(i, a[:order], lag, ltp)
			idx := dec.DecodeLaplace(model.fs, model.decay)
			sb.commit(i, lpcPred, ltpPred, q*float64(idx))
		}
	}
	n := subframes * l
	sb.store(st, n)
	copy(d.sc.y[c][:n], sb.output(n))
	st.commitFrame(&p, cfg, a[:order], sb.excitationRMS(n))
	d.phase = PhaseDone
}

// Conceal synthesizes samples per channel for a lost frame from the last
// frame's filters: voiced frames repeat the pitch period of the excitation,
// unvoiced frames use noise at the last excitation level. gain (0 to 1)
// attenuates the excitation and accumulates over consecutive losses.
func (d *Decoder) Conceal(samples int, gain float64, out []float64) error {
	channels := max(d.st.lastChannels, 1)
	if len(out) < samples*channels {
		return ErrInvalidFrameSize
	}
	if !d.st.haveBW {
		clear(out[:samples*channels])
		return nil
	}
	cfg := bandwidthConfigs[d.st.bw]
	order := cfg.LPCOrder
	for off := 0; off < samples; off += maxFrameLen {
		n := min(maxFrameLen, samples-off)
		d.concealChannel(0, n, order, gain)
		var side []float64
		if channels == 2 && d.st.sideActive {
			d.concealChannel(1, n, order, gain)
			side = d.sc.y[1][:n]
		}
		unmix(d.sc.y[0][:n], side, out, off, channels)
	}
	return nil
}

func (d *Decoder) concealChannel(c, n, order int, gain float64) {
	st := &d.st.ch[c]
	sb := &d.sc.synth
	sb.load(st)

	var a [maxOrder]float64
	copy(a[:order], st.lastA[:order])
	dsp.Chirp(a[:order], 0.99)

	ltp := 0.0
	noise := st.lastRMS * gain
	if st.lastVoiced {
		ltp = math.Min(st.lastLTP, 0.95) * gain
		noise *= 0.1
	}
	lag := max(st.lastLag, 1)
	for i := 0; i < n; i++ {
		lpcPred, ltpPred := sb.predict(i, a[:order], lag, ltp)
		d.st.seed = d.st.seed*196314165 + 907633515
		r := noise * float64(int32(d.st.seed)) / (1 << 31) * math.Sqrt(3)
		sb.commit(i, lpcPred, ltpPred, r)
	}
	sb.store(st, n)
	copy(d.sc.y[c][:n], sb.output(n))
	copy(st.lastA[:order], a[:order])
	st.lastLTP = ltp
	st.lastRMS = st.lastRMS * gain
}
