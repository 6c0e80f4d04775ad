package celt

import (
	"math"

	"github.com/thesyncim/opuscore/internal/dsp"
	"github.com/thesyncim/opuscore/rangecoding"
	"github.com/thesyncim/opuscore/types"
)

// EncoderState is the part of the encoder that carries over between frames.
// It is a plain value: assigning it takes a snapshot.
type EncoderState struct {
	// Pre-emphasis filter memory per channel
	preemph [2]float64

	// Last Overlap samples of the pre-filtered input per channel
	hist [2][Overlap]float64

	// Raw (pre-emphasized, unfiltered) input history for the comb filter
	pfIn [2][combMem]float64

	// Comb filter parameters of the previous frame
	pf postFilter

	// Quantized band energies of the previous frame
	oldE [2][MaxBands]float64

	// Frames coded since the last reset (0 forces an intra frame)
	frames int
}

func (s *EncoderState) reset() {
	*s = EncoderState{}
	for c := range s.oldE {
		for b := range s.oldE[c] {
			s.oldE[c][b] = energyFloor
		}
	}
}

// encoderScratch holds per-frame buffers that carry no state.
type encoderScratch struct {
	in     [2][MaxFrameSize]float64
	pre    [combMem + MaxFrameSize]float64
	mix    [combMem + MaxFrameSize]float64
	dec    [(combMem + MaxFrameSize) / 2]float64
	frame  [MaxFrameSize + Overlap]float64
	X      [2][MaxFrameSize]float64
	logE   [2][MaxBands]float64
	errE   [2][MaxBands]float64
	packet []byte
}

// Encoder codes 48 kHz PCM into CELT frames. The inter-frame state lives in
// EncoderState so callers can snapshot it cheaply; the transform plans and
// scratch buffers are owned by the Encoder.
//
// An Encoder is not safe for concurrent use.
type Encoder struct {
	channels   int
	complexity int

	st      EncoderState
	mdcts   *mdctSet
	bands   bandCoder
	scratch *encoderScratch
}

// NewEncoder returns an encoder for 1 or 2 channels.
func NewEncoder(channels int) (*Encoder, error) {
	if channels != 1 && channels != 2 {
		return nil, ErrInvalidChannels
	}
	e := &Encoder{
		channels:   channels,
		complexity: 10,
		mdcts:      newMDCTSet(),
		scratch:    &encoderScratch{},
	}
	e.st.reset()
	e.bands.refine = max(0, e.complexity-6)
	return e, nil
}

// Channels returns the channel count.
func (e *Encoder) Channels() int { return e.channels }

// SetComplexity sets the analysis effort, 0 to 10. Pitch pre-filtering
// needs 5 or more; each step above 6 adds a pulse refinement pass.
func (e *Encoder) SetComplexity(c int) {
	e.complexity = max(0, min(c, 10))
	e.bands.refine = max(0, e.complexity-6)
}

// Complexity returns the analysis effort.
func (e *Encoder) Complexity() int { return e.complexity }

// Reset clears the inter-frame state.
func (e *Encoder) Reset() { e.st.reset() }

// Snapshot returns a copy of the inter-frame state.
func (e *Encoder) Snapshot() EncoderState { return e.st }

// Restore replaces the inter-frame state with s.
func (e *Encoder) Restore(s EncoderState) { e.st = s }

// Encode codes one CELT-only frame of frameSize samples per channel
// (interleaved, nominal range [-1, 1]) into at most frameBytes bytes.
// Regular frames fill frameBytes exactly; silent frames take at most two
// bytes.
// The returned slice is valid until the next call.
func (e *Encoder) Encode(pcm []float64, frameSize int, bw types.Bandwidth, frameBytes int) ([]byte, error) {
	if frameBytes < 1 {
		return nil, ErrFrameTooSmall
	}
	if cap(e.scratch.packet) < frameBytes {
		e.scratch.packet = make([]byte, frameBytes)
	}
	buf := e.scratch.packet[:frameBytes]
	clear(buf)

	var enc rangecoding.Encoder
	enc.Init(buf)
	silence, err := e.encodeFrame(&enc, pcm, frameSize, 0, EndBand(bw), frameBytes*8)
	if err != nil {
		return nil, err
	}
	if !silence {
		enc.Shrink(uint32(frameBytes))
	}
	return enc.Done()
}

// EncodeHybrid codes the bands above 8 kHz into enc, which already holds the
// SILK layer of the frame. budget is the size of the whole frame in bits.
func (e *Encoder) EncodeHybrid(enc *rangecoding.Encoder, pcm []float64, frameSize int, bw types.Bandwidth, budget int) error {
	_, err := e.encodeFrame(enc, pcm, frameSize, HybridStartBand, max(HybridStartBand, EndBand(bw)), budget)
	return err
}

func (e *Encoder) encodeFrame(enc *rangecoding.Encoder, pcm []float64, n, start, end, budget int) (bool, error) {
	lm, ok := LMForFrameSize(n)
	if !ok {
		return false, ErrInvalidFrameSize
	}
	C := e.channels
	if len(pcm) != n*C {
		return false, ErrInvalidInputLength
	}
	st := &e.st
	sc := e.scratch

	var peak float64
	for c := 0; c < C; c++ {
		in := sc.in[c][:n]
		for i := range in {
			v := pcm[i*C+c] * SigScale
			in[i] = v
			peak = math.Max(peak, math.Abs(v))
		}
		dsp.PreEmphasize(in, dsp.PreemphCoef, &st.preemph[c])
	}
	silence := peak < 0.5

	if budget-enc.Tell() >= 1 {
		enc.EncodeBit(boolInt(silence), 15)
	} else {
		silence = true
	}

	var pf postFilter
	if !silence && start == 0 && enc.Tell()+16 <= budget {
		pf = e.analyzePitch(n)
		encodePostFilter(enc, pf)
	}

	for c := 0; c < C; c++ {
		pre := sc.pre[:combMem+n]
		copy(pre, st.pfIn[c][:])
		copy(pre[combMem:], sc.in[c][:n])
		copy(st.pfIn[c][:], pre[n:])

		frame := sc.frame[:n+Overlap]
		copy(frame, st.hist[c][:])
		applyPrefilter(pre, frame[Overlap:], n, st.pf, pf)
		copy(st.hist[c][:], frame[n:])
		e.mdcts[lm].forward(frame, sc.X[c][:n])
	}
	st.pf = pf

	if silence {
		st.resetEnergies()
		st.frames++
		return true, nil
	}

	if C == 2 {
		l, r := sc.X[0][:n], sc.X[1][:n]
		for i := range l {
			m := (l[i] + r[i]) * math.Sqrt2 / 2
			s := (l[i] - r[i]) * math.Sqrt2 / 2
			l[i], r[i] = m, s
		}
	}
	for c := 0; c < C; c++ {
		bandEnergies(sc.X[c][:], start, end, lm, &sc.logE[c])
	}

	intra := st.frames == 0
	if !intra && e.complexity >= 4 {
		intra = coarseCost(&sc.logE, &st.oldE, start, end, C, lm, true) <
			0.7*coarseCost(&sc.logE, &st.oldE, start, end, C, lm, false)
	}
	if enc.Tell()+3 <= budget {
		enc.EncodeBit(boolInt(intra), 3)
	} else {
		intra = false
	}

	quantCoarse(enc, &sc.logE, &st.oldE, &sc.errE, start, end, C, lm, intra, budget)
	alloc := computeAllocation(start, end, lm, C, budget*8-enc.TellFrac()-8, &st.oldE)
	quantFine(enc, &st.oldE, &sc.errE, &alloc.fine, start, end, C)
	e.bands.encodeBands(enc, &sc.X, &st.oldE, &alloc, start, end, lm, C, budget*8)
	quantFinal(enc, &st.oldE, &sc.errE, &alloc.fine, start, end, C, budget-enc.Tell())

	st.clearOutside(start, end, C)
	st.frames++
	return false, nil
}

// resetEnergies drops the energy predictor to the floor after a silent frame.
func (s *EncoderState) resetEnergies() {
	for c := range s.oldE {
		for b := range s.oldE[c] {
			s.oldE[c][b] = energyFloor
		}
	}
}

func (s *EncoderState) clearOutside(start, end, channels int) {
	clearOutside(&s.oldE, start, end, channels)
}

// clearOutside resets the energies of bands that were not coded and copies
// the mid channel into the side slot of a mono frame.
func clearOutside(oldE *[2][MaxBands]float64, start, end, channels int) {
	for c := range oldE {
		for b := 0; b < MaxBands; b++ {
			if b < start || b >= end {
				oldE[c][b] = energyFloor
			}
		}
	}
	if channels == 1 {
		oldE[1] = oldE[0]
	}
}

// analyzePitch picks the comb filter for the current frame from the mono
// mix of the raw input history.
func (e *Encoder) analyzePitch(n int) postFilter {
	if e.complexity < 5 {
		return postFilter{}
	}
	sc := e.scratch
	st := &e.st
	mix := sc.mix[:combMem+n]
	for i := range mix {
		mix[i] = 0
	}
	g := 1 / float64(e.channels)
	for c := 0; c < e.channels; c++ {
		for i := 0; i < combMem; i++ {
			mix[i] += g * st.pfIn[c][i]
		}
		for i := 0; i < n; i++ {
			mix[combMem+i] += g * sc.in[c][i]
		}
	}
	period, corr := findPitch(mix, n, sc.dec[:], e.complexity)
	if period == 0 || corr < 0.45 {
		return postFilter{}
	}
	qg := int(math.Floor(0.7*corr*32/3 - 1 + 0.5))
	qg = max(0, min(qg, 7))
	return postFilter{period: period, gain: gainFromIndex(qg), tapset: 0}
}

// encodePostFilter signals pf. Only the gain index is recoverable from
// pf.gain, so it is recomputed here.
func encodePostFilter(enc *rangecoding.Encoder, pf postFilter) {
	if !pf.active() {
		enc.EncodeBit(0, 1)
		return
	}
	enc.EncodeBit(1, 1)
	p := pf.period + 1
	octave := bitsLen(p) - 5
	enc.EncodeUniform(uint64(octave), 6)
	enc.EncodeRawBits(uint32(p-(16<<octave)), uint(4+octave))
	qg := int(math.Round(pf.gain*32/3)) - 1
	enc.EncodeRawBits(uint32(qg), 3)
	enc.EncodeICDF(pf.tapset, tapsetICDF, 2)
}

// decodePostFilter mirrors encodePostFilter.
func decodePostFilter(dec *rangecoding.Decoder) postFilter {
	if dec.DecodeBit(1) == 0 {
		return postFilter{}
	}
	octave := int(dec.DecodeUniform(6))
	period := (16 << octave) + int(dec.DecodeRawBits(uint(4+octave))) - 1
	qg := int(dec.DecodeRawBits(3))
	tapset := dec.DecodeICDF(tapsetICDF, 2)
	return postFilter{period: period, gain: gainFromIndex(qg), tapset: tapset}
}
