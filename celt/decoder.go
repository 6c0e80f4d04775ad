package celt

import (
	"math"

	"github.com/thesyncim/opuscore/internal/dsp"
	"github.com/thesyncim/opuscore/rangecoding"
	"github.com/thesyncim/opuscore/types"
)

// DecoderState is the part of the decoder that carries over between frames.
// It is a plain value: assigning it takes a snapshot.
type DecoderState struct {
	// Windowed IMDCT tail awaiting overlap-add, per channel
	overlap [2][Overlap]float64

	// De-emphasis filter memory per channel
	deemph [2]float64

	// Post-filter output history per channel
	pfHist [2][combMem]float64

	// Comb filter parameters of the previous frame
	pf postFilter

	// Quantized band energies of the previous frame
	oldE [2][MaxBands]float64

	// Noise fill generator
	seed uint32

	// Band range and channel count of the last decoded frame
	lastStart, lastEnd, lastChannels int
}

func (s *DecoderState) reset() {
	*s = DecoderState{lastEnd: MaxBands, lastChannels: 1}
	for c := range s.oldE {
		for b := range s.oldE[c] {
			s.oldE[c][b] = energyFloor
		}
	}
}

type decoderScratch struct {
	X    [2][MaxFrameSize]float64
	out  [MaxFrameSize + Overlap]float64
	post [combMem + MaxFrameSize]float64
	pcm  [2][MaxFrameSize]float64
}

// Decoder reconstructs 48 kHz PCM from CELT frames. It always keeps state
// for two channels so the coded channel count may change between frames.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	st      DecoderState
	mdcts   *mdctSet
	bands   bandCoder
	scratch *decoderScratch
}

// NewDecoder returns a decoder in its reset state.
func NewDecoder() *Decoder {
	d := &Decoder{mdcts: newMDCTSet(), scratch: &decoderScratch{}}
	d.st.reset()
	return d
}

// Reset clears the inter-frame state.
func (d *Decoder) Reset() { d.st.reset() }

// Snapshot returns a copy of the inter-frame state.
func (d *Decoder) Snapshot() DecoderState { return d.st }

// Restore replaces the inter-frame state with s.
func (d *Decoder) Restore(s DecoderState) { d.st = s }

// LastChannels returns the channel count of the last decoded frame.
func (d *Decoder) LastChannels() int { return d.st.lastChannels }

// Decode reconstructs one CELT-only frame of frameSize samples per channel
// into out (interleaved, nominal range [-1, 1]). out must hold
// frameSize*channels samples.
func (d *Decoder) Decode(data []byte, frameSize, channels int, bw types.Bandwidth, out []float64) error {
	if len(data) == 0 {
		return ErrFrameTooSmall
	}
	var dec rangecoding.Decoder
	dec.Init(data)
	return d.decodeFrame(&dec, frameSize, channels, 0, EndBand(bw), len(data)*8, out)
}

// DecodeHybrid reconstructs the bands above 8 kHz from dec, which has
// already consumed the SILK layer. budget is the size of the whole frame in
// bits.
func (d *Decoder) DecodeHybrid(dec *rangecoding.Decoder, frameSize, channels int, bw types.Bandwidth, budget int, out []float64) error {
	return d.decodeFrame(dec, frameSize, channels, HybridStartBand, max(HybridStartBand, EndBand(bw)), budget, out)
}

func (d *Decoder) decodeFrame(dec *rangecoding.Decoder, n, C, start, end, budget int, out []float64) error {
	lm, ok := LMForFrameSize(n)
	if !ok {
		return ErrInvalidFrameSize
	}
	if C != 1 && C != 2 {
		return ErrInvalidChannels
	}
	if len(out) < n*C {
		return ErrInvalidInputLength
	}
	st := &d.st
	sc := d.scratch

	silence := true
	if budget-dec.Tell() >= 1 {
		silence = dec.DecodeBit(15) == 1
	}

	var pf postFilter
	if silence {
		for c := 0; c < C; c++ {
			clear(sc.X[c][:n])
		}
		st.resetEnergies()
	} else {
		if start == 0 && dec.Tell()+16 <= budget {
			pf = decodePostFilter(dec)
		}
		intra := false
		if dec.Tell()+3 <= budget {
			intra = dec.DecodeBit(3) == 1
		}
		decodeCoarse(dec, &st.oldE, start, end, C, lm, intra, budget)
		alloc := computeAllocation(start, end, lm, C, budget*8-dec.TellFrac()-8, &st.oldE)
		decodeFine(dec, &st.oldE, &alloc.fine, start, end, C)
		for c := 0; c < C; c++ {
			clear(sc.X[c][:n])
		}
		d.bands.decodeBands(dec, &sc.X, &st.oldE, &alloc, start, end, lm, C, budget*8, &st.seed)
		decodeFinal(dec, &st.oldE, &alloc.fine, start, end, C, budget-dec.Tell())
		d.denormalize(n, lm, start, end, C)
		clearOutside(&st.oldE, start, end, C)
	}

	if err := dec.Err(); err != nil {
		return err
	}
	d.synthesize(n, lm, C, pf, out)
	st.lastStart, st.lastEnd, st.lastChannels = start, end, C
	return nil
}

// denormalize scales the unit band shapes by their energies.
func (d *Decoder) denormalize(n, lm, start, end, C int) {
	sc := d.scratch
	for c := 0; c < C; c++ {
		for b := start; b < end; b++ {
			lo, hi := bandRange(b, lm)
			g := bandGain(b, d.st.oldE[c][b])
			for j := lo; j < hi; j++ {
				sc.X[c][j] *= g
			}
		}
	}
}

// synthesize runs the inverse transform, overlap-add, comb post-filter and
// de-emphasis for the spectrum in the scratch buffers.
func (d *Decoder) synthesize(n, lm, C int, pf postFilter, out []float64) {
	st := &d.st
	sc := d.scratch
	if C == 2 {
		m, s := sc.X[0][:n], sc.X[1][:n]
		for i := range m {
			l := (m[i] + s[i]) * math.Sqrt2 / 2
			r := (m[i] - s[i]) * math.Sqrt2 / 2
			m[i], s[i] = l, r
		}
	}
	for c := 0; c < C; c++ {
		y := sc.out[:n+Overlap]
		d.mdcts[lm].inverse(sc.X[c][:n], y)
		for i := 0; i < Overlap; i++ {
			y[i] += st.overlap[c][i]
		}
		copy(st.overlap[c][:], y[n:])

		post := sc.post[:combMem+n]
		copy(post, st.pfHist[c][:])
		copy(post[combMem:], y[:n])
		applyPostfilter(post, n, st.pf, pf)
		copy(st.pfHist[c][:], post[n:])

		pcm := sc.pcm[c][:n]
		copy(pcm, post[combMem:])
		dsp.DeEmphasize(pcm, dsp.PreemphCoef, &st.deemph[c])
	}
	if C == 1 {
		st.overlap[1] = st.overlap[0]
		st.pfHist[1] = st.pfHist[0]
		st.deemph[1] = st.deemph[0]
	}
	st.pf = pf

	for c := 0; c < C; c++ {
		for i, v := range sc.pcm[c][:n] {
			out[i*C+c] = v / SigScale
		}
	}
}

// Conceal synthesizes a frame for a lost packet. The energies of the last
// frame are attenuated by gain (linear, 0 to 1) and filled with noise; the
// comb filter keeps running with its last period at half gain.
func (d *Decoder) Conceal(frameSize int, gain float64, out []float64) error {
	lm, ok := LMForFrameSize(frameSize)
	if !ok {
		return ErrInvalidFrameSize
	}
	st := &d.st
	sc := d.scratch
	C := st.lastChannels
	if len(out) < frameSize*C {
		return ErrInvalidInputLength
	}
	decay := energyFloor
	if gain > 0 {
		decay = math.Log2(gain)
	}
	for c := 0; c < C; c++ {
		clear(sc.X[c][:frameSize])
		for b := st.lastStart; b < st.lastEnd; b++ {
			e := math.Max(energyFloor, st.oldE[c][b]+decay)
			st.oldE[c][b] = e
			lo, hi := bandRange(b, lm)
			x := sc.X[c][lo:hi]
			noiseFill(x, &st.seed)
			g := bandGain(b, e)
			for j := range x {
				x[j] *= g
			}
		}
	}
	pf := st.pf
	pf.gain /= 2
	if pf.gain < gainFromIndex(0)/2 {
		pf = postFilter{}
	}
	d.synthesize(frameSize, lm, C, pf, out)
	return nil
}

// resetEnergies drops the energy predictor to the floor after a silent frame.
func (s *DecoderState) resetEnergies() {
	for c := range s.oldE {
		for b := range s.oldE[c] {
			s.oldE[c][b] = energyFloor
		}
	}
}
