package hybrid

import (
	"github.com/thesyncim/opuscore/celt"
	"github.com/thesyncim/opuscore/internal/resample"
	"github.com/thesyncim/opuscore/rangecoding"
	"github.com/thesyncim/opuscore/silk"
	"github.com/thesyncim/opuscore/types"
)

// Decoder reconstructs hybrid frames. It owns a SILK decoder, a CELT decoder
// and the upsamplers for the SILK layer.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	silk *silk.Decoder
	celt *celt.Decoder
	up   [2]*resample.Resampler

	low  []float64
	ch   []float64
	wide []float64
}

// NewDecoder returns a hybrid decoder in its reset state.
func NewDecoder() *Decoder {
	d := &Decoder{silk: silk.NewDecoder(), celt: celt.NewDecoder()}
	for c := range d.up {
		// 16 kHz to 48 kHz is always supported.
		d.up[c], _ = resample.New(silkRate, 48000)
	}
	return d
}

// Reset clears both layers and the resamplers.
func (d *Decoder) Reset() {
	d.silk.Reset()
	d.celt.Reset()
	for _, r := range d.up {
		r.Reset()
	}
}

// Snapshot returns the inter-frame state of both layers.
func (d *Decoder) Snapshot() DecoderState {
	s := DecoderState{SILK: d.silk.Snapshot(), CELT: d.celt.Snapshot()}
	for c, r := range d.up {
		s.up[c] = r.State()
	}
	return s
}

// Restore replaces the inter-frame state of both layers.
func (d *Decoder) Restore(s DecoderState) {
	d.silk.Restore(s.SILK)
	d.celt.Restore(s.CELT)
	for c, r := range d.up {
		r.SetState(s.up[c])
	}
}

// SILKPhase returns the SILK decoder's pipeline phase.
func (d *Decoder) SILKPhase() silk.DecoderPhase { return d.silk.Phase() }

// Decode reconstructs frameSize samples per channel at 48 kHz from data into
// out (interleaved). The resampler state only advances when the frame
// decodes cleanly.
func (d *Decoder) Decode(data []byte, frameSize, channels int, bw types.Bandwidth, out []float64) error {
	if !ValidFrameSize(frameSize) {
		return ErrInvalidFrameSize
	}
	if channels != 1 && channels != 2 {
		return ErrInvalidChannels
	}
	if len(data) == 0 {
		return celt.ErrFrameTooSmall
	}
	if len(out) < frameSize*channels {
		return celt.ErrInvalidInputLength
	}
	n := frameSize / ratio
	low := growSlice(&d.low, n*channels)

	var dec rangecoding.Decoder
	dec.Init(data)
	if err := d.silk.Decode(&dec, types.BandwidthWideband, channels, n, low); err != nil {
		return err
	}
	if err := d.celt.DecodeHybrid(&dec, frameSize, channels, bw, len(data)*8, out); err != nil {
		return err
	}
	d.addLow(low, frameSize, channels, out)
	return nil
}

// Conceal synthesizes a lost hybrid frame from both layers' concealment.
func (d *Decoder) Conceal(frameSize int, gain float64, out []float64) error {
	if !ValidFrameSize(frameSize) {
		return ErrInvalidFrameSize
	}
	channels := d.celt.LastChannels()
	if channels == 0 {
		channels = 1
	}
	if len(out) < frameSize*channels {
		return celt.ErrInvalidInputLength
	}
	n := frameSize / ratio
	low := growSlice(&d.low, n*channels)
	if err := d.silk.Conceal(n, gain, low); err != nil {
		return err
	}
	if err := d.celt.Conceal(frameSize, gain, out); err != nil {
		return err
	}
	d.addLow(low, frameSize, channels, out)
	return nil
}

// LastChannels returns the channel count of the last decoded frame.
func (d *Decoder) LastChannels() int { return d.celt.LastChannels() }

// addLow upsamples the interleaved SILK layer and adds it to out.
func (d *Decoder) addLow(low []float64, frameSize, channels int, out []float64) {
	n := frameSize / ratio
	ch := growSlice(&d.ch, n)
	for c := 0; c < channels; c++ {
		for i := range ch {
			ch[i] = low[i*channels+c]
		}
		d.wide = d.up[c].Process(d.wide[:0], ch)
		for i, v := range d.wide[:frameSize] {
			out[i*channels+c] += v
		}
	}
}
