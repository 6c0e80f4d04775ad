package hybrid

import (
	"errors"

	"github.com/thesyncim/opuscore/celt"
	"github.com/thesyncim/opuscore/internal/resample"
	"github.com/thesyncim/opuscore/rangecoding"
	"github.com/thesyncim/opuscore/silk"
	"github.com/thesyncim/opuscore/types"
)

// Encoder codes hybrid frames. It owns a SILK encoder, a CELT encoder and
// the downsamplers feeding the SILK layer.
//
// An Encoder is not safe for concurrent use.
type Encoder struct {
	channels int
	bitrate  int

	silk *silk.Encoder
	celt *celt.Encoder
	down [2]*resample.Resampler

	// Retries counts frames that had to be re-coded with a coarser SILK
	// layer since the encoder was created.
	Retries int

	in   [2][]float64
	low  []float64
	ilv  []float64
	buf  []byte
	full []float64
}

// NewEncoder returns a hybrid encoder for 1 or 2 channels.
func NewEncoder(channels int) (*Encoder, error) {
	if channels != 1 && channels != 2 {
		return nil, ErrInvalidChannels
	}
	s, err := silk.NewEncoder(channels)
	if err != nil {
		return nil, err
	}
	c, err := celt.NewEncoder(channels)
	if err != nil {
		return nil, err
	}
	e := &Encoder{channels: channels, silk: s, celt: c}
	for ch := 0; ch < channels; ch++ {
		if e.down[ch], err = resample.New(48000, silkRate); err != nil {
			return nil, err
		}
	}
	e.SetBitrate(32000 * channels)
	return e, nil
}

// SetBitrate sets the total target rate of both layers.
func (e *Encoder) SetBitrate(bps int) {
	if bps == e.bitrate {
		return
	}
	e.bitrate = bps
	e.silk.SetBitrate(SILKBitrate(bps, e.channels))
}

// SetComplexity sets the CELT layer's search effort (0-10).
func (e *Encoder) SetComplexity(c int) { e.celt.SetComplexity(c) }

// SILKPhase returns the SILK encoder's pipeline phase.
func (e *Encoder) SILKPhase() silk.EncoderPhase { return e.silk.Phase() }

// Reset clears both layers and the resamplers.
func (e *Encoder) Reset() {
	e.silk.Reset()
	e.celt.Reset()
	for _, r := range e.down {
		if r != nil {
			r.Reset()
		}
	}
}

// Snapshot returns the inter-frame state of both layers.
func (e *Encoder) Snapshot() EncoderState {
	s := EncoderState{SILK: e.silk.Snapshot(), CELT: e.celt.Snapshot()}
	for c := 0; c < e.channels; c++ {
		s.down[c] = e.down[c].State()
	}
	return s
}

// Restore replaces the inter-frame state of both layers.
func (e *Encoder) Restore(s EncoderState) {
	e.silk.Restore(s.SILK)
	e.celt.Restore(s.CELT)
	for c := 0; c < e.channels; c++ {
		e.down[c].SetState(s.down[c])
	}
}

// Encode codes frameSize samples per channel of 48 kHz PCM (interleaved,
// nominal range [-1, 1]) into a frame of exactly frameBytes bytes. The SILK
// layer is bounded to leave minCELTBits for the CELT layer; if the frame
// still overflows it is re-coded with a coarser step. The layer states are
// only committed once a frame fits. The returned slice is valid
// until the next call.
func (e *Encoder) Encode(pcm []float64, frameSize int, bw types.Bandwidth, frameBytes int) ([]byte, error) {
	if !ValidFrameSize(frameSize) {
		return nil, ErrInvalidFrameSize
	}
	C := e.channels
	if len(pcm) != frameSize*C {
		return nil, celt.ErrInvalidInputLength
	}
	if frameBytes < 2 {
		return nil, celt.ErrFrameTooSmall
	}
	snap := e.Snapshot()
	e.downsample(pcm, frameSize)
	for try := 0; ; try++ {
		out, err := e.encodeOnce(pcm, frameSize, bw, frameBytes)
		if err == nil {
			return out, nil
		}
		overflow := errors.Is(err, silk.ErrFrameTooLarge) || errors.Is(err, rangecoding.ErrPacketTooLarge)
		if !overflow || try == maxRetries {
			e.Restore(snap)
			return nil, err
		}
		e.silk.Restore(snap.SILK)
		e.celt.Restore(snap.CELT)
		for i := 0; i <= try; i++ {
			e.silk.Tighten()
		}
		e.Retries++
	}
}

func (e *Encoder) encodeOnce(pcm []float64, frameSize int, bw types.Bandwidth, frameBytes int) ([]byte, error) {
	if cap(e.buf) < frameBytes {
		e.buf = make([]byte, frameBytes)
	}
	buf := e.buf[:frameBytes]
	clear(buf)

	var enc rangecoding.Encoder
	enc.Init(buf)
	e.silk.SetMaxBits(max(frameBytes*8-minCELTBits, 1))
	if err := e.silk.Encode(&enc, e.low, types.BandwidthWideband); err != nil {
		return nil, err
	}
	if enc.Tell()+minCELTBits > frameBytes*8 {
		return nil, silk.ErrFrameTooLarge
	}
	if err := e.celt.EncodeHybrid(&enc, pcm, frameSize, bw, frameBytes*8); err != nil {
		return nil, err
	}
	enc.Shrink(uint32(frameBytes))
	return enc.Done()
}

// downsample fills e.low with the interleaved 16 kHz SILK input.
func (e *Encoder) downsample(pcm []float64, frameSize int) {
	C := e.channels
	n := frameSize / ratio
	for c := 0; c < C; c++ {
		in := growSlice(&e.in[c], frameSize)
		for i := range in {
			in[i] = pcm[i*C+c]
		}
	}
	low := growSlice(&e.low, n*C)
	for c := 0; c < C; c++ {
		e.ilv = e.down[c].Process(e.ilv[:0], e.in[c][:frameSize])
		for i, v := range e.ilv[:n] {
			low[i*C+c] = v
		}
	}
}

func growSlice(s *[]float64, n int) []float64 {
	if cap(*s) < n {
		*s = make([]float64, n)
	}
	*s = (*s)[:n]
	return *s
}
