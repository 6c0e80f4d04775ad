// Package hybrid codes super-wideband and fullband speech frames that carry
// two layers in one range coder: a SILK wideband layer for 0-8 kHz at
// 16 kHz, followed by the CELT bands from 8 kHz upward.
//
// The SILK layer goes through a 48 kHz to 16 kHz resampler on the way in
// and back on the way out. The round trip costs the same 120 samples as the
// CELT overlap, so the two layers are summed without extra delay lines.
package hybrid

import (
	"errors"

	"github.com/thesyncim/opuscore/celt"
	"github.com/thesyncim/opuscore/internal/resample"
	"github.com/thesyncim/opuscore/silk"
)

const (
	// silkRate is the internal rate of the SILK layer.
	silkRate = 16000

	// ratio is the sample rate ratio between CELT and SILK.
	ratio = 48000 / silkRate

	// maxRetries bounds how often a frame is re-coded after overflowing
	// its budget.
	maxRetries = 3

	// minCELTBits is the share of the frame reserved for the CELT layer
	// when the SILK layer is sized.
	minCELTBits = 24
)

var (
	// ErrInvalidFrameSize indicates a frame size other than 10 or 20 ms.
	ErrInvalidFrameSize = errors.New("hybrid: invalid frame size")

	// ErrInvalidChannels indicates a channel count other than 1 or 2.
	ErrInvalidChannels = errors.New("hybrid: invalid channel count")
)

// ValidFrameSize reports whether frameSize (samples at 48 kHz) can be coded
// as a hybrid frame.
func ValidFrameSize(frameSize int) bool {
	return frameSize == 480 || frameSize == 960
}

// SILKBitrate returns the part of a hybrid bitrate given to the SILK layer.
// The SILK layer gets two thirds of the total, and never less than
// 10 kbit/s per channel.
func SILKBitrate(total, channels int) int {
	return max(total*2/3, 10000*channels)
}

// EncoderState is the inter-frame state of both layers and the SILK
// resamplers.
type EncoderState struct {
	SILK silk.EncoderState
	CELT celt.EncoderState
	down [2]resample.History
}

// DecoderState is the inter-frame state of both layers and the SILK
// resamplers.
type DecoderState struct {
	SILK silk.DecoderState
	CELT celt.DecoderState
	up   [2]resample.History
}
