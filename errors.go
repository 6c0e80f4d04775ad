// errors.go defines the public error taxonomy of the opuscore package.

package opuscore

import (
	"errors"
	"fmt"

	"github.com/thesyncim/opuscore/internal/encoder"
)

// Public error types for encoding and decoding operations.
var (
	// ErrInvalidConfiguration is the parent of every construction error.
	// NewEncoder and NewDecoder return no instance when it is reported.
	ErrInvalidConfiguration = errors.New("opus: invalid configuration")

	// ErrInvalidSampleRate indicates an unsupported sample rate.
	// Valid sample rates are: 8000, 12000, 16000, 24000, 48000.
	ErrInvalidSampleRate = fmt.Errorf("%w: sample rate must be 8000, 12000, 16000, 24000 or 48000", ErrInvalidConfiguration)

	// ErrInvalidChannels indicates an unsupported channel count.
	// Valid channel counts are 1 (mono) or 2 (stereo).
	ErrInvalidChannels = fmt.Errorf("%w: channels must be 1 or 2", ErrInvalidConfiguration)

	// ErrInvalidApplication indicates an invalid application hint.
	// Valid values are ApplicationVoIP, ApplicationAudio, or ApplicationLowDelay.
	ErrInvalidApplication = fmt.Errorf("%w: unknown application", ErrInvalidConfiguration)

	// ErrInvalidBitrate indicates the bitrate is out of valid range.
	// Valid bitrates are 6000 to 510000 bits per second.
	ErrInvalidBitrate = errors.New("opus: invalid bitrate (must be 6000-510000)")

	// ErrInvalidBandwidth indicates a bandwidth outside NB..FB.
	ErrInvalidBandwidth = errors.New("opus: invalid bandwidth")

	// ErrInvalidComplexity indicates the complexity is out of valid range.
	// Valid complexity values are 0 to 10.
	ErrInvalidComplexity = errors.New("opus: invalid complexity (must be 0-10)")

	// ErrInvalidFrameSize indicates a frame size that is not one of the
	// Opus durations at the configured rate.
	ErrInvalidFrameSize = errors.New("opus: invalid frame size")

	// ErrFrameTooShort indicates a PCM buffer shorter than the requested
	// frame size times the channel count.
	ErrFrameTooShort = errors.New("opus: input shorter than one frame")

	// ErrPacketTooLarge indicates a frame could not be coded within its byte
	// budget, or a packet would exceed 1275 bytes. The encoder state is
	// unchanged and the caller may retry with a higher bitrate.
	ErrPacketTooLarge = errors.New("opus: packet exceeds 1275 bytes or frame budget")

	// ErrMalformedPacket indicates reserved or inconsistent packet framing.
	// It affects only the packet that produced it.
	ErrMalformedPacket = errors.New("opus: malformed packet")

	// ErrCorruptStream indicates a frame whose entropy-coded payload could
	// not be decoded.
	ErrCorruptStream = errors.New("opus: corrupt stream")
)

// validSampleRate returns true if the sample rate is valid for Opus.
func validSampleRate(rate int) bool {
	switch rate {
	case 8000, 12000, 16000, 24000, 48000:
		return true
	default:
		return false
	}
}

// mapEncodeError translates pipeline errors into the public taxonomy.
func mapEncodeError(err error) error {
	switch {
	case errors.Is(err, encoder.ErrPacketTooLarge):
		return ErrPacketTooLarge
	case errors.Is(err, encoder.ErrInvalidFrameSize):
		return ErrInvalidFrameSize
	case errors.Is(err, encoder.ErrInvalidInput):
		return ErrFrameTooShort
	default:
		return err
	}
}

// mapDecodeError translates core decoder errors into the public taxonomy.
// Anything the cores reject about a frame's contents is a corrupt stream.
func mapDecodeError(err error) error {
	switch {
	case errors.Is(err, ErrMalformedPacket), errors.Is(err, ErrCorruptStream):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrCorruptStream, err)
	}
}

// errorKind names err for metrics and logs.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrMalformedPacket):
		return "malformed"
	case errors.Is(err, ErrCorruptStream):
		return "corrupt"
	default:
		return "other"
	}
}
