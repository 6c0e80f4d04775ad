package celt

import "errors"

var (
	// ErrInvalidFrameSize indicates a frame size other than 120, 240, 480
	// or 960 samples.
	ErrInvalidFrameSize = errors.New("celt: invalid frame size")

	// ErrInvalidChannels indicates a channel count other than 1 or 2.
	ErrInvalidChannels = errors.New("celt: invalid channel count")

	// ErrInvalidInputLength indicates a PCM buffer that does not hold
	// exactly one frame.
	ErrInvalidInputLength = errors.New("celt: invalid input length")

	// ErrFrameTooSmall indicates a frame budget below the minimum of one
	// byte.
	ErrFrameTooSmall = errors.New("celt: frame budget too small")
)
