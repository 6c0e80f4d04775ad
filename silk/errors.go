package silk

import "errors"

var (
	// ErrInvalidBandwidth indicates a bandwidth above wideband.
	ErrInvalidBandwidth = errors.New("silk: invalid bandwidth for SILK mode")

	// ErrInvalidChannels indicates a channel count other than 1 or 2.
	ErrInvalidChannels = errors.New("silk: invalid channel count")

	// ErrInvalidFrameSize indicates a duration other than 10, 20, 40 or
	// 60 ms at the internal rate.
	ErrInvalidFrameSize = errors.New("silk: invalid frame size")

	// ErrFrameTooLarge indicates the frame did not fit in the range coder
	// storage. The encoder state is left as it was before the call.
	ErrFrameTooLarge = errors.New("silk: frame exceeds budget")
)
