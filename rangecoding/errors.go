package rangecoding

import "errors"

var (
	// ErrCorruptStream indicates the decoder consumed more bits than the
	// frame holds or decoded a value outside its declared range.
	ErrCorruptStream = errors.New("rangecoding: corrupt stream")

	// ErrPacketTooLarge indicates the encoder ran out of output storage.
	ErrPacketTooLarge = errors.New("rangecoding: output exceeds storage")
)
