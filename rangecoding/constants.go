// Package rangecoding implements the range coder used by every opuscore
// frame payload (RFC 6716 Section 4.1 / 5.1).
//
// The encoder narrows an interval [low, low+rng) per symbol and emits bytes
// whenever rng drops to 2^23 or below, propagating carries through a one
// byte buffer and a count of pending 0xFF bytes. Raw bits are packed
// backward from the end of the same buffer so both streams share one frame.
package rangecoding

// Range coder constants.
const (
	// EC_SYM_BITS is the number of bits output at a time.
	EC_SYM_BITS = 8

	// EC_CODE_BITS is the total number of state bits.
	EC_CODE_BITS = 32

	// EC_SYM_MAX is the maximum symbol value.
	EC_SYM_MAX = (1 << EC_SYM_BITS) - 1

	// EC_CODE_TOP is the top of the coding range.
	EC_CODE_TOP = uint32(1) << (EC_CODE_BITS - 1)

	// EC_CODE_BOT is the renormalization threshold.
	EC_CODE_BOT = EC_CODE_TOP >> EC_SYM_BITS

	// EC_CODE_SHIFT positions the output byte within val.
	EC_CODE_SHIFT = EC_CODE_BITS - EC_SYM_BITS - 1

	// EC_CODE_EXTRA is the number of bits carried over from the first byte.
	EC_CODE_EXTRA = (EC_CODE_BITS-2)%EC_SYM_BITS + 1

	// EC_UINT_BITS is the number of high bits of a uniform integer that are
	// range coded; the remainder goes out as raw bits.
	EC_UINT_BITS = 8

	// EC_WINDOW_SIZE is the width of the raw bit window.
	EC_WINDOW_SIZE = 32

	// BITRES is the fractional precision of TellFrac (1/8 bit).
	BITRES = 3

	// maxRawChunk is the widest raw-bit write accepted in one call.
	maxRawChunk = 24
)

// Laplace coder parameters. Every nonzero magnitude keeps at least
// laplaceMinP of the 32768 probability mass, and laplaceNMin values on each
// side of zero are guaranteed that floor.
const (
	laplaceLogMinP = 0
	laplaceMinP    = 1 << laplaceLogMinP
	laplaceNMin    = 16
	laplaceFTBits  = 15
	laplaceFT      = 1 << laplaceFTBits
)
