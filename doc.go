// Package opuscore implements the Opus hybrid audio codec core in pure Go.
//
// Opus is a lossy audio codec designed for interactive speech and music
// transmission. This package codes PCM at 8, 12, 16, 24 or 48 kHz, mono or
// stereo, at 6 to 510 kbit/s, in frames of 2.5 to 120 ms, and produces
// self-delimiting packets of at most 1275 bytes. It requires no cgo.
//
// # Opus Modes
//
// Opus operates in three modes:
//   - SILK: linear-predictive speech coding at 8, 12 or 16 kHz
//   - CELT: MDCT transform coding up to full 48 kHz bandwidth
//   - Hybrid: SILK below 8 kHz plus CELT above, in one range-coded frame
//
// The encoder picks the mode once per configuration from the application,
// bitrate, bandwidth and signal settings, and again after Reset or any
// setter call. The decoder follows the mode in each packet's TOC byte.
//
// # Packet Structure
//
// Each Opus packet starts with a TOC (Table of Contents) byte:
//   - Bits 7-3: Configuration (0-31)
//   - Bit 2: Stereo flag
//   - Bits 1-0: Frame count code (0-3)
//
// Use ParseTOC to extract these fields, ParsePacket or Frames to find the
// frame boundaries, BuildPacket to frame coded frames and PadPacket to grow
// a packet without changing what it decodes to.
//
// # Errors
//
// Construction errors wrap ErrInvalidConfiguration. A failed Encode leaves
// the encoder unchanged. A rejected packet leaves the decoder as it was
// before the packet; pass a nil packet to Decode to conceal a lost one.
//
// Bit errors that do not break the packet framing are not detectable and
// decode to wrong audio rather than an error.
package opuscore
