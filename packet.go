// packet.go implements TOC byte handling and packet framing per RFC 6716 Section 3.

package opuscore

import (
	"fmt"

	"github.com/thesyncim/opuscore/types"
)

// Mode is an alias for types.Mode representing the Opus coding mode.
type Mode = types.Mode

// Bandwidth is an alias for types.Bandwidth representing the audio bandwidth.
type Bandwidth = types.Bandwidth

// Re-export mode constants for convenience.
const (
	ModeSILK   = types.ModeSILK   // SILK-only mode (configs 0-11)
	ModeHybrid = types.ModeHybrid // Hybrid SILK+CELT (configs 12-15)
	ModeCELT   = types.ModeCELT   // CELT-only mode (configs 16-31)
)

// Re-export bandwidth constants for convenience.
const (
	BandwidthNarrowband    = types.BandwidthNarrowband    // 4kHz audio, 8kHz sample rate
	BandwidthMediumband    = types.BandwidthMediumband    // 6kHz audio, 12kHz sample rate
	BandwidthWideband      = types.BandwidthWideband      // 8kHz audio, 16kHz sample rate
	BandwidthSuperwideband = types.BandwidthSuperwideband // 12kHz audio, 24kHz sample rate
	BandwidthFullband      = types.BandwidthFullband      // 20kHz audio, 48kHz sample rate
)

const (
	// MaxPacketBytes is the largest packet the encoder emits and the largest
	// frame the parser accepts.
	MaxPacketBytes = 1275

	// MaxPacketSamples is the longest packet duration, 120 ms at 48 kHz.
	MaxPacketSamples = 5760

	maxFrames = 48
)

// TOC represents the parsed Table of Contents byte from an Opus packet.
type TOC struct {
	Config    uint8     // Configuration 0-31
	Mode      Mode      // Derived from config
	Bandwidth Bandwidth // Derived from config
	FrameSize int       // Frame size in samples at 48kHz
	Stereo    bool      // True if stereo
	FrameCode uint8     // Code 0-3
}

// configEntry holds the mode, bandwidth, and frame size for a configuration.
type configEntry struct {
	Mode      Mode
	Bandwidth Bandwidth
	FrameSize int // In samples at 48kHz
}

// configTable maps configuration indices 0-31 to their properties.
// Based on RFC 6716 Section 3.1 Table.
var configTable = [32]configEntry{
	// SILK-only NB: configs 0-3 (10/20/40/60ms)
	{ModeSILK, BandwidthNarrowband, 480},
	{ModeSILK, BandwidthNarrowband, 960},
	{ModeSILK, BandwidthNarrowband, 1920},
	{ModeSILK, BandwidthNarrowband, 2880},
	// SILK-only MB: configs 4-7
	{ModeSILK, BandwidthMediumband, 480},
	{ModeSILK, BandwidthMediumband, 960},
	{ModeSILK, BandwidthMediumband, 1920},
	{ModeSILK, BandwidthMediumband, 2880},
	// SILK-only WB: configs 8-11
	{ModeSILK, BandwidthWideband, 480},
	{ModeSILK, BandwidthWideband, 960},
	{ModeSILK, BandwidthWideband, 1920},
	{ModeSILK, BandwidthWideband, 2880},
	// Hybrid SWB: configs 12-13 (10/20ms)
	{ModeHybrid, BandwidthSuperwideband, 480},
	{ModeHybrid, BandwidthSuperwideband, 960},
	// Hybrid FB: configs 14-15
	{ModeHybrid, BandwidthFullband, 480},
	{ModeHybrid, BandwidthFullband, 960},
	// CELT NB: configs 16-19 (2.5/5/10/20ms)
	{ModeCELT, BandwidthNarrowband, 120},
	{ModeCELT, BandwidthNarrowband, 240},
	{ModeCELT, BandwidthNarrowband, 480},
	{ModeCELT, BandwidthNarrowband, 960},
	// CELT WB: configs 20-23
	{ModeCELT, BandwidthWideband, 120},
	{ModeCELT, BandwidthWideband, 240},
	{ModeCELT, BandwidthWideband, 480},
	{ModeCELT, BandwidthWideband, 960},
	// CELT SWB: configs 24-27
	{ModeCELT, BandwidthSuperwideband, 120},
	{ModeCELT, BandwidthSuperwideband, 240},
	{ModeCELT, BandwidthSuperwideband, 480},
	{ModeCELT, BandwidthSuperwideband, 960},
	// CELT FB: configs 28-31
	{ModeCELT, BandwidthFullband, 120},
	{ModeCELT, BandwidthFullband, 240},
	{ModeCELT, BandwidthFullband, 480},
	{ModeCELT, BandwidthFullband, 960},
}

// GenerateTOC creates a TOC byte from a configuration index, the stereo
// flag and a frame count code (0-3).
func GenerateTOC(config uint8, stereo bool, frameCode uint8) byte {
	toc := (config & 0x1F) << 3
	if stereo {
		toc |= 0x04
	}
	toc |= frameCode & 0x03
	return toc
}

// ConfigFromParams returns the config index for given mode, bandwidth, and frame size.
// Returns -1 if the combination is invalid.
//
// The TOC cannot signal a medium-band CELT or a wideband hybrid frame;
// those combinations are never produced by the encoder.
func ConfigFromParams(mode Mode, bandwidth Bandwidth, frameSize int) int {
	for i, entry := range configTable {
		if entry.Mode == mode && entry.Bandwidth == bandwidth && entry.FrameSize == frameSize {
			return i
		}
	}
	return -1
}

// ParseTOC parses a TOC byte and returns the decoded fields.
func ParseTOC(b byte) TOC {
	config := b >> 3
	entry := configTable[config]
	return TOC{
		Config:    config,
		Mode:      entry.Mode,
		Bandwidth: entry.Bandwidth,
		FrameSize: entry.FrameSize,
		Stereo:    b&0x04 != 0,
		FrameCode: b & 0x03,
	}
}

// PacketInfo contains parsed information about an Opus packet.
type PacketInfo struct {
	TOC        TOC   // Parsed TOC byte
	FrameCount int   // Number of frames (1-48 for code 3)
	FrameSizes []int // Size in bytes of each frame
	Padding    int   // Padding bytes (code 3 only)
	TotalSize  int   // Total packet size

	payload int // offset of the first frame
}

// Duration returns the packet duration in samples at 48 kHz.
func (p PacketInfo) Duration() int {
	return p.FrameCount * p.TOC.FrameSize
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrMalformedPacket}, args...)...)
}

// ParsePacket parses an Opus packet and returns information about its structure.
// It determines the frame boundaries based on the TOC byte's frame code (0-3)
// and rejects packets whose framing is inconsistent with the buffer, whose
// frames exceed 1275 bytes or whose duration exceeds 120 ms. All such errors
// wrap ErrMalformedPacket.
func ParsePacket(data []byte) (PacketInfo, error) {
	if len(data) < 1 {
		return PacketInfo{}, malformed("empty packet")
	}

	toc := ParseTOC(data[0])
	info := PacketInfo{
		TOC:       toc,
		TotalSize: len(data),
		payload:   1,
	}

	switch toc.FrameCode {
	case 0:
		info.FrameCount = 1
		info.FrameSizes = []int{len(data) - 1}

	case 1:
		frameDataLen := len(data) - 1
		if frameDataLen%2 != 0 {
			return PacketInfo{}, malformed("code 1 payload of %d bytes is odd", frameDataLen)
		}
		info.FrameCount = 2
		info.FrameSizes = []int{frameDataLen / 2, frameDataLen / 2}

	case 2:
		frame1Len, bytesRead, err := parseFrameLength(data, 1)
		if err != nil {
			return PacketInfo{}, err
		}
		info.payload = 1 + bytesRead
		frame2Len := len(data) - info.payload - frame1Len
		if frame2Len < 0 {
			return PacketInfo{}, malformed("first frame length %d overruns %d-byte packet", frame1Len, len(data))
		}
		info.FrameCount = 2
		info.FrameSizes = []int{frame1Len, frame2Len}

	case 3:
		if len(data) < 2 {
			return PacketInfo{}, malformed("code 3 packet without frame count")
		}
		frameCountByte := data[1]
		vbr := frameCountByte&0x80 != 0
		hasPadding := frameCountByte&0x40 != 0
		m := int(frameCountByte & 0x3F)
		if m == 0 || m > maxFrames {
			return PacketInfo{}, malformed("frame count %d", m)
		}

		offset := 2
		padding := 0
		if hasPadding {
			for {
				if offset >= len(data) {
					return PacketInfo{}, malformed("padding length overruns packet")
				}
				padByte := int(data[offset])
				offset++
				if padByte == 255 {
					padding += 254
					continue
				}
				padding += padByte
				break
			}
		}

		info.FrameCount = m
		info.Padding = padding
		info.FrameSizes = make([]int, m)

		if vbr {
			total := 0
			for i := 0; i < m-1; i++ {
				frameLen, bytesRead, err := parseFrameLength(data, offset)
				if err != nil {
					return PacketInfo{}, err
				}
				info.FrameSizes[i] = frameLen
				total += frameLen
				offset += bytesRead
			}
			last := len(data) - offset - padding - total
			if last < 0 {
				return PacketInfo{}, malformed("%d frames need %d bytes, packet holds %d", m, offset+padding+total, len(data))
			}
			info.FrameSizes[m-1] = last
		} else {
			frameDataLen := len(data) - offset - padding
			if frameDataLen < 0 {
				return PacketInfo{}, malformed("padding of %d bytes overruns packet", padding)
			}
			if frameDataLen%m != 0 {
				return PacketInfo{}, malformed("%d bytes do not split into %d equal frames", frameDataLen, m)
			}
			for i := range info.FrameSizes {
				info.FrameSizes[i] = frameDataLen / m
			}
		}
		info.payload = offset
	}

	if d := info.Duration(); d > MaxPacketSamples {
		return PacketInfo{}, malformed("duration %d samples exceeds 120 ms", d)
	}
	for i, n := range info.FrameSizes {
		if n > MaxPacketBytes {
			return PacketInfo{}, malformed("frame %d is %d bytes", i, n)
		}
	}
	return info, nil
}

// parseFrameLength parses a frame length from the packet data at the given offset.
// Per RFC 6716 Section 3.2.1, lengths < 252 use one byte, lengths >= 252 use two bytes.
// Returns the length and the number of bytes read.
func parseFrameLength(data []byte, offset int) (int, int, error) {
	if offset >= len(data) {
		return 0, 0, malformed("frame length overruns packet")
	}
	firstByte := int(data[offset])
	if firstByte < 252 {
		return firstByte, 1, nil
	}
	if offset+1 >= len(data) {
		return 0, 0, malformed("two-byte frame length overruns packet")
	}
	return 4*int(data[offset+1]) + firstByte, 2, nil
}

// appendFrameLength appends the RFC 6716 Section 3.2.1 coding of n.
func appendFrameLength(dst []byte, n int) []byte {
	if n < 252 {
		return append(dst, byte(n))
	}
	first := 252 + n&3
	return append(dst, byte(first), byte((n-first)>>2))
}

// Frames returns the frames of packet as sub-slices of it.
func Frames(packet []byte) ([][]byte, error) {
	info, err := ParsePacket(packet)
	if err != nil {
		return nil, err
	}
	return info.frames(packet), nil
}

func (p PacketInfo) frames(packet []byte) [][]byte {
	out := make([][]byte, len(p.FrameSizes))
	off := p.payload
	for i, n := range p.FrameSizes {
		out[i] = packet[off : off+n : off+n]
		off += n
	}
	return out
}

// PacketFrameCount returns the number of frames in packet without parsing
// the frame lengths.
func PacketFrameCount(packet []byte) (int, error) {
	if len(packet) < 1 {
		return 0, malformed("empty packet")
	}
	switch packet[0] & 0x03 {
	case 0:
		return 1, nil
	case 1, 2:
		return 2, nil
	default:
		if len(packet) < 2 {
			return 0, malformed("code 3 packet without frame count")
		}
		m := int(packet[1] & 0x3F)
		if m == 0 || m > maxFrames {
			return 0, malformed("frame count %d", m)
		}
		return m, nil
	}
}

// PacketDuration returns the duration of packet in samples at 48 kHz.
func PacketDuration(packet []byte) (int, error) {
	m, err := PacketFrameCount(packet)
	if err != nil {
		return 0, err
	}
	d := m * ParseTOC(packet[0]).FrameSize
	if d > MaxPacketSamples {
		return 0, malformed("duration %d samples exceeds 120 ms", d)
	}
	return d, nil
}

// BuildPacket frames one or more coded frames sharing mode, bandwidth and
// frame size (in samples at 48 kHz) into a packet, using the smallest frame
// count code that can carry them.
func BuildPacket(mode Mode, bw Bandwidth, frameSize int, stereo bool, frames [][]byte) ([]byte, error) {
	config := ConfigFromParams(mode, bw, frameSize)
	if config < 0 {
		return nil, fmt.Errorf("%w: no configuration for %v %v %d", ErrInvalidFrameSize, mode, bw, frameSize)
	}
	if len(frames) == 0 || len(frames) > maxFrames || len(frames)*frameSize > MaxPacketSamples {
		return nil, fmt.Errorf("%w: %d frames of %d samples", ErrInvalidFrameSize, len(frames), frameSize)
	}
	for _, f := range frames {
		if len(f) > MaxPacketBytes {
			return nil, ErrPacketTooLarge
		}
	}
	out := assemble(uint8(config), stereo, frames, false, 0)
	if len(out) > MaxPacketBytes {
		return nil, ErrPacketTooLarge
	}
	return out, nil
}

func sameSize(frames [][]byte) bool {
	for _, f := range frames[1:] {
		if len(f) != len(frames[0]) {
			return false
		}
	}
	return true
}

// code3Overhead returns the code 3 header size of frames without padding.
func code3Overhead(frames [][]byte) int {
	n := 2
	if !sameSize(frames) {
		for _, f := range frames[:len(frames)-1] {
			if len(f) < 252 {
				n++
			} else {
				n += 2
			}
		}
	}
	return n
}

// assemble writes the packet. force3 or a positive pad selects code 3;
// pad counts the padding length bytes plus the padding data.
func assemble(config uint8, stereo bool, frames [][]byte, force3 bool, pad int) []byte {
	total := 0
	for _, f := range frames {
		total += len(f)
	}
	equal := sameSize(frames)
	out := make([]byte, 0, 2+2*len(frames)+pad+total)

	switch {
	case !force3 && pad == 0 && len(frames) == 1:
		out = append(out, GenerateTOC(config, stereo, 0))
	case !force3 && pad == 0 && len(frames) == 2 && equal:
		out = append(out, GenerateTOC(config, stereo, 1))
	case !force3 && pad == 0 && len(frames) == 2:
		out = append(out, GenerateTOC(config, stereo, 2))
		out = appendFrameLength(out, len(frames[0]))
	default:
		count := byte(len(frames))
		if !equal {
			count |= 0x80
		}
		if pad > 0 {
			count |= 0x40
		}
		out = append(out, GenerateTOC(config, stereo, 3), count)
		if pad > 0 {
			nb := (pad - 1) / 255
			for i := 0; i < nb; i++ {
				out = append(out, 255)
			}
			out = append(out, byte(pad-255*nb-1))
		}
		if !equal {
			for _, f := range frames[:len(frames)-1] {
				out = appendFrameLength(out, len(f))
			}
		}
	}
	for _, f := range frames {
		out = append(out, f...)
	}
	if pad > 0 {
		nb := (pad - 1) / 255
		out = append(out, make([]byte, pad-nb-1)...)
	}
	return out
}

// PadPacket returns packet grown to exactly newLen bytes using code 3
// framing. The frames are unchanged, so the padded packet decodes
// identically.
func PadPacket(packet []byte, newLen int) ([]byte, error) {
	info, err := ParsePacket(packet)
	if err != nil {
		return nil, err
	}
	if newLen < len(packet) {
		return nil, fmt.Errorf("%w: cannot pad %d bytes down to %d", ErrInvalidFrameSize, len(packet), newLen)
	}
	if newLen == len(packet) {
		return append([]byte(nil), packet...), nil
	}

	frames := info.frames(packet)
	base := code3Overhead(frames)
	for _, f := range frames {
		base += len(f)
	}
	pad := newLen - base
	if pad < 0 {
		return nil, fmt.Errorf("%w: %d bytes cannot hold code 3 framing of %d", ErrInvalidFrameSize, newLen, base)
	}
	return assemble(info.TOC.Config, info.TOC.Stereo, frames, true, pad), nil
}
