package encoder

// Bitrate limits.
const (
	MinBitrate = 6000
	MaxBitrate = 510000

	// DefaultBitrate is the per-channel rate used until SetBitrate is called.
	DefaultBitrate = 32000

	// MaxPacketBytes is the largest packet the framer can carry.
	MaxPacketBytes = 1275

	// packetOverhead is the worst-case framing overhead: TOC byte, frame
	// count byte and a padding-free two-byte length per frame.
	packetOverhead = 2
)

// ValidBitrate reports whether bitrate is within the supported range.
func ValidBitrate(bitrate int) bool {
	return bitrate >= MinBitrate && bitrate <= MaxBitrate
}

// ClampBitrate limits bitrate to the supported range.
func ClampBitrate(bitrate int) int {
	return max(MinBitrate, min(bitrate, MaxBitrate))
}

// targetBytes returns the byte budget of one frame of frameSize samples at
// 48 kHz for the given bitrate.
func targetBytes(bitrate, frameSize int) int {
	return bitrate * frameSize / (48000 * 8)
}

// frameCap returns the largest frame that still lets frames equal frames
// fit in one packet.
func frameCap(frames int) int {
	if frames <= 1 {
		return MaxPacketBytes - 1
	}
	return (MaxPacketBytes - packetOverhead - 2*(frames-1)) / frames
}

// frameBudget returns the byte budget of each of frames frames of frameSize
// samples, clamped to what a packet can carry.
func frameBudget(bitrate, frameSize, frames int) int {
	return max(2, min(targetBytes(bitrate, frameSize), frameCap(frames)))
}
