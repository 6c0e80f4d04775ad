package opuscore

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func FuzzParsePacket(f *testing.F) {
	f.Add([]byte{0xF8, 0x11, 0x22, 0x33})
	f.Add([]byte{0x00, 0x10})
	f.Add([]byte{0x03, 0x02, 0x10, 0x20})
	f.Add([]byte{0x03, 0xC2, 5, 30, 1, 2, 3})
	f.Add([]byte{0x02, 252, 1, 0})

	f.Fuzz(func(t *testing.T, data []byte) {
		info, err := ParsePacket(data)
		if err != nil {
			return
		}
		if info.FrameCount < 1 || info.FrameCount > 48 {
			t.Fatalf("invalid frame count: %d", info.FrameCount)
		}
		if len(info.FrameSizes) != info.FrameCount {
			t.Fatalf("frame size metadata mismatch: count=%d sizes=%d", info.FrameCount, len(info.FrameSizes))
		}
		if info.Duration() > MaxPacketSamples {
			t.Fatalf("duration %d accepted", info.Duration())
		}
		frames, err := Frames(data)
		if err != nil {
			t.Fatalf("Frames failed after ParsePacket succeeded: %v", err)
		}
		total := 0
		for i, fr := range frames {
			if len(fr) != info.FrameSizes[i] || len(fr) > MaxPacketBytes {
				t.Fatalf("frame %d has %d bytes, metadata says %d", i, len(fr), info.FrameSizes[i])
			}
			total += len(fr)
		}
		if total+info.Padding >= len(data) {
			t.Fatalf("frames (%d) and padding (%d) leave no room for the header of %d bytes", total, info.Padding, len(data))
		}

		toc := info.TOC
		rebuilt, err := BuildPacket(toc.Mode, toc.Bandwidth, toc.FrameSize, toc.Stereo, frames)
		if err != nil {
			return
		}
		again, err := Frames(rebuilt)
		if err != nil {
			t.Fatalf("rebuilt packet does not parse: %v", err)
		}
		if diff := cmp.Diff(frames, again); diff != "" {
			t.Fatalf("rebuild changed frames (-want +got):\n%s", diff)
		}
	})
}
