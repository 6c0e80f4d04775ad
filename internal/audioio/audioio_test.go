package audioio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

func ramp(frames, channels int) []float32 {
	out := make([]float32, frames*channels)
	for i := range out {
		out[i] = float32(i%200-100) / 128
	}
	return out
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"a.wav", FormatWAV},
		{"dir/B.WAV", FormatWAV},
		{"x.raw", FormatRaw},
		{"x.pcm", FormatRaw},
		{"song.mp3", FormatMP3},
		{"song.flac", FormatFLAC},
	}
	for _, tt := range tests {
		got, err := FormatFromPath(tt.path)
		if err != nil || got != tt.want {
			t.Errorf("FormatFromPath(%q) = %v, %v; want %v", tt.path, got, err, tt.want)
		}
	}
	if _, err := FormatFromPath("clip.ogg"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("FormatFromPath(.ogg) err = %v, want ErrUnsupported", err)
	}
}

func TestWAVRoundTrip(t *testing.T) {
	in := &Audio{SampleRate: 24000, Channels: 2, Samples: ramp(300, 2)}
	var buf bytes.Buffer
	if err := WriteWAV(&buf, in); err != nil {
		t.Fatal(err)
	}
	if got, want := buf.Len(), 44+2*len(in.Samples); got != want {
		t.Errorf("WAV is %d bytes, want %d", got, want)
	}
	out, err := ReadWAV(&buf)
	if err != nil {
		t.Fatalf("ReadWAV: %v", err)
	}
	if diff := cmp.Diff(in, out, cmpopts.EquateApprox(0, 1.0/32768)); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}
}

func TestReadWAV_FloatWithExtraChunk(t *testing.T) {
	samples := []float32{0.25, -0.5, 1, 0}
	var data bytes.Buffer
	for _, v := range samples {
		binary.Write(&data, binary.LittleEndian, math.Float32bits(v))
	}
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(4+24+(8+3+1)+8+data.Len()))
	buf.WriteString("WAVEfmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, wavFormat{
		AudioFormat: wavFloat, Channels: 1, SampleRate: 16000,
		ByteRate: 64000, BlockAlign: 4, BitsPerSample: 32,
	})
	// An odd-sized chunk is followed by a pad byte.
	buf.WriteString("LIST")
	binary.Write(&buf, binary.LittleEndian, uint32(3))
	buf.Write([]byte{1, 2, 3, 0})
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(data.Len()))
	buf.Write(data.Bytes())

	a, err := ReadWAV(&buf)
	if err != nil {
		t.Fatalf("ReadWAV: %v", err)
	}
	want := &Audio{SampleRate: 16000, Channels: 1, Samples: samples}
	if diff := cmp.Diff(want, a); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestReadWAV_Errors(t *testing.T) {
	if _, err := ReadWAV(bytes.NewReader([]byte("RIFX\x00\x00\x00\x00WAVE"))); err == nil {
		t.Error("accepted a non-RIFF header")
	}
	if _, err := ReadWAV(bytes.NewReader([]byte("RIFF\x04\x00\x00\x00WAVE"))); err == nil {
		t.Error("accepted a WAVE stream without data")
	}

	var buf bytes.Buffer
	buf.WriteString("RIFF\x00\x00\x00\x00WAVEfmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, wavFormat{AudioFormat: wavPCM, Channels: 1, SampleRate: 8000, BitsPerSample: 8})
	buf.WriteString("data\x02\x00\x00\x00\x80\x80")
	if _, err := ReadWAV(&buf); !errors.Is(err, ErrUnsupported) {
		t.Errorf("8-bit WAV err = %v, want ErrUnsupported", err)
	}
}

func TestRawRoundTrip(t *testing.T) {
	in := &Audio{SampleRate: 8000, Channels: 1, Samples: []float32{0, 0.5, -0.5, 0.999, -1}}
	var buf bytes.Buffer
	if err := WriteRaw(&buf, in); err != nil {
		t.Fatal(err)
	}
	buf.WriteByte(0x7f) // trailing half sample is dropped
	out, err := ReadRaw(&buf, 8000, 1)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(in, out, cmpopts.EquateApprox(0, 1.0/32768)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if _, err := ReadRaw(&buf, 0, 1); err == nil {
		t.Error("ReadRaw accepted a zero sample rate")
	}
}

func TestWriteFileReadFile(t *testing.T) {
	dir := t.TempDir()
	in := &Audio{SampleRate: 48000, Channels: 1, Samples: ramp(480, 1)}
	for _, name := range []string{"out.wav", "out.raw"} {
		path := filepath.Join(dir, name)
		if err := WriteFile(path, in); err != nil {
			t.Fatalf("WriteFile(%s): %v", name, err)
		}
		out, err := ReadFile(path, 48000, 1)
		if err != nil {
			t.Fatalf("ReadFile(%s): %v", name, err)
		}
		if out.Frames() != 480 || out.SampleRate != 48000 {
			t.Errorf("%s: %d frames at %d Hz", name, out.Frames(), out.SampleRate)
		}
	}
	if err := WriteFile(filepath.Join(dir, "out.mp3"), in); !errors.Is(err, ErrUnsupported) {
		t.Errorf("WriteFile(.mp3) err = %v, want ErrUnsupported", err)
	}
}

func TestReadFLAC(t *testing.T) {
	const (
		rate  = 16000
		block = 1024
		bps   = 16
	)
	left := make([]int32, 3*block)
	right := make([]int32, 3*block)
	for i := range left {
		left[i] = int32(i%512 - 256)
		right[i] = -left[i]
	}

	var buf bytes.Buffer
	info := &meta.StreamInfo{
		BlockSizeMin:  block,
		BlockSizeMax:  block,
		SampleRate:    rate,
		NChannels:     2,
		BitsPerSample: bps,
		NSamples:      uint64(len(left)),
	}
	enc, err := flac.NewEncoder(&buf, info)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	for off := 0; off < len(left); off += block {
		f := &frame.Frame{
			Header: frame.Header{
				BlockSize:     block,
				SampleRate:    rate,
				Channels:      frame.ChannelsLR,
				BitsPerSample: bps,
			},
			Subframes: []*frame.Subframe{
				{SubHeader: frame.SubHeader{Pred: frame.PredVerbatim}, Samples: left[off : off+block], NSamples: block},
				{SubHeader: frame.SubHeader{Pred: frame.PredVerbatim}, Samples: right[off : off+block], NSamples: block},
			},
		}
		if err := enc.WriteFrame(f); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}

	a, err := ReadFLAC(&buf)
	if err != nil {
		t.Fatalf("ReadFLAC: %v", err)
	}
	if a.SampleRate != rate || a.Channels != 2 || a.Frames() != len(left) {
		t.Fatalf("got %d Hz, %d channels, %d frames", a.SampleRate, a.Channels, a.Frames())
	}
	for i := 0; i < len(left); i += 97 {
		if want := float32(left[i]) / 32768; a.Samples[2*i] != want {
			t.Fatalf("left[%d] = %v, want %v", i, a.Samples[2*i], want)
		}
		if want := float32(right[i]) / 32768; a.Samples[2*i+1] != want {
			t.Fatalf("right[%d] = %v, want %v", i, a.Samples[2*i+1], want)
		}
	}
}

func TestReadFLAC_NotFLAC(t *testing.T) {
	if _, err := ReadFLAC(bytes.NewReader([]byte("RIFF0000WAVE"))); err == nil {
		t.Error("ReadFLAC accepted a WAV header")
	}
}

func TestReadMP3_NotMP3(t *testing.T) {
	if _, err := ReadMP3(bytes.NewReader(make([]byte, 64))); err == nil {
		t.Error("ReadMP3 accepted silence bytes")
	}
}

func TestResample(t *testing.T) {
	in := &Audio{SampleRate: 8000, Channels: 2, Samples: []float32{0, 0, 1, -1, 2, -2, 3, -3}}
	up := Resample(in, 16000)
	want := []float32{0, 0, 0.5, -0.5, 1, -1, 1.5, -1.5, 2, -2, 2.5, -2.5, 3, -3, 3, -3}
	if diff := cmp.Diff(want, up.Samples); diff != "" {
		t.Errorf("upsample (-want +got):\n%s", diff)
	}

	tone := &Audio{SampleRate: 44100, Channels: 1, Samples: ramp(4410, 1)}
	if got := Resample(tone, 48000).Frames(); got != 4800 {
		t.Errorf("44.1k -> 48k: %d frames, want 4800", got)
	}
	if same := Resample(tone, 44100); same.Frames() != 4410 {
		t.Errorf("identity resample changed length to %d", same.Frames())
	}
}

func TestRemix(t *testing.T) {
	stereo := &Audio{SampleRate: 8000, Channels: 2, Samples: []float32{1, 0, 0.5, 0.5}}
	if diff := cmp.Diff([]float32{0.5, 0.5}, Remix(stereo, 1).Samples); diff != "" {
		t.Errorf("downmix (-want +got):\n%s", diff)
	}
	mono := &Audio{SampleRate: 8000, Channels: 1, Samples: []float32{0.25, -1}}
	if diff := cmp.Diff([]float32{0.25, 0.25, -1, -1}, Remix(mono, 2).Samples); diff != "" {
		t.Errorf("upmix (-want +got):\n%s", diff)
	}
}
