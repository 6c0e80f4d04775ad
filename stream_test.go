// stream_test.go contains tests for the streaming io.Reader/io.Writer API.

package opuscore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/thesyncim/opuscore/internal/testsignal"
)

// slicePacketSource implements PacketSource for testing.
type slicePacketSource struct {
	packets [][]byte
	index   int
}

func (s *slicePacketSource) NextPacket() ([]byte, error) {
	if s.index >= len(s.packets) {
		return nil, io.EOF
	}
	packet := s.packets[s.index]
	s.index++
	return packet, nil
}

// slicePacketSink implements PacketSink for testing.
type slicePacketSink struct {
	packets [][]byte
	failAt  int // fail the write of this packet index when > 0
}

var errSinkFull = errors.New("sink full")

func (s *slicePacketSink) WritePacket(packet []byte) (int, error) {
	if s.failAt > 0 && len(s.packets) == s.failAt {
		return 0, errSinkFull
	}
	s.packets = append(s.packets, bytes.Clone(packet))
	return len(packet), nil
}

func float32Bytes(pcm []float32) []byte {
	out := make([]byte, 0, 4*len(pcm))
	for _, v := range pcm {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
	}
	return out
}

func int16Bytes(pcm []float32) []byte {
	out := make([]byte, 0, 2*len(pcm))
	for _, v := range pcm {
		out = binary.LittleEndian.AppendUint16(out, uint16(float32ToInt16(v)))
	}
	return out
}

func TestSampleFormat_BytesPerSample(t *testing.T) {
	if got := FormatFloat32LE.BytesPerSample(); got != 4 {
		t.Errorf("FormatFloat32LE.BytesPerSample() = %d, want 4", got)
	}
	if got := FormatInt16LE.BytesPerSample(); got != 2 {
		t.Errorf("FormatInt16LE.BytesPerSample() = %d, want 2", got)
	}
}

func TestNewReader_InvalidParams(t *testing.T) {
	if _, err := NewReader(44100, 2, &slicePacketSource{}, FormatFloat32LE); !errors.Is(err, ErrInvalidSampleRate) {
		t.Errorf("NewReader(44100) err = %v", err)
	}
	if _, err := NewWriter(48000, 3, &slicePacketSink{}, FormatFloat32LE, ApplicationAudio); !errors.Is(err, ErrInvalidChannels) {
		t.Errorf("NewWriter(3 channels) err = %v", err)
	}
}

func TestWriterReaderRoundTrip(t *testing.T) {
	for _, format := range []SampleFormat{FormatFloat32LE, FormatInt16LE} {
		sink := &slicePacketSink{}
		w, err := NewWriter(48000, 2, sink, format, ApplicationAudio, WithBitrate(96000))
		if err != nil {
			t.Fatal(err)
		}
		pcm := testsignal.MustGenerate(testsignal.AMMultisine, 48000, 5*960+300, 2)
		var raw []byte
		if format == FormatInt16LE {
			raw = int16Bytes(pcm)
		} else {
			raw = float32Bytes(pcm)
		}

		// Odd write sizes cross frame boundaries.
		for off := 0; off < len(raw); off += 1001 {
			chunk := raw[off:min(off+1001, len(raw))]
			n, err := w.Write(chunk)
			if err != nil || n != len(chunk) {
				t.Fatalf("Write = %d, %v; want %d", n, err, len(chunk))
			}
		}
		if len(sink.packets) != 5 {
			t.Fatalf("%d packets before Flush, want 5", len(sink.packets))
		}
		if err := w.Flush(); err != nil {
			t.Fatal(err)
		}
		if len(sink.packets) != 6 {
			t.Fatalf("%d packets after Flush, want 6", len(sink.packets))
		}

		r, err := NewReader(48000, 2, &slicePacketSource{packets: sink.packets}, format)
		if err != nil {
			t.Fatal(err)
		}
		out, err := io.ReadAll(r)
		if err != nil {
			t.Fatal(err)
		}
		if want := 6 * 960 * 2 * format.BytesPerSample(); len(out) != want {
			t.Errorf("read %d bytes, want %d", len(out), want)
		}
		if _, err := r.Read(make([]byte, 16)); err != io.EOF {
			t.Errorf("Read after end = %v, want io.EOF", err)
		}
	}
}

func TestReader_SmallReads(t *testing.T) {
	enc := newTestEncoder(t, 48000, 1, ApplicationAudio)
	packets := encodeAll(t, enc, testsignal.MustGenerate(testsignal.Tone, 48000, 2*960, 1), 960)

	r, err := NewReader(48000, 1, &slicePacketSource{packets: packets}, FormatFloat32LE)
	if err != nil {
		t.Fatal(err)
	}
	var got []byte
	buf := make([]byte, 7)
	for {
		n, err := r.Read(buf)
		got = append(got, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
	}
	want := float32Bytes(decodeAll(t, newTestDecoder(t, 48000, 1), packets))
	if !bytes.Equal(got, want) {
		t.Errorf("small reads produced %d bytes differing from direct decode (%d bytes)", len(got), len(want))
	}
}

func TestReader_LostAndBadPackets(t *testing.T) {
	enc := newTestEncoder(t, 48000, 1, ApplicationAudio)
	packets := encodeAll(t, enc, testsignal.MustGenerate(testsignal.Tone, 48000, 3*960, 1), 960)
	stream := [][]byte{packets[0], nil, {0x01, 0x01}, packets[1], packets[2]}

	r, err := NewReader(48000, 1, &slicePacketSource{packets: stream}, FormatInt16LE)
	if err != nil {
		t.Fatal(err)
	}
	var total int
	var sawMalformed bool
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		total += n
		if err == io.EOF {
			break
		}
		if errors.Is(err, ErrMalformedPacket) {
			sawMalformed = true
			continue
		}
		if err != nil {
			t.Fatal(err)
		}
	}
	if !sawMalformed {
		t.Error("malformed packet was not reported")
	}
	// Three good packets plus one concealed loss.
	if want := 4 * 960 * 2; total != want {
		t.Errorf("read %d bytes, want %d", total, want)
	}
}

func TestWriter_SinkError(t *testing.T) {
	sink := &slicePacketSink{failAt: 1}
	w, err := NewWriter(48000, 1, sink, FormatFloat32LE, ApplicationAudio)
	if err != nil {
		t.Fatal(err)
	}
	raw := float32Bytes(testsignal.MustGenerate(testsignal.Tone, 48000, 3*960, 1))
	n, err := w.Write(raw)
	if !errors.Is(err, errSinkFull) {
		t.Fatalf("Write err = %v, want sink error", err)
	}
	if frameBytes := 960 * 4; n != frameBytes {
		t.Errorf("Write reported %d bytes consumed, want %d", n, frameBytes)
	}
	if len(sink.packets) != 1 {
		t.Errorf("sink holds %d packets, want 1", len(sink.packets))
	}
}

func TestWriter_SetFrameSize(t *testing.T) {
	sink := &slicePacketSink{}
	w, err := NewWriter(16000, 1, sink, FormatInt16LE, ApplicationVoIP)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.SetFrameSize(100); !errors.Is(err, ErrInvalidFrameSize) {
		t.Errorf("SetFrameSize(100) = %v", err)
	}
	if err := w.SetFrameSize(640); err != nil {
		t.Fatalf("SetFrameSize(640): %v", err)
	}
	raw := int16Bytes(testsignal.MustGenerate(testsignal.SpeechLike, 16000, 640, 1))
	if _, err := w.Write(raw); err != nil {
		t.Fatal(err)
	}
	if len(sink.packets) != 1 {
		t.Fatalf("%d packets, want 1", len(sink.packets))
	}
	if d, err := PacketDuration(sink.packets[0]); err != nil || d != 1920 {
		t.Errorf("PacketDuration = %d, %v; want 1920", d, err)
	}
}
