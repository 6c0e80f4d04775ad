// stream.go implements streaming io.Reader and io.Writer wrappers for Opus encoding/decoding.

package opuscore

import (
	"encoding/binary"
	"io"
	"math"
)

// Streaming API
//
// The Reader and Writer types provide io.Reader and io.Writer interfaces
// over a PacketSource or PacketSink. They handle frame boundaries
// internally. Packet transport and containers are left to the caller.
//
// # Streaming Decode
//
//	reader, err := opuscore.NewReader(48000, 2, source, opuscore.FormatFloat32LE)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	io.Copy(audioOutput, reader)
//
// # Streaming Encode
//
//	writer, err := opuscore.NewWriter(48000, 2, sink, opuscore.FormatInt16LE, opuscore.ApplicationAudio)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	io.Copy(writer, audioInput)
//	writer.Flush()
//
// Samples are interleaved for stereo: [L0, R0, L1, R1, ...]

// SampleFormat specifies the PCM sample format for streaming.
type SampleFormat int

const (
	// FormatFloat32LE is 32-bit float, little-endian (4 bytes per sample).
	FormatFloat32LE SampleFormat = iota
	// FormatInt16LE is 16-bit signed integer, little-endian (2 bytes per sample).
	FormatInt16LE
)

// BytesPerSample returns the number of bytes per sample for the format.
func (f SampleFormat) BytesPerSample() int {
	if f == FormatInt16LE {
		return 2
	}
	return 4
}

// PacketSource provides Opus packets for streaming decode.
// Implementations should return io.EOF when no more packets are available.
type PacketSource interface {
	// NextPacket returns the next Opus packet, or a nil packet for a lost
	// one. Returns io.EOF when the stream ends.
	NextPacket() ([]byte, error)
}

// PacketSink receives encoded Opus packets from streaming encode.
type PacketSink interface {
	// WritePacket writes an encoded Opus packet. The sink must copy the
	// packet if it keeps it.
	WritePacket(packet []byte) (int, error)
}

// Reader decodes an Opus stream, implementing io.Reader.
// Output is PCM samples in the configured format.
type Reader struct {
	dec    *Decoder
	source PacketSource
	format SampleFormat

	byteBuf []byte
	offset  int
	eof     bool
}

// NewReader creates a streaming decoder writing PCM in format.
func NewReader(sampleRate, channels int, source PacketSource, format SampleFormat, opts ...DecoderOption) (*Reader, error) {
	dec, err := NewDecoder(sampleRate, channels, opts...)
	if err != nil {
		return nil, err
	}
	return &Reader{dec: dec, source: source, format: format}, nil
}

// Read implements io.Reader, reading decoded PCM bytes.
//
// A packet the decoder rejects is reported once; the next Read continues
// with the following packet.
func (r *Reader) Read(p []byte) (int, error) {
	for r.offset >= len(r.byteBuf) {
		if r.eof {
			return 0, io.EOF
		}
		packet, err := r.source.NextPacket()
		if err == io.EOF {
			r.eof = true
			return 0, io.EOF
		}
		if err != nil {
			return 0, err
		}
		if err := r.fill(packet); err != nil {
			return 0, err
		}
	}
	n := copy(p, r.byteBuf[r.offset:])
	r.offset += n
	return n, nil
}

func (r *Reader) fill(packet []byte) error {
	r.byteBuf = r.byteBuf[:0]
	r.offset = 0
	if r.format == FormatInt16LE {
		pcm, err := r.dec.DecodeInt16(packet)
		for _, s := range pcm {
			r.byteBuf = binary.LittleEndian.AppendUint16(r.byteBuf, uint16(s))
		}
		return err
	}
	pcm, err := r.dec.Decode(packet)
	for _, s := range pcm {
		r.byteBuf = binary.LittleEndian.AppendUint32(r.byteBuf, math.Float32bits(s))
	}
	return err
}

// Decoder returns the underlying decoder.
func (r *Reader) Decoder() *Decoder { return r.dec }

// SampleRate returns the sample rate in Hz.
func (r *Reader) SampleRate() int {
	return r.dec.SampleRate()
}

// Channels returns the number of audio channels (1 or 2).
func (r *Reader) Channels() int {
	return r.dec.Channels()
}

// Reset clears buffers and decoder state for a new stream.
func (r *Reader) Reset() {
	r.dec.Reset()
	r.byteBuf = r.byteBuf[:0]
	r.offset = 0
	r.eof = false
}

// Writer encodes PCM samples to an Opus stream, implementing io.Writer.
// Input is PCM samples in the configured format.
//
// The Writer buffers input until a complete frame is accumulated, then
// encodes it and sends the packet to the sink.
type Writer struct {
	enc    *Encoder
	sink   PacketSink
	format SampleFormat

	frameSize  int
	frameBytes int
	sampleBuf  []byte
	pcm        []float32
}

// NewWriter creates a streaming encoder reading PCM in format. Frames are
// 20 ms until SetFrameSize is called.
func NewWriter(sampleRate, channels int, sink PacketSink, format SampleFormat, application Application, opts ...EncoderOption) (*Writer, error) {
	enc, err := NewEncoder(sampleRate, channels, application, opts...)
	if err != nil {
		return nil, err
	}
	w := &Writer{enc: enc, sink: sink, format: format}
	if err := w.SetFrameSize(sampleRate / 50); err != nil {
		return nil, err
	}
	return w, nil
}

// SetFrameSize sets the samples per channel of each packet at the
// writer's sample rate. Buffered input is kept.
func (w *Writer) SetFrameSize(frameSize int) error {
	if err := w.enc.checkInput(frameSize*w.enc.channels, frameSize); err != nil {
		return err
	}
	w.frameSize = frameSize
	w.frameBytes = frameSize * w.enc.channels * w.format.BytesPerSample()
	return nil
}

// Write implements io.Writer, encoding PCM bytes to Opus packets.
//
// On an encode or sink error the returned count covers only the bytes of p
// that went into packets already sent; the rest of p is not retained.
func (w *Writer) Write(p []byte) (int, error) {
	buffered := len(w.sampleBuf)
	w.sampleBuf = append(w.sampleBuf, p...)
	consumed := 0
	for len(w.sampleBuf)-consumed >= w.frameBytes {
		if err := w.encodeFrame(w.sampleBuf[consumed : consumed+w.frameBytes]); err != nil {
			w.sampleBuf = append(w.sampleBuf[:0], w.sampleBuf[consumed:max(consumed, buffered)]...)
			return max(0, consumed-buffered), err
		}
		consumed += w.frameBytes
	}
	w.sampleBuf = append(w.sampleBuf[:0], w.sampleBuf[consumed:]...)
	return len(p), nil
}

func (w *Writer) encodeFrame(data []byte) error {
	w.pcm = w.pcm[:0]
	if w.format == FormatInt16LE {
		for i := 0; i+1 < len(data); i += 2 {
			w.pcm = append(w.pcm, float32(int16(binary.LittleEndian.Uint16(data[i:])))/32768.0)
		}
	} else {
		for i := 0; i+3 < len(data); i += 4 {
			w.pcm = append(w.pcm, math.Float32frombits(binary.LittleEndian.Uint32(data[i:])))
		}
	}
	packet, err := w.enc.Encode(w.pcm, w.frameSize)
	if err != nil {
		return err
	}
	_, err = w.sink.WritePacket(packet)
	return err
}

// Flush encodes any buffered samples, zero-padded to a complete frame.
// Call Flush before closing the stream to ensure all audio is encoded.
func (w *Writer) Flush() error {
	if len(w.sampleBuf) == 0 {
		return nil
	}
	padded := make([]byte, w.frameBytes)
	copy(padded, w.sampleBuf)
	if err := w.encodeFrame(padded); err != nil {
		return err
	}
	w.sampleBuf = w.sampleBuf[:0]
	return nil
}

// Encoder returns the underlying encoder for tuning.
func (w *Writer) Encoder() *Encoder { return w.enc }

// SetBitrate sets the target bitrate in bits per second.
func (w *Writer) SetBitrate(bitrate int) error {
	return w.enc.SetBitrate(bitrate)
}

// SetComplexity sets the encoder's computational complexity (0-10).
func (w *Writer) SetComplexity(complexity int) error {
	return w.enc.SetComplexity(complexity)
}

// Reset clears buffers and encoder state for a new stream.
func (w *Writer) Reset() {
	w.enc.Reset()
	w.sampleBuf = w.sampleBuf[:0]
}

// SampleRate returns the sample rate in Hz.
func (w *Writer) SampleRate() int {
	return w.enc.SampleRate()
}

// Channels returns the number of audio channels (1 or 2).
func (w *Writer) Channels() int {
	return w.enc.Channels()
}
