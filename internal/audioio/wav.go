package audioio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

const (
	wavPCM   = 1
	wavFloat = 3
)

type wavFormat struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// ReadWAV decodes a RIFF WAVE stream holding 16-bit PCM or 32-bit float
// samples.
func ReadWAV(r io.Reader) (*Audio, error) {
	var hdr [12]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("wav: header: %w", err)
	}
	if string(hdr[0:4]) != "RIFF" || string(hdr[8:12]) != "WAVE" {
		return nil, fmt.Errorf("wav: not a RIFF WAVE stream")
	}

	var (
		format  wavFormat
		haveFmt bool
	)
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			return nil, fmt.Errorf("wav: missing data chunk: %w", err)
		}
		id := string(chunk[0:4])
		size := int64(binary.LittleEndian.Uint32(chunk[4:]))
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("wav: fmt chunk of %d bytes", size)
			}
			if err := binary.Read(r, binary.LittleEndian, &format); err != nil {
				return nil, fmt.Errorf("wav: fmt chunk: %w", err)
			}
			if err := skip(r, size-16+size&1); err != nil {
				return nil, err
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, fmt.Errorf("wav: data chunk before fmt chunk")
			}
			data, err := io.ReadAll(io.LimitReader(r, size))
			if err != nil {
				return nil, fmt.Errorf("wav: data chunk: %w", err)
			}
			return decodeWAVData(format, data)
		default:
			if err := skip(r, size+size&1); err != nil {
				return nil, err
			}
		}
	}
}

func skip(r io.Reader, n int64) error {
	if _, err := io.CopyN(io.Discard, r, n); err != nil {
		return fmt.Errorf("wav: truncated chunk: %w", err)
	}
	return nil
}

func decodeWAVData(f wavFormat, data []byte) (*Audio, error) {
	if f.Channels == 0 || f.SampleRate == 0 {
		return nil, fmt.Errorf("wav: %d channels at %d Hz", f.Channels, f.SampleRate)
	}
	a := &Audio{SampleRate: int(f.SampleRate), Channels: int(f.Channels)}
	switch {
	case f.AudioFormat == wavPCM && f.BitsPerSample == 16:
		n := len(data) / 2 / a.Channels * a.Channels
		a.Samples = make([]float32, n)
		for i := range a.Samples {
			a.Samples[i] = float32(int16(binary.LittleEndian.Uint16(data[2*i:]))) / 32768
		}
	case f.AudioFormat == wavFloat && f.BitsPerSample == 32:
		n := len(data) / 4 / a.Channels * a.Channels
		a.Samples = make([]float32, n)
		for i := range a.Samples {
			a.Samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
		}
	default:
		return nil, fmt.Errorf("%w: wav format %d with %d bits", ErrUnsupported, f.AudioFormat, f.BitsPerSample)
	}
	return a, nil
}

// WriteWAV encodes a as a 16-bit PCM WAVE stream.
func WriteWAV(w io.Writer, a *Audio) error {
	dataSize := uint32(2 * len(a.Samples))
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, 36+dataSize)
	buf.WriteString("WAVEfmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, wavFormat{
		AudioFormat:   wavPCM,
		Channels:      uint16(a.Channels),
		SampleRate:    uint32(a.SampleRate),
		ByteRate:      uint32(a.SampleRate * a.Channels * 2),
		BlockAlign:    uint16(a.Channels * 2),
		BitsPerSample: 16,
	})
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataSize)
	if _, err := w.Write(buf.Bytes()); err != nil {
		return err
	}
	return WriteRaw(w, a)
}
