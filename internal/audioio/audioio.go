// Package audioio reads and writes the host audio files the opuscore
// command feeds through the codec: WAV, headerless s16le, MP3 and FLAC.
// Samples are float32 in [-1, 1], interleaved.
package audioio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"
)

// Format identifies a file format.
type Format int

const (
	FormatRaw Format = iota // headerless signed 16-bit little-endian
	FormatWAV
	FormatMP3
	FormatFLAC
)

func (f Format) String() string {
	switch f {
	case FormatRaw:
		return "raw"
	case FormatWAV:
		return "wav"
	case FormatMP3:
		return "mp3"
	case FormatFLAC:
		return "flac"
	}
	return "unknown"
}

// ErrUnsupported is returned for file formats or encodings the package
// cannot handle.
var ErrUnsupported = errors.New("audioio: unsupported format")

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".raw", ".pcm", ".s16", ".s16le":
		return FormatRaw, nil
	case ".wav", ".wave":
		return FormatWAV, nil
	case ".mp3":
		return FormatMP3, nil
	case ".flac":
		return FormatFLAC, nil
	}
	return 0, fmt.Errorf("%w: extension %q", ErrUnsupported, filepath.Ext(path))
}

// Audio is a decoded clip.
type Audio struct {
	SampleRate int
	Channels   int
	Samples    []float32
}

// Frames returns the number of samples per channel.
func (a *Audio) Frames() int {
	if a.Channels == 0 {
		return 0
	}
	return len(a.Samples) / a.Channels
}

// ReadFile decodes the file at path. rawRate and rawChannels describe
// headerless input and are ignored for the other formats.
func ReadFile(path string, rawRate, rawChannels int) (*Audio, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audioio: open %q: %w", path, err)
	}
	defer f.Close()

	var a *Audio
	switch format {
	case FormatRaw:
		a, err = ReadRaw(f, rawRate, rawChannels)
	case FormatWAV:
		a, err = ReadWAV(f)
	case FormatMP3:
		a, err = ReadMP3(f)
	case FormatFLAC:
		a, err = ReadFLAC(f)
	}
	if err != nil {
		return nil, fmt.Errorf("audioio: read %q: %w", path, err)
	}
	return a, nil
}

// WriteFile encodes a as WAV or raw PCM, chosen by the extension of path.
func WriteFile(path string, a *Audio) (err error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	if format != FormatWAV && format != FormatRaw {
		return fmt.Errorf("%w: cannot write %v", ErrUnsupported, format)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("audioio: create %q: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if format == FormatWAV {
		return WriteWAV(f, a)
	}
	return WriteRaw(f, a)
}

// ReadRaw decodes headerless s16le samples.
func ReadRaw(r io.Reader, sampleRate, channels int) (*Audio, error) {
	if sampleRate <= 0 || channels < 1 {
		return nil, fmt.Errorf("audioio: raw input needs a sample rate and channel count")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	n := len(data) / 2 / channels * channels
	a := &Audio{SampleRate: sampleRate, Channels: channels, Samples: make([]float32, n)}
	for i := range a.Samples {
		a.Samples[i] = float32(int16(binary.LittleEndian.Uint16(data[2*i:]))) / 32768
	}
	return a, nil
}

// WriteRaw encodes a as s16le.
func WriteRaw(w io.Writer, a *Audio) error {
	buf := make([]byte, 2*len(a.Samples))
	for i, v := range a.Samples {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(toInt16(v)))
	}
	_, err := w.Write(buf)
	return err
}

func toInt16(v float32) int16 {
	s := float64(v) * 32768
	switch {
	case s >= 32767:
		return 32767
	case s <= -32768:
		return -32768
	case s < 0:
		return int16(s - 0.5)
	default:
		return int16(s + 0.5)
	}
}

// ReadMP3 decodes an MP3 stream. The decoder always produces stereo.
func ReadMP3(r io.Reader) (*Audio, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}
	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}
	a := &Audio{SampleRate: dec.SampleRate(), Channels: 2, Samples: make([]float32, len(pcm)/4*2)}
	for i := range a.Samples {
		a.Samples[i] = float32(int16(binary.LittleEndian.Uint16(pcm[2*i:]))) / 32768
	}
	return a, nil
}

// ReadFLAC decodes a FLAC stream. Channels beyond the second are dropped.
func ReadFLAC(r io.Reader) (*Audio, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, fmt.Errorf("flac: %w", err)
	}
	info := stream.Info
	channels := min(int(info.NChannels), 2)
	scale := float32(int64(1) << (info.BitsPerSample - 1))
	a := &Audio{SampleRate: int(info.SampleRate), Channels: channels}
	if info.NSamples > 0 {
		a.Samples = make([]float32, 0, int(info.NSamples)*channels)
	}
	for {
		f, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("flac: %w", err)
		}
		for i := 0; i < int(f.BlockSize); i++ {
			for ch := 0; ch < channels; ch++ {
				a.Samples = append(a.Samples, float32(f.Subframes[ch].Samples[i])/scale)
			}
		}
	}
	return a, nil
}
