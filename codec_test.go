package opuscore

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/thesyncim/opuscore/internal/testsignal"
)

func newTestEncoder(t *testing.T, sampleRate, channels int, app Application, opts ...EncoderOption) *Encoder {
	t.Helper()
	enc, err := NewEncoder(sampleRate, channels, app, opts...)
	if err != nil {
		t.Fatalf("NewEncoder(%d, %d, %v): %v", sampleRate, channels, app, err)
	}
	return enc
}

func newTestDecoder(t *testing.T, sampleRate, channels int, opts ...DecoderOption) *Decoder {
	t.Helper()
	dec, err := NewDecoder(sampleRate, channels, opts...)
	if err != nil {
		t.Fatalf("NewDecoder(%d, %d): %v", sampleRate, channels, err)
	}
	return dec
}

// encodeAll splits pcm into frames of frameSize samples per channel and
// returns one packet per frame.
func encodeAll(t *testing.T, enc *Encoder, pcm []float32, frameSize int) [][]byte {
	t.Helper()
	step := frameSize * enc.Channels()
	var packets [][]byte
	for off := 0; off+step <= len(pcm); off += step {
		p, err := enc.Encode(pcm[off:off+step], frameSize)
		if err != nil {
			t.Fatalf("Encode at sample %d: %v", off/enc.Channels(), err)
		}
		if len(p) > MaxPacketBytes {
			t.Fatalf("packet of %d bytes exceeds %d", len(p), MaxPacketBytes)
		}
		packets = append(packets, p)
	}
	return packets
}

func decodeAll(t *testing.T, dec *Decoder, packets [][]byte) []float32 {
	t.Helper()
	var out []float32
	for i, p := range packets {
		pcm, err := dec.Decode(p)
		if err != nil {
			t.Fatalf("Decode packet %d: %v", i, err)
		}
		out = append(out, pcm...)
	}
	return out
}

// steadySNR measures the aligned SNR after dropping the first skip samples
// per channel of both signals.
func steadySNR(ref, got []float32, channels, skip int) float64 {
	snr, _ := testsignal.AlignedSNR(ref[skip*channels:], got[skip*channels:], channels, 400)
	return snr
}

func TestNewEncoder_InvalidConfiguration(t *testing.T) {
	tests := []struct {
		name       string
		sampleRate int
		channels   int
		app        Application
		want       error
	}{
		{"rate_44100", 44100, 1, ApplicationAudio, ErrInvalidSampleRate},
		{"rate_0", 0, 1, ApplicationAudio, ErrInvalidSampleRate},
		{"channels_0", 48000, 0, ApplicationAudio, ErrInvalidChannels},
		{"channels_3", 48000, 3, ApplicationAudio, ErrInvalidChannels},
		{"application", 48000, 1, Application(7), ErrInvalidApplication},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := NewEncoder(tt.sampleRate, tt.channels, tt.app)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if !errors.Is(err, ErrInvalidConfiguration) {
				t.Errorf("err = %v does not wrap ErrInvalidConfiguration", err)
			}
			if enc != nil {
				t.Error("encoder returned alongside error")
			}
		})
	}
}

func TestNewDecoder_InvalidConfiguration(t *testing.T) {
	for _, tt := range []struct {
		sampleRate, channels int
		want                 error
	}{
		{22050, 1, ErrInvalidSampleRate},
		{48000, 0, ErrInvalidChannels},
		{16000, 3, ErrInvalidChannels},
	} {
		dec, err := NewDecoder(tt.sampleRate, tt.channels)
		if !errors.Is(err, tt.want) || !errors.Is(err, ErrInvalidConfiguration) {
			t.Errorf("NewDecoder(%d, %d) err = %v, want %v", tt.sampleRate, tt.channels, err, tt.want)
		}
		if dec != nil {
			t.Errorf("NewDecoder(%d, %d) returned a decoder", tt.sampleRate, tt.channels)
		}
	}
}

func TestEncoderSetterErrors(t *testing.T) {
	enc := newTestEncoder(t, 48000, 1, ApplicationAudio)
	if err := enc.SetBitrate(5000); !errors.Is(err, ErrInvalidBitrate) {
		t.Errorf("SetBitrate(5000) = %v", err)
	}
	if err := enc.SetBitrate(600000); !errors.Is(err, ErrInvalidBitrate) {
		t.Errorf("SetBitrate(600000) = %v", err)
	}
	if err := enc.SetBandwidth(Bandwidth(9)); !errors.Is(err, ErrInvalidBandwidth) {
		t.Errorf("SetBandwidth(9) = %v", err)
	}
	if err := enc.SetComplexity(11); !errors.Is(err, ErrInvalidComplexity) {
		t.Errorf("SetComplexity(11) = %v", err)
	}
	if err := enc.SetBitrate(96000); err != nil {
		t.Fatal(err)
	}
	if got := enc.Bitrate(); got != 96000 {
		t.Errorf("Bitrate() = %d, want 96000", got)
	}
	if err := enc.SetComplexity(3); err != nil {
		t.Fatal(err)
	}
	if got := enc.Complexity(); got != 3 {
		t.Errorf("Complexity() = %d, want 3", got)
	}
}

func TestEncodeInputErrors(t *testing.T) {
	enc := newTestEncoder(t, 48000, 2, ApplicationAudio)
	if _, err := enc.Encode(make([]float32, 2*500), 500); !errors.Is(err, ErrInvalidFrameSize) {
		t.Errorf("frame size 500: err = %v", err)
	}
	if _, err := enc.Encode(make([]float32, 960), 960); !errors.Is(err, ErrFrameTooShort) {
		t.Errorf("short stereo input: err = %v", err)
	}
	if _, err := enc.EncodeInt16(make([]int16, 100), 480); !errors.Is(err, ErrFrameTooShort) {
		t.Errorf("short int16 input: err = %v", err)
	}
	if _, _, ok := enc.Mode(); ok {
		t.Error("rejected input decided a mode")
	}

	// 10 ms at 16 kHz is 160 samples, not 480.
	narrow := newTestEncoder(t, 16000, 1, ApplicationVoIP)
	if _, err := narrow.Encode(make([]float32, 480), 480); !errors.Is(err, ErrInvalidFrameSize) {
		t.Errorf("480 samples at 16 kHz: err = %v", err)
	}
	if _, err := narrow.Encode(make([]float32, 160), 160); err != nil {
		t.Errorf("160 samples at 16 kHz: %v", err)
	}
}

func TestSilenceIsCompact(t *testing.T) {
	enc := newTestEncoder(t, 48000, 1, ApplicationAudio, WithBitrate(64000))
	dec := newTestDecoder(t, 48000, 1)

	p, err := enc.Encode(make([]float32, 960), 960)
	if err != nil {
		t.Fatal(err)
	}
	if len(p) > 3 {
		t.Errorf("silent 20 ms packet is %d bytes, want <= 3", len(p))
	}
	pcm, err := dec.Decode(p)
	if err != nil {
		t.Fatal(err)
	}
	if len(pcm) != 960 {
		t.Fatalf("decoded %d samples, want 960", len(pcm))
	}
	if peak := testsignal.Peak(pcm); peak > 1e-3 {
		t.Errorf("silent packet decodes with peak %g", peak)
	}
}

func TestRoundTripQuality(t *testing.T) {
	tests := []struct {
		name       string
		sampleRate int
		channels   int
		app        Application
		mode       ModePreference
		bandwidth  Bandwidth
		bitrate    int
		kind       testsignal.Kind
		wantMode   Mode
		minSNR     float64
	}{
		{"celt_mono_128k", 48000, 1, ApplicationAudio, PreferCELT, BandwidthAuto, 128000, testsignal.Tone, ModeCELT, 33},
		{"celt_mono_256k", 48000, 1, ApplicationAudio, PreferCELT, BandwidthAuto, 256000, testsignal.Tone, ModeCELT, 43},
		{"celt_multisine_128k", 48000, 1, ApplicationAudio, PreferCELT, BandwidthAuto, 128000, testsignal.AMMultisine, ModeCELT, 10},
		{"celt_stereo_128k", 48000, 2, ApplicationAudio, PreferCELT, BandwidthAuto, 128000, testsignal.Tone, ModeCELT, 20},
		{"silk_16k", 16000, 1, ApplicationVoIP, PreferSILK, BandwidthAuto, 32000, testsignal.Tone, ModeSILK, 40},
		{"hybrid_swb_48k", 48000, 1, ApplicationVoIP, PreferHybrid, BandwidthSuperwideband, 48000, testsignal.Tone, ModeHybrid, 34},
		{"hybrid_swb_24k", 48000, 1, ApplicationVoIP, PreferHybrid, BandwidthSuperwideband, 24000, testsignal.Tone, ModeHybrid, 15},
		{"hybrid_swb_16k", 48000, 1, ApplicationVoIP, PreferHybrid, BandwidthSuperwideband, 16000, testsignal.Tone, ModeHybrid, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frameSize := tt.sampleRate / 50
			enc := newTestEncoder(t, tt.sampleRate, tt.channels, tt.app, WithBitrate(tt.bitrate))
			enc.SetMode(tt.mode)
			if err := enc.SetBandwidth(tt.bandwidth); err != nil {
				t.Fatal(err)
			}
			dec := newTestDecoder(t, tt.sampleRate, tt.channels)

			in := testsignal.MustGenerate(tt.kind, tt.sampleRate, 25*frameSize, tt.channels)
			packets := encodeAll(t, enc, in, frameSize)
			for i, p := range packets {
				toc := ParseTOC(p[0])
				if toc.Mode != tt.wantMode {
					t.Fatalf("packet %d mode = %v, want %v", i, toc.Mode, tt.wantMode)
				}
				if toc.Stereo != (tt.channels == 2) {
					t.Fatalf("packet %d stereo = %v", i, toc.Stereo)
				}
			}
			out := decodeAll(t, dec, packets)
			if len(out) != len(in) {
				t.Fatalf("decoded %d samples, want %d", len(out), len(in))
			}
			if snr := steadySNR(in, out, tt.channels, 5*frameSize); snr < tt.minSNR {
				t.Errorf("SNR = %.1f dB, want >= %.1f", snr, tt.minSNR)
			}
		})
	}
}

func TestHybridFitsAtLowBitrates(t *testing.T) {
	kinds := []testsignal.Kind{testsignal.Tone, testsignal.SpeechLike, testsignal.ChirpSweep, testsignal.AMMultisine}
	for _, bitrate := range []int{16000, 24000, 32000} {
		for _, frameSize := range []int{480, 960} {
			for _, kind := range kinds {
				enc := newTestEncoder(t, 48000, 1, ApplicationVoIP, WithBitrate(bitrate))
				enc.SetMode(PreferHybrid)
				if err := enc.SetBandwidth(BandwidthSuperwideband); err != nil {
					t.Fatal(err)
				}
				dec := newTestDecoder(t, 48000, 1)
				in := testsignal.MustGenerate(kind, 48000, 50*frameSize, 1)
				packets := encodeAll(t, enc, in, frameSize)
				for i, p := range packets {
					if m := ParseTOC(p[0]).Mode; m != ModeHybrid {
						t.Fatalf("%s %d bit/s %d: packet %d mode = %v", kind, bitrate, frameSize, i, m)
					}
				}
				if out := decodeAll(t, dec, packets); len(out) != len(in) {
					t.Errorf("%s %d bit/s %d: decoded %d samples, want %d", kind, bitrate, frameSize, len(out), len(in))
				}
			}
		}
	}
}

func TestVoiceAt24kChoosesHybrid(t *testing.T) {
	for _, frameSize := range []int{480, 960} {
		enc := newTestEncoder(t, 48000, 1, ApplicationVoIP, WithBitrate(24000), WithSignal(SignalVoice))
		in := testsignal.MustGenerate(testsignal.Tone, 48000, 50*frameSize, 1)
		packets := encodeAll(t, enc, in, frameSize)
		if mode, bw, ok := enc.Mode(); !ok || mode != ModeHybrid || bw != BandwidthSuperwideband {
			t.Fatalf("%d: Mode() = %v, %v, %v; want hybrid SWB", frameSize, mode, bw, ok)
		}
		for i, p := range packets {
			if m := ParseTOC(p[0]).Mode; m != ModeHybrid {
				t.Fatalf("%d: packet %d mode = %v", frameSize, i, m)
			}
		}
		out := decodeAll(t, newTestDecoder(t, 48000, 1), packets)
		if len(out) != len(in) {
			t.Fatalf("%d: decoded %d samples, want %d", frameSize, len(out), len(in))
		}
		if snr := steadySNR(in, out, 1, 10*frameSize); snr < 15 {
			t.Errorf("%d: SNR = %.1f dB, want >= 15", frameSize, snr)
		}
	}
}

func TestHigherBitrateIsBetter(t *testing.T) {
	in := testsignal.MustGenerate(testsignal.AMMultisine, 48000, 25*960, 1)
	snrAt := func(bitrate int) float64 {
		enc := newTestEncoder(t, 48000, 1, ApplicationAudio, WithBitrate(bitrate))
		enc.SetMode(PreferCELT)
		out := decodeAll(t, newTestDecoder(t, 48000, 1), encodeAll(t, enc, in, 960))
		return steadySNR(in, out, 1, 5*960)
	}
	lo, hi := snrAt(16000), snrAt(128000)
	if hi <= lo {
		t.Errorf("SNR at 128 kbit/s (%.1f dB) not above 16 kbit/s (%.1f dB)", hi, lo)
	}
}

func TestPacketsNeverExceedLimit(t *testing.T) {
	tests := []struct {
		name      string
		channels  int
		app       Application
		mode      ModePreference
		frameSize int
	}{
		{"celt_stereo_120ms", 2, ApplicationAudio, PreferCELT, 5760},
		{"celt_stereo_20ms", 2, ApplicationAudio, PreferCELT, 960},
		{"celt_mono_2.5ms", 1, ApplicationLowDelay, PreferAuto, 120},
		{"silk_stereo_60ms", 2, ApplicationVoIP, PreferSILK, 2880},
		{"hybrid_stereo_20ms", 2, ApplicationVoIP, PreferHybrid, 960},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := newTestEncoder(t, 48000, tt.channels, tt.app, WithBitrate(510000))
			enc.SetMode(tt.mode)
			dec := newTestDecoder(t, 48000, tt.channels)
			in := testsignal.MustGenerate(testsignal.ChirpSweep, 48000, 2*tt.frameSize, tt.channels)
			for _, p := range encodeAll(t, enc, in, tt.frameSize) {
				n, err := PacketDuration(p)
				if err != nil {
					t.Fatal(err)
				}
				if n != tt.frameSize {
					t.Errorf("packet duration %d, want %d", n, tt.frameSize)
				}
				pcm, err := dec.Decode(p)
				if err != nil {
					t.Fatalf("Decode: %v", err)
				}
				if len(pcm) != tt.frameSize*tt.channels {
					t.Errorf("decoded %d samples, want %d", len(pcm), tt.frameSize*tt.channels)
				}
			}
		})
	}
}

func TestResetMatchesFreshState(t *testing.T) {
	for _, mode := range []ModePreference{PreferCELT, PreferSILK, PreferHybrid} {
		enc := newTestEncoder(t, 48000, 1, ApplicationVoIP, WithBitrate(40000))
		enc.SetMode(mode)
		warm := testsignal.MustGenerate(testsignal.ChirpSweep, 48000, 8*960, 1)
		in := testsignal.MustGenerate(testsignal.SpeechLike, 48000, 8*960, 1)

		fresh := encodeAll(t, enc, in, 960)
		encodeAll(t, enc, warm, 960)
		enc.Reset()
		enc.Reset()
		again := encodeAll(t, enc, in, 960)
		if diff := cmp.Diff(fresh, again); diff != "" {
			t.Errorf("%v: packets after Reset differ (-fresh +reset):\n%s", mode, diff)
		}

		dec := newTestDecoder(t, 48000, 1)
		want := decodeAll(t, dec, fresh)
		decodeAll(t, dec, encodeAll(t, newTestEncoder(t, 48000, 1, ApplicationAudio), warm, 960))
		dec.Reset()
		dec.Reset()
		if diff := cmp.Diff(want, decodeAll(t, dec, fresh)); diff != "" {
			t.Errorf("%v: PCM after decoder Reset differs:\n%s", mode, diff)
		}
	}
}

func TestModeSwitchIsolatesCores(t *testing.T) {
	silkEnc := newTestEncoder(t, 48000, 1, ApplicationVoIP, WithBitrate(20000))
	silkEnc.SetMode(PreferSILK)
	speech := encodeAll(t, silkEnc, testsignal.MustGenerate(testsignal.SpeechLike, 48000, 6*960, 1), 960)
	silkEnc.Reset()
	chirp := encodeAll(t, silkEnc, testsignal.MustGenerate(testsignal.ChirpSweep, 48000, 6*960, 1), 960)

	celtEnc := newTestEncoder(t, 48000, 1, ApplicationAudio, WithBitrate(96000))
	celtEnc.SetMode(PreferCELT)
	music := encodeAll(t, celtEnc, testsignal.MustGenerate(testsignal.AMMultisine, 48000, 4*960, 1), 960)

	decodeAfter := func(history [][]byte) []float32 {
		dec := newTestDecoder(t, 48000, 1)
		decodeAll(t, dec, history)
		if m, ok := dec.LastMode(); len(history) > 0 && (!ok || m != ModeSILK) {
			t.Fatalf("last mode %v, %v after SILK history", m, ok)
		}
		return decodeAll(t, dec, music)
	}
	want := decodeAfter(nil)
	if diff := cmp.Diff(want, decodeAfter(speech)); diff != "" {
		t.Errorf("CELT output depends on preceding SILK frames:\n%s", diff)
	}
	if diff := cmp.Diff(want, decodeAfter(chirp)); diff != "" {
		t.Errorf("CELT output depends on preceding SILK frames:\n%s", diff)
	}
}

// truncatedPacket rewrites a single-frame packet as a code-3 VBR packet that
// announces three frames but only carries the first.
func truncatedPacket(t *testing.T, p []byte) []byte {
	t.Helper()
	frames, err := Frames(p)
	if err != nil || len(frames) != 1 {
		t.Fatalf("Frames: %d frames, %v", len(frames), err)
	}
	n := len(frames[0])
	if n >= 252 {
		t.Fatalf("frame of %d bytes needs a two-byte length", n)
	}
	out := []byte{p[0] | 3, 0x80 | 3, byte(n), byte(n)}
	return append(out, frames[0]...)
}

func TestMalformedPacketLeavesDecoderUntouched(t *testing.T) {
	enc := newTestEncoder(t, 48000, 1, ApplicationAudio, WithBitrate(64000))
	packets := encodeAll(t, enc, testsignal.MustGenerate(testsignal.Tone, 48000, 4*960, 1), 960)
	bad := truncatedPacket(t, packets[1])

	ref := newTestDecoder(t, 48000, 1)
	want := decodeAll(t, ref, packets)

	dec := newTestDecoder(t, 48000, 1)
	got := decodeAll(t, dec, packets[:2])
	pcm, err := dec.Decode(bad)
	if !errors.Is(err, ErrMalformedPacket) {
		t.Fatalf("Decode(truncated) err = %v, want ErrMalformedPacket", err)
	}
	if pcm != nil {
		t.Errorf("rejected packet returned %d samples without concealment", len(pcm))
	}
	got = append(got, decodeAll(t, dec, packets[2:])...)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rejected packet changed decoder output:\n%s", diff)
	}
}

func TestConcealmentOnError(t *testing.T) {
	enc := newTestEncoder(t, 48000, 1, ApplicationAudio, WithBitrate(64000))
	packets := encodeAll(t, enc, testsignal.MustGenerate(testsignal.Tone, 48000, 3*960, 1), 960)

	dec := newTestDecoder(t, 48000, 1, WithConcealment(true))
	decodeAll(t, dec, packets)
	pcm, err := dec.Decode(truncatedPacket(t, packets[2]))
	if !errors.Is(err, ErrMalformedPacket) {
		t.Fatalf("err = %v, want ErrMalformedPacket", err)
	}
	if len(pcm) != 960 {
		t.Fatalf("concealment frame has %d samples, want 960", len(pcm))
	}
	if testsignal.RMS(pcm) == 0 {
		t.Error("concealment frame is silent after a tone")
	}
}

func TestLossConcealmentDecays(t *testing.T) {
	enc := newTestEncoder(t, 48000, 1, ApplicationAudio, WithBitrate(64000))
	enc.SetMode(PreferCELT)
	dec := newTestDecoder(t, 48000, 1)
	decodeAll(t, dec, encodeAll(t, enc, testsignal.MustGenerate(testsignal.Tone, 48000, 5*960, 1), 960))

	var rms []float64
	for i := 0; i < 8; i++ {
		pcm, err := dec.Decode(nil)
		if err != nil {
			t.Fatalf("loss %d: %v", i, err)
		}
		if len(pcm) != 960 {
			t.Fatalf("loss %d: %d samples, want 960", i, len(pcm))
		}
		rms = append(rms, testsignal.RMS(pcm))
	}
	if rms[0] == 0 {
		t.Fatal("first concealed frame is silent")
	}
	if rms[4] >= rms[0] {
		t.Errorf("concealment did not decay: %v", rms)
	}
	if rms[7] > 1e-3 {
		t.Errorf("concealment still audible after %d losses: %v", len(rms), rms)
	}
}

func TestLossFadeCountsFrames(t *testing.T) {
	pcm := testsignal.MustGenerate(testsignal.Tone, 48000, 6*960, 1)
	decoderAfter := func(frameSize int) *Decoder {
		enc := newTestEncoder(t, 48000, 1, ApplicationAudio, WithBitrate(64000))
		enc.SetMode(PreferCELT)
		dec := newTestDecoder(t, 48000, 1)
		decodeAll(t, dec, encodeAll(t, enc, pcm, frameSize))
		return dec
	}

	long := decoderAfter(2880)
	out, err := long.Decode(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2880 {
		t.Fatalf("concealed %d samples, want 2880", len(out))
	}
	if got := long.plc.LostCount(); got != 3 {
		t.Errorf("one lost 60 ms packet counted as %d lost frames, want 3", got)
	}

	short := decoderAfter(960)
	for i := 0; i < 3; i++ {
		if _, err := short.Decode(nil); err != nil {
			t.Fatal(err)
		}
	}
	if l, s := long.plc.FadeFactor(), short.plc.FadeFactor(); l != s {
		t.Errorf("fade after 60 ms of loss: %g in one packet, %g in three", l, s)
	}

	// The second lost packet runs past the concealment limit.
	out, err = long.Decode(nil)
	if err != nil {
		t.Fatal(err)
	}
	if !long.plc.IsExhausted() {
		t.Errorf("not exhausted after %d lost frames", long.plc.LostCount())
	}
	if rms := testsignal.RMS(out[len(out)-480:]); rms > 1e-3 {
		t.Errorf("concealment audible past the limit: rms %g", rms)
	}
}

func TestLossWithoutHistoryIsSilent(t *testing.T) {
	dec := newTestDecoder(t, 16000, 2)
	pcm, err := dec.Decode(nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(make([]float32, 2*320), pcm); diff != "" {
		t.Errorf("first loss (-want +got):\n%s", diff)
	}
}

func TestChannelMapping(t *testing.T) {
	monoEnc := newTestEncoder(t, 48000, 1, ApplicationAudio, WithBitrate(64000))
	monoPackets := encodeAll(t, monoEnc, testsignal.MustGenerate(testsignal.Tone, 48000, 3*960, 1), 960)

	stereo := decodeAll(t, newTestDecoder(t, 48000, 2), monoPackets)
	if len(stereo) != 2*3*960 {
		t.Fatalf("stereo output has %d samples", len(stereo))
	}
	for i := 0; i < len(stereo); i += 2 {
		if stereo[i] != stereo[i+1] {
			t.Fatalf("mono packet decoded to unequal channels at frame %d", i/2)
		}
	}

	stereoEnc := newTestEncoder(t, 48000, 2, ApplicationAudio, WithBitrate(96000))
	stereoPackets := encodeAll(t, stereoEnc, testsignal.MustGenerate(testsignal.Tone, 48000, 3*960, 2), 960)
	mono := decodeAll(t, newTestDecoder(t, 48000, 1), stereoPackets)
	if len(mono) != 3*960 {
		t.Errorf("mono output of stereo packets has %d samples", len(mono))
	}
}

func TestSampleRates(t *testing.T) {
	for _, rate := range []int{8000, 12000, 16000, 24000, 48000} {
		enc := newTestEncoder(t, rate, 1, ApplicationVoIP, WithBitrate(20000))
		dec := newTestDecoder(t, rate, 1)
		frameSize := rate / 50
		in := testsignal.MustGenerate(testsignal.SpeechLike, rate, 4*frameSize, 1)
		out := decodeAll(t, dec, encodeAll(t, enc, in, frameSize))
		if len(out) != len(in) {
			t.Errorf("%d Hz: decoded %d samples, want %d", rate, len(out), len(in))
		}
		if _, bw, ok := enc.Mode(); !ok || bw.SampleRate() > rate {
			t.Errorf("%d Hz: bandwidth %v exceeds the API rate", rate, bw)
		}
	}
}

func TestDecodeInt16SoftClips(t *testing.T) {
	enc := newTestEncoder(t, 48000, 1, ApplicationAudio, WithBitrate(128000))
	enc.SetMode(PreferCELT)
	in := testsignal.MustGenerate(testsignal.Tone, 48000, 4*960, 1)
	for i := range in {
		in[i] *= 2
	}
	dec := newTestDecoder(t, 48000, 1)
	for i, p := range encodeAll(t, enc, in, 960) {
		pcm, err := dec.DecodeInt16(p)
		if err != nil {
			t.Fatalf("packet %d: %v", i, err)
		}
		if len(pcm) != 960 {
			t.Fatalf("packet %d: %d samples", i, len(pcm))
		}
	}
}

func TestSoftClipperBendsOvershoot(t *testing.T) {
	x := []float32{0.2, 0.9, 1.4, 1.8, 1.1, 0.4, -0.3}
	var s softClipper
	s.apply(x, len(x), 1)
	for i, v := range x {
		if v > 1 || v < -1 {
			t.Errorf("x[%d] = %v outside [-1, 1]", i, v)
		}
	}
	if x[1] >= 0.9 {
		t.Errorf("x[1] = %v: overshoot was hard clipped instead of bent", x[1])
	}

	inRange := []float32{0.5, -0.5, 0.99, -0.99}
	want := append([]float32(nil), inRange...)
	var fresh softClipper
	fresh.apply(inRange, len(inRange), 1)
	if diff := cmp.Diff(want, inRange); diff != "" {
		t.Errorf("in-range samples changed:\n%s", diff)
	}
}

func TestLoggerReceivesRejections(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	dec := newTestDecoder(t, 48000, 1, WithLogger(log))
	if _, err := dec.Decode([]byte{0x01, 0x01}); err == nil {
		t.Fatal("odd code-1 packet accepted")
	}
	out := buf.String()
	for _, want := range []string{"packet rejected", "component=decoder"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}
