package encoder

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/thesyncim/opuscore/celt"
	"github.com/thesyncim/opuscore/rangecoding"
	"github.com/thesyncim/opuscore/silk"
	"github.com/thesyncim/opuscore/types"
)

func tone(freq float64, sampleRate, samples, channels int) []float64 {
	out := make([]float64, samples*channels)
	for i := 0; i < samples; i++ {
		v := 0.4 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
		for c := 0; c < channels; c++ {
			out[i*channels+c] = v
		}
	}
	return out
}

func newEncoder(t *testing.T, sampleRate, channels int, app types.Application) *Encoder {
	t.Helper()
	e, err := New(sampleRate, channels, app, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestSilenceIsTiny(t *testing.T) {
	e := newEncoder(t, 48000, 1, types.ApplicationAudio)
	e.SetBitrate(64000)
	res, err := e.Encode(make([]float64, 960), 960)
	if err != nil {
		t.Fatal(err)
	}
	if res.Mode != types.ModeCELT || len(res.Frames) != 1 {
		t.Fatalf("mode %v with %d frames", res.Mode, len(res.Frames))
	}
	if n := len(res.Frames[0]); n > 2 {
		t.Errorf("silent frame is %d bytes", n)
	}
}

func TestModeSwitchResetsCores(t *testing.T) {
	e := newEncoder(t, 48000, 1, types.ApplicationVoIP)
	e.SetBitrate(20000)
	pcm := tone(220, 48000, 960, 1)

	e.SetMode(ModeSILK)
	for i := 0; i < 3; i++ {
		res, err := e.Encode(pcm, 960)
		if err != nil {
			t.Fatal(err)
		}
		if res.Mode != types.ModeSILK {
			t.Fatalf("mode = %v, want SILK", res.Mode)
		}
	}
	if e.silk.Snapshot() == (silk.EncoderState{}) {
		t.Fatal("SILK state untouched after coding")
	}

	e.SetMode(ModeCELT)
	res, err := e.Encode(pcm, 960)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Switched || res.Mode != types.ModeCELT {
		t.Fatalf("switched=%v mode=%v", res.Switched, res.Mode)
	}
	if e.silk.Snapshot() != (silk.EncoderState{}) {
		t.Error("SILK state survived the switch to CELT")
	}

	e.SetMode(ModeSILK)
	if _, err := e.Encode(pcm, 960); err != nil {
		t.Fatal(err)
	}
	fresh, _ := celt.NewEncoder(1)
	if e.celt.Snapshot() != fresh.Snapshot() {
		t.Error("CELT state survived the switch to SILK")
	}
}

func TestFailedEncodeLeavesStateUntouched(t *testing.T) {
	e := newEncoder(t, 48000, 1, types.ApplicationAudio)
	e.SetMode(ModeHybrid)
	e.SetBandwidth(types.BandwidthSuperwideband)
	e.SetBitrate(MinBitrate)
	pcm := tone(300, 48000, 480, 1)

	before := e.snapshot()
	_, err := e.Encode(pcm, 480)
	if !errors.Is(err, ErrPacketTooLarge) {
		t.Fatalf("err = %v, want ErrPacketTooLarge", err)
	}
	if e.snapshot() != before {
		t.Error("failed Encode changed the pipeline state")
	}

	if _, err := e.Encode(pcm[:100], 480); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("short input err = %v", err)
	}
	if _, err := e.Encode(pcm, 500); !errors.Is(err, ErrInvalidFrameSize) {
		t.Errorf("500 samples err = %v", err)
	}
}

func TestLongPacketsFitLimit(t *testing.T) {
	e := newEncoder(t, 48000, 2, types.ApplicationAudio)
	e.SetBitrate(MaxBitrate)
	res, err := e.Encode(tone(1000, 48000, 5760, 2), 5760)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Frames) != 6 || res.FrameSize != 960 {
		t.Fatalf("%d frames of %d samples", len(res.Frames), res.FrameSize)
	}
	total := 0
	for _, f := range res.Frames {
		total += len(f)
	}
	if total+packetOverhead+2*(len(res.Frames)-1) > MaxPacketBytes {
		t.Errorf("frames total %d bytes, too large for one packet", total)
	}
}

func TestSILKFramesDecode(t *testing.T) {
	e := newEncoder(t, 16000, 1, types.ApplicationVoIP)
	e.SetBitrate(12000)
	e.SetSignal(types.SignalVoice)
	dec := silk.NewDecoder()
	for _, frameSize := range []int{320, 640, 960, 1280} {
		res, err := e.Encode(tone(200, 16000, frameSize, 1), frameSize)
		if err != nil {
			t.Fatalf("%d samples: %v", frameSize, err)
		}
		if res.Mode != types.ModeSILK || res.Bandwidth != types.BandwidthMediumband {
			t.Fatalf("%d samples: mode %v bandwidth %v", frameSize, res.Mode, res.Bandwidth)
		}
		if e.SILKPhase() != silk.PhaseEncoded {
			t.Errorf("SILK phase = %v", e.SILKPhase())
		}
		n := res.FrameSize * 12000 / 48000
		out := make([]float64, n)
		for i, f := range res.Frames {
			var rd rangecoding.Decoder
			rd.Init(f)
			if err := dec.Decode(&rd, res.Bandwidth, 1, n, out); err != nil {
				t.Fatalf("%d samples, frame %d: %v", frameSize, i, err)
			}
			if err := rd.Err(); err != nil {
				t.Fatalf("%d samples, frame %d: %v", frameSize, i, err)
			}
		}
	}
}

func TestLayout(t *testing.T) {
	tests := []struct {
		mode        types.Mode
		n48         int
		size, count int
	}{
		{types.ModeSILK, 480, 480, 1},
		{types.ModeSILK, 2880, 2880, 1},
		{types.ModeSILK, 3840, 960, 4},
		{types.ModeSILK, 5760, 960, 6},
		{types.ModeCELT, 120, 120, 1},
		{types.ModeCELT, 1920, 960, 2},
		{types.ModeHybrid, 480, 480, 1},
		{types.ModeHybrid, 2880, 960, 3},
	}
	for _, tt := range tests {
		size, count := Layout(tt.mode, tt.n48)
		if size != tt.size || count != tt.count {
			t.Errorf("Layout(%v, %d) = %d x %d, want %d x %d", tt.mode, tt.n48, count, size, tt.count, tt.size)
		}
	}
}

func TestFrameSize48(t *testing.T) {
	tests := []struct {
		frameSize, rate, want int
		ok                    bool
	}{
		{960, 48000, 960, true},
		{120, 48000, 120, true},
		{5760, 48000, 5760, true},
		{160, 8000, 960, true},
		{20, 8000, 120, true},
		{240, 12000, 960, true},
		{100, 48000, 0, false},
		{0, 48000, 0, false},
		{6720, 48000, 0, false},
	}
	for _, tt := range tests {
		got, ok := FrameSize48(tt.frameSize, tt.rate)
		if got != tt.want || ok != tt.ok {
			t.Errorf("FrameSize48(%d, %d) = %d, %v", tt.frameSize, tt.rate, got, ok)
		}
	}
}

func TestDecisionsAreLogged(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	e, err := New(48000, 1, types.ApplicationAudio, log)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Encode(tone(440, 48000, 960, 1), 960); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "mode decision") {
		t.Errorf("log output missing decision: %q", buf.String())
	}
}

func TestResetIsIdempotent(t *testing.T) {
	e := newEncoder(t, 48000, 1, types.ApplicationAudio)
	pcm := tone(660, 48000, 960, 1)
	first, err := e.Encode(pcm, 960)
	if err != nil {
		t.Fatal(err)
	}
	e.Encode(pcm, 960)
	e.Reset()
	again, err := e.Encode(pcm, 960)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first.Frames[0], again.Frames[0]) {
		t.Error("first frame after Reset differs from the first frame of a fresh encoder")
	}
}

func TestRejectedCommitRestoresState(t *testing.T) {
	e := newEncoder(t, 48000, 1, types.ApplicationAudio)
	pcm := tone(440, 48000, 960, 1)
	if _, err := e.Encode(pcm, 960); err != nil {
		t.Fatal(err)
	}

	before := e.snapshot()
	errReject := errors.New("rejected")
	err := e.EncodeFunc(pcm, 960, func(Result) error { return errReject })
	if !errors.Is(err, errReject) {
		t.Fatalf("err = %v, want the commit error", err)
	}
	if e.snapshot() != before {
		t.Error("rejected commit changed the pipeline state")
	}
}
