package opuscore

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/thesyncim/opuscore/internal/testsignal"
	"github.com/thesyncim/opuscore/observe"
)

func newManualMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// counter sums every data point of the named int64 counter whose
// attributes include key=value (all points when key is empty).
func counter(t *testing.T, reader *sdkmetric.ManualReader, name, key, value string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %q is not an int64 sum", name)
			}
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value(attribute.Key(key)); key == "" || ok && v.AsString() == value {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestEncoderMetrics(t *testing.T) {
	m, reader := newManualMetrics(t)
	enc := newTestEncoder(t, 48000, 1, ApplicationVoIP, WithMetrics(m), WithBitrate(24000))
	pcm := testsignal.MustGenerate(testsignal.SpeechLike, 48000, 3*960, 1)

	enc.SetMode(PreferCELT)
	celtPackets := encodeAll(t, enc, pcm[:2*960], 960)
	enc.SetMode(PreferSILK)
	silkPackets := encodeAll(t, enc, pcm[2*960:], 960)

	if got := counter(t, reader, "opuscore.encoder.frames", "mode", "celt"); got != 2 {
		t.Errorf("celt frames = %d, want 2", got)
	}
	if got := counter(t, reader, "opuscore.encoder.frames", "mode", "silk"); got != 1 {
		t.Errorf("silk frames = %d, want 1", got)
	}
	var wantBytes int64
	for _, p := range append(celtPackets, silkPackets...) {
		wantBytes += int64(len(p))
	}
	if got := counter(t, reader, "opuscore.encoder.bytes", "", ""); got != wantBytes {
		t.Errorf("encoded bytes = %d, want %d", got, wantBytes)
	}
	if got := counter(t, reader, "opuscore.encoder.mode_switches", "to", "silk"); got != 1 {
		t.Errorf("mode switches to silk = %d, want 1", got)
	}
}

func TestDecoderMetrics(t *testing.T) {
	m, reader := newManualMetrics(t)
	enc := newTestEncoder(t, 48000, 1, ApplicationAudio)
	packets := encodeAll(t, enc, testsignal.MustGenerate(testsignal.Tone, 48000, 2*960, 1), 960)

	dec := newTestDecoder(t, 48000, 1, WithMetrics(m))
	decodeAll(t, dec, packets)
	if _, err := dec.Decode([]byte{0x03}); err == nil {
		t.Fatal("code-3 packet without count byte accepted")
	}
	if _, err := dec.Decode(nil); err != nil {
		t.Fatal(err)
	}

	if got := counter(t, reader, "opuscore.decoder.errors", "kind", "malformed"); got != 1 {
		t.Errorf("malformed errors = %d, want 1", got)
	}
	if got := counter(t, reader, "opuscore.decoder.concealed_frames", "", ""); got != 1 {
		t.Errorf("concealed frames = %d, want 1", got)
	}
}
