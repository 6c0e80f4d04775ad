// Package observe provides OpenTelemetry metric instruments for the codec.
//
// Encoders and decoders accept a [*Metrics] through their WithMetrics option.
// A nil *Metrics is valid and records nothing, so callers that do not care
// about telemetry pay only a nil check per frame.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all codec metrics.
const meterName = "github.com/thesyncim/opuscore"

// Metrics holds the codec's metric instruments. All fields are safe for
// concurrent use.
type Metrics struct {
	// EncodedFrames counts coded frames. Use with attribute:
	//   attribute.String("mode", ...)
	EncodedFrames metric.Int64Counter

	// EncodedBytes counts packet payload bytes, TOC included. Use with attribute:
	//   attribute.String("mode", ...)
	EncodedBytes metric.Int64Counter

	// ModeSwitches counts coding mode transitions. Use with attributes:
	//   attribute.String("from", ...), attribute.String("to", ...)
	ModeSwitches metric.Int64Counter

	// EncodeRetries counts rate-control re-encodes after a budget overflow.
	EncodeRetries metric.Int64Counter

	// DecodeErrors counts rejected packets. Use with attribute:
	//   attribute.String("kind", ...)
	DecodeErrors metric.Int64Counter

	// ConcealedFrames counts frames synthesized by loss concealment.
	ConcealedFrames metric.Int64Counter

	// EncodeDuration tracks wall time spent in one Encode call.
	EncodeDuration metric.Float64Histogram

	// DecodeDuration tracks wall time spent in one Decode call.
	DecodeDuration metric.Float64Histogram
}

// durationBuckets are histogram boundaries in seconds sized for per-packet
// codec work (tens of microseconds to a few milliseconds).
var durationBuckets = []float64{
	0.00001, 0.000025, 0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01,
}

// NewMetrics creates a fully initialised [Metrics] using the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.EncodedFrames, err = m.Int64Counter("opuscore.encoder.frames",
		metric.WithDescription("Coded frames by mode."),
	); err != nil {
		return nil, err
	}
	if met.EncodedBytes, err = m.Int64Counter("opuscore.encoder.bytes",
		metric.WithDescription("Packet bytes produced by mode."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.ModeSwitches, err = m.Int64Counter("opuscore.encoder.mode_switches",
		metric.WithDescription("Coding mode transitions."),
	); err != nil {
		return nil, err
	}
	if met.EncodeRetries, err = m.Int64Counter("opuscore.encoder.retries",
		metric.WithDescription("Re-encodes after a frame overflowed its byte budget."),
	); err != nil {
		return nil, err
	}
	if met.DecodeErrors, err = m.Int64Counter("opuscore.decoder.errors",
		metric.WithDescription("Rejected packets by error kind."),
	); err != nil {
		return nil, err
	}
	if met.ConcealedFrames, err = m.Int64Counter("opuscore.decoder.concealed_frames",
		metric.WithDescription("Frames produced by packet loss concealment."),
	); err != nil {
		return nil, err
	}
	if met.EncodeDuration, err = m.Float64Histogram("opuscore.encoder.duration",
		metric.WithDescription("Wall time of one Encode call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DecodeDuration, err = m.Float64Histogram("opuscore.decoder.duration",
		metric.WithDescription("Wall time of one Decode call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a package-level [Metrics] bound to
// [otel.GetMeterProvider]. Subsequent calls return the same pointer.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordPacket records one encoded packet carrying frames frames of the given
// mode, its size and the time spent producing it.
func (m *Metrics) RecordPacket(ctx context.Context, mode string, frames, bytes int, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("mode", mode))
	m.EncodedFrames.Add(ctx, int64(frames), attrs)
	m.EncodedBytes.Add(ctx, int64(bytes), attrs)
	m.EncodeDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordModeSwitch records a transition between coding modes.
func (m *Metrics) RecordModeSwitch(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	m.ModeSwitches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// RecordRetries records n rate-control re-encodes.
func (m *Metrics) RecordRetries(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.EncodeRetries.Add(ctx, int64(n))
}

// RecordDecode records the wall time of a successful decode.
func (m *Metrics) RecordDecode(ctx context.Context, mode string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.DecodeDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("mode", mode)))
}

// RecordDecodeError records a rejected packet.
func (m *Metrics) RecordDecodeError(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.DecodeErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordConcealed records n concealment frames.
func (m *Metrics) RecordConcealed(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.ConcealedFrames.Add(ctx, int64(n))
}
