package opuscore

import (
	"log/slog"

	"github.com/thesyncim/opuscore/observe"
)

// EncoderOption configures an Encoder at construction.
type EncoderOption interface {
	applyEncoder(*encoderOptions)
}

// DecoderOption configures a Decoder at construction.
type DecoderOption interface {
	applyDecoder(*decoderOptions)
}

// Option configures either an Encoder or a Decoder.
type Option interface {
	EncoderOption
	DecoderOption
}

type commonOptions struct {
	log     *slog.Logger
	metrics *observe.Metrics
}

type encoderOptions struct {
	commonOptions
	bitrate    int
	complexity int
	signal     Signal
}

type decoderOptions struct {
	commonOptions
	conceal bool
}

type commonOption func(*commonOptions)

func (o commonOption) applyEncoder(e *encoderOptions) { o(&e.commonOptions) }
func (o commonOption) applyDecoder(d *decoderOptions) { o(&d.commonOptions) }

type encoderOption func(*encoderOptions)

func (o encoderOption) applyEncoder(e *encoderOptions) { o(e) }

type decoderOption func(*decoderOptions)

func (o decoderOption) applyDecoder(d *decoderOptions) { o(d) }

// WithLogger sets the logger for mode decisions, rate-control retries and
// decode failures. The default discards everything.
func WithLogger(log *slog.Logger) Option {
	return commonOption(func(o *commonOptions) {
		if log != nil {
			o.log = log
		}
	})
}

// WithMetrics records encoder and decoder activity on m.
func WithMetrics(m *observe.Metrics) Option {
	return commonOption(func(o *commonOptions) { o.metrics = m })
}

// WithBitrate sets the initial target bitrate. Out-of-range values are
// clamped to 6000-510000.
func WithBitrate(bps int) EncoderOption {
	return encoderOption(func(o *encoderOptions) { o.bitrate = bps })
}

// WithComplexity sets the initial complexity, clamped to 0-10.
func WithComplexity(c int) EncoderOption {
	return encoderOption(func(o *encoderOptions) { o.complexity = min(max(c, 0), 10) })
}

// WithSignal sets the initial signal hint.
func WithSignal(s Signal) EncoderOption {
	return encoderOption(func(o *encoderOptions) { o.signal = s })
}

// WithConcealment makes Decode return a concealment frame alongside the
// error when a packet is rejected, so playout can continue without a gap.
func WithConcealment(enabled bool) DecoderOption {
	return decoderOption(func(o *decoderOptions) { o.conceal = enabled })
}

func defaultCommon() commonOptions {
	return commonOptions{log: slog.New(slog.DiscardHandler)}
}
