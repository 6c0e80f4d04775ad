// Package config loads the codec profile used by the opuscore command:
// a YAML file overlaid with OPUSCORE_* environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"

	"github.com/thesyncim/opuscore"
)

// EnvPrefix prefixes every environment variable read by FromEnv.
const EnvPrefix = "OPUSCORE_"

// Profile configures one encoder/decoder pair.
type Profile struct {
	SampleRate    int           `yaml:"sample_rate" env:"SAMPLE_RATE, overwrite"`
	Channels      int           `yaml:"channels" env:"CHANNELS, overwrite"`
	Application   string        `yaml:"application" env:"APPLICATION, overwrite"`
	Bitrate       int           `yaml:"bitrate" env:"BITRATE, overwrite"`
	Complexity    int           `yaml:"complexity" env:"COMPLEXITY, overwrite"`
	FrameDuration time.Duration `yaml:"frame_duration" env:"FRAME_DURATION, overwrite"`
	Mode          string        `yaml:"mode" env:"MODE, overwrite"`
	Bandwidth     string        `yaml:"bandwidth" env:"BANDWIDTH, overwrite"`
	Signal        string        `yaml:"signal" env:"SIGNAL, overwrite"`
	Conceal       bool          `yaml:"conceal" env:"CONCEAL, overwrite"`

	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL, overwrite"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT, overwrite"`
}

// Default returns the profile used when no file is given.
func Default() *Profile {
	return &Profile{
		SampleRate:    48000,
		Channels:      2,
		Application:   "audio",
		Bitrate:       64000,
		Complexity:    10,
		FrameDuration: 20 * time.Millisecond,
		Mode:          "auto",
		Bandwidth:     "auto",
		Signal:        "auto",
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

var (
	applications = map[string]opuscore.Application{
		"voip":     opuscore.ApplicationVoIP,
		"audio":    opuscore.ApplicationAudio,
		"lowdelay": opuscore.ApplicationLowDelay,
	}
	modes = map[string]opuscore.ModePreference{
		"auto":   opuscore.PreferAuto,
		"silk":   opuscore.PreferSILK,
		"hybrid": opuscore.PreferHybrid,
		"celt":   opuscore.PreferCELT,
	}
	bandwidths = map[string]opuscore.Bandwidth{
		"auto": opuscore.BandwidthAuto,
		"nb":   opuscore.BandwidthNarrowband,
		"mb":   opuscore.BandwidthMediumband,
		"wb":   opuscore.BandwidthWideband,
		"swb":  opuscore.BandwidthSuperwideband,
		"fb":   opuscore.BandwidthFullband,
	}
	signals = map[string]opuscore.Signal{
		"auto":  opuscore.SignalAuto,
		"voice": opuscore.SignalVoice,
		"music": opuscore.SignalMusic,
	}
	logLevels = map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	frameDurations = []time.Duration{
		2500 * time.Microsecond, 5 * time.Millisecond, 10 * time.Millisecond,
		20 * time.Millisecond, 40 * time.Millisecond, 60 * time.Millisecond,
		80 * time.Millisecond, 100 * time.Millisecond, 120 * time.Millisecond,
	}
)

// Load reads the YAML profile at path on top of Default. An empty path
// returns Default unchanged. The result is not validated; call Validate
// after any overlay.
func Load(path string) (*Profile, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	p, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return p, nil
}

// LoadFromReader decodes a YAML profile from r on top of Default. Unknown
// keys are rejected. An empty document yields Default.
func LoadFromReader(r io.Reader) (*Profile, error) {
	p := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(p); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	return p, nil
}

// FromEnv overlays the OPUSCORE_* variables found by lookup onto p. A nil
// lookup reads the process environment.
func FromEnv(ctx context.Context, p *Profile, lookup envconfig.Lookuper) error {
	if lookup == nil {
		lookup = envconfig.OsLookuper()
	}
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   p,
		Lookuper: envconfig.PrefixLookuper(EnvPrefix, lookup),
	})
	if err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}
	return nil
}

// Resolve loads path, overlays the environment and validates the result.
func Resolve(ctx context.Context, path string) (*Profile, error) {
	p, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := FromEnv(ctx, p, nil); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks every field and returns all failures joined.
func (p *Profile) Validate() error {
	var errs []error

	switch p.SampleRate {
	case 8000, 12000, 16000, 24000, 48000:
	default:
		errs = append(errs, fmt.Errorf("sample_rate %d is invalid; valid values: 8000, 12000, 16000, 24000, 48000", p.SampleRate))
	}
	if p.Channels != 1 && p.Channels != 2 {
		errs = append(errs, fmt.Errorf("channels %d is invalid; valid values: 1, 2", p.Channels))
	}
	if p.Bitrate < 6000 || p.Bitrate > 510000 {
		errs = append(errs, fmt.Errorf("bitrate %d is outside 6000-510000", p.Bitrate))
	}
	if p.Complexity < 0 || p.Complexity > 10 {
		errs = append(errs, fmt.Errorf("complexity %d is outside 0-10", p.Complexity))
	}
	if !slices.Contains(frameDurations, p.FrameDuration) {
		errs = append(errs, fmt.Errorf("frame_duration %v is invalid; valid values: 2.5ms, 5ms, 10ms, 20ms, 40ms, 60ms, 80ms, 100ms, 120ms", p.FrameDuration))
	}
	errs = appendChoice(errs, "application", p.Application, applications)
	errs = appendChoice(errs, "mode", p.Mode, modes)
	errs = appendChoice(errs, "bandwidth", p.Bandwidth, bandwidths)
	errs = appendChoice(errs, "signal", p.Signal, signals)
	errs = appendChoice(errs, "log_level", p.LogLevel, logLevels)
	if f := strings.ToLower(p.LogFormat); f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("log_format %q is invalid; valid values: text, json", p.LogFormat))
	}
	return errors.Join(errs...)
}

func appendChoice[V any](errs []error, field, value string, choices map[string]V) []error {
	if _, ok := choices[strings.ToLower(value)]; ok {
		return errs
	}
	keys := make([]string, 0, len(choices))
	for k := range choices {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return append(errs, fmt.Errorf("%s %q is invalid; valid values: %s", field, value, strings.Join(keys, ", ")))
}

// FrameSize returns the samples per channel of one packet at SampleRate.
func (p *Profile) FrameSize() int {
	return int(int64(p.SampleRate) * int64(p.FrameDuration) / int64(time.Second))
}

// ApplicationValue returns the codec application. The profile must be valid.
func (p *Profile) ApplicationValue() opuscore.Application {
	return applications[strings.ToLower(p.Application)]
}

// EncoderOptions returns the constructor options the profile implies.
func (p *Profile) EncoderOptions() []opuscore.EncoderOption {
	return []opuscore.EncoderOption{
		opuscore.WithBitrate(p.Bitrate),
		opuscore.WithComplexity(p.Complexity),
		opuscore.WithSignal(signals[strings.ToLower(p.Signal)]),
	}
}

// DecoderOptions returns the decoder options the profile implies.
func (p *Profile) DecoderOptions() []opuscore.DecoderOption {
	return []opuscore.DecoderOption{opuscore.WithConcealment(p.Conceal)}
}

// NewEncoder creates an encoder configured by the profile.
func (p *Profile) NewEncoder(opts ...opuscore.EncoderOption) (*opuscore.Encoder, error) {
	enc, err := opuscore.NewEncoder(p.SampleRate, p.Channels, p.ApplicationValue(), append(p.EncoderOptions(), opts...)...)
	if err != nil {
		return nil, err
	}
	enc.SetMode(modes[strings.ToLower(p.Mode)])
	if err := enc.SetBandwidth(bandwidths[strings.ToLower(p.Bandwidth)]); err != nil {
		return nil, err
	}
	return enc, nil
}

// NewDecoder creates a decoder configured by the profile.
func (p *Profile) NewDecoder(opts ...opuscore.DecoderOption) (*opuscore.Decoder, error) {
	return opuscore.NewDecoder(p.SampleRate, p.Channels, append(p.DecoderOptions(), opts...)...)
}

// NewLogger returns a slog.Logger writing to w in the configured format
// and level.
func (p *Profile) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: logLevels[strings.ToLower(p.LogLevel)]}
	if strings.EqualFold(p.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
