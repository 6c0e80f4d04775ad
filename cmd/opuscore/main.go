// Command opuscore exercises the codec on host audio: round trips through
// encoder and decoder, packet inspection and a parallel throughput bench.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/thesyncim/opuscore/internal/config"
	"github.com/thesyncim/opuscore/observe"
)

// env is the state shared by every command, built in Before.
type env struct {
	profile *config.Profile
	log     *slog.Logger
	metrics *observe.Metrics
	reader  *sdkmetric.ManualReader
	mp      *sdkmetric.MeterProvider
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := &env{}
	app := &cli.App{
		Name:  "opuscore",
		Usage: "encode, decode and inspect Opus packets",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML codec profile"},
			&cli.StringFlag{Name: "env-file", Value: ".env", Usage: "dotenv file loaded before OPUSCORE_* variables are read"},
			&cli.IntFlag{Name: "bitrate", Usage: "target bitrate in bit/s (overrides the profile)"},
			&cli.StringFlag{Name: "mode", Usage: "auto, silk, hybrid or celt (overrides the profile)"},
			&cli.BoolFlag{Name: "metrics", Usage: "print a metrics summary on exit"},
		},
		Before: e.setup,
		After:  e.teardown,
		Commands: []*cli.Command{
			roundtripCommand(e),
			inspectCommand(e),
			benchCommand(e),
		},
	}
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "opuscore:", err)
		os.Exit(1)
	}
}

func (e *env) setup(c *cli.Context) error {
	if err := config.LoadDotEnv(c.String("env-file")); err != nil {
		return err
	}
	p, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if err := config.FromEnv(c.Context, p, nil); err != nil {
		return err
	}
	if c.IsSet("bitrate") {
		p.Bitrate = c.Int("bitrate")
	}
	if c.IsSet("mode") {
		p.Mode = c.String("mode")
	}
	if err := p.Validate(); err != nil {
		return cli.Exit(fmt.Sprintf("invalid profile:\n%v", err), 2)
	}
	e.profile = p
	e.log = p.NewLogger(c.App.ErrWriter)

	e.reader = sdkmetric.NewManualReader()
	e.mp = sdkmetric.NewMeterProvider(sdkmetric.WithReader(e.reader))
	if e.metrics, err = observe.NewMetrics(e.mp); err != nil {
		return err
	}
	e.log.Debug("profile loaded",
		"sample_rate", p.SampleRate,
		"channels", p.Channels,
		"application", p.Application,
		"bitrate", p.Bitrate,
		"frame_duration", p.FrameDuration)
	return nil
}

func (e *env) teardown(c *cli.Context) error {
	if e.mp == nil {
		return nil
	}
	if c.Bool("metrics") {
		if err := printSummary(c.Context, c.App.Writer, e.reader); err != nil {
			return err
		}
	}
	return e.mp.Shutdown(context.WithoutCancel(c.Context))
}
