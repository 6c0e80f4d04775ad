package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/thesyncim/opuscore"
	"github.com/thesyncim/opuscore/internal/audioio"
	"github.com/thesyncim/opuscore/internal/testsignal"
)

func roundtripCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:      "roundtrip",
		Usage:     "encode and decode an audio file, report quality and rate",
		ArgsUsage: "<input.{wav,raw,mp3,flac}>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "write decoded audio (.wav or .raw)"},
			&cli.IntFlag{Name: "raw-rate", Value: 48000, Usage: "sample rate of raw input"},
			&cli.IntFlag{Name: "raw-channels", Value: 2, Usage: "channel count of raw input"},
			&cli.IntFlag{Name: "drop-every", Usage: "drop every Nth packet to exercise concealment"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("roundtrip needs exactly one input file", 2)
			}
			in, err := audioio.ReadFile(c.Args().First(), c.Int("raw-rate"), c.Int("raw-channels"))
			if err != nil {
				return err
			}
			res, err := e.roundtrip(in, c.Int("drop-every"))
			if err != nil {
				return err
			}
			res.print(c.App.Writer)
			if out := c.String("out"); out != "" {
				return audioio.WriteFile(out, res.decoded)
			}
			return nil
		},
	}
}

type roundtripResult struct {
	packets  int
	dropped  int
	bytes    int
	duration time.Duration
	elapsed  time.Duration
	modes    map[string]int
	snr      float64
	delay    int
	decoded  *audioio.Audio
}

// roundtrip brings in to the profile's rate and layout, runs it through a
// fresh encoder and decoder and measures the result.
func (e *env) roundtrip(in *audioio.Audio, dropEvery int) (*roundtripResult, error) {
	p := e.profile
	src := audioio.Resample(audioio.Remix(in, p.Channels), p.SampleRate)

	enc, err := p.NewEncoder(opuscore.WithLogger(e.log), opuscore.WithMetrics(e.metrics))
	if err != nil {
		return nil, err
	}
	dec, err := p.NewDecoder(opuscore.WithLogger(e.log), opuscore.WithMetrics(e.metrics))
	if err != nil {
		return nil, err
	}

	n := p.FrameSize()
	step := n * p.Channels
	pcm := slices.Clone(src.Samples)
	if r := len(pcm) % step; r != 0 {
		pcm = append(pcm, make([]float32, step-r)...)
	}

	res := &roundtripResult{
		modes:   make(map[string]int),
		decoded: &audioio.Audio{SampleRate: p.SampleRate, Channels: p.Channels},
	}
	start := time.Now()
	for off := 0; off < len(pcm); off += step {
		packet, err := enc.Encode(pcm[off:off+step], n)
		if err != nil {
			return nil, fmt.Errorf("encode packet %d: %w", res.packets, err)
		}
		res.packets++
		res.bytes += len(packet)
		res.modes[opuscore.ParseTOC(packet[0]).Mode.String()]++

		if dropEvery > 0 && res.packets%dropEvery == 0 {
			packet = nil
			res.dropped++
		}
		out, err := dec.Decode(packet)
		if err != nil {
			return nil, fmt.Errorf("decode packet %d: %w", res.packets-1, err)
		}
		res.decoded.Samples = append(res.decoded.Samples, out...)
	}
	res.elapsed = time.Since(start)
	res.duration = time.Duration(len(pcm)/p.Channels) * time.Second / time.Duration(p.SampleRate)
	res.snr, res.delay = testsignal.AlignedSNR(src.Samples, res.decoded.Samples, p.Channels, p.SampleRate/100)
	return res, nil
}

func (r *roundtripResult) print(w io.Writer) {
	kbps := 0.0
	if r.duration > 0 {
		kbps = float64(8*r.bytes) / r.duration.Seconds() / 1000
	}
	fmt.Fprintf(w, "packets:  %d (%d dropped)\n", r.packets, r.dropped)
	fmt.Fprintf(w, "bytes:    %d (%.1f kbit/s over %v)\n", r.bytes, kbps, r.duration)
	for _, m := range slices.Sorted(maps.Keys(r.modes)) {
		fmt.Fprintf(w, "mode %-6s %d\n", m+":", r.modes[m])
	}
	fmt.Fprintf(w, "snr:      %.2f dB at delay %d\n", r.snr, r.delay)
	if r.duration > 0 {
		fmt.Fprintf(w, "speed:    %.1fx real time\n", r.duration.Seconds()/max(r.elapsed.Seconds(), 1e-9))
	}
}
