package main

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/thesyncim/opuscore"
	"github.com/thesyncim/opuscore/internal/testsignal"
)

func benchCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "bench",
		Usage: "run independent encoder/decoder pairs in parallel",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "streams", Value: runtime.NumCPU(), Usage: "number of concurrent streams"},
			&cli.DurationFlag{Name: "audio", Value: 10 * time.Second, Usage: "audio duration per stream"},
			&cli.StringFlag{Name: "signal", Value: string(testsignal.SpeechLike), Usage: "generated signal kind"},
		},
		Action: func(c *cli.Context) error {
			results, err := e.bench(c.Context, c.Int("streams"), c.Duration("audio"), testsignal.Kind(c.String("signal")))
			if err != nil {
				return err
			}
			var total time.Duration
			for _, r := range results {
				fmt.Fprintf(c.App.Writer, "%s  %4d packets  %7d bytes  %8v  %.1fx\n",
					r.id, r.packets, r.bytes, r.elapsed.Round(time.Millisecond), r.audio.Seconds()/r.elapsed.Seconds())
				total += r.audio
			}
			fmt.Fprintf(c.App.Writer, "%d streams, %v of audio\n", len(results), total)
			return nil
		},
	}
}

type benchResult struct {
	id      string
	packets int
	bytes   int
	audio   time.Duration
	elapsed time.Duration
}

func (e *env) bench(ctx context.Context, streams int, audio time.Duration, kind testsignal.Kind) ([]benchResult, error) {
	if streams < 1 {
		return nil, fmt.Errorf("streams must be positive, got %d", streams)
	}
	p := e.profile
	n := p.FrameSize()
	frames := int(int64(audio)*int64(p.SampleRate)/int64(time.Second)) / n * n
	pcm, err := testsignal.Generate(kind, p.SampleRate, frames, p.Channels)
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		results []benchResult
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for range streams {
		id := uuid.NewString()
		g.Go(func() error {
			log := e.log.With("stream_id", id)
			enc, err := p.NewEncoder(opuscore.WithLogger(log), opuscore.WithMetrics(e.metrics))
			if err != nil {
				return err
			}
			dec, err := p.NewDecoder(opuscore.WithLogger(log), opuscore.WithMetrics(e.metrics))
			if err != nil {
				return err
			}
			r := benchResult{id: id, audio: time.Duration(frames) * time.Second / time.Duration(p.SampleRate)}
			start := time.Now()
			step := n * p.Channels
			for off := 0; off < len(pcm); off += step {
				if err := ctx.Err(); err != nil {
					return err
				}
				packet, err := enc.Encode(pcm[off:off+step], n)
				if err != nil {
					return fmt.Errorf("stream %s: encode: %w", id, err)
				}
				if _, err := dec.Decode(packet); err != nil {
					return fmt.Errorf("stream %s: decode: %w", id, err)
				}
				r.packets++
				r.bytes += len(packet)
			}
			r.elapsed = time.Since(start)
			log.Debug("stream done", "packets", r.packets, "elapsed", r.elapsed)

			mu.Lock()
			results = append(results, r)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	slices.SortFunc(results, func(a, b benchResult) int { return strings.Compare(a.id, b.id) })
	return results, nil
}
