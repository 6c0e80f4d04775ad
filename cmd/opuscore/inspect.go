package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/thesyncim/opuscore"
)

func inspectCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "print the TOC and frame layout of hex-encoded packets",
		ArgsUsage: "[hex packet...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "read one hex packet per line ('-' for stdin)"},
		},
		Action: func(c *cli.Context) error {
			lines := c.Args().Slice()
			if path := c.String("file"); path != "" {
				more, err := readLines(path)
				if err != nil {
					return err
				}
				lines = append(lines, more...)
			}
			if len(lines) == 0 {
				return cli.Exit("inspect needs packets as arguments or --file", 2)
			}
			bad := 0
			for i, line := range lines {
				if err := inspectPacket(c.App.Writer, i, line); err != nil {
					e.log.Warn("packet rejected", "index", i, "err", err)
					bad++
				}
			}
			if bad > 0 {
				return cli.Exit(fmt.Sprintf("%d of %d packets malformed", bad, len(lines)), 1)
			}
			return nil
		},
	}
}

func readLines(path string) ([]string, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var lines []string
	s := bufio.NewScanner(r)
	for s.Scan() {
		if line := strings.TrimSpace(s.Text()); line != "" && !strings.HasPrefix(line, "#") {
			lines = append(lines, line)
		}
	}
	return lines, s.Err()
}

func inspectPacket(w io.Writer, idx int, text string) error {
	data, err := hex.DecodeString(strings.ReplaceAll(text, " ", ""))
	if err != nil {
		fmt.Fprintf(w, "packet %d: bad hex: %v\n", idx, err)
		return err
	}
	fmt.Fprintf(w, "packet %d: %d bytes\n", idx, len(data))
	if len(data) == 0 {
		fmt.Fprintln(w, "  empty (loss)")
		return nil
	}
	toc := opuscore.ParseTOC(data[0])
	fmt.Fprintf(w, "  toc: config=%d mode=%v bandwidth=%v frame=%.1fms stereo=%v code=%d\n",
		toc.Config, toc.Mode, toc.Bandwidth, float64(toc.FrameSize)/48, toc.Stereo, toc.FrameCode)

	info, err := opuscore.ParsePacket(data)
	if err != nil {
		fmt.Fprintf(w, "  error: %v\n", err)
		return err
	}
	fmt.Fprintf(w, "  frames=%d sizes=%v padding=%d duration=%.1fms\n",
		info.FrameCount, info.FrameSizes, info.Padding, float64(info.Duration())/48)
	return nil
}
