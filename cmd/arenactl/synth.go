package main

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/storozhukBM/hookarena/lib/replay"
)

var (
	eventsFlag = &cli.IntFlag{
		Name:  "events",
		Usage: "number of events before the closing frees",
		Value: 10000,
	}
	seedFlag = &cli.Int64Flag{
		Name:  "seed",
		Usage: "random seed, the same seed produces the same trace",
		Value: 1,
	}
	resetEveryFlag = &cli.IntFlag{
		Name:  "reset-every",
		Usage: "emit an arena reset after every N events, 0 disables resets",
	}
	keepAliveFlag = &cli.BoolFlag{
		Name:  "keep-alive",
		Usage: "don't free live blocks at the end of the trace",
	}
	outFlag = &cli.PathFlag{
		Name:      "out",
		Usage:     "output file, stdout if empty",
		TakesFile: true,
	}
	synthCommand = &cli.Command{
		Name:  "synth",
		Usage: "generate a synthetic interpreter allocation trace",
		Flags: []cli.Flag{
			eventsFlag,
			seedFlag,
			resetEveryFlag,
			keepAliveFlag,
			outFlag,
		},
		Action: synthesizeTrace,
	}
)

func synthesizeTrace(ctx *cli.Context) error {
	cfg, cfgErr := loadConfig(ctx)
	if cfgErr != nil {
		return cfgErr
	}
	if ctx.Int(eventsFlag.Name) < 0 {
		return errors.Errorf("events can't be negative. actual value: %d", ctx.Int(eventsFlag.Name))
	}
	trace := replay.Synthesize(replay.SynthOptions{
		Events:       ctx.Int(eventsFlag.Name),
		Seed:         ctx.Int64(seedFlag.Name),
		MinBlockSize: uintptr(cfg.Arena.MinBlockSize),
		ResetEvery:   ctx.Int(resetEveryFlag.Name),
		KeepAlive:    ctx.Bool(keepAliveFlag.Name),
	})

	var out io.Writer = ctx.App.Writer
	if path := ctx.Path(outFlag.Name); path != "" {
		file, createErr := os.Create(path)
		if createErr != nil {
			return errors.Wrap(createErr, "can't create trace file")
		}
		defer file.Close()
		out = file
	}
	if _, writeErr := trace.WriteTo(out); writeErr != nil {
		return writeErr
	}
	return nil
}
