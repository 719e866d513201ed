package main

import (
	"os"
	"os/signal"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/storozhukBM/hookarena/lib/arena"
	"github.com/storozhukBM/hookarena/lib/replay"
)

var (
	poolSizeFlag = &cli.UintFlag{
		Name:  "pool-size",
		Usage: "arena pool size in bytes, overrides arena.pool_size",
	}
	noVerifyFlag = &cli.BoolFlag{
		Name:  "no-verify",
		Usage: "skip block content verification",
	}
	replayCommand = &cli.Command{
		Name:      "replay",
		Usage:     "replay an allocation trace through the arena hook",
		ArgsUsage: "<trace>",
		Flags: []cli.Flag{
			poolSizeFlag,
			noVerifyFlag,
		},
		Action: replayTrace,
	}
)

func replayTrace(ctx *cli.Context) error {
	if ctx.Args().Len() != 1 {
		return errors.New("replay expects exactly one trace file")
	}
	cfg, cfgErr := loadConfig(ctx)
	if cfgErr != nil {
		return cfgErr
	}
	if ctx.IsSet(poolSizeFlag.Name) {
		cfg.Arena.PoolSize = ctx.Uint(poolSizeFlag.Name)
		if validationErr := cfg.Validate(); validationErr != nil {
			return errors.Wrap(validationErr, "invalid flags")
		}
	}

	path := ctx.Args().First()
	file, openErr := os.Open(path)
	if openErr != nil {
		return errors.Wrap(openErr, "can't open trace")
	}
	defer file.Close()
	trace, parseErr := replay.Parse(file)
	if parseErr != nil {
		return errors.Wrapf(parseErr, "can't parse trace %v", path)
	}

	logger := log.Root().New("module", "arena")
	// failures are reported by the replay instead of terminating the process
	keepGoing := func(err error) {
		logger.Error("Allocation failed", "err", err)
	}
	heapOpts := cfg.HeapOptions(logger)
	heapOpts.FatalHandler = keepGoing
	heap := arena.NewHeapAllocator(heapOpts)
	fixedOpts := cfg.FixedOptions(heap, logger)
	fixedOpts.FatalHandler = keepGoing
	pool := arena.NewFixedAllocator(arena.NewAlignedBuffer(int(cfg.Arena.PoolSize), uintptr(cfg.Arena.Alignment)), fixedOpts)

	runCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt)
	defer stop()
	replayer := &replay.Replayer{
		Hook:      arena.Hook,
		UserState: pool.UserState(),
		Reset:     pool.Reset,
		Verify:    !ctx.Bool(noVerifyFlag.Name),
		Logger:    log.Root().New("module", "replay"),
	}
	report, runErr := replayer.Run(runCtx, trace)
	renderReport(ctx.App.Writer, path, report, pool.EnhancedMetrics())
	if runErr != nil {
		return errors.Wrapf(runErr, "replay of %v failed", path)
	}
	return nil
}
