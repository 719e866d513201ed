// arenactl replays interpreter allocation traces through the fixed arena and reports how it copes.
package main

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/storozhukBM/hookarena/lib/config"
)

var (
	configFlag = &cli.PathFlag{
		Name:      "config",
		Usage:     "TOML configuration file",
		TakesFile: true,
	}
	verbosityFlag = &cli.StringFlag{
		Name:  "verbosity",
		Usage: "log level: trace, debug, info, warn, error, crit",
	}
	colorFlag = &cli.BoolFlag{
		Name:  "color",
		Usage: "colorize log output",
	}
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "arenactl",
		Usage: "fixed arena allocator toolbox",
		Flags: []cli.Flag{
			configFlag,
			verbosityFlag,
			colorFlag,
		},
		Before: setupLogging,
		Commands: []*cli.Command{
			replayCommand,
			synthCommand,
			configCommand,
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration file if given and applies global flag overrides.
func loadConfig(ctx *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if path := ctx.Path(configFlag.Name); path != "" {
		loaded, loadErr := config.Load(path)
		if loadErr != nil {
			return config.Config{}, loadErr
		}
		cfg = loaded
	}
	if ctx.IsSet(verbosityFlag.Name) {
		cfg.Log.Verbosity = ctx.String(verbosityFlag.Name)
	}
	if ctx.IsSet(colorFlag.Name) {
		cfg.Log.Color = ctx.Bool(colorFlag.Name)
	}
	if validationErr := cfg.Validate(); validationErr != nil {
		return config.Config{}, errors.Wrap(validationErr, "invalid flags")
	}
	return cfg, nil
}

func setupLogging(ctx *cli.Context) error {
	cfg, cfgErr := loadConfig(ctx)
	if cfgErr != nil {
		return cfgErr
	}
	lvl, lvlErr := cfg.Level()
	if lvlErr != nil {
		return lvlErr
	}
	log.Root().SetHandler(log.LvlFilterHandler(lvl, log.StreamHandler(ctx.App.ErrWriter, log.TerminalFormat(cfg.Log.Color))))
	return nil
}
