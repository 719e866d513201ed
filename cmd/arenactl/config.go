package main

import (
	"github.com/urfave/cli/v2"
)

var configCommand = &cli.Command{
	Name:  "config",
	Usage: "print the effective configuration",
	Action: func(ctx *cli.Context) error {
		cfg, cfgErr := loadConfig(ctx)
		if cfgErr != nil {
			return cfgErr
		}
		return cfg.Encode(ctx.App.Writer)
	},
}
