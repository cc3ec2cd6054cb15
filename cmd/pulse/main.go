package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/fxnlabs/gpu-pulse/internal/config"
	"github.com/fxnlabs/gpu-pulse/internal/logger"
)

// Resolved by the app's Before hook, shared by every command action.
var (
	cfg        *config.Config
	rootLogger *zap.Logger
)

func main() {
	var configPath string

	app := &cli.App{
		Name:  "gpu-pulse",
		Usage: "A single-shot GPU health check: compute pulse and peer bandwidth probe",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Value:       "config.yaml",
				Usage:       "Path to the pulse config file (defaults apply when absent)",
				EnvVars:     []string{"PULSE_CONFIG"},
				Destination: &configPath,
			},
		},
		Before: func(c *cli.Context) error {
			var err error
			if _, statErr := os.Stat(configPath); statErr == nil {
				cfg, err = config.Load(configPath)
				if err != nil {
					return err
				}
			} else {
				cfg = config.Default()
			}
			zapLogger, err := logger.New(cfg.Logger.Verbosity)
			if err != nil {
				return err
			}
			rootLogger = zapLogger.Named("cli")
			return nil
		},
		Commands: []*cli.Command{
			devicesCommand(),
			computeCommand(),
			peerCommand(),
			sweepCommand(),
			configCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		if rootLogger != nil {
			rootLogger.Fatal("command failed", zap.Error(err))
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
}
