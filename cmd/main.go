package main

import (
	"DumpScan/internal"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:      "DumpScan",
		Usage:     "Hex dump, printable strings and file signatures of binary dumps",
		ArgsUsage: "<file|dir>...",
		Flags:     scanFlags(internal.DefaultConfig()),
		Action: func(c *cli.Context) error {
			internal.InitLogger(c.String("logfile"), c.String("log-level"))

			cfg, err := buildConfig(c)
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			opts := internal.ScanOptions{
				Config:           cfg,
				Roots:            c.Args().Slice(),
				SignatureFile:    c.String("signature-file"),
				ConfigFile:       c.String("config"),
				Depth:            c.Int("depth"),
				Archives:         c.Bool("archives"),
				Threads:          c.Int("threads"),
				FailFast:         c.Bool("fail-fast"),
				Progress:         c.Bool("progress"),
				NoHex:            c.Bool("no-hex"),
				NoStrings:        c.Bool("no-strings"),
				NoPatterns:       c.Bool("no-patterns"),
				SaveFindingsFile: c.String("save-findings-file"),
				OutDir:           c.String("out-dir"),
			}
			if err := opts.Validate(); err != nil {
				return cli.Exit(err.Error(), 2)
			}
			opts.Prepare()

			// ctx with timeout + OS signals
			base := context.Background()
			var cancel context.CancelFunc
			if t := c.Duration("timeout"); t > 0 {
				base, cancel = context.WithTimeout(base, t)
			} else {
				base, cancel = context.WithCancel(base)
			}
			defer cancel()
			ctx, stop := signal.NotifyContext(base, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var stats internal.AppStats
			rs := internal.NewResultSink(opts, os.Stdout, &stats)
			scanErr := internal.NewDumpScanner().Scan(ctx, opts, rs)
			if err := rs.Close(); err != nil {
				logrus.WithError(err).Warn("closing outputs")
			}
			fmt.Fprint(os.Stderr, rs.Summary())

			switch {
			case scanErr == nil && stats.Errors.Load() == 0:
				return nil
			case scanErr == nil:
				return cli.Exit("", 1)
			case ctx.Err() != nil:
				logrus.Warn("Scan cancelled")
			default:
				logrus.WithError(scanErr).Error("Scan failed")
			}
			return cli.Exit(scanErr.Error(), 1)
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

// scanFlags are the command line flags, with def supplying the defaults.
func scanFlags(def internal.Config) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "window-size",
			Usage: "Scan window in bytes (should exceed the longest signature)",
			Value: def.WindowSize,
		},
		&cli.IntFlag{
			Name:  "row-size",
			Usage: "Bytes per hex dump row",
			Value: def.BytesPerRow,
		},
		&cli.IntFlag{
			Name:  "min-length",
			Usage: "Minimum printable run length to report (0 is treated as 1)",
			Value: def.MinStringLength,
		},
		&cli.IntFlag{
			Name:  "max-run",
			Usage: "Cap for a single printable run in bytes",
			Value: def.MaxRunLength,
		},
		&cli.StringFlag{
			Name:  "run-policy",
			Usage: "What to do when a run hits --max-run: split or fail",
			Value: string(def.RunPolicy),
		},
		&cli.StringFlag{
			Name:  "signature-file",
			Usage: "Signature table: lines 'NAME=hex:89 50 4E 47' or 'NAME=literal'",
		},
		&cli.StringFlag{
			Name:  "config",
			Usage: "Config file (yaml, json, toml); explicit flags win",
		},
		&cli.BoolFlag{
			Name:  "no-hex",
			Usage: "Skip the hex dump channel",
		},
		&cli.BoolFlag{
			Name:  "no-strings",
			Usage: "Skip the printable strings channel",
		},
		&cli.BoolFlag{
			Name:  "no-patterns",
			Usage: "Skip the signature channel",
		},
		&cli.BoolFlag{
			Name:  "archives",
			Usage: "Scan entries inside archives (.zip,.tar,.gz,.7z,...) instead of the raw archive bytes",
		},
		&cli.IntFlag{
			Name:  "depth",
			Usage: "Max directory depth (0 - unlimited)",
		},
		&cli.IntFlag{
			Name:  "threads",
			Usage: "Sources scanned in parallel",
			Value: 1,
		},
		&cli.BoolFlag{
			Name:  "fail-fast",
			Usage: "Stop on the first source error",
		},
		&cli.StringFlag{
			Name:  "save-findings-file",
			Usage: "Append every string and pattern finding into a single file",
		},
		&cli.StringFlag{
			Name:  "out-dir",
			Usage: "Write per-source .hex/.strings.txt/.patterns.txt files here instead of stdout",
		},
		&cli.BoolFlag{
			Name:  "progress",
			Usage: "Show a progress bar (only with --threads 1)",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Global timeout for scan (e.g. 10m, 1h)",
		},
		&cli.StringFlag{
			Name:  "logfile",
			Usage: "Write logs into file instead of stderr",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
			Value: "warn",
		},
	}
}

// buildConfig layers defaults, the config file, the signature file and
// explicitly set flags, in that order.
func buildConfig(c *cli.Context) (internal.Config, error) {
	cfg := internal.DefaultConfig()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = internal.LoadConfigFile(path, cfg); err != nil {
			return cfg, err
		}
	}
	if path := c.String("signature-file"); path != "" {
		sigs, err := internal.LoadSignatures(path)
		if err != nil {
			return cfg, fmt.Errorf("%w: %w", internal.ErrInvalidConfiguration, err)
		}
		if len(sigs) == 0 {
			return cfg, fmt.Errorf("%w: signature file %s has no signatures", internal.ErrInvalidConfiguration, path)
		}
		cfg.Signatures = sigs
	}
	if c.IsSet("window-size") || c.String("config") == "" {
		cfg.WindowSize = c.Int("window-size")
	}
	if c.IsSet("row-size") || c.String("config") == "" {
		cfg.BytesPerRow = c.Int("row-size")
	}
	if c.IsSet("min-length") || c.String("config") == "" {
		cfg.MinStringLength = c.Int("min-length")
	}
	if c.IsSet("max-run") || c.String("config") == "" {
		cfg.MaxRunLength = c.Int("max-run")
	}
	if c.IsSet("run-policy") || c.String("config") == "" {
		p, err := internal.ParseRunPolicy(c.String("run-policy"))
		if err != nil {
			return cfg, err
		}
		cfg.RunPolicy = p
	}
	return cfg, nil
}
