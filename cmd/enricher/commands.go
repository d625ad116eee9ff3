package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/shpitdev/places-enricher/internal/app"
	"github.com/shpitdev/places-enricher/internal/config"
	"github.com/shpitdev/places-enricher/internal/logging"
	"github.com/shpitdev/places-enricher/internal/version"
	"github.com/shpitdev/places-enricher/pkg/redact"
)

// usageError marks bad invocations; they exit 2 like configuration errors.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// run executes the CLI and maps the outcome to an exit code: 0 on success,
// 2 on configuration or usage errors, 1 when the run itself failed.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newCommand(stdout, stderr)
	err := cmd.Run(ctx, args)
	if err == nil {
		return 0
	}
	var ue *usageError
	switch {
	case errors.As(err, &ue), config.IsError(err):
		_, _ = fmt.Fprintf(stderr, "config error: %s\n", redact.Error(err))
		return 2
	default:
		_, _ = fmt.Fprintf(stderr, "run failed: %s\n", redact.Error(err))
		return 1
	}
}

var commonFlags = []cli.Flag{
	&cli.StringFlag{Name: "config", Usage: "YAML config file"},
	&cli.StringFlag{Name: "env", Usage: "dotenv file loaded before reading the environment (missing file is ignored)", Value: ".env"},
	&cli.StringFlag{Name: "provider", Usage: "places provider: google|azure|gemini"},
	&cli.StringFlag{Name: "log-level", Usage: "log level (debug|info|warn|error)"},
	&cli.StringFlag{Name: "log-format", Usage: "log format (console|json)"},
}

// overrideKeys maps flag names to config keys. Only flags set on the command
// line override lower layers.
var overrideKeys = map[string]string{
	"provider":        "provider",
	"log-level":       "log.level",
	"log-format":      "log.format",
	"workers":         "workers",
	"rpm":             "requests_per_minute",
	"request-timeout": "request_timeout",
	"bias-address":    "bias.address",
	"bias-radius":     "bias.radius_meters",
	"fields":          "fields",
	"pg-table":        "postgres.table",
}

func newCommand(stdout, stderr io.Writer) *cli.Command {
	onUsage := func(_ context.Context, _ *cli.Command, err error, _ bool) error {
		return &usageError{msg: err.Error()}
	}
	return &cli.Command{
		Name:         "enricher",
		Usage:        "enrich facility records with place metadata from a places API",
		Version:      version.Current,
		Writer:       stdout,
		ErrWriter:    stderr,
		OnUsageError: onUsage,
		Commands: []*cli.Command{
			{
				Name:         "enrich",
				Usage:        "look up every input record and write the enriched table",
				OnUsageError: onUsage,
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "input CSV or XLSX file"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output CSV/XLSX file or postgres:// DSN"},
					&cli.IntFlag{Name: "limit", Usage: "only process the first N rows (<=0 = all)"},
					&cli.FloatFlag{Name: "rpm", Usage: "max provider requests per minute across all workers (0 = unlimited)"},
					&cli.IntFlag{Name: "workers", Usage: "concurrent workers"},
					&cli.StringFlag{Name: "bias-address", Usage: "address to geocode and bias searches around"},
					&cli.FloatFlag{Name: "bias-radius", Usage: "bias radius in meters"},
					&cli.DurationFlag{Name: "request-timeout", Usage: "per-request timeout (0 = transport default)"},
					&cli.StringFlag{Name: "fields", Usage: "comma-separated place fields (default all)"},
					&cli.StringFlag{Name: "pg-table", Usage: "target table for postgres output"},
					&cli.BoolFlag{Name: "progress", Usage: "show a progress bar and summary table"},
				}, commonFlags...),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return enrichAction(ctx, cmd, stdout, stderr)
				},
			},
			{
				Name:         "geocode",
				Usage:        "print lat,lon for an address",
				OnUsageError: onUsage,
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "address", Usage: "address to geocode"},
				}, commonFlags...),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return geocodeAction(ctx, cmd, stdout, stderr)
				},
			},
			{
				Name:  "version",
				Usage: "print the version",
				Action: func(_ context.Context, _ *cli.Command) error {
					_, err := fmt.Fprintln(stdout, version.Current)
					return err
				},
			},
		},
	}
}

func loadConfig(cmd *cli.Command) (*config.Config, error) {
	overrides := make(map[string]any)
	for flag, key := range overrideKeys {
		if !cmd.IsSet(flag) {
			continue
		}
		switch flag {
		case "workers":
			overrides[key] = cmd.Int(flag)
		case "rpm", "bias-radius":
			overrides[key] = cmd.Float(flag)
		case "request-timeout":
			overrides[key] = cmd.Duration(flag)
		case "fields":
			overrides[key] = strings.Split(cmd.String(flag), ",")
		default:
			overrides[key] = cmd.String(flag)
		}
	}
	return config.Load(config.Options{
		File:      cmd.String("config"),
		EnvFile:   cmd.String("env"),
		Overrides: overrides,
	})
}

func enrichAction(ctx context.Context, cmd *cli.Command, stdout, stderr io.Writer) error {
	input, output := strings.TrimSpace(cmd.String("input")), strings.TrimSpace(cmd.String("output"))
	if input == "" || output == "" {
		return usagef("enrich requires --input and --output")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log, stderr)
	if err != nil {
		return &config.Error{Key: "log", Err: err}
	}
	client, err := app.NewClient(ctx, cfg)
	if err != nil {
		return err
	}

	_, err = app.RunEnrich(ctx, cfg, client, app.EnrichOptions{
		Input:    input,
		Output:   output,
		Limit:    cmd.Int("limit"),
		Progress: cmd.Bool("progress"),
		Stdout:   stdout,
	}, log)
	return err
}

func geocodeAction(ctx context.Context, cmd *cli.Command, stdout, _ io.Writer) error {
	address := strings.TrimSpace(cmd.String("address"))
	if address == "" {
		return usagef("geocode requires --address")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	client, err := app.NewClient(ctx, cfg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, requestTimeout(cfg))
	defer cancel()
	return app.RunGeocode(ctx, client, address, stdout)
}

func requestTimeout(cfg *config.Config) time.Duration {
	if cfg.RequestTimeout > 0 {
		return cfg.RequestTimeout
	}
	return config.DefaultRequestTimeout
}
