// Package app wires configuration, the places provider, the worker pool and
// table I/O into complete enricher runs.
package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/shpitdev/places-enricher/internal/config"
	"github.com/shpitdev/places-enricher/internal/enrich"
	"github.com/shpitdev/places-enricher/internal/enrich/aggregate"
	"github.com/shpitdev/places-enricher/internal/enrich/queries"
	"github.com/shpitdev/places-enricher/internal/enrich/queue"
	"github.com/shpitdev/places-enricher/internal/enrich/worker"
	"github.com/shpitdev/places-enricher/internal/table"
	"github.com/shpitdev/places-enricher/pkg/places"
	"github.com/shpitdev/places-enricher/pkg/ratelimit"
	"github.com/shpitdev/places-enricher/pkg/redact"
)

// EnrichOptions are the per-invocation inputs of RunEnrich.
type EnrichOptions struct {
	Input string
	// Output is a CSV/XLSX path or a postgres:// DSN.
	Output string
	// Limit keeps the first N input rows; <=0 keeps all.
	Limit int

	// Progress renders a progress bar and the summary table to Stdout.
	Progress bool
	Stdout   io.Writer
}

// Summary describes a finished run.
type Summary struct {
	RunID    string
	Provider string
	Bias     *places.Bias
	Stats    enrich.Stats
	Join     aggregate.Report
	Duration time.Duration
}

// RunEnrich loads the input table, resolves every record against client and
// stores the joined table. Per-record lookup failures never fail the run; I/O
// errors and cancellation do.
func RunEnrich(ctx context.Context, cfg *config.Config, client places.Client, opts EnrichOptions, log zerolog.Logger) (Summary, error) {
	runStart := time.Now()
	sum := Summary{RunID: uuid.NewString(), Provider: cfg.Provider}
	log = log.With().Str("run", sum.RunID).Logger()
	log.Info().
		Str("input", opts.Input).
		Str("output", redact.Secrets(opts.Output)).
		Str("provider", cfg.Provider).
		Int("workers", cfg.Workers).
		Float64("rpm", cfg.RequestsPerMinute).
		Dur("requestTimeout", cfg.RequestTimeout).
		Int("limit", opts.Limit).
		Msg("enrich run start")

	src, err := table.Open(opts.Input)
	if err != nil {
		return sum, err
	}
	readStart := time.Now()
	in, err := src.Load(ctx)
	if err != nil {
		return sum, fmt.Errorf("load input: %w", err)
	}
	in.Limit(opts.Limit)
	log.Info().Int("rows", len(in.Rows)).Dur("duration", time.Since(readStart).Round(time.Millisecond)).Msg("loaded input")

	items, err := buildItems(in, cfg.Columns, log)
	if err != nil {
		return sum, err
	}

	limiter := ratelimit.PerMinute(cfg.RequestsPerMinute)
	traced := newTracedClient(client, log, cfg.RequestTimeout)
	sum.Bias = resolveBias(ctx, traced, limiter, cfg.Bias, log)
	if err := ctx.Err(); err != nil {
		return sum, err
	}

	bar := newProgress(opts.Stdout, len(items), opts.Progress)
	out, err := worker.Run(ctx, items, traced, worker.Options{
		Workers:        cfg.Workers,
		RequestTimeout: cfg.RequestTimeout,
		Limiter:        limiter,
		Bias:           sum.Bias,
		Fields:         cfg.Fields,
		OnAttempt: func(a enrich.Attempt) {
			ev := log.Debug()
			if a.Err != nil {
				ev = ev.Str("error", redact.Error(a.Err))
			}
			ev.Str("id", a.ID).
				Str("query", a.Query).
				Int("attempt", a.Number).
				Str("outcome", string(a.Outcome)).
				Bool("requeued", a.Requeued).
				Dur("duration", a.Duration.Round(time.Millisecond)).
				Msg("attempt")
		},
		OnResolved: func(r enrich.Resolution) {
			if bar != nil {
				_ = bar.Add(1)
			}
			if !r.Matched {
				log.Info().Str("id", r.ID).Int("attempts", r.Attempts).Str("last", string(r.Last)).Msg("no place found")
			}
		},
	})
	if err != nil {
		return sum, fmt.Errorf("enrich: %w", err)
	}
	if bar != nil {
		_ = bar.Finish()
	}
	sum.Stats = out.Stats
	log.Info().
		Int("items", out.Stats.Items).
		Int("matched", out.Stats.Matched).
		Int("exhausted", out.Stats.Exhausted).
		Int("attempts", out.Stats.Attempts).
		Int("requestErrors", out.Stats.RequestErrors).
		Dur("duration", out.Stats.Duration.Round(time.Millisecond)).
		Msg("enrichment complete")

	joined, rep, err := aggregate.Join(in, out.Results, aggregate.Options{IDColumn: cfg.Columns.ID, Fields: cfg.Fields})
	if err != nil {
		return sum, err
	}
	sum.Join = rep

	writeStart := time.Now()
	if err := table.Create(opts.Output, cfg.Postgres.Table).Store(ctx, joined); err != nil {
		return sum, fmt.Errorf("store output: %w", err)
	}
	sum.Duration = time.Since(runStart)
	log.Info().
		Int("rows", len(joined.Rows)).
		Int("orphans", rep.Orphans).
		Dur("writeDuration", time.Since(writeStart).Round(time.Millisecond)).
		Dur("totalDuration", sum.Duration.Round(time.Millisecond)).
		Msg("enrich run complete")

	if opts.Progress && opts.Stdout != nil {
		if err := printSummary(opts.Stdout, sum); err != nil {
			log.Warn().Err(err).Msg("render summary")
		}
	}
	return sum, nil
}

// buildItems creates one work item per input row. Rows without an identifier
// cannot be joined back and are skipped.
func buildItems(in *table.Table, cols config.Columns, log zerolog.Logger) ([]queue.WorkItem, error) {
	idIdx, err := in.MustIndex(cols.ID)
	if err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}
	urlIdx, nameIdx := -1, -1
	if cols.URL != "" {
		urlIdx = in.Index(cols.URL)
	}
	if cols.Name != "" {
		nameIdx = in.Index(cols.Name)
	}
	if urlIdx < 0 && nameIdx < 0 {
		return nil, fmt.Errorf("input: neither %q nor %q column present", cols.URL, cols.Name)
	}

	items := make([]queue.WorkItem, 0, len(in.Rows))
	skipped := 0
	for r := range in.Rows {
		id := strings.TrimSpace(in.At(r, idIdx).Value)
		if id == "" {
			skipped++
			continue
		}
		items = append(items, queue.NewWorkItem(id, queries.Build(in.At(r, urlIdx).Value, in.At(r, nameIdx).Value)))
	}
	if skipped > 0 {
		log.Warn().Int("rows", skipped).Str("column", cols.ID).Msg("skipped rows without identifier")
	}
	return items, nil
}

// resolveBias geocodes the configured address once. Failures are logged and
// the run continues unbiased.
func resolveBias(ctx context.Context, g places.Geocoder, limiter *ratelimit.Limiter, cfg config.Bias, log zerolog.Logger) *places.Bias {
	if cfg.Address == "" {
		return nil
	}
	if err := limiter.Wait(ctx); err != nil {
		return nil
	}
	center, found, err := g.Geocode(ctx, cfg.Address)
	switch {
	case err != nil:
		log.Warn().Str("address", cfg.Address).Str("error", redact.Error(err)).Msg("bias geocode failed; continuing without location bias")
		return nil
	case !found:
		log.Warn().Str("address", cfg.Address).Msg("bias address not found; continuing without location bias")
		return nil
	}
	radius := cfg.RadiusMeters
	if radius <= 0 {
		radius = places.DefaultBiasRadiusMeters
	}
	log.Info().Str("address", cfg.Address).Float64("lat", center.Lat).Float64("lon", center.Lon).Float64("radiusMeters", radius).Msg("location bias")
	return &places.Bias{Center: center, RadiusMeters: radius}
}

// RunGeocode prints "lat,lon" for address.
func RunGeocode(ctx context.Context, client places.Geocoder, address string, w io.Writer) error {
	c, found, err := client.Geocode(ctx, address)
	if err != nil {
		return fmt.Errorf("geocode: %w", err)
	}
	if !found {
		return fmt.Errorf("geocode: no result for %q", address)
	}
	_, err = fmt.Fprintf(w, "%.6f,%.6f\n", c.Lat, c.Lon)
	return err
}
