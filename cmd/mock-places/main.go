package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/shpitdev/places-enricher/internal/mockplaces"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "mock-places",
		Usage: "serve fake Google Places / Geocoding and Azure Maps endpoints from YAML fixtures",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "listen address",
				Value:   ":8080",
				Sources: cli.EnvVars("MOCK_PLACES_ADDR"),
			},
			&cli.StringFlag{
				Name:    "fixtures",
				Usage:   "YAML fixtures file",
				Value:   "/data/fixtures.yaml",
				Sources: cli.EnvVars("MOCK_PLACES_FIXTURES"),
			},
			&cli.StringFlag{
				Name:    "key",
				Usage:   "require this API key on every request (empty disables the check)",
				Sources: cli.EnvVars("MOCK_PLACES_KEY"),
			},
		},
		Action: serve,
	}
	if err := cmd.Run(ctx, os.Args); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	gin.SetMode(gin.ReleaseMode)

	fixtures, err := mockplaces.LoadFixtures(cmd.String("fixtures"))
	if err != nil {
		return err
	}
	srv := mockplaces.New(fixtures)
	srv.RequireKey(cmd.String("key"))

	hs := &http.Server{
		Addr:              cmd.String("addr"),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = hs.Shutdown(shutdownCtx)
	}()

	log.Info().
		Str("addr", hs.Addr).
		Str("fixtures", cmd.String("fixtures")).
		Int("places", len(fixtures.Places)).
		Int("geocode", len(fixtures.Geocode)).
		Msg("mock-places listening")
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info().Int("calls", len(srv.Calls())).Msg("mock-places stopped")
	return nil
}
