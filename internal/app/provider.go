package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/shpitdev/places-enricher/internal/config"
	"github.com/shpitdev/places-enricher/pkg/places"
	"github.com/shpitdev/places-enricher/pkg/places/azure"
	"github.com/shpitdev/places-enricher/pkg/places/gemini"
	"github.com/shpitdev/places-enricher/pkg/places/google"
)

// NewClient builds the places client for the configured provider. Missing
// credentials are reported as *config.Error.
func NewClient(ctx context.Context, cfg *config.Config) (places.Client, error) {
	if err := cfg.RequireCredentials(); err != nil {
		return nil, err
	}
	var (
		client places.Client
		err    error
	)
	switch cfg.Provider {
	case config.ProviderGoogle:
		client, err = newGoogle(cfg)
	case config.ProviderAzure:
		client, err = newAzure(cfg)
	case config.ProviderGemini:
		client, err = newGemini(ctx, cfg)
	default:
		return nil, &config.Error{Key: "provider", Err: fmt.Errorf("unknown provider %q", cfg.Provider)}
	}
	if err != nil {
		return nil, &config.Error{Key: cfg.Provider, Err: err}
	}
	return client, nil
}

func newGoogle(cfg *config.Config) (places.Client, error) {
	c, err := google.New(google.Config{
		APIKey:         cfg.Google.APIKey,
		PlacesBaseURL:  cfg.Google.BaseURL,
		GeocodeBaseURL: cfg.Google.GeocodeBaseURL,
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func newAzure(cfg *config.Config) (places.Client, error) {
	var countries []string
	if s := strings.TrimSpace(cfg.Azure.CountrySet); s != "" {
		countries = strings.Split(s, ",")
	}
	c, err := azure.New(azure.Config{
		SubscriptionKey: cfg.Azure.SubscriptionKey,
		BaseURL:         cfg.Azure.BaseURL,
		CountrySet:      countries,
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func newGemini(ctx context.Context, cfg *config.Config) (places.Client, error) {
	c, err := gemini.New(ctx, gemini.Config{
		APIKey:  cfg.Gemini.APIKey,
		Model:   cfg.Gemini.Model,
		BaseURL: cfg.Gemini.BaseURL,
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
