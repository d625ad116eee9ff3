package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shpitdev/places-enricher/internal/config"
	"github.com/shpitdev/places-enricher/pkg/places"
)

// clearEnv blanks every variable Load may read so the host environment does
// not leak into the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		config.EnvGoogleAPIKey, config.EnvAzureKey, config.EnvGeminiAPIKey,
		"GEMINI_MODEL", "GEMINI_BASE_URL",
		"ENRICHER_PROVIDER", "ENRICHER_WORKERS", "ENRICHER_REQUESTS_PER_MINUTE",
		"ENRICHER_REQUEST_TIMEOUT", "ENRICHER_BIAS_ADDRESS", "ENRICHER_FIELDS",
	} {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load(config.Options{})
	require.NoError(t, err)
	assert.Equal(t, config.ProviderGoogle, cfg.Provider)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, float64(0), cfg.RequestsPerMinute)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, places.NewFieldSet(), cfg.Fields)
	assert.Equal(t, config.Columns{ID: "OID", URL: "facility_url", Name: "facility_name"}, cfg.Columns)
	assert.Equal(t, float64(places.DefaultBiasRadiusMeters), cfg.Bias.RadiusMeters)
	assert.Equal(t, "enriched_places", cfg.Postgres.Table)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_Precedence(t *testing.T) {
	clearEnv(t)

	file := writeFile(t, "enricher.yaml", `
provider: azure
workers: 2
requests_per_minute: 30
request_timeout: 5s
fields: [name, phone]
columns:
  id: facility_id
bias:
  address: Tokyo Station
azure:
  country_set: JP
`)
	t.Setenv("ENRICHER_WORKERS", "6")
	t.Setenv("ENRICHER_REQUESTS_PER_MINUTE", "45")

	cfg, err := config.Load(config.Options{
		File:      file,
		Overrides: map[string]any{"requests_per_minute": 90.0},
	})
	require.NoError(t, err)

	assert.Equal(t, config.ProviderAzure, cfg.Provider, "file beats default")
	assert.Equal(t, 6, cfg.Workers, "env beats file")
	assert.Equal(t, float64(90), cfg.RequestsPerMinute, "override beats env")
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, places.NewFieldSet(places.FieldName, places.FieldPhone), cfg.Fields)
	assert.Equal(t, "facility_id", cfg.Columns.ID)
	assert.Equal(t, "facility_url", cfg.Columns.URL, "unset nested keys keep defaults")
	assert.Equal(t, "Tokyo Station", cfg.Bias.Address)
	assert.Equal(t, "JP", cfg.Azure.CountrySet)
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)

	env := writeFile(t, ".env", "GOOGLE_MAPS_API_KEY=from-dotenv\nGEMINI_MODEL=gemini-2.5-flash\n")
	cfg, err := config.Load(config.Options{EnvFile: env})
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Google.APIKey)
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
	require.NoError(t, cfg.RequireCredentials())
}

func TestLoad_MissingEnvFileIsIgnored(t *testing.T) {
	clearEnv(t)

	_, err := config.Load(config.Options{EnvFile: filepath.Join(t.TempDir(), "absent.env")})
	require.NoError(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name      string
		overrides map[string]any
		key       string
	}{
		{name: "provider", overrides: map[string]any{"provider": "bing"}, key: "provider"},
		{name: "workers", overrides: map[string]any{"workers": 0}, key: "workers"},
		{name: "rpm", overrides: map[string]any{"requests_per_minute": -1.0}, key: "requests_per_minute"},
		{name: "fields", overrides: map[string]any{"fields": []string{"name", "rating"}}, key: "fields"},
		{name: "log format", overrides: map[string]any{"log.format": "xml"}, key: "log"},
		{name: "id column", overrides: map[string]any{"columns.id": " "}, key: "columns.id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(config.Options{Overrides: tt.overrides})
			require.Error(t, err)
			require.True(t, config.IsError(err), "want *config.Error, got %T", err)
			var ce *config.Error
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.key, ce.Key)
		})
	}

	_, err := config.Load(config.Options{File: filepath.Join(t.TempDir(), "missing.yaml")})
	require.True(t, config.IsError(err))
}

func TestRequireCredentials(t *testing.T) {
	clearEnv(t)

	for _, provider := range []string{config.ProviderGoogle, config.ProviderAzure, config.ProviderGemini} {
		cfg, err := config.Load(config.Options{Overrides: map[string]any{"provider": provider}})
		require.NoError(t, err)
		err = cfg.RequireCredentials()
		require.Error(t, err, provider)
		assert.True(t, config.IsError(err))
	}

	t.Setenv(config.EnvAzureKey, "az-key")
	cfg, err := config.Load(config.Options{Overrides: map[string]any{"provider": "AZURE"}})
	require.NoError(t, err)
	assert.Equal(t, "az-key", cfg.Azure.SubscriptionKey)
	require.NoError(t, cfg.RequireCredentials())
}
