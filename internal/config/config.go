// Package config loads run configuration from defaults, an optional YAML file,
// the environment (optionally seeded from a .env file) and explicit overrides,
// in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/shpitdev/places-enricher/internal/logging"
	"github.com/shpitdev/places-enricher/pkg/places"
)

// EnvPrefix prefixes every non-credential environment variable, e.g.
// ENRICHER_WORKERS or ENRICHER_BIAS_ADDRESS.
const EnvPrefix = "ENRICHER"

const (
	ProviderGoogle = "google"
	ProviderAzure  = "azure"
	ProviderGemini = "gemini"
)

// Credential environment variables. They are never read from the config file.
const (
	EnvGoogleAPIKey = "GOOGLE_MAPS_API_KEY"
	EnvAzureKey     = "SUBSCRIPTION_KEY"
	EnvGeminiAPIKey = "GEMINI_API_KEY"
)

const DefaultRequestTimeout = 30 * time.Second

type Config struct {
	Provider          string
	Workers           int
	RequestsPerMinute float64
	RequestTimeout    time.Duration
	Fields            places.FieldSet

	Columns  Columns
	Bias     Bias
	Google   Google
	Azure    Azure
	Gemini   Gemini
	Log      logging.Config
	Postgres Postgres
}

// Columns names the input columns the enricher reads.
type Columns struct {
	ID   string
	URL  string
	Name string
}

type Bias struct {
	// Address is geocoded once per run; empty disables location bias.
	Address      string
	RadiusMeters float64
}

type Google struct {
	APIKey         string
	BaseURL        string
	GeocodeBaseURL string
}

type Azure struct {
	SubscriptionKey string
	BaseURL         string
	CountrySet      string
}

type Gemini struct {
	APIKey  string
	Model   string
	BaseURL string
}

type Postgres struct {
	Table string
}

// Options controls where Load looks.
type Options struct {
	// File is an optional YAML config file. A missing file is an error.
	File string
	// EnvFile is a dotenv file loaded into the process environment first.
	// A missing file is ignored.
	EnvFile string
	// Overrides are explicit values (command-line flags) keyed like the
	// config file, e.g. "bias.address".
	Overrides map[string]any
}

// Error is a configuration problem detected before any work starts.
type Error struct {
	Key string
	Err error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return "config: " + e.Err.Error()
	}
	return fmt.Sprintf("config %s: %s", e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func errorf(key, format string, args ...any) *Error {
	return &Error{Key: key, Err: fmt.Errorf(format, args...)}
}

// IsError reports whether err is (or wraps) a configuration error.
func IsError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}

func defaults(v *viper.Viper) {
	v.SetDefault("provider", ProviderGoogle)
	v.SetDefault("workers", 4)
	v.SetDefault("requests_per_minute", 0)
	v.SetDefault("request_timeout", DefaultRequestTimeout)
	v.SetDefault("fields", []string{})
	v.SetDefault("columns.id", "OID")
	v.SetDefault("columns.url", "facility_url")
	v.SetDefault("columns.name", "facility_name")
	v.SetDefault("bias.address", "")
	v.SetDefault("bias.radius_meters", places.DefaultBiasRadiusMeters)
	v.SetDefault("azure.country_set", "")
	v.SetDefault("google.base_url", "")
	v.SetDefault("google.geocode_base_url", "")
	v.SetDefault("azure.base_url", "")
	v.SetDefault("gemini.model", "")
	v.SetDefault("gemini.base_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logging.FormatConsole)
	v.SetDefault("postgres.table", "enriched_places")
}

// Load resolves the configuration. Credentials are read but not required
// here; see RequireCredentials.
func Load(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !os.IsNotExist(err) {
			return nil, &Error{Key: "env", Err: fmt.Errorf("load %s: %w", opts.EnvFile, err)}
		}
	}

	v := viper.New()
	defaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The gemini model and base URL also honour the unprefixed names the
	// genai tooling uses.
	_ = v.BindEnv("gemini.model", EnvPrefix+"_GEMINI_MODEL", "GEMINI_MODEL")
	_ = v.BindEnv("gemini.base_url", EnvPrefix+"_GEMINI_BASE_URL", "GEMINI_BASE_URL")

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, &Error{Key: "file", Err: fmt.Errorf("read %s: %w", opts.File, err)}
		}
	}
	for k, val := range opts.Overrides {
		v.Set(k, val)
	}

	fields, err := places.ParseFields(v.GetStringSlice("fields"))
	if err != nil {
		return nil, &Error{Key: "fields", Err: err}
	}

	cfg := &Config{
		Provider:          strings.ToLower(strings.TrimSpace(v.GetString("provider"))),
		Workers:           v.GetInt("workers"),
		RequestsPerMinute: v.GetFloat64("requests_per_minute"),
		RequestTimeout:    v.GetDuration("request_timeout"),
		Fields:            fields,
		Columns: Columns{
			ID:   strings.TrimSpace(v.GetString("columns.id")),
			URL:  strings.TrimSpace(v.GetString("columns.url")),
			Name: strings.TrimSpace(v.GetString("columns.name")),
		},
		Bias: Bias{
			Address:      strings.TrimSpace(v.GetString("bias.address")),
			RadiusMeters: v.GetFloat64("bias.radius_meters"),
		},
		Google: Google{
			APIKey:         strings.TrimSpace(os.Getenv(EnvGoogleAPIKey)),
			BaseURL:        v.GetString("google.base_url"),
			GeocodeBaseURL: v.GetString("google.geocode_base_url"),
		},
		Azure: Azure{
			SubscriptionKey: strings.TrimSpace(os.Getenv(EnvAzureKey)),
			BaseURL:         v.GetString("azure.base_url"),
			CountrySet:      v.GetString("azure.country_set"),
		},
		Gemini: Gemini{
			APIKey:  strings.TrimSpace(os.Getenv(EnvGeminiAPIKey)),
			Model:   strings.TrimSpace(v.GetString("gemini.model")),
			BaseURL: v.GetString("gemini.base_url"),
		},
		Log: logging.Config{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Postgres: Postgres{
			Table: strings.TrimSpace(v.GetString("postgres.table")),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Provider {
	case ProviderGoogle, ProviderAzure, ProviderGemini:
	default:
		return errorf("provider", "unknown provider %q (expected google|azure|gemini)", c.Provider)
	}
	if c.Workers < 1 {
		return errorf("workers", "must be >= 1, got %d", c.Workers)
	}
	if c.RequestsPerMinute < 0 {
		return errorf("requests_per_minute", "must be >= 0, got %v", c.RequestsPerMinute)
	}
	if c.RequestTimeout < 0 {
		return errorf("request_timeout", "must be >= 0, got %s", c.RequestTimeout)
	}
	if c.Bias.RadiusMeters < 0 {
		return errorf("bias.radius_meters", "must be >= 0, got %v", c.Bias.RadiusMeters)
	}
	if c.Columns.ID == "" {
		return errorf("columns.id", "must not be empty")
	}
	if c.Columns.URL == "" && c.Columns.Name == "" {
		return errorf("columns", "at least one of columns.url and columns.name is required")
	}
	if err := c.Log.Validate(); err != nil {
		return &Error{Key: "log", Err: err}
	}
	return nil
}

// RequireCredentials fails when the selected provider's credential is unset.
func (c *Config) RequireCredentials() error {
	switch c.Provider {
	case ProviderGoogle:
		if c.Google.APIKey == "" {
			return errorf("credentials", "%s is required for provider %s", EnvGoogleAPIKey, c.Provider)
		}
	case ProviderAzure:
		if c.Azure.SubscriptionKey == "" {
			return errorf("credentials", "%s is required for provider %s", EnvAzureKey, c.Provider)
		}
	case ProviderGemini:
		if c.Gemini.APIKey == "" {
			return errorf("credentials", "%s is required for provider %s", EnvGeminiAPIKey, c.Provider)
		}
		if c.Gemini.Model == "" {
			return errorf("gemini.model", "GEMINI_MODEL (or gemini.model) is required for provider gemini")
		}
	}
	return nil
}
