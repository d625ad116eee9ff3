// Package logging builds the zerolog logger used across a run.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

type Config struct {
	Level  string
	Format string
}

// Validate checks the level and format without building anything.
func (c Config) Validate() error {
	if _, err := c.level(); err != nil {
		return err
	}
	switch c.format() {
	case FormatConsole, FormatJSON:
		return nil
	default:
		return fmt.Errorf("unknown log format %q (expected console|json)", c.Format)
	}
}

func (c Config) level() (zerolog.Level, error) {
	s := strings.TrimSpace(strings.ToLower(c.Level))
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}
	return lvl, nil
}

func (c Config) format() string {
	s := strings.TrimSpace(strings.ToLower(c.Format))
	if s == "" {
		return FormatConsole
	}
	return s
}

// New returns a logger writing to w with a timestamp on every line.
func New(c Config, w io.Writer) (zerolog.Logger, error) {
	if err := c.Validate(); err != nil {
		return zerolog.Nop(), err
	}
	lvl, _ := c.level()
	out := w
	if c.format() == FormatConsole {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}
