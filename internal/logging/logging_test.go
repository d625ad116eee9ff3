package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, err := New(Config{Level: "debug", Format: "JSON"}, &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Debug().Str("run", "abc").Msg("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not JSON: %q", buf.String())
	}
	if line["run"] != "abc" || line["message"] != "hello" || line["level"] != "debug" {
		t.Fatalf("unexpected line: %#v", line)
	}
	if _, ok := line["time"]; !ok {
		t.Fatalf("missing timestamp: %#v", line)
	}
}

func TestNew_LevelFilters(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, err := New(Config{Level: "warn"}, &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info().Msg("quiet")
	log.Warn().Msg("loud")
	if strings.Contains(buf.String(), "quiet") || !strings.Contains(buf.String(), "loud") {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	if err := (Config{}).Validate(); err != nil {
		t.Fatalf("zero config should be valid: %v", err)
	}
	if err := (Config{Level: "loud"}).Validate(); err == nil {
		t.Fatalf("expected level error")
	}
	if err := (Config{Format: "xml"}).Validate(); err == nil {
		t.Fatalf("expected format error")
	}
}
