package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/shpitdev/places-enricher/pkg/redact"
)

// RequestError is a failed outbound provider call: a transport failure
// (StatusCode 0) or a non-2xx / error-status API response.
//
// Do not put raw response bodies here; Snippet is redacted and truncated.
type RequestError struct {
	Provider   string
	Op         string
	StatusCode int
	Status     string
	// Transient marks failures that would likely succeed later (429, 5xx, timeouts).
	Transient bool
	Snippet   string
	Err       error
}

func (e *RequestError) Error() string {
	if e == nil {
		return "places request error"
	}
	parts := []string{fmt.Sprintf("%s %s failed", strings.TrimSpace(e.Provider), strings.TrimSpace(e.Op))}
	if e.StatusCode != 0 {
		parts = append(parts, "status="+strings.TrimSpace(e.Status))
	} else if strings.TrimSpace(e.Status) != "" {
		parts = append(parts, "apiStatus="+strings.TrimSpace(e.Status))
	}
	if strings.TrimSpace(e.Snippet) != "" {
		parts = append(parts, "body="+strings.TrimSpace(e.Snippet))
	}
	if e.Err != nil {
		parts = append(parts, redact.Error(e.Err))
	}
	return strings.Join(parts, " ")
}

func (e *RequestError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// TransportError wraps a failure that happened before any response arrived.
func TransportError(provider, op string, err error) *RequestError {
	return &RequestError{
		Provider:  provider,
		Op:        op,
		Transient: isTransientNetErr(err),
		Err:       err,
	}
}

// StatusError builds a RequestError from a non-2xx response.
func StatusError(provider, op string, resp *http.Response, body []byte) *RequestError {
	e := &RequestError{Provider: provider, Op: op}
	if resp != nil {
		e.StatusCode = resp.StatusCode
		e.Status = resp.Status
		e.Transient = resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode/100 == 5
	}
	e.Snippet = redactAndTruncate(body)
	return e
}

// IsRequestError reports whether err is (or wraps) a *RequestError.
func IsRequestError(err error) bool {
	var re *RequestError
	return errors.As(err, &re)
}

func isTransientNetErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}

// DoJSON sends req, checks for a 2xx status and decodes the body into out.
func DoJSON(hc *http.Client, provider, op string, req *http.Request, out any) error {
	resp, err := hc.Do(req)
	if err != nil {
		return TransportError(provider, op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := readAllLimited(resp)
	if err != nil {
		return TransportError(provider, op, err)
	}
	if resp.StatusCode/100 != 2 {
		return StatusError(provider, op, resp, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &RequestError{
			Provider:   provider,
			Op:         op,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Snippet:    redactAndTruncate(body),
			Err:        fmt.Errorf("parse response: %w", err),
		}
	}
	return nil
}

func redactAndTruncate(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	// Keep this small: response bodies can contain sensitive data.
	const max = 256
	b := body
	if len(b) > max {
		b = b[:max]
	}
	s := redact.Secrets(string(b))
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(body) > max {
		return s + "..."
	}
	return s
}

// maxBodyBytes caps how much of a provider response is buffered.
const maxBodyBytes = 8 << 20

func readAllLimited(resp *http.Response) ([]byte, error) {
	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}
