package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/shpitdev/places-enricher/pkg/places"
	"github.com/shpitdev/places-enricher/pkg/redact"
)

// tracedClient logs one request and one response line per provider call.
type tracedClient struct {
	next           places.Client
	log            zerolog.Logger
	requestTimeout time.Duration

	mu    sync.Mutex
	sends map[string]int
}

func newTracedClient(next places.Client, log zerolog.Logger, requestTimeout time.Duration) *tracedClient {
	return &tracedClient{
		next:           next,
		log:            log,
		requestTimeout: requestTimeout,
		sends:          make(map[string]int),
	}
}

func (t *tracedClient) Search(ctx context.Context, req places.SearchRequest) (places.Place, bool, error) {
	send := t.nextSend(req.Query)

	deadlineIn := "none"
	if d, ok := ctx.Deadline(); ok {
		deadlineIn = time.Until(d).Round(time.Millisecond).String()
	}
	ev := t.log.Debug().
		Str("query", req.Query).
		Int("send", send).
		Dur("timeout", t.requestTimeout).
		Str("deadlineIn", deadlineIn)
	if req.Bias != nil {
		ev = ev.Float64("biasLat", req.Bias.Center.Lat).Float64("biasLon", req.Bias.Center.Lon)
	}
	ev.Msg("places request")

	start := time.Now()
	p, found, err := t.next.Search(ctx, req)
	elapsed := time.Since(start).Round(time.Millisecond)

	if err != nil {
		t.log.Warn().
			Str("query", req.Query).
			Int("send", send).
			Dur("duration", elapsed).
			Bool("transient", isTransient(err)).
			Str("error", redact.Error(err)).
			Msg("places response: error")
		return p, found, err
	}
	t.log.Debug().
		Str("query", req.Query).
		Int("send", send).
		Dur("duration", elapsed).
		Bool("found", found).
		Str("name", p.Name).
		Str("address", p.Address).
		Msg("places response")
	return p, found, nil
}

func (t *tracedClient) Geocode(ctx context.Context, address string) (places.Coordinates, bool, error) {
	start := time.Now()
	c, found, err := t.next.Geocode(ctx, address)
	ev := t.log.Debug()
	if err != nil {
		ev = t.log.Warn().Str("error", redact.Error(err))
	}
	ev.Str("address", address).
		Dur("duration", time.Since(start).Round(time.Millisecond)).
		Bool("found", found).
		Msg("geocode response")
	return c, found, err
}

// nextSend counts how often the same query text went out during the run.
func (t *tracedClient) nextSend(query string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sends[query]++
	return t.sends[query]
}

func isTransient(err error) bool {
	var re *places.RequestError
	if !errors.As(err, &re) {
		return false
	}
	return re.Transient
}
