// Package worker runs the bounded pool that resolves enrichment work items
// against a places provider.
package worker

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shpitdev/places-enricher/internal/enrich"
	"github.com/shpitdev/places-enricher/internal/enrich/queue"
	"github.com/shpitdev/places-enricher/pkg/places"
	"github.com/shpitdev/places-enricher/pkg/ratelimit"
)

const DefaultWorkers = 4

type Options struct {
	Workers int

	// RequestTimeout bounds each provider call. <=0 leaves only the transport's
	// own timeout in place.
	RequestTimeout time.Duration

	// Limiter is shared by all workers (and any other caller of the provider).
	// nil disables rate limiting.
	Limiter *ratelimit.Limiter

	Bias   *places.Bias
	Fields places.FieldSet

	// OnAttempt and OnResolved are called from worker goroutines and must be
	// safe for concurrent use.
	OnAttempt  func(enrich.Attempt)
	OnResolved func(enrich.Resolution)
}

// Output is what a completed run produced. Results are in completion order.
type Output struct {
	Results []enrich.Result
	Stats   enrich.Stats
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.Fields == nil {
		o.Fields = places.NewFieldSet()
	}
	return o
}

// Run resolves every item: each worker claims an item, issues the query at its
// cursor and either records a match, re-enqueues the item with its next
// fallback query, or drops it once the queries are exhausted.
//
// Per-item failures never abort the run. Run only fails when ctx ends.
func Run(ctx context.Context, items []queue.WorkItem, searcher places.Searcher, opts Options) (Output, error) {
	opts = opts.withDefaults()
	start := time.Now()

	p := &pool{
		searcher: searcher,
		opts:     opts,
		q:        queue.New(),
		seen:     make(map[string]struct{}),
	}
	p.stats.Items = len(items)

	for _, it := range items {
		if it.Remaining() == 0 {
			p.resolve(enrich.Resolution{ID: it.ID, Attempts: it.Attempted})
			continue
		}
		p.q.Push(it)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < opts.Workers; i++ {
		g.Go(func() error {
			return p.work(gctx)
		})
	}
	if err := g.Wait(); err != nil {
		return Output{}, err
	}
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.Duration = time.Since(start)
	return Output{Results: p.results, Stats: p.stats}, nil
}

type pool struct {
	searcher places.Searcher
	opts     Options
	q        *queue.Queue

	mu      sync.Mutex
	results []enrich.Result
	seen    map[string]struct{}
	stats   enrich.Stats
}

func (p *pool) work(ctx context.Context) error {
	for {
		item, closed, err := p.q.Pop(ctx)
		if err != nil {
			return err
		}
		if closed {
			return nil
		}
		err = p.process(ctx, item)
		p.q.Done()
		if err != nil {
			return err
		}
	}
}

// process issues one query for item. A re-enqueue happens before the caller's
// Done, so the queue never looks drained while a fallback is pending.
func (p *pool) process(ctx context.Context, item queue.WorkItem) error {
	query, _ := item.Current()
	number := item.Attempted + 1

	if err := p.opts.Limiter.Wait(ctx); err != nil {
		return err
	}

	reqCtx := ctx
	var cancel context.CancelFunc
	if p.opts.RequestTimeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, p.opts.RequestTimeout)
	}
	begin := time.Now()
	place, found, err := p.searcher.Search(reqCtx, places.SearchRequest{
		Query:  query,
		Bias:   p.opts.Bias,
		Fields: p.opts.Fields,
	})
	elapsed := time.Since(begin)
	if cancel != nil {
		cancel()
	}
	if ctx.Err() != nil {
		// The run is being torn down; this attempt says nothing about the item.
		return ctx.Err()
	}

	att := enrich.Attempt{
		ID:       item.ID,
		Query:    query,
		Number:   number,
		Duration: elapsed,
	}
	switch {
	case err != nil:
		att.Outcome = enrich.OutcomeRequestError
		att.Err = err
	case found:
		att.Outcome = enrich.OutcomeMatched
	default:
		att.Outcome = enrich.OutcomeNoMatch
	}

	if att.Outcome == enrich.OutcomeMatched {
		p.record(att, enrich.Result{ID: item.ID, Place: place, Query: query, Attempt: number})
		p.resolve(enrich.Resolution{ID: item.ID, Matched: true, Attempts: number, Last: att.Outcome})
		return nil
	}

	if item.HasNext() {
		att.Requeued = true
		p.record(att, enrich.Result{})
		p.q.Push(item.Advance())
		return nil
	}
	p.record(att, enrich.Result{})
	p.resolve(enrich.Resolution{ID: item.ID, Attempts: number, Last: att.Outcome})
	return nil
}

func (p *pool) record(att enrich.Attempt, res enrich.Result) {
	p.mu.Lock()
	p.stats.Attempts++
	switch att.Outcome {
	case enrich.OutcomeMatched:
		// First success per identifier wins; duplicates in the input resolve
		// to the earliest match.
		if _, dup := p.seen[res.ID]; !dup {
			p.seen[res.ID] = struct{}{}
			p.results = append(p.results, res)
		}
	case enrich.OutcomeNoMatch:
		p.stats.NoMatches++
	case enrich.OutcomeRequestError:
		p.stats.RequestErrors++
	}
	if att.Requeued {
		p.stats.Fallbacks++
	}
	p.mu.Unlock()

	if p.opts.OnAttempt != nil {
		p.opts.OnAttempt(att)
	}
}

func (p *pool) resolve(r enrich.Resolution) {
	p.mu.Lock()
	if r.Matched {
		p.stats.Matched++
	} else {
		p.stats.Exhausted++
	}
	p.mu.Unlock()

	if p.opts.OnResolved != nil {
		p.opts.OnResolved(r)
	}
}
