package blobcache

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/go-meme-report/internal/observability"
)

// Desired is one entry of the target cache content.
type Desired struct {
	ID        string
	SourceURL string
}

// Result lists the keys touched by one reconciliation.
type Result struct {
	Fetched []string // newly cached
	Skipped []string // missing but not fetchable (sentinel thumbnail)
	Failed  []string // fetch or write failed; retried next run
	Evicted []string // removed because no longer desired
}

// Reconciler aligns a Store with a desired set of ids.
type Reconciler struct {
	Store   Store
	Fetcher Fetcher
	Workers int // concurrent fetches; values < 1 mean 1
}

// Reconcile caches every desired id that is missing and fetchable and deletes
// every non-reserved entry whose key is not desired. Afterwards the
// non-reserved keys equal desired ∩ (existing ∪ fetched). Individual fetch,
// write or delete failures are logged and never abort the run; only a failing
// List or a cancelled ctx is returned as an error.
func (r *Reconciler) Reconcile(ctx context.Context, desired []Desired) (Result, error) {
	ctx, span := otel.Tracer("blobcache").Start(ctx, "Reconcile")
	defer span.End()

	var res Result
	names, err := r.Store.List(ctx)
	if err != nil {
		return res, err
	}

	existing := make(map[string][]string, len(names)) // key -> names
	for _, n := range names {
		k := Key(n)
		if IsReserved(k) {
			continue
		}
		existing[k] = append(existing[k], n)
	}

	want := make(map[string]struct{}, len(desired))
	var missing []Desired
	for _, d := range desired {
		if _, dup := want[d.ID]; dup || d.ID == "" {
			continue
		}
		want[d.ID] = struct{}{}
		if _, ok := existing[d.ID]; !ok {
			missing = append(missing, d)
		}
	}

	workers := r.Workers
	if workers < 1 {
		workers = 1
	}
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(workers)

	for _, d := range missing {
		if !Fetchable(d.SourceURL) {
			res.Skipped = append(res.Skipped, d.ID)
			observability.CacheFetches.WithLabelValues("skipped").Inc()
			continue
		}
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			ok := r.fetchOne(ctx, d)
			mu.Lock()
			if ok {
				res.Fetched = append(res.Fetched, d.ID)
			} else {
				res.Failed = append(res.Failed, d.ID)
			}
			mu.Unlock()
			return nil
		})
	}

	for key, ns := range existing {
		if _, ok := want[key]; ok {
			continue
		}
		evicted := true
		for _, n := range ns {
			if err := r.Store.Delete(ctx, n); err != nil {
				evicted = false
				log.Warn().Str("component", "blobcache").Str("name", n).Err(err).Msg("evict failed")
			}
		}
		if evicted {
			mu.Lock()
			res.Evicted = append(res.Evicted, key)
			mu.Unlock()
			observability.CacheEvictions.Inc()
		}
	}

	_ = g.Wait()

	sort.Strings(res.Fetched)
	sort.Strings(res.Skipped)
	sort.Strings(res.Failed)
	sort.Strings(res.Evicted)

	span.SetAttributes(
		attribute.Int("cache.fetched", len(res.Fetched)),
		attribute.Int("cache.failed", len(res.Failed)),
		attribute.Int("cache.evicted", len(res.Evicted)),
	)
	log.Debug().Str("component", "blobcache").
		Int("desired", len(want)).
		Int("fetched", len(res.Fetched)).
		Int("skipped", len(res.Skipped)).
		Int("failed", len(res.Failed)).
		Int("evicted", len(res.Evicted)).
		Msg("reconciled")

	return res, ctx.Err()
}

func (r *Reconciler) fetchOne(ctx context.Context, d Desired) bool {
	b, err := r.Fetcher.Fetch(ctx, d.SourceURL)
	if err != nil {
		observability.CacheFetches.WithLabelValues("failed").Inc()
		log.Warn().Str("component", "blobcache").Str("id", d.ID).Str("url", d.SourceURL).Err(err).Msg("fetch failed")
		return false
	}
	if err := r.Store.Write(ctx, Name(d.ID, Ext(d.SourceURL)), b); err != nil {
		observability.CacheFetches.WithLabelValues("failed").Inc()
		log.Warn().Str("component", "blobcache").Str("id", d.ID).Err(err).Msg("write failed")
		return false
	}
	observability.CacheFetches.WithLabelValues("ok").Inc()
	return true
}
