// Package services – Pipeline
//
// This file implements the report pipeline: ingest the current top list from
// the ranked-item source, persist memes and vote snapshots in one transaction
// together with the retention sweep, reconcile the image cache with the new
// top set, assemble the table and series views and render the report.
// Regeneration is debounced through a persisted artifact record.
//
// Observability: every stage is traced with OpenTelemetry and counted in
// Prometheus (see internal/observability).
package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-meme-report/internal/blobcache"
	"github.com/tbourn/go-meme-report/internal/domain"
	"github.com/tbourn/go-meme-report/internal/notify"
	"github.com/tbourn/go-meme-report/internal/observability"
	"github.com/tbourn/go-meme-report/internal/regen"
	"github.com/tbourn/go-meme-report/internal/repo"
	"github.com/tbourn/go-meme-report/internal/report"
	"github.com/tbourn/go-meme-report/internal/source"
)

// DefaultArtifactName is the record name of the rendered report.
const DefaultArtifactName = "report"

// Texts are the fixed report texts.
type Texts struct {
	PageTitle    string
	Heading      string
	TableHeading string
}

// Pipeline wires the pipeline stages. All fields except Notifier and Now are
// required.
type Pipeline struct {
	DB         *gorm.DB
	Source     source.Source
	Blobs      blobcache.Store
	Reconciler *blobcache.Reconciler
	Renderer   report.Renderer
	Debouncer  *regen.Debouncer
	Notifier   notify.Notifier

	TopN         int
	TimeWindow   string
	Retention    time.Duration
	Freshness    time.Duration
	ArtifactName string
	Texts        Texts

	Now func() time.Time

	running atomic.Bool
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Pipeline) artifactName() string {
	if p.ArtifactName == "" {
		return DefaultArtifactName
	}
	return p.ArtifactName
}

// Ingest fetches the current top list and stores it as one batch sharing a
// single crawl timestamp, then evicts votes older than the retention window.
// A source failure writes nothing. All writes happen on one scoped connection
// inside one transaction; any failure rolls back and returns ErrStorage.
func (p *Pipeline) Ingest(ctx context.Context) (time.Time, error) {
	tr := otel.Tracer("services/Pipeline")
	ctx, span := tr.Start(ctx, "Ingest",
		trace.WithAttributes(
			attribute.Int("top_n", p.TopN),
			attribute.String("window", p.TimeWindow),
		),
	)
	defer span.End()

	items, err := p.Source.FetchTopN(ctx, p.TopN, p.TimeWindow)
	if err != nil {
		err = classify(domain.ErrSourceFetch, err)
		span.SetStatus(codes.Error, err.Error())
		observability.PipelineRuns.WithLabelValues("ingest", outcome(err)).Inc()
		return time.Time{}, err
	}

	crawledAt := repo.Timestamp(p.now())
	memes := make([]domain.Meme, 0, len(items))
	votes := make([]domain.Vote, 0, len(items))
	for _, it := range items {
		memes = append(memes, domain.Meme{
			ID:           it.ID,
			Title:        it.Title,
			Author:       it.Author,
			URL:          it.URL,
			ThumbnailURL: it.Thumbnail,
		})
		votes = append(votes, domain.Vote{
			MemeID:    it.ID,
			Upvotes:   it.Ups,
			Downvotes: it.Downs,
			CrawledAt: crawledAt,
		})
	}

	var evicted int64
	err = p.DB.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		return conn.Transaction(func(tx *gorm.DB) error {
			if err := repo.EnsureSchema(ctx, tx); err != nil {
				return err
			}
			if err := repo.UpsertMemes(ctx, tx, memes); err != nil {
				return err
			}
			if err := repo.AppendVotes(ctx, tx, votes); err != nil {
				return err
			}
			n, err := repo.EvictVotesOlderThan(ctx, tx, crawledAt, p.Retention)
			evicted = n
			return err
		})
	})
	if err != nil {
		err = classify(domain.ErrStorage, err)
		span.SetStatus(codes.Error, err.Error())
		observability.PipelineRuns.WithLabelValues("ingest", outcome(err)).Inc()
		return time.Time{}, err
	}

	span.SetAttributes(attribute.Int("items", len(items)), attribute.Int64("evicted", evicted))
	observability.PipelineRuns.WithLabelValues("ingest", "ok").Inc()
	log.Info().Str("component", "pipeline").
		Int("items", len(items)).
		Int64("evicted_votes", evicted).
		Time("crawled_at", crawledAt).
		Msg("ingested")
	return crawledAt, nil
}

// Run performs one full pipeline pass and returns the rendered artifact path.
// It is the ProduceFunc handed to the debouncer.
func (p *Pipeline) Run(ctx context.Context) (string, error) {
	tr := otel.Tracer("services/Pipeline")
	ctx, span := tr.Start(ctx, "Run")
	defer span.End()

	start := time.Now()
	path, err := p.run(ctx)
	observability.PipelineDuration.Observe(time.Since(start).Seconds())
	observability.PipelineRuns.WithLabelValues("run", outcome(err)).Inc()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		log.Error().Str("component", "pipeline").Err(err).Msg("run failed")
		return "", err
	}
	span.SetAttributes(attribute.String("artifact.path", path))
	return path, nil
}

func (p *Pipeline) run(ctx context.Context) (string, error) {
	crawledAt, err := p.Ingest(ctx)
	if err != nil {
		return "", err
	}

	top, err := repo.CurrentTopSet(ctx, p.DB)
	if err != nil {
		return "", classify(domain.ErrStorage, err)
	}

	if err := blobcache.EnsureFallbacks(ctx, p.Blobs); err != nil {
		return "", classify(domain.ErrStorage, err)
	}
	desired := make([]blobcache.Desired, 0, len(top))
	for _, r := range top {
		desired = append(desired, blobcache.Desired{ID: r.ID, SourceURL: r.ThumbnailURL})
	}
	if _, err := p.Reconciler.Reconcile(ctx, desired); err != nil {
		return "", classify(domain.ErrStorage, err)
	}

	table, series, err := p.views(ctx, top)
	if err != nil {
		return "", err
	}

	svg := report.ChartSVG(series)
	if err := p.Blobs.Write(ctx, blobcache.Name(blobcache.KeyChart, "svg"), svg); err != nil {
		log.Warn().Str("component", "pipeline").Err(err).Msg("chart not cached")
	}

	tableBlock, err := report.TableBlock(ctx, table, p.Blobs)
	if err != nil {
		return "", classify(domain.ErrRender, err)
	}
	path, err := p.Renderer.Render(ctx, report.Options{
		PageTitle:       p.Texts.PageTitle,
		Heading:         p.Texts.Heading,
		ChartBlock:      report.ChartBlock(svg),
		GeneratedAtText: report.GeneratedAtText(p.now()),
		TableHeading:    p.Texts.TableHeading,
		TableBlock:      tableBlock,
	})
	if err != nil {
		return "", classify(domain.ErrRender, err)
	}

	log.Info().Str("component", "pipeline").
		Time("crawled_at", crawledAt).
		Int("rows", len(table)).
		Str("path", path).
		Msg("report rendered")
	return path, nil
}

// views assembles the table (with images resolved against the current cache)
// and series views for the given latest batch.
func (p *Pipeline) views(ctx context.Context, top []repo.TopRow) ([]report.TableRow, report.Series, error) {
	ix, err := blobcache.Snapshot(ctx, p.Blobs)
	if err != nil {
		return nil, report.Series{}, classify(domain.ErrStorage, err)
	}
	rows, err := repo.TimeSeries(ctx, p.DB)
	if err != nil {
		return nil, report.Series{}, classify(domain.ErrStorage, err)
	}
	return report.BuildTable(top, ix), report.BuildSeries(rows), nil
}

// Generate returns the current report, regenerating it when the recorded
// artifact is older than the freshness window or force is set. Regenerations
// are announced through the Notifier; delivery failures are only logged.
func (p *Pipeline) Generate(ctx context.Context, force bool) (regen.Outcome, error) {
	window := p.Freshness
	if force {
		window = 0
	}
	out, err := p.Debouncer.GetOrRegenerate(ctx, p.artifactName(), window, p.Run)
	if err != nil {
		return regen.Outcome{}, err
	}
	if out.Regenerated && p.Notifier != nil {
		if nerr := p.Notifier.ReportReady(ctx, out.Artifact); nerr != nil {
			log.Warn().Str("component", "pipeline").Err(nerr).Msg("notify failed")
		}
	}
	return out, nil
}

// Report returns the table and series views of the stored latest batch
// without ingesting or touching the cache.
func (p *Pipeline) Report(ctx context.Context) ([]report.TableRow, report.Series, error) {
	tr := otel.Tracer("services/Pipeline")
	ctx, span := tr.Start(ctx, "Report")
	defer span.End()

	top, err := repo.CurrentTopSet(ctx, p.DB)
	if err != nil {
		return nil, report.Series{}, classify(domain.ErrStorage, err)
	}
	return p.views(ctx, top)
}

// Stats returns the stored vote count and newest crawl time.
func (p *Pipeline) Stats(ctx context.Context) (int64, *time.Time, error) {
	n, latest, err := repo.VotesStats(ctx, p.DB)
	if err != nil {
		return 0, nil, classify(domain.ErrStorage, err)
	}
	return n, latest, nil
}

// Start regenerates the report every interval until ctx is cancelled. Failed
// ticks are logged and the schedule continues. It blocks; run it in its own
// goroutine.
func (p *Pipeline) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be > 0, got %s", interval)
	}
	if !p.running.CompareAndSwap(false, true) {
		return ErrPipelineBusy
	}
	defer p.running.Store(false)

	t := time.NewTicker(interval)
	defer t.Stop()
	log.Info().Str("component", "pipeline").Dur("interval", interval).Msg("scheduler started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("component", "pipeline").Msg("scheduler stopped")
			return nil
		case <-t.C:
			if _, err := p.Generate(ctx, true); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Str("component", "pipeline").Err(err).Msg("scheduled run failed")
			}
		}
	}
}
