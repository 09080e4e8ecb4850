// Package regen decides whether a report artifact can be reused or must be
// produced again. Freshness is read from a persisted (id, produced_at) record
// rather than file modification times, and concurrent requests for the same
// artifact share one in-flight production.
package regen

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/tbourn/go-meme-report/internal/domain"
	"github.com/tbourn/go-meme-report/internal/observability"
	"github.com/tbourn/go-meme-report/internal/repo"
)

// Artifact identifies a produced report.
type Artifact struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	ProducedAt time.Time `json:"produced_at"`
}

// Outcome is the result of GetOrRegenerate.
type Outcome struct {
	Artifact
	Regenerated bool `json:"regenerated"`
}

// ProduceFunc runs the full pipeline and returns the path of the new artifact.
type ProduceFunc func(ctx context.Context) (string, error)

// RecordStore persists the last produced artifact per name. Get returns
// repo.ErrNotFound when nothing was recorded yet.
type RecordStore interface {
	Get(ctx context.Context, name string) (*domain.Artifact, error)
	Save(ctx context.Context, name, path string, producedAt time.Time) (*domain.Artifact, error)
}

// GormRecords stores artifact records in the relational database.
type GormRecords struct {
	DB *gorm.DB
}

// Get implements RecordStore.
func (g GormRecords) Get(ctx context.Context, name string) (*domain.Artifact, error) {
	return repo.GetArtifact(ctx, g.DB, name)
}

// Save implements RecordStore.
func (g GormRecords) Save(ctx context.Context, name, path string, producedAt time.Time) (*domain.Artifact, error) {
	return repo.SaveArtifact(ctx, g.DB, name, path, producedAt)
}

// Debouncer returns a recorded artifact while it is fresh and otherwise
// produces a new one. At most one production per artifact name is in flight
// in this process; callers arriving meanwhile wait for and share its result.
type Debouncer struct {
	Records RecordStore
	Now     func() time.Time
	Exists  func(path string) bool

	group singleflight.Group
}

// New returns a Debouncer over records using the wall clock and the local
// filesystem.
func New(records RecordStore) *Debouncer {
	return &Debouncer{Records: records}
}

// GetOrRegenerate returns the artifact recorded under name when its file still
// exists and it was produced less than window ago. Otherwise produce is invoked
// and its result recorded. A window <= 0 always regenerates. When produce fails
// the previous record is left untouched and the error is returned.
//
// The production runs with the context of the caller that started it.
// Callers that joined an in-flight production receive its artifact with
// Regenerated unset, so exactly one caller observes each regeneration.
func (d *Debouncer) GetOrRegenerate(ctx context.Context, name string, window time.Duration, produce ProduceFunc) (Outcome, error) {
	ctx, span := otel.Tracer("regen").Start(ctx, "GetOrRegenerate",
		trace.WithAttributes(
			attribute.String("artifact.name", name),
			attribute.String("freshness.window", window.String()),
		),
	)
	defer span.End()

	for {
		ran := false
		v, err, shared := d.group.Do(name, func() (any, error) {
			ran = true
			return d.getOrRegenerate(ctx, name, window, produce)
		})
		span.SetAttributes(attribute.Bool("shared", shared))
		if err != nil {
			return Outcome{}, err
		}
		out := v.(Outcome)
		// A forced call that joined a flight which reused the record must
		// start its own production.
		if window <= 0 && !out.Regenerated {
			if err := ctx.Err(); err != nil {
				return Outcome{}, err
			}
			continue
		}
		out.Regenerated = out.Regenerated && ran
		return out, nil
	}
}

func (d *Debouncer) getOrRegenerate(ctx context.Context, name string, window time.Duration, produce ProduceFunc) (Outcome, error) {
	now := d.now()

	rec, err := d.Records.Get(ctx, name)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		rec = nil
	case err != nil:
		return Outcome{}, fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}

	if rec != nil && window > 0 && now.Sub(rec.ProducedAt) < window && d.exists(rec.Path) {
		observability.Regenerations.WithLabelValues("reused").Inc()
		log.Debug().Str("component", "regen").Str("artifact", name).
			Time("produced_at", rec.ProducedAt).Msg("artifact fresh, reusing")
		return Outcome{Artifact: toArtifact(rec)}, nil
	}

	path, err := produce(ctx)
	if err != nil {
		observability.Regenerations.WithLabelValues("failed").Inc()
		return Outcome{}, err
	}

	saved, err := d.Records.Save(ctx, name, path, d.now())
	if err != nil {
		observability.Regenerations.WithLabelValues("failed").Inc()
		return Outcome{}, fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	observability.Regenerations.WithLabelValues("regenerated").Inc()
	log.Info().Str("component", "regen").Str("artifact", name).Str("path", path).Msg("artifact regenerated")
	return Outcome{Artifact: toArtifact(saved), Regenerated: true}, nil
}

func (d *Debouncer) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func (d *Debouncer) exists(path string) bool {
	if d.Exists != nil {
		return d.Exists(path)
	}
	_, err := os.Stat(path)
	return err == nil
}

func toArtifact(rec *domain.Artifact) Artifact {
	return Artifact{ID: rec.ID, Name: rec.Name, Path: rec.Path, ProducedAt: rec.ProducedAt}
}
