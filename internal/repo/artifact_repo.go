// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file stores the produced-artifact record that drives
// regeneration debouncing.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-meme-report/internal/domain"
)

// GetArtifact returns the record stored under name or ErrNotFound.
func GetArtifact(ctx context.Context, db *gorm.DB, name string) (*domain.Artifact, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrNotFound
	}
	var rec domain.Artifact
	err := db.WithContext(ctx).Where("name = ?", name).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.ProducedAt = rec.ProducedAt.UTC()
	return &rec, nil
}

// SaveArtifact records a freshly produced artifact under name, replacing any
// previous record with a new id.
func SaveArtifact(ctx context.Context, db *gorm.DB, name, path string, producedAt time.Time) (*domain.Artifact, error) {
	rec := &domain.Artifact{
		ID:         uuid.NewString(),
		Name:       name,
		Path:       path,
		ProducedAt: producedAt.UTC(),
	}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"id", "path", "produced_at"}),
	}).Create(rec).Error
	if err != nil {
		return nil, err
	}
	return rec, nil
}
