// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-meme-report/internal/domain"
)

// VotesStats returns the number of stored vote snapshots and the newest
// crawled_at among them (nil when the table is empty).
func VotesStats(ctx context.Context, db *gorm.DB) (count int64, latest *time.Time, err error) {
	if err = db.WithContext(ctx).Model(&domain.Vote{}).Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}
	latest, err = LatestCrawl(ctx, db)
	if err != nil {
		return 0, nil, err
	}
	return count, latest, nil
}

// MemesCount returns the number of known memes.
func MemesCount(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Meme{}).Count(&n).Error
	return n, err
}
