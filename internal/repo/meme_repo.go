// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the metric store: meme metadata upserts,
// append-only vote snapshots, latest-batch queries and the retention sweep.
//
// Functions are thin and context-aware; they return raw driver errors and leave
// classification (storage vs. missing table) to the calling service.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-meme-report/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = domain.ErrNotFound

// TopRow is one meme of the latest batch joined with its vote snapshot.
type TopRow struct {
	ID           string    `gorm:"column:id"`
	Title        string    `gorm:"column:title"`
	Author       string    `gorm:"column:author"`
	URL          string    `gorm:"column:url"`
	ThumbnailURL string    `gorm:"column:thumbnail_url"`
	Upvotes      int       `gorm:"column:upvotes"`
	Downvotes    int       `gorm:"column:downvotes"`
	CrawledAt    time.Time `gorm:"column:crawled_at"`
}

// SeriesRow is one historical vote snapshot of a meme in the latest batch.
type SeriesRow struct {
	ID        string    `gorm:"column:id"`
	Title     string    `gorm:"column:title"`
	Upvotes   int       `gorm:"column:upvotes"`
	Downvotes int       `gorm:"column:downvotes"`
	CrawledAt time.Time `gorm:"column:crawled_at"`
}

// Timestamp normalizes t to the storage representation: UTC, whole seconds.
func Timestamp(t time.Time) time.Time { return t.UTC().Truncate(time.Second) }

// UpsertMemes inserts memes whose id is not stored yet. Existing rows keep
// their first-seen metadata.
func UpsertMemes(ctx context.Context, db *gorm.DB, memes []domain.Meme) error {
	if len(memes) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&memes).Error
}

// AppendVotes inserts one row per vote. Duplicates are allowed.
func AppendVotes(ctx context.Context, db *gorm.DB, votes []domain.Vote) error {
	if len(votes) == 0 {
		return nil
	}
	rows := make([]domain.Vote, len(votes))
	for i, v := range votes {
		v.Seq = 0
		v.CrawledAt = Timestamp(v.CrawledAt)
		rows[i] = v
	}
	return db.WithContext(ctx).Create(&rows).Error
}

const latestBatch = "(SELECT MAX(crawled_at) FROM votes)"

// CurrentTopSet joins memes to the vote batch sharing the newest crawled_at,
// in insertion order.
func CurrentTopSet(ctx context.Context, db *gorm.DB) ([]TopRow, error) {
	var out []TopRow
	err := db.WithContext(ctx).Raw(`
SELECT m.id, m.title, m.author, m.url, m.thumbnail_url, v.upvotes, v.downvotes, v.crawled_at
FROM votes v
JOIN memes m ON m.id = v.id
WHERE v.crawled_at = ` + latestBatch + `
ORDER BY v.seq ASC`).Scan(&out).Error
	return out, err
}

// TimeSeries returns every stored vote of the memes in the latest batch,
// ordered by crawled_at then insertion order.
func TimeSeries(ctx context.Context, db *gorm.DB) ([]SeriesRow, error) {
	var out []SeriesRow
	err := db.WithContext(ctx).Raw(`
SELECT v.id, m.title, v.upvotes, v.downvotes, v.crawled_at
FROM votes v
JOIN memes m ON m.id = v.id
WHERE v.id IN (SELECT id FROM votes WHERE crawled_at = ` + latestBatch + `)
ORDER BY v.crawled_at ASC, v.seq ASC`).Scan(&out).Error
	return out, err
}

// EvictVotesOlderThan deletes votes captured before now-retention and
// reports how many rows were removed.
func EvictVotesOlderThan(ctx context.Context, db *gorm.DB, now time.Time, retention time.Duration) (int64, error) {
	cutoff := Timestamp(now.Add(-retention))
	res := db.WithContext(ctx).Where("crawled_at < ?", cutoff).Delete(&domain.Vote{})
	return res.RowsAffected, res.Error
}

// LatestCrawl returns the newest crawled_at, or nil when no votes are stored.
func LatestCrawl(ctx context.Context, db *gorm.DB) (*time.Time, error) {
	var rows []struct {
		CrawledAt time.Time
	}
	// avoid MAX() -> TEXT in SQLite
	err := db.WithContext(ctx).Model(&domain.Vote{}).
		Select("crawled_at").Order("crawled_at DESC").Limit(1).Scan(&rows).Error
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	t := rows[0].CrawledAt.UTC()
	return &t, nil
}
