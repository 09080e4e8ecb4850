// Package domain defines the persistence models for ranked memes, their vote
// history, and produced report artifacts. These types are mapped with GORM and
// form the core data layer of the report pipeline.
package domain

import "time"

// Meme is a ranked post with stable identity and descriptive metadata. Rows
// are inserted on first sighting and never updated afterwards: re-ingesting
// the same ID is a no-op.
//
// Fields:
//   - ID: external post identifier (e.g. "t3_1abcde"), primary key.
//   - Title: post title as published.
//   - Author: external author identifier.
//   - URL: link to the post content.
//   - ThumbnailURL: thumbnail image URL, or a sentinel such as "nsfw".
type Meme struct {
	ID           string `json:"id"            gorm:"column:id;type:varchar(32);primaryKey"`
	Title        string `json:"title"         gorm:"column:title;type:text"`
	Author       string `json:"author"        gorm:"column:author;type:varchar(64)"`
	URL          string `json:"url"           gorm:"column:url;type:text"`
	ThumbnailURL string `json:"thumbnail_url" gorm:"column:thumbnail_url;type:text"`
}

// TableName returns the database table name for Meme.
func (Meme) TableName() string { return "memes" }

// Vote is one timestamped measurement of a meme's vote counts. Votes are
// append-only; every ingestion run writes one row per meme, all sharing the
// run's CrawledAt.
//
// Seq is a surrogate key that records insertion order. It is the stable
// tie-break when ranking rows of the same batch.
type Vote struct {
	Seq       uint64    `json:"-"          gorm:"column:seq;primaryKey;autoIncrement"`
	MemeID    string    `json:"id"         gorm:"column:id;type:varchar(32);not null"`
	Upvotes   int       `json:"upvotes"    gorm:"column:upvotes"`
	Downvotes int       `json:"downvotes"  gorm:"column:downvotes"`
	CrawledAt time.Time `json:"crawled_at" gorm:"column:crawled_at;not null;index:idx_votes_crawled_at"`
}

// TableName returns the database table name for Vote.
func (Vote) TableName() string { return "votes" }

// Net returns upvotes minus downvotes.
func (v Vote) Net() int { return v.Upvotes - v.Downvotes }
