package repo

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-meme-report/internal/domain"
)

func newTestDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	// Unique DB per test to avoid schema leaking across tests.
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func TestVotesStats_CountError_NoTable(t *testing.T) {
	db := newTestDB(t /* no migrations */)
	if _, _, err := VotesStats(context.Background(), db); err == nil {
		t.Fatalf("expected error due to missing votes table")
	}
}

func TestVotesStats_Empty(t *testing.T) {
	db := newTestDB(t, &domain.Vote{})
	n, latest, err := VotesStats(context.Background(), db)
	if err != nil || n != 0 || latest != nil {
		t.Fatalf("expected (0, nil, nil), got (%d, %v, %v)", n, latest, err)
	}
}

func TestVotesStats_CountAndLatest(t *testing.T) {
	db := newTestDB(t, &domain.Vote{})
	ctx := context.Background()
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	votes := []domain.Vote{
		{MemeID: "a", Upvotes: 1, CrawledAt: t0},
		{MemeID: "a", Upvotes: 2, CrawledAt: t1},
		{MemeID: "b", Upvotes: 3, CrawledAt: t1},
	}
	if err := AppendVotes(ctx, db, votes); err != nil {
		t.Fatalf("AppendVotes: %v", err)
	}

	n, latest, err := VotesStats(ctx, db)
	if err != nil {
		t.Fatalf("VotesStats: %v", err)
	}
	if n != 3 || latest == nil || !latest.Equal(t1) {
		t.Fatalf("unexpected stats: n=%d latest=%v", n, latest)
	}
}

func TestMemesCount(t *testing.T) {
	db := newTestDB(t, &domain.Meme{})
	ctx := context.Background()
	if err := UpsertMemes(ctx, db, []domain.Meme{{ID: "a"}, {ID: "b"}, {ID: "a"}}); err != nil {
		t.Fatalf("UpsertMemes: %v", err)
	}
	n, err := MemesCount(ctx, db)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 memes, got %d (err=%v)", n, err)
	}
}
