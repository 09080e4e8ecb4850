package report

import (
	"reflect"
	"testing"
	"time"

	"github.com/tbourn/go-meme-report/internal/repo"
)

type mapResolver map[string]string

func (m mapResolver) Resolve(id, thumb string) string {
	if n, ok := m[id]; ok {
		return n
	}
	if thumb == "nsfw" {
		return "nsfw.png"
	}
	return "default.png"
}

func TestBuildTable_RankingDeterminism(t *testing.T) {
	rows := []repo.TopRow{
		{ID: "A", Title: "A", Upvotes: 100, Downvotes: 10},
		{ID: "B", Title: "B", Upvotes: 100, Downvotes: 5},
		{ID: "C", Title: "C", Upvotes: 50, Downvotes: 0},
	}
	got := BuildTable(rows, nil)

	var order []string
	var nets []int
	for i, r := range got {
		order = append(order, r.ID)
		nets = append(nets, r.Net)
		if r.Rank != i+1 {
			t.Fatalf("rank of %s = %d; want %d", r.ID, r.Rank, i+1)
		}
	}
	if !reflect.DeepEqual(order, []string{"B", "A", "C"}) || !reflect.DeepEqual(nets, []int{95, 90, 50}) {
		t.Fatalf("unexpected order %v nets %v", order, nets)
	}
}

func TestBuildTable_TiesKeepInputOrder(t *testing.T) {
	rows := []repo.TopRow{
		{ID: "x", Upvotes: 10}, {ID: "y", Upvotes: 20, Downvotes: 10}, {ID: "z", Upvotes: 11, Downvotes: 1},
	}
	got := BuildTable(rows, nil)
	if got[0].ID != "x" || got[1].ID != "y" || got[2].ID != "z" {
		t.Fatalf("stable tie-break violated: %+v", got)
	}
}

func TestBuildTable_ResolvesImages(t *testing.T) {
	rows := []repo.TopRow{
		{ID: "cached", ThumbnailURL: "https://b.test/cached.png", Upvotes: 3},
		{ID: "hidden", ThumbnailURL: "nsfw", Upvotes: 2},
		{ID: "failed", ThumbnailURL: "https://b.test/failed.png", Upvotes: 1},
	}
	got := BuildTable(rows, mapResolver{"cached": "cached.png"})
	want := []string{"cached.png", "nsfw.png", "default.png"}
	for i, r := range got {
		if r.Image != want[i] {
			t.Fatalf("row %s image = %q; want %q", r.ID, r.Image, want[i])
		}
	}
}

func TestBuildSeries_GroupsAndOrdersByLatestNet(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)
	rows := []repo.SeriesRow{
		{ID: "a", Title: "Low", Upvotes: 50, CrawledAt: t0},
		{ID: "b", Title: "High", Upvotes: 10, CrawledAt: t0},
		{ID: "a", Title: "Low", Upvotes: 60, Downvotes: 5, CrawledAt: t1},
		{ID: "b", Title: "High", Upvotes: 200, CrawledAt: t1},
		{ID: "c", Title: "High", Upvotes: 5, CrawledAt: t1},
	}
	s := BuildSeries(rows)

	if len(s.Lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(s.Lines))
	}
	if s.Lines[0].ID != "b" || s.Lines[1].ID != "a" || s.Lines[2].ID != "c" {
		t.Fatalf("unexpected line order: %s %s %s", s.Lines[0].ID, s.Lines[1].ID, s.Lines[2].ID)
	}
	a := s.Lines[1]
	if len(a.Points) != 2 || a.Points[0].Net != 50 || a.Points[1].Net != 55 || !a.Points[1].At.Equal(t1) {
		t.Fatalf("unexpected points for a: %+v", a.Points)
	}
	if !reflect.DeepEqual(s.Legend, []string{"High", "Low"}) {
		t.Fatalf("legend = %v; want duplicates collapsed", s.Legend)
	}
}

func TestBuildSeries_Empty(t *testing.T) {
	s := BuildSeries(nil)
	if len(s.Lines) != 0 || len(s.Legend) != 0 {
		t.Fatalf("expected empty series, got %+v", s)
	}
}

func TestNormalizeTitle(t *testing.T) {
	cases := map[string]string{
		"It’s fine":        "It's fine",
		"“quoted”":         `"quoted"`,
		"  padded\t":       "padded",
		"bell\x07 removed": "bell removed",
		"cafe\u0301":       "caf\u00e9",
		"emoji stays 😂":    "emoji stays 😂",
	}
	for in, want := range cases {
		if got := NormalizeTitle(in); got != want {
			t.Fatalf("NormalizeTitle(%q) = %q; want %q", in, got, want)
		}
	}
}
