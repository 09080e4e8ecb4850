// Package report turns metric store rows into render-ready views and renders
// them. The table view ranks the latest batch by net votes and resolves a
// display image per meme; the series view groups vote history per meme for
// the chart. Rendering produces an HTML page with a plain-text sibling.
package report

import (
	"sort"
	"time"

	"github.com/tbourn/go-meme-report/internal/repo"
)

// ImageResolver picks the cached image name to display for a meme.
type ImageResolver interface {
	Resolve(id, thumbnailURL string) string
}

// TableRow is one ranked line of the report table.
type TableRow struct {
	Rank      int    `json:"rank"`
	ID        string `json:"id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	URL       string `json:"url"`
	Upvotes   int    `json:"upvotes"`
	Downvotes int    `json:"downvotes"`
	Net       int    `json:"net"`
	Image     string `json:"image"`
}

// Point is one (time, net votes) sample.
type Point struct {
	At  time.Time `json:"at"`
	Net int       `json:"net"`
}

// Line is the vote history of one meme.
type Line struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	Points []Point `json:"points"`
}

// Series holds one line per meme of the latest batch, ordered by most recent
// net votes (highest first). Legend lists the titles in that order with
// duplicates collapsed.
type Series struct {
	Lines  []Line   `json:"lines"`
	Legend []string `json:"legend"`
}

// BuildTable ranks rows by net votes descending. Ties keep their input order.
// When resolve is nil rows carry no image.
func BuildTable(rows []repo.TopRow, resolve ImageResolver) []TableRow {
	out := make([]TableRow, 0, len(rows))
	for _, r := range rows {
		tr := TableRow{
			ID:        r.ID,
			Title:     NormalizeTitle(r.Title),
			Author:    r.Author,
			URL:       r.URL,
			Upvotes:   r.Upvotes,
			Downvotes: r.Downvotes,
			Net:       r.Upvotes - r.Downvotes,
		}
		if resolve != nil {
			tr.Image = resolve.Resolve(r.ID, r.ThumbnailURL)
		}
		out = append(out, tr)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Net > out[j].Net })
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// BuildSeries groups rows (ordered by time) into one line per meme.
func BuildSeries(rows []repo.SeriesRow) Series {
	idx := make(map[string]int)
	var lines []Line
	for _, r := range rows {
		i, ok := idx[r.ID]
		if !ok {
			i = len(lines)
			idx[r.ID] = i
			lines = append(lines, Line{ID: r.ID, Title: NormalizeTitle(r.Title)})
		}
		lines[i].Points = append(lines[i].Points, Point{At: r.CrawledAt.UTC(), Net: r.Upvotes - r.Downvotes})
	}

	sort.SliceStable(lines, func(i, j int) bool {
		return lastNet(lines[i]) > lastNet(lines[j])
	})

	seen := make(map[string]bool, len(lines))
	legend := make([]string, 0, len(lines))
	for _, l := range lines {
		if seen[l.Title] {
			continue
		}
		seen[l.Title] = true
		legend = append(legend, l.Title)
	}
	return Series{Lines: lines, Legend: legend}
}

func lastNet(l Line) int {
	if len(l.Points) == 0 {
		return 0
	}
	return l.Points[len(l.Points)-1].Net
}
