// Report endpoints:
//   - POST /reports              (debounced regeneration, ?force=true bypasses)
//   - GET  /reports/latest       (HTML report, regenerated when stale)
//   - GET  /reports/latest.txt   (plain-text sibling)
//   - GET  /memes/top            (ranked table of the latest batch)
//   - GET  /memes/series         (vote history of the latest batch)
//   - GET  /stats                (vote count and newest crawl, weak ETag)
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-meme-report/internal/regen"
	"github.com/tbourn/go-meme-report/internal/report"
)

// ReportService is the pipeline surface the handlers need.
type ReportService interface {
	// Generate returns the current report, producing a new one when the last
	// one is older than the freshness window or force is set.
	Generate(ctx context.Context, force bool) (regen.Outcome, error)
	// Report returns the table and series views of the stored latest batch.
	Report(ctx context.Context) ([]report.TableRow, report.Series, error)
	// Stats returns the stored vote count and the newest crawl time.
	Stats(ctx context.Context) (int64, *time.Time, error)
}

// Handlers serves the report API.
type Handlers struct {
	svc ReportService
}

// New binds the handlers to svc.
func New(svc ReportService) *Handlers {
	return &Handlers{svc: svc}
}

// GenerateResponse describes the artifact a generation request resolved to.
type GenerateResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	ProducedAt  time.Time `json:"produced_at"`
	Regenerated bool      `json:"regenerated"`
}

// TopResponse is the ranked table of the latest batch.
type TopResponse struct {
	Items []report.TableRow `json:"items"`
	Total int               `json:"total"`
}

// StatsResponse summarises the vote store.
type StatsResponse struct {
	Votes       int64      `json:"votes"`
	LatestCrawl *time.Time `json:"latest_crawl"`
}

// GenerateReport runs a debounced regeneration. It answers 201 when a new
// artifact was produced and 200 when a fresh one was reused.
func (h *Handlers) GenerateReport(c *gin.Context) {
	force, err := queryBool(c, "force")
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "force must be a boolean")
		return
	}
	out, err := h.svc.Generate(c.Request.Context(), force)
	if err != nil {
		failErr(c, err)
		return
	}
	status := http.StatusOK
	if out.Regenerated {
		status = http.StatusCreated
	}
	ok(c, status, GenerateResponse{
		ID:          out.ID,
		Name:        out.Name,
		Path:        out.Path,
		ProducedAt:  out.ProducedAt,
		Regenerated: out.Regenerated,
	})
}

// LatestReport serves the HTML artifact.
func (h *Handlers) LatestReport(c *gin.Context) {
	h.serveArtifact(c, func(p string) string { return p })
}

// LatestReportText serves the plain-text rendering of the HTML artifact.
func (h *Handlers) LatestReportText(c *gin.Context) {
	h.serveArtifact(c, report.TextPath)
}

func (h *Handlers) serveArtifact(c *gin.Context, pathOf func(string) string) {
	out, err := h.svc.Generate(c.Request.Context(), false)
	if err != nil {
		failErr(c, err)
		return
	}
	p := pathOf(out.Path)
	if _, err := os.Stat(p); err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "report artifact not found")
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Report-Produced-At", out.ProducedAt.UTC().Format(time.RFC3339))
	c.File(p)
}

// TopMemes returns the ranked table. ?limit=N trims it to the first N rows.
func (h *Handlers) TopMemes(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil || limit < 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "limit must be a non-negative integer")
		return
	}
	rows, _, err := h.svc.Report(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	if rows == nil {
		rows = []report.TableRow{}
	}
	total := len(rows)
	if limit > 0 && limit < total {
		rows = rows[:limit]
	}
	ok(c, http.StatusOK, TopResponse{Items: rows, Total: total})
}

// MemeSeries returns the per-meme vote history of the latest batch.
func (h *Handlers) MemeSeries(c *gin.Context) {
	_, series, err := h.svc.Report(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	if series.Lines == nil {
		series.Lines = []report.Line{}
	}
	if series.Legend == nil {
		series.Legend = []string{}
	}
	ok(c, http.StatusOK, series)
}

// Stats returns the vote count and newest crawl time. The weak ETag changes
// whenever either does, so polling clients get 304 between crawls.
func (h *Handlers) Stats(c *gin.Context) {
	n, latest, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	var ts int64
	if latest != nil {
		ts = latest.Unix()
	}
	etag := fmt.Sprintf(`W/"votes:%d:%d"`, n, ts)
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return
	}
	ok(c, http.StatusOK, StatsResponse{Votes: n, LatestCrawl: latest})
}

// queryBool parses an optional boolean query parameter; absent means false.
func queryBool(c *gin.Context, key string) (bool, error) {
	v, present := c.GetQuery(key)
	if !present || v == "" {
		return present, nil
	}
	return strconv.ParseBool(v)
}

// queryInt parses an optional integer query parameter; absent means 0.
func queryInt(c *gin.Context, key string) (int, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
