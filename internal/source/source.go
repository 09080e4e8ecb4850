// Package source fetches the current top-ranked posts of a community from the
// ranked-item provider. Two clients implement the Source interface: Listing
// reads the public JSON listing and OAuth reads the authenticated API. Callers
// depend only on the interface.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-meme-report/internal/domain"
)

// RawItem is one ranked post as returned by the provider.
type RawItem struct {
	ID        string // fullname, e.g. "t3_1abcde"
	Title     string
	Author    string
	URL       string
	Thumbnail string // image URL or a sentinel such as "nsfw"
	Ups       int
	Downs     int
}

// Source returns the top n items of the configured community for a time
// window ("hour", "day", "week", "month", "year", "all").
type Source interface {
	FetchTopN(ctx context.Context, n int, window string) ([]RawItem, error)
}

// maxListingBytes bounds the decoded listing body.
const maxListingBytes = 8 << 20

type listing struct {
	Data struct {
		Children []struct {
			Data struct {
				Name           string `json:"name"`
				Title          string `json:"title"`
				AuthorFullname string `json:"author_fullname"`
				Author         string `json:"author"`
				URL            string `json:"url"`
				Thumbnail      string `json:"thumbnail"`
				Ups            int    `json:"ups"`
				Downs          int    `json:"downs"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func topURL(base, subreddit string, n int, window string) string {
	q := url.Values{}
	q.Set("t", window)
	q.Set("limit", strconv.Itoa(n))
	return fmt.Sprintf("%s/r/%s/top.json?%s", base, url.PathEscape(subreddit), q.Encode())
}

// fetchListing performs the GET, checks the status and decodes the listing.
// Every failure wraps domain.ErrSourceFetch.
func fetchListing(ctx context.Context, client *http.Client, rawURL, userAgent string, n int) ([]RawItem, error) {
	ctx, span := otel.Tracer("source").Start(ctx, "fetchListing",
		trace.WithAttributes(attribute.String("http.url", rawURL)))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSourceFetch, err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %w", domain.ErrSourceFetch, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		span.SetStatus(codes.Error, resp.Status)
		return nil, fmt.Errorf("%w: listing returned %s", domain.ErrSourceFetch, resp.Status)
	}

	var l listing
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxListingBytes)).Decode(&l); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: decode listing: %w", domain.ErrSourceFetch, err)
	}

	out := make([]RawItem, 0, len(l.Data.Children))
	for _, c := range l.Data.Children {
		d := c.Data
		if d.Name == "" {
			continue
		}
		author := d.AuthorFullname
		if author == "" {
			author = d.Author
		}
		out = append(out, RawItem{
			ID:        d.Name,
			Title:     d.Title,
			Author:    author,
			URL:       d.URL,
			Thumbnail: d.Thumbnail,
			Ups:       d.Ups,
			Downs:     d.Downs,
		})
		if n > 0 && len(out) == n {
			break
		}
	}
	span.SetAttributes(attribute.Int("items", len(out)))
	return out, nil
}
