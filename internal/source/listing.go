package source

import (
	"context"
	"net/http"
	"time"

	"github.com/tbourn/go-meme-report/internal/config"
)

// Listing reads the public JSON listing, no credentials required.
type Listing struct {
	BaseURL   string // e.g. https://www.reddit.com
	Subreddit string
	UserAgent string
	Client    *http.Client
}

// NewListing builds a public listing client from cfg. A nil client gets a
// default one with the given timeout.
func NewListing(cfg config.SourceConfig, client *http.Client, timeout time.Duration) *Listing {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Listing{
		BaseURL:   cfg.BaseURL,
		Subreddit: cfg.Subreddit,
		UserAgent: cfg.UserAgent,
		Client:    client,
	}
}

// FetchTopN implements Source.
func (l *Listing) FetchTopN(ctx context.Context, n int, window string) ([]RawItem, error) {
	return fetchListing(ctx, l.Client, topURL(l.BaseURL, l.Subreddit, n, window), l.UserAgent, n)
}
