package source

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/tbourn/go-meme-report/internal/config"
	"github.com/tbourn/go-meme-report/internal/domain"
)

// DefaultAPIBaseURL is the host serving authenticated listing requests.
const DefaultAPIBaseURL = "https://oauth.reddit.com"

// OAuth reads listings through the authenticated API using the resource
// owner password grant. Tokens are cached until they expire.
type OAuth struct {
	APIBaseURL string
	Subreddit  string
	UserAgent  string

	conf     *oauth2.Config
	username string
	password string
	client   *http.Client // used for token and API requests

	mu  sync.Mutex
	tok *oauth2.Token
}

// NewOAuth builds an authenticated client from cfg. Tokens are requested from
// cfg.BaseURL + "/api/v1/access_token".
func NewOAuth(cfg config.SourceConfig, client *http.Client, timeout time.Duration) *OAuth {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &OAuth{
		APIBaseURL: DefaultAPIBaseURL,
		Subreddit:  cfg.Subreddit,
		UserAgent:  cfg.UserAgent,
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.BaseURL + "/api/v1/access_token",
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		username: cfg.Username,
		password: cfg.Password,
		client:   client,
	}
}

func (o *OAuth) token(ctx context.Context) (*oauth2.Token, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.tok.Valid() {
		return o.tok, nil
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, o.client)
	tok, err := o.conf.PasswordCredentialsToken(ctx, o.username, o.password)
	if err != nil {
		return nil, fmt.Errorf("%w: token: %w", domain.ErrSourceFetch, err)
	}
	o.tok = tok
	return tok, nil
}

// FetchTopN implements Source.
func (o *OAuth) FetchTopN(ctx context.Context, n int, window string) ([]RawItem, error) {
	tok, err := o.token(ctx)
	if err != nil {
		return nil, err
	}
	hc := &http.Client{
		Timeout: o.client.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(tok),
			Base:   o.client.Transport,
		},
	}
	return fetchListing(ctx, hc, topURL(o.APIBaseURL, o.Subreddit, n, window), o.UserAgent, n)
}

// New returns the Source selected by cfg.Mode.
func New(cfg config.SourceConfig, timeout time.Duration) Source {
	if cfg.Mode == "oauth" {
		return NewOAuth(cfg, nil, timeout)
	}
	return NewListing(cfg, nil, timeout)
}
