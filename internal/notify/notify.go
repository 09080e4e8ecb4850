// Package notify announces freshly regenerated reports to external chat and
// push services through shoutrrr service URLs (telegram://, discord://,
// generic:// and so on).
package notify

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
	zlog "github.com/rs/zerolog/log"

	"github.com/tbourn/go-meme-report/internal/regen"
)

// Notifier is told about every regenerated report.
type Notifier interface {
	ReportReady(ctx context.Context, a regen.Artifact) error
}

// Nop discards notifications.
type Nop struct{}

// ReportReady implements Notifier.
func (Nop) ReportReady(context.Context, regen.Artifact) error { return nil }

// Shoutrrr delivers notifications to every configured service URL.
type Shoutrrr struct {
	sender *router.ServiceRouter
}

// NewShoutrrr validates urls and builds a sender. A timeout > 0 bounds each
// delivery.
func NewShoutrrr(urls []string, timeout time.Duration) (*Shoutrrr, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("at least one notification URL is required")
	}
	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, fmt.Errorf("notification urls: %w", err)
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	return &Shoutrrr{sender: sender}, nil
}

// New returns a Shoutrrr notifier, or Nop when no URLs are configured.
func New(urls []string, timeout time.Duration) (Notifier, error) {
	if len(urls) == 0 {
		return Nop{}, nil
	}
	return NewShoutrrr(urls, timeout)
}

// ReportReady implements Notifier. The first delivery error is returned after
// every service was attempted.
func (s *Shoutrrr) ReportReady(ctx context.Context, a regen.Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := stypes.Params{}
	params.SetTitle("Meme report regenerated")
	body := fmt.Sprintf("New report %s generated at %s", a.Path, a.ProducedAt.UTC().Format(time.RFC3339))

	var first error
	for _, err := range s.sender.Send(body, &params) {
		if err == nil {
			continue
		}
		zlog.Warn().Str("component", "notify").Err(err).Msg("notification delivery failed")
		if first == nil {
			first = err
		}
	}
	return first
}
