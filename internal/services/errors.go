// Package services defines the report pipeline. This file maps stage failures
// onto the shared error taxonomy so that callers can branch with errors.Is and
// the transport layer can translate them into status codes.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/tbourn/go-meme-report/internal/domain"
)

// ErrPipelineBusy is returned by Start when a scheduler is already running.
var ErrPipelineBusy = errors.New("scheduler already running")

// classify wraps err with kind unless it already carries a taxonomy error or
// is a context cancellation.
func classify(kind, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	for _, k := range []error{domain.ErrSourceFetch, domain.ErrStorage, domain.ErrRender} {
		if errors.Is(err, k) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// outcome is the metrics label for err.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrSourceFetch):
		return "source_error"
	case errors.Is(err, domain.ErrStorage):
		return "storage_error"
	case errors.Is(err, domain.ErrRender):
		return "render_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
