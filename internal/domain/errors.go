package domain

import "errors"

// Error taxonomy shared by the pipeline stages. Stage errors wrap one of these
// so that callers can branch with errors.Is.
var (
	// ErrSourceFetch marks a failed or non-success fetch from the ranked-item
	// source or from an image host.
	ErrSourceFetch = errors.New("source fetch failed")

	// ErrStorage marks a connection or query failure in the metric store.
	ErrStorage = errors.New("storage failure")

	// ErrMissingTable marks a write against a table that does not exist yet.
	ErrMissingTable = errors.New("table not initialized")

	// ErrRender marks a failure of the downstream report renderer.
	ErrRender = errors.New("render failed")

	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
)
