// Package handlers defines the stable, machine-readable error codes returned
// in the `code` field of every error envelope. Clients branch on these rather
// than on messages.
package handlers

import "github.com/tbourn/go-meme-report/internal/http/middleware"

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeRateLimited      = middleware.CodeRateLimited
	ErrCodeTimeout          = "timeout"
	ErrCodeInternal         = "internal_error"

	// Pipeline failures, one per error kind.
	ErrCodeSourceUnavailable  = "source_unavailable"
	ErrCodeStorageUnavailable = "storage_unavailable"
	ErrCodeRenderFailed       = "render_failed"
)
