package loader

import "errors"

var (
	// ErrNoRenderer is returned by New when no Renderer is supplied.
	ErrNoRenderer = errors.New("renderer is required")

	// ErrNoAPI is returned by New when no catalog API is supplied.
	ErrNoAPI = errors.New("catalog api is required")
)

// User-visible status messages.
const (
	StatusLoading     = "Loading…"
	StatusUpdating    = "Updating…"
	StatusShowing     = "Showing %d items"
	StatusEndOfList   = "Showing all %d items"
	StatusNoResults   = "No results"
	StatusFailed      = "Failed to load. Try again."
	StatusStartFailed = "Could not start the application."
)
