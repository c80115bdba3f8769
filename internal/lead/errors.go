package lead

import (
	"errors"
	"fmt"
)

// Stable error kinds surfaced to callers.
var (
	// ErrValidation marks missing or malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a missing lead, model, or campaign.
	ErrNotFound = errors.New("not found")
	// ErrModelMissing marks a campaign with no assigned scoring model.
	// It aborts an entire pipeline job before any side effects occur.
	ErrModelMissing = errors.New("campaign has no scoring model")
)

// ScrapeErrorKind splits fetch failures into retry classes.
type ScrapeErrorKind string

// Scrape failure classes.
const (
	// ScrapeNotAccessible covers 403/404 responses; never retried.
	ScrapeNotAccessible ScrapeErrorKind = "not_accessible"
	// ScrapeTransient covers timeouts, connection errors and 5xx; retried.
	ScrapeTransient ScrapeErrorKind = "transient"
)

// ScrapeError wraps a fetch failure with its retry class.
type ScrapeError struct {
	Kind ScrapeErrorKind
	URL  string
	Err  error
}

func (e *ScrapeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("scrape %s: %s", e.URL, e.Kind)
	}
	return fmt.Sprintf("scrape %s (%s): %v", e.URL, e.Kind, e.Err)
}

func (e *ScrapeError) Unwrap() error { return e.Err }

// NewScrapeError builds a classified scrape error.
func NewScrapeError(kind ScrapeErrorKind, url string, err error) *ScrapeError {
	return &ScrapeError{Kind: kind, URL: url, Err: err}
}

// IsNotAccessible reports whether err carries the non-retryable class.
func IsNotAccessible(err error) bool {
	var se *ScrapeError
	return errors.As(err, &se) && se.Kind == ScrapeNotAccessible
}
