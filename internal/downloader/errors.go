package downloader

import "gitlab.com/tozd/go/errors"

// ErrSkipped marks a fetch that failed for a reason callers should treat as
// a non-fatal skip rather than a retryable or terminal failure — a 404
// response, which the retry predicate already treats as non-retriable.
var ErrSkipped = errors.Base("skipped")

// IsSkipped reports whether err wraps ErrSkipped.
func IsSkipped(err error) bool {
	return errors.Is(err, ErrSkipped)
}
