package registry

import "errors"

var (
	// ErrNotFound is returned when a crate doesn't exist in the index or API.
	ErrNotFound = errors.New("crate not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors,
	// 5xx responses).
	ErrNetwork = errors.New("network error")

	// ErrMalformed is returned when a response body yields no parsable
	// records. Individual bad records inside an otherwise usable body are
	// skipped, not reported.
	ErrMalformed = errors.New("malformed response")

	// ErrNoUsableVersion is returned when every published version of a crate
	// is yanked.
	ErrNoUsableVersion = errors.New("no usable version")
)
