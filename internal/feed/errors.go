package feed

import (
	"errors"
	"fmt"
)

var (
	// ErrMarkup means a relay answered with an HTML page instead of JSON.
	ErrMarkup = errors.New("relay returned markup instead of JSON")

	// ErrStructure means the payload parsed but has no data.children list.
	ErrStructure = errors.New("payload has no data.children list")

	// ErrEmptySource is recorded for a source whose page had no posts.
	ErrEmptySource = errors.New("returned no posts")

	// ErrNoContent is returned when a whole fetch produced zero posts.
	ErrNoContent = errors.New("no content found")
)

// StatusError is a non-2xx answer from a relay.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.Code)
}

// SourceError names a source whose relay chain was exhausted, or which
// returned nothing.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("r/%s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}
