package source

import (
	"errors"
	"fmt"
)

// ErrNoResult is returned when the search tool yields an empty identifier.
var ErrNoResult = errors.New("search returned no result")

// ResolutionError means no playable source could be found for a track.
type ResolutionError struct {
	Query string
	Err   error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %q: %v", e.Query, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}
