package domain

import (
	"errors"
	"fmt"
)

// Failure kinds for a lookup. Every remote-call failure is converted to one
// of these at the opendata adapter boundary; nothing above it sees a raw
// transport error. All are scoped to a single request.
var (
	// ErrEmptyResult means the query matched no records. Absence of data is
	// a normal outcome for a mistyped or nonexistent address.
	ErrEmptyResult = errors.New("no matching records")

	// ErrInsufficientData means the neighbourhood sample was too small for
	// any comparison at all.
	ErrInsufficientData = errors.New("insufficient neighbourhood data")
)

// AmbiguousError reports a multi-unit address queried without a unit.
type AmbiguousError struct {
	Matches int
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("address matches %d units, unit number required", e.Matches)
}

// RemoteUnavailableError reports a network-level failure or an unusable
// response (schema mismatch) from the open-data provider.
type RemoteUnavailableError struct {
	Dataset string
	Detail  string
	Err     error
}

func (e *RemoteUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("open data %s unavailable: %s: %v", e.Dataset, e.Detail, e.Err)
	}
	return fmt.Sprintf("open data %s unavailable: %s", e.Dataset, e.Detail)
}

func (e *RemoteUnavailableError) Unwrap() error { return e.Err }
