package domain

import (
	"errors"
	"fmt"
)

// ErrEmptyData marks a batch that normalized to zero usable items. It is not a
// failure: consumers render an empty-but-valid state.
var ErrEmptyData = errors.New("no valid data after normalization")

// ParseError reports a single frame or record that was dropped during
// normalization. The surrounding batch is still processed.
type ParseError struct {
	Kind  string // "frame" or "record"
	Index int    // position in the source payload
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s %d: invalid %s %q: %v", e.Kind, e.Index, e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// TransportError reports a failed fetch: the request could not be made, or the
// upstream answered with a non-success status. Previously fetched data stays valid.
type TransportError struct {
	Endpoint string
	Status   int // 0 when no response was received
	Err      error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.Endpoint, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ShapeMismatchError reports a payload whose structure matched none of the
// known shapes. Callers fall back to sentinel values instead of failing.
type ShapeMismatchError struct {
	Payload string
	Reason  string
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%s payload: unexpected shape: %s", e.Payload, e.Reason)
}
