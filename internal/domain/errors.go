package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by read paths when no row matches.
	ErrNotFound = errors.New("not found")

	// ErrOutOfOrderObservation is the store rejecting an observation whose
	// timestamp is not strictly after the latest one for its property.
	// The history is append-only and never reordered.
	ErrOutOfOrderObservation = errors.New("observation not after latest")
)

// FetchError is a page retrieval failure after the retry budget is spent,
// or a terminal HTTP fault that consumed no retries.
type FetchError struct {
	URL      string
	Attempts int
	Cause    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// ExtractionError is a page from which no listing could be parsed.
// Individual record failures are reported alongside successful records
// and do not produce an ExtractionError.
type ExtractionError struct {
	URL    string
	Reason string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %s", e.URL, e.Reason)
}
