package cleaner

import (
	"errors"
	"fmt"
)

// Row-scoped failures. Each one discards the line it was raised for and
// nothing else.
var (
	ErrMalformedLine        = errors.New("line is empty after normalization")
	ErrMissingID            = errors.New("no numeric id")
	ErrDuplicateID          = errors.New("duplicate id")
	ErrUnparseableTimestamp = errors.New("no valid timestamp")
	ErrMissingKey           = errors.New("no key field")
	ErrDuplicateKey         = errors.New("duplicate key")
)

// Batch-scoped failures. These are returned to the caller instead of being
// folded into an empty result.
var (
	ErrUndecodable      = errors.New("input is not valid UTF-8 text")
	ErrInvalidDelimiter = errors.New("delimiter must be exactly one character")
)

// RowError describes why a single line was discarded.
type RowError struct {
	Line   int
	Raw    string
	Stage  LineState
	Detail string
	Err    error
}

func (e *RowError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("line %d: %v: %s", e.Line, e.Err, e.Detail)
	}
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// Reason is the operator-facing discard reason, without the line prefix.
func (e *RowError) Reason() string {
	if e.Detail != "" {
		return fmt.Sprintf("%v: %s", e.Err, e.Detail)
	}
	return e.Err.Error()
}
