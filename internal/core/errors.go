package core

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrAuth is returned when source credentials are invalid or expired
	ErrAuth = errors.New("authentication failed")
	// ErrRateLimit is returned when an external service throttles us
	ErrRateLimit = errors.New("rate limit exceeded")
	// ErrExtraction is returned when one item cannot be turned into a record
	ErrExtraction = errors.New("extraction failed")
	// ErrStore is returned when the record store cannot persist a record
	ErrStore = errors.New("record store write failed")
	// ErrFilter is returned when the relevance filter cannot decide
	ErrFilter = errors.New("relevance filter failed")
)

// ValidationError reports an invalid plan parameter
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ErrorKind is the coarse classification of a failure
type ErrorKind string

const (
	KindAuth       ErrorKind = "auth"
	KindRateLimit  ErrorKind = "rate_limit"
	KindExtraction ErrorKind = "extraction"
	KindValidation ErrorKind = "validation"
	KindStore      ErrorKind = "store"
	KindFilter     ErrorKind = "filter"
	KindTimeout    ErrorKind = "timeout"
	KindCancelled  ErrorKind = "cancelled"
	KindUnknown    ErrorKind = "unknown"
)

// KindOf maps an error onto the taxonomy
func KindOf(err error) ErrorKind {
	var verr *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuth):
		return KindAuth
	case errors.Is(err, ErrRateLimit):
		return KindRateLimit
	case errors.Is(err, ErrExtraction):
		return KindExtraction
	case errors.Is(err, ErrStore):
		return KindStore
	case errors.Is(err, ErrFilter):
		return KindFilter
	case errors.As(err, &verr):
		return KindValidation
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCancelled
	default:
		return KindUnknown
	}
}

// ItemError ties a failure to the source item that caused it
type ItemError struct {
	ItemID string
	Kind   ErrorKind
	Err    error
}

// NewItemError classifies err and attaches the item id
func NewItemError(itemID string, err error) *ItemError {
	return &ItemError{ItemID: itemID, Kind: KindOf(err), Err: err}
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %s: %s: %v", e.ItemID, e.Kind, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}
