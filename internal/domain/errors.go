package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrMalformedEvent is returned when a ledger log cannot be decoded into a market event.
	// It is permanent: retrying the same log yields the same failure.
	ErrMalformedEvent = errors.New("malformed event")

	// ErrAssetNotFound is returned when an asset is not found
	ErrAssetNotFound = errors.New("asset not found")

	// ErrAssetAlreadyExists is returned when a mint targets a token that is already mirrored
	ErrAssetAlreadyExists = errors.New("asset already exists")

	// ErrAssetBurned is returned when a mutation targets a burned asset
	ErrAssetBurned = errors.New("asset is burned")

	// ErrChainIDMismatch is returned when the node serves a different chain than configured
	ErrChainIDMismatch = errors.New("chain id mismatch")
)

// EventError ties a failure to the log that caused it
type EventError struct {
	TxHash   string
	LogIndex uint
	Event    EventKind
	Err      error
}

func (e *EventError) Error() string {
	return fmt.Sprintf("event %s tx=%s log=%d: %v", e.Event, e.TxHash, e.LogIndex, e.Err)
}

func (e *EventError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether retrying the same block range may succeed.
// Malformed payloads and cancellation are not retryable; everything else is
// treated as a transient infrastructure failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrMalformedEvent) ||
		errors.Is(err, ErrChainIDMismatch) ||
		errors.Is(err, context.Canceled) {
		return false
	}
	return true
}
