package automation

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned by Controller operations called without a tenant id.
	ErrUnauthorized = errors.New("tenant id is required")
	// ErrInvalidDateKey is returned for special-date keys that are not a real MM-DD day.
	ErrInvalidDateKey = errors.New("invalid special date key")
	// ErrAlreadyRunning is logged when Start is called on a running process.
	// Start itself reports it as a false return.
	ErrAlreadyRunning = errors.New("already running")
)

// GenerationError reports a content generator failure for one event.
type GenerationError struct {
	EventID string
	UserID  string
	Err     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate content for event %s: %v", e.EventID, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// DeliveryError reports a publisher failure for one event.
type DeliveryError struct {
	EventID  string
	UserID   string
	Platform string
	Err      error
}

func (e *DeliveryError) Error() string {
	platform := e.Platform
	if platform == "" {
		platform = "default channel"
	}
	return fmt.Sprintf("deliver event %s to %s: %v", e.EventID, platform, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// StoreError reports an event store read or write failure. Op names the
// store call, e.g. "list events".
type StoreError struct {
	Op      string
	UserID  string
	EventID string
	Err     error
}

func (e *StoreError) Error() string {
	switch {
	case e.EventID != "":
		return fmt.Sprintf("%s (event %s): %v", e.Op, e.EventID, e.Err)
	case e.UserID != "":
		return fmt.Sprintf("%s (user %s): %v", e.Op, e.UserID, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *StoreError) Unwrap() error { return e.Err }

// failureKind labels an error for logs, metrics and the activity feed.
func failureKind(err error) string {
	var (
		genErr   *GenerationError
		delErr   *DeliveryError
		storeErr *StoreError
	)
	switch {
	case errors.As(err, &genErr):
		return "generation"
	case errors.As(err, &delErr):
		return "delivery"
	case errors.As(err, &storeErr):
		return "store"
	default:
		return "internal"
	}
}
