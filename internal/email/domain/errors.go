package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedEnvelope    = errors.New("malformed notification envelope")
	ErrNoActiveSubscription = errors.New("no active watch subscription")
	ErrCursorExpired        = errors.New("history cursor expired, full resync required")
	ErrCursorConflict       = errors.New("cursor was advanced concurrently")
	ErrAuthentication       = errors.New("mailbox authentication failed")
	ErrTokenRevoked         = fmt.Errorf("%w: refresh token revoked", ErrAuthentication)
	ErrUnknownLabel         = errors.New("unknown label")
	ErrValidation           = errors.New("validation failed")
	ErrAutomationDisabled   = errors.New("draft automation is disabled")
)

// ProviderError wraps a failed mailbox API call.
type ProviderError struct {
	Op         string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s failed (%d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
