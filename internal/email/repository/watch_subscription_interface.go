package repository

import (
	"time"

	emaildomain "mailpilot-backend/internal/email/domain"
)

// WatchSubscriptionRepository stores push subscriptions and their history cursors
type WatchSubscriptionRepository interface {
	FindByEmail(email string) (*emaildomain.WatchSubscription, error)
	FindByUserID(userID string) (*emaildomain.WatchSubscription, error)
	// Upsert creates or replaces the subscription for sub.UserID
	Upsert(sub *emaildomain.WatchSubscription) error
	// AdvanceCursor moves the cursor from expected to next. It returns
	// ErrCursorConflict when the stored cursor is no longer expected.
	AdvanceCursor(userID, expected, next string) error
	MarkNeedsResync(userID string) error
	Deactivate(userID string) error
	// RenewWatch records a new watch expiration without touching the cursor
	RenewWatch(userID string, expiration time.Time) error
	// ListExpiring returns active subscriptions whose watch expires before t
	// or that need a resync
	ListExpiring(t time.Time) ([]emaildomain.WatchSubscription, error)
}
