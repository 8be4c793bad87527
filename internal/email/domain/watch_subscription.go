package domain

import (
	"strconv"
	"strings"
	"time"
)

// WatchSubscription is the per-user push subscription and history cursor
type WatchSubscription struct {
	UserID          string     `json:"user_id" gorm:"primaryKey"`
	EmailAddress    string     `json:"email_address" gorm:"uniqueIndex;not null"`
	Cursor          string     `json:"cursor" gorm:"column:history_cursor;not null;default:''"`
	IsActive        bool       `json:"is_active" gorm:"not null"`
	NeedsResync     bool       `json:"needs_resync" gorm:"not null;default:false"`
	WatchExpiration *time.Time `json:"watch_expiration,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	LastUpdatedAt   time.Time  `json:"last_updated_at"`
}

// CompareCursors orders two history cursors. Gmail history ids are decimal
// integers; anything else falls back to length-then-lexical order.
func CompareCursors(a, b string) int {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	ai, aErr := strconv.ParseUint(a, 10, 64)
	bi, bErr := strconv.ParseUint(b, 10, 64)
	if aErr == nil && bErr == nil {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		default:
			return 0
		}
	}
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

// MaxCursor returns the later of two cursors.
func MaxCursor(a, b string) string {
	if CompareCursors(a, b) >= 0 {
		return a
	}
	return b
}
