package domain

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

// Mailbox identifies whose mailbox a provider call acts on.
type Mailbox struct {
	UserID string
	Token  oauth2.TokenSource
}

// MailProvider is the narrow mailbox surface the automation pipeline needs.
// Label arguments and ExistingLabels are provider-side label names, not ids.
type MailProvider interface {
	// GetMessage fetches full content without touching read-state.
	GetMessage(ctx context.Context, mb Mailbox, messageID string) (*NormalizedMessage, error)
	// ListHistory returns every change after startCursor. It returns
	// ErrCursorExpired when the provider can no longer diff from startCursor.
	ListHistory(ctx context.Context, mb Mailbox, startCursor string) (*HistoryPage, error)
	ListInboxMessageIDs(ctx context.Context, mb Mailbox, max int) ([]string, error)
	ListThreadMessageIDs(ctx context.Context, mb Mailbox, threadID string) ([]string, error)
	ModifyLabels(ctx context.Context, mb Mailbox, messageID string, add, remove []string) error
	Watch(ctx context.Context, mb Mailbox, topicName string) (cursor string, expiration time.Time, err error)
	StopWatch(ctx context.Context, mb Mailbox) error
}

// TokenProvider resolves a user's mailbox credentials.
type TokenProvider interface {
	TokenSource(ctx context.Context, userID string) (oauth2.TokenSource, error)
}

// ClassificationClient hands a message to the external classification and
// draft generation service.
type ClassificationClient interface {
	DispatchForClassification(ctx context.Context, userID string, msg *NormalizedMessage) error
}
