package usecase

import (
	"context"
	"time"

	emaildomain "mailpilot-backend/internal/email/domain"
)

// EmailUsecase is the mail automation surface used by the HTTP handlers,
// the Pub/Sub receiver and the watch scheduler.
type EmailUsecase interface {
	// Intake
	HandleNotification(ctx context.Context, n *emaildomain.MailboxNotification) (*IntakeResult, error)

	// Labels
	GetLabel(userID, messageID string) (emaildomain.Label, error)
	ApplyLabel(ctx context.Context, userID, messageID, threadID string, label emaildomain.Label) (bool, error)
	RemoveLabel(ctx context.Context, userID, messageID string, label emaildomain.Label) (bool, error)

	// Reply tracking
	GetReplyStatus(userID, threadID string) (*emaildomain.ThreadReplyStatus, error)
	RecordSent(ctx context.Context, userID, threadID, sentMessageID string) (*RelabelResult, error)

	// Backfill
	Backfill(ctx context.Context, userID string, count int, replaceExisting bool) (*BackfillResult, error)

	// Subscriptions
	Subscribe(ctx context.Context, userID string) (*emaildomain.WatchSubscription, error)
	Unsubscribe(ctx context.Context, userID string) error
	RenewExpiringWatches(ctx context.Context, within time.Duration) (*RenewalResult, error)
}

// Dispatcher queues admitted messages for classification.
type Dispatcher interface {
	Enqueue(job DispatchJob) bool
}
