package repository

import (
	"errors"
	"time"

	emaildomain "mailpilot-backend/internal/email/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ThreadReplyStatusRepository defines the interface for reply status operations
type ThreadReplyStatusRepository interface {
	Get(userID, threadID string) (*emaildomain.ThreadReplyStatus, error)
	// UpsertSent puts the thread into the awaiting state
	UpsertSent(userID, threadID, sentMessageID string, sentAt time.Time) error
	// MarkReplyReceived flips an awaiting thread to reply-received. It reports
	// false when the thread was not awaiting a reply.
	MarkReplyReceived(userID, threadID, replyMessageID string, at time.Time) (bool, error)
}

type threadReplyStatusRepository struct {
	db *gorm.DB
}

// NewThreadReplyStatusRepository creates a new instance of threadReplyStatusRepository
func NewThreadReplyStatusRepository(db *gorm.DB) ThreadReplyStatusRepository {
	return &threadReplyStatusRepository{
		db: db,
	}
}

func (r *threadReplyStatusRepository) Get(userID, threadID string) (*emaildomain.ThreadReplyStatus, error) {
	var status emaildomain.ThreadReplyStatus
	err := r.db.Where("user_id = ? AND thread_id = ?", userID, threadID).First(&status).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &status, nil
}

func (r *threadReplyStatusRepository) UpsertSent(userID, threadID, sentMessageID string, sentAt time.Time) error {
	now := time.Now()
	status := &emaildomain.ThreadReplyStatus{
		UserID:            userID,
		ThreadID:          threadID,
		AwaitingReply:     true,
		LastSentAt:        &sentAt,
		LastSentMessageID: sentMessageID,
		ReplyReceived:     false,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "thread_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"awaiting_reply", "last_sent_at", "last_sent_message_id", "reply_received", "updated_at",
		}),
	}).Create(status).Error
}

// MarkReplyReceived is conditional on awaiting_reply so concurrent or
// duplicate observations flip the thread at most once.
func (r *threadReplyStatusRepository) MarkReplyReceived(userID, threadID, replyMessageID string, at time.Time) (bool, error) {
	result := r.db.Model(&emaildomain.ThreadReplyStatus{}).
		Where("user_id = ? AND thread_id = ? AND awaiting_reply = ?", userID, threadID, true).
		Updates(map[string]interface{}{
			"awaiting_reply":    false,
			"reply_received":    true,
			"reply_received_at": at,
			"reply_message_id":  replyMessageID,
			"updated_at":        time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
