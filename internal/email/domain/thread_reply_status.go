package domain

import "time"

// ThreadReplyStatus tracks whether the user is waiting on a reply in a thread.
// Rows are only ever updated, never deleted.
type ThreadReplyStatus struct {
	UserID            string     `json:"user_id" gorm:"primaryKey"`
	ThreadID          string     `json:"thread_id" gorm:"primaryKey"`
	AwaitingReply     bool       `json:"awaiting_reply" gorm:"not null;default:false"`
	LastSentAt        *time.Time `json:"last_sent_at,omitempty"`
	LastSentMessageID string     `json:"last_sent_message_id,omitempty"`
	ReplyReceived     bool       `json:"reply_received" gorm:"not null;default:false"`
	ReplyReceivedAt   *time.Time `json:"reply_received_at,omitempty"`
	ReplyMessageID    string     `json:"reply_message_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// ReplyState is the thread-level state derived from a status row
type ReplyState string

const (
	ReplyStateNone          ReplyState = "NONE"
	ReplyStateAwaitingReply ReplyState = "AWAITING_REPLY"
	ReplyStateReplyReceived ReplyState = "REPLY_RECEIVED"
)

// State returns the state machine position of s; a nil status is NONE.
func (s *ThreadReplyStatus) State() ReplyState {
	switch {
	case s == nil:
		return ReplyStateNone
	case s.AwaitingReply:
		return ReplyStateAwaitingReply
	case s.ReplyReceived:
		return ReplyStateReplyReceived
	default:
		return ReplyStateNone
	}
}
