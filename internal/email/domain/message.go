package domain

import "time"

// ChangeKind classifies one entry of a history diff
type ChangeKind string

const (
	ChangeAddedToInbox ChangeKind = "added-to-inbox"
	ChangeSent         ChangeKind = "sent"
	ChangeRemoved      ChangeKind = "removed"
	ChangeOther        ChangeKind = "other"
)

// ChangeEvent is produced by the history differ and never persisted.
type ChangeEvent struct {
	MessageID  string
	ThreadID   string
	ChangeKind ChangeKind
}

// HistoryRecordKind is the raw kind of a provider history entry
type HistoryRecordKind string

const (
	HistoryMessageAdded   HistoryRecordKind = "messageAdded"
	HistoryMessageDeleted HistoryRecordKind = "messageDeleted"
	HistoryLabelAdded     HistoryRecordKind = "labelAdded"
	HistoryLabelRemoved   HistoryRecordKind = "labelRemoved"
)

// HistoryRecord is one raw change reported by the provider.
type HistoryRecord struct {
	Kind      HistoryRecordKind
	MessageID string
	ThreadID  string
	LabelIDs  []string
}

// HistoryPage is everything the provider reported after a cursor.
type HistoryPage struct {
	Records    []HistoryRecord
	NextCursor string
}

// NormalizedMessage is the provider-neutral view of one message
type NormalizedMessage struct {
	MessageID       string            `json:"message_id"`
	ThreadID        string            `json:"thread_id"`
	FromAddress     string            `json:"from_address"`
	FromDisplayName string            `json:"from_display_name"`
	ToAddress       string            `json:"to_address"`
	CcAddress       string            `json:"cc_address,omitempty"`
	Subject         string            `json:"subject"`
	BodyText        string            `json:"body_text"`
	Snippet         string            `json:"snippet"`
	ExistingLabels  []string          `json:"existing_labels"`
	Headers         map[string]string `json:"headers,omitempty"`
	ReceivedAt      time.Time         `json:"received_at"`
}

// HasLabel reports whether the provider label name or id is attached.
func (m *NormalizedMessage) HasLabel(label string) bool {
	for _, l := range m.ExistingLabels {
		if l == label {
			return true
		}
	}
	return false
}

// MessageLabel records the core label currently attached to a message
type MessageLabel struct {
	UserID    string    `json:"user_id" gorm:"primaryKey"`
	MessageID string    `json:"message_id" gorm:"primaryKey"`
	ThreadID  string    `json:"thread_id" gorm:"index"`
	Label     string    `json:"label" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (MessageLabel) TableName() string {
	return "message_labels"
}
