package domain

import "time"

// DispatchStatus is the lifecycle of one hand-off to the classification service
type DispatchStatus string

const (
	DispatchPending   DispatchStatus = "pending"
	DispatchSucceeded DispatchStatus = "succeeded"
	DispatchFailed    DispatchStatus = "failed"
)

// DispatchRecord is the dispatch log. Non-failed rows created today count
// against the user's daily quota.
type DispatchRecord struct {
	ID          string         `json:"id" gorm:"primaryKey"`
	UserID      string         `json:"user_id" gorm:"uniqueIndex:idx_dispatch_user_message;index:idx_dispatch_user_created;not null"`
	MessageID   string         `json:"message_id" gorm:"uniqueIndex:idx_dispatch_user_message;not null"`
	ThreadID    string         `json:"thread_id"`
	Status      DispatchStatus `json:"status" gorm:"not null;default:pending"`
	Error       string         `json:"error,omitempty" gorm:"type:text"`
	CreatedAt   time.Time      `json:"created_at" gorm:"index:idx_dispatch_user_created"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// TableName specifies the table name for GORM
func (DispatchRecord) TableName() string {
	return "dispatch_records"
}

// QuotaDayStart returns the start of the UTC day that t falls in. Quota is
// counted per UTC day.
func QuotaDayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ReservationOutcome is the result of asking for a dispatch slot
type ReservationOutcome int

const (
	ReservationAdmitted ReservationOutcome = iota
	ReservationQuotaExceeded
	ReservationDuplicate
)

func (o ReservationOutcome) String() string {
	switch o {
	case ReservationAdmitted:
		return "admitted"
	case ReservationQuotaExceeded:
		return "quota_exceeded"
	case ReservationDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}
