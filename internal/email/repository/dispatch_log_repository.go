package repository

import (
	"time"

	emaildomain "mailpilot-backend/internal/email/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DispatchLogRepository defines the interface for the dispatch log
type DispatchLogRepository interface {
	// Reserve atomically checks the quota of the UTC day containing at and
	// inserts a pending record stamped at. The returned record is nil unless
	// the outcome is ReservationAdmitted.
	Reserve(userID, messageID, threadID string, at time.Time, limit int) (*emaildomain.DispatchRecord, emaildomain.ReservationOutcome, error)
	CountSince(userID string, since time.Time) (int64, error)
	MarkSucceeded(id string) error
	// MarkFailed releases the quota slot held by the record
	MarkFailed(id, reason string) error
	FindByMessage(userID, messageID string) (*emaildomain.DispatchRecord, error)
}

type dispatchLogRepository struct {
	db *gorm.DB
}

// NewDispatchLogRepository creates a new instance of dispatchLogRepository
func NewDispatchLogRepository(db *gorm.DB) DispatchLogRepository {
	return &dispatchLogRepository{
		db: db,
	}
}

func (r *dispatchLogRepository) Reserve(userID, messageID, threadID string, at time.Time, limit int) (*emaildomain.DispatchRecord, emaildomain.ReservationOutcome, error) {
	dayStart := emaildomain.QuotaDayStart(at)
	nextDay := dayStart.AddDate(0, 0, 1)
	var record *emaildomain.DispatchRecord
	outcome := emaildomain.ReservationAdmitted

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&emaildomain.DispatchRecord{}).
			Where("user_id = ? AND message_id = ?", userID, messageID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			outcome = emaildomain.ReservationDuplicate
			return nil
		}

		var used int64
		if err := tx.Model(&emaildomain.DispatchRecord{}).
			Where("user_id = ? AND created_at >= ? AND created_at < ? AND status <> ?",
				userID, dayStart, nextDay, emaildomain.DispatchFailed).
			Count(&used).Error; err != nil {
			return err
		}
		if used >= int64(limit) {
			outcome = emaildomain.ReservationQuotaExceeded
			return nil
		}

		record = &emaildomain.DispatchRecord{
			ID:        uuid.New().String(),
			UserID:    userID,
			MessageID: messageID,
			ThreadID:  threadID,
			Status:    emaildomain.DispatchPending,
			CreatedAt: at.UTC(),
		}
		return tx.Create(record).Error
	})
	if err != nil {
		return nil, outcome, err
	}
	return record, outcome, nil
}

func (r *dispatchLogRepository) CountSince(userID string, since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&emaildomain.DispatchRecord{}).
		Where("user_id = ? AND created_at >= ? AND status <> ?", userID, since, emaildomain.DispatchFailed).
		Count(&count).Error
	return count, err
}

func (r *dispatchLogRepository) MarkSucceeded(id string) error {
	now := time.Now().UTC()
	return r.db.Model(&emaildomain.DispatchRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       emaildomain.DispatchSucceeded,
			"completed_at": now,
		}).Error
}

func (r *dispatchLogRepository) MarkFailed(id, reason string) error {
	now := time.Now().UTC()
	return r.db.Model(&emaildomain.DispatchRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       emaildomain.DispatchFailed,
			"error":        reason,
			"completed_at": now,
		}).Error
}

func (r *dispatchLogRepository) FindByMessage(userID, messageID string) (*emaildomain.DispatchRecord, error) {
	var records []emaildomain.DispatchRecord
	err := r.db.Where("user_id = ? AND message_id = ?", userID, messageID).Limit(1).Find(&records).Error
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}
