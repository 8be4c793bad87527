package repository

import (
	"errors"
	"time"

	emaildomain "mailpilot-backend/internal/email/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessageLabelRepository stores the current core label per message
type MessageLabelRepository interface {
	Get(userID, messageID string) (*emaildomain.MessageLabel, error)
	Save(userID, messageID, threadID, label string) error
	Delete(userID, messageID string) error
	ListByThread(userID, threadID string) ([]emaildomain.MessageLabel, error)
}

type messageLabelRepository struct {
	db *gorm.DB
}

// NewMessageLabelRepository creates a new instance of messageLabelRepository
func NewMessageLabelRepository(db *gorm.DB) MessageLabelRepository {
	return &messageLabelRepository{
		db: db,
	}
}

func (r *messageLabelRepository) Get(userID, messageID string) (*emaildomain.MessageLabel, error) {
	var ml emaildomain.MessageLabel
	err := r.db.Where("user_id = ? AND message_id = ?", userID, messageID).First(&ml).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ml, nil
}

func (r *messageLabelRepository) Save(userID, messageID, threadID, label string) error {
	ml := &emaildomain.MessageLabel{
		UserID:    userID,
		MessageID: messageID,
		ThreadID:  threadID,
		Label:     label,
		UpdatedAt: time.Now(),
	}
	// An empty threadID keeps whatever thread was recorded before
	columns := []string{"label", "updated_at"}
	if threadID != "" {
		columns = append(columns, "thread_id")
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "message_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(ml).Error
}

func (r *messageLabelRepository) Delete(userID, messageID string) error {
	return r.db.Where("user_id = ? AND message_id = ?", userID, messageID).Delete(&emaildomain.MessageLabel{}).Error
}

func (r *messageLabelRepository) ListByThread(userID, threadID string) ([]emaildomain.MessageLabel, error) {
	var labels []emaildomain.MessageLabel
	err := r.db.Where("user_id = ? AND thread_id = ?", userID, threadID).Find(&labels).Error
	if err != nil {
		return nil, err
	}
	return labels, nil
}
