package repository

import (
	"errors"

	emaildomain "mailpilot-backend/internal/email/domain"

	"gorm.io/gorm"
)

// DraftSettingsRepository reads automation settings. Writes belong to the settings service.
type DraftSettingsRepository interface {
	Get(userID string) (*emaildomain.DraftAutomationSettings, error)
}

type draftSettingsRepository struct {
	db *gorm.DB
}

func NewDraftSettingsRepository(db *gorm.DB) DraftSettingsRepository {
	return &draftSettingsRepository{db: db}
}

func (r *draftSettingsRepository) Get(userID string) (*emaildomain.DraftAutomationSettings, error) {
	var settings emaildomain.DraftAutomationSettings
	err := r.db.Where("user_id = ?", userID).First(&settings).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &settings, nil
}
