package domain

import "time"

// DraftAutomationSettings is owned by the settings service; this service only reads it.
type DraftAutomationSettings struct {
	UserID          string      `json:"user_id" gorm:"primaryKey"`
	Enabled         bool        `json:"enabled" gorm:"not null;default:false"`
	MaxDraftsPerDay int         `json:"max_drafts_per_day" gorm:"not null"`
	ExcludedSenders StringArray `json:"excluded_senders" gorm:"type:text"`
	ExcludedDomains StringArray `json:"excluded_domains" gorm:"type:text"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (DraftAutomationSettings) TableName() string {
	return "draft_automation_settings"
}
