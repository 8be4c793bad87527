package repository

import (
	"errors"
	"fmt"
	"strings"
	"time"

	emaildomain "mailpilot-backend/internal/email/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type watchSubscriptionRepository struct {
	db *gorm.DB
}

// NewWatchSubscriptionRepository creates a new instance of watchSubscriptionRepository
func NewWatchSubscriptionRepository(db *gorm.DB) WatchSubscriptionRepository {
	return &watchSubscriptionRepository{
		db: db,
	}
}

func (r *watchSubscriptionRepository) FindByEmail(email string) (*emaildomain.WatchSubscription, error) {
	var sub emaildomain.WatchSubscription
	err := r.db.Where("email_address = ?", strings.ToLower(strings.TrimSpace(email))).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *watchSubscriptionRepository) FindByUserID(userID string) (*emaildomain.WatchSubscription, error) {
	var sub emaildomain.WatchSubscription
	err := r.db.Where("user_id = ?", userID).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *watchSubscriptionRepository) Upsert(sub *emaildomain.WatchSubscription) error {
	now := time.Now()
	sub.EmailAddress = strings.ToLower(strings.TrimSpace(sub.EmailAddress))
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.LastUpdatedAt = now
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"email_address", "history_cursor", "is_active", "needs_resync", "watch_expiration", "last_updated_at",
		}),
	}).Create(sub).Error
}

// AdvanceCursor is a compare-and-set on the cursor column.
func (r *watchSubscriptionRepository) AdvanceCursor(userID, expected, next string) error {
	result := r.db.Model(&emaildomain.WatchSubscription{}).
		Where("user_id = ? AND history_cursor = ?", userID, expected).
		Updates(map[string]interface{}{
			"history_cursor":  next,
			"last_updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: user %s expected %s", emaildomain.ErrCursorConflict, userID, expected)
	}
	return nil
}

func (r *watchSubscriptionRepository) MarkNeedsResync(userID string) error {
	return r.db.Model(&emaildomain.WatchSubscription{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"needs_resync":    true,
			"last_updated_at": time.Now(),
		}).Error
}

func (r *watchSubscriptionRepository) Deactivate(userID string) error {
	return r.db.Model(&emaildomain.WatchSubscription{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"is_active":       false,
			"last_updated_at": time.Now(),
		}).Error
}

func (r *watchSubscriptionRepository) RenewWatch(userID string, expiration time.Time) error {
	return r.db.Model(&emaildomain.WatchSubscription{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"watch_expiration": expiration,
			"last_updated_at":  time.Now(),
		}).Error
}

func (r *watchSubscriptionRepository) ListExpiring(t time.Time) ([]emaildomain.WatchSubscription, error) {
	var subs []emaildomain.WatchSubscription
	err := r.db.Where("is_active = ? AND (needs_resync = ? OR watch_expiration IS NULL OR watch_expiration < ?)", true, true, t).
		Order("watch_expiration").
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}
