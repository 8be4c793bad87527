package usecase

import (
	"fmt"
	"time"

	emaildomain "mailpilot-backend/internal/email/domain"
	"mailpilot-backend/internal/email/repository"

	"github.com/rs/zerolog"
)

// quotaGate decides whether automation runs for a user and hands out the
// daily dispatch slots.
type quotaGate struct {
	settingsRepo repository.DraftSettingsRepository
	dispatchRepo repository.DispatchLogRepository
	locks        *keyedLocker
	now          func() time.Time
	logger       zerolog.Logger
}

// Settings returns the user's settings when automation is enabled and nil otherwise.
func (g *quotaGate) Settings(userID string) (*emaildomain.DraftAutomationSettings, error) {
	settings, err := g.settingsRepo.Get(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load automation settings: %w", err)
	}
	if settings == nil || !settings.Enabled {
		return nil, nil
	}
	return settings, nil
}

// Reserve claims one of today's dispatch slots for messageID. Quota and
// duplicate denials are outcomes, not errors.
func (g *quotaGate) Reserve(settings *emaildomain.DraftAutomationSettings, messageID, threadID string) (*emaildomain.DispatchRecord, emaildomain.ReservationOutcome, error) {
	unlock := g.locks.Lock("quota:" + settings.UserID)
	defer unlock()

	record, outcome, err := g.dispatchRepo.Reserve(settings.UserID, messageID, threadID, g.now(), settings.MaxDraftsPerDay)
	if err != nil {
		return nil, outcome, fmt.Errorf("failed to reserve dispatch slot: %w", err)
	}

	switch outcome {
	case emaildomain.ReservationQuotaExceeded:
		g.logger.Info().Str("user_id", settings.UserID).Str("message_id", messageID).
			Int("max_drafts_per_day", settings.MaxDraftsPerDay).Msg("[Gate] Daily quota reached, dispatch suppressed")
	case emaildomain.ReservationDuplicate:
		g.logger.Debug().Str("user_id", settings.UserID).Str("message_id", messageID).
			Msg("[Gate] Message already dispatched")
	}
	return record, outcome, nil
}
