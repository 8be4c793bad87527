package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	emaildomain "mailpilot-backend/internal/email/domain"
)

// RenewalResult counts one pass of the watch renewal job
type RenewalResult struct {
	Renewed     int `json:"renewed"`
	Resynced    int `json:"resynced"`
	Deactivated int `json:"deactivated"`
	Failed      int `json:"failed"`
}

// Subscribe starts a Gmail watch and stores its history id as the initial
// cursor. Subscribing again restarts from the current history id.
func (u *emailUsecase) Subscribe(ctx context.Context, userID string) (*emaildomain.WatchSubscription, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", emaildomain.ErrValidation)
	}
	user, err := u.userRepo.FindByID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: unknown user %s", emaildomain.ErrValidation, userID)
	}

	mb, err := u.mailbox(ctx, userID)
	if err != nil {
		return nil, err
	}
	return u.startWatch(ctx, mb, user.Email)
}

func (u *emailUsecase) startWatch(ctx context.Context, mb emaildomain.Mailbox, email string) (*emaildomain.WatchSubscription, error) {
	cursor, expiration, err := u.provider.Watch(ctx, mb, u.opts.WatchTopic)
	if err != nil {
		return nil, fmt.Errorf("failed to start watch: %w", err)
	}

	sub := &emaildomain.WatchSubscription{
		UserID:          mb.UserID,
		EmailAddress:    email,
		Cursor:          cursor,
		IsActive:        true,
		NeedsResync:     false,
		WatchExpiration: &expiration,
	}
	if err := u.subRepo.Upsert(sub); err != nil {
		return nil, fmt.Errorf("failed to save subscription: %w", err)
	}
	u.logger.Info().Str("user_id", mb.UserID).Str("cursor", cursor).Time("expires", expiration).
		Msg("[Subscription] Watch active")
	return sub, nil
}

// Unsubscribe stops the watch and deactivates the subscription. A failed stop
// call is logged; Gmail expires the watch on its own.
func (u *emailUsecase) Unsubscribe(ctx context.Context, userID string) error {
	sub, err := u.subRepo.FindByUserID(userID)
	if err != nil {
		return fmt.Errorf("failed to load subscription: %w", err)
	}
	if sub == nil {
		return fmt.Errorf("%w: user %s", emaildomain.ErrNoActiveSubscription, userID)
	}

	mb, err := u.mailbox(ctx, userID)
	if err == nil {
		err = u.provider.StopWatch(ctx, mb)
	}
	if err != nil {
		u.logger.Warn().Err(err).Str("user_id", userID).Msg("[Subscription] Stop watch failed")
	}
	return u.subRepo.Deactivate(userID)
}

// RenewExpiringWatches re-watches active subscriptions expiring within the
// window. Subscriptions flagged for resync restart from a fresh cursor.
func (u *emailUsecase) RenewExpiringWatches(ctx context.Context, within time.Duration) (*RenewalResult, error) {
	subs, err := u.subRepo.ListExpiring(u.opts.Now().Add(within))
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring watches: %w", err)
	}

	result := &RenewalResult{}
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := u.renew(ctx, sub, result); err != nil {
			result.Failed++
			u.logger.Error().Err(err).Str("user_id", sub.UserID).Msg("[Subscription] Renewal failed")
		}
	}
	return result, nil
}

func (u *emailUsecase) renew(ctx context.Context, sub emaildomain.WatchSubscription, result *RenewalResult) error {
	err := u.rewatch(ctx, sub, result)
	if errors.Is(err, emaildomain.ErrTokenRevoked) {
		result.Deactivated++
		return u.subRepo.Deactivate(sub.UserID)
	}
	return err
}

func (u *emailUsecase) rewatch(ctx context.Context, sub emaildomain.WatchSubscription, result *RenewalResult) error {
	mb, err := u.mailbox(ctx, sub.UserID)
	if err != nil {
		return err
	}
	if sub.NeedsResync {
		if _, err := u.startWatch(ctx, mb, sub.EmailAddress); err != nil {
			return err
		}
		result.Resynced++
		return nil
	}

	_, expiration, err := u.provider.Watch(ctx, mb, u.opts.WatchTopic)
	if err != nil {
		return err
	}
	if err := u.subRepo.RenewWatch(sub.UserID, expiration); err != nil {
		return err
	}
	result.Renewed++
	return nil
}
