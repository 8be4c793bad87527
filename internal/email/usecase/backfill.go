package usecase

import (
	"context"
	"fmt"
	"sync"

	emaildomain "mailpilot-backend/internal/email/domain"

	"golang.org/x/sync/errgroup"
)

const defaultBackfillCount = 100

// BackfillError is one message the backfill could not label
type BackfillError struct {
	MessageID string `json:"messageId"`
	Error     string `json:"error"`
}

// BackfillResult counts backfill outcomes. labeled + skippedSelf +
// skippedExisting + len(errors) never exceeds totalFetched.
type BackfillResult struct {
	TotalFetched    int             `json:"totalFetched"`
	Labeled         int             `json:"labeled"`
	SkippedSelf     int             `json:"skippedSelf"`
	SkippedExisting int             `json:"skippedExisting"`
	Errors          []BackfillError `json:"errors"`
}

// Backfill labels recent inbox messages. It never dispatches and ignores the
// exclusion lists.
func (u *emailUsecase) Backfill(ctx context.Context, userID string, count int, replaceExisting bool) (*BackfillResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", emaildomain.ErrValidation)
	}
	count = clampBackfillCount(count, u.opts.BackfillMaxCount)

	settings, err := u.gate.Settings(userID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		return nil, emaildomain.ErrAutomationDisabled
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

	ids, err := u.provider.ListInboxMessageIDs(ctx, mb, count)
	if err != nil {
		return nil, fmt.Errorf("failed to list inbox: %w", err)
	}

	result := &BackfillResult{TotalFetched: len(ids), Errors: []BackfillError{}}
	var mu sync.Mutex
	fail := func(id string, err error) {
		mu.Lock()
		result.Errors = append(result.Errors, BackfillError{MessageID: id, Error: err.Error()})
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.opts.BackfillConcurrency)
	for _, id := range ids {
		g.Go(func() error {
			msg, err := u.provider.GetMessage(gctx, mb, id)
			if err != nil {
				fail(id, err)
				return nil
			}
			if isFromSelf(msg.FromAddress, user.Email) {
				mu.Lock()
				result.SkippedSelf++
				mu.Unlock()
				return nil
			}

			if !replaceExisting {
				existing, err := u.hasCoreLabel(userID, msg)
				if err != nil {
					fail(id, err)
					return nil
				}
				if existing {
					mu.Lock()
					result.SkippedExisting++
					mu.Unlock()
					return nil
				}
			}

			label := ClassifyMessage(msg, user.Email)
			if _, err := u.labels.Apply(gctx, mb, msg.MessageID, msg.ThreadID, label); err != nil {
				fail(id, err)
				return nil
			}
			mu.Lock()
			result.Labeled++
			mu.Unlock()
			return nil
		})
	}
	// workers report through result, never through the group
	_ = g.Wait()

	u.logger.Info().Str("user_id", userID).Int("fetched", result.TotalFetched).Int("labeled", result.Labeled).
		Int("skipped_self", result.SkippedSelf).Int("skipped_existing", result.SkippedExisting).
		Int("errors", len(result.Errors)).Msg("[Backfill] Completed")
	return result, nil
}

func (u *emailUsecase) hasCoreLabel(userID string, msg *emaildomain.NormalizedMessage) (bool, error) {
	if _, ok := u.labels.coreLabelOf(msg); ok {
		return true, nil
	}
	current, err := u.labels.Current(userID, msg.MessageID)
	if err != nil {
		return false, err
	}
	return current != emaildomain.LabelUnlabeled, nil
}

func clampBackfillCount(count, max int) int {
	if count <= 0 {
		count = defaultBackfillCount
	}
	if count > max {
		count = max
	}
	return count
}
