package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	emaildomain "mailpilot-backend/internal/email/domain"
)

// IntakeOutcome says what happened to one mailbox notification
type IntakeOutcome string

const (
	IntakeProcessed      IntakeOutcome = "processed"
	IntakeNoSubscription IntakeOutcome = "no_subscription"
	IntakeStale          IntakeOutcome = "stale"
	IntakeDisabled       IntakeOutcome = "automation_disabled"
	IntakeCursorExpired  IntakeOutcome = "cursor_expired"
	IntakeCursorConflict IntakeOutcome = "cursor_conflict"
	IntakeTokenRevoked   IntakeOutcome = "token_revoked"
)

// batchTimeout bounds the per-message work of one notification once its
// cursor has been advanced.
const batchTimeout = 5 * time.Minute

// IntakeResult summarizes a processed notification
type IntakeResult struct {
	Outcome     IntakeOutcome `json:"outcome"`
	UserID      string        `json:"userId,omitempty"`
	Cursor      string        `json:"cursor,omitempty"`
	Events      int           `json:"events"`
	Inbound     int           `json:"inbound"`
	Sent        int           `json:"sent"`
	SkippedSelf int           `json:"skippedSelf"`
	Labeled     int           `json:"labeled"`
	Excluded    int           `json:"excluded"`
	Dispatched  int           `json:"dispatched"`
	QuotaDenied int           `json:"quotaDenied"`
	Duplicates  int           `json:"duplicates"`
	Failed      int           `json:"failed"`
}

// HandleNotification runs the intake pipeline for one mailbox notification.
//
// The cursor is advanced right after the diff and before any per-message side
// effect. A crash after the advance loses the remaining dispatches for that
// batch; redelivery of the same notification is then a stale no-op. The
// per-message work is detached from ctx, so a dropped push connection or a
// cancelled receive does not abandon an advanced batch.
func (u *emailUsecase) HandleNotification(ctx context.Context, n *emaildomain.MailboxNotification) (*IntakeResult, error) {
	lg := u.logger.With().Str("email", n.EmailAddress).Str("history_id", n.HistoryID).Logger()

	sub, err := u.subRepo.FindByEmail(n.EmailAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	if sub == nil || !sub.IsActive || sub.NeedsResync {
		lg.Info().Bool("found", sub != nil).Msg("[Intake] No active subscription, ignoring notification")
		return &IntakeResult{Outcome: IntakeNoSubscription}, nil
	}

	result := &IntakeResult{UserID: sub.UserID, Cursor: sub.Cursor}
	lg = lg.With().Str("user_id", sub.UserID).Logger()

	if sub.Cursor != "" && emaildomain.CompareCursors(n.HistoryID, sub.Cursor) <= 0 {
		lg.Debug().Str("stored_cursor", sub.Cursor).Msg("[Intake] Stale or duplicate notification")
		result.Outcome = IntakeStale
		return result, nil
	}

	settings, err := u.gate.Settings(sub.UserID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		// Automation off: move the cursor so re-enabling does not replay old mail
		if err := u.subRepo.AdvanceCursor(sub.UserID, sub.Cursor, n.HistoryID); err != nil {
			if errors.Is(err, emaildomain.ErrCursorConflict) {
				result.Outcome = IntakeCursorConflict
				return result, nil
			}
			return nil, err
		}
		result.Outcome = IntakeDisabled
		result.Cursor = n.HistoryID
		lg.Info().Msg("[Intake] Automation disabled, cursor advanced")
		return result, nil
	}

	mb, err := u.mailbox(ctx, sub.UserID)
	if err != nil {
		return u.authFailure(result, sub, err)
	}

	start := sub.Cursor
	if start == "" {
		start = n.HistoryID
	}
	diff, err := u.differ.Diff(ctx, mb, start, n.HistoryID)
	if err != nil {
		switch {
		case errors.Is(err, emaildomain.ErrCursorExpired):
			if markErr := u.subRepo.MarkNeedsResync(sub.UserID); markErr != nil {
				return nil, fmt.Errorf("failed to flag resync: %w", markErr)
			}
			lg.Warn().Str("stored_cursor", sub.Cursor).Msg("[Intake] Cursor expired, subscription needs resync")
			result.Outcome = IntakeCursorExpired
			return result, nil
		case errors.Is(err, emaildomain.ErrAuthentication):
			return u.authFailure(result, sub, err)
		default:
			return nil, err
		}
	}

	if err := u.subRepo.AdvanceCursor(sub.UserID, sub.Cursor, diff.NextCursor); err != nil {
		if errors.Is(err, emaildomain.ErrCursorConflict) {
			lg.Info().Msg("[Intake] Cursor advanced concurrently, leaving batch to the winner")
			result.Outcome = IntakeCursorConflict
			return result, nil
		}
		return nil, fmt.Errorf("failed to advance cursor: %w", err)
	}
	result.Cursor = diff.NextCursor
	result.Outcome = IntakeProcessed
	result.Events = len(diff.Events)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), batchTimeout)
	defer cancel()

	for _, ev := range diff.Events {
		switch ev.ChangeKind {
		case emaildomain.ChangeSent:
			result.Sent++
			if _, err := u.replies.RecordSent(ctx, mb, ev.ThreadID, ev.MessageID); err != nil {
				result.Failed++
				lg.Error().Err(err).Str("message_id", ev.MessageID).Msg("[Intake] Failed to record sent message")
			}
		case emaildomain.ChangeAddedToInbox:
			result.Inbound++
			if err := u.processInbound(ctx, mb, sub, settings, ev, result); err != nil {
				if errors.Is(err, emaildomain.ErrAuthentication) {
					lg.Error().Err(err).Msg("[Intake] Authentication lost mid-batch, abandoning remaining events")
					if errors.Is(err, emaildomain.ErrTokenRevoked) {
						if deactivateErr := u.subRepo.Deactivate(sub.UserID); deactivateErr != nil {
							lg.Error().Err(deactivateErr).Msg("[Intake] Failed to deactivate subscription")
						}
					}
					return result, nil
				}
				result.Failed++
				lg.Error().Err(err).Str("message_id", ev.MessageID).Msg("[Intake] Failed to process message")
			}
		}
	}

	lg.Info().Int("events", result.Events).Int("labeled", result.Labeled).Int("dispatched", result.Dispatched).
		Int("quota_denied", result.QuotaDenied).Int("failed", result.Failed).Msg("[Intake] Batch processed")
	return result, nil
}

func (u *emailUsecase) processInbound(ctx context.Context, mb emaildomain.Mailbox, sub *emaildomain.WatchSubscription, settings *emaildomain.DraftAutomationSettings, ev emaildomain.ChangeEvent, result *IntakeResult) error {
	msg, err := u.provider.GetMessage(ctx, mb, ev.MessageID)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", ev.MessageID, err)
	}
	if msg.ThreadID == "" {
		msg.ThreadID = ev.ThreadID
	}

	if isFromSelf(msg.FromAddress, sub.EmailAddress) {
		result.SkippedSelf++
		return nil
	}

	label := ClassifyMessage(msg, sub.EmailAddress)
	if _, err := u.replies.ObserveInbound(ctx, mb, msg.ThreadID, msg.MessageID, label); err != nil {
		if errors.Is(err, emaildomain.ErrAuthentication) {
			return err
		}
		u.logger.Error().Err(err).Str("user_id", mb.UserID).Str("message_id", msg.MessageID).
			Msg("[Intake] Failed to label message")
	} else {
		result.Labeled++
	}

	if IsExcluded(msg.FromAddress, settings.ExcludedSenders, settings.ExcludedDomains) {
		result.Excluded++
		return nil
	}

	record, outcome, err := u.gate.Reserve(settings, msg.MessageID, msg.ThreadID)
	if err != nil {
		return err
	}
	switch outcome {
	case emaildomain.ReservationQuotaExceeded:
		result.QuotaDenied++
		return nil
	case emaildomain.ReservationDuplicate:
		result.Duplicates++
		return nil
	}

	if u.dispatcher.Enqueue(DispatchJob{RecordID: record.ID, UserID: mb.UserID, Message: msg}) {
		result.Dispatched++
	}
	return nil
}

// authFailure abandons the batch with the cursor untouched. A revoked token
// deactivates the subscription and acks; anything else is retried.
func (u *emailUsecase) authFailure(result *IntakeResult, sub *emaildomain.WatchSubscription, err error) (*IntakeResult, error) {
	if errors.Is(err, emaildomain.ErrTokenRevoked) {
		if deactivateErr := u.subRepo.Deactivate(sub.UserID); deactivateErr != nil {
			return nil, fmt.Errorf("failed to deactivate subscription: %w", deactivateErr)
		}
		u.logger.Warn().Err(err).Str("user_id", sub.UserID).Msg("[Intake] Refresh token revoked, subscription deactivated")
		result.Outcome = IntakeTokenRevoked
		return result, nil
	}
	return nil, fmt.Errorf("mailbox authentication for %s: %w", sub.UserID, err)
}
