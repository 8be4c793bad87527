package usecase

import (
	"context"
	"fmt"
	"time"

	emaildomain "mailpilot-backend/internal/email/domain"
	"mailpilot-backend/internal/email/repository"

	"github.com/rs/zerolog"
)

// ReplyNotifier is told when a reply lands on a thread the user was waiting on.
type ReplyNotifier interface {
	NotifyReply(ctx context.Context, userID, threadID, messageID string) error
}

// RelabelResult counts the outcome of relabeling a thread after a send
type RelabelResult struct {
	Relabeled int `json:"relabeled"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}

type replyTracker struct {
	provider   emaildomain.MailProvider
	statusRepo repository.ThreadReplyStatusRepository
	labels     *labelService
	locks      *keyedLocker
	notifier   ReplyNotifier
	now        func() time.Time
	logger     zerolog.Logger
}

// RecordSent puts the thread into AWAITING_REPLY and labels every message in
// it awaiting_reply, the sent message included.
func (r *replyTracker) RecordSent(ctx context.Context, mb emaildomain.Mailbox, threadID, sentMessageID string) (*RelabelResult, error) {
	if threadID == "" {
		return nil, fmt.Errorf("%w: threadId is required", emaildomain.ErrValidation)
	}
	unlock := r.locks.Lock(threadKey(mb.UserID, threadID))
	defer unlock()

	if err := r.statusRepo.UpsertSent(mb.UserID, threadID, sentMessageID, r.now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to record sent message: %w", err)
	}

	ids, err := r.provider.ListThreadMessageIDs(ctx, mb, threadID)
	if err != nil {
		r.logger.Warn().Err(err).Str("user_id", mb.UserID).Str("thread_id", threadID).
			Msg("[ReplyTracker] Could not list thread, labeling sent message only")
		ids = nil
	}
	if sentMessageID != "" && !containsString(ids, sentMessageID) {
		ids = append(ids, sentMessageID)
	}

	result := &RelabelResult{}
	for _, id := range ids {
		changed, err := r.labels.Apply(ctx, mb, id, threadID, emaildomain.LabelAwaitingReply)
		switch {
		case err != nil:
			result.Failed++
			r.logger.Error().Err(err).Str("user_id", mb.UserID).Str("message_id", id).
				Msg("[ReplyTracker] Failed to label thread message")
		case changed:
			result.Relabeled++
		default:
			result.Unchanged++
		}
	}

	r.logger.Info().Str("user_id", mb.UserID).Str("thread_id", threadID).
		Int("relabeled", result.Relabeled).Int("failed", result.Failed).Msg("[ReplyTracker] Thread awaiting reply")
	return result, nil
}

// ObserveInbound records an inbound message on its thread and then applies
// label to it. Both steps hold the thread lock, so a RecordSent on the same
// thread lands entirely before or after them. A failure to record the reply
// is logged; the returned error is the labeling error.
func (r *replyTracker) ObserveInbound(ctx context.Context, mb emaildomain.Mailbox, threadID, messageID string, label emaildomain.Label) (bool, error) {
	if threadID != "" {
		unlock := r.locks.Lock(threadKey(mb.UserID, threadID))
		defer unlock()

		if _, err := r.observeReply(ctx, mb, threadID, messageID); err != nil {
			r.logger.Error().Err(err).Str("user_id", mb.UserID).Str("thread_id", threadID).
				Msg("[ReplyTracker] Failed to observe inbound reply")
		}
	}
	return r.labels.Apply(ctx, mb, messageID, threadID, label)
}

// observeReply flips an awaiting thread to REPLY_RECEIVED. The caller holds
// the thread lock. Threads not awaiting a reply are left alone.
func (r *replyTracker) observeReply(ctx context.Context, mb emaildomain.Mailbox, threadID, messageID string) (bool, error) {
	flipped, err := r.statusRepo.MarkReplyReceived(mb.UserID, threadID, messageID, r.now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to record reply: %w", err)
	}
	if !flipped {
		return false, nil
	}

	r.logger.Info().Str("user_id", mb.UserID).Str("thread_id", threadID).Str("message_id", messageID).
		Msg("[ReplyTracker] Reply received")

	if r.notifier != nil {
		userID := mb.UserID
		notifyCtx := context.WithoutCancel(ctx)
		go func() {
			if err := r.notifier.NotifyReply(notifyCtx, userID, threadID, messageID); err != nil {
				r.logger.Warn().Err(err).Str("user_id", userID).Msg("[ReplyTracker] Reply notification failed")
			}
		}()
	}
	return true, nil
}

func (r *replyTracker) Status(userID, threadID string) (*emaildomain.ThreadReplyStatus, error) {
	return r.statusRepo.Get(userID, threadID)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
