package usecase

import (
	"context"
	"fmt"

	emaildomain "mailpilot-backend/internal/email/domain"
	"mailpilot-backend/internal/email/repository"

	"github.com/rs/zerolog"
)

// labelService applies the mutually exclusive core labels.
type labelService struct {
	provider    emaildomain.MailProvider
	labelRepo   repository.MessageLabelRepository
	locks       *keyedLocker
	labelPrefix string
	logger      zerolog.Logger
}

// Current returns the recorded core label of a message.
func (s *labelService) Current(userID, messageID string) (emaildomain.Label, error) {
	ml, err := s.labelRepo.Get(userID, messageID)
	if err != nil {
		return emaildomain.LabelUnlabeled, err
	}
	if ml == nil {
		return emaildomain.LabelUnlabeled, nil
	}
	label, err := emaildomain.ParseLabel(ml.Label)
	if err != nil {
		// a stale vocabulary entry counts as no label
		s.logger.Warn().Str("user_id", userID).Str("message_id", messageID).Str("label", ml.Label).
			Msg("[Label] Ignoring unknown stored label")
		return emaildomain.LabelUnlabeled, nil
	}
	return label, nil
}

// Apply moves a message to label. It reports false when label was already attached.
func (s *labelService) Apply(ctx context.Context, mb emaildomain.Mailbox, messageID, threadID string, label emaildomain.Label) (bool, error) {
	if !label.IsCore() {
		return false, fmt.Errorf("%w: cannot apply %s", emaildomain.ErrUnknownLabel, label)
	}
	unlock := s.locks.Lock(messageKey(mb.UserID, messageID))
	defer unlock()

	current, err := s.Current(mb.UserID, messageID)
	if err != nil {
		return false, err
	}
	transition, changed := emaildomain.Transition(current, label)
	if !changed {
		return false, nil
	}

	// Strip every other core label so exclusivity holds even if our record is stale
	remove := make([]string, 0, len(emaildomain.AllLabels)-1)
	for _, l := range emaildomain.AllLabels {
		if l != transition.Add {
			remove = append(remove, l.ProviderName(s.labelPrefix))
		}
	}
	add := []string{transition.Add.ProviderName(s.labelPrefix)}

	if err := s.provider.ModifyLabels(ctx, mb, messageID, add, remove); err != nil {
		return false, fmt.Errorf("failed to apply %s to %s: %w", label, messageID, err)
	}
	if err := s.labelRepo.Save(mb.UserID, messageID, threadID, label.String()); err != nil {
		return false, fmt.Errorf("failed to record label for %s: %w", messageID, err)
	}

	s.logger.Debug().Str("user_id", mb.UserID).Str("message_id", messageID).
		Str("from", transition.Remove.String()).Str("to", transition.Add.String()).Msg("[Label] Applied")
	return true, nil
}

// Remove detaches label. Removing a label the message does not carry is a no-op.
func (s *labelService) Remove(ctx context.Context, mb emaildomain.Mailbox, messageID string, label emaildomain.Label) (bool, error) {
	unlock := s.locks.Lock(messageKey(mb.UserID, messageID))
	defer unlock()

	current, err := s.Current(mb.UserID, messageID)
	if err != nil {
		return false, err
	}
	transition, changed := emaildomain.RemoveTransition(current, label)
	if !changed {
		return false, nil
	}

	if err := s.provider.ModifyLabels(ctx, mb, messageID, nil, []string{transition.Remove.ProviderName(s.labelPrefix)}); err != nil {
		return false, fmt.Errorf("failed to remove %s from %s: %w", label, messageID, err)
	}
	if err := s.labelRepo.Delete(mb.UserID, messageID); err != nil {
		return false, fmt.Errorf("failed to clear label record for %s: %w", messageID, err)
	}
	return true, nil
}

// coreLabelOf returns the core label a fetched message already carries on the provider side.
func (s *labelService) coreLabelOf(msg *emaildomain.NormalizedMessage) (emaildomain.Label, bool) {
	for _, name := range msg.ExistingLabels {
		if l, ok := emaildomain.LabelFromProviderName(s.labelPrefix, name); ok {
			return l, true
		}
	}
	return emaildomain.LabelUnlabeled, false
}
