package notification

import (
	"context"
	"fmt"

	authrepo "mailpilot-backend/internal/auth/repository"
	"mailpilot-backend/pkg/fcm"
	"mailpilot-backend/pkg/logger"

	"github.com/rs/zerolog"
)

// Sender delivers a push notification to device tokens and returns the stale ones
type Sender interface {
	SendToDevices(ctx context.Context, tokens []string, n fcm.NotificationData) ([]string, error)
}

// ReplyNotifier pushes a device notification when a reply arrives on a
// thread the user was waiting on.
type ReplyNotifier struct {
	sender  Sender
	fcmRepo authrepo.FCMTokenRepository
	logger  zerolog.Logger
}

func NewReplyNotifier(sender Sender, fcmRepo authrepo.FCMTokenRepository) *ReplyNotifier {
	return &ReplyNotifier{
		sender:  sender,
		fcmRepo: fcmRepo,
		logger:  logger.Component("reply_notifier"),
	}
}

func (n *ReplyNotifier) NotifyReply(ctx context.Context, userID, threadID, messageID string) error {
	tokens, err := n.fcmRepo.TokensForUser(userID)
	if err != nil {
		return fmt.Errorf("load device tokens: %w", err)
	}
	if len(tokens) == 0 {
		n.logger.Debug().Str("user_id", userID).Msg("[FCM] No devices registered, skipping reply notification")
		return nil
	}

	stale, err := n.sender.SendToDevices(ctx, tokens, fcm.NotificationData{
		Title: "New reply",
		Body:  "Someone replied to a thread you were waiting on",
		Data: map[string]string{
			"type":         "reply_received",
			"threadId":     threadID,
			"messageId":    messageID,
			"click_action": "/threads/" + threadID,
		},
	})
	if err != nil {
		return err
	}

	if len(stale) > 0 {
		n.logger.Info().Str("user_id", userID).Int("stale", len(stale)).Msg("[FCM] Removing stale device tokens")
		if err := n.fcmRepo.DeleteTokens(stale); err != nil {
			n.logger.Error().Err(err).Msg("[FCM] Failed to remove stale tokens")
		}
	}
	return nil
}
