package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	emaildomain "mailpilot-backend/internal/email/domain"
	"mailpilot-backend/internal/email/usecase"
	"mailpilot-backend/pkg/logger"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// Intake is the part of the email usecase the receiver feeds
type Intake interface {
	HandleNotification(ctx context.Context, n *emaildomain.MailboxNotification) (*usecase.IntakeResult, error)
}

// Service pulls Gmail notifications from a Pub/Sub subscription. It is the
// pull counterpart of the push webhook and shares its intake.
type Service struct {
	pubsubClient *pubsub.Client
	intake       Intake
	topicID      string
	subName      string
	logger       zerolog.Logger
}

func NewService(ctx context.Context, projectID, topicName, subName, credentialsFile string, intake Intake) (*Service, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	return &Service{
		pubsubClient: client,
		intake:       intake,
		topicID:      shortName(topicName),
		subName:      shortName(subName),
		logger:       logger.Component("pubsub"),
	}, nil
}

// Start blocks receiving messages until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info().Str("topic", s.topicID).Str("subscription", s.subName).Msg("[PubSub] Starting notification receiver")

	sub, err := s.ensureSubscription(ctx)
	if err != nil {
		return err
	}

	s.logger.Info().Str("subscription", s.subName).Msg("[PubSub] Listening for messages")
	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		s.handleMessage(ctx, msg.ID, msg.Data)
		// Every message is acked; failed batches are retried by the next notification
		msg.Ack()
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("pubsub receive: %w", err)
	}
	return nil
}

func (s *Service) ensureSubscription(ctx context.Context) (*pubsub.Subscription, error) {
	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check subscription %s: %w", s.subName, err)
	}
	if exists {
		return sub, nil
	}

	topic := s.pubsubClient.Topic(s.topicID)
	topicExists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check topic %s: %w", s.topicID, err)
	}
	if !topicExists {
		return nil, fmt.Errorf("topic %s does not exist, cannot create subscription", s.topicID)
	}

	sub, err = s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
		Topic:       topic,
		AckDeadline: 60 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("create subscription %s: %w", s.subName, err)
	}
	s.logger.Info().Str("subscription", s.subName).Msg("[PubSub] Created subscription")
	return sub, nil
}

func (s *Service) handleMessage(ctx context.Context, id string, data []byte) {
	lg := s.logger.With().Str("pubsub_message_id", id).Logger()

	notification, err := emaildomain.ParseMailboxNotification(data)
	if err != nil {
		lg.Warn().Err(err).Msg("[PubSub] Dropping malformed notification")
		return
	}

	result, err := s.intake.HandleNotification(ctx, notification)
	if err != nil {
		lg.Error().Err(err).Str("email", notification.EmailAddress).Msg("[PubSub] Notification processing failed")
		return
	}
	lg.Debug().Str("outcome", string(result.Outcome)).Str("email", notification.EmailAddress).Msg("[PubSub] Notification handled")
}

func (s *Service) Close() error {
	return s.pubsubClient.Close()
}

// shortName strips a "projects/<p>/topics/" style prefix.
func shortName(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}
