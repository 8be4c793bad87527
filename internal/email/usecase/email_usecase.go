package usecase

import (
	"context"
	"fmt"
	"time"

	authrepo "mailpilot-backend/internal/auth/repository"
	emaildomain "mailpilot-backend/internal/email/domain"
	"mailpilot-backend/internal/email/repository"
	"mailpilot-backend/pkg/logger"

	"github.com/rs/zerolog"
)

// Dependencies are the collaborators of the email usecase
type Dependencies struct {
	UserRepo        authrepo.UserRepository
	Tokens          emaildomain.TokenProvider
	Provider        emaildomain.MailProvider
	SubRepo         repository.WatchSubscriptionRepository
	LabelRepo       repository.MessageLabelRepository
	ReplyStatusRepo repository.ThreadReplyStatusRepository
	SettingsRepo    repository.DraftSettingsRepository
	DispatchRepo    repository.DispatchLogRepository
	Dispatcher      Dispatcher
	// Notifier is optional
	Notifier ReplyNotifier
}

// Options tune the email usecase
type Options struct {
	LabelPrefix         string
	WatchTopic          string
	BackfillMaxCount    int
	BackfillConcurrency int
	// Now is the clock; defaults to time.Now
	Now func() time.Time
}

type emailUsecase struct {
	userRepo   authrepo.UserRepository
	tokens     emaildomain.TokenProvider
	provider   emaildomain.MailProvider
	subRepo    repository.WatchSubscriptionRepository
	dispatcher Dispatcher

	differ  *historyDiffer
	gate    *quotaGate
	labels  *labelService
	replies *replyTracker
	opts    Options
	logger  zerolog.Logger
}

// NewEmailUsecase creates a new instance of emailUsecase
func NewEmailUsecase(deps Dependencies, opts Options) EmailUsecase {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.BackfillMaxCount <= 0 {
		opts.BackfillMaxCount = 500
	}
	if opts.BackfillConcurrency <= 0 {
		opts.BackfillConcurrency = 5
	}

	locks := newKeyedLocker()
	labels := &labelService{
		provider:    deps.Provider,
		labelRepo:   deps.LabelRepo,
		locks:       locks,
		labelPrefix: opts.LabelPrefix,
		logger:      logger.Component("labels"),
	}

	return &emailUsecase{
		userRepo:   deps.UserRepo,
		tokens:     deps.Tokens,
		provider:   deps.Provider,
		subRepo:    deps.SubRepo,
		dispatcher: deps.Dispatcher,
		differ:     &historyDiffer{provider: deps.Provider},
		gate: &quotaGate{
			settingsRepo: deps.SettingsRepo,
			dispatchRepo: deps.DispatchRepo,
			locks:        locks,
			now:          opts.Now,
			logger:       logger.Component("gate"),
		},
		labels: labels,
		replies: &replyTracker{
			provider:   deps.Provider,
			statusRepo: deps.ReplyStatusRepo,
			labels:     labels,
			locks:      locks,
			notifier:   deps.Notifier,
			now:        opts.Now,
			logger:     logger.Component("reply_tracker"),
		},
		opts:   opts,
		logger: logger.Component("email"),
	}
}

// mailbox resolves credentials for userID.
func (u *emailUsecase) mailbox(ctx context.Context, userID string) (emaildomain.Mailbox, error) {
	ts, err := u.tokens.TokenSource(ctx, userID)
	if err != nil {
		return emaildomain.Mailbox{}, err
	}
	return emaildomain.Mailbox{UserID: userID, Token: ts}, nil
}

func (u *emailUsecase) GetLabel(userID, messageID string) (emaildomain.Label, error) {
	if userID == "" {
		return emaildomain.LabelUnlabeled, fmt.Errorf("%w: userId is required", emaildomain.ErrValidation)
	}
	return u.labels.Current(userID, messageID)
}

func (u *emailUsecase) ApplyLabel(ctx context.Context, userID, messageID, threadID string, label emaildomain.Label) (bool, error) {
	if userID == "" {
		return false, fmt.Errorf("%w: userId is required", emaildomain.ErrValidation)
	}
	mb, err := u.mailbox(ctx, userID)
	if err != nil {
		return false, err
	}
	return u.labels.Apply(ctx, mb, messageID, threadID, label)
}

func (u *emailUsecase) RemoveLabel(ctx context.Context, userID, messageID string, label emaildomain.Label) (bool, error) {
	if userID == "" {
		return false, fmt.Errorf("%w: userId is required", emaildomain.ErrValidation)
	}
	mb, err := u.mailbox(ctx, userID)
	if err != nil {
		return false, err
	}
	return u.labels.Remove(ctx, mb, messageID, label)
}

func (u *emailUsecase) GetReplyStatus(userID, threadID string) (*emaildomain.ThreadReplyStatus, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", emaildomain.ErrValidation)
	}
	return u.replies.Status(userID, threadID)
}

func (u *emailUsecase) RecordSent(ctx context.Context, userID, threadID, sentMessageID string) (*RelabelResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", emaildomain.ErrValidation)
	}
	mb, err := u.mailbox(ctx, userID)
	if err != nil {
		return nil, err
	}
	return u.replies.RecordSent(ctx, mb, threadID, sentMessageID)
}
