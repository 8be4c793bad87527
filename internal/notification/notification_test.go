package notification

import (
	"context"
	"errors"
	"testing"

	authrepo "mailpilot-backend/internal/auth/repository"
	emaildomain "mailpilot-backend/internal/email/domain"
	"mailpilot-backend/internal/email/usecase"
	"mailpilot-backend/internal/testutil"
	"mailpilot-backend/pkg/fcm"
	"mailpilot-backend/pkg/logger"

	"github.com/nalgeon/be"
)

type recordingIntake struct {
	got []*emaildomain.MailboxNotification
	err error
}

func (r *recordingIntake) HandleNotification(ctx context.Context, n *emaildomain.MailboxNotification) (*usecase.IntakeResult, error) {
	r.got = append(r.got, n)
	if r.err != nil {
		return nil, r.err
	}
	return &usecase.IntakeResult{Outcome: usecase.IntakeProcessed}, nil
}

func TestHandleMessage(t *testing.T) {
	intake := &recordingIntake{}
	s := &Service{intake: intake, logger: logger.Component("pubsub")}

	s.handleMessage(context.Background(), "1", []byte(`{"emailAddress":"a@example.com","historyId":42}`))
	s.handleMessage(context.Background(), "2", []byte(`not json`))
	s.handleMessage(context.Background(), "3", []byte(`{"emailAddress":"a@example.com","historyId":"abc"}`))

	be.Equal(t, len(intake.got), 1)
	be.Equal(t, intake.got[0].HistoryID, "42")

	intake.err = errors.New("boom")
	s.handleMessage(context.Background(), "4", []byte(`{"emailAddress":"a@example.com","historyId":"43"}`))
	be.Equal(t, len(intake.got), 2)
}

func TestShortName(t *testing.T) {
	be.Equal(t, shortName("projects/p/topics/gmail"), "gmail")
	be.Equal(t, shortName("gmail-sub"), "gmail-sub")
}

type fakeSender struct {
	tokens []string
	data   map[string]string
	stale  []string
	err    error
}

func (f *fakeSender) SendToDevices(ctx context.Context, tokens []string, n fcm.NotificationData) ([]string, error) {
	f.tokens = tokens
	f.data = n.Data
	return f.stale, f.err
}

func TestReplyNotifierRemovesStaleTokens(t *testing.T) {
	repo := authrepo.NewFCMTokenRepository(testutil.NewDB(t))
	be.Err(t, repo.SaveToken("u1", "live", "laptop"), nil)
	be.Err(t, repo.SaveToken("u1", "dead", "old phone"), nil)

	sender := &fakeSender{stale: []string{"dead"}}
	n := NewReplyNotifier(sender, repo)

	be.Err(t, n.NotifyReply(context.Background(), "u1", "t1", "m9"), nil)
	be.Equal(t, len(sender.tokens), 2)
	be.Equal(t, sender.data["threadId"], "t1")
	be.Equal(t, sender.data["type"], "reply_received")

	tokens, err := repo.TokensForUser("u1")
	be.Err(t, err, nil)
	be.Equal(t, tokens, []string{"live"})
}

func TestReplyNotifierWithoutDevices(t *testing.T) {
	repo := authrepo.NewFCMTokenRepository(testutil.NewDB(t))
	sender := &fakeSender{}

	be.Err(t, NewReplyNotifier(sender, repo).NotifyReply(context.Background(), "u1", "t1", "m1"), nil)
	be.True(t, sender.tokens == nil)
}
