package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	emaildomain "mailpilot-backend/internal/email/domain"
	"mailpilot-backend/internal/email/repository"
	"mailpilot-backend/internal/testutil"

	"github.com/nalgeon/be"
)

type fakeClassifier struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
	block chan struct{}
}

func (c *fakeClassifier) DispatchForClassification(ctx context.Context, userID string, msg *emaildomain.NormalizedMessage) error {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, msg.MessageID)
	if c.fail[msg.MessageID] {
		return errors.New("classifier unavailable")
	}
	return nil
}

func reserve(t *testing.T, repo repository.DispatchLogRepository, messageID string) DispatchJob {
	t.Helper()
	record, outcome, err := repo.Reserve(userID, messageID, "t-"+messageID, time.Now(), 100)
	be.Err(t, err, nil)
	be.Equal(t, outcome, emaildomain.ReservationAdmitted)
	return DispatchJob{RecordID: record.ID, UserID: userID, Message: &emaildomain.NormalizedMessage{MessageID: messageID}}
}

func TestDispatchWorkerMarksRecords(t *testing.T) {
	repo := repository.NewDispatchLogRepository(testutil.NewDB(t))
	client := &fakeClassifier{fail: map[string]bool{"bad": true}}
	svc := NewDispatchWorkerService(client, repo, 2, 10, time.Second)
	svc.Start()

	be.True(t, svc.Enqueue(reserve(t, repo, "good")))
	be.True(t, svc.Enqueue(reserve(t, repo, "bad")))
	svc.Stop()

	good, err := repo.FindByMessage(userID, "good")
	be.Err(t, err, nil)
	be.Equal(t, good.Status, emaildomain.DispatchSucceeded)
	be.True(t, good.CompletedAt != nil)

	bad, err := repo.FindByMessage(userID, "bad")
	be.Err(t, err, nil)
	be.Equal(t, bad.Status, emaildomain.DispatchFailed)
	be.Equal(t, bad.Error, "classifier unavailable")
}

func TestDispatchWorkerRejectsWhenFull(t *testing.T) {
	repo := repository.NewDispatchLogRepository(testutil.NewDB(t))
	client := &fakeClassifier{block: make(chan struct{})}
	svc := NewDispatchWorkerService(client, repo, 1, 1, time.Second)

	// not started, so the single slot stays occupied
	be.True(t, svc.Enqueue(reserve(t, repo, "m1")))
	be.True(t, !svc.Enqueue(reserve(t, repo, "m2")))

	rejected, err := repo.FindByMessage(userID, "m2")
	be.Err(t, err, nil)
	be.Equal(t, rejected.Status, emaildomain.DispatchFailed)

	used, err := repo.CountSince(userID, emaildomain.QuotaDayStart(time.Now()))
	be.Err(t, err, nil)
	be.Equal(t, used, int64(1))

	close(client.block)
	svc.Start()
	svc.Stop()
}

func TestDispatchWorkerRejectsAfterStop(t *testing.T) {
	repo := repository.NewDispatchLogRepository(testutil.NewDB(t))
	svc := NewDispatchWorkerService(&fakeClassifier{}, repo, 1, 5, time.Second)
	svc.Start()
	svc.Stop()
	svc.Stop()

	be.True(t, !svc.Enqueue(reserve(t, repo, "late")))
	record, err := repo.FindByMessage(userID, "late")
	be.Err(t, err, nil)
	be.Equal(t, record.Status, emaildomain.DispatchFailed)
}
