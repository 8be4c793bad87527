package repository

import (
	"errors"
	"testing"
	"time"

	emaildomain "mailpilot-backend/internal/email/domain"
	"mailpilot-backend/internal/testutil"

	"github.com/nalgeon/be"
)

func TestAdvanceCursorCompareAndSet(t *testing.T) {
	repo := NewWatchSubscriptionRepository(testutil.NewDB(t))
	be.Err(t, repo.Upsert(&emaildomain.WatchSubscription{
		UserID: "u1", EmailAddress: "User@Example.com", Cursor: "100", IsActive: true,
	}), nil)

	be.Err(t, repo.AdvanceCursor("u1", "100", "120"), nil)

	// A second writer still holding the old cursor loses
	err := repo.AdvanceCursor("u1", "100", "130")
	be.True(t, errors.Is(err, emaildomain.ErrCursorConflict))

	sub, err := repo.FindByEmail("user@example.com")
	be.Err(t, err, nil)
	be.Equal(t, sub.Cursor, "120")
}

func TestFindByEmailMissing(t *testing.T) {
	repo := NewWatchSubscriptionRepository(testutil.NewDB(t))
	sub, err := repo.FindByEmail("nobody@example.com")
	be.Err(t, err, nil)
	be.True(t, sub == nil)
}

func TestListExpiring(t *testing.T) {
	repo := NewWatchSubscriptionRepository(testutil.NewDB(t))
	now := time.Now().UTC()
	soon := now.Add(2 * time.Hour)
	later := now.Add(72 * time.Hour)

	be.Err(t, repo.Upsert(&emaildomain.WatchSubscription{UserID: "a", EmailAddress: "a@x.com", Cursor: "1", IsActive: true, WatchExpiration: &soon}), nil)
	be.Err(t, repo.Upsert(&emaildomain.WatchSubscription{UserID: "b", EmailAddress: "b@x.com", Cursor: "1", IsActive: true, WatchExpiration: &later}), nil)
	be.Err(t, repo.Upsert(&emaildomain.WatchSubscription{UserID: "c", EmailAddress: "c@x.com", Cursor: "1", IsActive: false, WatchExpiration: &soon}), nil)

	subs, err := repo.ListExpiring(now.Add(24 * time.Hour))
	be.Err(t, err, nil)
	be.Equal(t, len(subs), 1)
	be.Equal(t, subs[0].UserID, "a")
}

func TestMarkReplyReceivedOnlyWhenAwaiting(t *testing.T) {
	repo := NewThreadReplyStatusRepository(testutil.NewDB(t))
	now := time.Now().UTC()

	flipped, err := repo.MarkReplyReceived("u1", "t1", "m2", now)
	be.Err(t, err, nil)
	be.Equal(t, flipped, false)

	be.Err(t, repo.UpsertSent("u1", "t1", "m1", now), nil)
	flipped, err = repo.MarkReplyReceived("u1", "t1", "m2", now)
	be.Err(t, err, nil)
	be.Equal(t, flipped, true)

	flipped, err = repo.MarkReplyReceived("u1", "t1", "m3", now)
	be.Err(t, err, nil)
	be.Equal(t, flipped, false)

	status, err := repo.Get("u1", "t1")
	be.Err(t, err, nil)
	be.Equal(t, status.State(), emaildomain.ReplyStateReplyReceived)
	be.Equal(t, status.ReplyMessageID, "m2")

	// Sending again re-arms the thread
	be.Err(t, repo.UpsertSent("u1", "t1", "m4", now), nil)
	status, err = repo.Get("u1", "t1")
	be.Err(t, err, nil)
	be.Equal(t, status.State(), emaildomain.ReplyStateAwaitingReply)
	be.Equal(t, status.LastSentMessageID, "m4")
}

func TestReserveEnforcesQuota(t *testing.T) {
	repo := NewDispatchLogRepository(testutil.NewDB(t))
	at := time.Now().UTC()

	rec, outcome, err := repo.Reserve("u1", "m1", "t1", at, 2)
	be.Err(t, err, nil)
	be.Equal(t, outcome, emaildomain.ReservationAdmitted)
	be.True(t, rec != nil)

	_, outcome, err = repo.Reserve("u1", "m1", "t1", at, 2)
	be.Err(t, err, nil)
	be.Equal(t, outcome, emaildomain.ReservationDuplicate)

	_, outcome, err = repo.Reserve("u1", "m2", "t2", at, 2)
	be.Err(t, err, nil)
	be.Equal(t, outcome, emaildomain.ReservationAdmitted)

	_, outcome, err = repo.Reserve("u1", "m3", "t3", at, 2)
	be.Err(t, err, nil)
	be.Equal(t, outcome, emaildomain.ReservationQuotaExceeded)

	// A failed dispatch gives its slot back
	be.Err(t, repo.MarkFailed(rec.ID, "boom"), nil)
	_, outcome, err = repo.Reserve("u1", "m3", "t3", at, 2)
	be.Err(t, err, nil)
	be.Equal(t, outcome, emaildomain.ReservationAdmitted)

	count, err := repo.CountSince("u1", emaildomain.QuotaDayStart(at))
	be.Err(t, err, nil)
	be.Equal(t, count, int64(2))
}

func TestReserveCountsOnlyTheReservationDay(t *testing.T) {
	repo := NewDispatchLogRepository(testutil.NewDB(t))
	yesterday := time.Date(2026, 3, 1, 23, 30, 0, 0, time.UTC)
	today := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	for _, id := range []string{"m1", "m2"} {
		_, outcome, err := repo.Reserve("u1", id, "t-"+id, yesterday, 2)
		be.Err(t, err, nil)
		be.Equal(t, outcome, emaildomain.ReservationAdmitted)
	}

	rec, outcome, err := repo.Reserve("u1", "m3", "t3", today, 2)
	be.Err(t, err, nil)
	be.Equal(t, outcome, emaildomain.ReservationAdmitted)
	be.True(t, rec.CreatedAt.Equal(today))

	// Replaying yesterday ignores records stamped today
	_, outcome, err = repo.Reserve("u1", "m4", "t4", yesterday.Add(10*time.Minute), 2)
	be.Err(t, err, nil)
	be.Equal(t, outcome, emaildomain.ReservationQuotaExceeded)
}

func TestMessageLabelSaveKeepsThread(t *testing.T) {
	repo := NewMessageLabelRepository(testutil.NewDB(t))

	be.Err(t, repo.Save("u1", "m1", "t1", "fyi"), nil)
	be.Err(t, repo.Save("u1", "m1", "", "to_respond"), nil)

	ml, err := repo.Get("u1", "m1")
	be.Err(t, err, nil)
	be.Equal(t, ml.Label, "to_respond")
	be.Equal(t, ml.ThreadID, "t1")

	be.Err(t, repo.Delete("u1", "m1"), nil)
	ml, err = repo.Get("u1", "m1")
	be.Err(t, err, nil)
	be.True(t, ml == nil)
}
