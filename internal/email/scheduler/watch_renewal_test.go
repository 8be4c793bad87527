package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"mailpilot-backend/internal/email/usecase"

	"github.com/nalgeon/be"
)

type countingRenewer struct {
	calls  atomic.Int32
	window atomic.Int64
	err    error
}

func (r *countingRenewer) RenewExpiringWatches(ctx context.Context, within time.Duration) (*usecase.RenewalResult, error) {
	r.calls.Add(1)
	r.window.Store(int64(within))
	if r.err != nil {
		return nil, r.err
	}
	return &usecase.RenewalResult{Renewed: 1}, nil
}

func TestWatchRenewalSchedulerRunsOnStartAndTick(t *testing.T) {
	renewer := &countingRenewer{}
	s := NewWatchRenewalScheduler(renewer, 10*time.Millisecond, 2*time.Hour)
	s.Start()

	deadline := time.Now().Add(2 * time.Second)
	for renewer.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()

	be.True(t, renewer.calls.Load() >= 3)
	be.Equal(t, time.Duration(renewer.window.Load()), 2*time.Hour)

	// no passes after Stop returns
	calls := renewer.calls.Load()
	time.Sleep(30 * time.Millisecond)
	be.Equal(t, renewer.calls.Load(), calls)
}

func TestWatchRenewalSchedulerSurvivesErrors(t *testing.T) {
	renewer := &countingRenewer{err: errors.New("db down")}
	s := NewWatchRenewalScheduler(renewer, 10*time.Millisecond, 0)
	s.Start()

	deadline := time.Now().Add(2 * time.Second)
	for renewer.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()
	s.Stop()

	be.True(t, renewer.calls.Load() >= 2)
	be.Equal(t, time.Duration(renewer.window.Load()), 24*time.Hour)
}
