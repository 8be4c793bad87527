package scheduler

import (
	"context"
	"sync"
	"time"

	"mailpilot-backend/internal/email/usecase"
	"mailpilot-backend/pkg/logger"

	"github.com/rs/zerolog"
)

// WatchRenewer renews Gmail watches that are about to lapse
type WatchRenewer interface {
	RenewExpiringWatches(ctx context.Context, within time.Duration) (*usecase.RenewalResult, error)
}

// WatchRenewalScheduler periodically renews expiring Gmail watches
type WatchRenewalScheduler struct {
	renewer  WatchRenewer
	interval time.Duration
	window   time.Duration
	timeout  time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	logger   zerolog.Logger
}

// NewWatchRenewalScheduler creates a new scheduler. Watches expiring within
// window are renewed on every tick.
func NewWatchRenewalScheduler(renewer WatchRenewer, interval, window time.Duration) *WatchRenewalScheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &WatchRenewalScheduler{
		renewer:  renewer,
		interval: interval,
		window:   window,
		timeout:  5 * time.Minute,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Component("watch_scheduler"),
	}
}

// Start begins the scheduler loop
func (s *WatchRenewalScheduler) Start() {
	s.logger.Info().Dur("interval", s.interval).Dur("window", s.window).Msg("[WatchScheduler] Starting watch renewal scheduler")

	go func() {
		defer close(s.done)

		// Run immediately on start
		s.renew()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.renew()
			case <-s.stopChan:
				s.logger.Info().Msg("[WatchScheduler] Scheduler stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the scheduler and waits for a running pass to finish
func (s *WatchRenewalScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	<-s.done
}

func (s *WatchRenewalScheduler) renew() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	result, err := s.renewer.RenewExpiringWatches(ctx, s.window)
	if err != nil {
		s.logger.Error().Err(err).Msg("[WatchScheduler] Renewal pass failed")
		return
	}
	if result.Renewed+result.Resynced+result.Deactivated+result.Failed == 0 {
		return
	}
	s.logger.Info().Int("renewed", result.Renewed).Int("resynced", result.Resynced).
		Int("deactivated", result.Deactivated).Int("failed", result.Failed).Msg("[WatchScheduler] Renewal pass finished")
}
