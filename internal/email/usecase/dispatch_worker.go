package usecase

import (
	"context"
	"sync"
	"time"

	emaildomain "mailpilot-backend/internal/email/domain"
	"mailpilot-backend/internal/email/repository"
	"mailpilot-backend/pkg/logger"

	"github.com/rs/zerolog"
)

// DispatchJob hands one admitted message to the classification service
type DispatchJob struct {
	RecordID string
	UserID   string
	Message  *emaildomain.NormalizedMessage
}

// DispatchWorkerService runs classification dispatches in the background
type DispatchWorkerService struct {
	client       emaildomain.ClassificationClient
	dispatchRepo repository.DispatchLogRepository
	jobQueue     chan DispatchJob
	workerWg     sync.WaitGroup
	workerCount  int
	jobTimeout   time.Duration
	logger       zerolog.Logger

	mu      sync.RWMutex
	started bool
	stopped bool
}

// NewDispatchWorkerService creates a new dispatch worker service
func NewDispatchWorkerService(
	client emaildomain.ClassificationClient,
	dispatchRepo repository.DispatchLogRepository,
	workerCount, queueSize int,
	jobTimeout time.Duration,
) *DispatchWorkerService {
	if workerCount <= 0 {
		workerCount = 3
	}
	if queueSize <= 0 {
		queueSize = 500
	}
	if jobTimeout <= 0 {
		jobTimeout = time.Minute
	}

	return &DispatchWorkerService{
		client:       client,
		dispatchRepo: dispatchRepo,
		jobQueue:     make(chan DispatchJob, queueSize),
		workerCount:  workerCount,
		jobTimeout:   jobTimeout,
		logger:       logger.Component("dispatch"),
	}
}

// Start starts the dispatch workers
func (s *DispatchWorkerService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.stopped {
		return
	}

	for i := 0; i < s.workerCount; i++ {
		s.workerWg.Add(1)
		go s.worker(i)
	}
	s.started = true
	s.logger.Info().Int("workers", s.workerCount).Msg("[Dispatch] Started workers")
}

// Stop drains the queue and waits for in-flight jobs
func (s *DispatchWorkerService) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.jobQueue)
	s.mu.Unlock()

	s.workerWg.Wait()
	s.logger.Info().Msg("[Dispatch] All workers stopped")
}

func (s *DispatchWorkerService) worker(id int) {
	defer s.workerWg.Done()

	for job := range s.jobQueue {
		s.processJob(job)
	}

	s.logger.Debug().Int("worker", id).Msg("[Dispatch] Worker stopped")
}

// processJob never panics the worker; failures are recorded on the dispatch log.
func (s *DispatchWorkerService) processJob(job DispatchJob) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Str("message_id", job.Message.MessageID).Msg("[Dispatch] Job panicked")
			s.markFailed(job, "panic during dispatch")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	if err := s.client.DispatchForClassification(ctx, job.UserID, job.Message); err != nil {
		s.logger.Error().Err(err).Str("user_id", job.UserID).Str("message_id", job.Message.MessageID).
			Msg("[Dispatch] Classification dispatch failed")
		s.markFailed(job, err.Error())
		return
	}

	if err := s.dispatchRepo.MarkSucceeded(job.RecordID); err != nil {
		s.logger.Error().Err(err).Str("record_id", job.RecordID).Msg("[Dispatch] Failed to mark record succeeded")
		return
	}
	s.logger.Info().Str("user_id", job.UserID).Str("message_id", job.Message.MessageID).Msg("[Dispatch] Dispatched")
}

func (s *DispatchWorkerService) markFailed(job DispatchJob, reason string) {
	if err := s.dispatchRepo.MarkFailed(job.RecordID, reason); err != nil {
		s.logger.Error().Err(err).Str("record_id", job.RecordID).Msg("[Dispatch] Failed to mark record failed")
	}
}

// Enqueue adds a job without blocking. A full or stopped queue rejects the
// job and releases its quota slot.
func (s *DispatchWorkerService) Enqueue(job DispatchJob) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.stopped {
		select {
		case s.jobQueue <- job:
			return true
		default:
		}
	}

	s.logger.Warn().Str("user_id", job.UserID).Str("message_id", job.Message.MessageID).
		Bool("stopped", s.stopped).Msg("[Dispatch] Queue unavailable, dropping dispatch")
	s.markFailed(job, "dispatch queue unavailable")
	return false
}
