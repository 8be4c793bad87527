package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	emaildomain "mailpilot-backend/internal/email/domain"
	"mailpilot-backend/pkg/logger"
	"mailpilot-backend/pkg/rate"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const user = "me"

// Service is the Gmail implementation of domain.MailProvider. Every call is
// rate limited and passes through a circuit breaker.
type Service struct {
	limiter rate.Limiter
	cb      *gobreaker.CircuitBreaker
	logger  zerolog.Logger

	// per-user label name <-> id cache
	mu     sync.Mutex
	labels map[string]*labelCache

	// newClient is replaced in tests
	newClient func(ctx context.Context, ts oauth2.TokenSource) (*gmail.Service, error)
}

type labelCache struct {
	byName map[string]string
	byID   map[string]string
}

func NewService(limiter rate.Limiter) *Service {
	if limiter == nil {
		limiter = rate.Unlimited{}
	}
	lg := logger.Component("gmail")

	cbSettings := gobreaker.Settings{
		Name:        "gmail-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			lg.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("[CircuitBreaker] State changed")
		},
	}

	return &Service{
		limiter:   limiter,
		cb:        gobreaker.NewCircuitBreaker(cbSettings),
		logger:    lg,
		labels:    make(map[string]*labelCache),
		newClient: newGmailClient,
	}
}

func newGmailClient(ctx context.Context, ts oauth2.TokenSource) (*gmail.Service, error) {
	client := oauth2.NewClient(ctx, ts)
	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return srv, nil
}

func (s *Service) client(ctx context.Context, mb emaildomain.Mailbox) (*gmail.Service, error) {
	if mb.Token == nil {
		return nil, fmt.Errorf("%w: no token source for user %s", emaildomain.ErrAuthentication, mb.UserID)
	}
	return s.newClient(ctx, mb.Token)
}

// GetMessage fetches the full message. It never calls modify, so read-state is untouched.
func (s *Service) GetMessage(ctx context.Context, mb emaildomain.Mailbox, messageID string) (*emaildomain.NormalizedMessage, error) {
	srv, err := s.client(ctx, mb)
	if err != nil {
		return nil, err
	}

	var msg *gmail.Message
	err = s.call(ctx, "messages.get", func() error {
		var callErr error
		msg, callErr = srv.Users.Messages.Get(user, messageID).Format("full").Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return nil, err
	}

	names, err := s.labelNames(ctx, srv, mb.UserID)
	if err != nil {
		// Fall back to raw ids; core labels then read as absent
		s.logger.Warn().Err(err).Str("user_id", mb.UserID).Msg("[Gmail] Could not resolve label names")
		names = nil
	}
	return normalizeMessage(msg, names), nil
}

// ListHistory walks every history page after startCursor.
func (s *Service) ListHistory(ctx context.Context, mb emaildomain.Mailbox, startCursor string) (*emaildomain.HistoryPage, error) {
	start, err := strconv.ParseUint(strings.TrimSpace(startCursor), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: cursor %q is not a history id", emaildomain.ErrValidation, startCursor)
	}
	srv, err := s.client(ctx, mb)
	if err != nil {
		return nil, err
	}

	page := &emaildomain.HistoryPage{}
	var latest uint64
	err = s.call(ctx, "history.list", func() error {
		return srv.Users.History.List(user).StartHistoryId(start).Context(ctx).
			Pages(ctx, func(resp *gmail.ListHistoryResponse) error {
				if resp.HistoryId > latest {
					latest = resp.HistoryId
				}
				for _, h := range resp.History {
					page.Records = append(page.Records, historyRecords(h)...)
				}
				return nil
			})
	})
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return nil, fmt.Errorf("%w: start %s", emaildomain.ErrCursorExpired, startCursor)
		}
		return nil, err
	}
	if latest > 0 {
		page.NextCursor = strconv.FormatUint(latest, 10)
	}
	return page, nil
}

func historyRecords(h *gmail.History) []emaildomain.HistoryRecord {
	var records []emaildomain.HistoryRecord
	for _, added := range h.MessagesAdded {
		if added.Message == nil {
			continue
		}
		records = append(records, emaildomain.HistoryRecord{
			Kind:      emaildomain.HistoryMessageAdded,
			MessageID: added.Message.Id,
			ThreadID:  added.Message.ThreadId,
			LabelIDs:  added.Message.LabelIds,
		})
	}
	for _, deleted := range h.MessagesDeleted {
		if deleted.Message == nil {
			continue
		}
		records = append(records, emaildomain.HistoryRecord{
			Kind:      emaildomain.HistoryMessageDeleted,
			MessageID: deleted.Message.Id,
			ThreadID:  deleted.Message.ThreadId,
		})
	}
	for _, la := range h.LabelsAdded {
		if la.Message == nil {
			continue
		}
		records = append(records, emaildomain.HistoryRecord{
			Kind:      emaildomain.HistoryLabelAdded,
			MessageID: la.Message.Id,
			ThreadID:  la.Message.ThreadId,
			LabelIDs:  la.LabelIds,
		})
	}
	for _, lr := range h.LabelsRemoved {
		if lr.Message == nil {
			continue
		}
		records = append(records, emaildomain.HistoryRecord{
			Kind:      emaildomain.HistoryLabelRemoved,
			MessageID: lr.Message.Id,
			ThreadID:  lr.Message.ThreadId,
			LabelIDs:  lr.LabelIds,
		})
	}
	return records
}

// ListInboxMessageIDs returns up to max of the most recent inbox message ids.
func (s *Service) ListInboxMessageIDs(ctx context.Context, mb emaildomain.Mailbox, max int) ([]string, error) {
	if max <= 0 {
		return nil, nil
	}
	srv, err := s.client(ctx, mb)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, max)
	pageToken := ""
	for len(ids) < max {
		remaining := int64(max - len(ids))
		if remaining > 500 {
			remaining = 500 // Gmail API maximum
		}

		var resp *gmail.ListMessagesResponse
		err := s.call(ctx, "messages.list", func() error {
			q := srv.Users.Messages.List(user).LabelIds("INBOX").MaxResults(remaining).Context(ctx)
			if pageToken != "" {
				q = q.PageToken(pageToken)
			}
			var callErr error
			resp, callErr = q.Do()
			return callErr
		})
		if err != nil {
			return nil, err
		}

		for _, m := range resp.Messages {
			if len(ids) == max {
				break
			}
			ids = append(ids, m.Id)
		}
		pageToken = resp.NextPageToken
		if pageToken == "" || len(resp.Messages) == 0 {
			break
		}
	}
	return ids, nil
}

func (s *Service) ListThreadMessageIDs(ctx context.Context, mb emaildomain.Mailbox, threadID string) ([]string, error) {
	srv, err := s.client(ctx, mb)
	if err != nil {
		return nil, err
	}

	var thread *gmail.Thread
	err = s.call(ctx, "threads.get", func() error {
		var callErr error
		thread, callErr = srv.Users.Threads.Get(user, threadID).Format("minimal").Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(thread.Messages))
	for _, m := range thread.Messages {
		ids = append(ids, m.Id)
	}
	return ids, nil
}

// ModifyLabels adds and removes labels by name in a single modify call.
// Labels to add are created if missing; unknown labels to remove are ignored.
func (s *Service) ModifyLabels(ctx context.Context, mb emaildomain.Mailbox, messageID string, add, remove []string) error {
	srv, err := s.client(ctx, mb)
	if err != nil {
		return err
	}

	addIDs := make([]string, 0, len(add))
	for _, name := range add {
		id, err := s.ensureLabel(ctx, srv, mb.UserID, name)
		if err != nil {
			return err
		}
		addIDs = append(addIDs, id)
	}

	names, err := s.labelIDs(ctx, srv, mb.UserID)
	if err != nil {
		return err
	}
	removeIDs := make([]string, 0, len(remove))
	for _, name := range remove {
		if id, ok := names[name]; ok {
			removeIDs = append(removeIDs, id)
		}
	}

	if len(addIDs) == 0 && len(removeIDs) == 0 {
		return nil
	}

	req := &gmail.ModifyMessageRequest{
		AddLabelIds:    addIDs,
		RemoveLabelIds: removeIDs,
	}
	err = s.call(ctx, "messages.modify", func() error {
		_, callErr := srv.Users.Messages.Modify(user, messageID, req).Context(ctx).Do()
		return callErr
	})
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusBadRequest {
			// A label deleted by the user leaves a stale id behind
			s.invalidateLabels(mb.UserID)
		}
		return err
	}
	return nil
}

// Watch (re)starts push notifications for the inbox and returns the
// mailbox's current history id.
func (s *Service) Watch(ctx context.Context, mb emaildomain.Mailbox, topicName string) (string, time.Time, error) {
	srv, err := s.client(ctx, mb)
	if err != nil {
		return "", time.Time{}, err
	}

	// Only one push client is allowed per mailbox
	_ = srv.Users.Stop(user).Context(ctx).Do()

	req := &gmail.WatchRequest{
		TopicName:           topicName,
		LabelIds:            []string{"INBOX", "SENT"},
		LabelFilterBehavior: "include",
	}

	var resp *gmail.WatchResponse
	err = s.call(ctx, "users.watch", func() error {
		var callErr error
		resp, callErr = srv.Users.Watch(user, req).Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return "", time.Time{}, err
	}

	s.logger.Info().Str("user_id", mb.UserID).Uint64("history_id", resp.HistoryId).
		Int64("expiration", resp.Expiration).Msg("[Gmail] Watch started")
	return strconv.FormatUint(resp.HistoryId, 10), time.UnixMilli(resp.Expiration), nil
}

func (s *Service) StopWatch(ctx context.Context, mb emaildomain.Mailbox) error {
	srv, err := s.client(ctx, mb)
	if err != nil {
		return err
	}
	return s.call(ctx, "users.stop", func() error {
		return srv.Users.Stop(user).Context(ctx).Do()
	})
}

func (s *Service) ensureLabel(ctx context.Context, srv *gmail.Service, userID, name string) (string, error) {
	ids, err := s.labelIDs(ctx, srv, userID)
	if err != nil {
		return "", err
	}
	if id, ok := ids[name]; ok {
		return id, nil
	}

	var created *gmail.Label
	err = s.call(ctx, "labels.create", func() error {
		var callErr error
		created, callErr = srv.Users.Labels.Create(user, &gmail.Label{
			Name:                  name,
			LabelListVisibility:   "labelShow",
			MessageListVisibility: "show",
		}).Context(ctx).Do()
		return callErr
	})
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict {
			// Created concurrently; reload
			s.invalidateLabels(userID)
			ids, err := s.labelIDs(ctx, srv, userID)
			if err != nil {
				return "", err
			}
			if id, ok := ids[name]; ok {
				return id, nil
			}
		}
		return "", err
	}

	s.mu.Lock()
	if c, ok := s.labels[userID]; ok {
		c.byName[created.Name] = created.Id
		c.byID[created.Id] = created.Name
	}
	s.mu.Unlock()

	s.logger.Info().Str("user_id", userID).Str("label", name).Msg("[Gmail] Created label")
	return created.Id, nil
}

// labelIDs returns name -> id for the user's labels.
func (s *Service) labelIDs(ctx context.Context, srv *gmail.Service, userID string) (map[string]string, error) {
	c, err := s.loadLabels(ctx, srv, userID)
	if err != nil {
		return nil, err
	}
	return c.byName, nil
}

// labelNames returns id -> name for the user's labels.
func (s *Service) labelNames(ctx context.Context, srv *gmail.Service, userID string) (map[string]string, error) {
	c, err := s.loadLabels(ctx, srv, userID)
	if err != nil {
		return nil, err
	}
	return c.byID, nil
}

func (s *Service) loadLabels(ctx context.Context, srv *gmail.Service, userID string) (*labelCache, error) {
	s.mu.Lock()
	if c, ok := s.labels[userID]; ok {
		snapshot := c.snapshot()
		s.mu.Unlock()
		return snapshot, nil
	}
	s.mu.Unlock()

	var resp *gmail.ListLabelsResponse
	err := s.call(ctx, "labels.list", func() error {
		var callErr error
		resp, callErr = srv.Users.Labels.List(user).Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return nil, err
	}

	c := &labelCache{
		byName: make(map[string]string, len(resp.Labels)),
		byID:   make(map[string]string, len(resp.Labels)),
	}
	for _, l := range resp.Labels {
		c.byName[l.Name] = l.Id
		c.byID[l.Id] = l.Name
	}

	s.mu.Lock()
	s.labels[userID] = c
	s.mu.Unlock()
	return c.snapshot(), nil
}

func (c *labelCache) snapshot() *labelCache {
	out := &labelCache{
		byName: make(map[string]string, len(c.byName)),
		byID:   make(map[string]string, len(c.byID)),
	}
	for k, v := range c.byName {
		out.byName[k] = v
	}
	for k, v := range c.byID {
		out.byID[k] = v
	}
	return out
}

func (s *Service) invalidateLabels(userID string) {
	s.mu.Lock()
	delete(s.labels, userID)
	s.mu.Unlock()
}
