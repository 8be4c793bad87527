package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	authdomain "mailpilot-backend/internal/auth/domain"
	authrepo "mailpilot-backend/internal/auth/repository"
	emaildomain "mailpilot-backend/internal/email/domain"
	"mailpilot-backend/internal/email/repository"
	"mailpilot-backend/internal/testutil"

	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

const testPrefix = "Mailpilot"

type fakeProvider struct {
	mu sync.Mutex

	messages map[string]*emaildomain.NormalizedMessage
	labels   map[string]map[string]bool
	threads  map[string][]string
	inbox    []string

	history     *emaildomain.HistoryPage
	historyErr  error
	onHistory   func()
	onModify    func(messageID string)
	getErr      map[string]error
	modifyErr   error
	watchCursor string

	historyCalls int
	getCalls     int
	modifyCalls  int
	watchCalls   int
	stopCalls    int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		messages: map[string]*emaildomain.NormalizedMessage{},
		labels:   map[string]map[string]bool{},
		threads:  map[string][]string{},
		getErr:   map[string]error{},
	}
}

func (p *fakeProvider) addMessage(msg *emaildomain.NormalizedMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages[msg.MessageID] = msg
	p.threads[msg.ThreadID] = append(p.threads[msg.ThreadID], msg.MessageID)
	set := map[string]bool{}
	for _, l := range msg.ExistingLabels {
		set[l] = true
	}
	p.labels[msg.MessageID] = set
}

// coreLabels returns the core provider labels attached to a message
func (p *fakeProvider) coreLabels(messageID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for name := range p.labels[messageID] {
		if _, ok := emaildomain.LabelFromProviderName(testPrefix, name); ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (p *fakeProvider) GetMessage(ctx context.Context, mb emaildomain.Mailbox, messageID string) (*emaildomain.NormalizedMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.getCalls++
	if err := p.getErr[messageID]; err != nil {
		return nil, err
	}
	msg, ok := p.messages[messageID]
	if !ok {
		return nil, &emaildomain.ProviderError{Op: "messages.get", StatusCode: 404, Err: fmt.Errorf("message %s not found", messageID)}
	}
	cp := *msg
	cp.ExistingLabels = nil
	for name := range p.labels[messageID] {
		cp.ExistingLabels = append(cp.ExistingLabels, name)
	}
	return &cp, nil
}

func (p *fakeProvider) ListHistory(ctx context.Context, mb emaildomain.Mailbox, startCursor string) (*emaildomain.HistoryPage, error) {
	p.mu.Lock()
	p.historyCalls++
	hook := p.onHistory
	page, err := p.history, p.historyErr
	p.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	if page == nil {
		return &emaildomain.HistoryPage{}, nil
	}
	return page, nil
}

func (p *fakeProvider) ListInboxMessageIDs(ctx context.Context, mb emaildomain.Mailbox, max int) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if max > len(p.inbox) {
		max = len(p.inbox)
	}
	return append([]string(nil), p.inbox[:max]...), nil
}

func (p *fakeProvider) ListThreadMessageIDs(ctx context.Context, mb emaildomain.Mailbox, threadID string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.threads[threadID]...), nil
}

func (p *fakeProvider) ModifyLabels(ctx context.Context, mb emaildomain.Mailbox, messageID string, add, remove []string) error {
	p.mu.Lock()
	hook := p.onModify
	p.mu.Unlock()
	if hook != nil {
		hook(messageID)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.modifyCalls++
	if p.modifyErr != nil {
		return p.modifyErr
	}
	set, ok := p.labels[messageID]
	if !ok {
		set = map[string]bool{}
		p.labels[messageID] = set
	}
	for _, name := range remove {
		delete(set, name)
	}
	for _, name := range add {
		set[name] = true
	}
	return nil
}

func (p *fakeProvider) Watch(ctx context.Context, mb emaildomain.Mailbox, topicName string) (string, time.Time, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.watchCalls++
	return p.watchCursor, time.Now().Add(7 * 24 * time.Hour), nil
}

func (p *fakeProvider) StopWatch(ctx context.Context, mb emaildomain.Mailbox) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopCalls++
	return nil
}

type fakeTokens struct {
	err error
}

func (f *fakeTokens) TokenSource(ctx context.Context, userID string) (oauth2.TokenSource, error) {
	if f.err != nil {
		return nil, f.err
	}
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "token-" + userID}), nil
}

type fakeDispatcher struct {
	mu     sync.Mutex
	jobs   []DispatchJob
	reject bool
}

func (d *fakeDispatcher) Enqueue(job DispatchJob) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.reject {
		return false
	}
	d.jobs = append(d.jobs, job)
	return true
}

func (d *fakeDispatcher) messageIDs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var ids []string
	for _, j := range d.jobs {
		ids = append(ids, j.Message.MessageID)
	}
	return ids
}

type fakeNotifier struct {
	calls chan string
}

func (n *fakeNotifier) NotifyReply(ctx context.Context, userID, threadID, messageID string) error {
	n.calls <- threadID + "/" + messageID
	return nil
}

type harness struct {
	db         *gorm.DB
	uc         *emailUsecase
	provider   *fakeProvider
	tokens     *fakeTokens
	dispatcher *fakeDispatcher
	notifier   *fakeNotifier

	subRepo      repository.WatchSubscriptionRepository
	labelRepo    repository.MessageLabelRepository
	statusRepo   repository.ThreadReplyStatusRepository
	dispatchRepo repository.DispatchLogRepository
	userRepo     authrepo.UserRepository
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.NewDB(t)
	h := &harness{
		db:           db,
		provider:     newFakeProvider(),
		tokens:       &fakeTokens{},
		dispatcher:   &fakeDispatcher{},
		notifier:     &fakeNotifier{calls: make(chan string, 10)},
		subRepo:      repository.NewWatchSubscriptionRepository(db),
		labelRepo:    repository.NewMessageLabelRepository(db),
		statusRepo:   repository.NewThreadReplyStatusRepository(db),
		dispatchRepo: repository.NewDispatchLogRepository(db),
		userRepo:     authrepo.NewUserRepository(db),
	}
	h.uc = NewEmailUsecase(Dependencies{
		UserRepo:        h.userRepo,
		Tokens:          h.tokens,
		Provider:        h.provider,
		SubRepo:         h.subRepo,
		LabelRepo:       h.labelRepo,
		ReplyStatusRepo: h.statusRepo,
		SettingsRepo:    repository.NewDraftSettingsRepository(db),
		DispatchRepo:    h.dispatchRepo,
		Dispatcher:      h.dispatcher,
		Notifier:        h.notifier,
	}, Options{
		LabelPrefix:         testPrefix,
		WatchTopic:          "projects/p/topics/gmail",
		BackfillMaxCount:    50,
		BackfillConcurrency: 4,
	}).(*emailUsecase)
	return h
}

func (h *harness) seedUser(t *testing.T, id, email string) {
	t.Helper()
	if err := h.db.Create(&authdomain.User{ID: id, Email: email, AccessToken: "a", RefreshToken: "r"}).Error; err != nil {
		t.Fatal(err)
	}
}

func (h *harness) seedSubscription(t *testing.T, userID, email, cursor string) {
	t.Helper()
	if err := h.subRepo.Upsert(&emaildomain.WatchSubscription{
		UserID: userID, EmailAddress: email, Cursor: cursor, IsActive: true,
	}); err != nil {
		t.Fatal(err)
	}
}

func (h *harness) seedSettings(t *testing.T, s emaildomain.DraftAutomationSettings) {
	t.Helper()
	if err := h.db.Create(&s).Error; err != nil {
		t.Fatal(err)
	}
}

func (h *harness) cursor(t *testing.T, userID string) string {
	t.Helper()
	sub, err := h.subRepo.FindByUserID(userID)
	if err != nil || sub == nil {
		t.Fatalf("subscription %s: %v", userID, err)
	}
	return sub.Cursor
}

func (h *harness) mailbox(userID string) emaildomain.Mailbox {
	return emaildomain.Mailbox{UserID: userID, Token: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "x"})}
}

func inbound(id, thread, from, subject string) *emaildomain.NormalizedMessage {
	return &emaildomain.NormalizedMessage{
		MessageID:      id,
		ThreadID:       thread,
		FromAddress:    from,
		ToAddress:      "user@example.com",
		Subject:        subject,
		ExistingLabels: []string{"INBOX", "UNREAD"},
		Headers:        map[string]string{},
	}
}

func added(id, thread string, labelIDs ...string) emaildomain.HistoryRecord {
	return emaildomain.HistoryRecord{Kind: emaildomain.HistoryMessageAdded, MessageID: id, ThreadID: thread, LabelIDs: labelIDs}
}
