package gmail

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	emaildomain "mailpilot-backend/internal/email/domain"

	"github.com/nalgeon/be"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

func newTestService(t *testing.T, handler http.Handler) (*Service, emaildomain.Mailbox) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s := NewService(nil)
	s.newClient = func(ctx context.Context, ts oauth2.TokenSource) (*gmail.Service, error) {
		return gmail.NewService(ctx, option.WithHTTPClient(srv.Client()), option.WithEndpoint(srv.URL+"/"))
	}
	mb := emaildomain.Mailbox{
		UserID: "u1",
		Token:  oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "x"}),
	}
	return s, mb
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestListHistoryExpiredCursor(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/history", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error": map[string]any{"code": 404, "message": "Requested entity was not found."},
		})
	})
	s, mb := newTestService(t, mux)

	_, err := s.ListHistory(context.Background(), mb, "100")
	be.True(t, errors.Is(err, emaildomain.ErrCursorExpired))
}

func TestListHistoryCollectsRecords(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/history", func(w http.ResponseWriter, r *http.Request) {
		be.Equal(t, r.URL.Query().Get("startHistoryId"), "100")
		writeJSON(w, http.StatusOK, map[string]any{
			"historyId": "120",
			"history": []map[string]any{
				{"id": "101", "messagesAdded": []map[string]any{
					{"message": map[string]any{"id": "m1", "threadId": "t1", "labelIds": []string{"INBOX", "UNREAD"}}},
				}},
				{"id": "102", "messagesDeleted": []map[string]any{
					{"message": map[string]any{"id": "m0", "threadId": "t0"}},
				}},
			},
		})
	})
	s, mb := newTestService(t, mux)

	page, err := s.ListHistory(context.Background(), mb, "100")
	be.Err(t, err, nil)
	be.Equal(t, page.NextCursor, "120")
	be.Equal(t, len(page.Records), 2)
	be.Equal(t, page.Records[0].Kind, emaildomain.HistoryMessageAdded)
	be.Equal(t, page.Records[0].LabelIDs, []string{"INBOX", "UNREAD"})
	be.Equal(t, page.Records[1].Kind, emaildomain.HistoryMessageDeleted)
}

func TestListHistoryRejectsNonNumericCursor(t *testing.T) {
	s, mb := newTestService(t, http.NewServeMux())
	_, err := s.ListHistory(context.Background(), mb, "abc")
	be.True(t, errors.Is(err, emaildomain.ErrValidation))
}

func TestModifyLabelsCreatesMissingLabel(t *testing.T) {
	var mu sync.Mutex
	var modify gmail.ModifyMessageRequest
	creates := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/labels", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]any{"labels": []map[string]any{
				{"id": "Label_2", "name": "Mailpilot/FYI"},
			}})
		case http.MethodPost:
			mu.Lock()
			creates++
			mu.Unlock()
			writeJSON(w, http.StatusOK, map[string]any{"id": "Label_1", "name": "Mailpilot/To Respond"})
		}
	})
	mux.HandleFunc("/gmail/v1/users/me/messages/m1/modify", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		_ = json.Unmarshal(body, &modify)
		mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"id": "m1"})
	})
	s, mb := newTestService(t, mux)

	err := s.ModifyLabels(context.Background(), mb, "m1",
		[]string{"Mailpilot/To Respond"},
		[]string{"Mailpilot/FYI", "Mailpilot/Marketing"})
	be.Err(t, err, nil)

	mu.Lock()
	defer mu.Unlock()
	be.Equal(t, creates, 1)
	be.Equal(t, modify.AddLabelIds, []string{"Label_1"})
	be.Equal(t, modify.RemoveLabelIds, []string{"Label_2"})
}

func TestUnauthorizedMapsToAuthentication(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/threads/t1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"error": map[string]any{"code": 401, "message": "Invalid Credentials"},
		})
	})
	s, mb := newTestService(t, mux)

	_, err := s.ListThreadMessageIDs(context.Background(), mb, "t1")
	be.True(t, errors.Is(err, emaildomain.ErrAuthentication))

	var pe *emaildomain.ProviderError
	be.True(t, errors.As(err, &pe))
	be.Equal(t, pe.StatusCode, 401)
}
