package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	emaildomain "mailpilot-backend/internal/email/domain"

	"github.com/nalgeon/be"
)

func TestHTTPClientPostsMessage(t *testing.T) {
	var got dispatchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		be.Equal(t, r.Method, http.MethodPost)
		be.Equal(t, r.Header.Get("Content-Type"), "application/json")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	err := c.DispatchForClassification(context.Background(), "u1", &emaildomain.NormalizedMessage{MessageID: "m1", Subject: "hi"})
	be.Err(t, err, nil)
	be.Equal(t, got.UserID, "u1")
	be.Equal(t, got.Message.MessageID, "m1")
}

func TestHTTPClientReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	err := c.DispatchForClassification(context.Background(), "u1", &emaildomain.NormalizedMessage{MessageID: "m1"})
	be.True(t, err != nil)
}

func TestNewClientWithoutURLIsNoop(t *testing.T) {
	c := NewClient("", 0)
	_, ok := c.(*NoopClient)
	be.True(t, ok)
	be.Err(t, c.DispatchForClassification(context.Background(), "u1", &emaildomain.NormalizedMessage{}), nil)
}
