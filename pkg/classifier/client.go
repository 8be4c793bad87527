package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	emaildomain "mailpilot-backend/internal/email/domain"
	"mailpilot-backend/pkg/logger"

	"github.com/rs/zerolog"
)

// HTTPClient posts messages to the external classification and draft service.
type HTTPClient struct {
	url        string
	httpClient *http.Client
}

type dispatchRequest struct {
	UserID  string                          `json:"userId"`
	Message *emaildomain.NormalizedMessage `json:"message"`
}

// NewClient picks the HTTP client when url is set and the logging no-op otherwise.
func NewClient(url string, timeout time.Duration) emaildomain.ClassificationClient {
	if url == "" {
		return NewNoopClient()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) DispatchForClassification(ctx context.Context, userID string, msg *emaildomain.NormalizedMessage) error {
	body, err := json.Marshal(dispatchRequest{UserID: userID, Message: msg})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("classifier request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("classifier API error (%d): %s", resp.StatusCode, string(respBody))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// NoopClient only logs. Used when no classification service is configured.
type NoopClient struct {
	logger zerolog.Logger
}

func NewNoopClient() *NoopClient {
	return &NoopClient{logger: logger.Component("classifier")}
}

func (c *NoopClient) DispatchForClassification(ctx context.Context, userID string, msg *emaildomain.NormalizedMessage) error {
	c.logger.Info().Str("user_id", userID).Str("message_id", msg.MessageID).
		Msg("[Classifier] No classifier configured, dropping dispatch")
	return nil
}
