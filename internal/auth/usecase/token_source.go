package usecase

import (
	"errors"
	"fmt"
	"sync"

	emaildomain "mailpilot-backend/internal/email/domain"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// notifyTokenSource wraps a refreshing token source and reports every new
// access token to callback.
type notifyTokenSource struct {
	src      oauth2.TokenSource
	mu       sync.Mutex
	current  *oauth2.Token
	callback func(*oauth2.Token) error
	logger   zerolog.Logger
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, classifyTokenError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.callback != nil && (s.current == nil || s.current.AccessToken != t.AccessToken) {
		s.current = t
		if err := s.callback(t); err != nil {
			// The token is still usable for this request
			s.logger.Error().Err(err).Msg("[Auth] Failed to persist refreshed token")
		}
	}
	return t, nil
}

// classifyTokenError maps OAuth refresh failures onto the domain errors.
// invalid_grant means the user revoked access or the refresh token expired.
func classifyTokenError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.ErrorCode == "invalid_grant" {
			return fmt.Errorf("%w: %v", emaildomain.ErrTokenRevoked, err)
		}
		return fmt.Errorf("%w: %v", emaildomain.ErrAuthentication, err)
	}
	return err
}
