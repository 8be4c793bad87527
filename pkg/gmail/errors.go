package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	emaildomain "mailpilot-backend/internal/email/domain"

	"github.com/sony/gobreaker"
	"google.golang.org/api/googleapi"
)

// nonCircuitError carries client-side failures through the breaker without
// counting them as failures.
type nonCircuitError struct {
	err error
}

func (e *nonCircuitError) Error() string {
	return e.err.Error()
}

// call rate-limits fn, runs it through the circuit breaker and maps the
// result onto domain errors.
func (s *Service) call(ctx context.Context, op string, fn func() error) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err := s.cb.Execute(func() (interface{}, error) {
		if err := fn(); err != nil {
			if !tripsBreaker(err) {
				return nil, &nonCircuitError{err: err}
			}
			return nil, err
		}
		return nil, nil
	})
	if nce, ok := err.(*nonCircuitError); ok {
		err = nce.err
	}
	if err != nil && s.cb.State() != gobreaker.StateClosed {
		s.logger.Warn().Str("op", op).Str("breaker", s.cb.State().String()).Err(err).
			Msg("[Gmail] Call failed")
	}
	return wrapError(op, err)
}

func tripsBreaker(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	// Credential failures and cancellations say nothing about Gmail health
	if errors.Is(err, emaildomain.ErrAuthentication) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &emaildomain.ProviderError{Op: op, Retryable: true, Err: err}
	}
	if errors.Is(err, emaildomain.ErrAuthentication) {
		return &emaildomain.ProviderError{Op: op, StatusCode: http.StatusUnauthorized, Err: err}
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		pe := &emaildomain.ProviderError{Op: op, StatusCode: apiErr.Code, Err: err}
		switch apiErr.Code {
		case http.StatusUnauthorized:
			pe.Err = fmt.Errorf("%w: %v", emaildomain.ErrAuthentication, err)
		case http.StatusForbidden:
			if strings.Contains(strings.ToLower(apiErr.Message), "rate limit") {
				pe.Retryable = true
			} else {
				pe.Err = fmt.Errorf("%w: %v", emaildomain.ErrAuthentication, err)
			}
		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			pe.Retryable = true
		}
		return pe
	}
	return &emaildomain.ProviderError{Op: op, Retryable: true, Err: err}
}
