package usecase

import (
	"context"

	"golang.org/x/oauth2"
)

// AuthUsecase resolves mailbox credentials and manages notification devices
type AuthUsecase interface {
	// TokenSource returns a refreshing token source for the user's mailbox.
	// Refreshed tokens are written back to the users table.
	TokenSource(ctx context.Context, userID string) (oauth2.TokenSource, error)
	RegisterFCMToken(userID, token, deviceInfo string) error
	UnregisterFCMToken(token string) error
}
