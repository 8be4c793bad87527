package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mailpilot-backend/internal/auth/repository"
	emaildomain "mailpilot-backend/internal/email/domain"
	"mailpilot-backend/pkg/config"
	"mailpilot-backend/pkg/logger"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
)

// authUsecase implements AuthUsecase interface
type authUsecase struct {
	userRepo    repository.UserRepository
	fcmRepo     repository.FCMTokenRepository
	oauthConfig *oauth2.Config
	logger      zerolog.Logger
}

// NewAuthUsecase creates a new instance of authUsecase
func NewAuthUsecase(userRepo repository.UserRepository, fcmRepo repository.FCMTokenRepository, cfg *config.Config) AuthUsecase {
	return &authUsecase{
		userRepo: userRepo,
		fcmRepo:  fcmRepo,
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{gmail.GmailModifyScope},
		},
		logger: logger.Component("auth"),
	}
}

func (u *authUsecase) TokenSource(ctx context.Context, userID string) (oauth2.TokenSource, error) {
	user, err := u.userRepo.FindByID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", userID, err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s not found", emaildomain.ErrAuthentication, userID)
	}
	if user.AccessToken == "" && user.RefreshToken == "" {
		return nil, fmt.Errorf("%w: user %s has no stored credentials", emaildomain.ErrAuthentication, userID)
	}

	token := &oauth2.Token{
		AccessToken:  user.AccessToken,
		RefreshToken: user.RefreshToken,
		TokenType:    "Bearer",
	}
	if user.TokenExpiry != nil {
		token.Expiry = *user.TokenExpiry
	} else if user.RefreshToken != "" {
		// Unknown expiry: refresh on first use
		token.Expiry = time.Now()
	}

	// Refresh requests must outlive the webhook request that triggered them.
	src := u.oauthConfig.TokenSource(context.WithoutCancel(ctx), token)

	return &notifyTokenSource{
		src:     src,
		current: token,
		callback: func(t *oauth2.Token) error {
			return u.userRepo.UpdateTokens(userID, t.AccessToken, t.RefreshToken, t.Expiry)
		},
		logger: u.logger.With().Str("user_id", userID).Logger(),
	}, nil
}

func (u *authUsecase) RegisterFCMToken(userID, token, deviceInfo string) error {
	userID = strings.TrimSpace(userID)
	token = strings.TrimSpace(token)
	if userID == "" || token == "" {
		return fmt.Errorf("%w: userId and token are required", emaildomain.ErrValidation)
	}
	return u.fcmRepo.SaveToken(userID, token, deviceInfo)
}

func (u *authUsecase) UnregisterFCMToken(token string) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("%w: token is required", emaildomain.ErrValidation)
	}
	return u.fcmRepo.DeleteToken(token)
}
