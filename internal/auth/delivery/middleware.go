package delivery

import (
	"context"
	"net/http"
	"strings"

	"mailpilot-backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"google.golang.org/api/idtoken"
)

// TokenValidator verifies Google-signed OIDC tokens. *idtoken.Validator satisfies it.
type TokenValidator interface {
	Validate(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)
}

// PushAuthMiddleware checks the OIDC bearer token Pub/Sub attaches to push
// requests. Rejections still answer 200 so Pub/Sub does not retry them.
func PushAuthMiddleware(validator TokenValidator, audience string) gin.HandlerFunc {
	lg := logger.Component("push_auth")

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			lg.Warn().Str("remote", c.ClientIP()).Msg("[PushAuth] Missing authorization header")
			c.JSON(http.StatusOK, gin.H{"success": false})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			lg.Warn().Str("remote", c.ClientIP()).Msg("[PushAuth] Invalid authorization header format")
			c.JSON(http.StatusOK, gin.H{"success": false})
			c.Abort()
			return
		}

		payload, err := validator.Validate(c.Request.Context(), parts[1], audience)
		if err != nil {
			lg.Warn().Err(err).Str("remote", c.ClientIP()).Msg("[PushAuth] Invalid push token")
			c.JSON(http.StatusOK, gin.H{"success": false})
			c.Abort()
			return
		}

		if email, ok := payload.Claims["email"].(string); ok {
			c.Set("pushServiceAccount", email)
		}
		c.Next()
	}
}
