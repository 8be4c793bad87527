package api

import (
	"net/http"
	"time"

	authDelivery "mailpilot-backend/internal/auth/delivery"
	authUsecase "mailpilot-backend/internal/auth/usecase"
	emailDelivery "mailpilot-backend/internal/email/delivery"
	emailUsecasePkg "mailpilot-backend/internal/email/usecase"
	"mailpilot-backend/pkg/config"
	"mailpilot-backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type Handler struct {
	authHandler    *authDelivery.AuthHandler
	emailHandler   *emailDelivery.EmailHandler
	webhookHandler *emailDelivery.WebhookHandler
	// pushValidator is nil when push authentication is disabled
	pushValidator authDelivery.TokenValidator
	config        *config.Config
}

func NewHandler(authUc authUsecase.AuthUsecase, emailUc emailUsecasePkg.EmailUsecase, cfg *config.Config, pushValidator authDelivery.TokenValidator) *Handler {
	return &Handler{
		authHandler:    authDelivery.NewAuthHandler(authUc),
		emailHandler:   emailDelivery.NewEmailHandler(emailUc),
		webhookHandler: emailDelivery.NewWebhookHandler(emailUc),
		pushValidator:  pushValidator,
		config:         cfg,
	}
}

// Router builds the gin engine with middleware and routes.
func (h *Handler) Router() *gin.Engine {
	if !h.config.LogPretty {
		gin.SetMode(gin.ReleaseMode)
	}
	httpLogger := logger.Component("http")
	r := gin.New()
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		httpLogger.Error().Interface("panic", recovered).Str("path", c.Request.URL.Path).
			Msg("[HTTP] Recovered from panic")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}))
	r.Use(requestLogger(httpLogger))

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h)
	return r
}

func requestLogger(lg zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		evt := lg.Debug()
		if c.Writer.Status() >= http.StatusInternalServerError {
			evt = lg.Warn()
		}
		evt.Str("method", c.Request.Method).Str("path", c.FullPath()).Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).Msg("[HTTP] Request")
	}
}
