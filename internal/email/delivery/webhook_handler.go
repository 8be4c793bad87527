package delivery

import (
	"net/http"
	"runtime/debug"

	emaildomain "mailpilot-backend/internal/email/domain"
	emaildto "mailpilot-backend/internal/email/dto"
	"mailpilot-backend/internal/email/usecase"
	"mailpilot-backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// WebhookHandler receives Gmail push notifications relayed by Pub/Sub.
// It always answers 200 so Pub/Sub never redelivers a message we chose to drop.
type WebhookHandler struct {
	emailUsecase usecase.EmailUsecase
	logger       zerolog.Logger
}

func NewWebhookHandler(emailUsecase usecase.EmailUsecase) *WebhookHandler {
	return &WebhookHandler{
		emailUsecase: emailUsecase,
		logger:       logger.Component("webhook"),
	}
}

// POST /webhook
func (h *WebhookHandler) Receive(c *gin.Context) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error().Interface("panic", r).Str("stack", string(debug.Stack())).
				Msg("[Webhook] Recovered from panic")
			c.JSON(http.StatusOK, emaildto.WebhookResponse{Success: false})
		}
	}()

	var env emaildto.PushEnvelope
	if err := c.ShouldBindJSON(&env); err != nil {
		h.logger.Warn().Err(err).Msg("[Webhook] Dropping unreadable envelope")
		c.JSON(http.StatusOK, emaildto.WebhookResponse{Success: true})
		return
	}

	lg := h.logger.With().Str("pubsub_message_id", env.Message.MessageID).Logger()

	notification, err := emaildomain.DecodePushData(env.Message.Data)
	if err != nil {
		lg.Warn().Err(err).Msg("[Webhook] Dropping malformed notification")
		c.JSON(http.StatusOK, emaildto.WebhookResponse{Success: true})
		return
	}

	result, err := h.emailUsecase.HandleNotification(c.Request.Context(), notification)
	if err != nil {
		lg.Error().Err(err).Str("email", notification.EmailAddress).Str("history_id", notification.HistoryID).
			Msg("[Webhook] Notification processing failed")
		c.JSON(http.StatusOK, emaildto.WebhookResponse{Success: false})
		return
	}

	c.JSON(http.StatusOK, emaildto.WebhookResponse{Success: true, Result: result})
}

// GET /webhook
func (h *WebhookHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
