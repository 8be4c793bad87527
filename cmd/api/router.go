package api

import (
	"net/http"

	authDelivery "mailpilot-backend/internal/auth/delivery"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, h *Handler) {
	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Pub/Sub push webhook
	webhook := r.Group("/webhook")
	{
		webhook.GET("", h.webhookHandler.Status)
		if h.pushValidator != nil {
			webhook.POST("", authDelivery.PushAuthMiddleware(h.pushValidator, h.config.PubSubPushAudience), h.webhookHandler.Receive)
		} else {
			webhook.POST("", h.webhookHandler.Receive)
		}
	}

	// Label routes
	labels := r.Group("/labels")
	{
		labels.GET("", h.emailHandler.ListLabels)
		labels.GET("/:messageId", h.emailHandler.GetLabel)
		labels.POST("/:messageId", h.emailHandler.ApplyLabel)
		labels.DELETE("/:messageId", h.emailHandler.RemoveLabel)
	}

	r.POST("/backfill", h.emailHandler.Backfill)

	// Watch subscriptions
	subscriptions := r.Group("/subscriptions")
	{
		subscriptions.POST("", h.emailHandler.Subscribe)
		subscriptions.DELETE("/:userId", h.emailHandler.Unsubscribe)
	}

	// Reply tracking
	threads := r.Group("/threads")
	{
		threads.GET("/:threadId/reply-status", h.emailHandler.GetReplyStatus)
		threads.POST("/:threadId/sent", h.emailHandler.RecordSent)
	}

	// FCM device registration
	fcm := r.Group("/fcm")
	{
		fcm.POST("/register", h.authHandler.RegisterFCMToken)
		fcm.DELETE("/:token", h.authHandler.UnregisterFCMToken)
	}
}
