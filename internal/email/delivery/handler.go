package delivery

import (
	"errors"
	"net/http"
	"time"

	emaildomain "mailpilot-backend/internal/email/domain"
	emaildto "mailpilot-backend/internal/email/dto"
	"mailpilot-backend/internal/email/usecase"

	"github.com/gin-gonic/gin"
)

type EmailHandler struct {
	emailUsecase usecase.EmailUsecase
}

func NewEmailHandler(emailUsecase usecase.EmailUsecase) *EmailHandler {
	return &EmailHandler{
		emailUsecase: emailUsecase,
	}
}

// GET /labels
func (h *EmailHandler) ListLabels(c *gin.Context) {
	labels := make([]emaildomain.LabelInfo, 0, len(emaildomain.AllLabels))
	for _, l := range emaildomain.AllLabels {
		labels = append(labels, l.Info())
	}
	c.JSON(http.StatusOK, emaildto.LabelsResponse{Labels: labels})
}

// GET /labels/:messageId?userId=
func (h *EmailHandler) GetLabel(c *gin.Context) {
	label, err := h.emailUsecase.GetLabel(c.Query("userId"), c.Param("messageId"))
	if err != nil {
		writeError(c, err)
		return
	}

	resp := emaildto.LabelResponse{CurrentLabel: label.String()}
	if label.IsCore() {
		info := label.Info()
		resp.LabelInfo = &info
	}
	c.JSON(http.StatusOK, resp)
}

// POST /labels/:messageId
func (h *EmailHandler) ApplyLabel(c *gin.Context) {
	var req emaildto.ApplyLabelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	label, err := emaildomain.ParseLabel(req.LabelName)
	if err != nil {
		writeError(c, err)
		return
	}

	applied, err := h.emailUsecase.ApplyLabel(c.Request.Context(), req.UserID, c.Param("messageId"), req.ThreadID, label)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, emaildto.ApplyLabelResponse{Success: true, LabelApplied: applied})
}

// DELETE /labels/:messageId?userId=&labelName=
func (h *EmailHandler) RemoveLabel(c *gin.Context) {
	label, err := emaildomain.ParseLabel(c.Query("labelName"))
	if err != nil {
		writeError(c, err)
		return
	}

	removed, err := h.emailUsecase.RemoveLabel(c.Request.Context(), c.Query("userId"), c.Param("messageId"), label)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, emaildto.RemoveLabelResponse{Success: true, LabelRemoved: removed})
}

// POST /backfill
func (h *EmailHandler) Backfill(c *gin.Context) {
	var req emaildto.BackfillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	replace := true
	if req.ReplaceExisting != nil {
		replace = *req.ReplaceExisting
	}

	result, err := h.emailUsecase.Backfill(c.Request.Context(), req.UserID, req.Count, replace)
	if err != nil {
		writeError(c, err)
		return
	}

	errs := result.Errors
	if len(errs) > emaildto.MaxBackfillErrors {
		errs = errs[:emaildto.MaxBackfillErrors]
	}
	c.JSON(http.StatusOK, emaildto.BackfillResponse{
		Success:         true,
		TotalFetched:    result.TotalFetched,
		Labeled:         result.Labeled,
		SkippedSelf:     result.SkippedSelf,
		SkippedExisting: result.SkippedExisting,
		Errors:          errs,
	})
}

// POST /subscriptions
func (h *EmailHandler) Subscribe(c *gin.Context) {
	var req emaildto.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub, err := h.emailUsecase.Subscribe(c.Request.Context(), req.UserID)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := emaildto.SubscriptionResponse{
		UserID:       sub.UserID,
		EmailAddress: sub.EmailAddress,
		Cursor:       sub.Cursor,
		IsActive:     sub.IsActive,
	}
	if sub.WatchExpiration != nil {
		resp.WatchExpiration = sub.WatchExpiration.UTC().Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}

// DELETE /subscriptions/:userId
func (h *EmailHandler) Unsubscribe(c *gin.Context) {
	if err := h.emailUsecase.Unsubscribe(c.Request.Context(), c.Param("userId")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GET /threads/:threadId/reply-status?userId=
func (h *EmailHandler) GetReplyStatus(c *gin.Context) {
	threadID := c.Param("threadId")
	status, err := h.emailUsecase.GetReplyStatus(c.Query("userId"), threadID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, replyStatusResponse(threadID, status, nil))
}

// POST /threads/:threadId/sent
func (h *EmailHandler) RecordSent(c *gin.Context) {
	var req emaildto.RecordSentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	threadID := c.Param("threadId")
	relabel, err := h.emailUsecase.RecordSent(c.Request.Context(), req.UserID, threadID, req.MessageID)
	if err != nil {
		writeError(c, err)
		return
	}

	status, err := h.emailUsecase.GetReplyStatus(req.UserID, threadID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, replyStatusResponse(threadID, status, relabel))
}

func replyStatusResponse(threadID string, status *emaildomain.ThreadReplyStatus, relabel *usecase.RelabelResult) emaildto.ReplyStatusResponse {
	resp := emaildto.ReplyStatusResponse{
		ThreadID: threadID,
		State:    status.State(),
		Relabel:  relabel,
	}
	if status != nil {
		resp.AwaitingReply = status.AwaitingReply
		resp.ReplyReceived = status.ReplyReceived
		resp.LastSentMessageID = status.LastSentMessageID
		resp.ReplyMessageID = status.ReplyMessageID
	}
	return resp
}

func writeError(c *gin.Context, err error) {
	var providerErr *emaildomain.ProviderError
	switch {
	case errors.Is(err, emaildomain.ErrValidation),
		errors.Is(err, emaildomain.ErrUnknownLabel),
		errors.Is(err, emaildomain.ErrAutomationDisabled):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, emaildomain.ErrNoActiveSubscription):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, emaildomain.ErrAuthentication):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.As(err, &providerErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
