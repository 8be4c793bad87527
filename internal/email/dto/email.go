package dto

import (
	emaildomain "mailpilot-backend/internal/email/domain"
	"mailpilot-backend/internal/email/usecase"
)

// PushEnvelope is the body Pub/Sub push delivers to the webhook
type PushEnvelope struct {
	Message struct {
		Data        string `json:"data"`
		MessageID   string `json:"messageId"`
		PublishTime string `json:"publishTime"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type WebhookResponse struct {
	Success bool                  `json:"success"`
	Result  *usecase.IntakeResult `json:"result,omitempty"`
}

type LabelResponse struct {
	CurrentLabel string                 `json:"currentLabel"`
	LabelInfo    *emaildomain.LabelInfo `json:"labelInfo"`
}

type ApplyLabelRequest struct {
	UserID    string `json:"userId"`
	LabelName string `json:"labelName" binding:"required"`
	ThreadID  string `json:"threadId"`
}

type ApplyLabelResponse struct {
	Success      bool `json:"success"`
	LabelApplied bool `json:"labelApplied"`
}

type RemoveLabelResponse struct {
	Success      bool `json:"success"`
	LabelRemoved bool `json:"labelRemoved"`
}

type LabelsResponse struct {
	Labels []emaildomain.LabelInfo `json:"labels"`
}

type BackfillRequest struct {
	UserID          string `json:"userId" binding:"required"`
	Count           int    `json:"count"`
	ReplaceExisting *bool  `json:"replaceExisting"`
}

// MaxBackfillErrors caps the error list returned to callers
const MaxBackfillErrors = 10

type BackfillResponse struct {
	Success         bool                    `json:"success"`
	TotalFetched    int                     `json:"totalFetched"`
	Labeled         int                     `json:"labeled"`
	SkippedSelf     int                     `json:"skippedSelf"`
	SkippedExisting int                     `json:"skippedExisting"`
	Errors          []usecase.BackfillError `json:"errors"`
}

type SubscribeRequest struct {
	UserID string `json:"userId" binding:"required"`
}

type SubscriptionResponse struct {
	UserID          string `json:"userId"`
	EmailAddress    string `json:"emailAddress"`
	Cursor          string `json:"cursor"`
	IsActive        bool   `json:"isActive"`
	WatchExpiration string `json:"watchExpiration,omitempty"`
}

type RecordSentRequest struct {
	UserID    string `json:"userId" binding:"required"`
	MessageID string `json:"messageId" binding:"required"`
}

type ReplyStatusResponse struct {
	ThreadID          string                 `json:"threadId"`
	State             emaildomain.ReplyState `json:"state"`
	AwaitingReply     bool                   `json:"awaitingReply"`
	ReplyReceived     bool                   `json:"replyReceived"`
	LastSentMessageID string                 `json:"lastSentMessageId,omitempty"`
	ReplyMessageID    string                 `json:"replyMessageId,omitempty"`
	Relabel           *usecase.RelabelResult `json:"relabel,omitempty"`
}
