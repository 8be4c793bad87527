package usecase

import (
	"strings"

	emaildomain "mailpilot-backend/internal/email/domain"
)

var meetingSubjectPrefixes = []string{
	"invitation:", "updated invitation:", "canceled event:", "cancelled event:",
	"accepted:", "declined:", "tentatively accepted:", "new event:",
}

var marketingMarkers = []string{
	"newsletter", "promo", "marketing", "offer", "deal", "sale", "digest", "campaign",
}

var automatedSenderMarkers = []string{
	"noreply", "no-reply", "donotreply", "do-not-reply", "notifications@", "notification@",
	"alerts@", "mailer-daemon", "postmaster@",
}

// ClassifyMessage picks the immediate label for an inbound message from its
// headers. The external classifier may refine it later.
func ClassifyMessage(msg *emaildomain.NormalizedMessage, mailboxEmail string) emaildomain.Label {
	subject := strings.ToLower(strings.TrimSpace(msg.Subject))
	for _, prefix := range meetingSubjectPrefixes {
		if strings.HasPrefix(subject, prefix) {
			return emaildomain.LabelMeetingUpdate
		}
	}

	listID := strings.ToLower(msg.Headers["List-Id"])
	unsubscribe := msg.Headers["List-Unsubscribe"]
	if unsubscribe != "" || listID != "" {
		haystack := listID + " " + strings.ToLower(msg.FromAddress) + " " + subject
		if unsubscribe != "" && listID == "" {
			return emaildomain.LabelMarketing
		}
		for _, marker := range marketingMarkers {
			if strings.Contains(haystack, marker) {
				return emaildomain.LabelMarketing
			}
		}
	}

	from := strings.ToLower(msg.FromAddress)
	for _, marker := range automatedSenderMarkers {
		if strings.Contains(from, marker) {
			return emaildomain.LabelNotification
		}
	}
	if auto := strings.ToLower(msg.Headers["Auto-Submitted"]); auto != "" && auto != "no" {
		return emaildomain.LabelNotification
	}
	switch strings.ToLower(strings.TrimSpace(msg.Headers["Precedence"])) {
	case "bulk", "list", "junk":
		return emaildomain.LabelNotification
	}

	me := strings.ToLower(strings.TrimSpace(mailboxEmail))
	if me != "" && !strings.Contains(msg.ToAddress, me) && strings.Contains(msg.CcAddress, me) {
		return emaildomain.LabelFYI
	}
	return emaildomain.LabelToRespond
}
