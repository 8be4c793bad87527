package usecase

import (
	"context"
	"fmt"

	emaildomain "mailpilot-backend/internal/email/domain"
)

// DiffResult is the ordered change list between two cursors
type DiffResult struct {
	Events     []emaildomain.ChangeEvent
	NextCursor string
}

type historyDiffer struct {
	provider emaildomain.MailProvider
}

// Diff lists history after stored and classifies it. The next cursor never
// moves backwards and is at least the announced cursor.
func (d *historyDiffer) Diff(ctx context.Context, mb emaildomain.Mailbox, stored, announced string) (*DiffResult, error) {
	page, err := d.provider.ListHistory(ctx, mb, stored)
	if err != nil {
		return nil, fmt.Errorf("history diff from %s: %w", stored, err)
	}
	return diffHistory(page, stored, announced), nil
}

func diffHistory(page *emaildomain.HistoryPage, stored, announced string) *DiffResult {
	result := &DiffResult{
		NextCursor: emaildomain.MaxCursor(stored, announced),
	}
	if page == nil {
		return result
	}
	if page.NextCursor != "" {
		result.NextCursor = emaildomain.MaxCursor(result.NextCursor, page.NextCursor)
	}

	seen := make(map[string]struct{}, len(page.Records))
	for _, rec := range page.Records {
		if rec.MessageID == "" {
			continue
		}
		if _, dup := seen[rec.MessageID]; dup {
			continue
		}
		seen[rec.MessageID] = struct{}{}
		result.Events = append(result.Events, emaildomain.ChangeEvent{
			MessageID:  rec.MessageID,
			ThreadID:   rec.ThreadID,
			ChangeKind: classifyRecord(rec),
		})
	}
	return result
}

func classifyRecord(rec emaildomain.HistoryRecord) emaildomain.ChangeKind {
	switch rec.Kind {
	case emaildomain.HistoryMessageAdded:
		switch {
		case hasLabelID(rec.LabelIDs, "DRAFT"):
			return emaildomain.ChangeOther
		case hasLabelID(rec.LabelIDs, "SENT"):
			return emaildomain.ChangeSent
		case hasLabelID(rec.LabelIDs, "INBOX"):
			return emaildomain.ChangeAddedToInbox
		default:
			return emaildomain.ChangeOther
		}
	case emaildomain.HistoryMessageDeleted:
		return emaildomain.ChangeRemoved
	default:
		return emaildomain.ChangeOther
	}
}

func hasLabelID(ids []string, want string) bool {
	for _, id := range ids {
		if id == want {
			return true
		}
	}
	return false
}
