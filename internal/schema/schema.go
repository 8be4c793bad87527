// Package schema lists the persisted models for migrations.
package schema

import (
	authdomain "mailpilot-backend/internal/auth/domain"
	emaildomain "mailpilot-backend/internal/email/domain"
)

// Models lists every persisted model
func Models() []interface{} {
	return []interface{}{
		&authdomain.User{},
		&authdomain.FCMToken{},
		&emaildomain.WatchSubscription{},
		&emaildomain.MessageLabel{},
		&emaildomain.ThreadReplyStatus{},
		&emaildomain.DraftAutomationSettings{},
		&emaildomain.DispatchRecord{},
	}
}
