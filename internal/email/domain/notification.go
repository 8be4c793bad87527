package domain

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// MailboxNotification is the payload Gmail publishes to Pub/Sub: which
// mailbox changed and its newest history id.
type MailboxNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    string `json:"historyId"`
}

// ParseMailboxNotification decodes the JSON payload. historyId may be a JSON
// number or a string.
func ParseMailboxNotification(data []byte) (*MailboxNotification, error) {
	var raw struct {
		EmailAddress string          `json:"emailAddress"`
		HistoryID    json.RawMessage `json:"historyId"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	email := strings.ToLower(strings.TrimSpace(raw.EmailAddress))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: missing emailAddress", ErrMalformedEnvelope)
	}

	historyID := string(bytes.Trim(bytes.TrimSpace(raw.HistoryID), `"`))
	if _, err := strconv.ParseUint(historyID, 10, 64); err != nil {
		return nil, fmt.Errorf("%w: invalid historyId %q", ErrMalformedEnvelope, historyID)
	}

	return &MailboxNotification{EmailAddress: email, HistoryID: historyID}, nil
}

// DecodePushData decodes the base64 data field of a Pub/Sub push envelope.
func DecodePushData(data string) (*MailboxNotification, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return nil, fmt.Errorf("%w: empty data", ErrMalformedEnvelope)
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if decoded, err := enc.DecodeString(data); err == nil {
			return ParseMailboxNotification(decoded)
		}
	}
	return nil, fmt.Errorf("%w: data is not base64", ErrMalformedEnvelope)
}
