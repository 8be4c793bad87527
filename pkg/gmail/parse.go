package gmail

import (
	"encoding/base64"
	"mime"
	"regexp"
	"strings"
	"time"

	emaildomain "mailpilot-backend/internal/email/domain"

	"github.com/emersion/go-message/charset"
	"google.golang.org/api/gmail/v1"
)

// Headers the classifier looks at
var keptHeaders = []string{"List-Id", "List-Unsubscribe", "Precedence", "Auto-Submitted"}

var fromPattern = regexp.MustCompile(`^\s*"?([^"<]*?)"?\s*<([^<>]+)>\s*$`)

var wordDecoder = &mime.WordDecoder{CharsetReader: charset.Reader}

func normalizeMessage(msg *gmail.Message, labelNames map[string]string) *emaildomain.NormalizedMessage {
	out := &emaildomain.NormalizedMessage{
		MessageID: msg.Id,
		ThreadID:  msg.ThreadId,
		Snippet:   msg.Snippet,
		Headers:   map[string]string{},
	}
	if msg.InternalDate > 0 {
		out.ReceivedAt = time.UnixMilli(msg.InternalDate).UTC()
	}

	for _, id := range msg.LabelIds {
		if name, ok := labelNames[id]; ok {
			out.ExistingLabels = append(out.ExistingLabels, name)
		} else {
			out.ExistingLabels = append(out.ExistingLabels, id)
		}
	}

	if msg.Payload == nil {
		return out
	}
	headers := msg.Payload.Headers

	out.FromAddress, out.FromDisplayName = parseFrom(getHeader(headers, "From"))
	out.ToAddress = normalizeAddressList(getHeader(headers, "To"))
	out.CcAddress = normalizeAddressList(getHeader(headers, "Cc"))
	out.Subject = decodeHeader(getHeader(headers, "Subject"))
	out.BodyText = getPlainBody(msg.Payload)

	for _, name := range keptHeaders {
		if v := getHeader(headers, name); v != "" {
			out.Headers[name] = v
		}
	}
	return out
}

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, header := range headers {
		if strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}
	return ""
}

// parseFrom splits a From header into address and display name. Headers that
// do not match `Name <addr>` are taken whole as the address.
func parseFrom(raw string) (address, displayName string) {
	decoded := decodeHeader(raw)
	if m := fromPattern.FindStringSubmatch(decoded); m != nil {
		return normalizeAddress(m[2]), strings.TrimSpace(m[1])
	}
	return normalizeAddress(decoded), ""
}

func decodeHeader(value string) string {
	decoded, err := wordDecoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

func normalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

func normalizeAddressList(raw string) string {
	return strings.ToLower(strings.TrimSpace(decodeHeader(raw)))
}

// getPlainBody returns the first text/plain part, depth first, falling back
// to the top-level body.
func getPlainBody(payload *gmail.MessagePart) string {
	if body, ok := findPlainPart(payload.Parts); ok {
		return body
	}
	if payload.Body != nil && payload.Body.Data != "" {
		if data, ok := decodeBody(payload.Body.Data); ok {
			return data
		}
	}
	return ""
}

func findPlainPart(parts []*gmail.MessagePart) (string, bool) {
	for _, part := range parts {
		if strings.HasPrefix(strings.ToLower(part.MimeType), "text/plain") &&
			part.Body != nil && part.Body.Data != "" {
			if data, ok := decodeBody(part.Body.Data); ok {
				return data, true
			}
		}
		if len(part.Parts) > 0 {
			if body, ok := findPlainPart(part.Parts); ok {
				return body, true
			}
		}
	}
	return "", false
}

func decodeBody(data string) (string, bool) {
	if decoded, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(decoded), true
	}
	if decoded, err := base64.RawURLEncoding.DecodeString(data); err == nil {
		return string(decoded), true
	}
	return "", false
}
