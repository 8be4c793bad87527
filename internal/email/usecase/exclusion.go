package usecase

import "strings"

// IsExcluded reports whether automation must skip mail from fromAddress.
// Sender entries match as case-insensitive substrings of the address;
// domain entries match against the part after '@', ignoring a leading '@'.
func IsExcluded(fromAddress string, excludedSenders, excludedDomains []string) bool {
	addr := strings.ToLower(strings.TrimSpace(fromAddress))
	if addr == "" {
		return false
	}

	for _, sender := range excludedSenders {
		s := strings.ToLower(strings.TrimSpace(sender))
		if s != "" && strings.Contains(addr, s) {
			return true
		}
	}

	domain := addr
	if at := strings.LastIndex(addr, "@"); at >= 0 {
		domain = addr[at+1:]
	}
	for _, d := range excludedDomains {
		d = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), "@")
		if d != "" && strings.Contains(domain, d) {
			return true
		}
	}
	return false
}

func isFromSelf(fromAddress, mailboxEmail string) bool {
	return fromAddress != "" && strings.EqualFold(strings.TrimSpace(fromAddress), strings.TrimSpace(mailboxEmail))
}
