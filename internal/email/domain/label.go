package domain

import (
	"fmt"
	"strings"
)

// Label is the closed vocabulary of automation labels. The zero value means
// the message carries no core label.
type Label int

const (
	LabelUnlabeled Label = iota
	LabelToRespond
	LabelFYI
	LabelComment
	LabelNotification
	LabelMeetingUpdate
	LabelAwaitingReply
	LabelActioned
	LabelMarketing
)

// AllLabels lists every core label in display order (unlabeled excluded).
var AllLabels = []Label{
	LabelToRespond,
	LabelFYI,
	LabelComment,
	LabelNotification,
	LabelMeetingUpdate,
	LabelAwaitingReply,
	LabelActioned,
	LabelMarketing,
}

// LabelInfo describes a label for API consumers
type LabelInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

// Info returns the descriptive metadata for l.
func (l Label) Info() LabelInfo {
	switch l {
	case LabelToRespond:
		return LabelInfo{Name: "to_respond", DisplayName: "To Respond", Description: "Needs a reply from you", Color: "#e66550"}
	case LabelFYI:
		return LabelInfo{Name: "fyi", DisplayName: "FYI", Description: "Worth knowing, no reply needed", Color: "#f2b233"}
	case LabelComment:
		return LabelInfo{Name: "comment", DisplayName: "Comment", Description: "Comments on documents or threads you follow", Color: "#ffad47"}
	case LabelNotification:
		return LabelInfo{Name: "notification", DisplayName: "Notification", Description: "Automated updates from tools and services", Color: "#4a86e8"}
	case LabelMeetingUpdate:
		return LabelInfo{Name: "meeting_update", DisplayName: "Meeting Update", Description: "Calendar invitations and changes", Color: "#a479e2"}
	case LabelAwaitingReply:
		return LabelInfo{Name: "awaiting_reply", DisplayName: "Awaiting Reply", Description: "You replied and are waiting to hear back", Color: "#16a766"}
	case LabelActioned:
		return LabelInfo{Name: "actioned", DisplayName: "Actioned", Description: "Handled, nothing left to do", Color: "#43d692"}
	case LabelMarketing:
		return LabelInfo{Name: "marketing", DisplayName: "Marketing", Description: "Newsletters and promotions", Color: "#999999"}
	case LabelUnlabeled:
		return LabelInfo{Name: "unlabeled", DisplayName: "Unlabeled"}
	default:
		panic(fmt.Sprintf("domain: unknown label %d", int(l)))
	}
}

func (l Label) String() string {
	return l.Info().Name
}

// IsCore reports whether l is part of the mutually exclusive vocabulary.
func (l Label) IsCore() bool {
	return l > LabelUnlabeled && l <= LabelMarketing
}

// ProviderName is the mailbox-side label name, e.g. "Mailpilot/To Respond".
func (l Label) ProviderName(prefix string) string {
	if prefix == "" {
		return l.Info().DisplayName
	}
	return prefix + "/" + l.Info().DisplayName
}

// ParseLabel validates a label name against the vocabulary.
func ParseLabel(name string) (Label, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for _, l := range AllLabels {
		if l.Info().Name == normalized {
			return l, nil
		}
	}
	return LabelUnlabeled, fmt.Errorf("%w: %q", ErrUnknownLabel, name)
}

// LabelFromProviderName maps a mailbox-side label name back to a core label.
func LabelFromProviderName(prefix, providerName string) (Label, bool) {
	for _, l := range AllLabels {
		if strings.EqualFold(l.ProviderName(prefix), providerName) {
			return l, true
		}
	}
	return LabelUnlabeled, false
}

// LabelTransition is a single logical label write: remove Remove (if any), add Add (if any).
type LabelTransition struct {
	Remove Label
	Add    Label
}

// Transition computes the write needed to move a message from current to next.
// changed is false when next is already attached.
func Transition(current, next Label) (LabelTransition, bool) {
	if current == next {
		return LabelTransition{}, false
	}
	return LabelTransition{Remove: current, Add: next}, true
}

// RemoveTransition computes the write for removing label from a message
// currently holding current. Removing a label that is not attached is a no-op.
func RemoveTransition(current, label Label) (LabelTransition, bool) {
	if current != label || current == LabelUnlabeled {
		return LabelTransition{}, false
	}
	return LabelTransition{Remove: current, Add: LabelUnlabeled}, true
}
