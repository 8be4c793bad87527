package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"

	emaildomain "mailpilot-backend/internal/email/domain"

	"github.com/nalgeon/be"
)

func TestApplyLabelIsExclusive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.provider.addMessage(inbound("m1", "t1", "alice@partner.com", "Hi"))

	changed, err := h.uc.ApplyLabel(ctx, userID, "m1", "t1", emaildomain.LabelToRespond)
	be.Err(t, err, nil)
	be.True(t, changed)

	changed, err = h.uc.ApplyLabel(ctx, userID, "m1", "t1", emaildomain.LabelActioned)
	be.Err(t, err, nil)
	be.True(t, changed)

	be.Equal(t, h.provider.coreLabels("m1"), []string{"Mailpilot/Actioned"})
	label, err := h.uc.GetLabel(userID, "m1")
	be.Err(t, err, nil)
	be.Equal(t, label, emaildomain.LabelActioned)
}

func TestApplyLabelSameLabelIsNoop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.uc.ApplyLabel(ctx, userID, "m1", "t1", emaildomain.LabelFYI)
	be.Err(t, err, nil)
	calls := h.provider.modifyCalls

	changed, err := h.uc.ApplyLabel(ctx, userID, "m1", "t1", emaildomain.LabelFYI)
	be.Err(t, err, nil)
	be.True(t, !changed)
	be.Equal(t, h.provider.modifyCalls, calls)
}

func TestApplyLabelStripsStaleProviderLabels(t *testing.T) {
	h := newHarness(t)
	msg := inbound("m1", "t1", "alice@partner.com", "Hi")
	msg.ExistingLabels = append(msg.ExistingLabels, "Mailpilot/Marketing")
	h.provider.addMessage(msg)

	_, err := h.uc.ApplyLabel(context.Background(), userID, "m1", "t1", emaildomain.LabelComment)
	be.Err(t, err, nil)
	be.Equal(t, h.provider.coreLabels("m1"), []string{"Mailpilot/Comment"})
}

func TestApplyLabelRejectsUnlabeled(t *testing.T) {
	h := newHarness(t)
	_, err := h.uc.ApplyLabel(context.Background(), userID, "m1", "t1", emaildomain.LabelUnlabeled)
	be.Err(t, err, emaildomain.ErrUnknownLabel)
	be.Equal(t, h.provider.modifyCalls, 0)
}

func TestApplyLabelRequiresUser(t *testing.T) {
	h := newHarness(t)
	_, err := h.uc.ApplyLabel(context.Background(), "", "m1", "t1", emaildomain.LabelFYI)
	be.Err(t, err, emaildomain.ErrValidation)
}

func TestApplyLabelProviderFailureKeepsRecord(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.uc.ApplyLabel(ctx, userID, "m1", "t1", emaildomain.LabelFYI)
	be.Err(t, err, nil)

	h.provider.modifyErr = &emaildomain.ProviderError{Op: "messages.modify", StatusCode: 500, Retryable: true, Err: fmt.Errorf("boom")}
	_, err = h.uc.ApplyLabel(ctx, userID, "m1", "t1", emaildomain.LabelToRespond)
	be.True(t, err != nil)

	label, err := h.uc.GetLabel(userID, "m1")
	be.Err(t, err, nil)
	be.Equal(t, label, emaildomain.LabelFYI)
}

func TestRemoveLabel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.uc.ApplyLabel(ctx, userID, "m1", "t1", emaildomain.LabelNotification)
	be.Err(t, err, nil)

	changed, err := h.uc.RemoveLabel(ctx, userID, "m1", emaildomain.LabelFYI)
	be.Err(t, err, nil)
	be.True(t, !changed)

	changed, err = h.uc.RemoveLabel(ctx, userID, "m1", emaildomain.LabelNotification)
	be.Err(t, err, nil)
	be.True(t, changed)
	be.Equal(t, len(h.provider.coreLabels("m1")), 0)

	label, err := h.uc.GetLabel(userID, "m1")
	be.Err(t, err, nil)
	be.Equal(t, label, emaildomain.LabelUnlabeled)
}

func TestConcurrentApplyLeavesOneLabel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, l := range emaildomain.AllLabels {
		wg.Add(1)
		go func(l emaildomain.Label) {
			defer wg.Done()
			if _, err := h.uc.ApplyLabel(ctx, userID, "m1", "t1", l); err != nil {
				t.Error(err)
			}
		}(l)
	}
	wg.Wait()

	core := h.provider.coreLabels("m1")
	be.Equal(t, len(core), 1)
	label, err := h.uc.GetLabel(userID, "m1")
	be.Err(t, err, nil)
	be.Equal(t, label.ProviderName(testPrefix), core[0])
}
