package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/garyjia/e-approval/internal/application/port"
	"github.com/garyjia/e-approval/internal/domain/apperror"
	"github.com/garyjia/e-approval/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDocument_Submitted(t *testing.T) {
	h := newHarness(t)

	res := h.submit(slot(1, empLead))
	assert.Equal(t, "LEAVE-202503-0001", res.DocumentNo)
	assert.Equal(t, entity.StatusPending, res.Status)

	doc := h.document(res.DocumentID)
	assert.Equal(t, 1, doc.CurrentLevel)
	assert.Equal(t, 1, doc.TotalLevel)
	assert.Equal(t, int64(10), doc.RequesterDeptID)
	assert.Equal(t, entity.PriorityNormal, doc.Priority)
	assert.JSONEq(t, `{"from":"2025-04-01","to":"2025-04-03"}`, string(doc.Content))
	require.NotNil(t, doc.SubmittedAt)

	history := h.history(res.DocumentID)
	require.Len(t, history, 1)
	assert.Equal(t, entity.ActionSubmit, history[0].ActionType)
	assert.Equal(t, entity.StatusDraft, history[0].PreviousStatus)
	assert.Equal(t, entity.StatusPending, history[0].NewStatus)
	assert.Equal(t, "req-test", history[0].RequestID)

	events := h.notifier.events()
	require.Len(t, events, 1)
	assert.Equal(t, port.EventApprovalRequested, events[0].Event)
	assert.Equal(t, []int64{empLead}, events[0].Recipients)
}

func TestCreateDocument_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		caller port.Caller
		input  CreateDocumentInput
		kind   apperror.Kind
	}{
		{"missing title", callerFor(empStaff), CreateDocumentInput{FormID: h.form.ID, Title: "  "}, apperror.KindValidation},
		{"unknown form", callerFor(empStaff), CreateDocumentInput{FormID: 999, Title: "x"}, apperror.KindValidation},
		{"content not json", callerFor(empStaff), CreateDocumentInput{FormID: h.form.ID, Title: "x", Content: []byte("from=monday")}, apperror.KindValidation},
		{"bad priority", callerFor(empStaff), CreateDocumentInput{FormID: h.form.ID, Title: "x", Priority: "ASAP"}, apperror.KindValidation},
		{"inactive requester", callerFor(empInactive), CreateDocumentInput{FormID: h.form.ID, Title: "x", Line: []LineSlot{slot(1, empLead)}}, apperror.KindValidation},
		{"draft with line", callerFor(empStaff), CreateDocumentInput{FormID: h.form.ID, Title: "x", SaveAsDraft: true, Line: []LineSlot{slot(1, empLead)}}, apperror.KindValidation},
		{"empty explicit line", callerFor(empStaff), CreateDocumentInput{FormID: h.form.ID, Title: "x", Line: []LineSlot{}}, apperror.KindEmptyApprovalLine},
		{"level gap", callerFor(empStaff), CreateDocumentInput{FormID: h.form.ID, Title: "x", Line: []LineSlot{slot(1, empLead), slot(3, empHead)}}, apperror.KindInvalidLineDefinition},
		{"inactive approver", callerFor(empStaff), CreateDocumentInput{FormID: h.form.ID, Title: "x", Line: []LineSlot{slot(1, empInactive)}}, apperror.KindInvalidLineDefinition},
		{"unknown approver", callerFor(empStaff), CreateDocumentInput{FormID: h.form.ID, Title: "x", Line: []LineSlot{slot(1, 404)}}, apperror.KindInvalidLineDefinition},
		{"reference only level", callerFor(empStaff), CreateDocumentInput{FormID: h.form.ID, Title: "x", Line: []LineSlot{
			{Level: 1, ApprovalType: entity.ApprovalTypeReference, ApproverEmployeeID: empLead, IsRequired: true},
		}}, apperror.KindInvalidLineDefinition},
		{"no setting", callerFor(empStaff), CreateDocumentInput{FormID: h.form.ID, Title: "x"}, apperror.KindNoApprovalLineConfigured},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.approvals.CreateDocument(ctx, tt.caller, tt.input)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperror.KindOf(err))
		})
	}

	assert.Zero(t, h.countDocuments())
	assert.Empty(t, h.notifier.events())
}

func TestCreateDocument_MaxLevels(t *testing.T) {
	h := newHarness(t)
	form := &entity.ApprovalForm{Code: "SHORT", Name: "Short", IsActive: true, MaxLevels: 1, CreatedAt: baseTime}
	require.NoError(t, h.repos.Forms.Create(context.Background(), form))

	_, err := h.approvals.CreateDocument(context.Background(), callerFor(empStaff), CreateDocumentInput{
		FormID: form.ID,
		Title:  "Too long",
		Line:   []LineSlot{slot(1, empLead), slot(2, empHead)},
	})
	assert.ErrorIs(t, err, apperror.ErrInvalidLineDefinition)
}

func TestCreateDocument_WithAttachments(t *testing.T) {
	h := newHarness(t)

	res, err := h.approvals.CreateDocument(context.Background(), callerFor(empStaff), CreateDocumentInput{
		FormID: h.form.ID,
		Title:  "Transfer",
		Line:   []LineSlot{slot(1, empLead)},
		Attachments: []AttachmentInput{
			{FileName: "letter.pdf", StorageKey: "docs/letter.pdf", FileSize: 1200, ContentType: "application/pdf"},
		},
	})
	require.NoError(t, err)

	detail, err := h.queries.GetDocument(context.Background(), res.DocumentID)
	require.NoError(t, err)
	require.Len(t, detail.Attachments, 1)
	assert.Equal(t, empStaff, detail.Attachments[0].UploadedBy)
}

func TestScenarioA_SingleLevel(t *testing.T) {
	h := newHarness(t)
	res := h.submit(slot(1, empLead))

	out, err := h.approvals.ProcessApproval(context.Background(), callerFor(empLead), res.DocumentID, "APPROVE", "ok")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApproved, out.NewStatus)

	doc := h.document(res.DocumentID)
	assert.Equal(t, entity.StatusApproved, doc.CurrentStatus)
	assert.Equal(t, 1, doc.CurrentLevel)
	assert.Equal(t, doc.TotalLevel, doc.CurrentLevel)
	require.NotNil(t, doc.ProcessedAt)

	lines := h.lines(res.DocumentID)
	require.Len(t, lines, 1)
	assert.Equal(t, entity.LineStatusApproved, lines[0].ApprovalStatus)
	require.NotNil(t, lines[0].ActualApproverEmployeeID)
	assert.Equal(t, empLead, *lines[0].ActualApproverEmployeeID)
	assert.Equal(t, "ok", lines[0].Comment)

	history := h.history(res.DocumentID)
	require.Len(t, history, 2)
	last := history[1]
	assert.Equal(t, entity.ActionApprove, last.ActionType)
	assert.Equal(t, entity.StatusPending, last.PreviousStatus)
	assert.Equal(t, entity.StatusApproved, last.NewStatus)
	require.NotNil(t, last.LineID)
	assert.Equal(t, lines[0].ID, *last.LineID)

	events := h.notifier.events()
	assert.Equal(t, port.EventDocumentApproved, events[len(events)-1].Event)
	assert.Equal(t, []int64{empStaff}, events[len(events)-1].Recipients)
}

func TestScenarioB_TwoSequentialLevels(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.submit(slot(1, empLead), slot(2, empHead))

	_, err := h.approvals.ProcessApproval(ctx, callerFor(empHead), res.DocumentID, "APPROVE", "")
	assert.ErrorIs(t, err, apperror.ErrNotYourTurn)

	out, err := h.approvals.ProcessApproval(ctx, callerFor(empLead), res.DocumentID, "APPROVE", "")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusInProgress, out.NewStatus)
	assert.Equal(t, 2, out.CurrentLevel)

	_, err = h.approvals.ProcessApproval(ctx, callerFor(empLead), res.DocumentID, "APPROVE", "")
	assert.ErrorIs(t, err, apperror.ErrAlreadyProcessed)

	out, err = h.approvals.ProcessApproval(ctx, callerFor(empHead), res.DocumentID, "APPROVE", "")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApproved, out.NewStatus)
	assert.Equal(t, 2, out.CurrentLevel)

	history := h.history(res.DocumentID)
	require.Len(t, history, 3)
	assert.Equal(t, entity.StatusPending, history[1].PreviousStatus)
	assert.Equal(t, entity.StatusInProgress, history[1].NewStatus)
	assert.Equal(t, entity.StatusInProgress, history[2].PreviousStatus)
	assert.Equal(t, entity.StatusApproved, history[2].NewStatus)

	_, err = h.approvals.ProcessApproval(ctx, callerFor(empHead), res.DocumentID, "APPROVE", "")
	assert.ErrorIs(t, err, apperror.ErrDocumentNotActionable)
	assert.Len(t, h.history(res.DocumentID), 3)
}

func TestScenarioC_ParallelLevel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.submit(slot(1, empLead), slot(1, empPeer))

	for _, l := range h.lines(res.DocumentID) {
		assert.True(t, l.IsParallel)
	}

	out, err := h.approvals.ProcessApproval(ctx, callerFor(empLead), res.DocumentID, "APPROVE", "")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusInProgress, out.NewStatus)
	assert.Equal(t, 1, out.CurrentLevel)

	out, err = h.approvals.ProcessApproval(ctx, callerFor(empPeer), res.DocumentID, "APPROVE", "")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApproved, out.NewStatus)

	history := h.history(res.DocumentID)
	require.Len(t, history, 3)
	assert.Equal(t, entity.StatusInProgress, history[2].PreviousStatus)
}

func TestScenarioC_ReferenceSlotDoesNotBlock(t *testing.T) {
	h := newHarness(t)
	res := h.submit(slot(1, empLead), LineSlot{Level: 1, ApprovalType: entity.ApprovalTypeReference, ApproverEmployeeID: empOther, IsRequired: true})

	lines := h.lines(res.DocumentID)
	for _, l := range lines {
		assert.False(t, l.IsParallel)
	}

	_, err := h.approvals.ProcessApproval(context.Background(), callerFor(empOther), res.DocumentID, "APPROVE", "")
	assert.ErrorIs(t, err, apperror.ErrNotYourTurn)

	out, err := h.approvals.ProcessApproval(context.Background(), callerFor(empLead), res.DocumentID, "APPROVE", "")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApproved, out.NewStatus)
}

func TestScenarioD_RejectTerminates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.submit(slot(1, empLead), slot(1, empPeer), slot(2, empHead), slot(3, empCEO))

	out, err := h.approvals.ProcessApproval(ctx, callerFor(empLead), res.DocumentID, "REJECT", "not now")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusRejected, out.NewStatus)
	assert.Equal(t, 1, out.CurrentLevel)

	_, err = h.approvals.ProcessApproval(ctx, callerFor(empPeer), res.DocumentID, "APPROVE", "")
	assert.ErrorIs(t, err, apperror.ErrDocumentNotActionable)

	doc := h.document(res.DocumentID)
	assert.Equal(t, 1, doc.CurrentLevel)
	require.NotNil(t, doc.ProcessedAt)

	actioned := 0
	for _, l := range h.lines(res.DocumentID) {
		if l.ActualApproverEmployeeID != nil {
			actioned++
		}
	}
	assert.Equal(t, 1, actioned)
	assert.Len(t, h.history(res.DocumentID), 2)

	events := h.notifier.events()
	assert.Equal(t, port.EventDocumentRejected, events[len(events)-1].Event)
}

func TestScenarioE_PersonalDelegation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	t1 := baseTime.Add(-24 * time.Hour)
	t2 := baseTime.Add(24 * time.Hour)
	_, err := h.delegations.Register(ctx, callerFor(empLead), RegisterDelegationInput{
		DelegateID: empDelegate,
		FormID:     &h.form.ID,
		StartDate:  t1,
		EndDate:    t2,
		Reason:     "vacation",
	})
	require.NoError(t, err)

	res := h.submit(slot(1, empLead))
	events := h.notifier.events()
	assert.Equal(t, []int64{empDelegate}, events[len(events)-1].Recipients)

	_, err = h.approvals.ProcessApproval(ctx, callerFor(empLead), res.DocumentID, "APPROVE", "")
	assert.ErrorIs(t, err, apperror.ErrNotYourTurn)

	out, err := h.approvals.ProcessApproval(ctx, callerFor(empDelegate), res.DocumentID, "APPROVE", "on behalf")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApproved, out.NewStatus)

	lines := h.lines(res.DocumentID)
	assert.Equal(t, empLead, lines[0].ApproverEmployeeID)
	require.NotNil(t, lines[0].ActualApproverEmployeeID)
	assert.Equal(t, empDelegate, *lines[0].ActualApproverEmployeeID)
}

func TestScenarioE_OutsideWindow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.delegations.Register(ctx, callerFor(empLead), RegisterDelegationInput{
		DelegateID: empDelegate,
		StartDate:  baseTime.Add(-48 * time.Hour),
		EndDate:    baseTime, // end is exclusive
	})
	require.NoError(t, err)

	res := h.submit(slot(1, empLead))

	_, err = h.approvals.ProcessApproval(ctx, callerFor(empDelegate), res.DocumentID, "APPROVE", "")
	assert.ErrorIs(t, err, apperror.ErrNotYourTurn)

	_, err = h.approvals.ProcessApproval(ctx, callerFor(empLead), res.DocumentID, "APPROVE", "")
	require.NoError(t, err)
}

func TestProcessApproval_Errors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.submit(slot(1, empLead))

	_, err := h.approvals.ProcessApproval(ctx, callerFor(empLead), res.DocumentID, "MAYBE", "")
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = h.approvals.ProcessApproval(ctx, callerFor(empLead), 9999, "APPROVE", "")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = h.approvals.ProcessApproval(ctx, callerFor(empOther), res.DocumentID, "APPROVE", "")
	assert.ErrorIs(t, err, apperror.ErrNotYourTurn)

	_, err = h.approvals.ProcessApproval(ctx, callerFor(empLead), res.DocumentID, "APPROVE", strings.Repeat("x", maxCommentLength+1))
	assert.ErrorIs(t, err, apperror.ErrValidation)

	assert.Len(t, h.history(res.DocumentID), 1)
	assert.Equal(t, entity.StatusPending, h.document(res.DocumentID).CurrentStatus)
}

func TestProcessApproval_NotifierFailureIgnored(t *testing.T) {
	h := newHarness(t)
	h.notifier.fail = true
	res := h.submit(slot(1, empLead))

	out, err := h.approvals.ProcessApproval(context.Background(), callerFor(empLead), res.DocumentID, "approve", "")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApproved, out.NewStatus)
}

func TestWithdraw(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.submit(slot(1, empLead), slot(2, empHead))

	_, err := h.approvals.Withdraw(ctx, callerFor(empLead), res.DocumentID, "")
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = h.approvals.ProcessApproval(ctx, callerFor(empLead), res.DocumentID, "APPROVE", "")
	require.NoError(t, err)

	out, err := h.approvals.Withdraw(ctx, callerFor(empStaff), res.DocumentID, "plans changed")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusWithdrawn, out.NewStatus)

	doc := h.document(res.DocumentID)
	require.NotNil(t, doc.WithdrawnAt)
	require.NotNil(t, doc.WithdrawnBy)
	assert.Equal(t, empStaff, *doc.WithdrawnBy)
	assert.Equal(t, "plans changed", doc.WithdrawReason)

	history := h.history(res.DocumentID)
	require.Len(t, history, 3)
	assert.Equal(t, entity.StatusInProgress, history[2].PreviousStatus)
	assert.Equal(t, entity.StatusWithdrawn, history[2].NewStatus)

	events := h.notifier.events()
	assert.Equal(t, port.EventDocumentWithdrawn, events[len(events)-1].Event)
	assert.Equal(t, []int64{empHead}, events[len(events)-1].Recipients)

	_, err = h.approvals.Withdraw(ctx, callerFor(empStaff), res.DocumentID, "")
	assert.ErrorIs(t, err, apperror.ErrDocumentNotActionable)
	assert.Len(t, h.history(res.DocumentID), 3)

	_, err = h.approvals.ProcessApproval(ctx, callerFor(empHead), res.DocumentID, "APPROVE", "")
	assert.ErrorIs(t, err, apperror.ErrDocumentNotActionable)
}

func TestWithdraw_ApprovedIsFinal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.submit(slot(1, empLead))

	_, err := h.approvals.ProcessApproval(ctx, callerFor(empLead), res.DocumentID, "APPROVE", "")
	require.NoError(t, err)

	_, err = h.approvals.Withdraw(ctx, callerFor(empStaff), res.DocumentID, "")
	assert.ErrorIs(t, err, apperror.ErrDocumentNotActionable)

	doc := h.document(res.DocumentID)
	assert.Equal(t, entity.StatusApproved, doc.CurrentStatus)
	assert.Nil(t, doc.WithdrawnAt)
	assert.Len(t, h.history(res.DocumentID), 2)
}

func TestDraftLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.approvals.CreateDocument(ctx, callerFor(empStaff), CreateDocumentInput{
		FormID:      h.form.ID,
		Title:       "Draft leave",
		SaveAsDraft: true,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusDraft, res.Status)
	assert.NotEmpty(t, res.DocumentNo)
	assert.Empty(t, h.lines(res.DocumentID))

	history := h.history(res.DocumentID)
	require.Len(t, history, 1)
	assert.Equal(t, entity.ActionDraft, history[0].ActionType)
	assert.Equal(t, entity.StatusDraft, history[0].NewStatus)

	_, err = h.approvals.ProcessApproval(ctx, callerFor(empLead), res.DocumentID, "APPROVE", "")
	assert.ErrorIs(t, err, apperror.ErrDocumentNotActionable)

	_, err = h.approvals.Submit(ctx, callerFor(empLead), res.DocumentID, []LineSlot{slot(1, empLead)})
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = h.approvals.Submit(ctx, callerFor(empStaff), res.DocumentID, []LineSlot{})
	assert.ErrorIs(t, err, apperror.ErrEmptyApprovalLine)
	assert.Len(t, h.history(res.DocumentID), 1)

	out, err := h.approvals.Submit(ctx, callerFor(empStaff), res.DocumentID, []LineSlot{slot(1, empLead)})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPending, out.NewStatus)
	assert.Equal(t, 1, out.CurrentLevel)

	history = h.history(res.DocumentID)
	require.Len(t, history, 2)
	assert.Equal(t, entity.ActionSubmit, history[1].ActionType)
	assert.Equal(t, entity.StatusDraft, history[1].PreviousStatus)
	assert.Equal(t, entity.StatusPending, history[1].NewStatus)

	_, err = h.approvals.Submit(ctx, callerFor(empStaff), res.DocumentID, []LineSlot{slot(1, empLead)})
	assert.ErrorIs(t, err, apperror.ErrDocumentNotActionable)
}

func TestDraft_Withdraw(t *testing.T) {
	h := newHarness(t)
	res, err := h.approvals.CreateDocument(context.Background(), callerFor(empStaff), CreateDocumentInput{
		FormID: h.form.ID, Title: "Draft", SaveAsDraft: true,
	})
	require.NoError(t, err)

	out, err := h.approvals.Withdraw(context.Background(), callerFor(empStaff), res.DocumentID, "")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusWithdrawn, out.NewStatus)
}

func TestDelegate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.submit(slot(1, empLead), slot(2, empHead))
	lines := h.lines(res.DocumentID)

	_, err := h.approvals.Delegate(ctx, callerFor(empOther), res.DocumentID, lines[0].ID, empDelegate, "")
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = h.approvals.Delegate(ctx, admin(empCEO), res.DocumentID, lines[0].ID, empInactive, "")
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = h.approvals.Delegate(ctx, admin(empCEO), res.DocumentID, 9999, empDelegate, "")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = h.approvals.Delegate(ctx, admin(empCEO), res.DocumentID, lines[0].ID, empStaff, "")
	assert.ErrorIs(t, err, apperror.ErrValidation)
	assert.Len(t, h.history(res.DocumentID), 1)

	out, err := h.approvals.Delegate(ctx, admin(empCEO), res.DocumentID, lines[0].ID, empDelegate, "lead on leave")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPending, out.NewStatus)

	lines = h.lines(res.DocumentID)
	assert.Equal(t, entity.LineStatusDelegated, lines[0].ApprovalStatus)
	require.NotNil(t, lines[0].DelegatedFrom)
	assert.Equal(t, empLead, *lines[0].DelegatedFrom)
	require.NotNil(t, lines[0].DelegatedTo)
	assert.Equal(t, empDelegate, *lines[0].DelegatedTo)
	assert.Equal(t, "lead on leave", lines[0].DelegateReason)

	history := h.history(res.DocumentID)
	require.Len(t, history, 2)
	assert.Equal(t, entity.ActionDelegate, history[1].ActionType)
	assert.Equal(t, entity.StatusPending, history[1].PreviousStatus)
	assert.Equal(t, entity.StatusPending, history[1].NewStatus)

	events := h.notifier.events()
	assert.Equal(t, port.EventSlotDelegated, events[len(events)-1].Event)
	assert.Equal(t, []int64{empDelegate}, events[len(events)-1].Recipients)

	_, err = h.approvals.Delegate(ctx, admin(empCEO), res.DocumentID, lines[0].ID, empOther, "")
	assert.ErrorIs(t, err, apperror.ErrAlreadyProcessed)

	_, err = h.approvals.ProcessApproval(ctx, callerFor(empLead), res.DocumentID, "APPROVE", "")
	assert.ErrorIs(t, err, apperror.ErrNotYourTurn)

	out, err = h.approvals.ProcessApproval(ctx, callerFor(empDelegate), res.DocumentID, "APPROVE", "")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusInProgress, out.NewStatus)
	assert.Equal(t, 2, out.CurrentLevel)

	// holder delegates their own future slot
	_, err = h.approvals.Delegate(ctx, callerFor(empHead), res.DocumentID, lines[1].ID, empCEO, "")
	require.NoError(t, err)
	out, err = h.approvals.ProcessApproval(ctx, callerFor(empCEO), res.DocumentID, "APPROVE", "")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApproved, out.NewStatus)
}

func TestDelegate_PassedLevelRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.submit(slot(1, empLead), slot(1, empPeer), slot(2, empHead))

	_, err := h.approvals.ProcessApproval(ctx, callerFor(empLead), res.DocumentID, "APPROVE", "")
	require.NoError(t, err)

	lines := h.lines(res.DocumentID)
	_, err = h.approvals.Delegate(ctx, admin(empCEO), res.DocumentID, lines[0].ID, empDelegate, "")
	assert.ErrorIs(t, err, apperror.ErrAlreadyProcessed)
}

func TestConcurrentCreationsGetDistinctNumbers(t *testing.T) {
	h := newHarness(t)
	const n = 8

	var wg sync.WaitGroup
	numbers := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := h.approvals.CreateDocument(context.Background(), callerFor(empStaff), CreateDocumentInput{
				FormID: h.form.ID,
				Title:  fmt.Sprintf("Leave %d", i),
				Line:   []LineSlot{slot(1, empLead)},
			})
			errs[i] = err
			if err == nil {
				numbers[i] = res.DocumentNo
			}
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.True(t, strings.HasPrefix(numbers[i], "LEAVE-202503-"), numbers[i])
		assert.False(t, seen[numbers[i]], "duplicate %s", numbers[i])
		seen[numbers[i]] = true
	}
	for i := 1; i <= n; i++ {
		assert.True(t, seen[fmt.Sprintf("LEAVE-202503-%04d", i)])
	}
}

func TestConcurrentParallelApprovals(t *testing.T) {
	h := newHarness(t)
	res := h.submit(slot(1, empLead), slot(1, empPeer))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, approver := range []int64{empLead, empPeer} {
		wg.Add(1)
		go func(i int, approver int64) {
			defer wg.Done()
			_, errs[i] = h.approvals.ProcessApproval(context.Background(), callerFor(approver), res.DocumentID, "APPROVE", "")
		}(i, approver)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, entity.StatusApproved, h.document(res.DocumentID).CurrentStatus)

	history := h.history(res.DocumentID)
	require.Len(t, history, 3)
	assert.Equal(t, history[1].NewStatus, history[2].PreviousStatus)
}

func TestConcurrentDuplicateApproval(t *testing.T) {
	h := newHarness(t)
	res := h.submit(slot(1, empLead), slot(2, empHead))

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.approvals.ProcessApproval(context.Background(), callerFor(empLead), res.DocumentID, "APPROVE", "")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, apperror.ErrAlreadyProcessed)
	}
	assert.Equal(t, 1, succeeded)
	assert.Len(t, h.history(res.DocumentID), 2)
	assert.Equal(t, 2, h.document(res.DocumentID).CurrentLevel)
}

func TestEveryHistoryRowMatchesStatusTransitions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.submit(slot(1, empLead), slot(1, empPeer), slot(2, empHead))

	steps := []struct {
		actor  int64
		action string
	}{
		{empLead, "APPROVE"},
		{empPeer, "APPROVE"},
		{empHead, "APPROVE"},
	}

	level := h.document(res.DocumentID).CurrentLevel
	for _, step := range steps {
		before := h.document(res.DocumentID)
		_, err := h.approvals.ProcessApproval(ctx, callerFor(step.actor), res.DocumentID, step.action, "")
		require.NoError(t, err)
		after := h.document(res.DocumentID)

		history := h.history(res.DocumentID)
		last := history[len(history)-1]
		assert.Equal(t, before.CurrentStatus, last.PreviousStatus)
		assert.Equal(t, after.CurrentStatus, last.NewStatus)
		assert.GreaterOrEqual(t, after.CurrentLevel, level)
		level = after.CurrentLevel
	}
	assert.Len(t, h.history(res.DocumentID), 4)
}
