package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/garyjia/e-approval/internal/application/port"
	"github.com/garyjia/e-approval/internal/domain/apperror"
	"github.com/garyjia/e-approval/internal/domain/entity"
	"github.com/garyjia/e-approval/internal/domain/workflow"
	"github.com/garyjia/e-approval/pkg/utils"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	maxTitleLength   = 200
	maxCommentLength = 1000
)

// AttachmentInput is attachment metadata supplied at creation
type AttachmentInput struct {
	FileName    string `json:"file_name"`
	StorageKey  string `json:"storage_key"`
	FileSize    int64  `json:"file_size"`
	ContentType string `json:"content_type,omitempty"`
}

// CreateDocumentInput describes a new document. A nil Line resolves the line
// automatically; SaveAsDraft stores the document without a line.
type CreateDocumentInput struct {
	FormID            int64
	Title             string
	Content           json.RawMessage
	Priority          string
	Urgent            bool
	DueDate           *time.Time
	Amount            *int64
	RelatedSystemType string
	RelatedSystemID   string
	Line              []LineSlot
	Attachments       []AttachmentInput
	SaveAsDraft       bool
}

// CreateDocumentResult identifies a created document
type CreateDocumentResult struct {
	DocumentID int64  `json:"document_id"`
	DocumentNo string `json:"document_no"`
	Status     string `json:"status"`
}

// ActionResult is the document state after an applied action
type ActionResult struct {
	DocumentID   int64  `json:"document_id"`
	NewStatus    string `json:"new_status"`
	CurrentLevel int    `json:"current_level"`
}

// ApprovalService applies lifecycle actions to approval documents.
// Each mutation runs as one transaction under a per-document lock and
// appends exactly one history row; failed calls append nothing.
type ApprovalService interface {
	CreateDocument(ctx context.Context, caller port.Caller, input CreateDocumentInput) (*CreateDocumentResult, error)
	Submit(ctx context.Context, caller port.Caller, documentID int64, explicit []LineSlot) (*ActionResult, error)
	ProcessApproval(ctx context.Context, caller port.Caller, documentID int64, action, comment string) (*ActionResult, error)
	Withdraw(ctx context.Context, caller port.Caller, documentID int64, reason string) (*ActionResult, error)
	Delegate(ctx context.Context, caller port.Caller, documentID, lineID, toEmployeeID int64, reason string) (*ActionResult, error)
}

type approvalServiceImpl struct {
	repos      Repositories
	lines      LineResolver
	delegation DelegationResolver
	numbering  NumberingService
	notifier   port.Notifier
	locks      *documentLocks
	opts       Options
	logger     *zap.Logger
}

// NewApprovalService creates a new ApprovalService
func NewApprovalService(
	repos Repositories,
	lines LineResolver,
	delegation DelegationResolver,
	numbering NumberingService,
	notifier port.Notifier,
	opts Options,
	logger *zap.Logger,
) ApprovalService {
	return &approvalServiceImpl{
		repos:      repos,
		lines:      lines,
		delegation: delegation,
		numbering:  numbering,
		notifier:   notifier,
		locks:      newDocumentLocks(),
		opts:       opts.withDefaults(),
		logger:     logger,
	}
}

// CreateDocument validates input, resolves the line unless saving a draft,
// and persists header, number, line, attachments and history atomically.
func (s *approvalServiceImpl) CreateDocument(ctx context.Context, caller port.Caller, input CreateDocumentInput) (*CreateDocumentResult, error) {
	fields := []zap.Field{zap.Int64("actor_id", caller.EmployeeID), zap.Int64("form_id", input.FormID)}

	if err := validateCreateInput(&input); err != nil {
		return nil, classify(s.logger, "create_document", err, fields...)
	}

	form, err := s.repos.Forms.GetByID(ctx, input.FormID)
	if err != nil {
		return nil, classify(s.logger, "create_document", err, fields...)
	}
	if form == nil {
		return nil, classify(s.logger, "create_document", apperror.Validation("form %d does not exist", input.FormID), fields...)
	}
	if !form.IsActive {
		return nil, classify(s.logger, "create_document", apperror.Validation("form %s is not active", form.Code), fields...)
	}

	requester, err := s.activeRequester(ctx, caller.EmployeeID)
	if err != nil {
		return nil, classify(s.logger, "create_document", err, fields...)
	}

	var line *ResolvedLine
	if !input.SaveAsDraft {
		line, err = s.lines.Resolve(ctx, form, requesterContext(requester, input.Amount), input.Line)
		if err != nil {
			return nil, classify(s.logger, "create_document", err, fields...)
		}
	}

	now := s.opts.Now()
	doc := &entity.ApprovalDocument{
		FormID:            form.ID,
		Title:             input.Title,
		Content:           input.Content,
		RequesterID:       requester.ID,
		RequesterDeptID:   requester.DepartmentID,
		CurrentStatus:     entity.StatusDraft,
		Priority:          input.Priority,
		Urgent:            input.Urgent,
		DueDate:           input.DueDate,
		Amount:            input.Amount,
		RelatedSystemType: input.RelatedSystemType,
		RelatedSystemID:   input.RelatedSystemID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	history := &entity.ApprovalHistory{
		ActionType:     entity.ActionDraft,
		ActionBy:       caller.EmployeeID,
		PreviousStatus: "",
		NewStatus:      entity.StatusDraft,
		CreatedAt:      now,
	}
	stampProvenance(history, caller)

	if line != nil {
		next, err := workflow.Next(ctx, entity.StatusDraft, workflow.TriggerSubmit)
		if err != nil {
			return nil, classify(s.logger, "create_document", err, fields...)
		}
		doc.CurrentStatus = next
		doc.CurrentLevel = 1
		doc.TotalLevel = line.TotalLevel
		doc.SubmittedAt = &now

		history.ActionType = entity.ActionSubmit
		history.PreviousStatus = entity.StatusDraft
		history.NewStatus = next
	}

	err = s.repos.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		no, err := s.numbering.Allocate(txCtx, form.Code, now)
		if err != nil {
			return err
		}
		doc.DocumentNo = no

		if err := s.repos.Documents.Create(txCtx, doc); err != nil {
			return fmt.Errorf("create document: %w", err)
		}

		if line != nil {
			if err := s.attachLine(txCtx, doc, line, now); err != nil {
				return err
			}
		}

		for _, in := range input.Attachments {
			att := &entity.Attachment{
				DocumentID:  doc.ID,
				FileName:    in.FileName,
				StorageKey:  in.StorageKey,
				FileSize:    in.FileSize,
				ContentType: in.ContentType,
				UploadedBy:  caller.EmployeeID,
				CreatedAt:   now,
			}
			if err := s.repos.Attachments.Create(txCtx, att); err != nil {
				return fmt.Errorf("create attachment: %w", err)
			}
		}

		history.DocumentID = doc.ID
		if err := s.repos.History.Create(txCtx, history); err != nil {
			return fmt.Errorf("create history: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, classify(s.logger, "create_document", err, fields...)
	}

	s.logMutation("Document created", doc, caller.EmployeeID, history.ActionType)
	if line != nil {
		s.notifyCurrentApprovers(ctx, doc, caller.EmployeeID)
	}

	return &CreateDocumentResult{
		DocumentID: doc.ID,
		DocumentNo: doc.DocumentNo,
		Status:     doc.CurrentStatus,
	}, nil
}

// Submit moves the requester's draft to PENDING, resolving its line now
func (s *approvalServiceImpl) Submit(ctx context.Context, caller port.Caller, documentID int64, explicit []LineSlot) (*ActionResult, error) {
	fields := actionFields(documentID, caller, entity.ActionSubmit)

	unlock := s.locks.Lock(documentID)
	var doc *entity.ApprovalDocument
	err := s.repos.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		doc, err = s.loadDocument(txCtx, documentID)
		if err != nil {
			return err
		}
		if doc.RequesterID != caller.EmployeeID {
			return apperror.New(apperror.KindForbidden, "only the requester can submit document %s", doc.DocumentNo)
		}
		if doc.CurrentStatus != entity.StatusDraft {
			return apperror.New(apperror.KindDocumentNotActionable, "document %s is %s, only drafts can be submitted", doc.DocumentNo, doc.CurrentStatus)
		}

		form, err := s.repos.Forms.GetByID(txCtx, doc.FormID)
		if err != nil {
			return err
		}
		if form == nil || !form.IsActive {
			return apperror.Validation("form %d is not available", doc.FormID)
		}

		requester, err := s.repos.Directory.GetEmployee(txCtx, doc.RequesterID)
		if err != nil {
			return err
		}
		reqCtx := RequesterContext{EmployeeID: doc.RequesterID, DepartmentID: doc.RequesterDeptID, Amount: doc.Amount}
		if requester != nil {
			reqCtx.CompanyID = requester.CompanyID
		}

		line, err := s.lines.Resolve(txCtx, form, reqCtx, explicit)
		if err != nil {
			return err
		}

		next, err := workflow.Next(txCtx, doc.CurrentStatus, workflow.TriggerSubmit)
		if err != nil {
			return err
		}

		now := s.opts.Now()
		previous := doc.CurrentStatus
		doc.CurrentStatus = next
		doc.CurrentLevel = 1
		doc.TotalLevel = line.TotalLevel
		doc.SubmittedAt = &now
		doc.UpdatedAt = now

		if err := s.repos.Documents.Update(txCtx, doc); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		if err := s.attachLine(txCtx, doc, line, now); err != nil {
			return err
		}
		return s.appendHistory(txCtx, doc, nil, caller, entity.ActionSubmit, previous, next, "", now)
	})
	unlock()
	if err != nil {
		return nil, classify(s.logger, "submit", err, fields...)
	}

	s.logMutation("Document submitted", doc, caller.EmployeeID, entity.ActionSubmit)
	s.notifyCurrentApprovers(ctx, doc, caller.EmployeeID)
	return resultOf(doc), nil
}

// ProcessApproval applies APPROVE or REJECT from the effective approver of a
// required slot at the document's current level.
func (s *approvalServiceImpl) ProcessApproval(ctx context.Context, caller port.Caller, documentID int64, action, comment string) (*ActionResult, error) {
	action = strings.ToUpper(strings.TrimSpace(action))
	fields := actionFields(documentID, caller, action)

	var trigger workflow.Trigger
	var slotStatus string
	switch action {
	case entity.ActionApprove:
		trigger, slotStatus = workflow.TriggerApprove, entity.LineStatusApproved
	case entity.ActionReject:
		trigger, slotStatus = workflow.TriggerReject, entity.LineStatusRejected
	default:
		return nil, classify(s.logger, "process_approval", apperror.Validation("action must be APPROVE or REJECT, got %q", action), fields...)
	}
	if err := validateComment(comment); err != nil {
		return nil, classify(s.logger, "process_approval", err, fields...)
	}

	unlock := s.locks.Lock(documentID)
	var doc *entity.ApprovalDocument
	var advanced bool
	err := s.repos.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		doc, err = s.loadDocument(txCtx, documentID)
		if err != nil {
			return err
		}
		if !doc.IsInFlight() {
			return apperror.New(apperror.KindDocumentNotActionable, "document %s is %s", doc.DocumentNo, doc.CurrentStatus)
		}

		lines, err := s.repos.Lines.GetByDocumentID(txCtx, doc.ID)
		if err != nil {
			return fmt.Errorf("load approval line: %w", err)
		}

		now := s.opts.Now()
		slot, err := s.eligibleSlot(txCtx, doc, lines, caller.EmployeeID, now)
		if err != nil {
			return err
		}

		slot.ApprovalStatus = slotStatus
		slot.ActualApproverEmployeeID = &caller.EmployeeID
		slot.Comment = comment
		slot.ProcessedAt = &now

		level := levelSlots(lines, doc.CurrentLevel)
		satisfied := trigger == workflow.TriggerApprove && lo.EveryBy(level, func(l *entity.ApprovalLine) bool {
			return !l.Blocks() || l.ApprovalStatus == entity.LineStatusApproved
		})
		complete := satisfied && doc.CurrentLevel >= doc.TotalLevel

		next, err := workflow.Next(workflow.WithLineComplete(txCtx, complete), doc.CurrentStatus, trigger)
		if err != nil {
			return err
		}

		previous := doc.CurrentStatus
		doc.CurrentStatus = next
		doc.UpdatedAt = now
		if satisfied && !complete {
			doc.CurrentLevel++
			advanced = true
		}
		if entity.IsTerminalStatus(next) {
			doc.ProcessedAt = &now
		}

		if err := s.repos.Lines.Update(txCtx, slot); err != nil {
			return fmt.Errorf("update approval line: %w", err)
		}
		if err := s.repos.Documents.Update(txCtx, doc); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		return s.appendHistory(txCtx, doc, &slot.ID, caller, action, previous, next, comment, now)
	})
	unlock()
	if err != nil {
		return nil, classify(s.logger, "process_approval", err, fields...)
	}

	s.logMutation("Approval processed", doc, caller.EmployeeID, action)
	switch {
	case doc.CurrentStatus == entity.StatusApproved:
		s.notify(ctx, port.Notification{Event: port.EventDocumentApproved, Document: doc, Recipients: []int64{doc.RequesterID}, ActorID: caller.EmployeeID, Comment: comment})
	case doc.CurrentStatus == entity.StatusRejected:
		s.notify(ctx, port.Notification{Event: port.EventDocumentRejected, Document: doc, Recipients: []int64{doc.RequesterID}, ActorID: caller.EmployeeID, Comment: comment})
	case advanced:
		s.notifyCurrentApprovers(ctx, doc, caller.EmployeeID)
	}
	return resultOf(doc), nil
}

// Withdraw lets the requester cancel a document that has not reached a final status
func (s *approvalServiceImpl) Withdraw(ctx context.Context, caller port.Caller, documentID int64, reason string) (*ActionResult, error) {
	fields := actionFields(documentID, caller, entity.ActionWithdraw)
	if err := validateComment(reason); err != nil {
		return nil, classify(s.logger, "withdraw", err, fields...)
	}

	unlock := s.locks.Lock(documentID)
	var doc *entity.ApprovalDocument
	var waiting []int64
	err := s.repos.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		doc, err = s.loadDocument(txCtx, documentID)
		if err != nil {
			return err
		}
		if doc.RequesterID != caller.EmployeeID {
			return apperror.New(apperror.KindForbidden, "only the requester can withdraw document %s", doc.DocumentNo)
		}
		if doc.IsTerminal() {
			return apperror.New(apperror.KindDocumentNotActionable, "document %s is already %s", doc.DocumentNo, doc.CurrentStatus)
		}

		next, err := workflow.Next(txCtx, doc.CurrentStatus, workflow.TriggerWithdraw)
		if err != nil {
			return err
		}

		now := s.opts.Now()
		if doc.IsInFlight() {
			waiting, err = s.currentApprovers(txCtx, doc, now)
			if err != nil {
				return err
			}
		}

		previous := doc.CurrentStatus
		doc.CurrentStatus = next
		doc.WithdrawnAt = &now
		doc.WithdrawnBy = &caller.EmployeeID
		doc.WithdrawReason = reason
		doc.UpdatedAt = now

		if err := s.repos.Documents.Update(txCtx, doc); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		return s.appendHistory(txCtx, doc, nil, caller, entity.ActionWithdraw, previous, next, reason, now)
	})
	unlock()
	if err != nil {
		return nil, classify(s.logger, "withdraw", err, fields...)
	}

	s.logMutation("Document withdrawn", doc, caller.EmployeeID, entity.ActionWithdraw)
	if len(waiting) > 0 {
		s.notify(ctx, port.Notification{Event: port.EventDocumentWithdrawn, Document: doc, Recipients: waiting, ActorID: caller.EmployeeID, Comment: reason})
	}
	return resultOf(doc), nil
}

// Delegate reassigns a PENDING slot to another employee without the holder acting.
// Admins may delegate any slot; otherwise only the slot's current holder may.
func (s *approvalServiceImpl) Delegate(ctx context.Context, caller port.Caller, documentID, lineID, toEmployeeID int64, reason string) (*ActionResult, error) {
	fields := append(actionFields(documentID, caller, entity.ActionDelegate), zap.Int64("line_id", lineID), zap.Int64("to_employee_id", toEmployeeID))
	if toEmployeeID <= 0 {
		return nil, classify(s.logger, "delegate", apperror.Validation("to_employee_id is required"), fields...)
	}
	if err := validateComment(reason); err != nil {
		return nil, classify(s.logger, "delegate", err, fields...)
	}

	unlock := s.locks.Lock(documentID)
	var doc *entity.ApprovalDocument
	err := s.repos.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		doc, err = s.loadDocument(txCtx, documentID)
		if err != nil {
			return err
		}
		if !doc.IsInFlight() {
			return apperror.New(apperror.KindDocumentNotActionable, "document %s is %s", doc.DocumentNo, doc.CurrentStatus)
		}

		slot, err := s.repos.Lines.GetByID(txCtx, lineID)
		if err != nil {
			return fmt.Errorf("load approval line: %w", err)
		}
		if slot == nil || slot.DocumentID != doc.ID {
			return apperror.NotFound("approval line", lineID)
		}
		if !slot.Blocks() {
			return apperror.Validation("slot %d does not take approval actions", slot.ID)
		}
		if slot.ApprovalStatus != entity.LineStatusPending {
			return apperror.New(apperror.KindAlreadyProcessed, "slot %d is %s", slot.ID, slot.ApprovalStatus)
		}
		if slot.ApprovalLevel < doc.CurrentLevel {
			return apperror.New(apperror.KindAlreadyProcessed, "level %d of document %s is already passed", slot.ApprovalLevel, doc.DocumentNo)
		}

		now := s.opts.Now()
		holder, err := s.delegation.EffectiveApprover(txCtx, slot.ApproverEmployeeID, doc.FormID, now)
		if err != nil {
			return err
		}
		if !caller.IsAdmin() && caller.EmployeeID != holder {
			return apperror.New(apperror.KindForbidden, "only an administrator or the slot holder can delegate slot %d", slot.ID)
		}
		if toEmployeeID == holder {
			return apperror.Validation("slot %d is already held by employee %d", slot.ID, holder)
		}
		if toEmployeeID == doc.RequesterID {
			return apperror.Validation("the requester cannot approve document %s", doc.DocumentNo)
		}

		target, err := s.repos.Directory.GetEmployee(txCtx, toEmployeeID)
		if err != nil {
			return err
		}
		if target == nil || !target.IsActive {
			return apperror.Validation("employee %d is not an active employee", toEmployeeID)
		}

		next, err := workflow.Next(txCtx, doc.CurrentStatus, workflow.TriggerDelegate)
		if err != nil {
			return err
		}

		slot.ApprovalStatus = entity.LineStatusDelegated
		slot.ActualApproverEmployeeID = &toEmployeeID
		slot.DelegatedFrom = &holder
		slot.DelegatedTo = &toEmployeeID
		slot.DelegatedAt = &now
		slot.DelegateReason = reason
		doc.UpdatedAt = now

		if err := s.repos.Lines.Update(txCtx, slot); err != nil {
			return fmt.Errorf("update approval line: %w", err)
		}
		if err := s.repos.Documents.Update(txCtx, doc); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		return s.appendHistory(txCtx, doc, &slot.ID, caller, entity.ActionDelegate, doc.CurrentStatus, next, reason, now)
	})
	unlock()
	if err != nil {
		return nil, classify(s.logger, "delegate", err, fields...)
	}

	s.logMutation("Slot delegated", doc, caller.EmployeeID, entity.ActionDelegate)
	s.notify(ctx, port.Notification{Event: port.EventSlotDelegated, Document: doc, Recipients: []int64{toEmployeeID}, ActorID: caller.EmployeeID, Comment: reason})
	return resultOf(doc), nil
}

// eligibleSlot finds the open required slot at the current level that actor may act on
func (s *approvalServiceImpl) eligibleSlot(ctx context.Context, doc *entity.ApprovalDocument, lines []*entity.ApprovalLine, actorID int64, now time.Time) (*entity.ApprovalLine, error) {
	for _, slot := range levelSlots(lines, doc.CurrentLevel) {
		if !slot.Blocks() {
			continue
		}
		switch slot.ApprovalStatus {
		case entity.LineStatusDelegated:
			if slot.DelegatedTo != nil && *slot.DelegatedTo == actorID {
				return slot, nil
			}
		case entity.LineStatusPending:
			effective, err := s.delegation.EffectiveApprover(ctx, slot.ApproverEmployeeID, doc.FormID, now)
			if err != nil {
				return nil, err
			}
			if effective == actorID {
				return slot, nil
			}
		}
	}

	acted := lo.ContainsBy(lines, func(l *entity.ApprovalLine) bool {
		return l.ApprovalLevel <= doc.CurrentLevel && !l.IsOpen() &&
			l.ActualApproverEmployeeID != nil && *l.ActualApproverEmployeeID == actorID
	})
	if acted {
		return nil, apperror.New(apperror.KindAlreadyProcessed, "employee %d already acted on document %s", actorID, doc.DocumentNo)
	}
	return nil, apperror.New(apperror.KindNotYourTurn,
		"employee %d is not an eligible approver at level %d of document %s", actorID, doc.CurrentLevel, doc.DocumentNo)
}

// currentApprovers returns who may act at the document's current level right now
func (s *approvalServiceImpl) currentApprovers(ctx context.Context, doc *entity.ApprovalDocument, now time.Time) ([]int64, error) {
	lines, err := s.repos.Lines.GetByDocumentID(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("load approval line: %w", err)
	}

	var ids []int64
	for _, slot := range levelSlots(lines, doc.CurrentLevel) {
		if !slot.Blocks() {
			continue
		}
		switch slot.ApprovalStatus {
		case entity.LineStatusDelegated:
			if slot.DelegatedTo != nil {
				ids = append(ids, *slot.DelegatedTo)
			}
		case entity.LineStatusPending:
			effective, err := s.delegation.EffectiveApprover(ctx, slot.ApproverEmployeeID, doc.FormID, now)
			if err != nil {
				return nil, err
			}
			ids = append(ids, effective)
		}
	}
	return lo.Uniq(ids), nil
}

func (s *approvalServiceImpl) attachLine(ctx context.Context, doc *entity.ApprovalDocument, line *ResolvedLine, now time.Time) error {
	for _, slot := range line.Slots {
		slot.DocumentID = doc.ID
		slot.ApprovalStatus = entity.LineStatusPending
		slot.CreatedAt = now
	}
	if err := s.repos.Lines.CreateBatch(ctx, line.Slots); err != nil {
		return fmt.Errorf("create approval line: %w", err)
	}
	return nil
}

func (s *approvalServiceImpl) appendHistory(ctx context.Context, doc *entity.ApprovalDocument, lineID *int64, caller port.Caller, action, previous, next, comment string, now time.Time) error {
	h := &entity.ApprovalHistory{
		DocumentID:     doc.ID,
		LineID:         lineID,
		ActionType:     action,
		ActionBy:       caller.EmployeeID,
		PreviousStatus: previous,
		NewStatus:      next,
		Comment:        comment,
		CreatedAt:      now,
	}
	stampProvenance(h, caller)
	if err := s.repos.History.Create(ctx, h); err != nil {
		return fmt.Errorf("create history: %w", err)
	}
	return nil
}

func (s *approvalServiceImpl) loadDocument(ctx context.Context, id int64) (*entity.ApprovalDocument, error) {
	doc, err := s.repos.Documents.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		return nil, apperror.NotFound("document", id)
	}
	return doc, nil
}

func (s *approvalServiceImpl) activeRequester(ctx context.Context, id int64) (*entity.Employee, error) {
	emp, err := s.repos.Directory.GetEmployee(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load requester: %w", err)
	}
	if emp == nil || !emp.IsActive {
		return nil, apperror.Validation("requester %d is not an active employee", id)
	}
	return emp, nil
}

func (s *approvalServiceImpl) notifyCurrentApprovers(ctx context.Context, doc *entity.ApprovalDocument, actorID int64) {
	recipients, err := s.currentApprovers(ctx, doc, s.opts.Now())
	if err != nil {
		s.logger.Warn("Failed to resolve notification recipients", zap.Int64("document_id", doc.ID), zap.Error(err))
		return
	}
	if len(recipients) == 0 {
		return
	}
	s.notify(ctx, port.Notification{Event: port.EventApprovalRequested, Document: doc, Recipients: recipients, ActorID: actorID})
}

// notify runs after commit; delivery failures are logged and dropped
func (s *approvalServiceImpl) notify(ctx context.Context, n port.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn("Notification delivery failed",
			zap.String("event", n.Event),
			zap.Int64("document_id", n.Document.ID),
			zap.Int64s("recipients", n.Recipients),
			zap.Error(err))
	}
}

func (s *approvalServiceImpl) logMutation(msg string, doc *entity.ApprovalDocument, actorID int64, action string) {
	s.logger.Info(msg,
		zap.Int64("document_id", doc.ID),
		zap.String("document_no", doc.DocumentNo),
		zap.Int64("actor_id", actorID),
		zap.String("action", action),
		zap.String("new_status", doc.CurrentStatus),
		zap.Int("current_level", doc.CurrentLevel))
}

func levelSlots(lines []*entity.ApprovalLine, level int) []*entity.ApprovalLine {
	return lo.Filter(lines, func(l *entity.ApprovalLine, _ int) bool { return l.ApprovalLevel == level })
}

func requesterContext(emp *entity.Employee, amount *int64) RequesterContext {
	return RequesterContext{
		EmployeeID:   emp.ID,
		CompanyID:    emp.CompanyID,
		DepartmentID: emp.DepartmentID,
		Amount:       amount,
	}
}

func stampProvenance(h *entity.ApprovalHistory, caller port.Caller) {
	h.RequestID = caller.RequestID
	h.ClientIP = caller.ClientIP
	h.UserAgent = caller.UserAgent
}

func resultOf(doc *entity.ApprovalDocument) *ActionResult {
	return &ActionResult{
		DocumentID:   doc.ID,
		NewStatus:    doc.CurrentStatus,
		CurrentLevel: doc.CurrentLevel,
	}
}

func actionFields(documentID int64, caller port.Caller, action string) []zap.Field {
	return []zap.Field{
		zap.Int64("document_id", documentID),
		zap.Int64("actor_id", caller.EmployeeID),
		zap.String("action", action),
		zap.String("request_id", caller.RequestID),
	}
}

func validateCreateInput(in *CreateDocumentInput) error {
	in.Title = utils.SanitizeString(in.Title)
	if in.FormID <= 0 {
		return apperror.Validation("form_id is required")
	}
	if in.Title == "" {
		return apperror.Validation("title is required")
	}
	if utf8.RuneCountInString(in.Title) > maxTitleLength {
		return apperror.Validation("title must be at most %d characters", maxTitleLength)
	}

	switch in.Priority {
	case "":
		in.Priority = entity.PriorityNormal
	case entity.PriorityLow, entity.PriorityNormal, entity.PriorityHigh:
	default:
		return apperror.Validation("unknown priority %q", in.Priority)
	}

	if in.Amount != nil && *in.Amount < 0 {
		return apperror.Validation("amount must not be negative")
	}
	if len(in.Content) > 0 && !json.Valid(in.Content) {
		return apperror.Validation("content must be a JSON document")
	}
	if in.SaveAsDraft && in.Line != nil {
		return apperror.Validation("an approval line is supplied at submission, not with a draft")
	}

	for i, att := range in.Attachments {
		if strings.TrimSpace(att.FileName) == "" || strings.TrimSpace(att.StorageKey) == "" {
			return apperror.Validation("attachment %d needs file_name and storage_key", i+1)
		}
		if att.FileSize < 0 {
			return apperror.Validation("attachment %d has a negative size", i+1)
		}
	}
	return nil
}

func validateComment(comment string) error {
	if utf8.RuneCountInString(comment) > maxCommentLength {
		return apperror.Validation("comment must be at most %d characters", maxCommentLength)
	}
	return nil
}
