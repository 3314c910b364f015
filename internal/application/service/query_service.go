package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/e-approval/internal/application/port"
	"github.com/garyjia/e-approval/internal/domain/apperror"
	"github.com/garyjia/e-approval/internal/domain/entity"
	"github.com/garyjia/e-approval/pkg/utils"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// LineView is a slot with directory display names
type LineView struct {
	*entity.ApprovalLine
	ApproverName       string `json:"approver_name"`
	ActualApproverName string `json:"actual_approver_name,omitempty"`
	DelegatedToName    string `json:"delegated_to_name,omitempty"`
}

// HistoryView is a history record with the actor's display name
type HistoryView struct {
	*entity.ApprovalHistory
	ActorName string `json:"actor_name"`
}

// DocumentDetail is the full read model of one document
type DocumentDetail struct {
	Document      *entity.ApprovalDocument `json:"document"`
	FormCode      string                   `json:"form_code"`
	FormName      string                   `json:"form_name"`
	RequesterName string                   `json:"requester_name"`
	Lines         []LineView               `json:"lines"`
	History       []HistoryView            `json:"history"`
	Attachments   []*entity.Attachment     `json:"attachments"`
}

// DocumentSummary is a list entry without the content payload
type DocumentSummary struct {
	ID            int64      `json:"id"`
	DocumentNo    string     `json:"document_no"`
	FormID        int64      `json:"form_id"`
	FormName      string     `json:"form_name"`
	Title         string     `json:"title"`
	RequesterID   int64      `json:"requester_id"`
	RequesterName string     `json:"requester_name"`
	Status        string     `json:"status"`
	CurrentLevel  int        `json:"current_level"`
	TotalLevel    int        `json:"total_level"`
	Priority      string     `json:"priority"`
	Urgent        bool       `json:"urgent"`
	Amount        *int64     `json:"amount,omitempty"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
}

// Page is one page of a document list
type Page struct {
	Documents  []*DocumentSummary `json:"documents"`
	TotalCount int                `json:"total_count"`
	Page       int                `json:"page"`
	PageSize   int                `json:"page_size"`
}

// Export is a rendered document list
type Export struct {
	FileName    string
	ContentType string
	Data        []byte
}

// QueryService serves read-only projections of approval documents
type QueryService interface {
	GetDocument(ctx context.Context, documentID int64) (*DocumentDetail, error)
	ListPendingFor(ctx context.Context, approverID int64, page, pageSize int) (*Page, error)
	ListSubmittedBy(ctx context.Context, requesterID int64, status string, year, page, pageSize int) (*Page, error)
	ExportPending(ctx context.Context, approverID int64) (*Export, error)
	ExportSubmitted(ctx context.Context, requesterID int64, status string, year int) (*Export, error)
}

type queryServiceImpl struct {
	repos      Repositories
	delegation DelegationResolver
	exporter   port.DocumentExporter
	opts       Options
	logger     *zap.Logger
}

// NewQueryService creates a new QueryService
func NewQueryService(
	repos Repositories,
	delegation DelegationResolver,
	exporter port.DocumentExporter,
	opts Options,
	logger *zap.Logger,
) QueryService {
	return &queryServiceImpl{
		repos:      repos,
		delegation: delegation,
		exporter:   exporter,
		opts:       opts.withDefaults(),
		logger:     logger,
	}
}

// GetDocument reads header, line, history and attachments in one transaction
func (s *queryServiceImpl) GetDocument(ctx context.Context, documentID int64) (*DocumentDetail, error) {
	var (
		doc         *entity.ApprovalDocument
		form        *entity.ApprovalForm
		lines       []*entity.ApprovalLine
		history     []*entity.ApprovalHistory
		attachments []*entity.Attachment
	)

	err := s.repos.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		if doc, err = s.repos.Documents.GetByID(txCtx, documentID); err != nil {
			return err
		}
		if doc == nil {
			return apperror.NotFound("document", documentID)
		}
		if form, err = s.repos.Forms.GetByID(txCtx, doc.FormID); err != nil {
			return err
		}
		if lines, err = s.repos.Lines.GetByDocumentID(txCtx, doc.ID); err != nil {
			return err
		}
		if history, err = s.repos.History.GetByDocumentID(txCtx, doc.ID); err != nil {
			return err
		}
		attachments, err = s.repos.Attachments.GetByDocumentID(txCtx, doc.ID)
		return err
	})
	if err != nil {
		return nil, classify(s.logger, "get_document", err, zap.Int64("document_id", documentID))
	}

	ids := []int64{doc.RequesterID}
	for _, l := range lines {
		ids = append(ids, l.ApproverEmployeeID)
		if l.ActualApproverEmployeeID != nil {
			ids = append(ids, *l.ActualApproverEmployeeID)
		}
		if l.DelegatedTo != nil {
			ids = append(ids, *l.DelegatedTo)
		}
	}
	for _, h := range history {
		ids = append(ids, h.ActionBy)
	}
	names, err := s.names(ctx, ids)
	if err != nil {
		return nil, classify(s.logger, "get_document", err, zap.Int64("document_id", documentID))
	}

	detail := &DocumentDetail{
		Document:      doc,
		RequesterName: names[doc.RequesterID],
		Lines:         make([]LineView, 0, len(lines)),
		History:       make([]HistoryView, 0, len(history)),
		Attachments:   attachments,
	}
	if form != nil {
		detail.FormCode = form.Code
		detail.FormName = form.Name
	}
	for _, l := range lines {
		view := LineView{ApprovalLine: l, ApproverName: names[l.ApproverEmployeeID]}
		if l.ActualApproverEmployeeID != nil {
			view.ActualApproverName = names[*l.ActualApproverEmployeeID]
		}
		if l.DelegatedTo != nil {
			view.DelegatedToName = names[*l.DelegatedTo]
		}
		detail.Lines = append(detail.Lines, view)
	}
	for _, h := range history {
		detail.History = append(detail.History, HistoryView{ApprovalHistory: h, ActorName: names[h.ActionBy]})
	}
	return detail, nil
}

// ListPendingFor lists documents where approverID is currently the effective
// approver of an open required slot at the current level.
func (s *queryServiceImpl) ListPendingFor(ctx context.Context, approverID int64, page, pageSize int) (*Page, error) {
	page, pageSize = utils.NormalizePage(page, pageSize, s.opts.DefaultPageSize, s.opts.MaxPageSize)

	ids, err := s.pendingDocumentIDs(ctx, approverID)
	if err != nil {
		return nil, classify(s.logger, "list_pending", err, zap.Int64("approver_id", approverID))
	}

	result := &Page{Documents: []*DocumentSummary{}, TotalCount: len(ids), Page: page, PageSize: pageSize}
	start := (page - 1) * pageSize
	if start >= len(ids) {
		return result, nil
	}
	end := lo.Min([]int{start + pageSize, len(ids)})

	docs, err := s.repos.Documents.GetByIDs(ctx, ids[start:end])
	if err != nil {
		return nil, classify(s.logger, "list_pending", err, zap.Int64("approver_id", approverID))
	}
	if result.Documents, err = s.summaries(ctx, docs); err != nil {
		return nil, classify(s.logger, "list_pending", err, zap.Int64("approver_id", approverID))
	}
	return result, nil
}

// ListSubmittedBy lists the requester's documents, newest first
func (s *queryServiceImpl) ListSubmittedBy(ctx context.Context, requesterID int64, status string, year, page, pageSize int) (*Page, error) {
	page, pageSize = utils.NormalizePage(page, pageSize, s.opts.DefaultPageSize, s.opts.MaxPageSize)

	filter, err := s.submittedFilter(requesterID, status, year)
	if err != nil {
		return nil, classify(s.logger, "list_submitted", err, zap.Int64("requester_id", requesterID))
	}
	filter.Limit = pageSize
	filter.Offset = (page - 1) * pageSize

	docs, total, err := s.repos.Documents.ListByRequester(ctx, filter)
	if err != nil {
		return nil, classify(s.logger, "list_submitted", err, zap.Int64("requester_id", requesterID))
	}

	summaries, err := s.summaries(ctx, docs)
	if err != nil {
		return nil, classify(s.logger, "list_submitted", err, zap.Int64("requester_id", requesterID))
	}
	return &Page{Documents: summaries, TotalCount: total, Page: page, PageSize: pageSize}, nil
}

// ExportPending renders every document pending for approverID
func (s *queryServiceImpl) ExportPending(ctx context.Context, approverID int64) (*Export, error) {
	ids, err := s.pendingDocumentIDs(ctx, approverID)
	if err != nil {
		return nil, classify(s.logger, "export_pending", err, zap.Int64("approver_id", approverID))
	}
	docs, err := s.repos.Documents.GetByIDs(ctx, ids)
	if err != nil {
		return nil, classify(s.logger, "export_pending", err, zap.Int64("approver_id", approverID))
	}
	export, err := s.export(ctx, "Pending", fmt.Sprintf("pending-%d", approverID), docs)
	return export, classify(s.logger, "export_pending", err, zap.Int64("approver_id", approverID))
}

// ExportSubmitted renders every document of the requester matching the filters
func (s *queryServiceImpl) ExportSubmitted(ctx context.Context, requesterID int64, status string, year int) (*Export, error) {
	filter, err := s.submittedFilter(requesterID, status, year)
	if err != nil {
		return nil, classify(s.logger, "export_submitted", err, zap.Int64("requester_id", requesterID))
	}
	docs, _, err := s.repos.Documents.ListByRequester(ctx, filter)
	if err != nil {
		return nil, classify(s.logger, "export_submitted", err, zap.Int64("requester_id", requesterID))
	}
	export, err := s.export(ctx, "Submitted", fmt.Sprintf("submitted-%d", requesterID), docs)
	return export, classify(s.logger, "export_submitted", err, zap.Int64("requester_id", requesterID))
}

// pendingDocumentIDs returns ids of pending documents, newest first
func (s *queryServiceImpl) pendingDocumentIDs(ctx context.Context, approverID int64) ([]int64, error) {
	delegators, err := s.repos.Delegations.ListDelegatorsFor(ctx, approverID)
	if err != nil {
		return nil, err
	}
	nominal := lo.Uniq(append([]int64{approverID}, delegators...))

	slots, err := s.repos.Lines.ListOpenSlots(ctx, nominal, approverID)
	if err != nil {
		return nil, err
	}

	type key struct{ nominal, form int64 }
	now := s.opts.Now()
	effective := map[key]int64{}

	var ids []int64
	for _, slot := range slots {
		if slot.Line.ApprovalStatus == entity.LineStatusPending {
			k := key{slot.Line.ApproverEmployeeID, slot.FormID}
			id, ok := effective[k]
			if !ok {
				if id, err = s.delegation.EffectiveApprover(ctx, k.nominal, k.form, now); err != nil {
					return nil, err
				}
				effective[k] = id
			}
			if id != approverID {
				continue
			}
		}
		ids = append(ids, slot.Line.DocumentID)
	}
	return lo.Uniq(ids), nil
}

func (s *queryServiceImpl) submittedFilter(requesterID int64, status string, year int) (port.SubmittedFilter, error) {
	filter := port.SubmittedFilter{RequesterID: requesterID, Status: status}
	if status != "" && !entity.IsValidStatus(status) {
		return filter, apperror.Validation("unknown status %q", status)
	}
	if year != 0 {
		if err := utils.ValidateYear(year); err != nil {
			return filter, apperror.Validation("%s", err.Error())
		}
		filter.CreatedFrom = time.Date(year, time.January, 1, 0, 0, 0, 0, s.opts.Location)
		filter.CreatedBefore = time.Date(year+1, time.January, 1, 0, 0, 0, 0, s.opts.Location)
	}
	return filter, nil
}

func (s *queryServiceImpl) summaries(ctx context.Context, docs []*entity.ApprovalDocument) ([]*DocumentSummary, error) {
	names, err := s.names(ctx, lo.Map(docs, func(d *entity.ApprovalDocument, _ int) int64 { return d.RequesterID }))
	if err != nil {
		return nil, err
	}
	forms, err := s.formNames(ctx, docs)
	if err != nil {
		return nil, err
	}

	out := make([]*DocumentSummary, 0, len(docs))
	for _, d := range docs {
		out = append(out, &DocumentSummary{
			ID:            d.ID,
			DocumentNo:    d.DocumentNo,
			FormID:        d.FormID,
			FormName:      forms[d.FormID],
			Title:         d.Title,
			RequesterID:   d.RequesterID,
			RequesterName: names[d.RequesterID],
			Status:        d.CurrentStatus,
			CurrentLevel:  d.CurrentLevel,
			TotalLevel:    d.TotalLevel,
			Priority:      d.Priority,
			Urgent:        d.Urgent,
			Amount:        d.Amount,
			DueDate:       d.DueDate,
			CreatedAt:     d.CreatedAt,
			ProcessedAt:   d.ProcessedAt,
		})
	}
	return out, nil
}

func (s *queryServiceImpl) export(ctx context.Context, sheet, name string, docs []*entity.ApprovalDocument) (*Export, error) {
	if s.exporter == nil {
		return nil, fmt.Errorf("no document exporter configured")
	}

	summaries, err := s.summaries(ctx, docs)
	if err != nil {
		return nil, err
	}
	rows := lo.Map(summaries, func(d *DocumentSummary, _ int) port.DocumentRow {
		return port.DocumentRow{
			DocumentNo:    d.DocumentNo,
			Title:         d.Title,
			FormName:      d.FormName,
			RequesterName: d.RequesterName,
			Status:        d.Status,
			CurrentLevel:  d.CurrentLevel,
			TotalLevel:    d.TotalLevel,
			Priority:      d.Priority,
			Urgent:        d.Urgent,
			Amount:        d.Amount,
			CreatedAt:     d.CreatedAt.In(s.opts.Location),
			ProcessedAt:   d.ProcessedAt,
		}
	})

	data, err := s.exporter.Export(sheet, rows)
	if err != nil {
		return nil, fmt.Errorf("render %s export: %w", sheet, err)
	}
	return &Export{
		FileName:    name + ".xlsx",
		ContentType: s.exporter.ContentType(),
		Data:        data,
	}, nil
}

func (s *queryServiceImpl) names(ctx context.Context, ids []int64) (map[int64]string, error) {
	employees, err := s.repos.Directory.GetEmployees(ctx, lo.Uniq(ids))
	if err != nil {
		return nil, err
	}
	return lo.MapValues(employees, func(e *entity.Employee, _ int64) string { return e.Name }), nil
}

func (s *queryServiceImpl) formNames(ctx context.Context, docs []*entity.ApprovalDocument) (map[int64]string, error) {
	names := map[int64]string{}
	for _, id := range lo.Uniq(lo.Map(docs, func(d *entity.ApprovalDocument, _ int) int64 { return d.FormID })) {
		form, err := s.repos.Forms.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if form != nil {
			names[id] = form.Name
		}
	}
	return names, nil
}
