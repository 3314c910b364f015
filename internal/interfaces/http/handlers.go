package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garyjia/e-approval/internal/application/service"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	approvals   service.ApprovalService
	queries     service.QueryService
	delegations service.DelegationService
	ping        func(context.Context) error
	logger      *zap.Logger
}

// NewHandlers creates a new Handlers instance. ping may be nil.
func NewHandlers(
	approvals service.ApprovalService,
	queries service.QueryService,
	delegations service.DelegationService,
	ping func(context.Context) error,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		approvals:   approvals,
		queries:     queries,
		delegations: delegations,
		ping:        ping,
		logger:      logger,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// CreateDocumentRequest is the body of POST /api/documents.
// An absent line resolves automatically; an empty one is rejected.
type CreateDocumentRequest struct {
	FormID            int64                     `json:"form_id"`
	Title             string                    `json:"title"`
	Content           json.RawMessage           `json:"content"`
	Priority          string                    `json:"priority"`
	Urgent            bool                      `json:"urgent"`
	DueDate           *time.Time                `json:"due_date"`
	Amount            *int64                    `json:"amount"`
	RelatedSystemType string                    `json:"related_system_type"`
	RelatedSystemID   string                    `json:"related_system_id"`
	Line              []service.LineSlot        `json:"line"`
	Attachments       []service.AttachmentInput `json:"attachments"`
	SaveAsDraft       bool                      `json:"save_as_draft"`
}

// SubmitRequest is the optional body of POST /api/documents/:id/submit
type SubmitRequest struct {
	Line []service.LineSlot `json:"line"`
}

// ProcessRequest is the body of POST /api/documents/:id/process
type ProcessRequest struct {
	Action  string `json:"action" binding:"required"`
	Comment string `json:"comment"`
}

// WithdrawRequest is the body of POST /api/documents/:id/withdraw
type WithdrawRequest struct {
	Reason string `json:"reason"`
}

// DelegateRequest is the body of POST /api/documents/:id/lines/:lineId/delegate
type DelegateRequest struct {
	ToEmployeeID int64  `json:"to_employee_id" binding:"required"`
	Reason       string `json:"reason"`
}

// RegisterDelegationRequest is the body of POST /api/delegations
type RegisterDelegationRequest struct {
	DelegatorID int64     `json:"delegator_id"`
	DelegateID  int64     `json:"delegate_id" binding:"required"`
	FormID      *int64    `json:"form_id"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	Reason      string    `json:"reason"`
}

// ListQuery holds paging and filter query parameters
type ListQuery struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	Status   string `form:"status"`
	Year     int    `form:"year"`
}

// DelegationQuery holds query parameters of GET /api/delegations
type DelegationQuery struct {
	DelegatorID int64 `form:"delegator_id"`
	ActiveOnly  bool  `form:"active_only"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	if h.ping != nil {
		if err := h.ping(c.Request.Context()); err != nil {
			h.logger.Error("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, Response{Success: false, Error: "database unavailable"})
			return
		}
	}
	ok(c, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	})
}

// CreateDocument handles POST /api/documents
func (h *Handlers) CreateDocument(c *gin.Context) {
	var req CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	result, err := h.approvals.CreateDocument(c.Request.Context(), callerFrom(c), service.CreateDocumentInput{
		FormID:            req.FormID,
		Title:             req.Title,
		Content:           req.Content,
		Priority:          req.Priority,
		Urgent:            req.Urgent,
		DueDate:           req.DueDate,
		Amount:            req.Amount,
		RelatedSystemType: req.RelatedSystemType,
		RelatedSystemID:   req.RelatedSystemID,
		Line:              req.Line,
		Attachments:       req.Attachments,
		SaveAsDraft:       req.SaveAsDraft,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, result)
}

// GetDocument handles GET /api/documents/:id
func (h *Handlers) GetDocument(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}

	detail, err := h.queries.GetDocument(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, detail)
}

// Submit handles POST /api/documents/:id/submit
func (h *Handlers) Submit(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}

	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	result, err := h.approvals.Submit(c.Request.Context(), callerFrom(c), id, req.Line)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, result)
}

// ProcessApproval handles POST /api/documents/:id/process
func (h *Handlers) ProcessApproval(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}

	var req ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	result, err := h.approvals.ProcessApproval(c.Request.Context(), callerFrom(c), id, req.Action, req.Comment)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, result)
}

// Withdraw handles POST /api/documents/:id/withdraw
func (h *Handlers) Withdraw(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}

	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	result, err := h.approvals.Withdraw(c.Request.Context(), callerFrom(c), id, req.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, result)
}

// Delegate handles POST /api/documents/:id/lines/:lineId/delegate
func (h *Handlers) Delegate(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	lineID, err := pathID(c, "lineId")
	if err != nil {
		h.fail(c, err)
		return
	}

	var req DelegateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	result, err := h.approvals.Delegate(c.Request.Context(), callerFrom(c), id, lineID, req.ToEmployeeID, req.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, result)
}

// ListPending handles GET /api/documents/pending
func (h *Handlers) ListPending(c *gin.Context) {
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid query parameters")
		return
	}

	page, err := h.queries.ListPendingFor(c.Request.Context(), callerFrom(c).EmployeeID, q.Page, q.PageSize)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, page)
}

// ListSubmitted handles GET /api/documents/submitted
func (h *Handlers) ListSubmitted(c *gin.Context) {
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid query parameters")
		return
	}

	page, err := h.queries.ListSubmittedBy(c.Request.Context(), callerFrom(c).EmployeeID, q.Status, q.Year, q.Page, q.PageSize)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, page)
}

// ExportPending handles GET /api/documents/pending/export
func (h *Handlers) ExportPending(c *gin.Context) {
	export, err := h.queries.ExportPending(c.Request.Context(), callerFrom(c).EmployeeID)
	if err != nil {
		h.fail(c, err)
		return
	}
	sendExport(c, export)
}

// ExportSubmitted handles GET /api/documents/submitted/export
func (h *Handlers) ExportSubmitted(c *gin.Context) {
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid query parameters")
		return
	}

	export, err := h.queries.ExportSubmitted(c.Request.Context(), callerFrom(c).EmployeeID, q.Status, q.Year)
	if err != nil {
		h.fail(c, err)
		return
	}
	sendExport(c, export)
}

func sendExport(c *gin.Context, export *service.Export) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName))
	c.Data(http.StatusOK, export.ContentType, export.Data)
}

// ListDelegations handles GET /api/delegations
func (h *Handlers) ListDelegations(c *gin.Context) {
	var q DelegationQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid query parameters")
		return
	}

	delegations, err := h.delegations.List(c.Request.Context(), callerFrom(c), q.DelegatorID, q.ActiveOnly)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, delegations)
}

// RegisterDelegation handles POST /api/delegations
func (h *Handlers) RegisterDelegation(c *gin.Context) {
	var req RegisterDelegationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	delegation, err := h.delegations.Register(c.Request.Context(), callerFrom(c), service.RegisterDelegationInput{
		DelegatorID: req.DelegatorID,
		DelegateID:  req.DelegateID,
		FormID:      req.FormID,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Reason:      req.Reason,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, delegation)
}

// DeactivateDelegation handles DELETE /api/delegations/:id
func (h *Handlers) DeactivateDelegation(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}

	if err := h.delegations.Deactivate(c.Request.Context(), callerFrom(c), id); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"id": id, "is_active": false})
}
