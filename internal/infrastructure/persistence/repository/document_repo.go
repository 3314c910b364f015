package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/e-approval/internal/application/port"
	"github.com/garyjia/e-approval/internal/domain/entity"
	"github.com/garyjia/e-approval/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const documentColumns = `
	id, document_no, form_id, title, content, requester_id, requester_dept_id,
	current_status, current_level, total_level, priority, urgent, due_date, amount,
	related_system_type, related_system_id, submitted_at, processed_at,
	withdrawn_at, withdrawn_by, withdraw_reason, created_at, updated_at`

// DocumentRepository implements port.DocumentRepository
type DocumentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *sql.DB, logger *zap.Logger) port.DocumentRepository {
	return &DocumentRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new document header
func (r *DocumentRepository) Create(ctx context.Context, doc *entity.ApprovalDocument) error {
	query := `
		INSERT INTO approval_documents (
			document_no, form_id, title, content, requester_id, requester_dept_id,
			current_status, current_level, total_level, priority, urgent, due_date, amount,
			related_system_type, related_system_id, submitted_at, processed_at,
			withdrawn_at, withdrawn_by, withdraw_reason, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query,
		doc.DocumentNo,
		doc.FormID,
		doc.Title,
		[]byte(doc.Content),
		doc.RequesterID,
		doc.RequesterDeptID,
		doc.CurrentStatus,
		doc.CurrentLevel,
		doc.TotalLevel,
		doc.Priority,
		doc.Urgent,
		utcPtr(doc.DueDate),
		nullableInt64(doc.Amount),
		doc.RelatedSystemType,
		doc.RelatedSystemID,
		utcPtr(doc.SubmittedAt),
		utcPtr(doc.ProcessedAt),
		utcPtr(doc.WithdrawnAt),
		nullableInt64(doc.WithdrawnBy),
		doc.WithdrawReason,
		utc(doc.CreatedAt),
		utc(doc.UpdatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create document", zap.String("document_no", doc.DocumentNo), zap.Error(err))
		return fmt.Errorf("failed to create document: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	doc.ID = id
	return nil
}

// GetByID retrieves a document by ID
func (r *DocumentRepository) GetByID(ctx context.Context, id int64) (*entity.ApprovalDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM approval_documents WHERE id = ?`

	doc, err := scanDocument(sqlite.GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get document by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return doc, nil
}

// GetByIDs retrieves documents by ID, newest first
func (r *DocumentRepository) GetByIDs(ctx context.Context, ids []int64) ([]*entity.ApprovalDocument, error) {
	if len(ids) == 0 {
		return []*entity.ApprovalDocument{}, nil
	}

	query := `SELECT ` + documentColumns + ` FROM approval_documents
		WHERE id IN (` + placeholders(len(ids)) + `)
		ORDER BY created_at DESC, id DESC`

	rows, err := sqlite.GetExecutor(ctx, r.db).QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		r.logger.Error("Failed to get documents by IDs", zap.Int("count", len(ids)), zap.Error(err))
		return nil, fmt.Errorf("failed to get documents: %w", err)
	}
	defer rows.Close()

	return collectDocuments(rows)
}

// Update persists the mutable header fields of a document
func (r *DocumentRepository) Update(ctx context.Context, doc *entity.ApprovalDocument) error {
	query := `
		UPDATE approval_documents SET
			current_status = ?, current_level = ?, total_level = ?,
			submitted_at = ?, processed_at = ?,
			withdrawn_at = ?, withdrawn_by = ?, withdraw_reason = ?,
			updated_at = ?
		WHERE id = ?
	`

	result, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query,
		doc.CurrentStatus,
		doc.CurrentLevel,
		doc.TotalLevel,
		utcPtr(doc.SubmittedAt),
		utcPtr(doc.ProcessedAt),
		utcPtr(doc.WithdrawnAt),
		nullableInt64(doc.WithdrawnBy),
		doc.WithdrawReason,
		utc(doc.UpdatedAt),
		doc.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update document", zap.Int64("id", doc.ID), zap.Error(err))
		return fmt.Errorf("failed to update document: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("document %d not found", doc.ID)
	}

	return nil
}

// ListByRequester lists a requester's documents, newest first, with the total match count
func (r *DocumentRepository) ListByRequester(ctx context.Context, filter port.SubmittedFilter) ([]*entity.ApprovalDocument, int, error) {
	where := ` WHERE requester_id = ?`
	args := []interface{}{filter.RequesterID}

	if filter.Status != "" {
		where += ` AND current_status = ?`
		args = append(args, filter.Status)
	}
	if !filter.CreatedFrom.IsZero() {
		where += ` AND created_at >= ?`
		args = append(args, utc(filter.CreatedFrom))
	}
	if !filter.CreatedBefore.IsZero() {
		where += ` AND created_at < ?`
		args = append(args, utc(filter.CreatedBefore))
	}

	exec := sqlite.GetExecutor(ctx, r.db)

	var total int
	if err := exec.QueryRowContext(ctx, `SELECT COUNT(*) FROM approval_documents`+where, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count documents", zap.Int64("requester_id", filter.RequesterID), zap.Error(err))
		return nil, 0, fmt.Errorf("failed to count documents: %w", err)
	}

	query := `SELECT ` + documentColumns + ` FROM approval_documents` + where +
		` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list documents", zap.Int64("requester_id", filter.RequesterID), zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs, err := collectDocuments(rows)
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

func collectDocuments(rows *sql.Rows) ([]*entity.ApprovalDocument, error) {
	docs := []*entity.ApprovalDocument{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func scanDocument(s scanner) (*entity.ApprovalDocument, error) {
	var doc entity.ApprovalDocument
	var dueDate, submittedAt, processedAt, withdrawnAt sql.NullTime
	var amount, withdrawnBy sql.NullInt64
	var content []byte

	err := s.Scan(
		&doc.ID,
		&doc.DocumentNo,
		&doc.FormID,
		&doc.Title,
		&content,
		&doc.RequesterID,
		&doc.RequesterDeptID,
		&doc.CurrentStatus,
		&doc.CurrentLevel,
		&doc.TotalLevel,
		&doc.Priority,
		&doc.Urgent,
		&dueDate,
		&amount,
		&doc.RelatedSystemType,
		&doc.RelatedSystemID,
		&submittedAt,
		&processedAt,
		&withdrawnAt,
		&withdrawnBy,
		&doc.WithdrawReason,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.Content = content
	doc.DueDate = timePtr(dueDate)
	doc.Amount = int64Ptr(amount)
	doc.SubmittedAt = timePtr(submittedAt)
	doc.ProcessedAt = timePtr(processedAt)
	doc.WithdrawnAt = timePtr(withdrawnAt)
	doc.WithdrawnBy = int64Ptr(withdrawnBy)

	return &doc, nil
}

// Verify interface compliance
var _ port.DocumentRepository = (*DocumentRepository)(nil)
