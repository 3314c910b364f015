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

const lineColumns = `
	l.id, l.document_id, l.approval_level, l.sort_order, l.approval_type,
	l.approver_employee_id, l.actual_approver_employee_id, l.approval_status,
	l.is_parallel, l.is_required, l.comment, l.processed_at,
	l.delegated_from, l.delegated_to, l.delegated_at, l.delegate_reason, l.created_at`

// LineRepository implements port.LineRepository
type LineRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewLineRepository creates a new approval line repository
func NewLineRepository(db *sql.DB, logger *zap.Logger) port.LineRepository {
	return &LineRepository{
		db:     db,
		logger: logger,
	}
}

// CreateBatch inserts all slots of a line. Callers run it inside the document's transaction.
func (r *LineRepository) CreateBatch(ctx context.Context, lines []*entity.ApprovalLine) error {
	query := `
		INSERT INTO approval_lines (
			document_id, approval_level, sort_order, approval_type,
			approver_employee_id, actual_approver_employee_id, approval_status,
			is_parallel, is_required, comment, processed_at,
			delegated_from, delegated_to, delegated_at, delegate_reason, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	exec := sqlite.GetExecutor(ctx, r.db)
	for _, line := range lines {
		result, err := exec.ExecContext(ctx, query,
			line.DocumentID,
			line.ApprovalLevel,
			line.SortOrder,
			line.ApprovalType,
			line.ApproverEmployeeID,
			nullableInt64(line.ActualApproverEmployeeID),
			line.ApprovalStatus,
			line.IsParallel,
			line.IsRequired,
			line.Comment,
			utcPtr(line.ProcessedAt),
			nullableInt64(line.DelegatedFrom),
			nullableInt64(line.DelegatedTo),
			utcPtr(line.DelegatedAt),
			line.DelegateReason,
			utc(line.CreatedAt),
		)
		if err != nil {
			r.logger.Error("Failed to create approval line",
				zap.Int64("document_id", line.DocumentID),
				zap.Int("level", line.ApprovalLevel),
				zap.Int("sort_order", line.SortOrder),
				zap.Error(err))
			return fmt.Errorf("failed to create approval line: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		line.ID = id
	}

	return nil
}

// GetByID retrieves a slot by ID
func (r *LineRepository) GetByID(ctx context.Context, id int64) (*entity.ApprovalLine, error) {
	query := `SELECT ` + lineColumns + ` FROM approval_lines l WHERE l.id = ?`

	line, err := scanLine(sqlite.GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get approval line", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get approval line: %w", err)
	}
	return line, nil
}

// GetByDocumentID retrieves the full line of a document ordered by level and sort order
func (r *LineRepository) GetByDocumentID(ctx context.Context, documentID int64) ([]*entity.ApprovalLine, error) {
	query := `SELECT ` + lineColumns + ` FROM approval_lines l
		WHERE l.document_id = ?
		ORDER BY l.approval_level ASC, l.sort_order ASC`

	rows, err := sqlite.GetExecutor(ctx, r.db).QueryContext(ctx, query, documentID)
	if err != nil {
		r.logger.Error("Failed to get approval lines", zap.Int64("document_id", documentID), zap.Error(err))
		return nil, fmt.Errorf("failed to get approval lines: %w", err)
	}
	defer rows.Close()

	lines := []*entity.ApprovalLine{}
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval line: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// Update persists the action fields of a slot
func (r *LineRepository) Update(ctx context.Context, line *entity.ApprovalLine) error {
	query := `
		UPDATE approval_lines SET
			actual_approver_employee_id = ?, approval_status = ?, comment = ?, processed_at = ?,
			delegated_from = ?, delegated_to = ?, delegated_at = ?, delegate_reason = ?
		WHERE id = ?
	`

	result, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query,
		nullableInt64(line.ActualApproverEmployeeID),
		line.ApprovalStatus,
		line.Comment,
		utcPtr(line.ProcessedAt),
		nullableInt64(line.DelegatedFrom),
		nullableInt64(line.DelegatedTo),
		utcPtr(line.DelegatedAt),
		line.DelegateReason,
		line.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update approval line", zap.Int64("id", line.ID), zap.Error(err))
		return fmt.Errorf("failed to update approval line: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("approval line %d not found", line.ID)
	}
	return nil
}

// ListOpenSlots implements port.LineRepository
func (r *LineRepository) ListOpenSlots(ctx context.Context, nominalIDs []int64, delegateID int64) ([]*port.OpenSlot, error) {
	holder := `(l.approval_status = ? AND l.delegated_to = ?)`
	args := []interface{}{
		entity.StatusPending, entity.StatusInProgress, entity.ApprovalTypeReference,
	}
	if len(nominalIDs) > 0 {
		holder = `((l.approval_status = ? AND l.approver_employee_id IN (` + placeholders(len(nominalIDs)) + `)) OR ` + holder + `)`
		args = append(args, entity.LineStatusPending)
		args = append(args, int64Args(nominalIDs)...)
	}
	args = append(args, entity.LineStatusDelegated, delegateID)

	query := `SELECT ` + lineColumns + `, d.form_id
		FROM approval_lines l
		JOIN approval_documents d ON d.id = l.document_id AND d.current_level = l.approval_level
		WHERE d.current_status IN (?, ?)
		  AND l.is_required = 1
		  AND l.approval_type <> ?
		  AND ` + holder + `
		ORDER BY d.created_at DESC, d.id DESC, l.sort_order ASC`

	rows, err := sqlite.GetExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list open slots", zap.Int64("delegate_id", delegateID), zap.Error(err))
		return nil, fmt.Errorf("failed to list open slots: %w", err)
	}
	defer rows.Close()

	slots := []*port.OpenSlot{}
	for rows.Next() {
		var formID int64
		line, err := scanLine(rows, &formID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan open slot: %w", err)
		}
		slots = append(slots, &port.OpenSlot{Line: line, FormID: formID})
	}
	return slots, rows.Err()
}

func scanLine(s scanner, extra ...interface{}) (*entity.ApprovalLine, error) {
	var line entity.ApprovalLine
	var actual, delegatedFrom, delegatedTo sql.NullInt64
	var processedAt, delegatedAt sql.NullTime

	dest := []interface{}{
		&line.ID,
		&line.DocumentID,
		&line.ApprovalLevel,
		&line.SortOrder,
		&line.ApprovalType,
		&line.ApproverEmployeeID,
		&actual,
		&line.ApprovalStatus,
		&line.IsParallel,
		&line.IsRequired,
		&line.Comment,
		&processedAt,
		&delegatedFrom,
		&delegatedTo,
		&delegatedAt,
		&line.DelegateReason,
		&line.CreatedAt,
	}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	line.ActualApproverEmployeeID = int64Ptr(actual)
	line.ProcessedAt = timePtr(processedAt)
	line.DelegatedFrom = int64Ptr(delegatedFrom)
	line.DelegatedTo = int64Ptr(delegatedTo)
	line.DelegatedAt = timePtr(delegatedAt)

	return &line, nil
}

// Verify interface compliance
var _ port.LineRepository = (*LineRepository)(nil)
