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

const delegationColumns = `id, delegator_id, delegate_id, form_id, start_date, end_date, reason, is_active, created_at`

// DelegationRepository implements port.DelegationRepository
type DelegationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDelegationRepository creates a new delegation repository
func NewDelegationRepository(db *sql.DB, logger *zap.Logger) port.DelegationRepository {
	return &DelegationRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a delegation
func (r *DelegationRepository) Create(ctx context.Context, d *entity.ApprovalDelegation) error {
	query := `
		INSERT INTO approval_delegations (
			delegator_id, delegate_id, form_id, start_date, end_date, reason, is_active, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query,
		d.DelegatorID,
		d.DelegateID,
		nullableInt64(d.FormID),
		utc(d.StartDate),
		utc(d.EndDate),
		d.Reason,
		d.IsActive,
		utc(d.CreatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create delegation", zap.Int64("delegator_id", d.DelegatorID), zap.Error(err))
		return fmt.Errorf("failed to create delegation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	d.ID = id
	return nil
}

// GetByID retrieves a delegation by ID
func (r *DelegationRepository) GetByID(ctx context.Context, id int64) (*entity.ApprovalDelegation, error) {
	query := `SELECT ` + delegationColumns + ` FROM approval_delegations WHERE id = ?`

	d, err := scanDelegation(sqlite.GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get delegation", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get delegation: %w", err)
	}
	return d, nil
}

// Deactivate soft-deletes a delegation
func (r *DelegationRepository) Deactivate(ctx context.Context, id int64) error {
	_, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx,
		`UPDATE approval_delegations SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to deactivate delegation", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to deactivate delegation: %w", err)
	}
	return nil
}

// ListByDelegator lists a delegator's delegations, most recently created first
func (r *DelegationRepository) ListByDelegator(ctx context.Context, delegatorID int64, activeOnly bool) ([]*entity.ApprovalDelegation, error) {
	query := `SELECT ` + delegationColumns + ` FROM approval_delegations WHERE delegator_id = ?`
	if activeOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := sqlite.GetExecutor(ctx, r.db).QueryContext(ctx, query, delegatorID)
	if err != nil {
		r.logger.Error("Failed to list delegations", zap.Int64("delegator_id", delegatorID), zap.Error(err))
		return nil, fmt.Errorf("failed to list delegations: %w", err)
	}
	defer rows.Close()

	delegations := []*entity.ApprovalDelegation{}
	for rows.Next() {
		d, err := scanDelegation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delegation: %w", err)
		}
		delegations = append(delegations, d)
	}
	return delegations, rows.Err()
}

// ListDelegatorsFor returns the distinct delegators with an active delegation to delegateID
func (r *DelegationRepository) ListDelegatorsFor(ctx context.Context, delegateID int64) ([]int64, error) {
	rows, err := sqlite.GetExecutor(ctx, r.db).QueryContext(ctx,
		`SELECT DISTINCT delegator_id FROM approval_delegations WHERE delegate_id = ? AND is_active = 1`,
		delegateID)
	if err != nil {
		r.logger.Error("Failed to list delegators", zap.Int64("delegate_id", delegateID), zap.Error(err))
		return nil, fmt.Errorf("failed to list delegators: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan delegator id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanDelegation(s scanner) (*entity.ApprovalDelegation, error) {
	var d entity.ApprovalDelegation
	var formID sql.NullInt64
	err := s.Scan(
		&d.ID,
		&d.DelegatorID,
		&d.DelegateID,
		&formID,
		&d.StartDate,
		&d.EndDate,
		&d.Reason,
		&d.IsActive,
		&d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.FormID = int64Ptr(formID)
	return &d, nil
}

// Verify interface compliance
var _ port.DelegationRepository = (*DelegationRepository)(nil)
