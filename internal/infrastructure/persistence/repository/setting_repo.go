package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/garyjia/e-approval/internal/application/port"
	"github.com/garyjia/e-approval/internal/domain/entity"
	"github.com/garyjia/e-approval/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// SettingRepository implements port.SettingRepository.
// Line templates are stored as a JSON array of template steps.
type SettingRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSettingRepository creates a new approval setting repository
func NewSettingRepository(db *sql.DB, logger *zap.Logger) port.SettingRepository {
	return &SettingRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a setting
func (r *SettingRepository) Create(ctx context.Context, s *entity.ApprovalSetting) error {
	template, err := json.Marshal(s.LineTemplate)
	if err != nil {
		return fmt.Errorf("failed to marshal line template: %w", err)
	}

	query := `
		INSERT INTO approval_settings (
			name, form_id, company_id, department_id, min_amount, max_amount,
			priority, line_template, is_active, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query,
		s.Name,
		nullableInt64(s.FormID),
		nullableInt64(s.CompanyID),
		nullableInt64(s.DepartmentID),
		nullableInt64(s.MinAmount),
		nullableInt64(s.MaxAmount),
		s.Priority,
		string(template),
		s.IsActive,
		utc(s.CreatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create approval setting", zap.String("name", s.Name), zap.Error(err))
		return fmt.Errorf("failed to create approval setting: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	s.ID = id
	return nil
}

// ListActive returns active settings, highest priority (lowest value) first
func (r *SettingRepository) ListActive(ctx context.Context) ([]*entity.ApprovalSetting, error) {
	query := `
		SELECT id, name, form_id, company_id, department_id, min_amount, max_amount,
			priority, line_template, is_active, created_at
		FROM approval_settings
		WHERE is_active = 1
		ORDER BY priority ASC, id ASC
	`

	rows, err := sqlite.GetExecutor(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list approval settings", zap.Error(err))
		return nil, fmt.Errorf("failed to list approval settings: %w", err)
	}
	defer rows.Close()

	settings := []*entity.ApprovalSetting{}
	for rows.Next() {
		var s entity.ApprovalSetting
		var formID, companyID, deptID, minAmount, maxAmount sql.NullInt64
		var template string

		err := rows.Scan(
			&s.ID,
			&s.Name,
			&formID,
			&companyID,
			&deptID,
			&minAmount,
			&maxAmount,
			&s.Priority,
			&template,
			&s.IsActive,
			&s.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval setting: %w", err)
		}

		if err := json.Unmarshal([]byte(template), &s.LineTemplate); err != nil {
			return nil, fmt.Errorf("failed to parse line template of setting %d: %w", s.ID, err)
		}

		s.FormID = int64Ptr(formID)
		s.CompanyID = int64Ptr(companyID)
		s.DepartmentID = int64Ptr(deptID)
		s.MinAmount = int64Ptr(minAmount)
		s.MaxAmount = int64Ptr(maxAmount)
		settings = append(settings, &s)
	}
	return settings, rows.Err()
}

// Verify interface compliance
var _ port.SettingRepository = (*SettingRepository)(nil)
