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

const formColumns = `id, code, name, category, field_schema, default_line_template, max_levels, is_active, created_at`

// FormRepository implements port.FormRepository
type FormRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewFormRepository creates a new form repository
func NewFormRepository(db *sql.DB, logger *zap.Logger) port.FormRepository {
	return &FormRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a form
func (r *FormRepository) Create(ctx context.Context, f *entity.ApprovalForm) error {
	query := `
		INSERT INTO approval_forms (
			code, name, category, field_schema, default_line_template, max_levels, is_active, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query,
		f.Code,
		f.Name,
		f.Category,
		f.FieldSchema,
		f.DefaultLineTemplate,
		f.MaxLevels,
		f.IsActive,
		utc(f.CreatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create form", zap.String("code", f.Code), zap.Error(err))
		return fmt.Errorf("failed to create form: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	f.ID = id
	return nil
}

// GetByID retrieves a form by ID
func (r *FormRepository) GetByID(ctx context.Context, id int64) (*entity.ApprovalForm, error) {
	return r.get(ctx, `SELECT `+formColumns+` FROM approval_forms WHERE id = ?`, id)
}

// GetByCode retrieves a form by its unique code
func (r *FormRepository) GetByCode(ctx context.Context, code string) (*entity.ApprovalForm, error) {
	return r.get(ctx, `SELECT `+formColumns+` FROM approval_forms WHERE code = ?`, code)
}

func (r *FormRepository) get(ctx context.Context, query string, arg interface{}) (*entity.ApprovalForm, error) {
	var f entity.ApprovalForm
	err := sqlite.GetExecutor(ctx, r.db).QueryRowContext(ctx, query, arg).Scan(
		&f.ID,
		&f.Code,
		&f.Name,
		&f.Category,
		&f.FieldSchema,
		&f.DefaultLineTemplate,
		&f.MaxLevels,
		&f.IsActive,
		&f.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get form", zap.Any("key", arg), zap.Error(err))
		return nil, fmt.Errorf("failed to get form: %w", err)
	}
	return &f, nil
}

// Verify interface compliance
var _ port.FormRepository = (*FormRepository)(nil)
