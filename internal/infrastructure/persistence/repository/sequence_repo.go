package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/e-approval/internal/application/port"
	"github.com/garyjia/e-approval/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// SequenceRepository implements port.SequenceRepository with an UPSERT counter,
// so concurrent allocations never read-then-insert.
type SequenceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSequenceRepository creates a new sequence repository
func NewSequenceRepository(db *sql.DB, logger *zap.Logger) port.SequenceRepository {
	return &SequenceRepository{
		db:     db,
		logger: logger,
	}
}

// Next increments and returns the counter for (formCode, yearMonth)
func (r *SequenceRepository) Next(ctx context.Context, formCode, yearMonth string) (int, error) {
	query := `
		INSERT INTO document_sequences (form_code, year_month, last_seq) VALUES (?, ?, 1)
		ON CONFLICT (form_code, year_month) DO UPDATE SET last_seq = last_seq + 1
		RETURNING last_seq
	`

	var seq int
	err := sqlite.GetExecutor(ctx, r.db).QueryRowContext(ctx, query, formCode, yearMonth).Scan(&seq)
	if err != nil {
		r.logger.Error("Failed to allocate sequence",
			zap.String("form_code", formCode),
			zap.String("year_month", yearMonth),
			zap.Error(err))
		return 0, fmt.Errorf("failed to allocate sequence: %w", err)
	}
	return seq, nil
}

// Verify interface compliance
var _ port.SequenceRepository = (*SequenceRepository)(nil)
