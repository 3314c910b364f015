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

// HistoryRepository implements port.HistoryRepository.
// The schema rejects UPDATE and DELETE on approval_history.
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a history record
func (r *HistoryRepository) Create(ctx context.Context, history *entity.ApprovalHistory) error {
	query := `
		INSERT INTO approval_history (
			document_id, line_id, action_type, action_by, previous_status, new_status,
			comment, request_id, client_ip, user_agent, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query,
		history.DocumentID,
		nullableInt64(history.LineID),
		history.ActionType,
		history.ActionBy,
		history.PreviousStatus,
		history.NewStatus,
		history.Comment,
		history.RequestID,
		history.ClientIP,
		history.UserAgent,
		utc(history.CreatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create history record",
			zap.Int64("document_id", history.DocumentID),
			zap.String("action", history.ActionType),
			zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	history.ID = id
	return nil
}

// GetByDocumentID retrieves all history records for a document in insertion order
func (r *HistoryRepository) GetByDocumentID(ctx context.Context, documentID int64) ([]*entity.ApprovalHistory, error) {
	query := `
		SELECT id, document_id, line_id, action_type, action_by, previous_status, new_status,
			comment, request_id, client_ip, user_agent, created_at
		FROM approval_history
		WHERE document_id = ?
		ORDER BY id ASC
	`

	rows, err := sqlite.GetExecutor(ctx, r.db).QueryContext(ctx, query, documentID)
	if err != nil {
		r.logger.Error("Failed to get history by document ID", zap.Int64("document_id", documentID), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	records := []*entity.ApprovalHistory{}
	for rows.Next() {
		var record entity.ApprovalHistory
		var lineID sql.NullInt64
		err := rows.Scan(
			&record.ID,
			&record.DocumentID,
			&lineID,
			&record.ActionType,
			&record.ActionBy,
			&record.PreviousStatus,
			&record.NewStatus,
			&record.Comment,
			&record.RequestID,
			&record.ClientIP,
			&record.UserAgent,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		record.LineID = int64Ptr(lineID)
		records = append(records, &record)
	}

	return records, rows.Err()
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
