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

// AttachmentRepository implements port.AttachmentRepository
type AttachmentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAttachmentRepository creates a new attachment repository
func NewAttachmentRepository(db *sql.DB, logger *zap.Logger) port.AttachmentRepository {
	return &AttachmentRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts attachment metadata
func (r *AttachmentRepository) Create(ctx context.Context, att *entity.Attachment) error {
	query := `
		INSERT INTO approval_attachments (
			document_id, file_name, storage_key, file_size, content_type, uploaded_by, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query,
		att.DocumentID,
		att.FileName,
		att.StorageKey,
		att.FileSize,
		att.ContentType,
		att.UploadedBy,
		utc(att.CreatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create attachment",
			zap.Int64("document_id", att.DocumentID),
			zap.String("file_name", att.FileName),
			zap.Error(err))
		return fmt.Errorf("failed to create attachment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	att.ID = id
	return nil
}

// GetByDocumentID retrieves all attachments of a document
func (r *AttachmentRepository) GetByDocumentID(ctx context.Context, documentID int64) ([]*entity.Attachment, error) {
	query := `
		SELECT id, document_id, file_name, storage_key, file_size, content_type, uploaded_by, created_at
		FROM approval_attachments
		WHERE document_id = ?
		ORDER BY id ASC
	`

	rows, err := sqlite.GetExecutor(ctx, r.db).QueryContext(ctx, query, documentID)
	if err != nil {
		r.logger.Error("Failed to get attachments", zap.Int64("document_id", documentID), zap.Error(err))
		return nil, fmt.Errorf("failed to get attachments: %w", err)
	}
	defer rows.Close()

	attachments := []*entity.Attachment{}
	for rows.Next() {
		var att entity.Attachment
		err := rows.Scan(
			&att.ID,
			&att.DocumentID,
			&att.FileName,
			&att.StorageKey,
			&att.FileSize,
			&att.ContentType,
			&att.UploadedBy,
			&att.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		attachments = append(attachments, &att)
	}
	return attachments, rows.Err()
}

// Verify interface compliance
var _ port.AttachmentRepository = (*AttachmentRepository)(nil)
