package port

import (
	"context"
	"time"

	"github.com/garyjia/e-approval/internal/domain/entity"
)

// DocumentRepository defines persistence operations for ApprovalDocument.
// GetByID returns (nil, nil) when the document does not exist.
type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.ApprovalDocument) error
	GetByID(ctx context.Context, id int64) (*entity.ApprovalDocument, error)
	GetByIDs(ctx context.Context, ids []int64) ([]*entity.ApprovalDocument, error)
	Update(ctx context.Context, doc *entity.ApprovalDocument) error
	ListByRequester(ctx context.Context, filter SubmittedFilter) ([]*entity.ApprovalDocument, int, error)
}

// SubmittedFilter narrows a requester's documents. Zero values disable a filter.
type SubmittedFilter struct {
	RequesterID   int64
	Status        string
	CreatedFrom   time.Time // inclusive
	CreatedBefore time.Time // exclusive
	Limit         int       // 0 = no limit
	Offset        int
}

// OpenSlot is an actionable slot at its document's current level
type OpenSlot struct {
	Line   *entity.ApprovalLine
	FormID int64
}

// LineRepository defines persistence operations for ApprovalLine
type LineRepository interface {
	CreateBatch(ctx context.Context, lines []*entity.ApprovalLine) error
	GetByID(ctx context.Context, id int64) (*entity.ApprovalLine, error)
	GetByDocumentID(ctx context.Context, documentID int64) ([]*entity.ApprovalLine, error)
	Update(ctx context.Context, line *entity.ApprovalLine) error

	// ListOpenSlots returns blocking, open slots at the current level of in-flight
	// documents whose nominal approver is in nominalIDs or that were delegated to delegateID.
	ListOpenSlots(ctx context.Context, nominalIDs []int64, delegateID int64) ([]*OpenSlot, error)
}

// HistoryRepository defines persistence operations for ApprovalHistory.
// Records are append-only.
type HistoryRepository interface {
	Create(ctx context.Context, history *entity.ApprovalHistory) error
	GetByDocumentID(ctx context.Context, documentID int64) ([]*entity.ApprovalHistory, error)
}

// DelegationRepository defines persistence operations for ApprovalDelegation
type DelegationRepository interface {
	Create(ctx context.Context, delegation *entity.ApprovalDelegation) error
	GetByID(ctx context.Context, id int64) (*entity.ApprovalDelegation, error)
	Deactivate(ctx context.Context, id int64) error
	ListByDelegator(ctx context.Context, delegatorID int64, activeOnly bool) ([]*entity.ApprovalDelegation, error)

	// ListDelegatorsFor returns ids of employees with an active delegation to delegateID
	ListDelegatorsFor(ctx context.Context, delegateID int64) ([]int64, error)
}

// SettingRepository defines persistence operations for ApprovalSetting
type SettingRepository interface {
	Create(ctx context.Context, setting *entity.ApprovalSetting) error
	// ListActive returns active settings ordered by priority, then id
	ListActive(ctx context.Context) ([]*entity.ApprovalSetting, error)
}

// FormRepository defines persistence operations for ApprovalForm
type FormRepository interface {
	Create(ctx context.Context, form *entity.ApprovalForm) error
	GetByID(ctx context.Context, id int64) (*entity.ApprovalForm, error)
	GetByCode(ctx context.Context, code string) (*entity.ApprovalForm, error)
}

// AttachmentRepository defines persistence operations for Attachment
type AttachmentRepository interface {
	Create(ctx context.Context, att *entity.Attachment) error
	GetByDocumentID(ctx context.Context, documentID int64) ([]*entity.Attachment, error)
}

// SequenceRepository allocates document sequence numbers
type SequenceRepository interface {
	// Next atomically increments and returns the counter for (formCode, yearMonth), starting at 1
	Next(ctx context.Context, formCode, yearMonth string) (int, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
