package port

import (
	"context"
	"time"

	"github.com/garyjia/e-approval/internal/domain/entity"
)

// Directory is the read-only organization directory.
// GetEmployee returns (nil, nil) for unknown ids.
type Directory interface {
	GetEmployee(ctx context.Context, id int64) (*entity.Employee, error)
	GetEmployees(ctx context.Context, ids []int64) (map[int64]*entity.Employee, error)

	// ResolveReportingChain returns the employee's managers, nearest first
	ResolveReportingChain(ctx context.Context, employeeID int64) ([]entity.ChainEntry, error)
}

// Notification event types
const (
	EventApprovalRequested = "APPROVAL_REQUESTED"
	EventSlotDelegated     = "SLOT_DELEGATED"
	EventDocumentApproved  = "DOCUMENT_APPROVED"
	EventDocumentRejected  = "DOCUMENT_REJECTED"
	EventDocumentWithdrawn = "DOCUMENT_WITHDRAWN"
)

// Notification is a best-effort message about a document
type Notification struct {
	Event      string
	Document   *entity.ApprovalDocument
	Recipients []int64
	ActorID    int64
	Comment    string
}

// Notifier delivers notifications. Delivery failures never affect approval state.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// DocumentRow is one row of an exported document list
type DocumentRow struct {
	DocumentNo    string
	Title         string
	FormName      string
	RequesterName string
	Status        string
	CurrentLevel  int
	TotalLevel    int
	Priority      string
	Urgent        bool
	Amount        *int64
	CreatedAt     time.Time
	ProcessedAt   *time.Time
}

// DocumentExporter renders document lists into a downloadable file
type DocumentExporter interface {
	Export(sheet string, rows []DocumentRow) ([]byte, error)
	ContentType() string
}
