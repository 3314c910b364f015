package entity

import (
	"encoding/json"
	"time"
)

// ApprovalDocument is the aggregate root of an approval request.
// RequesterID and RequesterDeptID are snapshotted at creation and never change.
// Content is a JSON document owned by the calling domain, stored and returned verbatim.
type ApprovalDocument struct {
	ID                int64           `json:"id"`
	DocumentNo        string          `json:"document_no"`
	FormID            int64           `json:"form_id"`
	Title             string          `json:"title"`
	Content           json.RawMessage `json:"content,omitempty"`
	RequesterID       int64           `json:"requester_id"`
	RequesterDeptID   int64           `json:"requester_dept_id"`
	CurrentStatus     string          `json:"current_status"`
	CurrentLevel      int             `json:"current_level"`
	TotalLevel        int             `json:"total_level"`
	Priority          string          `json:"priority"`
	Urgent            bool            `json:"urgent"`
	DueDate           *time.Time      `json:"due_date,omitempty"`
	Amount            *int64          `json:"amount,omitempty"`
	RelatedSystemType string          `json:"related_system_type,omitempty"`
	RelatedSystemID   string          `json:"related_system_id,omitempty"`
	SubmittedAt       *time.Time      `json:"submitted_at,omitempty"`
	ProcessedAt       *time.Time      `json:"processed_at,omitempty"`
	WithdrawnAt       *time.Time      `json:"withdrawn_at,omitempty"`
	WithdrawnBy       *int64          `json:"withdrawn_by,omitempty"`
	WithdrawReason    string          `json:"withdraw_reason,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// IsTerminal reports whether the document reached a final status
func (d *ApprovalDocument) IsTerminal() bool {
	return IsTerminalStatus(d.CurrentStatus)
}

// IsInFlight reports whether the document is waiting on approvers
func (d *ApprovalDocument) IsInFlight() bool {
	return d.CurrentStatus == StatusPending || d.CurrentStatus == StatusInProgress
}
