package entity

import "time"

// ApprovalLine is one approver slot at one level of a document's approval line.
// ApproverEmployeeID is pinned when the line is built and never re-resolved.
type ApprovalLine struct {
	ID                       int64      `json:"id"`
	DocumentID               int64      `json:"document_id"`
	ApprovalLevel            int        `json:"approval_level"`
	SortOrder                int        `json:"sort_order"`
	ApprovalType             string     `json:"approval_type"`
	ApproverEmployeeID       int64      `json:"approver_employee_id"`
	ActualApproverEmployeeID *int64     `json:"actual_approver_employee_id,omitempty"`
	ApprovalStatus           string     `json:"approval_status"`
	IsParallel               bool       `json:"is_parallel"`
	IsRequired               bool       `json:"is_required"`
	Comment                  string     `json:"comment,omitempty"`
	ProcessedAt              *time.Time `json:"processed_at,omitempty"`

	// Filled only when ApprovalStatus becomes DELEGATED
	DelegatedFrom  *int64     `json:"delegated_from,omitempty"`
	DelegatedTo    *int64     `json:"delegated_to,omitempty"`
	DelegatedAt    *time.Time `json:"delegated_at,omitempty"`
	DelegateReason string     `json:"delegate_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Blocks reports whether the slot must be approved before its level is satisfied
func (l *ApprovalLine) Blocks() bool {
	return l.IsRequired && l.ApprovalType != ApprovalTypeReference
}

// IsOpen reports whether the slot can still be actioned
func (l *ApprovalLine) IsOpen() bool {
	return l.ApprovalStatus == LineStatusPending || l.ApprovalStatus == LineStatusDelegated
}
