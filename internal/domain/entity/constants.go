package entity

// Document status constants for ApprovalDocument
const (
	StatusDraft      = "DRAFT"
	StatusPending    = "PENDING"
	StatusInProgress = "IN_PROGRESS"
	StatusApproved   = "APPROVED"
	StatusRejected   = "REJECTED"
	StatusWithdrawn  = "WITHDRAWN"
)

// Approval type constants for ApprovalLine
const (
	ApprovalTypeApprove   = "APPROVE"
	ApprovalTypeReview    = "REVIEW"
	ApprovalTypeReference = "REFERENCE" // never blocks progression
)

// Slot status constants for ApprovalLine
const (
	LineStatusPending   = "PENDING"
	LineStatusApproved  = "APPROVED"
	LineStatusRejected  = "REJECTED"
	LineStatusDelegated = "DELEGATED"
)

// Action type constants for ApprovalHistory
const (
	ActionDraft    = "DRAFT"
	ActionSubmit   = "SUBMIT"
	ActionApprove  = "APPROVE"
	ActionReject   = "REJECT"
	ActionWithdraw = "WITHDRAW"
	ActionDelegate = "DELEGATE"
)

// Document priority constants (advisory only)
const (
	PriorityLow    = "LOW"
	PriorityNormal = "NORMAL"
	PriorityHigh   = "HIGH"
)

// Caller roles supplied by the identity layer
const (
	RoleEmployee = "EMPLOYEE"
	RoleAdmin    = "ADMIN"
)

// IsTerminalStatus reports whether no further transitions are allowed from status
func IsTerminalStatus(status string) bool {
	switch status {
	case StatusApproved, StatusRejected, StatusWithdrawn:
		return true
	}
	return false
}

// IsValidStatus reports whether status is a known document status
func IsValidStatus(status string) bool {
	switch status {
	case StatusDraft, StatusPending, StatusInProgress, StatusApproved, StatusRejected, StatusWithdrawn:
		return true
	}
	return false
}

// IsValidApprovalType reports whether t is a known approval type
func IsValidApprovalType(t string) bool {
	switch t {
	case ApprovalTypeApprove, ApprovalTypeReview, ApprovalTypeReference:
		return true
	}
	return false
}
