package entity

import "time"

// Approver reference kinds used by setting templates
const (
	RefManager  = "MANAGER"  // n-th manager up the reporting chain
	RefPosition = "POSITION" // nearest chain member holding a position code
	RefEmployee = "EMPLOYEE" // fixed employee
)

// TemplateStep is one slot definition of a setting's line template
type TemplateStep struct {
	Level        int    `json:"level"`
	SortOrder    int    `json:"sort_order"`
	ApprovalType string `json:"approval_type"`
	Required     bool   `json:"required"`
	RefKind      string `json:"ref_kind"`
	Depth        int    `json:"depth,omitempty"`
	PositionCode string `json:"position_code,omitempty"`
	EmployeeID   int64  `json:"employee_id,omitempty"`
}

// ApprovalSetting selects a line template for matching documents.
// Nil selectors match anything; the amount range is [MinAmount, MaxAmount).
// Lower Priority values are evaluated first.
type ApprovalSetting struct {
	ID           int64          `json:"id"`
	Name         string         `json:"name"`
	FormID       *int64         `json:"form_id,omitempty"`
	CompanyID    *int64         `json:"company_id,omitempty"`
	DepartmentID *int64         `json:"department_id,omitempty"`
	MinAmount    *int64         `json:"min_amount,omitempty"`
	MaxAmount    *int64         `json:"max_amount,omitempty"`
	Priority     int            `json:"priority"`
	LineTemplate []TemplateStep `json:"line_template"`
	IsActive     bool           `json:"is_active"`
	CreatedAt    time.Time      `json:"created_at"`
}
