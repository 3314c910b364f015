package port

import "github.com/garyjia/e-approval/internal/domain/entity"

// Caller is the authenticated identity supplied by the identity layer,
// plus request provenance recorded in history.
type Caller struct {
	EmployeeID   int64
	Role         string
	DepartmentID int64

	RequestID string
	ClientIP  string
	UserAgent string
}

// IsAdmin reports whether the caller may perform administrative actions
func (c Caller) IsAdmin() bool {
	return c.Role == entity.RoleAdmin
}
