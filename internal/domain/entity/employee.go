package entity

// Employee is the engine's read-only view of the organization directory
type Employee struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	CompanyID    int64  `json:"company_id"`
	DepartmentID int64  `json:"department_id"`
	PositionCode string `json:"position_code,omitempty"`
	ManagerID    *int64 `json:"manager_id,omitempty"`
	MessengerID  string `json:"-"`
	IsActive     bool   `json:"is_active"`
}

// ChainEntry is one step of an employee's reporting chain (Depth 1 = direct manager)
type ChainEntry struct {
	Depth    int
	Employee *Employee
}
