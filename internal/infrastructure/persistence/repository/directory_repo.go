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

// maxChainDepth bounds reporting-chain walks so a cyclic manager_id cannot loop forever
const maxChainDepth = 32

const employeeColumns = `e.id, e.name, e.company_id, e.department_id, e.position_code, e.manager_id, e.messenger_id, e.is_active`

// DirectoryRepository implements port.Directory over the HR platform's employees table
type DirectoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDirectoryRepository creates a new read-only directory
func NewDirectoryRepository(db *sql.DB, logger *zap.Logger) port.Directory {
	return &DirectoryRepository{
		db:     db,
		logger: logger,
	}
}

// GetEmployee retrieves an employee by ID
func (r *DirectoryRepository) GetEmployee(ctx context.Context, id int64) (*entity.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees e WHERE e.id = ?`

	emp, err := scanEmployee(sqlite.GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get employee", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	return emp, nil
}

// GetEmployees retrieves employees keyed by ID; unknown ids are absent from the map
func (r *DirectoryRepository) GetEmployees(ctx context.Context, ids []int64) (map[int64]*entity.Employee, error) {
	result := make(map[int64]*entity.Employee, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := `SELECT ` + employeeColumns + ` FROM employees e WHERE e.id IN (` + placeholders(len(ids)) + `)`
	rows, err := sqlite.GetExecutor(ctx, r.db).QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		r.logger.Error("Failed to get employees", zap.Int("count", len(ids)), zap.Error(err))
		return nil, fmt.Errorf("failed to get employees: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		result[emp.ID] = emp
	}
	return result, rows.Err()
}

// ResolveReportingChain walks manager_id upward from employeeID, nearest manager first
func (r *DirectoryRepository) ResolveReportingChain(ctx context.Context, employeeID int64) ([]entity.ChainEntry, error) {
	query := `
		WITH RECURSIVE chain(id, depth) AS (
			SELECT manager_id, 1 FROM employees WHERE id = ? AND manager_id IS NOT NULL
			UNION ALL
			SELECT e.manager_id, c.depth + 1
			FROM employees e JOIN chain c ON e.id = c.id
			WHERE e.manager_id IS NOT NULL AND c.depth < ?
		)
		SELECT ` + employeeColumns + `, c.depth
		FROM chain c JOIN employees e ON e.id = c.id
		ORDER BY c.depth ASC
	`

	rows, err := sqlite.GetExecutor(ctx, r.db).QueryContext(ctx, query, employeeID, maxChainDepth)
	if err != nil {
		r.logger.Error("Failed to resolve reporting chain", zap.Int64("employee_id", employeeID), zap.Error(err))
		return nil, fmt.Errorf("failed to resolve reporting chain: %w", err)
	}
	defer rows.Close()

	chain := []entity.ChainEntry{}
	for rows.Next() {
		var depth int
		emp, err := scanEmployee(rows, &depth)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chain entry: %w", err)
		}
		chain = append(chain, entity.ChainEntry{Depth: depth, Employee: emp})
	}
	return chain, rows.Err()
}

func scanEmployee(s scanner, extra ...interface{}) (*entity.Employee, error) {
	var emp entity.Employee
	var managerID sql.NullInt64
	dest := []interface{}{
		&emp.ID,
		&emp.Name,
		&emp.CompanyID,
		&emp.DepartmentID,
		&emp.PositionCode,
		&managerID,
		&emp.MessengerID,
		&emp.IsActive,
	}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	emp.ManagerID = int64Ptr(managerID)
	return &emp, nil
}

// Verify interface compliance
var _ port.Directory = (*DirectoryRepository)(nil)
