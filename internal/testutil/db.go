// Package testutil opens migrated sqlite databases and seeds directory data for tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/garyjia/e-approval/internal/domain/entity"
	"github.com/garyjia/e-approval/migrations"
	"github.com/garyjia/e-approval/pkg/database"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// NewTestDB opens a fresh database file in t.TempDir() with all migrations applied
func NewTestDB(t *testing.T) *database.DB {
	t.Helper()

	logger := zap.NewNop()
	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "approval.db"),
		MaxOpenConns: 8,
		MaxIdleConns: 4,
		BusyTimeout:  10 * time.Second,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).RunMigrations(migrations.FS))
	return db
}

// InsertEmployee writes a directory row
func InsertEmployee(t *testing.T, db *database.DB, emp entity.Employee) {
	t.Helper()

	_, err := db.ExecContext(context.Background(), `
		INSERT INTO employees (id, name, company_id, department_id, position_code, manager_id, messenger_id, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		emp.ID, emp.Name, emp.CompanyID, emp.DepartmentID, emp.PositionCode,
		emp.ManagerID, emp.MessengerID, emp.IsActive,
	)
	require.NoError(t, err)
}

// SetEmployeeActive flips an employee's active flag
func SetEmployeeActive(t *testing.T, db *database.DB, id int64, active bool) {
	t.Helper()

	_, err := db.ExecContext(context.Background(), `UPDATE employees SET is_active = ? WHERE id = ?`, active, id)
	require.NoError(t, err)
}

// Int64 returns a pointer to v
func Int64(v int64) *int64 {
	return &v
}
