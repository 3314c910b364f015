package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 9090\n"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "data/approval.db", cfg.Database.Path)
	assert.Equal(t, 5*time.Second, cfg.Database.BusyTimeout)
	assert.Equal(t, 20, cfg.Approval.DefaultPageSize)
	assert.Equal(t, 100, cfg.Approval.MaxPageSize)
	assert.False(t, cfg.Lark.Enabled)
	assert.Equal(t, "open_id", cfg.Lark.ReceiveIDType)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Seoul", loc.String())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("APPROVAL_DB_PATH", "/var/lib/approval/approval.db")
	t.Setenv("LARK_ENABLED", "true")
	t.Setenv("LARK_APP_ID", "cli_test")
	t.Setenv("LARK_APP_SECRET", "secret")

	cfg, err := Load(writeConfig(t, "database:\n  path: local.db\n"))
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/approval/approval.db", cfg.Database.Path)
	assert.True(t, cfg.Lark.Enabled)
	assert.Equal(t, "cli_test", cfg.Lark.AppID)
}

func TestLoad_DotEnv(t *testing.T) {
	path := writeConfig(t, "lark:\n  enabled: true\n")
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), ".env"),
		[]byte("LARK_APP_ID=cli_dotenv\nLARK_APP_SECRET=dotenv-secret\n"), 0o644))
	t.Cleanup(func() {
		os.Unsetenv("LARK_APP_ID")
		os.Unsetenv("LARK_APP_SECRET")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "cli_dotenv", cfg.Lark.AppID)
	assert.Equal(t, "dotenv-secret", cfg.Lark.AppSecret)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"lark without credentials", "lark:\n  enabled: true\n"},
		{"unknown timezone", "approval:\n  timezone: Mars/Olympus\n"},
		{"max below default", "approval:\n  default_page_size: 50\n  max_page_size: 10\n"},
		{"port out of range", "server:\n  port: 70000\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
