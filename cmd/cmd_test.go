package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := New()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	require.NoError(t, root.ExecuteContext(context.Background()), out.String())
	return out.String()
}

func TestVersion(t *testing.T) {
	assert.Contains(t, execute(t, "version"), "shifter dev")
}

func TestManagementCommands(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SHIFTER_DB_SQLITE_PATH", filepath.Join(dir, "shifter.db"))
	t.Setenv("SHIFTER_STORAGE_LOCAL_DIR", filepath.Join(dir, "uploads"))
	t.Setenv("SHIFTER_LOG_LEVEL", "error")

	out := execute(t, "createsettings")
	assert.Contains(t, out, "Created setting max_file_size")
	assert.Contains(t, out, "Created setting allow_optional_expiry")

	assert.Contains(t, execute(t, "createsettings"), "Site settings are up to date")

	out = execute(t, "createuser", "--email", "admin@example.com", "--password", "a long password", "--staff")
	assert.Contains(t, out, "Created user admin@example.com")

	assert.Contains(t, execute(t, "cleanupexpired"), "No expired files to be deleted")
}
