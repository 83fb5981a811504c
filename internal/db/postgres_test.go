package db

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListMigrations_SortedSQLOnly(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002_b.sql", "001_a.sql", "README.md", "010_c.sql"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "003_dir.sql"), 0o755))

	names, err := listMigrations(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_a.sql", "002_b.sql", "010_c.sql"}, names)
}

func TestListMigrations_MissingDir(t *testing.T) {
	_, err := listMigrations(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestPendingMigrations(t *testing.T) {
	pending := pendingMigrations(
		[]string{"001_a.sql", "002_b.sql", "003_c.sql"},
		[]string{"002_b.sql", "001_a.sql"},
	)
	assert.Equal(t, []string{"003_c.sql"}, pending)

	assert.Empty(t, pendingMigrations([]string{"001_a.sql"}, []string{"001_a.sql"}))
}

func TestRepositoryMigrationsAreListed(t *testing.T) {
	names, err := listMigrations(filepath.Join("..", "..", "migrations"))
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_init.sql", names[0])
	assert.Contains(t, names, "004_change_log_sequence.sql")
}
