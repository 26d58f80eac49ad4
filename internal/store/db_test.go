package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenAppliesSchema(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "atci.db"))
	require.NoError(t, err)
	defer db.Close()

	var version string
	require.NoError(t, db.QueryRow("SELECT version FROM schema_version").Scan(&version))
	require.Equal(t, CurrentSchemaVersion, version)
}

func TestOpenRejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "atci.db")
	db, err := Open(path)
	require.NoError(t, err)
	_, err = db.Exec("UPDATE schema_version SET version = ?", "99.0.0")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(path)
	require.Error(t, err)
}
