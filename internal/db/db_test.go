package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMigratesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hotspot.db")

	first, err := Open(path)
	require.NoError(t, err)
	_, err = first.Exec(`INSERT INTO keywords (id, keyword, source, is_active, created_at) VALUES ('k1', 'AI', 'Both', 1, 0)`)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	defer second.Close()

	var versions []int
	require.NoError(t, second.Select(&versions, `SELECT version FROM schema_version ORDER BY version`))
	assert.Equal(t, []int{len(migrations)}, versions[len(versions)-1:])
	assert.Len(t, versions, len(migrations))

	var n int
	require.NoError(t, second.Get(&n, `SELECT COUNT(1) FROM keywords`))
	assert.Equal(t, 1, n)
}

func TestForeignKeysEnforced(t *testing.T) {
	d, err := Open(filepath.Join(t.TempDir(), "fk.db"))
	require.NoError(t, err)
	defer d.Close()

	_, err = d.Exec(`INSERT INTO notifications (id, hotspot_id, is_read, created_at) VALUES ('n1', 'missing', 0, 0)`)
	assert.Error(t, err)
}
