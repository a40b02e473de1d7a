package migrations

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSortsByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"002_bans_index.sql": {Data: []byte("SELECT 2")},
		"001_chat.sql":       {Data: []byte("SELECT 1")},
		"README.md":          {Data: []byte("ignored")},
		"notversioned.sql":   {Data: []byte("ignored")},
	}

	all, err := Load(fsys)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 1, all[0].Version)
	assert.Equal(t, "chat", all[0].Name)
	assert.Equal(t, "bans_index", all[1].Name)
}

func TestLoadRejectsDuplicateVersions(t *testing.T) {
	fsys := fstest.MapFS{
		"001_a.sql": {Data: []byte("SELECT 1")},
		"001_b.sql": {Data: []byte("SELECT 1")},
	}
	_, err := Load(fsys)
	assert.Error(t, err)
}

func TestPendingSkipsApplied(t *testing.T) {
	all := []Migration{{Version: 1}, {Version: 2}, {Version: 3}}
	pending := Pending(all, map[int]bool{1: true, 3: true})
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].Version)
}

func TestEmbeddedMigrationsLoad(t *testing.T) {
	all, err := Load(files)
	require.NoError(t, err)
	require.NotEmpty(t, all)
	assert.Equal(t, 1, all[0].Version)
	assert.Contains(t, all[0].SQL, "CREATE TABLE IF NOT EXISTS messages")
	assert.Contains(t, all[0].SQL, "CREATE TABLE IF NOT EXISTS bans")
}
