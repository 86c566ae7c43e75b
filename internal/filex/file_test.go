package filex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureParentDir(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, "a", "b", "accounts.json")

	abs, err := EnsureParentDir(path)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Dir(abs))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.json")

	require.NoError(t, WriteFileAtomic(path, []byte(`{}`), 0o600))
	require.NoError(t, WriteFileAtomic(path, []byte(`{"42":{}}`), 0o600))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"42":{}}`, string(data))

	// no temp leftovers
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
