package filex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.gif")
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o600))
	return path
}

func TestReadLimited_WithinLimit(t *testing.T) {
	path := writeFile(t, 1500)

	data, err := ReadLimited(path, 2000)
	require.NoError(t, err)
	require.Len(t, data, 1500)
}

func TestReadLimited_NoLimit(t *testing.T) {
	path := writeFile(t, 4096)

	data, err := ReadLimited(path, 0)
	require.NoError(t, err)
	require.Len(t, data, 4096)
}

func TestReadLimited_TooLarge(t *testing.T) {
	path := writeFile(t, 3000)

	_, err := ReadLimited(path, 2000)
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestReadLimited_Errors(t *testing.T) {
	_, err := ReadLimited(filepath.Join(t.TempDir(), "missing.gif"), 100)
	require.Error(t, err)

	_, err = ReadLimited(t.TempDir(), 100)
	require.Error(t, err)
}
