package trash

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/chaff/pkg/chaff/config"
)

func writeFiles(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	var paths []string
	for _, n := range names {
		p := filepath.Join(dir, n)
		require.NoError(t, os.WriteFile(p, []byte(n), 0o644))
		paths = append(paths, p)
	}
	return paths
}

func TestRemover_Delete(t *testing.T) {
	paths := writeFiles(t, "a.txt", "b.pdf.enc")
	r, err := NewRemover(config.CleanupDelete)
	require.NoError(t, err)

	removed, err := r.Remove(paths)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	for _, p := range paths {
		_, err := os.Stat(p)
		assert.True(t, os.IsNotExist(err))
	}
}

func TestRemover_MissingFilesCountAsRemoved(t *testing.T) {
	paths := writeFiles(t, "c.txt")
	paths = append(paths, filepath.Join(filepath.Dir(paths[0]), "never-written.txt"))

	removed, err := (&Remover{}).Remove(paths)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
}

func TestRemover_Trash(t *testing.T) {
	paths := writeFiles(t, "trash-me.txt")
	r, err := NewRemover(config.CleanupTrash)
	require.NoError(t, err)

	removed, err := r.Remove(paths)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	_, err = os.Stat(paths[0])
	assert.True(t, os.IsNotExist(err))
}

func TestNewRemover_UnknownMode(t *testing.T) {
	_, err := NewRemover("shred")
	assert.Error(t, err)
}

func TestMoveToTrash_MissingPath(t *testing.T) {
	err := MoveToTrash(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
