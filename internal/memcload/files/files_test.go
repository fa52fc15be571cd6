package files

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestEnumerate(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "b.tsv.gz"))
	touch(t, filepath.Join(dir, "a.tsv.gz"))
	touch(t, filepath.Join(dir, ".c.tsv.gz"))
	touch(t, filepath.Join(dir, "d.txt"))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "e.tsv.gz"), 0o755))

	paths, err := Enumerate(filepath.Join(dir, "*.tsv.gz"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.tsv.gz"), filepath.Join(dir, "b.tsv.gz")}, paths)
}

func TestEnumerate_Recursive(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "2023", "01", "a.tsv.gz"))
	touch(t, filepath.Join(dir, "2023", "02", ".b.tsv.gz"))

	paths, err := Enumerate(filepath.Join(dir, "**", "*.tsv.gz"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "2023", "01", "a.tsv.gz")}, paths)
}

func TestEnumerate_NoMatches(t *testing.T) {
	paths, err := Enumerate(filepath.Join(t.TempDir(), "*.tsv.gz"))
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestDotRename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.tsv.gz")
	touch(t, path)

	renamed, err := DotRename(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ".a.tsv.gz"), renamed)
	assert.FileExists(t, renamed)
	assert.NoFileExists(t, path)
	assert.True(t, IsLoaded(renamed))

	_, err = DotRename(path)
	assert.Error(t, err)
}
