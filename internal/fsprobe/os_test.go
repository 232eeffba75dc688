package fsprobe

import (
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOS_StatMissing(t *testing.T) {
	dir := t.TempDir()

	st, err := OS{}.Stat(filepath.Join(dir, "nope"))
	require.NoError(t, err)
	assert.False(t, st.Exists)
	assert.Equal(t, TypeNone, st.Type)
}

func TestOS_StatRegularFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "greeting")
	content := []byte("hello\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	st, err := OS{}.Stat(path)
	require.NoError(t, err)
	assert.True(t, st.Exists)
	assert.Equal(t, TypeFile, st.Type)
	assert.Equal(t, int64(len(content)), st.Size)
	assert.Equal(t, sha256.Sum256(content), st.SHA256)
}

func TestOS_StatDirectory(t *testing.T) {
	dir := t.TempDir()

	st, err := OS{}.Stat(dir)
	require.NoError(t, err)
	assert.True(t, st.Exists)
	assert.Equal(t, TypeDir, st.Type)
	assert.Equal(t, [32]byte{}, st.SHA256, "directories carry no digest")
}

func TestOS_StatSymlinkNotFollowed(t *testing.T) {
	dir := t.TempDir()
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(filepath.Join(dir, "dangling"), link))

	st, err := OS{}.Stat(link)
	require.NoError(t, err)
	assert.True(t, st.Exists)
	assert.Equal(t, TypeSymlink, st.Type, "dangling symlink must be seen as the link itself")
}

func TestOS_WriteFileAppliesContentAndMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf")

	require.NoError(t, OS{}.WriteFile(path, []byte("a=1\n"), 0o600))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("a=1\n"), got)

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())
}

func TestOS_WriteFileReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	require.NoError(t, OS{}.WriteFile(path, []byte("new"), 0o644))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), got)
}

func TestOS_Remove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stale")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	require.NoError(t, OS{}.Remove(path))

	st, err := OS{}.Stat(path)
	require.NoError(t, err)
	assert.False(t, st.Exists)
}
