package dyad

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnderManagedPrefix(t *testing.T) {
	base := t.TempDir()

	t.Run("file under prefix", func(t *testing.T) {
		upath, ok := underManagedPrefix(base, filepath.Join(base, "a", "b.dat"))
		require.True(t, ok)
		assert.Equal(t, filepath.Join("a", "b.dat"), upath)
	})

	t.Run("file outside prefix", func(t *testing.T) {
		_, ok := underManagedPrefix(base, filepath.Join(t.TempDir(), "c.dat"))
		assert.False(t, ok)
	})

	t.Run("prefix itself is not managed", func(t *testing.T) {
		_, ok := underManagedPrefix(base, base)
		assert.False(t, ok)
	})

	t.Run("empty prefix", func(t *testing.T) {
		_, ok := underManagedPrefix("", "/tmp/x")
		assert.False(t, ok)
	})

	t.Run("sibling with shared name prefix", func(t *testing.T) {
		// /tmp/xxx-managed vs /tmp/xxx-managed-other must not match.
		managed := filepath.Join(base, "managed")
		require.NoError(t, os.Mkdir(managed, 0o755))
		_, ok := underManagedPrefix(managed, filepath.Join(base, "managed-other", "f.dat"))
		assert.False(t, ok)
	})

	t.Run("nonexistent file still resolves", func(t *testing.T) {
		upath, ok := underManagedPrefix(base, filepath.Join(base, "not", "yet", "here.dat"))
		require.True(t, ok)
		assert.Equal(t, filepath.Join("not", "yet", "here.dat"), upath)
	})

	t.Run("dot components are cleaned", func(t *testing.T) {
		upath, ok := underManagedPrefix(base, filepath.Join(base, "a", "..", "a", ".", "b.dat"))
		require.True(t, ok)
		assert.Equal(t, filepath.Join("a", "b.dat"), upath)
	})

	t.Run("symlinked prefix resolves", func(t *testing.T) {
		target := filepath.Join(base, "real")
		link := filepath.Join(base, "link")
		require.NoError(t, os.Mkdir(target, 0o755))
		require.NoError(t, os.Symlink(target, link))

		upath, ok := underManagedPrefix(link, filepath.Join(target, "f.dat"))
		require.True(t, ok)
		assert.Equal(t, "f.dat", upath)
	})
}

func TestMkdirAsNeeded(t *testing.T) {
	base := t.TempDir()

	t.Run("creates nested directories with setgid", func(t *testing.T) {
		dir := filepath.Join(base, "x", "y", "z")
		require.NoError(t, mkdirAsNeeded(dir))

		fi, err := os.Stat(dir)
		require.NoError(t, err)
		require.True(t, fi.IsDir())
		assert.Equal(t, os.ModeSetgid, fi.Mode()&os.ModeSetgid)
		assert.Equal(t, os.FileMode(0o775), fi.Mode().Perm())
	})

	t.Run("existing directory is fine", func(t *testing.T) {
		assert.NoError(t, mkdirAsNeeded(base))
	})

	t.Run("file in the way fails", func(t *testing.T) {
		blocker := filepath.Join(base, "blocker")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
		err := mkdirAsNeeded(filepath.Join(blocker, "sub"))
		assert.Error(t, err)
	})
}
