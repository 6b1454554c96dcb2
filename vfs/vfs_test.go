package vfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemFSWriteReadFile(t *testing.T) {
	m := NewMemFS()
	err := m.WriteFile("/foo/bar.txt", []byte("hello"), WriteOpts{Create: true, Truncate: true})
	require.NoError(t, err)

	data, err := m.ReadFile("/foo/bar.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	info, err := m.Stat("/foo/bar.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)
	assert.False(t, info.IsDir)
}

func TestMemFSAppend(t *testing.T) {
	m := NewMemFS()
	require.NoError(t, m.WriteFile("/log", []byte("a"), WriteOpts{Create: true}))
	require.NoError(t, m.WriteFile("/log", []byte("b"), WriteOpts{Append: true}))

	data, err := m.ReadFile("/log")
	require.NoError(t, err)
	assert.Equal(t, "ab", string(data))
}

func TestMemFSReadDir(t *testing.T) {
	m := NewMemFS()
	require.NoError(t, m.WriteFile("/dir/a", nil, WriteOpts{Create: true}))
	require.NoError(t, m.WriteFile("/dir/b", nil, WriteOpts{Create: true}))
	require.NoError(t, m.Mkdir("/dir/sub", MkdirOpts{}))

	entries, err := m.ReadDir("/dir")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "a", entries[0].Name)
	assert.Equal(t, "b", entries[1].Name)
	assert.True(t, entries[2].IsDir)
}

func TestMemFSSymlink(t *testing.T) {
	m := NewMemFS()
	require.NoError(t, m.WriteFile("/real", []byte("data"), WriteOpts{Create: true}))
	require.NoError(t, m.Symlink("/real", "/link"))

	target, err := m.Readlink("/link")
	require.NoError(t, err)
	assert.Equal(t, "/real", target)

	data, err := m.ReadFile("/link")
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}

func TestMemFSRemoveNonEmptyRequiresRecursive(t *testing.T) {
	m := NewMemFS()
	require.NoError(t, m.WriteFile("/d/f", nil, WriteOpts{Create: true}))

	err := m.Remove("/d", RemoveOpts{})
	assert.Error(t, err)

	err = m.Remove("/d", RemoveOpts{Recursive: true})
	assert.NoError(t, err)
}

func TestMemFSResolvePath(t *testing.T) {
	m := NewMemFS()
	abs, err := m.ResolvePath("/a/b", "../c")
	require.NoError(t, err)
	assert.Equal(t, "/a/c", abs)
}
