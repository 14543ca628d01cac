package hostfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sisungo/mactux-server/internal/abi"
	"github.com/sisungo/mactux-server/internal/kernfs"
	"github.com/sisungo/mactux-server/internal/lxerror"
)

func TestOpenResolvesToNativePath(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hi"), 0o644))

	m := New(root)
	no, err := m.Open("a.txt", abi.ORdOnly)
	require.NoError(t, err)
	require.Equal(t, kernfs.AtNative, no.Kind)
	require.Equal(t, filepath.Join(root, "a.txt"), no.Path)
}

func TestHostPathRejectsEscape(t *testing.T) {
	root := t.TempDir()
	m := New(root)
	_, err := m.Open("../../etc/passwd", abi.ORdOnly)
	require.ErrorIs(t, err, lxerror.EACCES)
}

func TestMkdirRmdirRoundTrip(t *testing.T) {
	root := t.TempDir()
	m := New(root)
	require.NoError(t, m.Mkdir("sub", 0o755))

	names, err := m.ReadDir("")
	require.NoError(t, err)
	require.Contains(t, names, "sub")

	require.NoError(t, m.Rmdir("sub"))
	names, err = m.ReadDir("")
	require.NoError(t, err)
	require.NotContains(t, names, "sub")
}

func TestUnlinkMissingIsENOENT(t *testing.T) {
	root := t.TempDir()
	m := New(root)
	err := m.Unlink("missing")
	require.ErrorIs(t, err, lxerror.ENOENT)
}

func TestSymlinkReadlinkRoundTrip(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "target"), []byte("x"), 0o644))

	m := New(root)
	require.NoError(t, m.Symlink("target", "link"))

	target, ok := m.Readlink("link")
	require.True(t, ok)
	require.Equal(t, "target", target)
}

func TestRenameAndLink(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "src"), []byte("x"), 0o644))

	m := New(root)
	require.NoError(t, m.Rename("src", "dst"))
	_, err := os.Stat(filepath.Join(root, "dst"))
	require.NoError(t, err)

	require.NoError(t, m.Link("dst", "dst2"))
	_, err = os.Stat(filepath.Join(root, "dst2"))
	require.NoError(t, err)
}

func TestStatReportsSize(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "f"), []byte("hello"), 0o644))

	m := New(root)
	st, err := m.Stat("f")
	require.NoError(t, err)
	require.Equal(t, uint64(5), st.Size)
}
