package kernfs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sisungo/mactux-server/internal/abi"
)

func TestFnFileMaterializesOnOpen(t *testing.T) {
	calls := 0
	f := FnFile(func() ([]byte, error) {
		calls++
		return []byte("hello"), nil
	})

	opened, err := f.Open(abi.ORdOnly)
	require.NoError(t, err)
	require.Equal(t, AtServer, opened.Kind)
	require.NotNil(t, opened.Entry)

	buf := make([]byte, 5)
	n, err := opened.Entry.Pread(buf, 0)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", string(buf))
	require.Equal(t, 1, calls)

	_, err = f.Open(abi.ORdOnly)
	require.NoError(t, err)
	require.Equal(t, 2, calls, "each open re-materializes the producer")
}

func TestFnFileRejectsWriteOpen(t *testing.T) {
	f := FnFile(func() ([]byte, error) { return nil, nil })
	_, err := f.Open(abi.OWrOnly)
	require.Error(t, err)
}

func TestKernFSDirectoryNesting(t *testing.T) {
	root := New()
	sub := New()
	sub.Insert("leaf", RegularFile(FnFile(func() ([]byte, error) { return []byte("x"), nil })))
	root.Insert("sub", Directory(sub))
	root.Insert("link", Symlink("/sub/leaf"))

	entry, ok := root.Lookup("sub")
	require.True(t, ok)
	require.True(t, entry.IsDir())
	nested, ok := entry.AsDir()
	require.True(t, ok)
	_, ok = nested.Lookup("leaf")
	require.True(t, ok)

	entry, ok = root.Lookup("link")
	require.True(t, ok)
	target, isLink := entry.IsSymlink()
	require.True(t, isLink)
	require.Equal(t, "/sub/leaf", target)
}

func TestKernFSNamesSorted(t *testing.T) {
	k := New()
	k.Insert("zeta", Symlink("a"))
	k.Insert("alpha", Symlink("b"))
	require.Equal(t, []string{"alpha", "zeta"}, k.Names())
}
