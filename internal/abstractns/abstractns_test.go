package abstractns

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sisungo/mactux-server/internal/lxerror"
)

func TestEscapeNameHandlesSpecialBytes(t *testing.T) {
	require.Equal(t, "a++b", EscapeName([]byte("a+b")))
	require.Equal(t, "a+sb", EscapeName([]byte("a/b")))
	require.Equal(t, "a+@b", EscapeName([]byte("a@b")))
	require.Equal(t, "plain", EscapeName([]byte("plain")))
	require.Equal(t, "@255@", EscapeName([]byte{0xff}))
}

func TestCreateNamedRoundTripsThroughSockByName(t *testing.T) {
	dir := t.TempDir()
	ns, err := New(filepath.Join(dir, "abs"))
	require.NoError(t, err)

	id, err := ns.CreateNamed([]byte("my-socket"))
	require.NoError(t, err)

	resolved, err := ns.IDByName([]byte("my-socket"))
	require.NoError(t, err)
	require.Equal(t, id, resolved)

	sockPath, err := ns.SockByName([]byte("my-socket"))
	require.NoError(t, err)
	require.Equal(t, ns.SockByID(id), sockPath)
}

func TestIDByNameMissingIsENOENT(t *testing.T) {
	dir := t.TempDir()
	ns, err := New(filepath.Join(dir, "abs"))
	require.NoError(t, err)

	_, err = ns.IDByName([]byte("nope"))
	require.ErrorIs(t, err, lxerror.ENOENT)
}
