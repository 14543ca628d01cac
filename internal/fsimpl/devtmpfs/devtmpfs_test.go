package devtmpfs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sisungo/mactux-server/internal/abi"
	"github.com/sisungo/mactux-server/internal/devtable"
	"github.com/sisungo/mactux-server/internal/kernfs"
)

func newFixture() *Mount {
	devs := devtable.New()
	devtable.RegisterAuxMem(devs)
	devtable.RegisterTerm(devs)
	return New(devs)
}

func TestOpenNullResolvesToHostPath(t *testing.T) {
	m := newFixture()
	open, err := m.Open("null", abi.ORdWr)
	require.NoError(t, err)
	require.Equal(t, kernfs.AtNative, open.Kind)
	require.Equal(t, "/dev/null", open.Path)
}

func TestOpenFullIsServerMediated(t *testing.T) {
	m := newFixture()
	open, err := m.Open("full", abi.ORdWr)
	require.NoError(t, err)
	require.Equal(t, kernfs.AtServer, open.Kind)
	require.NotNil(t, open.Entry)
}

func TestOpenTtyResolvesToHostPath(t *testing.T) {
	m := newFixture()
	open, err := m.Open("tty", abi.ORdWr)
	require.NoError(t, err)
	require.Equal(t, kernfs.AtNative, open.Kind)
	require.Equal(t, "/dev/tty", open.Path)
}

func TestOpenUnknownNameFails(t *testing.T) {
	m := newFixture()
	_, err := m.Open("nonexistent", abi.ORdOnly)
	require.Error(t, err)
}

func TestReadDirListsAllNodes(t *testing.T) {
	m := newFixture()
	names, err := m.ReadDir("")
	require.NoError(t, err)
	require.Contains(t, names, "null")
	require.Contains(t, names, "console")
}

func TestUnlinkIsForbidden(t *testing.T) {
	m := newFixture()
	require.Error(t, m.Unlink("null"))
}
