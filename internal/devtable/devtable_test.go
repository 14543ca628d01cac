package devtable

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sisungo/mactux-server/internal/device"
	"github.com/sisungo/mactux-server/internal/lxerror"
	"github.com/sisungo/mactux-server/internal/vfd"
)

func TestWellKnownRegistrations(t *testing.T) {
	tbl := New()
	RegisterAuxMem(tbl)
	RegisterTerm(tbl)

	for _, c := range []struct {
		major, minor uint32
	}{{1, 3}, {1, 5}, {1, 7}, {1, 8}, {1, 9}, {5, 0}, {5, 1}} {
		_, ok := tbl.Lookup(device.New(c.major, c.minor))
		require.True(t, ok, "missing %d:%d", c.major, c.minor)
	}
}

func TestFullWriteFails(t *testing.T) {
	tbl := New()
	RegisterAuxMem(tbl)
	obj, ok := tbl.Open(device.New(1, 7))
	require.True(t, ok)
	_, err := obj.Write([]byte("x"), 0)
	require.ErrorIs(t, err, lxerror.ENOSPC)
}

func TestZeroReadsZeroBytes(t *testing.T) {
	tbl := New()
	RegisterAuxMem(tbl)
	obj, ok := tbl.Open(device.New(1, 5))
	require.True(t, ok)
	buf := []byte{1, 2, 3}
	n, err := obj.Read(buf, 0)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, []byte{0, 0, 0}, buf)
}

func TestDynamicMinorAllocation(t *testing.T) {
	tbl := New()
	n1 := tbl.AddChrDynamic(240, func() vfd.Object { return nullDevice{} })
	n2 := tbl.AddChrDynamic(240, func() vfd.Object { return nullDevice{} })
	require.Equal(t, uint32(0), n1.Minor())
	require.Equal(t, uint32(1), n2.Minor())
}
