package vfd

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sisungo/mactux-server/internal/abi"
	"github.com/sisungo/mactux-server/internal/lxerror"
)

type memObject struct {
	BaseStream
	data []byte
}

func (m *memObject) Read(buf []byte, off int64) (int, error) {
	if off >= int64(len(m.data)) {
		return 0, nil
	}
	n := copy(buf, m.data[off:])
	return n, nil
}

func (m *memObject) Write(buf []byte, off int64) (int, error) {
	end := off + int64(len(buf))
	if end > int64(len(m.data)) {
		grown := make([]byte, end)
		copy(grown, m.data)
		m.data = grown
	}
	copy(m.data[off:], buf)
	return len(buf), nil
}

func TestTableInsertGetClose(t *testing.T) {
	tbl := NewTable()
	h := tbl.Insert(&memObject{}, abi.ORdWr)
	require.Equal(t, 1, tbl.Len())

	e, err := tbl.MustGet(h)
	require.NoError(t, err)
	require.NotNil(t, e)

	require.NoError(t, tbl.Close(h))
	require.Equal(t, 0, tbl.Len())

	_, err = tbl.MustGet(h)
	require.ErrorIs(t, err, lxerror.EBADF)
}

func TestForkSharesObjectsAndExecDropsCloexec(t *testing.T) {
	parent := NewTable()
	kept := parent.Insert(&memObject{}, abi.ORdWr)
	closeOnExec := parent.Insert(&memObject{}, abi.ORdWr|abi.OCloexec)

	child := parent.Fork()
	require.Equal(t, 2, child.Len())

	keptEntry, _ := child.MustGet(kept)
	parentEntry, _ := parent.MustGet(kept)
	require.Same(t, keptEntry.Object, parentEntry.Object)

	child.OnExec()
	require.Equal(t, 1, child.Len())
	_, stillThere := child.Get(kept)
	require.True(t, stillThere)
	_, gone := child.Get(closeOnExec)
	require.False(t, gone)
}

func TestDupSharesBackingObject(t *testing.T) {
	tbl := NewTable()
	obj := &memObject{data: []byte("abc")}
	h := tbl.Insert(obj, abi.ORdWr)

	dup, err := tbl.Dup(h)
	require.NoError(t, err)
	require.NotEqual(t, h, dup)

	orig, _ := tbl.MustGet(h)
	dupped, _ := tbl.MustGet(dup)
	require.Same(t, orig.Object, dupped.Object)
}
