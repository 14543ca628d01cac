package lxerror

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestNegated(t *testing.T) {
	require.Equal(t, int32(-2), ENOENT.Negated())
	require.Equal(t, int32(0), LxError(0).Negated())
}

func TestFromHostError(t *testing.T) {
	require.Equal(t, ENOENT, FromHostError(unix.ENOENT))
	require.Equal(t, LxError(0), FromHostError(nil))
	require.Equal(t, EIO, FromHostError(unix.Errno(0xffff)))
}

func TestErrorString(t *testing.T) {
	require.Equal(t, "no such file or directory", ENOENT.Error())
	require.Contains(t, LxError(999).Error(), "999")
}
