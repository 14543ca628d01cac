package wire

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sisungo/mactux-server/internal/abi"
	"github.com/sisungo/mactux-server/internal/lxerror"
	"github.com/sisungo/mactux-server/internal/vfd"
)

func roundTripResponse(t *testing.T, r Response) Response {
	t.Helper()
	got, err := DecodeResponse(EncodeResponse(r))
	require.NoError(t, err)
	return got
}

func TestResponseRoundTripNothingAndError(t *testing.T) {
	require.Equal(t, RespNothing{}, roundTripResponse(t, RespNothing{}))
	require.Equal(t, RespError{Err: lxerror.ENOENT}, roundTripResponse(t, RespError{Err: lxerror.ENOENT}))
}

func TestResponseRoundTripBytesAndPaths(t *testing.T) {
	require.Equal(t, RespBytes{Data: []byte("payload")}, roundTripResponse(t, RespBytes{Data: []byte("payload")}))
	require.Equal(t, RespNativePath{Path: []byte("/a/b")}, roundTripResponse(t, RespNativePath{Path: []byte("/a/b")}))
	require.Equal(t, RespLxPath{Path: []byte("/c/d")}, roundTripResponse(t, RespLxPath{Path: []byte("/c/d")}))
}

func TestResponseRoundTripCtrlOutputAndAvailCtrl(t *testing.T) {
	out := RespCtrlOutput{Output: vfd.CtrlOutput{Status: -1, Blob: []byte{1, 2, 3}}}
	require.Equal(t, out, roundTripResponse(t, out))

	avail := RespVfdAvailCtrl{Avail: vfd.AvailCtrl{Supported: true, ArgLen: 8}}
	require.Equal(t, avail, roundTripResponse(t, avail))
}

func TestResponseRoundTripStat(t *testing.T) {
	stat := RespStat{Stat: abi.Statx{
		Mask: 1, Mode: 0o100644, Nlink: 1, UID: 501, GID: 20,
		Ino: 99, Size: 4096, Blocks: 8, Blksize: 512,
		RdevMajor: 0, RdevMinor: 0, DevMajor: 1, DevMinor: 4,
		Atime: 10, Mtime: 20, Ctime: 30,
	}}
	require.Equal(t, stat, roundTripResponse(t, stat))
}

func TestResponseRoundTripDirent64(t *testing.T) {
	d := RespDirent64{Dirent: abi.Dirent64{Ino: 5, Off: 1, Type: 4, Name: "null"}}
	require.Equal(t, d, roundTripResponse(t, d))
}

func TestResponseRoundTripSysInfo(t *testing.T) {
	info := RespSysInfo{Info: abi.SysInfo{
		Uptime: 123, Loads: [3]uint64{1, 2, 3}, TotalRAM: 1 << 30, FreeRAM: 1 << 20,
		Procs: 7, MemUnit: 1,
	}}
	require.Equal(t, info, roundTripResponse(t, info))
}

func TestResponseRoundTripPoll(t *testing.T) {
	p := RespPoll{Vfd: 9, Events: 1}
	require.Equal(t, p, roundTripResponse(t, p))
}

func TestFromErrorMapsNilAndLxError(t *testing.T) {
	require.Equal(t, RespNothing{}, FromError(nil))
	require.Equal(t, RespError{Err: lxerror.EACCES}, FromError(lxerror.EACCES))
}

func TestFromErrorMapsUnknownErrorToEIO(t *testing.T) {
	require.Equal(t, RespError{Err: lxerror.EIO}, FromError(errPlain{}))
}

type errPlain struct{}

func (errPlain) Error() string { return "boom" }

func TestDecodeResponseRejectsUnknownTag(t *testing.T) {
	_, err := DecodeResponse([]byte{0xff})
	require.ErrorIs(t, err, ErrMalformed)
}
