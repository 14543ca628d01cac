package wire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sisungo/mactux-server/internal/abi"
)

func roundTripRequest(t *testing.T, r Request) Request {
	t.Helper()
	got, err := DecodeRequest(EncodeRequest(r))
	require.NoError(t, err)
	return got
}

func TestRequestRoundTripScalarVariants(t *testing.T) {
	require.Equal(t, ReqSetMountNamespace{NsID: 7}, roundTripRequest(t, ReqSetMountNamespace{NsID: 7}))
	require.Equal(t, ReqVfdClose{Vfd: 42}, roundTripRequest(t, ReqVfdClose{Vfd: 42}))
	require.Equal(t, ReqAfterExec{}, roundTripRequest(t, ReqAfterExec{}))
	require.Equal(t, ReqGetNetworkNames{}, roundTripRequest(t, ReqGetNetworkNames{}))
}

func TestRequestRoundTripOpen(t *testing.T) {
	req := ReqOpen{
		Path: []byte("/dev/null"),
		How:  abi.OpenHow{Flags: abi.ORdWr | abi.OCreat, Mode: 0o644},
	}
	got := roundTripRequest(t, req)
	require.Equal(t, req, got)
}

func TestRequestRoundTripVfdPwrite(t *testing.T) {
	req := ReqVfdPwrite{Vfd: 3, Off: -1, Data: []byte("hello")}
	require.Equal(t, req, roundTripRequest(t, req))
}

func TestRequestRoundTripRenameAndLink(t *testing.T) {
	rename := ReqRename{From: []byte("/a"), To: []byte("/b")}
	require.Equal(t, rename, roundTripRequest(t, rename))

	link := ReqLink{From: []byte("/a"), To: []byte("/c")}
	require.Equal(t, link, roundTripRequest(t, link))
}

func TestRequestRoundTripMknod(t *testing.T) {
	req := ReqMknod{Path: []byte("/dev/x"), Mode: abi.MakeDevFileMode(0o666), Device: 0x0103}
	require.Equal(t, req, roundTripRequest(t, req))
}

func TestRequestRoundTripCallInterruptibleWithTimeout(t *testing.T) {
	timeout := 250 * time.Millisecond
	req := ReqCallInterruptible{Inner: IReqVirtualFdPoll{
		Fds:     []PollFd{{Vfd: 1, Interest: 1}, {Vfd: 2, Interest: 4}},
		Timeout: &timeout,
	}}
	got := roundTripRequest(t, req)
	decoded, ok := got.(ReqCallInterruptible)
	require.True(t, ok)
	poll, ok := decoded.Inner.(IReqVirtualFdPoll)
	require.True(t, ok)
	require.Equal(t, req.Inner.(IReqVirtualFdPoll).Fds, poll.Fds)
	require.NotNil(t, poll.Timeout)
	require.Equal(t, timeout, *poll.Timeout)
}

func TestRequestRoundTripCallInterruptibleNoTimeout(t *testing.T) {
	req := ReqCallInterruptible{Inner: IReqVirtualFdPoll{Fds: nil, Timeout: nil}}
	got := roundTripRequest(t, req)
	decoded := got.(ReqCallInterruptible)
	poll := decoded.Inner.(IReqVirtualFdPoll)
	require.Nil(t, poll.Timeout)
	require.Empty(t, poll.Fds)
}

func TestDecodeRequestRejectsUnknownTag(t *testing.T) {
	_, err := DecodeRequest([]byte{0xff})
	require.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeRequestRejectsTruncatedPayload(t *testing.T) {
	full := EncodeRequest(ReqVfdWrite{Vfd: 1, Data: []byte("abcdef")})
	_, err := DecodeRequest(full[:len(full)-2])
	require.ErrorIs(t, err, ErrMalformed)
}
