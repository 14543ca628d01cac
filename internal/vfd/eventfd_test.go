package vfd

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sisungo/mactux-server/internal/abi"
	"github.com/sisungo/mactux-server/internal/pollutil"
)

func TestEventFdCounterReadDrains(t *testing.T) {
	e := NewEventFd(0, 0)
	buf := make([]byte, 8)
	binary.NativeEndian.PutUint64(buf, 5)
	n, err := e.Write(buf, 0)
	require.NoError(t, err)
	require.Equal(t, 8, n)

	n, err = e.Read(buf, 0)
	require.NoError(t, err)
	require.Equal(t, 8, n)
	require.Equal(t, uint64(5), binary.NativeEndian.Uint64(buf))
	require.Equal(t, uint64(0), e.counter.Load())
}

func TestEventFdSemaphoreReadDecrementsByOne(t *testing.T) {
	e := NewEventFd(0, abi.EfdSemaphore)
	buf := make([]byte, 8)
	binary.NativeEndian.PutUint64(buf, 3)
	_, err := e.Write(buf, 0)
	require.NoError(t, err)

	_, err = e.Read(buf, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(1), binary.NativeEndian.Uint64(buf))
	require.Equal(t, uint64(2), e.counter.Load())
}

func TestEventFdPollTokenReflectsReadiness(t *testing.T) {
	e := NewEventFd(0, 0)
	tok, err := e.PollToken(pollutil.In)
	require.NoError(t, err)
	defer tok.Close()
	require.False(t, tok.Ready(e.readiness.Load()))

	buf := make([]byte, 8)
	binary.NativeEndian.PutUint64(buf, 1)
	_, err = e.Write(buf, 0)
	require.NoError(t, err)
	require.True(t, tok.Ready(e.readiness.Load()))
}

func TestEventFdRejectsShortBuffer(t *testing.T) {
	e := NewEventFd(0, 0)
	_, err := e.Read(make([]byte, 4), 0)
	require.Error(t, err)
}
