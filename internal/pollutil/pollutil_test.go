package pollutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatchWaitUntil(t *testing.T) {
	w := NewWatch(0)
	done := make(chan struct{})
	go func() {
		w.WaitUntil(func(cur *int) bool { return *cur >= 5 })
		close(done)
	}()
	w.Update(func(cur *int) { *cur = 5 })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitUntil did not observe update")
	}
}

func TestSetPollReady(t *testing.T) {
	w := NewWatch(Events(0))
	set := NewSet()
	tok := NewToken(1, In, w)
	set.Insert(tok)

	go func() {
		time.Sleep(10 * time.Millisecond)
		w.Update(func(cur *Events) { *cur = In })
	}()

	_, got, ok := set.Poll(nil)
	require.True(t, ok)
	require.Equal(t, tok, got)
}

func TestSetPollTimeout(t *testing.T) {
	w := NewWatch(Events(0))
	set := NewSet()
	set.Insert(NewToken(1, In, w))

	timeout := 20 * time.Millisecond
	_, _, ok := set.Poll(&timeout)
	require.False(t, ok)
}

func TestStaticTokenCancellation(t *testing.T) {
	tok, fire := NewStaticToken()
	set := NewSet()
	set.Insert(tok)

	go func() {
		time.Sleep(5 * time.Millisecond)
		fire(All())
	}()

	_, got, ok := set.Poll(nil)
	require.True(t, ok)
	require.Equal(t, tok, got)
}
