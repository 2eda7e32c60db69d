package iothreads

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBroadcaster_WakeUnblocksWaiter(t *testing.T) {
	b := newBroadcaster()
	ch := b.waitChan()

	woken := make(chan bool, 1)
	go func() {
		woken <- waitOn(ch, time.Second)
	}()

	time.Sleep(20 * time.Millisecond)
	b.wake()

	select {
	case ok := <-woken:
		require.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("waiter was never woken")
	}
}

func TestBroadcaster_TimesOutWithoutWake(t *testing.T) {
	b := newBroadcaster()
	ch := b.waitChan()
	require.False(t, waitOn(ch, 20*time.Millisecond))
}

func TestBroadcaster_CaptureBeforeWakeStillDelivers(t *testing.T) {
	// A waiter that captures the channel before a concurrent wake() call
	// replaces it must still observe that wake, not block on the new one.
	b := newBroadcaster()
	ch := b.waitChan()
	b.wake()
	require.True(t, waitOn(ch, time.Second))
}
