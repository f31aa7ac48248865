package schedule_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/stormslide/internal/schedule"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForTimers(t *testing.T, clock *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, n))
}

func TestAfter_FiresOnceAfterDelay(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := schedule.New(clock)

	var calls atomic.Int32
	h := s.After(200*time.Millisecond, func() { calls.Add(1) })
	waitForTimers(t, clock, 1)
	assert.Equal(t, 1, s.Pending())

	clock.Advance(199 * time.Millisecond)
	assert.Never(t, func() bool { return calls.Load() > 0 }, 20*time.Millisecond, 5*time.Millisecond)

	clock.Advance(time.Millisecond)
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return s.Pending() == 0 }, time.Second, 5*time.Millisecond)
	assert.True(t, h.Done())
	assert.False(t, h.Cancel(), "cancelling a fired handle reports false")
}

func TestHandle_Cancel(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := schedule.New(clock)

	var calls atomic.Int32
	h := s.After(time.Second, func() { calls.Add(1) })

	assert.True(t, h.Cancel())
	assert.False(t, h.Cancel(), "second cancel is a no-op")
	assert.Equal(t, 0, s.Pending())

	clock.Advance(2 * time.Second)
	assert.Never(t, func() bool { return calls.Load() > 0 }, 30*time.Millisecond, 5*time.Millisecond)
}

func TestHandle_NilAndZero(t *testing.T) {
	var nilHandle *schedule.Handle
	assert.False(t, nilHandle.Cancel())
	assert.True(t, nilHandle.Done())

	var zero schedule.Handle
	assert.False(t, zero.Cancel())
	assert.True(t, zero.Done())
}

func TestClose_CancelsAllPending(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := schedule.New(clock)

	var calls atomic.Int32
	for i := 0; i < 5; i++ {
		s.After(time.Duration(i+1)*time.Second, func() { calls.Add(1) })
	}
	require.Equal(t, 5, s.Pending())

	s.Close()
	s.Close()
	assert.Equal(t, 0, s.Pending())

	clock.Advance(time.Minute)
	assert.Never(t, func() bool { return calls.Load() > 0 }, 30*time.Millisecond, 5*time.Millisecond)

	late := s.After(0, func() { calls.Add(1) })
	assert.True(t, late.Done())
	assert.Equal(t, 0, s.Pending())
}

func TestNew_DefaultsToRealClock(t *testing.T) {
	s := schedule.New(nil)
	require.NotNil(t, s.Clock())

	done := make(chan struct{})
	s.After(time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callback did not fire on the real clock")
	}
}
