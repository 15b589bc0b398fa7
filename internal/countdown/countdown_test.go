package countdown

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock hands out one shared, unbuffered tick channel so Advance blocks
// until the timer loop has picked the tick up.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	ticks   chan time.Time
	stopped atomic.Int32
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start, ticks: make(chan time.Time)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(time.Duration) Ticker { return &fakeTicker{c: c} }

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()
	c.ticks <- now
}

type fakeTicker struct{ c *fakeClock }

func (t *fakeTicker) C() <-chan time.Time { return t.c.ticks }
func (t *fakeTicker) Stop()               { t.c.stopped.Add(1) }

func TestCompute_Decomposition(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	r := Compute(now.Add(2*time.Hour+3*time.Minute+4*time.Second+500*time.Millisecond), now, 36)

	assert.Equal(t, 2, r.Hours)
	assert.Equal(t, 3, r.Minutes)
	assert.Equal(t, 4, r.Seconds)
	assert.False(t, r.Expired())
	assert.False(t, r.Urgent())
}

func TestCompute_HoursWrapAt36(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	r := Compute(now.Add(35*time.Hour+59*time.Minute), now, 36)
	assert.Equal(t, 35, r.Hours)

	r = Compute(now.Add(37*time.Hour), now, 36)
	assert.Equal(t, 1, r.Hours)

	r = Compute(now.Add(30*time.Hour), now, 24)
	assert.Equal(t, 6, r.Hours)

	r = Compute(now.Add(30*time.Hour), now, 0)
	assert.Equal(t, 30, r.Hours)
}

func TestCompute_PastInstantIsZero(t *testing.T) {
	now := time.Now()

	r := Compute(now.Add(-time.Minute), now, 36)

	assert.Equal(t, Remaining{}, r)
	assert.True(t, r.Expired())
}

func TestRemaining_UrgencyThresholds(t *testing.T) {
	now := time.Now()

	assert.False(t, Compute(now.Add(61*time.Minute), now, 36).Urgent())
	assert.True(t, Compute(now.Add(60*time.Minute), now, 36).Urgent())
	assert.False(t, Compute(now.Add(45*time.Minute), now, 36).VeryUrgent())
	assert.True(t, Compute(now.Add(30*time.Minute), now, 36).VeryUrgent())
}

func TestTimer_ExpiresExactlyOnce(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := newFakeClock(start)
	timer := New(start.Add(10*time.Second), Config{Clock: clock})

	var expired atomic.Int32
	var mu sync.Mutex
	var ticks []Remaining

	first := make(chan struct{})
	var once sync.Once
	done := make(chan error, 1)
	go func() {
		done <- timer.Run(context.Background(), func(r Remaining) {
			mu.Lock()
			ticks = append(ticks, r)
			mu.Unlock()
			once.Do(func() { close(first) })
		}, func() { expired.Add(1) })
	}()

	// the immediate tick reads the clock before any Advance
	<-first
	for i := 0; i < 10; i++ {
		clock.Advance(time.Second)
	}

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not stop after expiry")
	}

	assert.Equal(t, int32(1), expired.Load())
	assert.Equal(t, StateExpired, timer.State())
	assert.Equal(t, int32(1), clock.stopped.Load())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, ticks, 11)
	assert.Equal(t, 10, ticks[0].Seconds)
	assert.Equal(t, 1, ticks[9].Seconds)
	assert.Equal(t, Remaining{}, ticks[10])

	// A second run on an expired timer emits zeroes but never re-fires.
	require.NoError(t, timer.Run(context.Background(), nil, func() { expired.Add(1) }))
	assert.Equal(t, int32(1), expired.Load())
}

func TestTimer_AlreadyPastExpiresImmediately(t *testing.T) {
	start := time.Now()
	clock := newFakeClock(start)
	timer := New(start.Add(-time.Hour), Config{Clock: clock})

	var fired int
	err := timer.Run(context.Background(), nil, func() { fired++ })

	require.NoError(t, err)
	assert.Equal(t, 1, fired)
	assert.Equal(t, StateExpired, timer.State())
	assert.Zero(t, clock.stopped.Load(), "no ticker should be acquired")
}

func TestTimer_CancelReleasesTicker(t *testing.T) {
	start := time.Now()
	clock := newFakeClock(start)
	timer := New(start.Add(time.Hour), Config{Clock: clock})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	var fired atomic.Int32
	go func() { done <- timer.Run(ctx, nil, func() { fired.Add(1) }) }()

	clock.Advance(time.Second)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not stop on cancel")
	}
	assert.Equal(t, int32(1), clock.stopped.Load())
	assert.Zero(t, fired.Load())
	assert.Equal(t, StateActive, timer.State())
	assert.Equal(t, 59, timer.Last().Minutes)
}

func TestTimer_RealClockShortPeriod(t *testing.T) {
	timer := New(time.Now().Add(50*time.Millisecond), Config{Period: 10 * time.Millisecond})

	var fired atomic.Int32
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, timer.Run(ctx, nil, func() { fired.Add(1) }))
	assert.Equal(t, int32(1), fired.Load())
}
