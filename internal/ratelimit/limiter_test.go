package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestAllowFixedWindow(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)}
	l := New(15, time.Minute, WithClock(clock.Now))

	for i := 0; i < 15; i++ {
		require.True(t, l.Allow("1.2.3.4"), "request %d", i+1)
	}
	require.False(t, l.Allow("1.2.3.4"), "16th request")
	require.True(t, l.Allow("5.6.7.8"), "other keys have their own window")

	clock.Advance(59 * time.Second)
	require.False(t, l.Allow("1.2.3.4"))

	clock.Advance(time.Second)
	require.True(t, l.Allow("1.2.3.4"), "window expired")
	for i := 0; i < 14; i++ {
		require.True(t, l.Allow("1.2.3.4"))
	}
	require.False(t, l.Allow("1.2.3.4"))
}

func TestSweepRemovesExpiredWindows(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)}
	l := New(15, time.Minute, WithClock(clock.Now))

	l.Allow("old")
	clock.Advance(30 * time.Second)
	l.Allow("fresh")
	require.Equal(t, 2, l.Len())

	clock.Advance(45 * time.Second)
	require.Equal(t, 1, l.Sweep())
	require.Equal(t, 1, l.Len())

	clock.Advance(time.Minute)
	require.Equal(t, 1, l.Sweep())
	require.Zero(t, l.Len())
}

func TestAllowConcurrent(t *testing.T) {
	l := New(100, time.Minute)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 250; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("shared") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
		if i%50 == 0 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				l.Sweep()
			}()
		}
	}
	wg.Wait()
	require.Equal(t, 100, allowed)
}

func TestNewDefaults(t *testing.T) {
	l := New(0, 0)
	require.Equal(t, DefaultLimit, l.limit)
	require.Equal(t, DefaultWindow, l.length)
}
