package ratelimit

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowUpToLimit(t *testing.T) {
	l := New(3, time.Minute)

	for i := 0; i < 3; i++ {
		ok, _ := l.Allow("client")
		assert.True(t, ok, "request %d should be allowed", i+1)
	}

	ok, retryAfter := l.Allow("client")
	assert.False(t, ok, "request over the limit should be denied")
	assert.Greater(t, retryAfter, time.Duration(0), "denial should carry a retry hint")
	assert.LessOrEqual(t, retryAfter, time.Minute)
}

func TestWindowSlides(t *testing.T) {
	l := New(2, time.Minute)
	clock := time.Unix(1000, 0)
	l.now = func() time.Time { return clock }

	ok, _ := l.Allow("client")
	require.True(t, ok)
	clock = clock.Add(30 * time.Second)
	ok, _ = l.Allow("client")
	require.True(t, ok)

	ok, retryAfter := l.Allow("client")
	require.False(t, ok)
	assert.Equal(t, 30*time.Second, retryAfter, "retry hint should point at the oldest stamp leaving the window")

	// The first stamp ages out; one slot opens.
	clock = clock.Add(31 * time.Second)
	ok, _ = l.Allow("client")
	assert.True(t, ok, "a slot should open once the oldest request leaves the window")

	ok, _ = l.Allow("client")
	assert.False(t, ok, "the window is full again")
}

func TestClientsIndependent(t *testing.T) {
	l := New(1, time.Minute)

	ok, _ := l.Allow("alpha")
	require.True(t, ok)
	ok, _ = l.Allow("alpha")
	require.False(t, ok)

	ok, _ = l.Allow("beta")
	assert.True(t, ok, "a different client should have its own window")
}

func TestZeroLimitDisables(t *testing.T) {
	l := New(0, time.Minute)
	for i := 0; i < 100; i++ {
		ok, _ := l.Allow("client")
		assert.True(t, ok)
	}
}

func TestAllowConcurrentClients(t *testing.T) {
	l := New(1000, time.Minute)

	var wg sync.WaitGroup
	var denied atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			client := fmt.Sprintf("client-%d", id)
			for j := 0; j < 200; j++ {
				if ok, _ := l.Allow(client); !ok {
					denied.Add(1)
				}
			}
		}(i)
	}
	wg.Wait()
	assert.Zero(t, denied.Load(), "distinct clients under their limits should never be denied")
}

func TestIdleClientsCleanedUp(t *testing.T) {
	l := New(5, time.Minute)
	clock := time.Unix(1000, 0)
	l.now = func() time.Time { return clock }

	l.Allow("idle")
	l.Allow("busy")

	clock = clock.Add(cleanupInterval + time.Second)
	l.Allow("busy")

	l.mu.RLock()
	_, idleExists := l.clients["idle"]
	_, busyExists := l.clients["busy"]
	l.mu.RUnlock()
	assert.False(t, idleExists, "idle client should be dropped after cleanup")
	assert.True(t, busyExists)
}
