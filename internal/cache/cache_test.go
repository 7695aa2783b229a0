package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"famboard/internal/timeutil"
)

func TestCache_GetSet(t *testing.T) {
	clock := &timeutil.MockClock{FixedNow: time.Date(2026, 2, 15, 9, 0, 0, 0, time.UTC)}
	c := New[string](Config{MaxAge: time.Minute}, clock)

	_, ok := c.Get("family")
	assert.False(t, ok)

	c.Set("family", "BEGIN:VCALENDAR")
	e, ok := c.Get("family")
	require.True(t, ok)
	assert.Equal(t, "BEGIN:VCALENDAR", e.Value)
	assert.Equal(t, clock.FixedNow, e.StoredAt)

	c.Delete("family")
	_, ok = c.Get("family")
	assert.False(t, ok)
}

func TestCache_MaxAge(t *testing.T) {
	clock := &timeutil.MockClock{FixedNow: time.Date(2026, 2, 15, 9, 0, 0, 0, time.UTC)}
	c := New[int](Config{MaxAge: time.Minute}, clock)
	c.Set("k", 1)

	clock.SetNow(clock.FixedNow.Add(59 * time.Second))
	_, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 0, c.Stats().ExpiredEntries)

	clock.SetNow(clock.FixedNow.Add(time.Second))
	assert.Equal(t, 1, c.Stats().ExpiredEntries)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Stats().TotalEntries)
}

func TestCache_EvictsOldestOverLimit(t *testing.T) {
	clock := &timeutil.MockClock{FixedNow: time.Date(2026, 2, 15, 9, 0, 0, 0, time.UTC)}
	c := New[int](Config{MaxAge: time.Hour, MaxEntries: 3}, clock)
	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
		clock.SetNow(clock.FixedNow.Add(time.Second))
	}
	assert.Equal(t, 3, c.Stats().TotalEntries)
	_, ok := c.Get("k0")
	assert.False(t, ok)
	_, ok = c.Get("k4")
	assert.True(t, ok)

	c.Purge()
	assert.Equal(t, Stats{}, c.Stats())
}

func TestCache_Concurrent(t *testing.T) {
	c := New[int](DefaultConfig, nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d", j%10)
				c.Set(key, n)
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 10, c.Stats().TotalEntries)
}
