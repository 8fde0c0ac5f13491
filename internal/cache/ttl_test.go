package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)}
}

func TestTTL_HitWithinWindow(t *testing.T) {
	clk := newClock()
	c := NewTTL[[]byte](5*time.Minute, clk.Now)

	calls := 0
	load := func() ([]byte, error) {
		calls++
		return []byte(`{"n":1}`), nil
	}

	first, hit, err := c.GetOrCompute("all", load)
	require.NoError(t, err)
	assert.False(t, hit)

	clk.Advance(4*time.Minute + 59*time.Second)
	second, hit, err := c.GetOrCompute("all", load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestTTL_ExpiresAtBoundary(t *testing.T) {
	clk := newClock()
	c := NewTTL[int](time.Minute, clk.Now)
	c.Put("k", 7)

	clk.Advance(time.Minute)
	_, ok := c.Get("k")
	assert.False(t, ok, "entry aged exactly ttl must be stale")

	age, ok := c.Age("k")
	require.True(t, ok)
	assert.Equal(t, time.Minute, age)
}

func TestTTL_ErrorsNotCached(t *testing.T) {
	c := NewTTL[int](time.Minute, newClock().Now)
	boom := errors.New("boom")

	_, _, err := c.GetOrCompute("k", func() (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())

	v, hit, err := c.GetOrCompute("k", func() (int, error) { return 3, nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 3, v)
}

func TestTTL_Invalidate(t *testing.T) {
	c := NewTTL[string](time.Hour, newClock().Now)
	c.Put("a", "x")
	c.Put("b", "y")
	c.Invalidate()
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

// Concurrent misses on one key share the first loader instead of each fetching.
func TestTTL_ConcurrentMissLoadsOnce(t *testing.T) {
	c := NewTTL[int](time.Minute, newClock().Now)

	var calls atomic.Int32
	release := make(chan struct{})
	load := func() (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	const n = 8
	var wg sync.WaitGroup
	results := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _, err := c.GetOrCompute("k", load)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
}

func TestTTL_DistinctKeysLoadInParallel(t *testing.T) {
	c := NewTTL[string](time.Minute, newClock().Now)

	// Each loader waits until every loader has started; a cache that serialized
	// keys would never let the second one in.
	const n = 5
	var started sync.WaitGroup
	started.Add(n)
	all := make(chan struct{})
	go func() {
		started.Wait()
		close(all)
	}()

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		key := string(rune('a' + i))
		go func() {
			defer wg.Done()
			v, _, err := c.GetOrCompute(key, func() (string, error) {
				started.Done()
				select {
				case <-all:
					return key, nil
				case <-time.After(2 * time.Second):
					return "", errors.New("loads were serialized")
				}
			})
			assert.NoError(t, err)
			assert.Equal(t, key, v)
		}()
	}
	wg.Wait()
	assert.Equal(t, n, c.Len())
}

func TestTTL_InvalidateDoesNotWaitForLoad(t *testing.T) {
	c := NewTTL[int](time.Minute, newClock().Now)
	c.Put("other", 1)

	inLoad := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		v, _, err := c.GetOrCompute("slow", func() (int, error) {
			close(inLoad)
			<-release
			return 9, nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 9, v, "caller still gets its result")
	}()

	<-inLoad
	invalidated := make(chan struct{})
	go func() {
		c.Invalidate()
		v, ok := c.Get("other")
		assert.False(t, ok)
		assert.Zero(t, v)
		close(invalidated)
	}()
	select {
	case <-invalidated:
	case <-time.After(time.Second):
		t.Fatal("Invalidate blocked behind an in-flight load")
	}

	close(release)
	<-done
	_, ok := c.Get("slow")
	assert.False(t, ok, "a load started before Invalidate must not be stored")
}

func TestTTL_GetOrComputeIfSkipsStore(t *testing.T) {
	c := NewTTL[string](time.Minute, newClock().Now)
	calls := 0
	load := func() (string, bool, error) {
		calls++
		return "partial", calls > 1, nil
	}

	v, hit, err := c.GetOrComputeIf("k", load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "partial", v)
	assert.Equal(t, 0, c.Len())

	_, hit, err = c.GetOrComputeIf("k", load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, calls)

	_, hit, _ = c.GetOrComputeIf("k", load)
	assert.True(t, hit)
	assert.Equal(t, 2, calls)
}
