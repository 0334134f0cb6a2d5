package limiter

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fixedClock lets tests move time forward deterministically.
type fixedClock struct {
	mu  sync.Mutex
	t   time.Time
}

func (c *fixedClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestLimiter(capacity int, window time.Duration) (*SlidingWindow, *fixedClock) {
	clock := &fixedClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	l := New(Options{Capacity: capacity, Window: window})
	l.now = clock.now
	return l, clock
}

func TestAdmitExactlyCapacity(t *testing.T) {
	l, _ := newTestLimiter(10, time.Minute)

	for i := 0; i < 10; i++ {
		assert.True(t, l.Admit("user-a"), "request %d should be admitted", i+1)
	}
	assert.False(t, l.Admit("user-a"), "11th request within window must be rejected")
}

func TestWindowSlides(t *testing.T) {
	l, clock := newTestLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.True(t, l.Admit("user-a"))
		clock.advance(10 * time.Second)
	}
	assert.False(t, l.Admit("user-a"))

	// First hit was 30s ago; after 31 more seconds it leaves the window.
	clock.advance(31 * time.Second)
	assert.True(t, l.Admit("user-a"))
}

func TestRejectionLeavesNoTrace(t *testing.T) {
	l, clock := newTestLimiter(2, time.Minute)

	assert.True(t, l.Admit("user-a"))
	assert.True(t, l.Admit("user-a"))

	// Rejections must not extend the occupancy of the window.
	for i := 0; i < 50; i++ {
		assert.False(t, l.Admit("user-a"))
		clock.advance(time.Second)
	}

	// 50s of rejections plus 11s clears both admitted hits.
	clock.advance(11 * time.Second)
	assert.True(t, l.Admit("user-a"))
}

func TestCallersAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(2, time.Minute)

	assert.True(t, l.Admit("user-a"))
	assert.True(t, l.Admit("user-a"))
	assert.False(t, l.Admit("user-a"))

	assert.True(t, l.Admit("user-b"))
	assert.True(t, l.Admit("user-b"))
}

func TestConcurrentBorderlineAdmission(t *testing.T) {
	l, _ := newTestLimiter(10, time.Minute)

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Admit("user-a") {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, admitted, "concurrent burst must admit exactly the capacity")
}

func TestRemaining(t *testing.T) {
	l, _ := newTestLimiter(5, time.Minute)

	assert.Equal(t, 5, l.Remaining("user-a"))
	l.Admit("user-a")
	l.Admit("user-a")
	assert.Equal(t, 3, l.Remaining("user-a"))
}

func TestDefaults(t *testing.T) {
	l := New(Options{})
	assert.Equal(t, 10, l.capacity)
	assert.Equal(t, time.Minute, l.window)
}
