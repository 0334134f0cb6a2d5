package limiter

import (
	"sync"
	"time"
)

// SlidingWindow admits at most Capacity requests per caller within any
// trailing Window. Admission check and timestamp record happen under
// one lock so two concurrent borderline calls cannot both take the last
// slot. Rejected calls leave no trace in the window. State lives for
// the process lifetime and is never reset except by restart.
type SlidingWindow struct {
	capacity int
	window   time.Duration

	mu   sync.Mutex
	hits map[string][]time.Time

	now func() time.Time // injectable for tests
}

type Options struct {
	Capacity int
	Window   time.Duration
}

func New(opts Options) *SlidingWindow {
	if opts.Capacity <= 0 {
		opts.Capacity = 10
	}
	if opts.Window <= 0 {
		opts.Window = time.Minute
	}
	return &SlidingWindow{
		capacity: opts.Capacity,
		window:   opts.Window,
		hits:     make(map[string][]time.Time),
		now:      time.Now,
	}
}

// Admit reports whether callerID may proceed, recording the request
// timestamp on admission.
func (l *SlidingWindow) Admit(callerID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	recent := l.hits[callerID][:0]
	for _, ts := range l.hits[callerID] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= l.capacity {
		l.hits[callerID] = recent
		return false
	}

	l.hits[callerID] = append(recent, now)
	return true
}

// Remaining returns how many slots callerID has left in the current
// window. Informational only; it takes the same lock as Admit.
func (l *SlidingWindow) Remaining(callerID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	n := 0
	for _, ts := range l.hits[callerID] {
		if ts.After(cutoff) {
			n++
		}
	}
	if n > l.capacity {
		return 0
	}
	return l.capacity - n
}
