// Package schedule runs deferred callbacks on an injectable clock and tracks
// every pending call so an owner can release them all at once.
package schedule

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// Scheduler hands out cancellable timers backed by a clockwork.Clock.
type Scheduler struct {
	clock clockwork.Clock

	mu      sync.Mutex
	pending map[*Handle]struct{}
	closed  bool
}

// Handle is a single pending call. The zero value is an already-finished handle.
type Handle struct {
	s     *Scheduler
	timer clockwork.Timer
	done  atomic.Bool // set once the call fires or is cancelled
}

// New creates a Scheduler. A nil clock uses the real clock.
func New(clock clockwork.Clock) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		clock:   clock,
		pending: make(map[*Handle]struct{}),
	}
}

// Clock returns the clock the scheduler runs on.
func (s *Scheduler) Clock() clockwork.Clock { return s.clock }

// After runs fn on its own goroutine once d has elapsed, unless the returned
// handle is cancelled first. After Close, it returns a finished handle and fn
// never runs.
func (s *Scheduler) After(d time.Duration, fn func()) *Handle {
	h := &Handle{s: s}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		h.done.Store(true)
		return h
	}
	s.pending[h] = struct{}{}
	h.timer = s.clock.AfterFunc(d, func() {
		if !h.done.CompareAndSwap(false, true) {
			return
		}
		s.forget(h)
		fn()
	})
	return h
}

// Pending reports how many calls are scheduled and not yet fired or cancelled.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close cancels every pending call and rejects new ones. It is safe to call
// more than once.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	handles := make([]*Handle, 0, len(s.pending))
	for h := range s.pending {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	for _, h := range handles {
		h.Cancel()
	}
}

func (s *Scheduler) forget(h *Handle) {
	s.mu.Lock()
	delete(s.pending, h)
	s.mu.Unlock()
}

// Cancel stops the call if it has not fired yet. It reports whether this call
// did the cancelling; cancelling a nil, fired or cancelled handle returns false.
func (h *Handle) Cancel() bool {
	if h == nil || h.s == nil || !h.done.CompareAndSwap(false, true) {
		return false
	}

	h.s.mu.Lock()
	t := h.timer
	delete(h.s.pending, h)
	h.s.mu.Unlock()

	if t != nil {
		t.Stop()
	}
	return true
}

// Done reports whether the call has fired or been cancelled.
func (h *Handle) Done() bool {
	return h == nil || h.done.Load() || h.s == nil
}
