package clock

import (
	"sync"
	"time"
)

// Slot holds at most one scheduled callback. Scheduling a new callback
// cancels the previous one. Each schedule gets a generation number; a timer
// whose generation is no longer current is ignored when it fires, so a
// callback that was already queued at the moment of cancellation still
// never runs.
//
// Timer expiry is handed to post, which is expected to run the callback on
// the owner's event goroutine. A nil post runs it directly on the timer
// goroutine.
type Slot struct {
	clock Clock
	post  func(func())

	mu    sync.Mutex
	gen   uint64
	armed bool
	timer Timer
	fn    func()
}

// NewSlot returns an empty slot.
func NewSlot(c Clock, post func(func())) *Slot {
	if post == nil {
		post = func(f func()) { f() }
	}
	return &Slot{clock: c, post: post}
}

// Schedule arms the slot to run fn after d, replacing anything pending.
func (s *Slot) Schedule(d time.Duration, fn func()) {
	s.mu.Lock()
	s.stopLocked()
	s.gen++
	gen := s.gen
	s.armed = true
	s.fn = fn
	s.timer = s.clock.AfterFunc(d, func() {
		s.post(func() { s.fire(gen) })
	})
	s.mu.Unlock()
}

func (s *Slot) fire(gen uint64) {
	s.mu.Lock()
	if !s.armed || s.gen != gen {
		s.mu.Unlock()
		return
	}
	fn := s.take()
	s.mu.Unlock()
	fn()
}

// Fire runs the pending callback immediately, on the caller's goroutine, and
// disarms the slot. It reports whether anything was pending.
func (s *Slot) Fire() bool {
	s.mu.Lock()
	if !s.armed {
		s.mu.Unlock()
		return false
	}
	s.stopLocked()
	fn := s.take()
	s.mu.Unlock()
	fn()
	return true
}

// Cancel disarms the slot. It reports whether anything was pending.
func (s *Slot) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	was := s.armed
	s.stopLocked()
	s.gen++
	s.armed = false
	s.fn = nil
	return was
}

// Pending reports whether a callback is armed.
func (s *Slot) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}

func (s *Slot) take() func() {
	fn := s.fn
	s.armed = false
	s.fn = nil
	s.timer = nil
	s.gen++
	return fn
}

func (s *Slot) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Debouncer coalesces bursts of triggers into a single call made once no
// trigger has arrived for the configured delay. The last triggered function
// wins.
type Debouncer struct {
	slot  *Slot
	delay time.Duration
}

// NewDebouncer returns a debouncer with the given quiet period.
func NewDebouncer(c Clock, delay time.Duration, post func(func())) *Debouncer {
	return &Debouncer{slot: NewSlot(c, post), delay: delay}
}

// Trigger (re)starts the quiet period with fn as the pending call.
func (d *Debouncer) Trigger(fn func()) {
	d.slot.Schedule(d.delay, fn)
}

// Flush runs the pending call now, if any.
func (d *Debouncer) Flush() bool { return d.slot.Fire() }

// Cancel drops the pending call.
func (d *Debouncer) Cancel() bool { return d.slot.Cancel() }

// Pending reports whether a call is waiting for its quiet period.
func (d *Debouncer) Pending() bool { return d.slot.Pending() }
