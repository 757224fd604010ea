package events

import (
	"sync"
	"time"
)

// DefaultMinEmitInterval is the throttling window for progress events.
const DefaultMinEmitInterval = 100 * time.Millisecond

// ThrottledEmitter coalesces high-frequency progress events to at most one
// per minInterval while passing priority events through untouched.
//
// Suppressed progress events are not queued: a single "latest" slot holds
// the most recent one, and a timer flushes it when the window closes. This
// bounds memory regardless of producer rate.
type ThrottledEmitter struct {
	sink        func(GenerationEvent)
	minInterval time.Duration

	mu       sync.Mutex
	lastEmit time.Time
	pending  *GenerationEvent
	timer    *time.Timer
	closed   bool
}

// NewThrottledEmitter wraps sink with progress throttling. A non-positive
// minInterval falls back to the default 100ms window.
func NewThrottledEmitter(sink func(GenerationEvent), minInterval time.Duration) *ThrottledEmitter {
	if minInterval <= 0 {
		minInterval = DefaultMinEmitInterval
	}
	return &ThrottledEmitter{
		sink:        sink,
		minInterval: minInterval,
	}
}

// Emit forwards the event, coalescing non-priority progress-bearing events.
func (t *ThrottledEmitter) Emit(event GenerationEvent) {
	if event.Priority() || !t.throttleable(event) {
		t.mu.Lock()
		// A pending progress event older than this one is superseded by the
		// priority emission's ordering but still carries state the client
		// wants; flush it first so progress never goes backwards.
		if t.pending != nil {
			p := *t.pending
			t.pending = nil
			t.stopTimerLocked()
			t.lastEmit = time.Now()
			t.mu.Unlock()
			t.sink(p)
			t.mu.Lock()
		}
		t.mu.Unlock()
		t.sink(event)
		return
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	now := time.Now()
	if elapsed := now.Sub(t.lastEmit); elapsed >= t.minInterval {
		t.lastEmit = now
		t.pending = nil
		t.stopTimerLocked()
		t.mu.Unlock()
		t.sink(event)
		return
	}
	// Inside the window: park the latest event and arm the flush timer once.
	t.pending = &event
	if t.timer == nil {
		wait := t.minInterval - now.Sub(t.lastEmit)
		t.timer = time.AfterFunc(wait, t.flush)
	}
	t.mu.Unlock()
}

// Close flushes any parked progress event and stops the timer. Further
// throttleable emissions are dropped; priority events still pass through.
func (t *ThrottledEmitter) Close() {
	t.mu.Lock()
	t.closed = true
	t.stopTimerLocked()
	p := t.pending
	t.pending = nil
	t.mu.Unlock()
	if p != nil {
		t.sink(*p)
	}
}

// flush emits the parked event when the throttle window closes.
func (t *ThrottledEmitter) flush() {
	t.mu.Lock()
	p := t.pending
	t.pending = nil
	t.timer = nil
	if p != nil {
		t.lastEmit = time.Now()
	}
	t.mu.Unlock()
	if p != nil {
		t.sink(*p)
	}
}

func (t *ThrottledEmitter) stopTimerLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// throttleable reports whether the event carries a progress field and may be
// coalesced.
func (t *ThrottledEmitter) throttleable(event GenerationEvent) bool {
	switch event.Data.(type) {
	case ProgressPayload, *ProgressPayload:
		return true
	case SlideSubstepPayload, *SlideSubstepPayload:
		return true
	default:
		return false
	}
}
