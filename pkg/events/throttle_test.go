package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collector is a thread-safe event sink for throttle tests.
type collector struct {
	mu     sync.Mutex
	events []GenerationEvent
}

func (c *collector) sink(e GenerationEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *collector) snapshot() []GenerationEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]GenerationEvent, len(c.events))
	copy(out, c.events)
	return out
}

func TestThrottledEmitter_PriorityEventsBypassThrottle(t *testing.T) {
	c := &collector{}
	emitter := NewThrottledEmitter(c.sink, time.Hour)

	for i := range 5 {
		emitter.Emit(New(TypeSlideStarted, SlideStartedPayload{SlideIndex: i}))
	}

	assert.Len(t, c.snapshot(), 5, "priority events are never coalesced")
}

func TestThrottledEmitter_CoalescesProgressWithinWindow(t *testing.T) {
	c := &collector{}
	emitter := NewThrottledEmitter(c.sink, 50*time.Millisecond)

	// First one passes (window open), the rest coalesce into the latest slot.
	for i := range 10 {
		emitter.Emit(New(TypeProgress, ProgressPayload{Progress: i * 10}))
	}

	got := c.snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].Data.(ProgressPayload).Progress)

	// When the window closes, the most recent suppressed event is flushed.
	assert.Eventually(t, func() bool {
		evts := c.snapshot()
		return len(evts) == 2 && evts[1].Data.(ProgressPayload).Progress == 90
	}, time.Second, 5*time.Millisecond)
}

func TestThrottledEmitter_FlushesPendingBeforePriority(t *testing.T) {
	c := &collector{}
	emitter := NewThrottledEmitter(c.sink, time.Hour)

	emitter.Emit(New(TypeProgress, ProgressPayload{Progress: 10})) // emitted
	emitter.Emit(New(TypeProgress, ProgressPayload{Progress: 20})) // parked
	emitter.Emit(New(TypeSlideGenerated, SlideGeneratedPayload{SlideIndex: 0}))

	got := c.snapshot()
	require.Len(t, got, 3)
	assert.Equal(t, TypeProgress, got[1].Type, "parked progress flushes ahead of the priority event")
	assert.Equal(t, 20, got[1].Data.(ProgressPayload).Progress)
	assert.Equal(t, TypeSlideGenerated, got[2].Type)
}

func TestThrottledEmitter_CloseFlushesPending(t *testing.T) {
	c := &collector{}
	emitter := NewThrottledEmitter(c.sink, time.Hour)

	emitter.Emit(New(TypeProgress, ProgressPayload{Progress: 10}))
	emitter.Emit(New(TypeSlideSubstep, SlideSubstepPayload{SlideIndex: 0, Step: StepSaving, Progress: 80}))
	emitter.Close()

	got := c.snapshot()
	require.Len(t, got, 2)
	assert.Equal(t, TypeSlideSubstep, got[1].Type)
}

func TestGenerationEvent_MarshalFlattensPayload(t *testing.T) {
	e := New(TypeSlideSkipped, SlideSkippedPayload{SlideIndex: 2, Reason: "ai_invalid_response"})

	raw, err := json.Marshal(e)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, "slide_skipped", m["type"])
	assert.Equal(t, float64(2), m["slide_index"])
	assert.Equal(t, "ai_invalid_response", m["reason"])
	assert.NotEmpty(t, m["timestamp"])
	assert.NotContains(t, m, "data")
}
