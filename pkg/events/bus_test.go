package events

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_SyncHandlersRunInRegistrationOrder(t *testing.T) {
	bus := NewBus()

	var order []int
	bus.Subscribe(TypeProgress, func(GenerationEvent) { order = append(order, 1) })
	bus.Subscribe(TypeProgress, func(GenerationEvent) { order = append(order, 2) })
	bus.Subscribe(TypeProgress, func(GenerationEvent) { order = append(order, 3) })

	bus.Publish(context.Background(), New(TypeProgress, ProgressPayload{Progress: 10}))

	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()

	var count int
	unsubscribe := bus.Subscribe(TypeSlideStarted, func(GenerationEvent) { count++ })
	unsubscribe()
	// Double unsubscribe is a no-op.
	unsubscribe()

	for range 5 {
		bus.Publish(context.Background(), New(TypeSlideStarted, SlideStartedPayload{SlideIndex: 0}))
	}

	assert.Zero(t, count)
}

func TestBus_PanickingHandlerIsIsolated(t *testing.T) {
	bus := NewBus()

	var after bool
	bus.Subscribe(TypeError, func(GenerationEvent) { panic("boom") })
	bus.Subscribe(TypeError, func(GenerationEvent) { after = true })

	require.NotPanics(t, func() {
		bus.Publish(context.Background(), New(TypeError, ErrorPayload{Error: "x"}))
	})
	assert.True(t, after, "handler after the panicking one must still run")
}

func TestBus_AsyncHandlersRunConcurrentlyAndAreAwaited(t *testing.T) {
	bus := NewBus()

	const n = 8
	var started sync.WaitGroup
	started.Add(n)
	release := make(chan struct{})
	var done atomic.Int32

	for range n {
		bus.SubscribeAsync(TypeDeckComplete, func(context.Context, GenerationEvent) {
			started.Done()
			<-release
			done.Add(1)
		})
	}

	// All async handlers must be in flight at once; release them only after
	// each has started, which would deadlock under sequential dispatch.
	go func() {
		started.Wait()
		close(release)
	}()

	bus.Publish(context.Background(), New(TypeDeckComplete, DeckCompletePayload{DeckID: "d"}))
	assert.Equal(t, int32(n), done.Load(), "Publish must await all async handlers")
}

func TestBus_WildcardReceivesEveryType(t *testing.T) {
	bus := NewBus()

	var seen []string
	bus.SubscribeAll(func(e GenerationEvent) { seen = append(seen, e.Type) })

	bus.Publish(context.Background(), New(TypeStarted, StartedPayload{Message: "go"}))
	bus.Publish(context.Background(), New(TypeSlideGenerated, SlideGeneratedPayload{SlideIndex: 1}))

	assert.Equal(t, []string{TypeStarted, TypeSlideGenerated}, seen)
}
