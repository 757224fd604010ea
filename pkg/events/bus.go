package events

import (
	"context"
	"log/slog"
	"sync"
)

// Handler is a synchronous subscriber. Handlers for one event type run
// sequentially in registration order on the publisher's goroutine.
type Handler func(GenerationEvent)

// AsyncHandler is an asynchronous subscriber. All async handlers for an
// event run concurrently; Publish waits for them collectively.
type AsyncHandler func(context.Context, GenerationEvent)

// Bus is an in-process publish/subscribe hub keyed by event type.
//
// Subscriber failures are isolated: a panicking handler is logged and does
// not affect other handlers or the publisher. Handler lists are copied
// before iteration so subscriptions may change during dispatch.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	sync     map[string][]subscription
	async    map[string][]asyncSubscription
	wildcard []subscription // subscribers to every event type
}

type subscription struct {
	id      int
	handler Handler
}

type asyncSubscription struct {
	id      int
	handler AsyncHandler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		sync:  make(map[string][]subscription),
		async: make(map[string][]asyncSubscription),
	}
}

// Subscribe registers a synchronous handler for one event type and returns
// an unsubscribe function. Unsubscribing twice is a no-op.
func (b *Bus) Subscribe(eventType string, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.sync[eventType] = append(b.sync[eventType], subscription{id: id, handler: h})
	return func() { b.removeSync(eventType, id) }
}

// SubscribeAll registers a synchronous handler invoked for every event type.
func (b *Bus) SubscribeAll(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.wildcard = append(b.wildcard, subscription{id: id, handler: h})
	return func() { b.removeWildcard(id) }
}

// SubscribeAsync registers an asynchronous handler for one event type.
func (b *Bus) SubscribeAsync(eventType string, h AsyncHandler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.async[eventType] = append(b.async[eventType], asyncSubscription{id: id, handler: h})
	return func() { b.removeAsync(eventType, id) }
}

// Publish dispatches an event: sync handlers first, sequentially, in
// registration order (wildcard subscribers after typed ones); then all async
// handlers concurrently, awaited collectively before Publish returns.
func (b *Bus) Publish(ctx context.Context, event GenerationEvent) {
	b.mu.RLock()
	syncSubs := make([]subscription, 0, len(b.sync[event.Type])+len(b.wildcard))
	syncSubs = append(syncSubs, b.sync[event.Type]...)
	syncSubs = append(syncSubs, b.wildcard...)
	asyncSubs := make([]asyncSubscription, len(b.async[event.Type]))
	copy(asyncSubs, b.async[event.Type])
	b.mu.RUnlock()

	for _, sub := range syncSubs {
		b.dispatch(sub.handler, event)
	}

	if len(asyncSubs) == 0 {
		return
	}
	var wg sync.WaitGroup
	for _, sub := range asyncSubs {
		wg.Add(1)
		go func(h AsyncHandler) {
			defer wg.Done()
			defer b.recoverHandler(event)
			h(ctx, event)
		}(sub.handler)
	}
	wg.Wait()
}

// dispatch runs one sync handler with panic isolation.
func (b *Bus) dispatch(h Handler, event GenerationEvent) {
	defer b.recoverHandler(event)
	h(event)
}

func (b *Bus) recoverHandler(event GenerationEvent) {
	if r := recover(); r != nil {
		slog.Error("Event handler panicked",
			"event_type", event.Type, "panic", r)
	}
}

func (b *Bus) removeSync(eventType string, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.sync[eventType]
	for i, s := range subs {
		if s.id == id {
			b.sync[eventType] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

func (b *Bus) removeWildcard(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.wildcard {
		if s.id == id {
			b.wildcard = append(b.wildcard[:i:i], b.wildcard[i+1:]...)
			return
		}
	}
}

func (b *Bus) removeAsync(eventType string, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.async[eventType]
	for i, s := range subs {
		if s.id == id {
			b.async[eventType] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}
