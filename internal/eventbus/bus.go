// Package eventbus delivers committed domain events to in-process
// subscribers: notifications, metrics and the live event feed.
package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/mmynk/flatlease/internal/event"
)

// Handler processes a domain event.
type Handler interface {
	HandleEvent(ctx context.Context, evt event.DomainEvent) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, evt event.DomainEvent) error

func (f HandlerFunc) HandleEvent(ctx context.Context, evt event.DomainEvent) error {
	return f(ctx, evt)
}

// Bus queues events in a bounded buffer and hands them to subscribers from a
// single goroutine. Every subscriber therefore sees the events of one flat
// in the order their transactions committed, and a handler never runs
// concurrently with itself.
type Bus struct {
	mu          sync.RWMutex
	subscribers []subscription
	events      chan event.DomainEvent
	logger      *slog.Logger

	seq     atomic.Uint64
	dropped atomic.Uint64

	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

type subscription struct {
	name    string
	handler Handler
	types   map[string]bool // nil accepts every type
}

func (s subscription) wants(eventType string) bool {
	return s.types == nil || s.types[eventType]
}

// New creates a Bus buffering up to bufSize undelivered events.
func New(bufSize int, logger *slog.Logger) *Bus {
	if bufSize < 1 {
		bufSize = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		events: make(chan event.DomainEvent, bufSize),
		logger: logger,
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Subscribe registers a named handler for the given event types, or for all
// events when none are given.
func (b *Bus) Subscribe(name string, h Handler, types ...string) {
	sub := subscription{name: name, handler: h}
	if len(types) > 0 {
		sub.types = make(map[string]bool, len(types))
		for _, t := range types {
			sub.types[t] = true
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, sub)
}

// Publish stamps evt with the next sequence number and queues it. It never
// blocks the committing service: with a full buffer the event is dropped and
// counted.
func (b *Bus) Publish(ctx context.Context, evt event.DomainEvent) {
	evt.Sequence = b.seq.Add(1)
	select {
	case b.events <- evt:
	default:
		b.dropped.Add(1)
		b.logger.Warn("Event dropped, buffer full", "event_type", evt.EventType, "event_id", evt.ID, "sequence", evt.Sequence)
	}
}

// Published returns how many events were offered to the bus.
func (b *Bus) Published() uint64 { return b.seq.Load() }

// Dropped returns how many events were lost to a full buffer.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

// Start runs the delivery goroutine until ctx is cancelled or Stop is
// called. Events still buffered at that point are delivered before it exits.
func (b *Bus) Start(ctx context.Context) {
	go func() {
		defer close(b.done)
		for {
			select {
			case evt := <-b.events:
				b.dispatch(ctx, evt)
			case <-ctx.Done():
				b.drain(context.WithoutCancel(ctx))
				return
			case <-b.quit:
				b.drain(ctx)
				return
			}
		}
	}()
}

// Stop drains the buffer and waits for delivery to finish.
func (b *Bus) Stop() {
	b.stopOnce.Do(func() { close(b.quit) })
	<-b.done
}

func (b *Bus) drain(ctx context.Context) {
	for {
		select {
		case evt := <-b.events:
			b.dispatch(ctx, evt)
		default:
			return
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, evt event.DomainEvent) {
	b.mu.RLock()
	subs := b.subscribers
	b.mu.RUnlock()

	for _, s := range subs {
		if !s.wants(evt.EventType) {
			continue
		}
		if err := s.handler.HandleEvent(ctx, evt); err != nil {
			b.logger.Error("Event handler failed", "handler", s.name, "event_type", evt.EventType, "sequence", evt.Sequence, "error", err)
		}
	}
}
