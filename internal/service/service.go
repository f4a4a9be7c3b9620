// Package service implements the contract lifecycle, due generation and
// payment allocation operations on top of a storage.Store.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mmynk/flatlease/internal/apperr"
	"github.com/mmynk/flatlease/internal/event"
	"github.com/mmynk/flatlease/internal/models"
	"github.com/mmynk/flatlease/internal/storage"
)

// Publisher receives domain events after their transaction commits.
type Publisher interface {
	Publish(ctx context.Context, evt event.DomainEvent)
}

// Clock returns the current time. Tests replace it to pin "today".
type Clock func() time.Time

// Option configures Services.
type Option func(*core)

// WithClock overrides the wall clock.
func WithClock(c Clock) Option {
	return func(cr *core) { cr.now = c }
}

// WithMonthlyDueDay sets the day of month used by automatic building-wide
// generation.
func WithMonthlyDueDay(day int) Option {
	return func(cr *core) { cr.monthlyDueDay = day }
}

// core holds the dependencies shared by every service.
type core struct {
	store         storage.Store
	pub           Publisher
	now           Clock
	locks         *flatLocks
	gen           *DueGenerator
	monthlyDueDay int
}

func (c *core) today() time.Time {
	return models.DateOf(c.now())
}

// Services bundles the services so they share one clock, publisher and
// per-flat lock table.
type Services struct {
	Flats     *FlatService
	Contracts *ContractService
	Dues      *DueService
	Payments  *PaymentService
}

// New wires the services over store. A nil publisher discards events.
func New(store storage.Store, pub Publisher, opts ...Option) *Services {
	if pub == nil {
		pub = discard{}
	}
	c := &core{
		store:         store,
		pub:           pub,
		now:           time.Now,
		locks:         newFlatLocks(),
		monthlyDueDay: 15,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.gen = &DueGenerator{now: c.now}

	return &Services{
		Flats:     &FlatService{core: c},
		Contracts: &ContractService{core: c},
		Dues:      &DueService{core: c},
		Payments:  &PaymentService{core: c},
	}
}

type discard struct{}

func (discard) Publish(context.Context, event.DomainEvent) {}

// outbox collects events inside a transaction so they can be published once
// it commits.
type outbox struct {
	events []event.DomainEvent
}

func (o *outbox) add(evts ...event.DomainEvent) {
	o.events = append(o.events, evts...)
}

func (o *outbox) flush(ctx context.Context, pub Publisher) {
	for _, evt := range o.events {
		pub.Publish(ctx, evt)
	}
	o.events = nil
}

// SweepResult reports the outcome of one sweep over a candidate set.
// Per-entity failures are logged and counted; they do not stop the sweep.
type SweepResult struct {
	Examined     int
	Transitioned int
	Failed       int
}

// flatLocks serializes check-then-write sequences per flat.
type flatLocks struct {
	mu    sync.Mutex
	locks map[string]*flatLock
}

type flatLock struct {
	mu   sync.Mutex
	refs int
}

func newFlatLocks() *flatLocks {
	return &flatLocks{locks: make(map[string]*flatLock)}
}

// lock blocks until the flat's lock is held and returns its release func.
func (l *flatLocks) lock(flatID string) func() {
	l.mu.Lock()
	fl, ok := l.locks[flatID]
	if !ok {
		fl = &flatLock{}
		l.locks[flatID] = fl
	}
	fl.refs++
	l.mu.Unlock()

	fl.mu.Lock()
	return func() {
		fl.mu.Unlock()
		l.mu.Lock()
		fl.refs--
		if fl.refs == 0 {
			delete(l.locks, flatID)
		}
		l.mu.Unlock()
	}
}

// notFound maps a wrapped storage.ErrNotFound to an apperr not-found error.
func notFound(err error, entity, id string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound(entity, id)
	}
	return err
}

func requireActor(actor models.Actor) error {
	if actor.IsZero() {
		return apperr.Validation("actor", "actor is required")
	}
	return nil
}
