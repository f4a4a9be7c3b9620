package eventbus

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mmynk/flatlease/internal/event"
)

type recorder struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (r *recorder) HandleEvent(_ context.Context, evt event.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func TestBusDeliversInOrder(t *testing.T) {
	bus := New(16, nil)
	rec := &recorder{}
	bus.Subscribe("recorder", rec)
	bus.Subscribe("failing", HandlerFunc(func(context.Context, event.DomainEvent) error {
		return errors.New("boom")
	}))

	bus.Start(context.Background())
	for i := 0; i < 5; i++ {
		bus.Publish(context.Background(), event.NewContractStatusChanged("system", event.ContractStatusChangedPayload{
			ContractID: "c", From: "PENDING", To: "ACTIVE",
		}))
	}
	bus.Stop()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Len(t, rec.events, 5)
	for _, evt := range rec.events {
		assert.Equal(t, event.TypeContractStatusChanged, evt.EventType)
	}
}

func TestBusDropsWhenFull(t *testing.T) {
	bus := New(1, nil)
	rec := &recorder{}
	bus.Subscribe("recorder", rec)

	// Not started: the second publish finds the buffer full.
	bus.Publish(context.Background(), event.NewExpenseRecorded("u", event.ExpenseRecordedPayload{ExpenseID: "e1"}))
	bus.Publish(context.Background(), event.NewExpenseRecorded("u", event.ExpenseRecordedPayload{ExpenseID: "e2"}))

	bus.Start(context.Background())
	bus.Stop()

	assert.Len(t, rec.events, 1)
	var p event.ExpenseRecordedPayload
	assert.NoError(t, rec.events[0].Decode(&p))
	assert.Equal(t, "e1", p.ExpenseID)
	assert.Equal(t, uint64(1), rec.events[0].Sequence)
	assert.Equal(t, uint64(2), bus.Published())
	assert.Equal(t, uint64(1), bus.Dropped())
}

func TestSubscribeFiltersByType(t *testing.T) {
	bus := New(16, nil)
	all := &recorder{}
	payments := &recorder{}
	bus.Subscribe("all", all)
	bus.Subscribe("payments", payments, event.TypePaymentRecorded)

	bus.Start(context.Background())
	bus.Publish(context.Background(), event.NewContractStatusChanged("system", event.ContractStatusChangedPayload{ContractID: "c"}))
	bus.Publish(context.Background(), event.NewPaymentRecorded("clerk", event.PaymentRecordedPayload{PaymentID: "p"}))
	bus.Stop()

	assert.Len(t, all.events, 2)
	assert.Equal(t, uint64(1), all.events[0].Sequence)
	assert.Equal(t, uint64(2), all.events[1].Sequence)
	if assert.Len(t, payments.events, 1) {
		assert.Equal(t, event.TypePaymentRecorded, payments.events[0].EventType)
		assert.Equal(t, uint64(2), payments.events[0].Sequence)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	bus := New(4, nil)
	bus.Start(context.Background())
	bus.Stop()
	bus.Stop()
}
