package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/flatlease/internal/event"
)

func TestHandleEvent(t *testing.T) {
	m := New()
	ctx := context.Background()

	require.NoError(t, m.HandleEvent(ctx, event.NewMonthlyDuesGenerated("system", event.MonthlyDuesGeneratedPayload{
		BuildingID: "b1", ContractID: "c1", DueCount: 12,
	})))
	require.NoError(t, m.HandleEvent(ctx, event.NewMonthlyDuesGenerated("system", event.MonthlyDuesGeneratedPayload{
		BuildingID: "b1", DueCount: 4,
	})))
	require.NoError(t, m.HandleEvent(ctx, event.NewPaymentRecorded("clerk", event.PaymentRecordedPayload{
		PaymentID: "p1", Amount: decimal.RequireFromString("1200.50"),
	})))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.eventsTotal.WithLabelValues(event.TypeMonthlyDuesGenerated)))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.duesGenerated.WithLabelValues("contract")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.duesGenerated.WithLabelValues("building")))
	assert.Equal(t, 1200.5, testutil.ToFloat64(m.paymentsAmount))
}

func TestObserveSweep(t *testing.T) {
	m := New()
	m.ObserveSweep("overdue_dues", 3, 1, 20*time.Millisecond, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.sweepRuns.WithLabelValues("overdue_dues", "ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.sweepTransitions.WithLabelValues("overdue_dues")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sweepFailures.WithLabelValues("overdue_dues")))
}

type busTotals struct{ published, dropped uint64 }

func (b busTotals) Published() uint64 { return b.published }
func (b busTotals) Dropped() uint64   { return b.dropped }

func TestWatchBus(t *testing.T) {
	m := New()
	m.WatchBus(busTotals{published: 7, dropped: 2})

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	got := make(map[string]float64)
	for _, f := range families {
		if len(f.GetMetric()) == 1 && f.GetMetric()[0].GetCounter() != nil {
			got[f.GetName()] = f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	assert.Equal(t, 7.0, got["flatlease_events_published_total"])
	assert.Equal(t, 2.0, got["flatlease_events_dropped_total"])
}
