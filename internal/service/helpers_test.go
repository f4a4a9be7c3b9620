package service

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/flatlease/internal/event"
	"github.com/mmynk/flatlease/internal/models"
	"github.com/mmynk/flatlease/internal/storage/sqlite"
)

var (
	admin = models.Actor{ID: "u-1", Username: "admin"}
	// today is the pinned date every test runs on.
	today = models.Date(2024, time.January, 10)
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (r *recordingPublisher) Publish(_ context.Context, evt event.DomainEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventType
	}
	return out
}

type testEnv struct {
	svc      *Services
	store    *sqlite.SQLiteStore
	pub      *recordingPublisher
	clock    *time.Time
	building *models.Building
	flat     *models.Flat
}

// setupTestServices creates services over a temporary database with one
// building and one active flat, and a clock pinned to today.
func setupTestServices(t *testing.T) (*testEnv, func()) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpFile.Close()

	store, err := sqlite.New(tmpFile.Name())
	if err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("failed to create store: %v", err)
	}

	now := today.Add(9 * time.Hour)
	env := &testEnv{store: store, pub: &recordingPublisher{}, clock: &now}
	env.svc = New(store, env.pub, WithClock(func() time.Time { return *env.clock }))

	ctx := context.Background()
	env.building = &models.Building{Name: "Maple Court", DefaultMonthlyFee: decimal.NewFromInt(150)}
	require.NoError(t, env.svc.Flats.CreateBuilding(ctx, env.building, admin))
	env.flat = &models.Flat{BuildingID: env.building.ID, Number: "1A", MonthlyRent: decimal.NewFromInt(1000), Active: true, TenantEmail: "ada@example.com"}
	require.NoError(t, env.svc.Flats.CreateFlat(ctx, env.flat, admin))

	cleanup := func() {
		store.Close()
		os.Remove(tmpFile.Name())
	}
	return env, cleanup
}

// setToday moves the pinned clock.
func (e *testEnv) setToday(d time.Time) {
	*e.clock = d.Add(9 * time.Hour)
}

func (e *testEnv) addFlat(t *testing.T, number string, rent int64) *models.Flat {
	t.Helper()
	f := &models.Flat{BuildingID: e.building.ID, Number: number, MonthlyRent: decimal.NewFromInt(rent), Active: true}
	require.NoError(t, e.svc.Flats.CreateFlat(context.Background(), f, admin))
	return f
}

func (e *testEnv) contractRequest(start, end time.Time) CreateContractRequest {
	return CreateContractRequest{
		FlatID:          e.flat.ID,
		TenantName:      "Ada Lovelace",
		TenantEmail:     "ada@example.com",
		StartDate:       start,
		EndDate:         end,
		MonthlyRent:     decimal.NewFromInt(1000),
		SecurityDeposit: decimal.NewFromInt(2000),
		DayOfMonth:      15,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr[T any](v T) *T { return &v }
