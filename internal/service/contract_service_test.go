package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/flatlease/internal/apperr"
	"github.com/mmynk/flatlease/internal/event"
	"github.com/mmynk/flatlease/internal/models"
	"github.com/mmynk/flatlease/internal/storage"
)

func TestCreateContract(t *testing.T) {
	env, cleanup := setupTestServices(t)
	defer cleanup()
	ctx := context.Background()

	t.Run("starting today is active", func(t *testing.T) {
		req := env.contractRequest(today, models.Date(2024, time.June, 30))
		c, err := env.svc.Contracts.Create(ctx, req, admin)
		require.NoError(t, err)
		assert.Equal(t, models.ContractActive, c.Status)
		assert.False(t, c.DuesGenerated)
		assert.Equal(t, "admin", c.StatusChangedBy)
		assert.Contains(t, env.pub.types(), event.TypeContractCreated)
	})

	t.Run("future start is pending and dues generated on request", func(t *testing.T) {
		flat := env.addFlat(t, "2B", 900)
		req := env.contractRequest(models.Date(2024, time.February, 1), models.Date(2024, time.July, 31))
		req.FlatID = flat.ID
		req.GenerateDuesImmediately = true

		c, err := env.svc.Contracts.Create(ctx, req, admin)
		require.NoError(t, err)
		assert.Equal(t, models.ContractPending, c.Status)
		assert.True(t, c.DuesGenerated)

		dues, err := env.svc.Dues.ListByContract(ctx, c.ID)
		require.NoError(t, err)
		require.Len(t, dues, 6)
		assert.True(t, dues[0].DueDate.Equal(models.Date(2024, time.February, 15)))
		assert.Contains(t, dues[0].Description, "Monthly rent for February 2024")
		assert.Contains(t, env.pub.types(), event.TypeMonthlyDuesGenerated)
	})

	t.Run("validation", func(t *testing.T) {
		tests := []struct {
			name  string
			mod   func(r *CreateContractRequest)
			field string
		}{
			{"end before start", func(r *CreateContractRequest) { r.EndDate = r.StartDate }, "endDate"},
			{"start in past", func(r *CreateContractRequest) {
				r.StartDate = today.AddDate(0, 0, -1)
			}, "startDate"},
			{"day out of range", func(r *CreateContractRequest) { r.DayOfMonth = 32 }, "dayOfMonth"},
			{"zero rent", func(r *CreateContractRequest) { r.MonthlyRent = dec("0") }, "monthlyRent"},
			{"no tenant", func(r *CreateContractRequest) { r.TenantName = " " }, "tenantName"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				req := env.contractRequest(models.Date(2025, time.January, 1), models.Date(2025, time.December, 31))
				tt.mod(&req)
				_, err := env.svc.Contracts.Create(ctx, req, admin)
				require.Error(t, err)
				assert.True(t, apperr.IsValidation(err), "got %v", err)
				assert.Equal(t, tt.field, apperr.FieldOf(err))
			})
		}
	})

	t.Run("unknown flat", func(t *testing.T) {
		req := env.contractRequest(models.Date(2025, time.January, 1), models.Date(2025, time.December, 31))
		req.FlatID = "missing"
		_, err := env.svc.Contracts.Create(ctx, req, admin)
		assert.True(t, apperr.IsNotFound(err))
	})

	t.Run("inactive flat", func(t *testing.T) {
		f := &models.Flat{BuildingID: env.building.ID, Number: "9Z", Active: false}
		require.NoError(t, env.store.CreateFlat(ctx, f))
		req := env.contractRequest(models.Date(2025, time.January, 1), models.Date(2025, time.December, 31))
		req.FlatID = f.ID
		_, err := env.svc.Contracts.Create(ctx, req, admin)
		assert.True(t, apperr.IsConflict(err))
	})

	t.Run("missing actor", func(t *testing.T) {
		_, err := env.svc.Contracts.Create(ctx, env.contractRequest(models.Date(2025, time.January, 1), models.Date(2025, time.December, 31)), models.Actor{})
		assert.True(t, apperr.IsValidation(err))
	})
}

func TestCreateContractOverlap(t *testing.T) {
	env, cleanup := setupTestServices(t)
	defer cleanup()
	ctx := context.Background()

	_, err := env.svc.Contracts.Create(ctx, env.contractRequest(models.Date(2024, time.March, 1), models.Date(2024, time.August, 31)), admin)
	require.NoError(t, err)

	tests := []struct {
		name       string
		start, end time.Time
		wantErr    bool
	}{
		{"contained", models.Date(2024, time.April, 1), models.Date(2024, time.May, 1), true},
		{"starts on last day", models.Date(2024, time.August, 31), models.Date(2024, time.December, 31), true},
		{"ends on first day", models.Date(2024, time.January, 15), models.Date(2024, time.March, 1), true},
		{"covers", models.Date(2024, time.January, 15), models.Date(2024, time.December, 31), true},
		{"after", models.Date(2024, time.September, 1), models.Date(2024, time.December, 31), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := env.svc.Contracts.Create(ctx, env.contractRequest(tt.start, tt.end), admin)
			if tt.wantErr {
				assert.True(t, apperr.IsConflict(err), "got %v", err)
				return
			}
			require.NoError(t, err)
			// Free the range again for the remaining cases.
			_, err = env.svc.Contracts.Cancel(ctx, c.ID, CancelContractRequest{Reason: "test"}, admin)
			require.NoError(t, err)
		})
	}
}

func TestCreateContractConcurrentOverlap(t *testing.T) {
	env, cleanup := setupTestServices(t)
	defer cleanup()
	ctx := context.Background()

	const attempts = 5
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.Contracts.Create(ctx, env.contractRequest(models.Date(2024, time.March, 1), models.Date(2024, time.August, 31)), admin)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if apperr.IsConflict(err) {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, conflicts)
}

func TestRenewContract(t *testing.T) {
	env, cleanup := setupTestServices(t)
	defer cleanup()
	ctx := context.Background()

	current, err := env.svc.Contracts.Create(ctx, env.contractRequest(today, models.Date(2024, time.June, 30)), admin)
	require.NoError(t, err)

	t.Run("end date must move forward", func(t *testing.T) {
		_, err := env.svc.Contracts.Renew(ctx, current.ID, RenewContractRequest{NewEndDate: models.Date(2024, time.June, 30)}, admin)
		assert.True(t, apperr.IsValidation(err))
	})

	renewed, err := env.svc.Contracts.Renew(ctx, current.ID, RenewContractRequest{
		NewEndDate:              models.Date(2024, time.December, 31),
		NewMonthlyRent:          ptr(dec("1100")),
		GenerateDuesImmediately: true,
	}, admin)
	require.NoError(t, err)

	assert.Equal(t, models.ContractPending, renewed.Status)
	assert.True(t, renewed.StartDate.Equal(models.Date(2024, time.July, 1)))
	assert.Equal(t, current.ID, renewed.PreviousContractID)
	assert.True(t, renewed.MonthlyRent.Equal(dec("1100")))

	old, err := env.svc.Contracts.Get(ctx, current.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContractRenewed, old.Status)

	dues, err := env.svc.Dues.ListByContract(ctx, renewed.ID)
	require.NoError(t, err)
	require.Len(t, dues, 6)
	assert.True(t, dues[0].DueDate.Equal(models.Date(2024, time.July, 15)))
	assert.Contains(t, dues[0].Description, "(Extension)")
	assert.True(t, dues[0].DueAmount.Equal(dec("1100")))

	t.Run("renewed contract cannot be renewed again", func(t *testing.T) {
		_, err := env.svc.Contracts.Renew(ctx, current.ID, RenewContractRequest{}, admin)
		assert.True(t, apperr.IsConflict(err))
	})

	t.Run("history walks back to the original", func(t *testing.T) {
		chain, err := env.svc.Contracts.History(ctx, renewed.ID)
		require.NoError(t, err)
		require.Len(t, chain, 2)
		assert.Equal(t, renewed.ID, chain[0].ID)
		assert.Equal(t, current.ID, chain[1].ID)
	})
}

func TestCancelContract(t *testing.T) {
	env, cleanup := setupTestServices(t)
	defer cleanup()
	ctx := context.Background()

	req := env.contractRequest(today, models.Date(2024, time.June, 30))
	req.GenerateDuesImmediately = true
	c, err := env.svc.Contracts.Create(ctx, req, admin)
	require.NoError(t, err)

	// Pay the first due in full and half of the second.
	_, _, err = env.svc.Payments.Create(ctx, CreatePaymentRequest{FlatID: env.flat.ID, Amount: dec("1500")}, admin)
	require.NoError(t, err)

	t.Run("future effective date rejected", func(t *testing.T) {
		_, err := env.svc.Contracts.Cancel(ctx, c.ID, CancelContractRequest{Reason: "moving", EffectiveDate: today.AddDate(0, 0, 1)}, admin)
		assert.True(t, apperr.IsValidation(err))
	})

	cancelled, err := env.svc.Contracts.Cancel(ctx, c.ID, CancelContractRequest{
		Reason:           "moving abroad",
		CancelUnpaidDues: true,
		RefundDeposit:    true,
	}, admin)
	require.NoError(t, err)
	assert.Equal(t, models.ContractCancelled, cancelled.Status)
	assert.Equal(t, "admin", cancelled.CancelledBy)
	require.NotNil(t, cancelled.CancellationDate)
	assert.True(t, cancelled.CancellationDate.Equal(today))

	dues, err := env.svc.Dues.ListByContract(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, dues, 6)
	assert.Equal(t, models.DuePaid, dues[0].Status)
	for _, d := range dues[1:] {
		assert.Equal(t, models.DueCancelled, d.Status)
		assert.Contains(t, d.Description, models.CancellationNote)
	}

	t.Run("cancelling twice is a conflict", func(t *testing.T) {
		_, err := env.svc.Contracts.Cancel(ctx, c.ID, CancelContractRequest{Reason: "again"}, admin)
		assert.True(t, apperr.IsConflict(err))
	})
}

func TestModifyContract(t *testing.T) {
	env, cleanup := setupTestServices(t)
	defer cleanup()
	ctx := context.Background()

	c, err := env.svc.Contracts.Create(ctx, env.contractRequest(today, models.Date(2024, time.June, 30)), admin)
	require.NoError(t, err)

	t.Run("reason required", func(t *testing.T) {
		_, err := env.svc.Contracts.Modify(ctx, c.ID, ModifyContractRequest{NewMonthlyRent: ptr(dec("900"))}, admin)
		assert.True(t, apperr.IsValidation(err))
	})

	modified, err := env.svc.Contracts.Modify(ctx, c.ID, ModifyContractRequest{
		NewMonthlyRent: ptr(dec("900")),
		NewDayOfMonth:  ptr(1),
		Reason:         "rent reduction",
		RegenerateDues: true,
	}, admin)
	require.NoError(t, err)
	assert.Equal(t, models.ContractActive, modified.Status)
	assert.Equal(t, c.ID, modified.PreviousContractID)
	assert.True(t, modified.DuesGenerated)

	old, err := env.svc.Contracts.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContractSuperseded, old.Status)

	dues, err := env.svc.Dues.ListByContract(ctx, modified.ID)
	require.NoError(t, err)
	require.Len(t, dues, 5) // Feb 1 through Jun 1
	assert.True(t, dues[0].DueDate.Equal(models.Date(2024, time.February, 1)))
	assert.True(t, dues[0].DueAmount.Equal(dec("900")))
	assert.Contains(t, dues[0].Description, "(Modified)")

	t.Run("modify after dues generated is a conflict", func(t *testing.T) {
		_, err := env.svc.Contracts.Modify(ctx, modified.ID, ModifyContractRequest{Reason: "again"}, admin)
		assert.True(t, apperr.IsConflict(err))
	})

	t.Run("superseded contract cannot be modified", func(t *testing.T) {
		_, err := env.svc.Contracts.Modify(ctx, c.ID, ModifyContractRequest{Reason: "again"}, admin)
		assert.True(t, apperr.IsConflict(err))
	})
}

func TestNotifyExpiring(t *testing.T) {
	env, cleanup := setupTestServices(t)
	defer cleanup()
	ctx := context.Background()

	soon, err := env.svc.Contracts.Create(ctx, env.contractRequest(today, models.Date(2024, time.February, 5)), admin)
	require.NoError(t, err)

	req := env.contractRequest(today, models.Date(2024, time.January, 15))
	req.FlatID = env.addFlat(t, "2B", 900).ID
	urgent, err := env.svc.Contracts.Create(ctx, req, admin)
	require.NoError(t, err)

	req = env.contractRequest(today, models.Date(2024, time.June, 30))
	req.FlatID = env.addFlat(t, "3C", 900).ID
	_, err = env.svc.Contracts.Create(ctx, req, admin)
	require.NoError(t, err)

	res, err := env.svc.Contracts.NotifyExpiring(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Examined)
	assert.Equal(t, 2, res.Transitioned)

	got := make(map[string]event.ContractExpiringPayload)
	env.pub.mu.Lock()
	for _, evt := range env.pub.events {
		if evt.EventType != event.TypeContractExpiring {
			continue
		}
		var p event.ContractExpiringPayload
		require.NoError(t, evt.Decode(&p))
		got[p.ContractID] = p
	}
	env.pub.mu.Unlock()

	require.Len(t, got, 2)
	assert.Equal(t, 26, got[soon.ID].DaysLeft)
	assert.False(t, got[soon.ID].Urgent)
	assert.True(t, got[soon.ID].Renewable)
	assert.Equal(t, "2024-02-05", got[soon.ID].EndDate)
	assert.Equal(t, 5, got[urgent.ID].DaysLeft)
	assert.True(t, got[urgent.ID].Urgent)
}

func TestUpdateStatusesSweep(t *testing.T) {
	env, cleanup := setupTestServices(t)
	defer cleanup()
	ctx := context.Background()

	short, err := env.svc.Contracts.Create(ctx, env.contractRequest(today, models.Date(2024, time.January, 31)), admin)
	require.NoError(t, err)
	future, err := env.svc.Contracts.Create(ctx, env.contractRequest(models.Date(2024, time.February, 1), models.Date(2024, time.June, 30)), admin)
	require.NoError(t, err)
	require.Equal(t, models.ContractPending, future.Status)

	env.setToday(models.Date(2024, time.February, 1))
	res, err := env.svc.Contracts.UpdateStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Transitioned)
	assert.Zero(t, res.Failed)

	got, err := env.svc.Contracts.Get(ctx, short.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContractExpired, got.Status)
	assert.Equal(t, models.SystemActor.String(), got.StatusChangedBy)

	got, err = env.svc.Contracts.Get(ctx, future.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContractActive, got.Status)

	res, err = env.svc.Contracts.UpdateStatuses(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Transitioned, "rerunning the sweep changes nothing")
}

func TestContractQueries(t *testing.T) {
	env, cleanup := setupTestServices(t)
	defer cleanup()
	ctx := context.Background()

	expiring, err := env.svc.Contracts.Create(ctx, env.contractRequest(today, models.Date(2024, time.February, 5)), admin)
	require.NoError(t, err)

	other := env.addFlat(t, "2B", 800)
	req := env.contractRequest(today, models.Date(2024, time.February, 20))
	req.FlatID = other.ID
	req.TenantName = "Grace Hopper"
	req.GenerateDuesImmediately = true
	late, err := env.svc.Contracts.Create(ctx, req, admin)
	require.NoError(t, err)

	env.setToday(models.Date(2024, time.January, 20))

	t.Run("expiring", func(t *testing.T) {
		got, err := env.svc.Contracts.ListExpiring(ctx, 31)
		require.NoError(t, err)
		assert.Len(t, got, 2)

		got, err = env.svc.Contracts.ListExpiring(ctx, 20)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, expiring.ID, got[0].ID)
	})

	t.Run("overdue and renewable", func(t *testing.T) {
		withArrears, err := env.svc.Contracts.ListWithOverdueDues(ctx)
		require.NoError(t, err)
		require.Len(t, withArrears, 1)
		assert.Equal(t, late.ID, withArrears[0].ID)

		renewable, err := env.svc.Contracts.ListRenewable(ctx, 60)
		require.NoError(t, err)
		require.Len(t, renewable, 1)
		assert.Equal(t, expiring.ID, renewable[0].ID)
	})

	t.Run("search and building paging", func(t *testing.T) {
		res, err := env.svc.Contracts.SearchByTenantName(ctx, "grace", storage.Page{})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Total)

		page, err := env.svc.Contracts.ListByBuilding(ctx, env.building.ID, storage.Page{Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, 2, page.Total)
		assert.Len(t, page.Items, 1)
	})

	t.Run("statistics", func(t *testing.T) {
		stats, err := env.svc.Contracts.Statistics(ctx, env.building.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.CountByStatus[models.ContractActive])
		assert.True(t, stats.TotalActiveRent.Equal(dec("2000")))
		assert.Equal(t, 2, stats.FlatsWithContract)
	})

	t.Run("active contract for flat", func(t *testing.T) {
		got, err := env.svc.Contracts.ActiveForFlat(ctx, other.ID)
		require.NoError(t, err)
		assert.Equal(t, late.ID, got.ID)
	})
}
