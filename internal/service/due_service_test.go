package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/flatlease/internal/apperr"
	"github.com/mmynk/flatlease/internal/models"
)

func (e *testEnv) adHocDue(t *testing.T, flatID string, date time.Time, amount string) *models.MonthlyDue {
	t.Helper()
	d, err := e.svc.Dues.CreateAdHoc(context.Background(), AdHocDueRequest{
		FlatID:   flatID,
		DueDate:  date,
		BaseRent: dec(amount),
	}, admin)
	require.NoError(t, err)
	return d
}

func TestGenerateForContractIsIdempotent(t *testing.T) {
	env, cleanup := setupTestServices(t)
	defer cleanup()
	ctx := context.Background()

	req := env.contractRequest(models.Date(2024, time.January, 31), models.Date(2024, time.April, 30))
	req.DayOfMonth = 31
	c, err := env.svc.Contracts.Create(ctx, req, admin)
	require.NoError(t, err)

	preview, err := env.svc.Dues.PreviewForContract(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, preview, 4)

	dues, err := env.svc.Dues.GenerateForContract(ctx, c.ID, admin)
	require.NoError(t, err)
	require.Len(t, dues, 4)

	want := []time.Time{
		models.Date(2024, time.January, 31),
		models.Date(2024, time.February, 29),
		models.Date(2024, time.March, 31),
		models.Date(2024, time.April, 30),
	}
	for i, d := range dues {
		assert.True(t, d.DueDate.Equal(want[i]), "due %d: got %s", i, models.FormatDate(d.DueDate))
		assert.True(t, d.DueDate.Equal(preview[i].DueDate))
		assert.Equal(t, models.DueUnpaid, d.Status)
		assert.Equal(t, c.ID, d.ContractID)
	}

	_, err = env.svc.Dues.GenerateForContract(ctx, c.ID, admin)
	assert.True(t, apperr.IsConflict(err), "second generation must be rejected, got %v", err)

	stored, err := env.svc.Dues.ListByContract(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 4)

	got, err := env.svc.Contracts.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.DuesGenerated)
}

func TestGenerateForContractRequiresLiveContract(t *testing.T) {
	env, cleanup := setupTestServices(t)
	defer cleanup()
	ctx := context.Background()

	c, err := env.svc.Contracts.Create(ctx, env.contractRequest(today, models.Date(2024, time.March, 31)), admin)
	require.NoError(t, err)
	_, err = env.svc.Contracts.Cancel(ctx, c.ID, CancelContractRequest{Reason: "void"}, admin)
	require.NoError(t, err)

	_, err = env.svc.Dues.GenerateForContract(ctx, c.ID, admin)
	assert.True(t, apperr.IsConflict(err))
}

func TestGenerateForBuilding(t *testing.T) {
	env, cleanup := setupTestServices(t)
	defer cleanup()
	ctx := context.Background()

	env.addFlat(t, "1B", 800)
	env.addFlat(t, "1C", 0)

	req := BuildingDuesRequest{
		BuildingID: env.building.ID,
		Amount:     dec("150"),
		DueDate:    models.Date(2024, time.February, 1),
	}
	first, err := env.svc.Dues.GenerateForBuilding(ctx, req, admin)
	require.NoError(t, err)
	assert.Len(t, first.Created, 3)
	assert.Zero(t, first.Skipped)
	for _, d := range first.Created {
		assert.Equal(t, models.DueSourceBuilding, d.Source)
		assert.Empty(t, d.ContractID)
		assert.Equal(t, "Monthly fee for February 2024", d.Description)
	}

	second, err := env.svc.Dues.GenerateForBuilding(ctx, req, admin)
	require.NoError(t, err)
	assert.Empty(t, second.Created)
	assert.Equal(t, 3, second.Skipped)

	t.Run("flat rent with fallback", func(t *testing.T) {
		res, err := env.svc.Dues.GenerateForBuilding(ctx, BuildingDuesRequest{
			BuildingID:     env.building.ID,
			DueDate:        models.Date(2024, time.March, 1),
			UseFlatRent:    true,
			FallbackAmount: dec("500"),
		}, admin)
		require.NoError(t, err)
		require.Len(t, res.Created, 3)

		var amounts []string
		for _, d := range res.Created {
			amounts = append(amounts, d.DueAmount.String())
		}
		assert.ElementsMatch(t, []string{"1000", "800", "500"}, amounts)
	})

	t.Run("unpriced flats are counted", func(t *testing.T) {
		res, err := env.svc.Dues.GenerateForBuilding(ctx, BuildingDuesRequest{
			BuildingID:  env.building.ID,
			DueDate:     models.Date(2024, time.April, 1),
			UseFlatRent: true,
		}, admin)
		require.NoError(t, err)
		assert.Len(t, res.Created, 2)
		assert.Equal(t, 1, res.Unpriced)
	})

	t.Run("validation", func(t *testing.T) {
		_, err := env.svc.Dues.GenerateForBuilding(ctx, BuildingDuesRequest{BuildingID: env.building.ID, DueDate: today}, admin)
		assert.True(t, apperr.IsValidation(err))

		_, err = env.svc.Dues.GenerateForBuilding(ctx, BuildingDuesRequest{BuildingID: "missing", Amount: dec("1"), DueDate: today}, admin)
		assert.True(t, apperr.IsNotFound(err))
	})
}

func TestGenerateMonthly(t *testing.T) {
	env, cleanup := setupTestServices(t)
	defer cleanup()
	ctx := context.Background()

	free := &models.Building{Name: "No Fee House"}
	require.NoError(t, env.svc.Flats.CreateBuilding(ctx, free, admin))

	res, err := env.svc.Dues.GenerateMonthly(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Examined)
	assert.Equal(t, 1, res.Transitioned)

	dues, err := env.svc.Dues.ListByFlat(ctx, env.flat.ID)
	require.NoError(t, err)
	require.Len(t, dues, 1)
	assert.True(t, dues[0].DueDate.Equal(models.Date(2024, time.January, 15)))
	assert.True(t, dues[0].DueAmount.Equal(dec("150")))

	res, err = env.svc.Dues.GenerateMonthly(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Transitioned)
	assert.Zero(t, res.Failed)
}

func TestUpdateOverdueStatuses(t *testing.T) {
	env, cleanup := setupTestServices(t)
	defer cleanup()
	ctx := context.Background()

	req := env.contractRequest(today, models.Date(2024, time.June, 30))
	req.GenerateDuesImmediately = true
	c, err := env.svc.Contracts.Create(ctx, req, admin)
	require.NoError(t, err)

	// Settles the January due before it can go overdue.
	_, _, err = env.svc.Payments.Create(ctx, CreatePaymentRequest{FlatID: env.flat.ID, Amount: dec("1000")}, admin)
	require.NoError(t, err)

	env.setToday(models.Date(2024, time.March, 15))
	res, err := env.svc.Dues.UpdateOverdueStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Transitioned, "only February is past due and unpaid")

	dues, err := env.svc.Dues.ListByContract(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DuePaid, dues[0].Status)
	assert.Equal(t, models.DueOverdue, dues[1].Status)
	assert.Equal(t, models.DueUnpaid, dues[2].Status, "a due dated today is not overdue")

	res, err = env.svc.Dues.UpdateOverdueStatuses(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Transitioned)
}

func TestCollectionRate(t *testing.T) {
	env, cleanup := setupTestServices(t)
	defer cleanup()
	ctx := context.Background()

	from, to := models.Date(2024, time.January, 1), models.Date(2024, time.January, 31)

	rate, err := env.svc.Dues.CollectionRate(ctx, env.building.ID, from, to)
	require.NoError(t, err)
	assert.Equal(t, 100.0, rate, "no dues in range")

	var dues []*models.MonthlyDue
	for day := 1; day <= 5; day++ {
		dues = append(dues, env.adHocDue(t, env.flat.ID, models.Date(2024, time.January, day), "100"))
	}
	_, _, err = env.svc.Payments.Create(ctx, CreatePaymentRequest{FlatID: env.flat.ID, Amount: dec("200")}, admin)
	require.NoError(t, err)

	rate, err = env.svc.Dues.CollectionRate(ctx, env.building.ID, from, to)
	require.NoError(t, err)
	assert.InDelta(t, 40.0, rate, 0.001)

	for _, d := range dues[2:] {
		_, err := env.svc.Dues.Cancel(ctx, d.ID, admin)
		require.NoError(t, err)
	}
	rate, err = env.svc.Dues.CollectionRate(ctx, env.building.ID, from, to)
	require.NoError(t, err)
	assert.Equal(t, 100.0, rate, "cancelled dues are excluded")

	_, err = env.svc.Dues.CollectionRate(ctx, env.building.ID, to, from)
	assert.True(t, apperr.IsValidation(err))
}

func TestUpdateAndCancelDue(t *testing.T) {
	env, cleanup := setupTestServices(t)
	defer cleanup()
	ctx := context.Background()

	due := env.adHocDue(t, env.flat.ID, models.Date(2024, time.January, 20), "500")
	_, _, err := env.svc.Payments.Create(ctx, CreatePaymentRequest{FlatID: env.flat.ID, Amount: dec("300")}, admin)
	require.NoError(t, err)

	t.Run("amount below paid rejected", func(t *testing.T) {
		_, err := env.svc.Dues.Update(ctx, due.ID, DueUpdate{BaseRent: ptr(dec("200"))}, admin)
		assert.True(t, apperr.IsConflict(err))
	})

	t.Run("charges are added to the base rent", func(t *testing.T) {
		got, err := env.svc.Dues.Update(ctx, due.ID, DueUpdate{
			AdditionalCharges:            ptr(dec("50")),
			AdditionalChargesDescription: ptr("water"),
		}, admin)
		require.NoError(t, err)
		assert.True(t, got.DueAmount.Equal(dec("550")))
		assert.Equal(t, models.DuePartiallyPaid, got.Status)
	})

	t.Run("lowering to the paid amount settles the due", func(t *testing.T) {
		got, err := env.svc.Dues.Update(ctx, due.ID, DueUpdate{BaseRent: ptr(dec("300")), AdditionalCharges: ptr(dec("0"))}, admin)
		require.NoError(t, err)
		assert.Equal(t, models.DuePaid, got.Status)
	})

	t.Run("paid due cannot be cancelled", func(t *testing.T) {
		_, err := env.svc.Dues.Cancel(ctx, due.ID, admin)
		assert.True(t, apperr.IsConflict(err))
	})

	t.Run("open due is cancelled with a note", func(t *testing.T) {
		other := env.adHocDue(t, env.flat.ID, models.Date(2024, time.February, 20), "100")
		got, err := env.svc.Dues.Cancel(ctx, other.ID, admin)
		require.NoError(t, err)
		assert.Equal(t, models.DueCancelled, got.Status)
		assert.Contains(t, got.Description, "Cancelled by admin")
	})
}

func TestDebtors(t *testing.T) {
	env, cleanup := setupTestServices(t)
	defer cleanup()
	ctx := context.Background()

	small := env.addFlat(t, "2A", 500)
	env.addFlat(t, "3A", 500)

	env.adHocDue(t, env.flat.ID, models.Date(2024, time.January, 1), "1000")
	env.adHocDue(t, env.flat.ID, models.Date(2024, time.January, 5), "1000")
	env.adHocDue(t, small.ID, models.Date(2024, time.January, 3), "300")

	_, err := env.svc.Dues.UpdateOverdueStatuses(ctx)
	require.NoError(t, err)

	debtors, err := env.svc.Dues.Debtors(ctx, env.building.ID)
	require.NoError(t, err)
	require.Len(t, debtors, 2)

	assert.Equal(t, env.flat.ID, debtors[0].Flat.ID)
	assert.True(t, debtors[0].TotalDebt.Equal(dec("2000")))
	assert.Equal(t, 2, debtors[0].OverdueCount)
	assert.True(t, debtors[0].OldestDue.Equal(models.Date(2024, time.January, 1)))

	assert.Equal(t, small.ID, debtors[1].Flat.ID)
	assert.True(t, debtors[1].TotalDebt.Equal(dec("300")))
}
