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
)

// twoDues creates two 1000 dues on the test flat, January then February.
func (e *testEnv) twoDues(t *testing.T) (*models.MonthlyDue, *models.MonthlyDue) {
	t.Helper()
	return e.adHocDue(t, e.flat.ID, models.Date(2024, time.January, 15), "1000"),
		e.adHocDue(t, e.flat.ID, models.Date(2024, time.February, 15), "1000")
}

func TestCreatePaymentAllocatesOldestFirst(t *testing.T) {
	env, cleanup := setupTestServices(t)
	defer cleanup()
	ctx := context.Background()

	jan, feb := env.twoDues(t)

	p, allocs, err := env.svc.Payments.Create(ctx, CreatePaymentRequest{
		FlatID:          env.flat.ID,
		Amount:          dec("1200"),
		ReferenceNumber: "TX-1",
	}, admin)
	require.NoError(t, err)
	assert.Equal(t, models.MethodCash, p.Method)
	assert.Equal(t, 1, p.Version)
	assert.Equal(t, "admin", p.RecordedBy)

	require.Len(t, allocs, 2)
	assert.Equal(t, jan.ID, allocs[0].DueID)
	assert.True(t, allocs[0].Amount.Equal(dec("1000")))
	assert.Equal(t, feb.ID, allocs[1].DueID)
	assert.True(t, allocs[1].Amount.Equal(dec("200")))

	gotJan, err := env.svc.Dues.Get(ctx, jan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DuePaid, gotJan.Status)
	require.NotNil(t, gotJan.PaymentDate)

	gotFeb, err := env.svc.Dues.Get(ctx, feb.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DuePartiallyPaid, gotFeb.Status)
	assert.True(t, gotFeb.PaidAmount.Equal(dec("200")))

	balance, err := env.svc.Payments.OutstandingBalance(ctx, env.flat.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("800")))

	stored, err := env.svc.Payments.Allocations(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	assert.Contains(t, env.pub.types(), event.TypePaymentRecorded)
}

func TestCreatePaymentContinuesPartiallyPaidDue(t *testing.T) {
	env, cleanup := setupTestServices(t)
	defer cleanup()
	ctx := context.Background()

	jan, feb := env.twoDues(t)

	_, _, err := env.svc.Payments.Create(ctx, CreatePaymentRequest{FlatID: env.flat.ID, Amount: dec("400")}, admin)
	require.NoError(t, err)
	_, allocs, err := env.svc.Payments.Create(ctx, CreatePaymentRequest{FlatID: env.flat.ID, Amount: dec("700")}, admin)
	require.NoError(t, err)

	require.Len(t, allocs, 2)
	assert.Equal(t, jan.ID, allocs[0].DueID)
	assert.True(t, allocs[0].Amount.Equal(dec("600")))
	assert.Equal(t, feb.ID, allocs[1].DueID)
	assert.True(t, allocs[1].Amount.Equal(dec("100")))
}

func TestCreatePaymentRejections(t *testing.T) {
	env, cleanup := setupTestServices(t)
	defer cleanup()
	ctx := context.Background()

	jan, feb := env.twoDues(t)

	t.Run("overpayment leaves everything untouched", func(t *testing.T) {
		_, _, err := env.svc.Payments.Create(ctx, CreatePaymentRequest{FlatID: env.flat.ID, Amount: dec("2500")}, admin)
		require.Error(t, err)
		assert.True(t, apperr.IsConflict(err))

		for _, id := range []string{jan.ID, feb.ID} {
			d, err := env.svc.Dues.Get(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, models.DueUnpaid, d.Status)
			assert.True(t, d.PaidAmount.IsZero())
		}
		payments, err := env.svc.Payments.ListByFlat(ctx, env.flat.ID)
		require.NoError(t, err)
		assert.Empty(t, payments)
	})

	tests := []struct {
		name string
		req  CreatePaymentRequest
		kind apperr.Kind
	}{
		{"zero amount", CreatePaymentRequest{FlatID: env.flat.ID, Amount: dec("0")}, apperr.KindValidation},
		{"negative amount", CreatePaymentRequest{FlatID: env.flat.ID, Amount: dec("-5")}, apperr.KindValidation},
		{"unknown method", CreatePaymentRequest{FlatID: env.flat.ID, Amount: dec("5"), Method: "BARTER"}, apperr.KindValidation},
		{"unknown flat", CreatePaymentRequest{FlatID: "missing", Amount: dec("5")}, apperr.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := env.svc.Payments.Create(ctx, tt.req, admin)
			assert.Equal(t, tt.kind, apperr.KindOf(err), "got %v", err)
		})
	}

	t.Run("no open dues", func(t *testing.T) {
		flat := env.addFlat(t, "5E", 700)
		_, _, err := env.svc.Payments.Create(ctx, CreatePaymentRequest{FlatID: flat.ID, Amount: dec("1")}, admin)
		assert.True(t, apperr.IsConflict(err))
	})
}

func TestDeletePaymentReversesAllocations(t *testing.T) {
	env, cleanup := setupTestServices(t)
	defer cleanup()
	ctx := context.Background()

	jan, feb := env.twoDues(t)

	first, _, err := env.svc.Payments.Create(ctx, CreatePaymentRequest{FlatID: env.flat.ID, Amount: dec("500")}, admin)
	require.NoError(t, err)
	second, _, err := env.svc.Payments.Create(ctx, CreatePaymentRequest{FlatID: env.flat.ID, Amount: dec("700")}, admin)
	require.NoError(t, err)

	// Removing the second payment leaves the first one's 500 in place.
	require.NoError(t, env.svc.Payments.Delete(ctx, second.ID, admin))

	gotJan, err := env.svc.Dues.Get(ctx, jan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DuePartiallyPaid, gotJan.Status)
	assert.True(t, gotJan.PaidAmount.Equal(dec("500")))

	gotFeb, err := env.svc.Dues.Get(ctx, feb.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DueUnpaid, gotFeb.Status)
	assert.True(t, gotFeb.PaidAmount.IsZero())
	assert.Nil(t, gotFeb.PaymentDate)

	require.NoError(t, env.svc.Payments.Delete(ctx, first.ID, admin))

	balance, err := env.svc.Payments.OutstandingBalance(ctx, env.flat.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("2000")))

	_, err = env.svc.Payments.Get(ctx, first.ID)
	assert.True(t, apperr.IsNotFound(err))

	err = env.svc.Payments.Delete(ctx, first.ID, admin)
	assert.True(t, apperr.IsNotFound(err))
}

func TestDeletePaymentRestoresEarlierPaymentDate(t *testing.T) {
	env, cleanup := setupTestServices(t)
	defer cleanup()
	ctx := context.Background()

	jan, _ := env.twoDues(t)
	jan10 := models.Date(2024, time.January, 10)
	jan20 := models.Date(2024, time.January, 20)

	_, _, err := env.svc.Payments.Create(ctx, CreatePaymentRequest{FlatID: env.flat.ID, Amount: dec("300"), PaymentDate: jan10}, admin)
	require.NoError(t, err)
	later, _, err := env.svc.Payments.Create(ctx, CreatePaymentRequest{FlatID: env.flat.ID, Amount: dec("200"), PaymentDate: jan20}, admin)
	require.NoError(t, err)

	got, err := env.svc.Dues.Get(ctx, jan.ID)
	require.NoError(t, err)
	require.NotNil(t, got.PaymentDate)
	assert.True(t, got.PaymentDate.Equal(jan20))

	require.NoError(t, env.svc.Payments.Delete(ctx, later.ID, admin))

	got, err = env.svc.Dues.Get(ctx, jan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DuePartiallyPaid, got.Status)
	assert.True(t, got.PaidAmount.Equal(dec("300")))
	require.NotNil(t, got.PaymentDate)
	assert.True(t, got.PaymentDate.Equal(jan10))
}

func TestUpdatePaymentOptimisticLocking(t *testing.T) {
	env, cleanup := setupTestServices(t)
	defer cleanup()
	ctx := context.Background()

	env.twoDues(t)
	p, _, err := env.svc.Payments.Create(ctx, CreatePaymentRequest{FlatID: env.flat.ID, Amount: dec("100")}, admin)
	require.NoError(t, err)

	method := models.MethodBankTransfer
	updated, err := env.svc.Payments.Update(ctx, p.ID, UpdatePaymentRequest{
		Version:         p.Version,
		Method:          &method,
		ReferenceNumber: ptr("BANK-42"),
	}, admin)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, models.MethodBankTransfer, updated.Method)

	_, err = env.svc.Payments.Update(ctx, p.ID, UpdatePaymentRequest{Version: p.Version, Description: ptr("stale")}, admin)
	require.Error(t, err)
	assert.True(t, apperr.IsConcurrency(err))

	t.Run("version is required", func(t *testing.T) {
		_, err := env.svc.Payments.Update(ctx, p.ID, UpdatePaymentRequest{Description: ptr("unversioned")}, admin)
		require.Error(t, err)
		assert.True(t, apperr.IsValidation(err))
		assert.Equal(t, "version", apperr.FieldOf(err))
	})

	got, err := env.svc.Payments.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "BANK-42", got.ReferenceNumber)
	assert.Empty(t, got.Description)
	assert.True(t, got.Amount.Equal(dec("100")))
}

func TestConcurrentPaymentsNeverOverpay(t *testing.T) {
	env, cleanup := setupTestServices(t)
	defer cleanup()
	ctx := context.Background()

	env.twoDues(t)

	const attempts = 25
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		accepted  int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := env.svc.Payments.Create(ctx, CreatePaymentRequest{FlatID: env.flat.ID, Amount: dec("100")}, admin)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case apperr.IsConflict(err):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, accepted)
	assert.Equal(t, 5, conflicts)

	balance, err := env.svc.Payments.OutstandingBalance(ctx, env.flat.ID)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())

	dues, err := env.svc.Dues.ListByFlat(ctx, env.flat.ID)
	require.NoError(t, err)
	for _, d := range dues {
		assert.Equal(t, models.DuePaid, d.Status)
		assert.True(t, d.PaidAmount.Equal(d.DueAmount))
	}
}

func TestPaymentSummary(t *testing.T) {
	env, cleanup := setupTestServices(t)
	defer cleanup()
	ctx := context.Background()

	env.twoDues(t)
	for _, amount := range []string{"100", "250.50"} {
		_, _, err := env.svc.Payments.Create(ctx, CreatePaymentRequest{FlatID: env.flat.ID, Amount: dec(amount), PaymentDate: today}, admin)
		require.NoError(t, err)
	}
	_, _, err := env.svc.Payments.Create(ctx, CreatePaymentRequest{FlatID: env.flat.ID, Amount: dec("1"), PaymentDate: models.Date(2023, time.December, 1)}, admin)
	require.NoError(t, err)

	sum, err := env.svc.Payments.Summary(ctx, env.building.ID, models.Date(2024, time.January, 1), models.Date(2024, time.January, 31))
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Count)
	assert.True(t, sum.Total.Equal(dec("350.50")))
}
