package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/flatlease/internal/apperr"
	"github.com/mmynk/flatlease/internal/calculator"
	"github.com/mmynk/flatlease/internal/event"
	"github.com/mmynk/flatlease/internal/models"
	"github.com/mmynk/flatlease/internal/storage"
)

// PaymentService records payments and allocates them to a flat's dues,
// oldest first.
type PaymentService struct {
	*core
}

// CreatePaymentRequest describes a received payment.
type CreatePaymentRequest struct {
	FlatID string
	Amount decimal.Decimal
	// PaymentDate defaults to now.
	PaymentDate     time.Time
	Method          models.PaymentMethod
	ReferenceNumber string
	ReceiptNumber   string
	Description     string
}

// Create records a payment and applies it to the flat's outstanding dues.
// A payment larger than the outstanding balance is rejected before any due
// changes.
func (s *PaymentService) Create(ctx context.Context, req CreatePaymentRequest, actor models.Actor) (*models.Payment, []*models.PaymentAllocation, error) {
	slog.Info("CreatePayment request received",
		"flat_id", req.FlatID,
		"amount", req.Amount.String(),
		"actor", actor.String(),
	)

	if err := requireActor(actor); err != nil {
		return nil, nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, nil, apperr.Validation("amount", "must be positive")
	}
	if req.Method == "" {
		req.Method = models.MethodCash
	}
	if !req.Method.Valid() {
		return nil, nil, apperr.Validation("method", "unknown payment method %q", req.Method)
	}
	if req.PaymentDate.IsZero() {
		req.PaymentDate = s.now()
	}

	unlock := s.locks.lock(req.FlatID)
	defer unlock()

	var (
		ob          outbox
		payment     *models.Payment
		allocations []*models.PaymentAllocation
	)
	err := s.store.WithTx(ctx, func(repo storage.Repository) error {
		flat, err := repo.GetFlat(ctx, req.FlatID)
		if err != nil {
			return notFound(err, "flat", req.FlatID)
		}

		dues, err := repo.ListOutstandingDuesByFlat(ctx, flat.ID)
		if err != nil {
			return err
		}
		open := make([]calculator.OpenDue, len(dues))
		byID := make(map[string]*models.MonthlyDue, len(dues))
		for i, d := range dues {
			open[i] = calculator.OpenDue{ID: d.ID, Outstanding: d.Outstanding()}
			byID[d.ID] = d
		}
		balance := calculator.TotalOutstanding(open)
		if req.Amount.GreaterThan(balance) {
			return apperr.Conflict("payment amount %s exceeds outstanding balance %s", req.Amount, balance)
		}
		plan, err := calculator.Allocate(req.Amount, open)
		if err != nil {
			return apperr.Conflict("%s", err.Error())
		}

		now := s.now()
		payment = &models.Payment{
			FlatID:          flat.ID,
			Amount:          req.Amount,
			PaymentDate:     req.PaymentDate,
			Method:          req.Method,
			ReferenceNumber: req.ReferenceNumber,
			ReceiptNumber:   req.ReceiptNumber,
			Description:     req.Description,
			RecordedBy:      actor.String(),
			CreatedAt:       now.Unix(),
		}
		if err := repo.CreatePayment(ctx, payment); err != nil {
			return err
		}

		paidOn := models.DateOf(req.PaymentDate)
		for _, a := range plan {
			due := byID[a.DueID]
			if a.Settles {
				err = due.MarkFullyPaid(due.DueAmount, paidOn)
			} else {
				err = due.MarkPartiallyPaid(a.Amount, paidOn)
			}
			if err != nil {
				return err
			}
			if err := repo.UpdateDue(ctx, due); err != nil {
				return err
			}

			alloc := &models.PaymentAllocation{
				PaymentID: payment.ID,
				DueID:     due.ID,
				Amount:    a.Amount,
				CreatedAt: now.Unix(),
			}
			if err := repo.CreateAllocation(ctx, alloc); err != nil {
				return err
			}
			allocations = append(allocations, alloc)

			slog.Debug("Payment allocated",
				"payment_id", payment.ID,
				"due_id", due.ID,
				"amount", a.Amount.String(),
				"due_status", due.Status,
			)
		}

		ob.add(event.NewPaymentRecorded(actor.String(), event.PaymentRecordedPayload{
			PaymentID:      payment.ID,
			FlatID:         flat.ID,
			BuildingID:     flat.BuildingID,
			TenantName:     flat.TenantName,
			TenantEmail:    flat.TenantEmail,
			Amount:         payment.Amount,
			PaymentDate:    payment.PaymentDate,
			Method:         string(payment.Method),
			DuesTouched:    len(plan),
			NewOutstanding: balance.Sub(payment.Amount),
		}))
		return nil
	})
	if err != nil {
		slog.Error("CreatePayment failed", "flat_id", req.FlatID, "error", err)
		return nil, nil, err
	}
	ob.flush(ctx, s.pub)

	slog.Info("Payment recorded", "payment_id", payment.ID, "flat_id", payment.FlatID, "allocations", len(allocations))
	return payment, allocations, nil
}

// Get returns a payment by ID.
func (s *PaymentService) Get(ctx context.Context, id string) (*models.Payment, error) {
	p, err := s.store.GetPayment(ctx, id)
	if err != nil {
		return nil, notFound(err, "payment", id)
	}
	return p, nil
}

// Allocations returns how a payment was applied.
func (s *PaymentService) Allocations(ctx context.Context, paymentID string) ([]*models.PaymentAllocation, error) {
	if _, err := s.Get(ctx, paymentID); err != nil {
		return nil, err
	}
	return s.store.ListAllocationsByPayment(ctx, paymentID)
}

// ListByFlat returns a flat's payments, newest first.
func (s *PaymentService) ListByFlat(ctx context.Context, flatID string) ([]*models.Payment, error) {
	if _, err := s.store.GetFlat(ctx, flatID); err != nil {
		return nil, notFound(err, "flat", flatID)
	}
	return s.store.ListPaymentsByFlat(ctx, flatID)
}

// OutstandingBalance sums what a flat still owes across its open dues.
func (s *PaymentService) OutstandingBalance(ctx context.Context, flatID string) (decimal.Decimal, error) {
	if _, err := s.store.GetFlat(ctx, flatID); err != nil {
		return decimal.Zero, notFound(err, "flat", flatID)
	}
	return s.outstanding(ctx, s.store, flatID)
}

// UpdatePaymentRequest holds the non-financial fields of a payment. Version
// must match the stored version. Nil fields are unchanged.
type UpdatePaymentRequest struct {
	Version         int
	Method          *models.PaymentMethod
	ReferenceNumber *string
	ReceiptNumber   *string
	Description     *string
}

// Update edits a payment's method, reference, receipt and description under
// optimistic locking. Amount and date cannot change.
func (s *PaymentService) Update(ctx context.Context, id string, req UpdatePaymentRequest, actor models.Actor) (*models.Payment, error) {
	slog.Info("UpdatePayment request received", "payment_id", id, "version", req.Version, "actor", actor.String())

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if req.Version < 1 {
		return nil, apperr.Validation("version", "must be the version read with the payment")
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	p.Version = req.Version
	if req.Method != nil {
		if !req.Method.Valid() {
			return nil, apperr.Validation("method", "unknown payment method %q", *req.Method)
		}
		p.Method = *req.Method
	}
	if req.ReferenceNumber != nil {
		p.ReferenceNumber = *req.ReferenceNumber
	}
	if req.ReceiptNumber != nil {
		p.ReceiptNumber = *req.ReceiptNumber
	}
	if req.Description != nil {
		p.Description = *req.Description
	}

	if err := s.store.UpdatePayment(ctx, p); err != nil {
		if errors.Is(err, storage.ErrStaleVersion) {
			return nil, apperr.Concurrency(err, "payment %s was modified concurrently, reload and retry", id)
		}
		slog.Error("UpdatePayment failed", "payment_id", id, "error", err)
		return nil, notFound(err, "payment", id)
	}

	slog.Info("Payment updated", "payment_id", id, "version", p.Version)
	return p, nil
}

// Delete removes a payment and reverses exactly the amounts it applied to
// each due.
func (s *PaymentService) Delete(ctx context.Context, id string, actor models.Actor) error {
	slog.Info("DeletePayment request received", "payment_id", id, "actor", actor.String())

	if err := requireActor(actor); err != nil {
		return err
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	unlock := s.locks.lock(p.FlatID)
	defer unlock()

	reversed := 0
	err = s.store.WithTx(ctx, func(repo storage.Repository) error {
		allocations, err := repo.ListAllocationsByPayment(ctx, id)
		if err != nil {
			return err
		}
		// Remaining allocations decide each due's payment date.
		if err := repo.DeleteAllocationsByPayment(ctx, id); err != nil {
			return err
		}
		for _, a := range allocations {
			due, err := repo.GetDue(ctx, a.DueID)
			if err != nil {
				return notFound(err, "due", a.DueID)
			}
			lastPaidOn, err := repo.LastPaymentDateForDue(ctx, due.ID)
			if err != nil {
				return err
			}
			if err := due.ReverseAllocation(a.Amount, lastPaidOn); err != nil {
				return err
			}
			if err := repo.UpdateDue(ctx, due); err != nil {
				return err
			}
			reversed++
		}
		if err := repo.DeletePayment(ctx, id); err != nil {
			return notFound(err, "payment", id)
		}
		return nil
	})
	if err != nil {
		slog.Error("DeletePayment failed", "payment_id", id, "error", err)
		return err
	}

	slog.Info("Payment deleted", "payment_id", id, "dues_reversed", reversed)
	return nil
}

// Summary counts and totals a building's payments dated in [from, to].
func (s *PaymentService) Summary(ctx context.Context, buildingID string, from, to time.Time) (*models.PaymentSummary, error) {
	from, to = models.DateOf(from), models.DateOf(to)
	if to.Before(from) {
		return nil, apperr.Validation("to", "must not be before from")
	}
	if _, err := s.store.GetBuilding(ctx, buildingID); err != nil {
		return nil, notFound(err, "building", buildingID)
	}
	count, total, err := s.store.SumPaymentsByBuilding(ctx, buildingID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize payments: %w", err)
	}
	return &models.PaymentSummary{BuildingID: buildingID, From: from, To: to, Count: count, Total: total}, nil
}
