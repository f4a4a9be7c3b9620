package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/mmynk/flatlease/internal/apperr"
	"github.com/mmynk/flatlease/internal/calculator"
	"github.com/mmynk/flatlease/internal/event"
	"github.com/mmynk/flatlease/internal/models"
	"github.com/mmynk/flatlease/internal/storage"
)

// buildingGenerationWorkers bounds per-flat parallelism in building-wide generation.
const buildingGenerationWorkers = 4

// DueService manages the monthly due ledger: contract generation entry
// points, building-wide and ad hoc dues, the overdue sweep and reporting.
type DueService struct {
	*core
}

// GenerateForContract generates the full due schedule of a live contract.
func (s *DueService) GenerateForContract(ctx context.Context, contractID string, actor models.Actor) ([]*models.MonthlyDue, error) {
	slog.Info("GenerateDuesForContract request received", "contract_id", contractID, "actor", actor.String())

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	c, err := s.store.GetContract(ctx, contractID)
	if err != nil {
		return nil, notFound(err, "contract", contractID)
	}

	unlock := s.locks.lock(c.FlatID)
	defer unlock()

	var (
		ob   outbox
		dues []*models.MonthlyDue
	)
	err = s.store.WithTx(ctx, func(repo storage.Repository) error {
		c, err := repo.GetContract(ctx, contractID)
		if err != nil {
			return notFound(err, "contract", contractID)
		}
		if !c.Status.IsLive() {
			return apperr.Conflict("contract %s is %s, dues can only be generated for live contracts", c.ID, c.Status)
		}
		flat, err := repo.GetFlat(ctx, c.FlatID)
		if err != nil {
			return notFound(err, "flat", c.FlatID)
		}
		if dues, err = s.gen.GenerateForContract(ctx, repo, c); err != nil {
			return err
		}
		ob.add(duesGeneratedEvent(actor, flat.BuildingID, c.ID, dues))
		return nil
	})
	if err != nil {
		slog.Error("GenerateDuesForContract failed", "contract_id", contractID, "error", err)
		return nil, err
	}
	ob.flush(ctx, s.pub)
	return dues, nil
}

// PreviewForContract returns the dues a contract would produce, unsaved.
func (s *DueService) PreviewForContract(ctx context.Context, contractID string) ([]*models.MonthlyDue, error) {
	c, err := s.store.GetContract(ctx, contractID)
	if err != nil {
		return nil, notFound(err, "contract", contractID)
	}
	return s.gen.Plan(c, c.StartDate, ""), nil
}

// ListByContract returns a contract's dues ordered by due date.
func (s *DueService) ListByContract(ctx context.Context, contractID string) ([]*models.MonthlyDue, error) {
	if _, err := s.store.GetContract(ctx, contractID); err != nil {
		return nil, notFound(err, "contract", contractID)
	}
	return s.store.ListDuesByContract(ctx, contractID)
}

// ListByFlat returns a flat's dues ordered by due date.
func (s *DueService) ListByFlat(ctx context.Context, flatID string) ([]*models.MonthlyDue, error) {
	if _, err := s.store.GetFlat(ctx, flatID); err != nil {
		return nil, notFound(err, "flat", flatID)
	}
	return s.store.ListDuesByFlat(ctx, flatID)
}

// Get returns a due by ID.
func (s *DueService) Get(ctx context.Context, id string) (*models.MonthlyDue, error) {
	d, err := s.store.GetDue(ctx, id)
	if err != nil {
		return nil, notFound(err, "due", id)
	}
	return d, nil
}

// BuildingDuesRequest describes one building-wide generation run.
type BuildingDuesRequest struct {
	BuildingID  string
	Amount      decimal.Decimal
	DueDate     time.Time
	Description string

	// UseFlatRent charges each flat its own monthly rent, falling back to
	// FallbackAmount and then Amount for flats without one.
	UseFlatRent    bool
	FallbackAmount decimal.Decimal
}

// BuildingDuesResult reports a building-wide generation run.
type BuildingDuesResult struct {
	Created []*models.MonthlyDue
	// Skipped counts flats that already had a building due on the date.
	Skipped int
	// Unpriced counts flats skipped because no positive amount applied.
	Unpriced int
}

func (r *BuildingDuesRequest) amountFor(f *models.Flat) decimal.Decimal {
	if r.UseFlatRent {
		if f.MonthlyRent.IsPositive() {
			return f.MonthlyRent
		}
		if r.FallbackAmount.IsPositive() {
			return r.FallbackAmount
		}
	}
	return r.Amount
}

// GenerateForBuilding creates one due per active flat of a building. Flats
// that already have a building due on the date are skipped and counted.
func (s *DueService) GenerateForBuilding(ctx context.Context, req BuildingDuesRequest, actor models.Actor) (*BuildingDuesResult, error) {
	slog.Info("GenerateDuesForBuilding request received",
		"building_id", req.BuildingID,
		"due_date", models.FormatDate(req.DueDate),
		"use_flat_rent", req.UseFlatRent,
		"actor", actor.String(),
	)

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if req.DueDate.IsZero() {
		return nil, apperr.Validation("dueDate", "is required")
	}
	if !req.UseFlatRent && !req.Amount.IsPositive() {
		return nil, apperr.Validation("amount", "must be positive")
	}
	if req.Amount.IsNegative() || req.FallbackAmount.IsNegative() {
		return nil, apperr.Validation("amount", "must not be negative")
	}
	req.DueDate = models.DateOf(req.DueDate)
	if strings.TrimSpace(req.Description) == "" {
		req.Description = "Monthly fee for " + calculator.PeriodLabel(req.DueDate)
	}

	if _, err := s.store.GetBuilding(ctx, req.BuildingID); err != nil {
		return nil, notFound(err, "building", req.BuildingID)
	}
	flats, err := s.store.ListActiveFlatsByBuilding(ctx, req.BuildingID)
	if err != nil {
		return nil, err
	}

	var (
		mu     sync.Mutex
		result = &BuildingDuesResult{}
		now    = s.now().Unix()
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(buildingGenerationWorkers)
	for _, flat := range flats {
		g.Go(func() error {
			amount := req.amountFor(flat)
			if !amount.IsPositive() {
				slog.Warn("Building due skipped, no amount for flat", "flat_id", flat.ID)
				mu.Lock()
				result.Unpriced++
				mu.Unlock()
				return nil
			}

			due := &models.MonthlyDue{
				FlatID:            flat.ID,
				DueDate:           req.DueDate,
				DueAmount:         amount,
				BaseRent:          amount,
				AdditionalCharges: decimal.Zero,
				PaidAmount:        decimal.Zero,
				Status:            models.DueUnpaid,
				Description:       req.Description,
				Source:            models.DueSourceBuilding,
				CreatedAt:         now,
				UpdatedAt:         now,
			}
			err := s.store.CreateDue(gctx, due)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, storage.ErrDuplicate):
				slog.Warn("Building due already exists, skipping", "flat_id", flat.ID, "due_date", models.FormatDate(req.DueDate))
				result.Skipped++
				return nil
			case err != nil:
				return fmt.Errorf("flat %s: %w", flat.ID, err)
			}
			result.Created = append(result.Created, due)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		slog.Error("GenerateDuesForBuilding failed", "building_id", req.BuildingID, "error", err)
		return nil, err
	}

	sort.Slice(result.Created, func(i, j int) bool { return result.Created[i].FlatID < result.Created[j].FlatID })

	if len(result.Created) > 0 {
		s.pub.Publish(ctx, event.NewMonthlyDuesGenerated(actor.String(), event.MonthlyDuesGeneratedPayload{
			BuildingID:   req.BuildingID,
			Period:       calculator.PeriodLabel(req.DueDate),
			DueCount:     len(result.Created),
			SkippedCount: result.Skipped,
			FirstDueDate: models.FormatDate(req.DueDate),
		}))
	}

	slog.Info("Building dues generated",
		"building_id", req.BuildingID,
		"created", len(result.Created),
		"skipped", result.Skipped,
		"unpriced", result.Unpriced,
	)
	return result, nil
}

// GenerateMonthly runs building-wide generation for every building with a
// positive default fee, due on the configured day of the current month.
// One building failing does not stop the others.
func (s *DueService) GenerateMonthly(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	dueDate := calculator.AdjustDayOfMonth(s.today(), s.monthlyDueDay)

	buildings, err := s.store.ListBuildings(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to list buildings: %w", err)
	}

	for _, b := range buildings {
		if !b.DefaultMonthlyFee.IsPositive() {
			continue
		}
		res.Examined++
		out, err := s.GenerateForBuilding(ctx, BuildingDuesRequest{
			BuildingID:  b.ID,
			Amount:      b.DefaultMonthlyFee,
			DueDate:     dueDate,
			Description: "Monthly maintenance fee for " + calculator.PeriodLabel(dueDate),
		}, models.SystemActor)
		if err != nil {
			res.Failed++
			slog.Error("Monthly generation failed for building", "building_id", b.ID, "error", err)
			continue
		}
		res.Transitioned += len(out.Created)
	}

	slog.Info("Monthly due generation finished",
		"due_date", models.FormatDate(dueDate),
		"buildings", res.Examined,
		"created", res.Transitioned,
		"failed", res.Failed,
	)
	return res, nil
}

// AdHocDueRequest describes a manually created due.
type AdHocDueRequest struct {
	FlatID                       string
	DueDate                      time.Time
	BaseRent                     decimal.Decimal
	AdditionalCharges            decimal.Decimal
	AdditionalChargesDescription string
	Description                  string
}

// CreateAdHoc records a due that belongs to no contract.
func (s *DueService) CreateAdHoc(ctx context.Context, req AdHocDueRequest, actor models.Actor) (*models.MonthlyDue, error) {
	slog.Info("CreateAdHocDue request received", "flat_id", req.FlatID, "actor", actor.String())

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if req.DueDate.IsZero() {
		return nil, apperr.Validation("dueDate", "is required")
	}
	if req.BaseRent.IsNegative() {
		return nil, apperr.Validation("baseRent", "must not be negative")
	}
	if req.AdditionalCharges.IsNegative() {
		return nil, apperr.Validation("additionalCharges", "must not be negative")
	}
	total := req.BaseRent.Add(req.AdditionalCharges)
	if !total.IsPositive() {
		return nil, apperr.Validation("amount", "due amount must be positive")
	}

	flat, err := s.store.GetFlat(ctx, req.FlatID)
	if err != nil {
		return nil, notFound(err, "flat", req.FlatID)
	}

	dueDate := models.DateOf(req.DueDate)
	desc := req.Description
	if strings.TrimSpace(desc) == "" {
		desc = "Charge for " + calculator.PeriodLabel(dueDate)
	}
	now := s.now().Unix()
	due := &models.MonthlyDue{
		FlatID:                       flat.ID,
		DueDate:                      dueDate,
		DueAmount:                    total,
		BaseRent:                     req.BaseRent,
		AdditionalCharges:            req.AdditionalCharges,
		AdditionalChargesDescription: req.AdditionalChargesDescription,
		PaidAmount:                   decimal.Zero,
		Status:                       models.DueUnpaid,
		Description:                  desc,
		Source:                       models.DueSourceAdHoc,
		CreatedAt:                    now,
		UpdatedAt:                    now,
	}
	if err := s.store.CreateDue(ctx, due); err != nil {
		slog.Error("CreateAdHocDue failed", "flat_id", flat.ID, "error", err)
		return nil, err
	}

	slog.Info("Ad hoc due created", "due_id", due.ID, "flat_id", flat.ID, "amount", total.String())
	return due, nil
}

// DueUpdate holds the editable fields of a due. Nil fields are unchanged.
type DueUpdate struct {
	DueDate                      *time.Time
	BaseRent                     *decimal.Decimal
	AdditionalCharges            *decimal.Decimal
	AdditionalChargesDescription *string
	Description                  *string
}

// Update edits an open due. Amounts may not drop below what has been paid.
func (s *DueService) Update(ctx context.Context, id string, upd DueUpdate, actor models.Actor) (*models.MonthlyDue, error) {
	slog.Info("UpdateDue request received", "due_id", id, "actor", actor.String())

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	due, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(due.FlatID)
	defer unlock()

	err = s.store.WithTx(ctx, func(repo storage.Repository) error {
		var err error
		due, err = repo.GetDue(ctx, id)
		if err != nil {
			return notFound(err, "due", id)
		}
		if !due.Status.IsOutstanding() {
			return apperr.Conflict("due %s is %s and cannot be edited", id, due.Status)
		}

		if upd.DueDate != nil {
			due.DueDate = models.DateOf(*upd.DueDate)
		}
		if upd.BaseRent != nil {
			due.BaseRent = *upd.BaseRent
		}
		if upd.AdditionalCharges != nil {
			due.AdditionalCharges = *upd.AdditionalCharges
		}
		if upd.AdditionalChargesDescription != nil {
			due.AdditionalChargesDescription = *upd.AdditionalChargesDescription
		}
		if upd.Description != nil {
			due.Description = *upd.Description
		}
		if due.BaseRent.IsNegative() || due.AdditionalCharges.IsNegative() {
			return apperr.Validation("amount", "components must not be negative")
		}

		due.DueAmount = due.BaseRent.Add(due.AdditionalCharges)
		if !due.DueAmount.IsPositive() {
			return apperr.Validation("amount", "due amount must be positive")
		}
		if due.DueAmount.LessThan(due.PaidAmount) {
			return apperr.Conflict("due amount %s would be below the paid amount %s", due.DueAmount, due.PaidAmount)
		}
		if due.PaidAmount.IsPositive() && due.DueAmount.Equal(due.PaidAmount) {
			due.Status = models.DuePaid
		}
		return repo.UpdateDue(ctx, due)
	})
	if err != nil {
		slog.Error("UpdateDue failed", "due_id", id, "error", err)
		return nil, err
	}
	return due, nil
}

// Cancel voids a single due. Paid dues cannot be cancelled.
func (s *DueService) Cancel(ctx context.Context, id string, actor models.Actor) (*models.MonthlyDue, error) {
	slog.Info("CancelDue request received", "due_id", id, "actor", actor.String())

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	due, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(due.FlatID)
	defer unlock()

	err = s.store.WithTx(ctx, func(repo storage.Repository) error {
		var err error
		due, err = repo.GetDue(ctx, id)
		if err != nil {
			return notFound(err, "due", id)
		}
		if err := due.Cancel(" - Cancelled by " + actor.String()); err != nil {
			return err
		}
		return repo.UpdateDue(ctx, due)
	})
	if err != nil {
		slog.Error("CancelDue failed", "due_id", id, "error", err)
		return nil, err
	}
	return due, nil
}

// UpdateOverdueStatuses is the overdue sweep: UNPAID dues dated before today
// become OVERDUE. Each transition is conditional on the due still being
// UNPAID, so a payment that lands first wins.
func (s *DueService) UpdateOverdueStatuses(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	today := s.today()

	candidates, err := s.store.ListDuesByStatusBefore(ctx, models.DueUnpaid, today)
	if err != nil {
		return res, fmt.Errorf("failed to list overdue candidates: %w", err)
	}

	for _, d := range candidates {
		res.Examined++
		if err := d.MarkOverdue(today); err != nil {
			res.Failed++
			slog.Error("Due cannot become overdue", "due_id", d.ID, "error", err)
			continue
		}
		ok, err := s.store.TransitionDueStatus(ctx, d.ID, models.DueUnpaid, models.DueOverdue)
		if err != nil {
			res.Failed++
			slog.Error("Overdue transition failed", "due_id", d.ID, "error", err)
			continue
		}
		if ok {
			res.Transitioned++
		}
	}

	slog.Info("Overdue sweep finished", "examined", res.Examined, "transitioned", res.Transitioned, "failed", res.Failed)
	return res, nil
}

// Debtors returns the flats of a building with overdue dues, largest debt first.
func (s *DueService) Debtors(ctx context.Context, buildingID string) ([]*models.Debtor, error) {
	if _, err := s.store.GetBuilding(ctx, buildingID); err != nil {
		return nil, notFound(err, "building", buildingID)
	}
	overdue, err := s.store.ListOverdueByBuilding(ctx, buildingID)
	if err != nil {
		return nil, err
	}

	byFlat := make(map[string]*models.Debtor)
	var order []string
	for _, d := range overdue {
		debtor, ok := byFlat[d.FlatID]
		if !ok {
			debtor = &models.Debtor{OldestDue: d.DueDate}
			byFlat[d.FlatID] = debtor
			order = append(order, d.FlatID)
		}
		debtor.OverdueCount++
		if d.DueDate.Before(debtor.OldestDue) {
			debtor.OldestDue = d.DueDate
		}
	}

	debtors := make([]*models.Debtor, 0, len(order))
	for _, flatID := range order {
		debtor := byFlat[flatID]
		if debtor.Flat, err = s.store.GetFlat(ctx, flatID); err != nil {
			return nil, notFound(err, "flat", flatID)
		}
		if debtor.TotalDebt, err = s.outstanding(ctx, s.store, flatID); err != nil {
			return nil, err
		}
		debtors = append(debtors, debtor)
	}
	sort.SliceStable(debtors, func(i, j int) bool {
		return debtors[i].TotalDebt.GreaterThan(debtors[j].TotalDebt)
	})
	return debtors, nil
}

// outstanding sums the open balance of a flat's dues.
func (c *core) outstanding(ctx context.Context, repo storage.Repository, flatID string) (decimal.Decimal, error) {
	dues, err := repo.ListOutstandingDuesByFlat(ctx, flatID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, d := range dues {
		total = total.Add(d.Outstanding())
	}
	return total, nil
}

// CollectionRate returns the percentage of a building's non-cancelled dues in
// [from, to] that are fully paid.
func (s *DueService) CollectionRate(ctx context.Context, buildingID string, from, to time.Time) (float64, error) {
	from, to = models.DateOf(from), models.DateOf(to)
	if to.Before(from) {
		return 0, apperr.Validation("to", "must not be before from")
	}
	if _, err := s.store.GetBuilding(ctx, buildingID); err != nil {
		return 0, notFound(err, "building", buildingID)
	}
	dues, err := s.store.ListDuesByBuilding(ctx, buildingID, from, to)
	if err != nil {
		return 0, err
	}

	outcomes := make([]calculator.DueOutcome, len(dues))
	for i, d := range dues {
		outcomes[i] = calculator.DueOutcome{Paid: d.Status == models.DuePaid, Cancelled: d.Status == models.DueCancelled}
	}
	return calculator.CollectionRate(outcomes), nil
}
