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
	"github.com/mmynk/flatlease/internal/models"
	"github.com/mmynk/flatlease/internal/storage"
)

const (
	suffixExtension = " (Extension)"
	suffixModified  = " (Modified)"
)

// DueGenerator turns contract terms into monthly dues. Every method works on
// the Repository it is given, so callers compose it inside their own
// transaction.
type DueGenerator struct {
	now Clock
}

// Plan returns the unsaved dues a contract would produce from start through
// its end date.
func (g *DueGenerator) Plan(c *models.Contract, start time.Time, suffix string) []*models.MonthlyDue {
	return g.build(c, calculator.DueDatesBetween(start, c.EndDate, c.DayOfMonth), suffix)
}

func (g *DueGenerator) build(c *models.Contract, dates []time.Time, suffix string) []*models.MonthlyDue {
	now := g.now().Unix()
	dues := make([]*models.MonthlyDue, 0, len(dates))
	for _, date := range dates {
		dues = append(dues, &models.MonthlyDue{
			FlatID:            c.FlatID,
			ContractID:        c.ID,
			DueDate:           date,
			DueAmount:         c.MonthlyRent,
			BaseRent:          c.MonthlyRent,
			AdditionalCharges: decimal.Zero,
			PaidAmount:        decimal.Zero,
			Status:            models.DueUnpaid,
			Description:       contractDueDescription(c, date) + suffix,
			Source:            models.DueSourceContract,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
	}
	return dues
}

func contractDueDescription(c *models.Contract, date time.Time) string {
	return fmt.Sprintf("Contract #%s - Monthly rent for %s", shortID(c.ID), calculator.PeriodLabel(date))
}

func (g *DueGenerator) insert(ctx context.Context, repo storage.Repository, dues []*models.MonthlyDue) error {
	for _, d := range dues {
		if err := repo.CreateDue(ctx, d); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				return apperr.Conflict("a due already exists for contract %s on %s", d.ContractID, models.FormatDate(d.DueDate))
			}
			return fmt.Errorf("failed to create due: %w", err)
		}
	}
	return nil
}

// GenerateForContract creates the full due schedule of a contract and flips
// its DuesGenerated flag. A second call for the same contract is rejected.
func (g *DueGenerator) GenerateForContract(ctx context.Context, repo storage.Repository, c *models.Contract) ([]*models.MonthlyDue, error) {
	if c.DuesGenerated {
		return nil, apperr.Conflict("dues already generated for contract %s", c.ID)
	}
	existing, err := repo.ListDuesByContract(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, apperr.Conflict("contract %s already has %d dues", c.ID, len(existing))
	}

	dues := g.Plan(c, c.StartDate, "")
	if err := g.insert(ctx, repo, dues); err != nil {
		return nil, err
	}

	c.DuesGenerated = true
	if err := repo.UpdateContract(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to mark dues generated: %w", err)
	}

	slog.Info("Dues generated for contract", "contract_id", c.ID, "count", len(dues))
	return dues, nil
}

// GenerateExtension creates dues for c from extensionStart through c's end
// date. It neither checks nor sets DuesGenerated.
func (g *DueGenerator) GenerateExtension(ctx context.Context, repo storage.Repository, c *models.Contract, extensionStart time.Time) ([]*models.MonthlyDue, error) {
	dues := g.Plan(c, extensionStart, suffixExtension)
	if err := g.insert(ctx, repo, dues); err != nil {
		return nil, err
	}
	slog.Info("Extension dues generated", "contract_id", c.ID, "from", models.FormatDate(extensionStart), "count", len(dues))
	return dues, nil
}

// CancelUnpaidDues cancels every due of c that is neither paid nor already
// cancelled and returns how many changed.
func (g *DueGenerator) CancelUnpaidDues(ctx context.Context, repo storage.Repository, c *models.Contract) (int, error) {
	dues, err := repo.ListDuesByContract(ctx, c.ID)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, d := range dues {
		if d.Status == models.DuePaid || d.Status == models.DueCancelled {
			continue
		}
		if err := d.Cancel(models.CancellationNote); err != nil {
			return cancelled, err
		}
		if err := repo.UpdateDue(ctx, d); err != nil {
			return cancelled, fmt.Errorf("failed to cancel due %s: %w", d.ID, err)
		}
		cancelled++
	}

	slog.Info("Unpaid dues cancelled", "contract_id", c.ID, "count", cancelled)
	return cancelled, nil
}

// Regeneration describes what RegenerateForModification changed.
type Regeneration struct {
	Kept    int
	Deleted int
	Created []*models.MonthlyDue
}

// replaceable reports whether a due may be deleted and reissued: untouched by
// payments and falling on or after the effective date.
func replaceable(d *models.MonthlyDue, effective time.Time) bool {
	if d.Status != models.DueUnpaid && d.Status != models.DueOverdue {
		return false
	}
	return d.PaidAmount.IsZero() && !d.DueDate.Before(effective)
}

type yearMonth struct {
	year  int
	month time.Month
}

// RegenerateForModification replaces the unpaid dues of oldC falling on or
// after effective with dues computed from newC's terms. Paid dues, partially
// paid dues and dues before effective are kept as they are.
func (g *DueGenerator) RegenerateForModification(ctx context.Context, repo storage.Repository, oldC, newC *models.Contract, effective time.Time) (*Regeneration, error) {
	existing, err := repo.ListDuesByContract(ctx, oldC.ID)
	if err != nil {
		return nil, err
	}

	var (
		replace  []*models.MonthlyDue
		kept     = make(map[yearMonth]bool)
		lastSeen time.Time
	)
	for _, d := range existing {
		if d.DueDate.After(lastSeen) {
			lastSeen = d.DueDate
		}
		if replaceable(d, effective) {
			replace = append(replace, d)
			continue
		}
		if d.Status != models.DueCancelled {
			kept[yearMonth{d.DueDate.Year(), d.DueDate.Month()}] = true
		}
	}

	var first time.Time
	switch {
	case len(replace) > 0:
		first = calculator.AdjustDayOfMonth(replace[0].DueDate, newC.DayOfMonth)
	case len(existing) == 0:
		// Nothing was issued under the old terms.
		first = calculator.FirstDueDate(newC.StartDate, newC.DayOfMonth)
	default:
		first = calculator.NextDueDate(lastSeen, newC.DayOfMonth)
	}
	if first.Before(newC.StartDate) {
		first = calculator.FirstDueDate(newC.StartDate, newC.DayOfMonth)
	}

	var dates []time.Time
	for _, date := range calculator.DueDatesFrom(first, newC.EndDate, newC.DayOfMonth) {
		if kept[yearMonth{date.Year(), date.Month()}] {
			continue
		}
		dates = append(dates, date)
	}

	ids := make([]string, len(replace))
	for i, d := range replace {
		ids[i] = d.ID
	}
	if err := repo.DeleteDues(ctx, ids); err != nil {
		return nil, err
	}

	created := g.build(newC, dates, suffixModified)
	if err := g.insert(ctx, repo, created); err != nil {
		return nil, err
	}

	newC.DuesGenerated = true
	if err := repo.UpdateContract(ctx, newC); err != nil {
		return nil, fmt.Errorf("failed to mark dues generated: %w", err)
	}

	slog.Info("Dues regenerated for modification",
		"old_contract_id", oldC.ID,
		"new_contract_id", newC.ID,
		"effective_date", models.FormatDate(effective),
		"kept", len(existing)-len(replace),
		"deleted", len(replace),
		"created", len(created),
	)
	return &Regeneration{Kept: len(existing) - len(replace), Deleted: len(replace), Created: created}, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
