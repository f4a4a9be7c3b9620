package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/flatlease/internal/apperr"
	"github.com/mmynk/flatlease/internal/calculator"
	"github.com/mmynk/flatlease/internal/event"
	"github.com/mmynk/flatlease/internal/models"
	"github.com/mmynk/flatlease/internal/storage"
)

// ContractService owns the contract lifecycle: creation, renewal,
// cancellation, modification and the scheduled status sweep.
type ContractService struct {
	*core
}

// CreateContractRequest holds the terms of a new contract.
type CreateContractRequest struct {
	FlatID                  string
	TenantName              string
	TenantContact           string
	TenantEmail             string
	StartDate               time.Time
	EndDate                 time.Time
	MonthlyRent             decimal.Decimal
	SecurityDeposit         decimal.Decimal
	DayOfMonth              int
	Notes                   string
	GenerateDuesImmediately bool
}

// RenewContractRequest describes a renewal. Nil fields keep the current terms.
type RenewContractRequest struct {
	// NewEndDate defaults to one year after the current end date.
	NewEndDate              time.Time
	NewMonthlyRent          *decimal.Decimal
	NewSecurityDeposit      *decimal.Decimal
	NewDayOfMonth           *int
	Notes                   string
	GenerateDuesImmediately bool
}

// CancelContractRequest describes an early termination.
type CancelContractRequest struct {
	Reason         string
	ReasonCategory string
	// EffectiveDate defaults to today and may not be in the future.
	EffectiveDate    time.Time
	CancelUnpaidDues bool
	RefundDeposit    bool
	Notes            string
}

// ModifyContractRequest describes a change of terms. Nil fields keep the
// current terms.
type ModifyContractRequest struct {
	// EffectiveDate defaults to today.
	EffectiveDate      time.Time
	NewMonthlyRent     *decimal.Decimal
	NewSecurityDeposit *decimal.Decimal
	NewDayOfMonth      *int
	NewEndDate         *time.Time
	Reason             string
	Details            string
	RegenerateDues     bool
}

func validateTerms(rent, deposit decimal.Decimal, day int) error {
	if !rent.IsPositive() {
		return apperr.Validation("monthlyRent", "must be positive")
	}
	if deposit.IsNegative() {
		return apperr.Validation("securityDeposit", "must not be negative")
	}
	if err := calculator.ValidateDayOfMonth(day); err != nil {
		return apperr.Validation("dayOfMonth", "%s", err.Error())
	}
	return nil
}

func (r *CreateContractRequest) validate(today time.Time) error {
	if r.FlatID == "" {
		return apperr.Validation("flatId", "is required")
	}
	if strings.TrimSpace(r.TenantName) == "" {
		return apperr.Validation("tenantName", "is required")
	}
	if r.StartDate.IsZero() {
		return apperr.Validation("startDate", "is required")
	}
	if !r.EndDate.After(r.StartDate) {
		return apperr.Validation("endDate", "must be after start date")
	}
	if r.StartDate.Before(today) {
		return apperr.Validation("startDate", "must not be in the past")
	}
	return validateTerms(r.MonthlyRent, r.SecurityDeposit, r.DayOfMonth)
}

// initialStatus is PENDING for future-dated contracts and ACTIVE otherwise.
func initialStatus(start, today time.Time) models.ContractStatus {
	if start.After(today) {
		return models.ContractPending
	}
	return models.ContractActive
}

// checkOverlap rejects [start, end] if it intersects another live contract of the flat.
func checkOverlap(ctx context.Context, repo storage.Repository, flatID string, start, end time.Time, excludeID string) error {
	overlapping, err := repo.FindOverlappingContracts(ctx, flatID, start, end, excludeID)
	if err != nil {
		return err
	}
	if len(overlapping) > 0 {
		o := overlapping[0]
		return apperr.Conflict("flat %s already has a %s contract from %s to %s",
			flatID, o.Status, models.FormatDate(o.StartDate), models.FormatDate(o.EndDate))
	}
	return nil
}

// Create validates and persists a new contract, optionally generating its dues
// in the same transaction.
func (s *ContractService) Create(ctx context.Context, req CreateContractRequest, actor models.Actor) (*models.Contract, error) {
	slog.Info("CreateContract request received",
		"flat_id", req.FlatID,
		"start_date", models.FormatDate(req.StartDate),
		"end_date", models.FormatDate(req.EndDate),
		"actor", actor.String(),
	)

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	today := s.today()
	req.StartDate, req.EndDate = models.DateOf(req.StartDate), models.DateOf(req.EndDate)
	if err := req.validate(today); err != nil {
		return nil, err
	}

	unlock := s.locks.lock(req.FlatID)
	defer unlock()

	var (
		ob       outbox
		contract *models.Contract
	)
	err := s.store.WithTx(ctx, func(repo storage.Repository) error {
		flat, err := repo.GetFlat(ctx, req.FlatID)
		if err != nil {
			return notFound(err, "flat", req.FlatID)
		}
		if !flat.Active {
			return apperr.Conflict("flat %s is not active", flat.ID)
		}
		if err := checkOverlap(ctx, repo, flat.ID, req.StartDate, req.EndDate, ""); err != nil {
			return err
		}

		now := s.now()
		contract = &models.Contract{
			FlatID:          flat.ID,
			TenantName:      strings.TrimSpace(req.TenantName),
			TenantContact:   req.TenantContact,
			TenantEmail:     req.TenantEmail,
			StartDate:       req.StartDate,
			EndDate:         req.EndDate,
			MonthlyRent:     req.MonthlyRent,
			SecurityDeposit: req.SecurityDeposit,
			DayOfMonth:      req.DayOfMonth,
			Notes:           req.Notes,
			CreatedAt:       now.Unix(),
		}
		contract.SetStatus(initialStatus(req.StartDate, today), now, actor.String(), "contract created")
		if err := repo.CreateContract(ctx, contract); err != nil {
			return err
		}

		ob.add(event.NewContractCreated(actor.String(), event.ContractCreatedPayload{
			ContractID:              contract.ID,
			FlatID:                  flat.ID,
			BuildingID:              flat.BuildingID,
			TenantName:              contract.TenantName,
			TenantEmail:             contract.TenantEmail,
			StartDate:               models.FormatDate(contract.StartDate),
			EndDate:                 models.FormatDate(contract.EndDate),
			MonthlyRent:             contract.MonthlyRent,
			Status:                  string(contract.Status),
			GenerateDuesImmediately: req.GenerateDuesImmediately,
		}))

		if req.GenerateDuesImmediately {
			dues, err := s.gen.GenerateForContract(ctx, repo, contract)
			if err != nil {
				return err
			}
			ob.add(duesGeneratedEvent(actor, flat.BuildingID, contract.ID, dues))
		}
		return nil
	})
	if err != nil {
		slog.Error("CreateContract failed", "flat_id", req.FlatID, "error", err)
		return nil, err
	}
	ob.flush(ctx, s.pub)

	slog.Info("Contract created", "contract_id", contract.ID, "status", contract.Status, "dues_generated", contract.DuesGenerated)
	return contract, nil
}

// Renew ends an ACTIVE contract and starts a PENDING successor the day after
// its end date.
func (s *ContractService) Renew(ctx context.Context, id string, req RenewContractRequest, actor models.Actor) (*models.Contract, error) {
	slog.Info("RenewContract request received", "contract_id", id, "actor", actor.String())

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(current.FlatID)
	defer unlock()

	var (
		ob      outbox
		renewed *models.Contract
	)
	err = s.store.WithTx(ctx, func(repo storage.Repository) error {
		current, err := repo.GetContract(ctx, id)
		if err != nil {
			return notFound(err, "contract", id)
		}
		if current.Status != models.ContractActive {
			return apperr.Conflict("only ACTIVE contracts can be renewed, contract %s is %s", id, current.Status)
		}

		newEnd := models.DateOf(req.NewEndDate)
		if req.NewEndDate.IsZero() {
			newEnd = current.EndDate.AddDate(1, 0, 0)
		}
		if !newEnd.After(current.EndDate) {
			return apperr.Validation("newEndDate", "must be after the current end date %s", models.FormatDate(current.EndDate))
		}

		newStart := current.EndDate.AddDate(0, 0, 1)
		renewed = successor(current, s.now())
		renewed.StartDate = newStart
		renewed.EndDate = newEnd
		applyTerms(renewed, req.NewMonthlyRent, req.NewSecurityDeposit, req.NewDayOfMonth)
		if req.Notes != "" {
			renewed.Notes = req.Notes
		}
		if err := validateTerms(renewed.MonthlyRent, renewed.SecurityDeposit, renewed.DayOfMonth); err != nil {
			return err
		}
		if err := checkOverlap(ctx, repo, current.FlatID, newStart, newEnd, current.ID); err != nil {
			return err
		}

		now := s.now()
		renewed.SetStatus(models.ContractPending, now, actor.String(), "renewal of "+current.ID)
		if err := repo.CreateContract(ctx, renewed); err != nil {
			return err
		}
		current.SetStatus(models.ContractRenewed, now, actor.String(), "renewed by "+renewed.ID)
		if err := repo.UpdateContract(ctx, current); err != nil {
			return err
		}

		ob.add(event.NewContractRenewed(actor.String(), event.ContractRenewedPayload{
			OldContractID:           current.ID,
			NewContractID:           renewed.ID,
			FlatID:                  current.FlatID,
			TenantName:              renewed.TenantName,
			TenantEmail:             renewed.TenantEmail,
			PreviousRent:            current.MonthlyRent,
			NewRent:                 renewed.MonthlyRent,
			NewStartDate:            models.FormatDate(renewed.StartDate),
			NewEndDate:              models.FormatDate(renewed.EndDate),
			GenerateDuesImmediately: req.GenerateDuesImmediately,
		}))

		if req.GenerateDuesImmediately {
			dues, err := s.gen.GenerateExtension(ctx, repo, renewed, newStart)
			if err != nil {
				return err
			}
			// The extension covers the successor's whole range.
			renewed.DuesGenerated = true
			if err := repo.UpdateContract(ctx, renewed); err != nil {
				return err
			}
			flat, err := repo.GetFlat(ctx, renewed.FlatID)
			if err != nil {
				return notFound(err, "flat", renewed.FlatID)
			}
			ob.add(duesGeneratedEvent(actor, flat.BuildingID, renewed.ID, dues))
		}
		return nil
	})
	if err != nil {
		slog.Error("RenewContract failed", "contract_id", id, "error", err)
		return nil, err
	}
	ob.flush(ctx, s.pub)

	slog.Info("Contract renewed", "old_contract_id", id, "new_contract_id", renewed.ID)
	return renewed, nil
}

// Cancel terminates a live contract, optionally cancelling its unpaid dues in
// the same transaction.
func (s *ContractService) Cancel(ctx context.Context, id string, req CancelContractRequest, actor models.Actor) (*models.Contract, error) {
	slog.Info("CancelContract request received", "contract_id", id, "actor", actor.String())

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, apperr.Validation("reason", "is required")
	}
	today := s.today()
	effective := models.DateOf(req.EffectiveDate)
	if req.EffectiveDate.IsZero() {
		effective = today
	}
	if effective.After(today) {
		return nil, apperr.Validation("effectiveDate", "cancellation cannot be scheduled in the future")
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(current.FlatID)
	defer unlock()

	var (
		ob       outbox
		contract *models.Contract
	)
	err = s.store.WithTx(ctx, func(repo storage.Repository) error {
		var err error
		contract, err = repo.GetContract(ctx, id)
		if err != nil {
			return notFound(err, "contract", id)
		}
		if contract.Status == models.ContractCancelled {
			return apperr.Conflict("contract %s is already cancelled", id)
		}
		if !contract.Status.CanTransitionTo(models.ContractCancelled) {
			return apperr.Conflict("contract %s is %s and cannot be cancelled", id, contract.Status)
		}

		reason := req.Reason
		if req.ReasonCategory != "" {
			reason = req.ReasonCategory + ": " + req.Reason
		}
		now := s.now()
		contract.CancellationReason = reason
		contract.CancellationDate = &effective
		contract.CancelledBy = actor.String()
		contract.DepositRefunded = req.RefundDeposit
		if req.Notes != "" {
			contract.Notes = strings.TrimSpace(contract.Notes + "\n" + req.Notes)
		}
		contract.SetStatus(models.ContractCancelled, now, actor.String(), reason)
		if err := repo.UpdateContract(ctx, contract); err != nil {
			return err
		}

		cancelled := 0
		if req.CancelUnpaidDues {
			if cancelled, err = s.gen.CancelUnpaidDues(ctx, repo, contract); err != nil {
				return err
			}
		}

		ob.add(event.NewContractCancelled(actor.String(), event.ContractCancelledPayload{
			ContractID:       contract.ID,
			FlatID:           contract.FlatID,
			TenantName:       contract.TenantName,
			TenantEmail:      contract.TenantEmail,
			Reason:           reason,
			EffectiveDate:    models.FormatDate(effective),
			CancelUnpaidDues: req.CancelUnpaidDues,
			RefundDeposit:    req.RefundDeposit,
			CancelledDues:    cancelled,
		}))
		return nil
	})
	if err != nil {
		slog.Error("CancelContract failed", "contract_id", id, "error", err)
		return nil, err
	}
	ob.flush(ctx, s.pub)

	slog.Info("Contract cancelled", "contract_id", id, "effective_date", models.FormatDate(effective))
	return contract, nil
}

// Modify replaces a live contract whose dues have not been generated with a
// successor carrying the changed terms.
func (s *ContractService) Modify(ctx context.Context, id string, req ModifyContractRequest, actor models.Actor) (*models.Contract, error) {
	slog.Info("ModifyContract request received", "contract_id", id, "actor", actor.String())

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, apperr.Validation("reason", "is required")
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(current.FlatID)
	defer unlock()

	var (
		ob       outbox
		modified *models.Contract
	)
	err = s.store.WithTx(ctx, func(repo storage.Repository) error {
		current, err := repo.GetContract(ctx, id)
		if err != nil {
			return notFound(err, "contract", id)
		}
		if !current.Status.IsLive() {
			return apperr.Conflict("contract %s is %s and cannot be modified", id, current.Status)
		}
		if current.DuesGenerated {
			return apperr.Conflict("dues already generated for contract %s, use renewal to change terms", id)
		}

		today := s.today()
		effective := models.DateOf(req.EffectiveDate)
		if req.EffectiveDate.IsZero() {
			effective = today
		}
		if effective.After(current.EndDate) {
			return apperr.Validation("effectiveDate", "must not be after the contract end date %s", models.FormatDate(current.EndDate))
		}

		modified = successor(current, s.now())
		applyTerms(modified, req.NewMonthlyRent, req.NewSecurityDeposit, req.NewDayOfMonth)
		if req.NewEndDate != nil {
			modified.EndDate = models.DateOf(*req.NewEndDate)
		}
		if !modified.EndDate.After(modified.StartDate) {
			return apperr.Validation("endDate", "must be after start date")
		}
		if err := validateTerms(modified.MonthlyRent, modified.SecurityDeposit, modified.DayOfMonth); err != nil {
			return err
		}
		if err := checkOverlap(ctx, repo, current.FlatID, modified.StartDate, modified.EndDate, current.ID); err != nil {
			return err
		}

		now := s.now()
		detail := req.Reason
		if req.Details != "" {
			detail += " (" + req.Details + ")"
		}
		modified.Notes = strings.TrimSpace(current.Notes + "\nModified: " + detail)
		modified.SetStatus(initialStatus(modified.StartDate, today), now, actor.String(), "modification of "+current.ID)
		if err := repo.CreateContract(ctx, modified); err != nil {
			return err
		}
		current.SetStatus(models.ContractSuperseded, now, actor.String(), req.Reason)
		if err := repo.UpdateContract(ctx, current); err != nil {
			return err
		}

		ob.add(event.NewContractModified(actor.String(), event.ContractModifiedPayload{
			OldContractID:  current.ID,
			NewContractID:  modified.ID,
			FlatID:         current.FlatID,
			TenantName:     modified.TenantName,
			TenantEmail:    modified.TenantEmail,
			EffectiveDate:  models.FormatDate(effective),
			PreviousRent:   current.MonthlyRent,
			NewRent:        modified.MonthlyRent,
			Reason:         req.Reason,
			Details:        req.Details,
			RegenerateDues: req.RegenerateDues,
		}))

		if req.RegenerateDues {
			regen, err := s.gen.RegenerateForModification(ctx, repo, current, modified, effective)
			if err != nil {
				return err
			}
			flat, err := repo.GetFlat(ctx, modified.FlatID)
			if err != nil {
				return notFound(err, "flat", modified.FlatID)
			}
			ob.add(duesGeneratedEvent(actor, flat.BuildingID, modified.ID, regen.Created))
		}
		return nil
	})
	if err != nil {
		slog.Error("ModifyContract failed", "contract_id", id, "error", err)
		return nil, err
	}
	ob.flush(ctx, s.pub)

	slog.Info("Contract modified", "old_contract_id", id, "new_contract_id", modified.ID)
	return modified, nil
}

// successor copies the tenant and terms of c into a new unsaved contract
// linked back to c.
func successor(c *models.Contract, now time.Time) *models.Contract {
	return &models.Contract{
		FlatID:             c.FlatID,
		TenantName:         c.TenantName,
		TenantContact:      c.TenantContact,
		TenantEmail:        c.TenantEmail,
		StartDate:          c.StartDate,
		EndDate:            c.EndDate,
		MonthlyRent:        c.MonthlyRent,
		SecurityDeposit:    c.SecurityDeposit,
		DayOfMonth:         c.DayOfMonth,
		Notes:              c.Notes,
		PreviousContractID: c.ID,
		CreatedAt:          now.Unix(),
	}
}

func applyTerms(c *models.Contract, rent, deposit *decimal.Decimal, day *int) {
	if rent != nil {
		c.MonthlyRent = *rent
	}
	if deposit != nil {
		c.SecurityDeposit = *deposit
	}
	if day != nil {
		c.DayOfMonth = *day
	}
}

func duesGeneratedEvent(actor models.Actor, buildingID, contractID string, dues []*models.MonthlyDue) event.DomainEvent {
	p := event.MonthlyDuesGeneratedPayload{
		BuildingID: buildingID,
		ContractID: contractID,
		DueCount:   len(dues),
	}
	if len(dues) > 0 {
		first, last := dues[0].DueDate, dues[len(dues)-1].DueDate
		p.FirstDueDate = models.FormatDate(first)
		p.Period = calculator.PeriodLabel(first)
		if !first.Equal(last) {
			p.Period += " - " + calculator.PeriodLabel(last)
		}
	}
	return event.NewMonthlyDuesGenerated(actor.String(), p)
}

// Get returns a contract by ID.
func (s *ContractService) Get(ctx context.Context, id string) (*models.Contract, error) {
	c, err := s.store.GetContract(ctx, id)
	if err != nil {
		return nil, notFound(err, "contract", id)
	}
	return c, nil
}

// ListByFlat returns every contract of a flat, newest first.
func (s *ContractService) ListByFlat(ctx context.Context, flatID string) ([]*models.Contract, error) {
	if _, err := s.store.GetFlat(ctx, flatID); err != nil {
		return nil, notFound(err, "flat", flatID)
	}
	return s.store.ListContractsByFlat(ctx, flatID)
}

// ActiveForFlat returns the flat's ACTIVE contract.
func (s *ContractService) ActiveForFlat(ctx context.Context, flatID string) (*models.Contract, error) {
	contracts, err := s.ListByFlat(ctx, flatID)
	if err != nil {
		return nil, err
	}
	for _, c := range contracts {
		if c.Status == models.ContractActive {
			return c, nil
		}
	}
	return nil, apperr.NotFound("active contract for flat", flatID)
}

func normalizePage(p storage.Page) storage.Page {
	if p.Limit <= 0 {
		p.Limit = 20
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// ListByBuilding pages through a building's contracts.
func (s *ContractService) ListByBuilding(ctx context.Context, buildingID string, page storage.Page) (storage.PageResult[*models.Contract], error) {
	if _, err := s.store.GetBuilding(ctx, buildingID); err != nil {
		return storage.PageResult[*models.Contract]{}, notFound(err, "building", buildingID)
	}
	return s.store.ListContractsByBuilding(ctx, buildingID, normalizePage(page))
}

// SearchByTenantName pages through contracts whose tenant name contains query.
func (s *ContractService) SearchByTenantName(ctx context.Context, query string, page storage.Page) (storage.PageResult[*models.Contract], error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return storage.PageResult[*models.Contract]{}, apperr.Validation("tenantName", "search term is required")
	}
	return s.store.SearchContractsByTenantName(ctx, query, normalizePage(page))
}

// ListExpiring returns ACTIVE contracts ending within daysAhead days.
func (s *ContractService) ListExpiring(ctx context.Context, daysAhead int) ([]*models.Contract, error) {
	if daysAhead < 0 {
		return nil, apperr.Validation("daysAhead", "must not be negative")
	}
	today := s.today()
	return s.store.ListContractsEndingBetween(ctx, today, today.AddDate(0, 0, daysAhead))
}

var arrearsStatuses = []models.DueStatus{models.DueUnpaid, models.DuePartiallyPaid, models.DueOverdue}

// ListWithOverdueDues returns ACTIVE contracts with an outstanding due dated
// before today.
func (s *ContractService) ListWithOverdueDues(ctx context.Context) ([]*models.Contract, error) {
	return s.store.ListContractsWithDuesBefore(ctx, s.today(), arrearsStatuses)
}

// ListRenewable returns expiring contracts without arrears.
func (s *ContractService) ListRenewable(ctx context.Context, daysAhead int) ([]*models.Contract, error) {
	expiring, err := s.ListExpiring(ctx, daysAhead)
	if err != nil {
		return nil, err
	}
	inArrears, err := s.ListWithOverdueDues(ctx)
	if err != nil {
		return nil, err
	}
	skip := make(map[string]bool, len(inArrears))
	for _, c := range inArrears {
		skip[c.ID] = true
	}

	renewable := make([]*models.Contract, 0, len(expiring))
	for _, c := range expiring {
		if !skip[c.ID] {
			renewable = append(renewable, c)
		}
	}
	return renewable, nil
}

// History walks the PreviousContractID chain from id back to the original
// contract. The first element is id itself.
func (s *ContractService) History(ctx context.Context, id string) ([]*models.Contract, error) {
	var chain []*models.Contract
	seen := make(map[string]bool)
	for next := id; next != ""; {
		if seen[next] {
			return nil, fmt.Errorf("contract chain loops at %s", next)
		}
		seen[next] = true

		c, err := s.Get(ctx, next)
		if err != nil {
			return nil, err
		}
		chain = append(chain, c)
		next = c.PreviousContractID
	}
	return chain, nil
}

// Statistics summarizes a building's contracts.
func (s *ContractService) Statistics(ctx context.Context, buildingID string) (*models.ContractStats, error) {
	if _, err := s.store.GetBuilding(ctx, buildingID); err != nil {
		return nil, notFound(err, "building", buildingID)
	}
	return s.store.ContractStats(ctx, buildingID)
}

// Expiry warning windows, in days before the end date.
const (
	ExpiryNoticeDays = 30
	UrgentExpiryDays = 7
)

// NotifyExpiring is the scheduled expiry reminder: every ACTIVE contract
// ending within ExpiryNoticeDays gets a ContractExpiring event, marked urgent
// within UrgentExpiryDays and renewable when the flat has no arrears.
func (s *ContractService) NotifyExpiring(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	today := s.today()

	expiring, err := s.ListExpiring(ctx, ExpiryNoticeDays)
	if err != nil {
		return res, fmt.Errorf("failed to list expiring contracts: %w", err)
	}
	renewable, err := s.ListRenewable(ctx, ExpiryNoticeDays)
	if err != nil {
		return res, fmt.Errorf("failed to list renewable contracts: %w", err)
	}
	canRenew := make(map[string]bool, len(renewable))
	for _, c := range renewable {
		canRenew[c.ID] = true
	}

	urgent := 0
	for _, c := range expiring {
		res.Examined++
		daysLeft := int(c.EndDate.Sub(today).Hours() / 24)
		p := event.ContractExpiringPayload{
			ContractID:  c.ID,
			FlatID:      c.FlatID,
			TenantName:  c.TenantName,
			TenantEmail: c.TenantEmail,
			EndDate:     models.FormatDate(c.EndDate),
			DaysLeft:    daysLeft,
			Urgent:      daysLeft <= UrgentExpiryDays,
			Renewable:   canRenew[c.ID],
		}
		if p.Urgent {
			urgent++
		}
		s.pub.Publish(ctx, event.NewContractExpiring(models.SystemActor.String(), p))
		res.Transitioned++
	}

	slog.Info("Contract expiry reminders sent",
		"expiring", res.Transitioned,
		"urgent", urgent,
		"renewable", len(renewable),
	)
	return res, nil
}

// UpdateStatuses is the scheduled status sweep: PENDING contracts whose start
// date has arrived become ACTIVE, ACTIVE contracts past their end date become
// EXPIRED. Each transition is a compare-and-set, so rerunning is harmless.
func (s *ContractService) UpdateStatuses(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	today := s.today()

	pending, err := s.store.ListContractsByStatus(ctx, models.ContractPending)
	if err != nil {
		return res, fmt.Errorf("failed to list pending contracts: %w", err)
	}
	for _, c := range pending {
		res.Examined++
		if today.Before(c.StartDate) {
			continue
		}
		s.transition(ctx, c, models.ContractActive, "start date reached", &res)
	}

	active, err := s.store.ListContractsByStatus(ctx, models.ContractActive)
	if err != nil {
		return res, fmt.Errorf("failed to list active contracts: %w", err)
	}
	for _, c := range active {
		res.Examined++
		if !today.After(c.EndDate) {
			continue
		}
		s.transition(ctx, c, models.ContractExpired, "end date passed", &res)
	}

	slog.Info("Contract status sweep finished",
		"examined", res.Examined,
		"transitioned", res.Transitioned,
		"failed", res.Failed,
	)
	return res, nil
}

func (s *ContractService) transition(ctx context.Context, c *models.Contract, to models.ContractStatus, reason string, res *SweepResult) {
	from := c.Status
	ok, err := s.store.TransitionContractStatus(ctx, c.ID, from, to, s.now(), models.SystemActor.String(), reason)
	if err != nil {
		res.Failed++
		slog.Error("Contract status transition failed", "contract_id", c.ID, "from", from, "to", to, "error", err)
		return
	}
	if !ok {
		return
	}
	res.Transitioned++
	c.Status = to
	s.pub.Publish(ctx, event.NewContractStatusChanged(models.SystemActor.String(), event.ContractStatusChangedPayload{
		ContractID:  c.ID,
		FlatID:      c.FlatID,
		TenantName:  c.TenantName,
		TenantEmail: c.TenantEmail,
		From:        string(from),
		To:          string(to),
		Reason:      reason,
	}))
}
