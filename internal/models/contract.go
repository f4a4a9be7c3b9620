package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ContractStatus is the lifecycle state of a contract row.
type ContractStatus string

const (
	ContractPending    ContractStatus = "PENDING"
	ContractActive     ContractStatus = "ACTIVE"
	ContractExpired    ContractStatus = "EXPIRED"
	ContractRenewed    ContractStatus = "RENEWED"
	ContractCancelled  ContractStatus = "CANCELLED"
	ContractSuperseded ContractStatus = "SUPERSEDED"
)

// LiveContractStatuses are the statuses that take part in overlap checks.
var LiveContractStatuses = []ContractStatus{ContractPending, ContractActive}

var contractTransitions = map[ContractStatus][]ContractStatus{
	ContractPending: {ContractActive, ContractCancelled, ContractSuperseded},
	ContractActive:  {ContractExpired, ContractRenewed, ContractCancelled, ContractSuperseded},
}

// CanTransitionTo reports whether a contract may move from s to next.
func (s ContractStatus) CanTransitionTo(next ContractStatus) bool {
	for _, allowed := range contractTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsLive reports whether the status is PENDING or ACTIVE.
func (s ContractStatus) IsLive() bool {
	return s == ContractPending || s == ContractActive
}

// IsTerminal reports whether the contract row can no longer change status.
func (s ContractStatus) IsTerminal() bool {
	return !s.IsLive()
}

// Valid reports whether s is a known status.
func (s ContractStatus) Valid() bool {
	switch s {
	case ContractPending, ContractActive, ContractExpired, ContractRenewed, ContractCancelled, ContractSuperseded:
		return true
	}
	return false
}

// Contract is a rental agreement for one flat over an inclusive date range.
//
// Renewals and modifications never edit the terms of an existing row: they
// create a new row pointing back through PreviousContractID and move the old
// row to a terminal status.
type Contract struct {
	// ID is the unique identifier (UUID format).
	ID string

	// FlatID references the rented Flat.
	FlatID string

	TenantName    string
	TenantContact string
	TenantEmail   string

	// StartDate and EndDate are inclusive calendar dates.
	StartDate time.Time
	EndDate   time.Time

	MonthlyRent     decimal.Decimal
	SecurityDeposit decimal.Decimal

	// DayOfMonth (1-31) is the target day rent falls due, clamped per month.
	DayOfMonth int

	Status ContractStatus

	// DuesGenerated flips to true once, when the full due schedule exists.
	DuesGenerated bool

	// PreviousContractID links a renewal or modification to its predecessor.
	PreviousContractID string

	Notes string

	CancellationReason string
	CancellationDate   *time.Time
	CancelledBy        string
	DepositRefunded    bool

	StatusChangedAt    int64
	StatusChangedBy    string
	StatusChangeReason string

	CreatedAt int64
	UpdatedAt int64
}

// Overlaps reports whether the contract's range intersects [start, end], inclusive.
func (c *Contract) Overlaps(start, end time.Time) bool {
	return !c.StartDate.After(end) && !c.EndDate.Before(start)
}

// IsModifiable reports whether terms may still be changed by modification.
func (c *Contract) IsModifiable() bool {
	return !c.DuesGenerated && c.Status.IsLive()
}

// SetStatus moves the contract to next and records the audit fields.
// The caller is responsible for checking CanTransitionTo.
func (c *Contract) SetStatus(next ContractStatus, at time.Time, by, reason string) {
	c.Status = next
	c.StatusChangedAt = at.Unix()
	c.StatusChangedBy = by
	c.StatusChangeReason = reason
	c.UpdatedAt = at.Unix()
}

// ContractStats summarizes the contracts of one building.
type ContractStats struct {
	BuildingID        string
	CountByStatus     map[ContractStatus]int
	TotalActiveRent   decimal.Decimal
	FlatsWithContract int
}
