package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/flatlease/internal/apperr"
)

// DueStatus is the payment state of a MonthlyDue.
type DueStatus string

const (
	DueUnpaid        DueStatus = "UNPAID"
	DuePartiallyPaid DueStatus = "PARTIALLY_PAID"
	DuePaid          DueStatus = "PAID"
	DueOverdue       DueStatus = "OVERDUE"
	DueCancelled     DueStatus = "CANCELLED"
)

// OutstandingDueStatuses are the statuses that still carry a balance.
var OutstandingDueStatuses = []DueStatus{DueUnpaid, DuePartiallyPaid, DueOverdue}

// IsOutstanding reports whether a due in this status can receive payments.
func (s DueStatus) IsOutstanding() bool {
	return s == DueUnpaid || s == DuePartiallyPaid || s == DueOverdue
}

// DueSource records which operation created a due.
type DueSource string

const (
	DueSourceContract DueSource = "contract"
	DueSourceBuilding DueSource = "building"
	DueSourceAdHoc    DueSource = "adhoc"
)

// CancellationNote is appended to the description of dues cancelled together
// with their contract.
const CancellationNote = " - Cancelled due to contract cancellation"

// MonthlyDue is one monetary obligation of a flat.
type MonthlyDue struct {
	// ID is the unique identifier (UUID format).
	ID string

	FlatID string

	// ContractID is empty for building-wide and ad hoc dues.
	ContractID string

	DueDate time.Time

	// DueAmount is BaseRent + AdditionalCharges.
	DueAmount                    decimal.Decimal
	BaseRent                     decimal.Decimal
	AdditionalCharges            decimal.Decimal
	AdditionalChargesDescription string

	// PaidAmount never exceeds DueAmount.
	PaidAmount  decimal.Decimal
	PaymentDate *time.Time

	Status      DueStatus
	Description string
	Source      DueSource

	CreatedAt int64
	UpdatedAt int64
}

// Outstanding returns the unpaid remainder of the due.
func (d *MonthlyDue) Outstanding() decimal.Decimal {
	return d.DueAmount.Sub(d.PaidAmount)
}

// MarkFullyPaid settles the due. amount must equal the due amount.
func (d *MonthlyDue) MarkFullyPaid(amount decimal.Decimal, paidOn time.Time) error {
	if !d.Status.IsOutstanding() {
		return apperr.Conflict("due %s is %s and cannot be paid", d.ID, d.Status)
	}
	if !amount.Equal(d.DueAmount) {
		return apperr.Conflict("due %s: full payment %s does not match due amount %s", d.ID, amount, d.DueAmount)
	}
	d.PaidAmount = amount
	d.Status = DuePaid
	d.PaymentDate = &paidOn
	return nil
}

// MarkPartiallyPaid adds increment to the paid amount. Reaching the due
// amount exactly settles the due.
func (d *MonthlyDue) MarkPartiallyPaid(increment decimal.Decimal, paidOn time.Time) error {
	if !d.Status.IsOutstanding() {
		return apperr.Conflict("due %s is %s and cannot be paid", d.ID, d.Status)
	}
	if !increment.IsPositive() {
		return apperr.Validation("amount", "payment increment must be positive")
	}
	paid := d.PaidAmount.Add(increment)
	if paid.GreaterThan(d.DueAmount) {
		return apperr.Conflict("due %s: paid amount %s would exceed due amount %s", d.ID, paid, d.DueAmount)
	}
	d.PaidAmount = paid
	d.PaymentDate = &paidOn
	if paid.Equal(d.DueAmount) {
		d.Status = DuePaid
	} else {
		d.Status = DuePartiallyPaid
	}
	return nil
}

// MarkOverdue moves an UNPAID due whose date has passed to OVERDUE.
func (d *MonthlyDue) MarkOverdue(today time.Time) error {
	if d.Status != DueUnpaid {
		return apperr.Conflict("due %s is %s, only UNPAID dues become overdue", d.ID, d.Status)
	}
	if !d.DueDate.Before(today) {
		return apperr.Conflict("due %s is not past its due date", d.ID)
	}
	d.Status = DueOverdue
	return nil
}

// Cancel voids the obligation. A paid due cannot be cancelled.
func (d *MonthlyDue) Cancel(note string) error {
	switch d.Status {
	case DuePaid:
		return apperr.Conflict("due %s is paid and cannot be cancelled", d.ID)
	case DueCancelled:
		return apperr.Conflict("due %s is already cancelled", d.ID)
	}
	d.Status = DueCancelled
	d.Description += note
	return nil
}

// Reverse resets the due to its pre-payment state.
func (d *MonthlyDue) Reverse() {
	d.Status = DueUnpaid
	d.PaidAmount = decimal.Zero
	d.PaymentDate = nil
}

// ReverseAllocation removes amount previously applied by one payment.
// lastPaidOn is the date of the latest payment still applied to the due, nil
// when none remains. A cancelled due keeps its status.
func (d *MonthlyDue) ReverseAllocation(amount decimal.Decimal, lastPaidOn *time.Time) error {
	paid := d.PaidAmount.Sub(amount)
	if paid.IsNegative() {
		return apperr.Conflict("due %s: reversing %s exceeds paid amount %s", d.ID, amount, d.PaidAmount)
	}
	if paid.IsZero() && d.Status != DueCancelled {
		d.Reverse()
		return nil
	}
	d.PaidAmount = paid
	d.PaymentDate = nil
	if !paid.IsZero() && lastPaidOn != nil {
		on := DateOf(*lastPaidOn)
		d.PaymentDate = &on
	}
	if d.Status != DueCancelled {
		d.Status = DuePartiallyPaid
	}
	return nil
}

// Debtor is a flat with overdue dues and its total outstanding debt.
type Debtor struct {
	Flat         *Flat
	TotalDebt    decimal.Decimal
	OverdueCount int
	OldestDue    time.Time
}
