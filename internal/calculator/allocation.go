package calculator

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// OpenDue is the minimal view of a due needed to plan an allocation.
// Callers pass dues already ordered oldest first.
type OpenDue struct {
	ID          string
	Outstanding decimal.Decimal
}

// Allocation is the amount of a payment applied to one due.
type Allocation struct {
	DueID string
	// Amount applied by this payment.
	Amount decimal.Decimal
	// Settles is true when Amount covers the due's whole outstanding balance.
	Settles bool
}

// TotalOutstanding sums the outstanding balance of dues.
func TotalOutstanding(dues []OpenDue) decimal.Decimal {
	total := decimal.Zero
	for _, d := range dues {
		total = total.Add(d.Outstanding)
	}
	return total
}

// Allocate spreads amount over dues in the given order, settling each due
// before moving to the next. It fails without allocating anything when amount
// is not positive or exceeds the total outstanding balance.
func Allocate(amount decimal.Decimal, dues []OpenDue) ([]Allocation, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("payment amount must be positive, got %s", amount)
	}
	outstanding := TotalOutstanding(dues)
	if amount.GreaterThan(outstanding) {
		return nil, fmt.Errorf("payment amount %s exceeds outstanding balance %s", amount, outstanding)
	}

	remaining := amount
	allocations := make([]Allocation, 0, len(dues))
	for _, d := range dues {
		if !remaining.IsPositive() {
			break
		}
		if !d.Outstanding.IsPositive() {
			continue
		}
		applied := decimal.Min(remaining, d.Outstanding)
		allocations = append(allocations, Allocation{
			DueID:   d.ID,
			Amount:  applied,
			Settles: applied.Equal(d.Outstanding),
		})
		remaining = remaining.Sub(applied)
	}
	return allocations, nil
}
