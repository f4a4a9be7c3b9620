package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod is how a payment was remitted.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "CASH"
	MethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	MethodCreditCard   PaymentMethod = "CREDIT_CARD"
	MethodCheck        PaymentMethod = "CHECK"
	MethodOther        PaymentMethod = "OTHER"
)

// Valid reports whether m is a known method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodBankTransfer, MethodCreditCard, MethodCheck, MethodOther:
		return true
	}
	return false
}

// Payment is money received from a flat.
type Payment struct {
	// ID is the unique identifier (UUID format).
	ID string

	FlatID string

	// Amount never exceeded the flat's outstanding balance when recorded.
	Amount      decimal.Decimal
	PaymentDate time.Time

	Method          PaymentMethod
	ReferenceNumber string
	ReceiptNumber   string
	Description     string

	RecordedBy string

	// Version is incremented on every update for optimistic locking.
	Version int

	CreatedAt int64
	UpdatedAt int64
}

// PaymentAllocation is the part of one payment applied to one due.
type PaymentAllocation struct {
	ID        string
	PaymentID string
	DueID     string
	Amount    decimal.Decimal
	CreatedAt int64
}

// PaymentSummary totals payments of a building in a date range.
type PaymentSummary struct {
	BuildingID string
	From       time.Time
	To         time.Time
	Count      int
	Total      decimal.Decimal
}
