package models

import "github.com/shopspring/decimal"

// Building is a collection of flats managed together.
type Building struct {
	// ID is the unique identifier (UUID format).
	ID string

	Name    string
	Address string

	// DefaultMonthlyFee is charged to every active flat by the automatic
	// monthly generation sweep. Zero disables the sweep for this building.
	DefaultMonthlyFee decimal.Decimal

	CreatedAt int64
}

// Flat is a rentable unit inside a building.
type Flat struct {
	// ID is the unique identifier (UUID format).
	ID string

	// BuildingID references the owning Building.
	BuildingID string

	// Number is the human-facing flat number (e.g. "3B").
	Number string

	// TenantName and TenantEmail describe the current occupant, if any.
	TenantName  string
	TenantEmail string

	// MonthlyRent is used by building-wide generation in flat-rent mode.
	MonthlyRent decimal.Decimal

	// Active flats receive building-wide dues and accept new contracts.
	Active bool

	CreatedAt int64
}
