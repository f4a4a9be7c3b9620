// Package storage defines the persistence interfaces for flatlease.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/flatlease/internal/models"
)

var (
	// ErrNotFound is returned (wrapped) when a row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned (wrapped) when an insert violates a unique index.
	ErrDuplicate = errors.New("duplicate")

	// ErrStaleVersion is returned (wrapped) when an optimistic-lock update
	// matched no row at the expected version.
	ErrStaleVersion = errors.New("stale version")
)

// Page selects a window of a list query.
type Page struct {
	Limit  int
	Offset int
}

// PageResult is one window of a list query with the unpaged total.
type PageResult[T any] struct {
	Items []T
	Total int
}

// Store is the persistence root. Repository methods called on a Store run
// outside any transaction.
type Store interface {
	Repository

	// Close releases the underlying database.
	Close() error
}

// Repository groups the per-entity stores.
type Repository interface {
	BuildingStore
	FlatStore
	ContractStore
	DueStore
	PaymentStore

	// WithTx runs fn in a single transaction. The transaction commits when fn
	// returns nil and rolls back otherwise. Calling WithTx on the Repository
	// handed to fn reuses the open transaction.
	WithTx(ctx context.Context, fn func(Repository) error) error
}

// BuildingStore persists buildings.
type BuildingStore interface {
	CreateBuilding(ctx context.Context, b *models.Building) error
	GetBuilding(ctx context.Context, id string) (*models.Building, error)
	ListBuildings(ctx context.Context) ([]*models.Building, error)
}

// FlatStore persists flats.
type FlatStore interface {
	CreateFlat(ctx context.Context, f *models.Flat) error
	GetFlat(ctx context.Context, id string) (*models.Flat, error)
	ListActiveFlatsByBuilding(ctx context.Context, buildingID string) ([]*models.Flat, error)
}

// ContractStore persists contracts.
type ContractStore interface {
	CreateContract(ctx context.Context, c *models.Contract) error

	// UpdateContract overwrites every mutable column of c.
	UpdateContract(ctx context.Context, c *models.Contract) error

	GetContract(ctx context.Context, id string) (*models.Contract, error)
	ListContractsByFlat(ctx context.Context, flatID string) ([]*models.Contract, error)
	ListContractsByBuilding(ctx context.Context, buildingID string, page Page) (PageResult[*models.Contract], error)
	SearchContractsByTenantName(ctx context.Context, query string, page Page) (PageResult[*models.Contract], error)

	// FindOverlappingContracts returns live contracts of flatID whose range
	// intersects [start, end] inclusive, ignoring excludeID.
	FindOverlappingContracts(ctx context.Context, flatID string, start, end time.Time, excludeID string) ([]*models.Contract, error)

	// ListContractsEndingBetween returns ACTIVE contracts with end date in [from, to].
	ListContractsEndingBetween(ctx context.Context, from, to time.Time) ([]*models.Contract, error)

	// ListContractsWithDuesBefore returns ACTIVE contracts owning at least one
	// due in one of statuses dated before date.
	ListContractsWithDuesBefore(ctx context.Context, date time.Time, statuses []models.DueStatus) ([]*models.Contract, error)

	// ListContractsByStatus returns every contract in status.
	ListContractsByStatus(ctx context.Context, status models.ContractStatus) ([]*models.Contract, error)

	// TransitionContractStatus moves a contract from one status to another
	// only if it is still in from. It reports whether a row changed.
	TransitionContractStatus(ctx context.Context, id string, from, to models.ContractStatus, at time.Time, by, reason string) (bool, error)

	// ContractStats aggregates the contracts of a building.
	ContractStats(ctx context.Context, buildingID string) (*models.ContractStats, error)
}

// DueStore persists monthly dues.
type DueStore interface {
	// CreateDue inserts d. A unique-index violation is returned wrapping ErrDuplicate.
	CreateDue(ctx context.Context, d *models.MonthlyDue) error

	UpdateDue(ctx context.Context, d *models.MonthlyDue) error
	GetDue(ctx context.Context, id string) (*models.MonthlyDue, error)
	DeleteDues(ctx context.Context, ids []string) error

	// ListDuesByContract returns the contract's dues ordered by due date.
	ListDuesByContract(ctx context.Context, contractID string) ([]*models.MonthlyDue, error)

	// ListDuesByFlat returns the flat's dues ordered by due date.
	ListDuesByFlat(ctx context.Context, flatID string) ([]*models.MonthlyDue, error)

	// ListOutstandingDuesByFlat returns dues that can still receive payments,
	// oldest due date first.
	ListOutstandingDuesByFlat(ctx context.Context, flatID string) ([]*models.MonthlyDue, error)

	// ListDuesByBuilding returns dues of all flats in a building with due date in [from, to].
	ListDuesByBuilding(ctx context.Context, buildingID string, from, to time.Time) ([]*models.MonthlyDue, error)

	// ListDuesByStatusBefore returns dues in status dated strictly before date.
	ListDuesByStatusBefore(ctx context.Context, status models.DueStatus, date time.Time) ([]*models.MonthlyDue, error)

	// TransitionDueStatus moves a due from one status to another only if it
	// is still in from. It reports whether a row changed.
	TransitionDueStatus(ctx context.Context, id string, from, to models.DueStatus) (bool, error)

	// ListOverdueByBuilding returns OVERDUE dues of the building's flats.
	ListOverdueByBuilding(ctx context.Context, buildingID string) ([]*models.MonthlyDue, error)
}

// PaymentStore persists payments and their allocations.
type PaymentStore interface {
	CreatePayment(ctx context.Context, p *models.Payment) error

	// UpdatePayment writes p if the stored version equals p.Version, then
	// increments p.Version. A mismatch returns ErrStaleVersion.
	UpdatePayment(ctx context.Context, p *models.Payment) error

	GetPayment(ctx context.Context, id string) (*models.Payment, error)
	DeletePayment(ctx context.Context, id string) error
	ListPaymentsByFlat(ctx context.Context, flatID string) ([]*models.Payment, error)

	// SumPaymentsByBuilding counts and totals payments dated in [from, to].
	SumPaymentsByBuilding(ctx context.Context, buildingID string, from, to time.Time) (int, decimal.Decimal, error)

	CreateAllocation(ctx context.Context, a *models.PaymentAllocation) error
	ListAllocationsByPayment(ctx context.Context, paymentID string) ([]*models.PaymentAllocation, error)
	DeleteAllocationsByPayment(ctx context.Context, paymentID string) error

	// LastPaymentDateForDue returns the latest date among the payments still
	// allocated to a due, or nil when none is.
	LastPaymentDateForDue(ctx context.Context, dueID string) (*time.Time, error)
}
