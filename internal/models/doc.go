// Package models defines the core domain models for flatlease.
//
// # Entities
//
//   - Building: groups flats and carries the default monthly fee used by
//     automatic building-wide due generation
//   - Flat: a rentable unit; contracts and dues always reference one
//   - Contract: a rental agreement for one flat over a date range
//   - MonthlyDue: one monetary obligation of a flat, optionally tied to a contract
//   - Payment: money received from a flat
//   - PaymentAllocation: the amount of one payment applied to one due
//
// # Conventions
//
// Relationships are ID strings, never pointers. Money is decimal.Decimal.
// Calendar dates (start, end, due) are UTC midnight time.Time values and are
// persisted as YYYY-MM-DD; audit timestamps are Unix seconds.
//
// State transitions live on the models themselves (MonthlyDue.MarkOverdue,
// MonthlyDue.Cancel, ContractStatus.CanTransitionTo) so every caller
// enforces the same rules.
package models
