package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/flatlease/internal/models"
	"github.com/mmynk/flatlease/internal/storage"
)

const paymentColumns = "id, flat_id, amount, payment_date, method, reference_number, receipt_number, description, recorded_by, version, created_at, updated_at"

func scanPayment(row rowScanner) (*models.Payment, error) {
	p := &models.Payment{}
	var paidAt int64
	err := row.Scan(&p.ID, &p.FlatID, &p.Amount, &paidAt, &p.Method, &p.ReferenceNumber,
		&p.ReceiptNumber, &p.Description, &p.RecordedBy, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.PaymentDate = time.Unix(paidAt, 0).UTC()
	return p, nil
}

// CreatePayment persists a new payment at version 1.
func (s *SQLiteStore) CreatePayment(ctx context.Context, p *models.Payment) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt == 0 {
		p.CreatedAt = time.Now().Unix()
	}
	p.UpdatedAt = p.CreatedAt
	p.Version = 1

	_, err := s.q.ExecContext(ctx,
		"INSERT INTO payments ("+paymentColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		p.ID, p.FlatID, p.Amount.String(), p.PaymentDate.Unix(), string(p.Method), p.ReferenceNumber,
		p.ReceiptNumber, p.Description, p.RecordedBy, p.Version, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

// UpdatePayment writes the non-financial fields of p if its version still matches.
func (s *SQLiteStore) UpdatePayment(ctx context.Context, p *models.Payment) error {
	now := time.Now().Unix()
	res, err := s.q.ExecContext(ctx,
		"UPDATE payments SET method = ?, reference_number = ?, receipt_number = ?, description = ?, "+
			"version = version + 1, updated_at = ? WHERE id = ? AND version = ?",
		string(p.Method), p.ReferenceNumber, p.ReceiptNumber, p.Description, now, p.ID, p.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		if _, err := s.GetPayment(ctx, p.ID); err != nil {
			return err
		}
		return fmt.Errorf("payment %s at version %d: %w", p.ID, p.Version, storage.ErrStaleVersion)
	}
	p.Version++
	p.UpdatedAt = now
	return nil
}

// GetPayment retrieves a payment by ID.
func (s *SQLiteStore) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	p, err := scanPayment(s.q.QueryRowContext(ctx, "SELECT "+paymentColumns+" FROM payments WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("payment %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

// DeletePayment removes a payment. Its allocations are removed by cascade.
func (s *SQLiteStore) DeletePayment(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, "DELETE FROM payments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete payment: %w", err)
	}
	return checkAffected(res, "payment", id)
}

// ListPaymentsByFlat returns a flat's payments, newest first.
func (s *SQLiteStore) ListPaymentsByFlat(ctx context.Context, flatID string) ([]*models.Payment, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE flat_id = ? ORDER BY payment_date DESC, created_at DESC",
		flatID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payments: %w", err)
	}
	return payments, nil
}

// SumPaymentsByBuilding counts and totals payments of a building dated in [from, to].
func (s *SQLiteStore) SumPaymentsByBuilding(ctx context.Context, buildingID string, from, to time.Time) (int, decimal.Decimal, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT p.amount FROM payments p JOIN flats f ON f.id = p.flat_id "+
			"WHERE f.building_id = ? AND p.payment_date >= ? AND p.payment_date < ?",
		buildingID, from.Unix(), to.AddDate(0, 0, 1).Unix(),
	)
	if err != nil {
		return 0, decimal.Zero, fmt.Errorf("failed to sum payments: %w", err)
	}
	defer rows.Close()

	count, total := 0, decimal.Zero
	for rows.Next() {
		var amount decimal.Decimal
		if err := rows.Scan(&amount); err != nil {
			return 0, decimal.Zero, fmt.Errorf("failed to scan payment amount: %w", err)
		}
		count++
		total = total.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return 0, decimal.Zero, fmt.Errorf("failed to iterate payments: %w", err)
	}
	return count, total, nil
}

// CreateAllocation records the part of a payment applied to a due.
func (s *SQLiteStore) CreateAllocation(ctx context.Context, a *models.PaymentAllocation) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt == 0 {
		a.CreatedAt = time.Now().Unix()
	}
	_, err := s.q.ExecContext(ctx,
		"INSERT INTO payment_allocations (id, payment_id, due_id, amount, created_at) VALUES (?, ?, ?, ?, ?)",
		a.ID, a.PaymentID, a.DueID, a.Amount.String(), a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert allocation: %w", err)
	}
	return nil
}

// ListAllocationsByPayment returns a payment's allocations in insertion order.
func (s *SQLiteStore) ListAllocationsByPayment(ctx context.Context, paymentID string) ([]*models.PaymentAllocation, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT id, payment_id, due_id, amount, created_at FROM payment_allocations WHERE payment_id = ? ORDER BY rowid",
		paymentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list allocations: %w", err)
	}
	defer rows.Close()

	var allocations []*models.PaymentAllocation
	for rows.Next() {
		a := &models.PaymentAllocation{}
		if err := rows.Scan(&a.ID, &a.PaymentID, &a.DueID, &a.Amount, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		allocations = append(allocations, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate allocations: %w", err)
	}
	return allocations, nil
}

// DeleteAllocationsByPayment removes a payment's allocations.
func (s *SQLiteStore) DeleteAllocationsByPayment(ctx context.Context, paymentID string) error {
	if _, err := s.q.ExecContext(ctx, "DELETE FROM payment_allocations WHERE payment_id = ?", paymentID); err != nil {
		return fmt.Errorf("failed to delete allocations: %w", err)
	}
	return nil
}

// LastPaymentDateForDue returns the latest payment date still allocated to a due.
func (s *SQLiteStore) LastPaymentDateForDue(ctx context.Context, dueID string) (*time.Time, error) {
	var paidAt sql.NullInt64
	err := s.q.QueryRowContext(ctx,
		"SELECT MAX(p.payment_date) FROM payment_allocations a JOIN payments p ON p.id = a.payment_id WHERE a.due_id = ?",
		dueID,
	).Scan(&paidAt)
	if err != nil {
		return nil, fmt.Errorf("failed to query last payment date: %w", err)
	}
	if !paidAt.Valid {
		return nil, nil
	}
	t := time.Unix(paidAt.Int64, 0).UTC()
	return &t, nil
}
