package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/flatlease/internal/models"
	"github.com/mmynk/flatlease/internal/storage"
)

var dueFields = []string{
	"id", "flat_id", "contract_id", "due_date", "due_amount", "base_rent",
	"additional_charges", "additional_charges_description", "paid_amount",
	"payment_date", "status", "description", "source", "created_at", "updated_at",
}

func dueColumns(alias string) string {
	if alias == "" {
		return strings.Join(dueFields, ", ")
	}
	cols := make([]string, len(dueFields))
	for i, f := range dueFields {
		cols[i] = alias + "." + f
	}
	return strings.Join(cols, ", ")
}

func scanDue(row rowScanner) (*models.MonthlyDue, error) {
	d := &models.MonthlyDue{}
	var (
		contractID  sql.NullString
		dueDate     string
		paymentDate sql.NullString
	)
	err := row.Scan(
		&d.ID, &d.FlatID, &contractID, &dueDate, &d.DueAmount, &d.BaseRent,
		&d.AdditionalCharges, &d.AdditionalChargesDescription, &d.PaidAmount,
		&paymentDate, &d.Status, &d.Description, &d.Source, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if d.DueDate, err = models.ParseDate(dueDate); err != nil {
		return nil, fmt.Errorf("invalid due date %q: %w", dueDate, err)
	}
	if d.PaymentDate, err = parseNullDate(paymentDate); err != nil {
		return nil, fmt.Errorf("invalid payment date %q: %w", paymentDate.String, err)
	}
	d.ContractID = contractID.String
	return d, nil
}

func dueArgs(d *models.MonthlyDue) []any {
	return []any{
		d.ID, d.FlatID, nullString(d.ContractID), models.FormatDate(d.DueDate),
		d.DueAmount.String(), d.BaseRent.String(), d.AdditionalCharges.String(),
		d.AdditionalChargesDescription, d.PaidAmount.String(), nullDate(d.PaymentDate),
		string(d.Status), d.Description, string(d.Source), d.CreatedAt, d.UpdatedAt,
	}
}

func (s *SQLiteStore) queryDues(ctx context.Context, query string, args ...any) ([]*models.MonthlyDue, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query dues: %w", err)
	}
	defer rows.Close()

	var dues []*models.MonthlyDue
	for rows.Next() {
		d, err := scanDue(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan due: %w", err)
		}
		dues = append(dues, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dues: %w", err)
	}
	return dues, nil
}

// CreateDue persists a new due. Unique-index violations wrap storage.ErrDuplicate.
func (s *SQLiteStore) CreateDue(ctx context.Context, d *models.MonthlyDue) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedAt == 0 {
		d.CreatedAt = time.Now().Unix()
	}
	if d.UpdatedAt == 0 {
		d.UpdatedAt = d.CreatedAt
	}

	_, err := s.q.ExecContext(ctx,
		"INSERT INTO monthly_dues ("+dueColumns("")+") VALUES ("+placeholders(len(dueFields))+")",
		dueArgs(d)...,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("due for flat %s on %s: %w", d.FlatID, models.FormatDate(d.DueDate), storage.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to insert due: %w", err)
	}
	return nil
}

// UpdateDue overwrites the due row with d.
func (s *SQLiteStore) UpdateDue(ctx context.Context, d *models.MonthlyDue) error {
	d.UpdatedAt = time.Now().Unix()
	args := dueArgs(d)

	sets := make([]string, 0, len(dueFields)-1)
	for _, f := range dueFields[1:] {
		sets = append(sets, f+" = ?")
	}
	res, err := s.q.ExecContext(ctx,
		"UPDATE monthly_dues SET "+strings.Join(sets, ", ")+" WHERE id = ?",
		append(args[1:], d.ID)...,
	)
	if err != nil {
		return fmt.Errorf("failed to update due: %w", err)
	}
	return checkAffected(res, "due", d.ID)
}

// GetDue retrieves a due by ID.
func (s *SQLiteStore) GetDue(ctx context.Context, id string) (*models.MonthlyDue, error) {
	d, err := scanDue(s.q.QueryRowContext(ctx,
		"SELECT "+dueColumns("")+" FROM monthly_dues WHERE id = ?", id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("due %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get due: %w", err)
	}
	return d, nil
}

// DeleteDues removes dues by ID.
func (s *SQLiteStore) DeleteDues(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	if _, err := s.q.ExecContext(ctx,
		"DELETE FROM monthly_dues WHERE id IN ("+placeholders(len(ids))+")", args...,
	); err != nil {
		return fmt.Errorf("failed to delete dues: %w", err)
	}
	return nil
}

// ListDuesByContract returns a contract's dues ordered by due date.
func (s *SQLiteStore) ListDuesByContract(ctx context.Context, contractID string) ([]*models.MonthlyDue, error) {
	return s.queryDues(ctx,
		"SELECT "+dueColumns("")+" FROM monthly_dues WHERE contract_id = ? ORDER BY due_date, created_at",
		contractID,
	)
}

// ListDuesByFlat returns a flat's dues ordered by due date.
func (s *SQLiteStore) ListDuesByFlat(ctx context.Context, flatID string) ([]*models.MonthlyDue, error) {
	return s.queryDues(ctx,
		"SELECT "+dueColumns("")+" FROM monthly_dues WHERE flat_id = ? ORDER BY due_date, created_at",
		flatID,
	)
}

// ListOutstandingDuesByFlat returns payable dues, oldest first.
func (s *SQLiteStore) ListOutstandingDuesByFlat(ctx context.Context, flatID string) ([]*models.MonthlyDue, error) {
	return s.queryDues(ctx,
		"SELECT "+dueColumns("")+" FROM monthly_dues WHERE flat_id = ? AND status IN (?, ?, ?) "+
			"ORDER BY due_date, created_at, id",
		flatID, string(models.DueUnpaid), string(models.DuePartiallyPaid), string(models.DueOverdue),
	)
}

// ListDuesByBuilding returns dues of a building's flats dated in [from, to].
func (s *SQLiteStore) ListDuesByBuilding(ctx context.Context, buildingID string, from, to time.Time) ([]*models.MonthlyDue, error) {
	return s.queryDues(ctx,
		"SELECT "+dueColumns("d")+" FROM monthly_dues d JOIN flats f ON f.id = d.flat_id "+
			"WHERE f.building_id = ? AND d.due_date BETWEEN ? AND ? ORDER BY d.due_date, f.number",
		buildingID, models.FormatDate(from), models.FormatDate(to),
	)
}

// ListDuesByStatusBefore returns dues in status dated strictly before date.
func (s *SQLiteStore) ListDuesByStatusBefore(ctx context.Context, status models.DueStatus, date time.Time) ([]*models.MonthlyDue, error) {
	return s.queryDues(ctx,
		"SELECT "+dueColumns("")+" FROM monthly_dues WHERE status = ? AND due_date < ? ORDER BY due_date",
		string(status), models.FormatDate(date),
	)
}

// TransitionDueStatus is a compare-and-set on the status column.
func (s *SQLiteStore) TransitionDueStatus(ctx context.Context, id string, from, to models.DueStatus) (bool, error) {
	res, err := s.q.ExecContext(ctx,
		"UPDATE monthly_dues SET status = ?, updated_at = ? WHERE id = ? AND status = ?",
		string(to), time.Now().Unix(), id, string(from),
	)
	if err != nil {
		return false, fmt.Errorf("failed to transition due %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// ListOverdueByBuilding returns OVERDUE dues of a building's flats.
func (s *SQLiteStore) ListOverdueByBuilding(ctx context.Context, buildingID string) ([]*models.MonthlyDue, error) {
	return s.queryDues(ctx,
		"SELECT "+dueColumns("d")+" FROM monthly_dues d JOIN flats f ON f.id = d.flat_id "+
			"WHERE f.building_id = ? AND d.status = ? ORDER BY f.number, d.due_date",
		buildingID, string(models.DueOverdue),
	)
}
