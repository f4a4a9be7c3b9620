package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/flatlease/internal/models"
	"github.com/mmynk/flatlease/internal/storage"
)

var contractFields = []string{
	"id", "flat_id", "tenant_name", "tenant_contact", "tenant_email",
	"start_date", "end_date", "monthly_rent", "security_deposit", "day_of_month",
	"status", "dues_generated", "previous_contract_id", "notes",
	"cancellation_reason", "cancellation_date", "cancelled_by", "deposit_refunded",
	"status_changed_at", "status_changed_by", "status_change_reason",
	"created_at", "updated_at",
}

// contractColumns returns the column list, each prefixed with alias.
func contractColumns(alias string) string {
	if alias == "" {
		return strings.Join(contractFields, ", ")
	}
	cols := make([]string, len(contractFields))
	for i, f := range contractFields {
		cols[i] = alias + "." + f
	}
	return strings.Join(cols, ", ")
}

func scanContract(row rowScanner) (*models.Contract, error) {
	c := &models.Contract{}
	var (
		start, end       string
		previous         sql.NullString
		cancellationDate sql.NullString
	)
	err := row.Scan(
		&c.ID, &c.FlatID, &c.TenantName, &c.TenantContact, &c.TenantEmail,
		&start, &end, &c.MonthlyRent, &c.SecurityDeposit, &c.DayOfMonth,
		&c.Status, &c.DuesGenerated, &previous, &c.Notes,
		&c.CancellationReason, &cancellationDate, &c.CancelledBy, &c.DepositRefunded,
		&c.StatusChangedAt, &c.StatusChangedBy, &c.StatusChangeReason,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if c.StartDate, err = models.ParseDate(start); err != nil {
		return nil, fmt.Errorf("invalid start date %q: %w", start, err)
	}
	if c.EndDate, err = models.ParseDate(end); err != nil {
		return nil, fmt.Errorf("invalid end date %q: %w", end, err)
	}
	if c.CancellationDate, err = parseNullDate(cancellationDate); err != nil {
		return nil, fmt.Errorf("invalid cancellation date %q: %w", cancellationDate.String, err)
	}
	c.PreviousContractID = previous.String
	return c, nil
}

func contractArgs(c *models.Contract) []any {
	return []any{
		c.ID, c.FlatID, c.TenantName, c.TenantContact, c.TenantEmail,
		models.FormatDate(c.StartDate), models.FormatDate(c.EndDate),
		c.MonthlyRent.String(), c.SecurityDeposit.String(), c.DayOfMonth,
		string(c.Status), boolToInt(c.DuesGenerated), nullString(c.PreviousContractID), c.Notes,
		c.CancellationReason, nullDate(c.CancellationDate), c.CancelledBy, boolToInt(c.DepositRefunded),
		c.StatusChangedAt, c.StatusChangedBy, c.StatusChangeReason,
		c.CreatedAt, c.UpdatedAt,
	}
}

func (s *SQLiteStore) queryContracts(ctx context.Context, query string, args ...any) ([]*models.Contract, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query contracts: %w", err)
	}
	defer rows.Close()

	var contracts []*models.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contract: %w", err)
		}
		contracts = append(contracts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contracts: %w", err)
	}
	return contracts, nil
}

// CreateContract persists a new contract.
func (s *SQLiteStore) CreateContract(ctx context.Context, c *models.Contract) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().Unix()
	if c.CreatedAt == 0 {
		c.CreatedAt = now
	}
	if c.UpdatedAt == 0 {
		c.UpdatedAt = c.CreatedAt
	}

	_, err := s.q.ExecContext(ctx,
		"INSERT INTO contracts ("+contractColumns("")+") VALUES ("+placeholders(len(contractFields))+")",
		contractArgs(c)...,
	)
	if err != nil {
		return fmt.Errorf("failed to insert contract: %w", err)
	}
	return nil
}

// UpdateContract overwrites the contract row with c.
func (s *SQLiteStore) UpdateContract(ctx context.Context, c *models.Contract) error {
	c.UpdatedAt = time.Now().Unix()
	args := contractArgs(c)

	// Every column but id, then id for the WHERE clause.
	sets := make([]string, 0, len(contractFields)-1)
	for _, f := range contractFields[1:] {
		sets = append(sets, f+" = ?")
	}
	res, err := s.q.ExecContext(ctx,
		"UPDATE contracts SET "+strings.Join(sets, ", ")+" WHERE id = ?",
		append(args[1:], c.ID)...,
	)
	if err != nil {
		return fmt.Errorf("failed to update contract: %w", err)
	}
	return checkAffected(res, "contract", c.ID)
}

// GetContract retrieves a contract by ID.
func (s *SQLiteStore) GetContract(ctx context.Context, id string) (*models.Contract, error) {
	c, err := scanContract(s.q.QueryRowContext(ctx,
		"SELECT "+contractColumns("")+" FROM contracts WHERE id = ?", id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("contract %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contract: %w", err)
	}
	return c, nil
}

// ListContractsByFlat returns every contract of a flat, newest start first.
func (s *SQLiteStore) ListContractsByFlat(ctx context.Context, flatID string) ([]*models.Contract, error) {
	return s.queryContracts(ctx,
		"SELECT "+contractColumns("")+" FROM contracts WHERE flat_id = ? ORDER BY start_date DESC, created_at DESC",
		flatID,
	)
}

// ListContractsByBuilding pages through the contracts of a building's flats.
func (s *SQLiteStore) ListContractsByBuilding(ctx context.Context, buildingID string, page storage.Page) (storage.PageResult[*models.Contract], error) {
	var result storage.PageResult[*models.Contract]
	err := s.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM contracts c JOIN flats f ON f.id = c.flat_id WHERE f.building_id = ?",
		buildingID,
	).Scan(&result.Total)
	if err != nil {
		return result, fmt.Errorf("failed to count contracts: %w", err)
	}

	result.Items, err = s.queryContracts(ctx,
		"SELECT "+contractColumns("c")+" FROM contracts c JOIN flats f ON f.id = c.flat_id "+
			"WHERE f.building_id = ? ORDER BY c.start_date DESC, c.id LIMIT ? OFFSET ?",
		buildingID, page.Limit, page.Offset,
	)
	return result, err
}

// SearchContractsByTenantName pages through contracts whose tenant name
// contains query, case-insensitively.
func (s *SQLiteStore) SearchContractsByTenantName(ctx context.Context, query string, page storage.Page) (storage.PageResult[*models.Contract], error) {
	var result storage.PageResult[*models.Contract]
	pattern := "%" + strings.ToLower(query) + "%"

	err := s.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM contracts WHERE LOWER(tenant_name) LIKE ?", pattern,
	).Scan(&result.Total)
	if err != nil {
		return result, fmt.Errorf("failed to count contracts: %w", err)
	}

	result.Items, err = s.queryContracts(ctx,
		"SELECT "+contractColumns("")+" FROM contracts WHERE LOWER(tenant_name) LIKE ? "+
			"ORDER BY tenant_name, start_date DESC LIMIT ? OFFSET ?",
		pattern, page.Limit, page.Offset,
	)
	return result, err
}

// FindOverlappingContracts returns live contracts of a flat intersecting [start, end].
func (s *SQLiteStore) FindOverlappingContracts(ctx context.Context, flatID string, start, end time.Time, excludeID string) ([]*models.Contract, error) {
	return s.queryContracts(ctx,
		"SELECT "+contractColumns("")+" FROM contracts "+
			"WHERE flat_id = ? AND status IN (?, ?) AND id != ? AND start_date <= ? AND end_date >= ? "+
			"ORDER BY start_date",
		flatID, string(models.ContractPending), string(models.ContractActive), excludeID,
		models.FormatDate(end), models.FormatDate(start),
	)
}

// ListContractsEndingBetween returns ACTIVE contracts ending in [from, to].
func (s *SQLiteStore) ListContractsEndingBetween(ctx context.Context, from, to time.Time) ([]*models.Contract, error) {
	return s.queryContracts(ctx,
		"SELECT "+contractColumns("")+" FROM contracts WHERE status = ? AND end_date BETWEEN ? AND ? ORDER BY end_date",
		string(models.ContractActive), models.FormatDate(from), models.FormatDate(to),
	)
}

// ListContractsWithDuesBefore returns ACTIVE contracts with a due in one of
// statuses dated before date.
func (s *SQLiteStore) ListContractsWithDuesBefore(ctx context.Context, date time.Time, statuses []models.DueStatus) ([]*models.Contract, error) {
	args := []any{string(models.ContractActive), models.FormatDate(date)}
	for _, st := range statuses {
		args = append(args, string(st))
	}
	return s.queryContracts(ctx,
		"SELECT "+contractColumns("c")+" FROM contracts c WHERE c.status = ? AND EXISTS ("+
			"SELECT 1 FROM monthly_dues d WHERE d.contract_id = c.id AND d.due_date < ? AND d.status IN ("+placeholders(len(statuses))+")"+
			") ORDER BY c.end_date",
		args...,
	)
}

// ListContractsByStatus returns all contracts in status.
func (s *SQLiteStore) ListContractsByStatus(ctx context.Context, status models.ContractStatus) ([]*models.Contract, error) {
	return s.queryContracts(ctx,
		"SELECT "+contractColumns("")+" FROM contracts WHERE status = ? ORDER BY start_date",
		string(status),
	)
}

// TransitionContractStatus is a compare-and-set on the status column.
func (s *SQLiteStore) TransitionContractStatus(ctx context.Context, id string, from, to models.ContractStatus, at time.Time, by, reason string) (bool, error) {
	res, err := s.q.ExecContext(ctx,
		"UPDATE contracts SET status = ?, status_changed_at = ?, status_changed_by = ?, status_change_reason = ?, updated_at = ? "+
			"WHERE id = ? AND status = ?",
		string(to), at.Unix(), by, reason, at.Unix(), id, string(from),
	)
	if err != nil {
		return false, fmt.Errorf("failed to transition contract %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// ContractStats aggregates contracts of a building.
func (s *SQLiteStore) ContractStats(ctx context.Context, buildingID string) (*models.ContractStats, error) {
	stats := &models.ContractStats{
		BuildingID:      buildingID,
		CountByStatus:   make(map[models.ContractStatus]int),
		TotalActiveRent: decimal.Zero,
	}

	rows, err := s.q.QueryContext(ctx,
		"SELECT c.status, c.monthly_rent, c.flat_id FROM contracts c JOIN flats f ON f.id = c.flat_id WHERE f.building_id = ?",
		buildingID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query contract stats: %w", err)
	}
	defer rows.Close()

	flats := make(map[string]struct{})
	for rows.Next() {
		var (
			status models.ContractStatus
			rent   decimal.Decimal
			flatID string
		)
		if err := rows.Scan(&status, &rent, &flatID); err != nil {
			return nil, fmt.Errorf("failed to scan contract stats: %w", err)
		}
		stats.CountByStatus[status]++
		if status == models.ContractActive {
			stats.TotalActiveRent = stats.TotalActiveRent.Add(rent)
			flats[flatID] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contract stats: %w", err)
	}
	stats.FlatsWithContract = len(flats)
	return stats, nil
}
