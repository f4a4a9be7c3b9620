package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/flatlease/internal/models"
	"github.com/mmynk/flatlease/internal/storage"
)

// CreateBuilding persists a new building.
func (s *SQLiteStore) CreateBuilding(ctx context.Context, b *models.Building) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.CreatedAt == 0 {
		b.CreatedAt = time.Now().Unix()
	}

	_, err := s.q.ExecContext(ctx,
		"INSERT INTO buildings (id, name, address, default_monthly_fee, created_at) VALUES (?, ?, ?, ?, ?)",
		b.ID, b.Name, b.Address, b.DefaultMonthlyFee.String(), b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert building: %w", err)
	}
	return nil
}

// GetBuilding retrieves a building by ID.
func (s *SQLiteStore) GetBuilding(ctx context.Context, id string) (*models.Building, error) {
	b := &models.Building{}
	err := s.q.QueryRowContext(ctx,
		"SELECT id, name, address, default_monthly_fee, created_at FROM buildings WHERE id = ?",
		id,
	).Scan(&b.ID, &b.Name, &b.Address, &b.DefaultMonthlyFee, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("building %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get building: %w", err)
	}
	return b, nil
}

// ListBuildings returns every building ordered by name.
func (s *SQLiteStore) ListBuildings(ctx context.Context) ([]*models.Building, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT id, name, address, default_monthly_fee, created_at FROM buildings ORDER BY name",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list buildings: %w", err)
	}
	defer rows.Close()

	var buildings []*models.Building
	for rows.Next() {
		b := &models.Building{}
		if err := rows.Scan(&b.ID, &b.Name, &b.Address, &b.DefaultMonthlyFee, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan building: %w", err)
		}
		buildings = append(buildings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate buildings: %w", err)
	}
	return buildings, nil
}

const flatColumns = "id, building_id, number, tenant_name, tenant_email, monthly_rent, active, created_at"

func scanFlat(row rowScanner) (*models.Flat, error) {
	f := &models.Flat{}
	err := row.Scan(&f.ID, &f.BuildingID, &f.Number, &f.TenantName, &f.TenantEmail, &f.MonthlyRent, &f.Active, &f.CreatedAt)
	return f, err
}

// CreateFlat persists a new flat.
func (s *SQLiteStore) CreateFlat(ctx context.Context, f *models.Flat) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.CreatedAt == 0 {
		f.CreatedAt = time.Now().Unix()
	}

	_, err := s.q.ExecContext(ctx,
		"INSERT INTO flats ("+flatColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		f.ID, f.BuildingID, f.Number, f.TenantName, f.TenantEmail, f.MonthlyRent.String(), boolToInt(f.Active), f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert flat: %w", err)
	}
	return nil
}

// GetFlat retrieves a flat by ID.
func (s *SQLiteStore) GetFlat(ctx context.Context, id string) (*models.Flat, error) {
	f, err := scanFlat(s.q.QueryRowContext(ctx, "SELECT "+flatColumns+" FROM flats WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("flat %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get flat: %w", err)
	}
	return f, nil
}

// ListActiveFlatsByBuilding returns the active flats of a building ordered by number.
func (s *SQLiteStore) ListActiveFlatsByBuilding(ctx context.Context, buildingID string) ([]*models.Flat, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT "+flatColumns+" FROM flats WHERE building_id = ? AND active = 1 ORDER BY number",
		buildingID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list flats: %w", err)
	}
	defer rows.Close()

	var flats []*models.Flat
	for rows.Next() {
		f, err := scanFlat(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flat: %w", err)
		}
		flats = append(flats, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate flats: %w", err)
	}
	return flats, nil
}
