package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mmynk/flatlease/internal/apperr"
	"github.com/mmynk/flatlease/internal/models"
)

// FlatService registers buildings and flats. It exists so contracts and dues
// have something to point at; richer building management lives elsewhere.
type FlatService struct {
	*core
}

// CreateBuilding registers a building.
func (s *FlatService) CreateBuilding(ctx context.Context, b *models.Building, actor models.Actor) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if strings.TrimSpace(b.Name) == "" {
		return apperr.Validation("name", "is required")
	}
	if b.DefaultMonthlyFee.IsNegative() {
		return apperr.Validation("defaultMonthlyFee", "must not be negative")
	}
	b.CreatedAt = s.now().Unix()
	if err := s.store.CreateBuilding(ctx, b); err != nil {
		return err
	}
	slog.Info("Building created", "building_id", b.ID, "name", b.Name, "actor", actor.String())
	return nil
}

// GetBuilding returns a building by ID.
func (s *FlatService) GetBuilding(ctx context.Context, id string) (*models.Building, error) {
	b, err := s.store.GetBuilding(ctx, id)
	if err != nil {
		return nil, notFound(err, "building", id)
	}
	return b, nil
}

// ListBuildings returns every building.
func (s *FlatService) ListBuildings(ctx context.Context) ([]*models.Building, error) {
	return s.store.ListBuildings(ctx)
}

// CreateFlat registers a flat in an existing building.
func (s *FlatService) CreateFlat(ctx context.Context, f *models.Flat, actor models.Actor) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if strings.TrimSpace(f.Number) == "" {
		return apperr.Validation("number", "is required")
	}
	if f.MonthlyRent.IsNegative() {
		return apperr.Validation("monthlyRent", "must not be negative")
	}
	if _, err := s.store.GetBuilding(ctx, f.BuildingID); err != nil {
		return notFound(err, "building", f.BuildingID)
	}
	f.CreatedAt = s.now().Unix()
	if err := s.store.CreateFlat(ctx, f); err != nil {
		return err
	}
	slog.Info("Flat created", "flat_id", f.ID, "building_id", f.BuildingID, "number", f.Number, "actor", actor.String())
	return nil
}

// GetFlat returns a flat by ID.
func (s *FlatService) GetFlat(ctx context.Context, id string) (*models.Flat, error) {
	f, err := s.store.GetFlat(ctx, id)
	if err != nil {
		return nil, notFound(err, "flat", id)
	}
	return f, nil
}

// ListActiveFlats returns the active flats of a building.
func (s *FlatService) ListActiveFlats(ctx context.Context, buildingID string) ([]*models.Flat, error) {
	if _, err := s.store.GetBuilding(ctx, buildingID); err != nil {
		return nil, notFound(err, "building", buildingID)
	}
	return s.store.ListActiveFlatsByBuilding(ctx, buildingID)
}
