package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/mmynk/flatlease/internal/models"
	"github.com/mmynk/flatlease/internal/service"
)

// BuildingHandler serves building and flat registration.
type BuildingHandler struct {
	flats *service.FlatService
}

// NewBuildingHandler creates a BuildingHandler.
func NewBuildingHandler(svc *service.Services) *BuildingHandler {
	return &BuildingHandler{flats: svc.Flats}
}

type createBuildingRequest struct {
	Name              string          `json:"name"`
	Address           string          `json:"address"`
	DefaultMonthlyFee decimal.Decimal `json:"defaultMonthlyFee"`
}

// CreateBuilding handles POST /v1/buildings.
func (h *BuildingHandler) CreateBuilding(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var body createBuildingRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	b := &models.Building{Name: body.Name, Address: body.Address, DefaultMonthlyFee: body.DefaultMonthlyFee}
	if err := h.flats.CreateBuilding(r.Context(), b, actor); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBuildingJSON(b))
}

// GetBuilding handles GET /v1/buildings/{id}.
func (h *BuildingHandler) GetBuilding(w http.ResponseWriter, r *http.Request) {
	b, err := h.flats.GetBuilding(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBuildingJSON(b))
}

// ListBuildings handles GET /v1/buildings.
func (h *BuildingHandler) ListBuildings(w http.ResponseWriter, r *http.Request) {
	bs, err := h.flats.ListBuildings(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]buildingJSON, len(bs))
	for i, b := range bs {
		out[i] = toBuildingJSON(b)
	}
	writeJSON(w, http.StatusOK, out)
}

type createFlatRequest struct {
	Number      string          `json:"number"`
	TenantName  string          `json:"tenantName"`
	TenantEmail string          `json:"tenantEmail"`
	MonthlyRent decimal.Decimal `json:"monthlyRent"`
	Active      *bool           `json:"active"`
}

// CreateFlat handles POST /v1/buildings/{id}/flats.
func (h *BuildingHandler) CreateFlat(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var body createFlatRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	f := &models.Flat{
		BuildingID:  urlParam(r, "id"),
		Number:      body.Number,
		TenantName:  body.TenantName,
		TenantEmail: body.TenantEmail,
		MonthlyRent: body.MonthlyRent,
		Active:      body.Active == nil || *body.Active,
	}
	if err := h.flats.CreateFlat(r.Context(), f, actor); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFlatJSON(f))
}

// ListFlats handles GET /v1/buildings/{id}/flats.
func (h *BuildingHandler) ListFlats(w http.ResponseWriter, r *http.Request) {
	fs, err := h.flats.ListActiveFlats(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]flatJSON, len(fs))
	for i, f := range fs {
		out[i] = toFlatJSON(f)
	}
	writeJSON(w, http.StatusOK, out)
}

// GetFlat handles GET /v1/flats/{id}.
func (h *BuildingHandler) GetFlat(w http.ResponseWriter, r *http.Request) {
	f, err := h.flats.GetFlat(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFlatJSON(f))
}
