package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/mmynk/flatlease/internal/models"
	"github.com/mmynk/flatlease/internal/service"
)

// DueHandler serves the due ledger endpoints.
type DueHandler struct {
	dues *service.DueService
}

// NewDueHandler creates a DueHandler.
func NewDueHandler(svc *service.Services) *DueHandler {
	return &DueHandler{dues: svc.Dues}
}

type adHocDueRequest struct {
	FlatID                       string          `json:"flatId"`
	DueDate                      string          `json:"dueDate"`
	BaseRent                     decimal.Decimal `json:"baseRent"`
	AdditionalCharges            decimal.Decimal `json:"additionalCharges"`
	AdditionalChargesDescription string          `json:"additionalChargesDescription"`
	Description                  string          `json:"description"`
}

// CreateAdHocDue handles POST /v1/dues.
func (h *DueHandler) CreateAdHocDue(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var body adHocDueRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	date, err := parseDate("dueDate", body.DueDate)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	due, err := h.dues.CreateAdHoc(r.Context(), service.AdHocDueRequest{
		FlatID:                       body.FlatID,
		DueDate:                      date,
		BaseRent:                     body.BaseRent,
		AdditionalCharges:            body.AdditionalCharges,
		AdditionalChargesDescription: body.AdditionalChargesDescription,
		Description:                  body.Description,
	}, actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDueJSON(due))
}

// GetDue handles GET /v1/dues/{id}.
func (h *DueHandler) GetDue(w http.ResponseWriter, r *http.Request) {
	due, err := h.dues.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDueJSON(due))
}

type updateDueRequest struct {
	DueDate                      *string          `json:"dueDate"`
	BaseRent                     *decimal.Decimal `json:"baseRent"`
	AdditionalCharges            *decimal.Decimal `json:"additionalCharges"`
	AdditionalChargesDescription *string          `json:"additionalChargesDescription"`
	Description                  *string          `json:"description"`
}

// UpdateDue handles PATCH /v1/dues/{id}.
func (h *DueHandler) UpdateDue(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var body updateDueRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	date, err := parseDatePtr("dueDate", body.DueDate)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	due, err := h.dues.Update(r.Context(), urlParam(r, "id"), service.DueUpdate{
		DueDate:                      date,
		BaseRent:                     body.BaseRent,
		AdditionalCharges:            body.AdditionalCharges,
		AdditionalChargesDescription: body.AdditionalChargesDescription,
		Description:                  body.Description,
	}, actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDueJSON(due))
}

// CancelDue handles POST /v1/dues/{id}/cancel.
func (h *DueHandler) CancelDue(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	due, err := h.dues.Cancel(r.Context(), urlParam(r, "id"), actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDueJSON(due))
}

// ListByFlat handles GET /v1/flats/{id}/dues.
func (h *DueHandler) ListByFlat(w http.ResponseWriter, r *http.Request) {
	dues, err := h.dues.ListByFlat(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDuesJSON(dues))
}

type buildingDuesRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	DueDate        string          `json:"dueDate"`
	Description    string          `json:"description"`
	UseFlatRent    bool            `json:"useFlatRent"`
	FallbackAmount decimal.Decimal `json:"fallbackAmount"`
}

type buildingDuesResponse struct {
	Created  []dueJSON `json:"created"`
	Skipped  int       `json:"skipped"`
	Unpriced int       `json:"unpriced"`
}

// GenerateForBuilding handles POST /v1/buildings/{id}/dues.
func (h *DueHandler) GenerateForBuilding(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var body buildingDuesRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	date, err := parseDate("dueDate", body.DueDate)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	res, err := h.dues.GenerateForBuilding(r.Context(), service.BuildingDuesRequest{
		BuildingID:     urlParam(r, "id"),
		Amount:         body.Amount,
		DueDate:        date,
		Description:    body.Description,
		UseFlatRent:    body.UseFlatRent,
		FallbackAmount: body.FallbackAmount,
	}, actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, buildingDuesResponse{
		Created:  toDuesJSON(res.Created),
		Skipped:  res.Skipped,
		Unpriced: res.Unpriced,
	})
}

// Debtors handles GET /v1/buildings/{id}/debtors.
func (h *DueHandler) Debtors(w http.ResponseWriter, r *http.Request) {
	debtors, err := h.dues.Debtors(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]debtorJSON, len(debtors))
	for i, d := range debtors {
		out[i] = debtorJSON{
			Flat:         toFlatJSON(d.Flat),
			TotalDebt:    d.TotalDebt,
			OverdueCount: d.OverdueCount,
			OldestDue:    models.FormatDate(d.OldestDue),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type collectionRateResponse struct {
	BuildingID string  `json:"buildingId"`
	From       string  `json:"from"`
	To         string  `json:"to"`
	Rate       float64 `json:"rate"`
}

// CollectionRate handles GET /v1/buildings/{id}/collection-rate?from=&to=.
func (h *DueHandler) CollectionRate(w http.ResponseWriter, r *http.Request) {
	from, to, err := queryDateRange(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	id := urlParam(r, "id")
	rate, err := h.dues.CollectionRate(r.Context(), id, from, to)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, collectionRateResponse{
		BuildingID: id,
		From:       models.FormatDate(from),
		To:         models.FormatDate(to),
		Rate:       rate,
	})
}
