package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/mmynk/flatlease/internal/service"
)

// ContractHandler serves the contract lifecycle endpoints.
type ContractHandler struct {
	contracts *service.ContractService
	dues      *service.DueService
}

// NewContractHandler creates a ContractHandler.
func NewContractHandler(svc *service.Services) *ContractHandler {
	return &ContractHandler{contracts: svc.Contracts, dues: svc.Dues}
}

type createContractRequest struct {
	FlatID                  string          `json:"flatId"`
	TenantName              string          `json:"tenantName"`
	TenantContact           string          `json:"tenantContact"`
	TenantEmail             string          `json:"tenantEmail"`
	StartDate               string          `json:"startDate"`
	EndDate                 string          `json:"endDate"`
	MonthlyRent             decimal.Decimal `json:"monthlyRent"`
	SecurityDeposit         decimal.Decimal `json:"securityDeposit"`
	DayOfMonth              int             `json:"dayOfMonth"`
	Notes                   string          `json:"notes"`
	GenerateDuesImmediately bool            `json:"generateDuesImmediately"`
}

// CreateContract handles POST /v1/contracts.
func (h *ContractHandler) CreateContract(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var body createContractRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	start, err := parseDate("startDate", body.StartDate)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	end, err := parseDate("endDate", body.EndDate)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	c, err := h.contracts.Create(r.Context(), service.CreateContractRequest{
		FlatID:                  body.FlatID,
		TenantName:              body.TenantName,
		TenantContact:           body.TenantContact,
		TenantEmail:             body.TenantEmail,
		StartDate:               start,
		EndDate:                 end,
		MonthlyRent:             body.MonthlyRent,
		SecurityDeposit:         body.SecurityDeposit,
		DayOfMonth:              body.DayOfMonth,
		Notes:                   body.Notes,
		GenerateDuesImmediately: body.GenerateDuesImmediately,
	}, actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toContractJSON(c))
}

// GetContract handles GET /v1/contracts/{id}.
func (h *ContractHandler) GetContract(w http.ResponseWriter, r *http.Request) {
	c, err := h.contracts.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toContractJSON(c))
}

type renewContractRequest struct {
	NewEndDate              string           `json:"newEndDate"`
	NewMonthlyRent          *decimal.Decimal `json:"newMonthlyRent"`
	NewSecurityDeposit      *decimal.Decimal `json:"newSecurityDeposit"`
	NewDayOfMonth           *int             `json:"newDayOfMonth"`
	Notes                   string           `json:"notes"`
	GenerateDuesImmediately bool             `json:"generateDuesImmediately"`
}

// RenewContract handles POST /v1/contracts/{id}/renew.
func (h *ContractHandler) RenewContract(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var body renewContractRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	end, err := parseDate("newEndDate", body.NewEndDate)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	c, err := h.contracts.Renew(r.Context(), urlParam(r, "id"), service.RenewContractRequest{
		NewEndDate:              end,
		NewMonthlyRent:          body.NewMonthlyRent,
		NewSecurityDeposit:      body.NewSecurityDeposit,
		NewDayOfMonth:           body.NewDayOfMonth,
		Notes:                   body.Notes,
		GenerateDuesImmediately: body.GenerateDuesImmediately,
	}, actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toContractJSON(c))
}

type cancelContractRequest struct {
	Reason           string `json:"reason"`
	ReasonCategory   string `json:"reasonCategory"`
	EffectiveDate    string `json:"effectiveDate"`
	CancelUnpaidDues bool   `json:"cancelUnpaidDues"`
	RefundDeposit    bool   `json:"refundDeposit"`
	Notes            string `json:"notes"`
}

// CancelContract handles POST /v1/contracts/{id}/cancel.
func (h *ContractHandler) CancelContract(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var body cancelContractRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	effective, err := parseDate("effectiveDate", body.EffectiveDate)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	c, err := h.contracts.Cancel(r.Context(), urlParam(r, "id"), service.CancelContractRequest{
		Reason:           body.Reason,
		ReasonCategory:   body.ReasonCategory,
		EffectiveDate:    effective,
		CancelUnpaidDues: body.CancelUnpaidDues,
		RefundDeposit:    body.RefundDeposit,
		Notes:            body.Notes,
	}, actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toContractJSON(c))
}

type modifyContractRequest struct {
	EffectiveDate      string           `json:"effectiveDate"`
	NewMonthlyRent     *decimal.Decimal `json:"newMonthlyRent"`
	NewSecurityDeposit *decimal.Decimal `json:"newSecurityDeposit"`
	NewDayOfMonth      *int             `json:"newDayOfMonth"`
	NewEndDate         *string          `json:"newEndDate"`
	Reason             string           `json:"reason"`
	Details            string           `json:"details"`
	RegenerateDues     bool             `json:"regenerateDues"`
}

// ModifyContract handles POST /v1/contracts/{id}/modify.
func (h *ContractHandler) ModifyContract(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var body modifyContractRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	effective, err := parseDate("effectiveDate", body.EffectiveDate)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	newEnd, err := parseDatePtr("newEndDate", body.NewEndDate)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	c, err := h.contracts.Modify(r.Context(), urlParam(r, "id"), service.ModifyContractRequest{
		EffectiveDate:      effective,
		NewMonthlyRent:     body.NewMonthlyRent,
		NewSecurityDeposit: body.NewSecurityDeposit,
		NewDayOfMonth:      body.NewDayOfMonth,
		NewEndDate:         newEnd,
		Reason:             body.Reason,
		Details:            body.Details,
		RegenerateDues:     body.RegenerateDues,
	}, actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toContractJSON(c))
}

// ContractHistory handles GET /v1/contracts/{id}/history.
func (h *ContractHandler) ContractHistory(w http.ResponseWriter, r *http.Request) {
	chain, err := h.contracts.History(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toContractsJSON(chain))
}

// SearchContracts handles GET /v1/contracts/search?tenant=.
func (h *ContractHandler) SearchContracts(w http.ResponseWriter, r *http.Request) {
	page := parsePagination(r)
	res, err := h.contracts.SearchByTenantName(r.Context(), r.URL.Query().Get("tenant"), page)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toContractPage(res, page))
}

// ListExpiring handles GET /v1/contracts/expiring?days=.
func (h *ContractHandler) ListExpiring(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", 30)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	cs, err := h.contracts.ListExpiring(r.Context(), days)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toContractsJSON(cs))
}

// ListRenewable handles GET /v1/contracts/renewable?days=.
func (h *ContractHandler) ListRenewable(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", 30)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	cs, err := h.contracts.ListRenewable(r.Context(), days)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toContractsJSON(cs))
}

// ListWithOverdueDues handles GET /v1/contracts/overdue.
func (h *ContractHandler) ListWithOverdueDues(w http.ResponseWriter, r *http.Request) {
	cs, err := h.contracts.ListWithOverdueDues(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toContractsJSON(cs))
}

// ListByFlat handles GET /v1/flats/{id}/contracts.
func (h *ContractHandler) ListByFlat(w http.ResponseWriter, r *http.Request) {
	cs, err := h.contracts.ListByFlat(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toContractsJSON(cs))
}

// ActiveForFlat handles GET /v1/flats/{id}/contracts/active.
func (h *ContractHandler) ActiveForFlat(w http.ResponseWriter, r *http.Request) {
	c, err := h.contracts.ActiveForFlat(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toContractJSON(c))
}

// ListByBuilding handles GET /v1/buildings/{id}/contracts.
func (h *ContractHandler) ListByBuilding(w http.ResponseWriter, r *http.Request) {
	page := parsePagination(r)
	res, err := h.contracts.ListByBuilding(r.Context(), urlParam(r, "id"), page)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toContractPage(res, page))
}

// Statistics handles GET /v1/buildings/{id}/contracts/statistics.
func (h *ContractHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.contracts.Statistics(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatsJSON(stats))
}

// GenerateDues handles POST /v1/contracts/{id}/dues.
func (h *ContractHandler) GenerateDues(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	dues, err := h.dues.GenerateForContract(r.Context(), urlParam(r, "id"), actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDuesJSON(dues))
}

// PreviewDues handles GET /v1/contracts/{id}/dues/preview.
func (h *ContractHandler) PreviewDues(w http.ResponseWriter, r *http.Request) {
	dues, err := h.dues.PreviewForContract(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDuesJSON(dues))
}

// ListDues handles GET /v1/contracts/{id}/dues.
func (h *ContractHandler) ListDues(w http.ResponseWriter, r *http.Request) {
	dues, err := h.dues.ListByContract(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDuesJSON(dues))
}
