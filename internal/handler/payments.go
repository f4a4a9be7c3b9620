package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/mmynk/flatlease/internal/models"
	"github.com/mmynk/flatlease/internal/service"
)

// PaymentHandler serves the payment endpoints.
type PaymentHandler struct {
	payments *service.PaymentService
}

// NewPaymentHandler creates a PaymentHandler.
func NewPaymentHandler(svc *service.Services) *PaymentHandler {
	return &PaymentHandler{payments: svc.Payments}
}

type createPaymentRequest struct {
	FlatID          string          `json:"flatId"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentDate     string          `json:"paymentDate"`
	Method          string          `json:"method"`
	ReferenceNumber string          `json:"referenceNumber"`
	ReceiptNumber   string          `json:"receiptNumber"`
	Description     string          `json:"description"`
}

// CreatePayment handles POST /v1/payments.
func (h *PaymentHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var body createPaymentRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	date, err := parseDate("paymentDate", body.PaymentDate)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	p, allocs, err := h.payments.Create(r.Context(), service.CreatePaymentRequest{
		FlatID:          body.FlatID,
		Amount:          body.Amount,
		PaymentDate:     date,
		Method:          models.PaymentMethod(body.Method),
		ReferenceNumber: body.ReferenceNumber,
		ReceiptNumber:   body.ReceiptNumber,
		Description:     body.Description,
	}, actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentJSON(p, allocs))
}

// GetPayment handles GET /v1/payments/{id}.
func (h *PaymentHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	p, err := h.payments.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	allocs, err := h.payments.Allocations(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentJSON(p, allocs))
}

type updatePaymentRequest struct {
	Version         int     `json:"version"`
	Method          *string `json:"method"`
	ReferenceNumber *string `json:"referenceNumber"`
	ReceiptNumber   *string `json:"receiptNumber"`
	Description     *string `json:"description"`
}

// UpdatePayment handles PATCH /v1/payments/{id}. The body must carry the
// version the client last read.
func (h *PaymentHandler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var body updatePaymentRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	req := service.UpdatePaymentRequest{
		Version:         body.Version,
		ReferenceNumber: body.ReferenceNumber,
		ReceiptNumber:   body.ReceiptNumber,
		Description:     body.Description,
	}
	if body.Method != nil {
		m := models.PaymentMethod(*body.Method)
		req.Method = &m
	}
	p, err := h.payments.Update(r.Context(), urlParam(r, "id"), req, actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentJSON(p, nil))
}

// DeletePayment handles DELETE /v1/payments/{id}.
func (h *PaymentHandler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if err := h.payments.Delete(r.Context(), urlParam(r, "id"), actor); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListByFlat handles GET /v1/flats/{id}/payments.
func (h *PaymentHandler) ListByFlat(w http.ResponseWriter, r *http.Request) {
	ps, err := h.payments.ListByFlat(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]paymentJSON, len(ps))
	for i, p := range ps {
		out[i] = toPaymentJSON(p, nil)
	}
	writeJSON(w, http.StatusOK, out)
}

type balanceResponse struct {
	FlatID      string          `json:"flatId"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// OutstandingBalance handles GET /v1/flats/{id}/balance.
func (h *PaymentHandler) OutstandingBalance(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	bal, err := h.payments.OutstandingBalance(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{FlatID: id, Outstanding: bal})
}

type paymentSummaryResponse struct {
	BuildingID string          `json:"buildingId"`
	From       string          `json:"from"`
	To         string          `json:"to"`
	Count      int             `json:"count"`
	Total      decimal.Decimal `json:"total"`
}

// Summary handles GET /v1/buildings/{id}/payments/summary?from=&to=.
func (h *PaymentHandler) Summary(w http.ResponseWriter, r *http.Request) {
	from, to, err := queryDateRange(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	sum, err := h.payments.Summary(r.Context(), urlParam(r, "id"), from, to)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentSummaryResponse{
		BuildingID: sum.BuildingID,
		From:       models.FormatDate(sum.From),
		To:         models.FormatDate(sum.To),
		Count:      sum.Count,
		Total:      sum.Total,
	})
}
