// Package handler exposes the services over a JSON HTTP API and streams
// domain events over a websocket.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mmynk/flatlease/internal/apperr"
	"github.com/mmynk/flatlease/internal/middleware"
	"github.com/mmynk/flatlease/internal/models"
	"github.com/mmynk/flatlease/internal/storage"
)

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("writeJSON encode failed", "error", err)
	}
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

// writeServiceError maps an apperr kind to its HTTP status.
func writeServiceError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error()}
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		status, resp.Code = http.StatusNotFound, "NOT_FOUND"
	case apperr.KindValidation:
		status, resp.Code = http.StatusBadRequest, "VALIDATION_ERROR"
		resp.Field = apperr.FieldOf(err)
	case apperr.KindConflict:
		status, resp.Code = http.StatusConflict, "BUSINESS_RULE_VIOLATION"
	case apperr.KindConcurrency:
		status, resp.Code = http.StatusConflict, "CONCURRENT_MODIFICATION"
	default:
		slog.Error("Internal error", "error", err)
		resp.Code, resp.Error = "INTERNAL_ERROR", "internal server error"
	}
	writeJSON(w, status, resp)
}

// decodeJSON decodes the request body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body: "+err.Error())
		return false
	}
	return true
}

// requireActor returns the request's actor or writes a 400.
func requireActor(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	actor := middleware.ActorFromContext(r.Context())
	if actor.IsZero() {
		writeError(w, http.StatusBadRequest, "MISSING_ACTOR", middleware.ActorHeader+" header is required")
		return actor, false
	}
	return actor, true
}

// parsePagination extracts page_size and offset from query params.
func parsePagination(r *http.Request) storage.Page {
	p := storage.Page{Limit: 20}
	if v := r.URL.Query().Get("page_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Limit = n
		}
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			p.Offset = n
		}
	}
	return p
}

// parseDate parses a YYYY-MM-DD value. An empty value yields the zero time.
func parseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	t, err := models.ParseDate(value)
	if err != nil {
		return time.Time{}, apperr.Validation(field, "must be a date in YYYY-MM-DD form, got %q", value)
	}
	return t, nil
}

// parseDatePtr is parseDate for optional fields.
func parseDatePtr(field string, value *string) (*time.Time, error) {
	if value == nil {
		return nil, nil
	}
	t, err := parseDate(field, *value)
	if err != nil || t.IsZero() {
		return nil, err
	}
	return &t, nil
}

// queryDateRange reads the required from/to query params.
func queryDateRange(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	from, err := parseDate("from", q.Get("from"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseDate("to", q.Get("to"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if from.IsZero() || to.IsZero() {
		return time.Time{}, time.Time{}, apperr.Validation("from", "from and to are required")
	}
	return from, to, nil
}

// queryInt reads an optional non-negative integer query param.
func queryInt(r *http.Request, name string, fallback int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, apperr.Validation(name, "must be a non-negative integer, got %q", v)
	}
	return n, nil
}

func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}
