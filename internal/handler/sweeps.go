package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mmynk/flatlease/internal/service"
)

// Sweeper runs a named sweep on demand.
type Sweeper interface {
	Run(ctx context.Context, name string) (service.SweepResult, error)
	Names() []string
}

// SweepHandler triggers sweeps outside their schedule.
type SweepHandler struct {
	sweeper Sweeper
}

// NewSweepHandler creates a SweepHandler.
func NewSweepHandler(s Sweeper) *SweepHandler {
	return &SweepHandler{sweeper: s}
}

// RunSweep handles POST /v1/sweeps/{name}.
func (h *SweepHandler) RunSweep(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	name := urlParam(r, "name")
	known := false
	for _, n := range h.sweeper.Names() {
		if n == name {
			known = true
			break
		}
	}
	if !known {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "unknown sweep: "+name)
		return
	}

	slog.Info("Manual sweep requested", "sweep", name, "actor", actor.String())
	res, err := h.sweeper.Run(r.Context(), name)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSweepJSON(name, res))
}
