package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmynk/flatlease/internal/service"
)

// RegisterRoutes registers the /v1 API on r. sweeper and stream may be nil,
// in which case their endpoints are not mounted.
func RegisterRoutes(r chi.Router, svc *service.Services, sweeper Sweeper, stream *EventStream) {
	ch := NewContractHandler(svc)
	dh := NewDueHandler(svc)
	ph := NewPaymentHandler(svc)
	bh := NewBuildingHandler(svc)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/buildings", func(r chi.Router) {
			r.Post("/", bh.CreateBuilding)
			r.Get("/", bh.ListBuildings)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", bh.GetBuilding)
				r.Post("/flats", bh.CreateFlat)
				r.Get("/flats", bh.ListFlats)
				r.Get("/contracts", ch.ListByBuilding)
				r.Get("/contracts/statistics", ch.Statistics)
				r.Post("/dues", dh.GenerateForBuilding)
				r.Get("/debtors", dh.Debtors)
				r.Get("/collection-rate", dh.CollectionRate)
				r.Get("/payments/summary", ph.Summary)
			})
		})

		r.Route("/flats/{id}", func(r chi.Router) {
			r.Get("/", bh.GetFlat)
			r.Get("/contracts", ch.ListByFlat)
			r.Get("/contracts/active", ch.ActiveForFlat)
			r.Get("/dues", dh.ListByFlat)
			r.Get("/payments", ph.ListByFlat)
			r.Get("/balance", ph.OutstandingBalance)
		})

		r.Route("/contracts", func(r chi.Router) {
			r.Post("/", ch.CreateContract)
			r.Get("/search", ch.SearchContracts)
			r.Get("/expiring", ch.ListExpiring)
			r.Get("/renewable", ch.ListRenewable)
			r.Get("/overdue", ch.ListWithOverdueDues)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", ch.GetContract)
				r.Post("/renew", ch.RenewContract)
				r.Post("/cancel", ch.CancelContract)
				r.Post("/modify", ch.ModifyContract)
				r.Get("/history", ch.ContractHistory)
				r.Get("/dues", ch.ListDues)
				r.Post("/dues", ch.GenerateDues)
				r.Get("/dues/preview", ch.PreviewDues)
			})
		})

		r.Route("/dues", func(r chi.Router) {
			r.Post("/", dh.CreateAdHocDue)
			r.Get("/{id}", dh.GetDue)
			r.Patch("/{id}", dh.UpdateDue)
			r.Post("/{id}/cancel", dh.CancelDue)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/", ph.CreatePayment)
			r.Get("/{id}", ph.GetPayment)
			r.Patch("/{id}", ph.UpdatePayment)
			r.Delete("/{id}", ph.DeletePayment)
		})

		if sweeper != nil {
			r.Post("/sweeps/{name}", NewSweepHandler(sweeper).RunSweep)
		}
		if stream != nil {
			r.Get("/events", stream.ServeHTTP)
		}
	})
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
