package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/marketplace-reports/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware API отчётов.
// API только читает: ровно четыре фиксированных отчёта, произвольные
// запросы не поддерживаются.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api/reports", func(r chi.Router) {
		r.Get("/", h.GetAllReports)
		r.Get("/late-deliveries", h.GetLateDeliveries)
		r.Get("/seller-revenue", h.GetSellerRevenue)
		r.Get("/new-sellers", h.GetNewSellers)
		r.Get("/postal-ratings", h.GetPostalRatings)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
