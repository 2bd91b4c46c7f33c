// Package handler содержит HTTP-обработчики API отчётов. Консумер API —
// внешний дашборд: каждый отчёт отдаётся плоской JSON-таблицей с
// фиксированным набором колонок.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/marketplace-reports/internal/model"
	"github.com/mmeshcher/marketplace-reports/internal/report"
)

// Service определяет контракт прогона отчётов, используемый HTTP-обработчиками.
type Service interface {
	ReferenceDate(ctx context.Context) (time.Time, error)
	LateDeliveries(ctx context.Context, ref time.Time) ([]model.LateDeliveryRow, error)
	SellerRevenue(ctx context.Context) ([]model.SellerRevenueRow, error)
	EngagedNewSellers(ctx context.Context, ref time.Time) ([]model.NewSellerRow, error)
	WorstRatedPostalCodes(ctx context.Context, ref time.Time) ([]model.PostalRatingRow, error)
	RunAll(ctx context.Context) (*model.ReportSet, error)
}

// Handler реализует HTTP-обработчики API отчётов.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: s,
		logger:  logger,
	}
}

// GetLateDeliveries отдаёт отчёт о просроченных доставках.
func (h *Handler) GetLateDeliveries(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.resolveReference(w, r)
	if !ok {
		return
	}

	rows, err := h.service.LateDeliveries(r.Context(), ref)
	if err != nil {
		h.reportError(w, "late deliveries report error", err)
		return
	}
	if rows == nil {
		rows = []model.LateDeliveryRow{}
	}
	h.writeJSON(w, rows)
}

// GetSellerRevenue отдаёт отчёт о выручке продавцов.
func (h *Handler) GetSellerRevenue(w http.ResponseWriter, r *http.Request) {
	// Опорная дата отчёту не нужна, но пустой набор всё равно ошибка:
	// все четыре отчёта ведут себя на нём одинаково.
	if _, ok := h.resolveReference(w, r); !ok {
		return
	}

	rows, err := h.service.SellerRevenue(r.Context())
	if err != nil {
		h.reportError(w, "seller revenue report error", err)
		return
	}
	if rows == nil {
		rows = []model.SellerRevenueRow{}
	}
	h.writeJSON(w, rows)
}

// GetNewSellers отдаёт отчёт о новых активных продавцах.
func (h *Handler) GetNewSellers(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.resolveReference(w, r)
	if !ok {
		return
	}

	rows, err := h.service.EngagedNewSellers(r.Context(), ref)
	if err != nil {
		h.reportError(w, "new sellers report error", err)
		return
	}
	if rows == nil {
		rows = []model.NewSellerRow{}
	}
	h.writeJSON(w, rows)
}

// GetPostalRatings отдаёт отчёт о худших почтовых индексах.
func (h *Handler) GetPostalRatings(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.resolveReference(w, r)
	if !ok {
		return
	}

	rows, err := h.service.WorstRatedPostalCodes(r.Context(), ref)
	if err != nil {
		h.reportError(w, "postal ratings report error", err)
		return
	}
	if rows == nil {
		rows = []model.PostalRatingRow{}
	}
	h.writeJSON(w, rows)
}

// GetAllReports выполняет все четыре отчёта одним прогоном.
func (h *Handler) GetAllReports(w http.ResponseWriter, r *http.Request) {
	set, err := h.service.RunAll(r.Context())
	if err != nil {
		h.reportError(w, "full report run error", err)
		return
	}
	h.writeJSON(w, set)
}

func (h *Handler) resolveReference(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	ref, err := h.service.ReferenceDate(r.Context())
	if err != nil {
		h.reportError(w, "reference date error", err)
		return time.Time{}, false
	}
	return ref, true
}

func (h *Handler) reportError(w http.ResponseWriter, msg string, err error) {
	if errors.Is(err, report.ErrEmptyDataset) {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}
	h.logger.Error(msg, zap.Error(err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (h *Handler) writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}
