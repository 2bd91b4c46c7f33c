package report

import (
	"context"
	"time"

	"github.com/mmeshcher/marketplace-reports/internal/model"
)

// Store — источник отчётов поверх снимка набора данных в памяти.
// Снимок не изменяется, поэтому методы безопасно вызывать конкурентно.
type Store struct {
	ds *model.Dataset
}

// NewStore создаёт источник отчётов поверх указанного снимка.
func NewStore(ds *model.Dataset) *Store {
	return &Store{ds: ds}
}

// Close реализует контракт источника; для снимка в памяти ресурсов нет.
func (s *Store) Close() error { return nil }

// ReferenceDate возвращает опорную дату снимка.
func (s *Store) ReferenceDate(_ context.Context) (time.Time, error) {
	return ReferenceDate(s.ds.Orders)
}

// LateDeliveries вычисляет отчёт о просроченных доставках.
func (s *Store) LateDeliveries(_ context.Context, ref time.Time) ([]model.LateDeliveryRow, error) {
	return LateDeliveries(s.ds, ref), nil
}

// SellerRevenue вычисляет отчёт о выручке продавцов.
func (s *Store) SellerRevenue(_ context.Context) ([]model.SellerRevenueRow, error) {
	return SellerRevenue(s.ds)
}

// EngagedNewSellers вычисляет отчёт о новых активных продавцах.
func (s *Store) EngagedNewSellers(_ context.Context, ref time.Time) ([]model.NewSellerRow, error) {
	return EngagedNewSellers(s.ds, ref)
}

// WorstRatedPostalCodes вычисляет отчёт о худших почтовых индексах.
func (s *Store) WorstRatedPostalCodes(_ context.Context, ref time.Time) ([]model.PostalRatingRow, error) {
	return WorstRatedPostalCodes(s.ds, ref)
}
