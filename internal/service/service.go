// Package service реализует прогон аналитических отчётов поверх источника
// данных. Опорная дата вычисляется один раз на прогон и передаётся в каждый
// отчёт явно, чтобы исключить расхождение окон между отчётами.
package service

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/marketplace-reports/internal/model"
)

// Source описывает контракт источника отчётов: снимок в памяти или
// PostgreSQL. Отчёт о выручке не использует окно, поэтому опорная дата ему
// не передаётся.
type Source interface {
	Close() error
	ReferenceDate(ctx context.Context) (time.Time, error)
	LateDeliveries(ctx context.Context, ref time.Time) ([]model.LateDeliveryRow, error)
	SellerRevenue(ctx context.Context) ([]model.SellerRevenueRow, error)
	EngagedNewSellers(ctx context.Context, ref time.Time) ([]model.NewSellerRow, error)
	WorstRatedPostalCodes(ctx context.Context, ref time.Time) ([]model.PostalRatingRow, error)
}

// Service выполняет отчёты поверх указанного источника.
type Service struct {
	src Source
}

// NewService создаёт новый сервис отчётов.
func NewService(src Source) *Service {
	return &Service{src: src}
}

// Close закрывает ресурсы источника.
func (s *Service) Close() error {
	if s.src != nil {
		return s.src.Close()
	}
	return nil
}

// ReferenceDate возвращает опорную дату текущего снимка.
func (s *Service) ReferenceDate(ctx context.Context) (time.Time, error) {
	return s.src.ReferenceDate(ctx)
}

// LateDeliveries возвращает отчёт о просроченных доставках.
func (s *Service) LateDeliveries(ctx context.Context, ref time.Time) ([]model.LateDeliveryRow, error) {
	return s.src.LateDeliveries(ctx, ref)
}

// SellerRevenue возвращает отчёт о выручке продавцов.
func (s *Service) SellerRevenue(ctx context.Context) ([]model.SellerRevenueRow, error) {
	return s.src.SellerRevenue(ctx)
}

// EngagedNewSellers возвращает отчёт о новых активных продавцах.
func (s *Service) EngagedNewSellers(ctx context.Context, ref time.Time) ([]model.NewSellerRow, error) {
	return s.src.EngagedNewSellers(ctx, ref)
}

// WorstRatedPostalCodes возвращает отчёт о худших почтовых индексах.
func (s *Service) WorstRatedPostalCodes(ctx context.Context, ref time.Time) ([]model.PostalRatingRow, error) {
	return s.src.WorstRatedPostalCodes(ctx, ref)
}

// RunAll выполняет все четыре отчёта над одним снимком. Отчёты независимы
// и только читают, поэтому выполняются конкурентно; опорная дата общая.
func (s *Service) RunAll(ctx context.Context) (*model.ReportSet, error) {
	ref, err := s.src.ReferenceDate(ctx)
	if err != nil {
		return nil, err
	}

	set := &model.ReportSet{ReferenceDate: ref}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rows, err := s.src.LateDeliveries(ctx, ref)
		if err != nil {
			return err
		}
		set.LateDeliveries = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.src.SellerRevenue(ctx)
		if err != nil {
			return err
		}
		set.SellerRevenue = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.src.EngagedNewSellers(ctx, ref)
		if err != nil {
			return err
		}
		set.NewSellers = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.src.WorstRatedPostalCodes(ctx, ref)
		if err != nil {
			return err
		}
		set.PostalRatings = rows
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return set, nil
}
