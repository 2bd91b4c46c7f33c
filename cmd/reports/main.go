// Package main запускает сервис аналитических отчётов маркетплейса.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/marketplace-reports/internal/config"
	"github.com/mmeshcher/marketplace-reports/internal/dataset"
	"github.com/mmeshcher/marketplace-reports/internal/export"
	"github.com/mmeshcher/marketplace-reports/internal/handler"
	"github.com/mmeshcher/marketplace-reports/internal/model"
	"github.com/mmeshcher/marketplace-reports/internal/report"
	"github.com/mmeshcher/marketplace-reports/internal/repository"
	"github.com/mmeshcher/marketplace-reports/internal/service"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	src, err := buildSource(cfg)
	if err != nil {
		sugar.Fatalw("source initialization error", "error", err.Error())
	}

	svc := service.NewService(src)
	defer svc.Close()

	if cfg.Once {
		if err := runOnce(context.Background(), svc, cfg); err != nil {
			sugar.Fatalw("report run error", "error", err.Error())
		}
		sugar.Infow("reports written", "dir", cfg.OutputDir)
		return
	}

	h := handler.NewHandler(svc, logger)
	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting reports server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

// buildSource выбирает источник отчётов: PostgreSQL при заданном DSN,
// иначе снимок в памяти из CSV-каталога.
func buildSource(cfg *config.Config) (service.Source, error) {
	if cfg.DatabaseURI != "" {
		repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
		if err != nil {
			return nil, err
		}

		if cfg.Import {
			ds, err := dataset.Load(cfg.DataDir)
			if err != nil {
				repo.Close()
				return nil, err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			if err := repo.ImportDataset(ctx, ds); err != nil {
				repo.Close()
				return nil, err
			}
		}

		return repo, nil
	}

	ds, err := dataset.Load(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	return report.NewStore(ds), nil
}

// runOnce выполняет выбранные отчёты один раз и выгружает их в CSV.
func runOnce(ctx context.Context, svc *service.Service, cfg *config.Config) error {
	selected := cfg.ReportList()

	var set *model.ReportSet
	if len(selected) == 0 {
		s, err := svc.RunAll(ctx)
		if err != nil {
			return err
		}
		set = s
	} else {
		// Опорная дата общая для всех выбранных отчётов.
		ref, err := svc.ReferenceDate(ctx)
		if err != nil {
			return err
		}
		set = &model.ReportSet{ReferenceDate: ref}

		g, gctx := errgroup.WithContext(ctx)
		for _, name := range selected {
			switch name {
			case export.ReportLateDeliveries:
				g.Go(func() error {
					rows, err := svc.LateDeliveries(gctx, ref)
					if err != nil {
						return err
					}
					set.LateDeliveries = rows
					return nil
				})
			case export.ReportSellerRevenue:
				g.Go(func() error {
					rows, err := svc.SellerRevenue(gctx)
					if err != nil {
						return err
					}
					set.SellerRevenue = rows
					return nil
				})
			case export.ReportNewSellers:
				g.Go(func() error {
					rows, err := svc.EngagedNewSellers(gctx, ref)
					if err != nil {
						return err
					}
					set.NewSellers = rows
					return nil
				})
			case export.ReportPostalRatings:
				g.Go(func() error {
					rows, err := svc.WorstRatedPostalCodes(gctx, ref)
					if err != nil {
						return err
					}
					set.PostalRatings = rows
					return nil
				})
			default:
				return fmt.Errorf("unknown report %q", name)
			}
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	return export.Write(cfg.OutputDir, set, selected)
}
