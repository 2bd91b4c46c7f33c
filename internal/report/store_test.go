package report

import (
	"context"
	"errors"
	"testing"

	"github.com/mmeshcher/marketplace-reports/internal/model"
	"github.com/mmeshcher/marketplace-reports/internal/service"
)

// Проверяет, что снимок в памяти удовлетворяет контракту источника и
// полный прогон собирает все четыре отчёта с общей опорной датой.
func TestStore_RunAll(t *testing.T) {
	ds := newSellerDataset(t, 31, 100)
	svc := service.NewService(NewStore(ds))

	set, err := svc.RunAll(context.Background())
	if err != nil {
		t.Fatalf("RunAll error: %v", err)
	}

	if want := ts(t, "2018-01-15 00:00:00"); !set.ReferenceDate.Equal(want) {
		t.Fatalf("ReferenceDate = %v, want %v", set.ReferenceDate, want)
	}
	if len(set.NewSellers) != 1 || set.NewSellers[0].SellerID != "fresh" {
		t.Fatalf("unexpected new sellers report: %+v", set.NewSellers)
	}
	// Остальные отчёты пустые на этом наборе, но прогон успешен.
	if len(set.LateDeliveries) != 0 || len(set.SellerRevenue) != 0 || len(set.PostalRatings) != 0 {
		t.Fatalf("unexpected non-empty reports: %+v", set)
	}
}

func TestStore_EmptyDataset(t *testing.T) {
	svc := service.NewService(NewStore(&model.Dataset{}))

	_, err := svc.RunAll(context.Background())
	if !errors.Is(err, ErrEmptyDataset) {
		t.Fatalf("expected ErrEmptyDataset, got %v", err)
	}
}
