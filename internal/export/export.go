// Package export выгружает таблицы отчётов в CSV-файлы для дашборда.
// Порядок и имена колонок фиксированы — это контракт с консумером.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/mmeshcher/marketplace-reports/internal/model"
)

const timeLayout = "2006-01-02 15:04:05"

// Имена отчётов, используемые при выборе через флаг -reports.
const (
	ReportLateDeliveries = "late-deliveries"
	ReportSellerRevenue  = "seller-revenue"
	ReportNewSellers     = "new-sellers"
	ReportPostalRatings  = "postal-ratings"
)

// AllReports — имена всех четырёх отчётов в порядке выгрузки.
var AllReports = []string{
	ReportLateDeliveries,
	ReportSellerRevenue,
	ReportNewSellers,
	ReportPostalRatings,
}

// Имена выходных файлов четырёх отчётов.
const (
	LateDeliveriesFile = "late_deliveries.csv"
	SellerRevenueFile  = "seller_revenue.csv"
	NewSellersFile     = "new_sellers.csv"
	PostalRatingsFile  = "postal_ratings.csv"
)

// WriteReportSet записывает все четыре отчёта прогона в каталог dir,
// по одному CSV-файлу на отчёт.
func WriteReportSet(dir string, set *model.ReportSet) error {
	return Write(dir, set, nil)
}

// Write записывает выбранные отчёты прогона в каталог dir. Пустой список
// означает все четыре отчёта.
func Write(dir string, set *model.ReportSet, reports []string) error {
	if len(reports) == 0 {
		reports = AllReports
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	for _, name := range reports {
		var err error
		switch name {
		case ReportLateDeliveries:
			err = writeLateDeliveries(dir, set)
		case ReportSellerRevenue:
			err = writeSellerRevenue(dir, set)
		case ReportNewSellers:
			err = writeNewSellers(dir, set)
		case ReportPostalRatings:
			err = writePostalRatings(dir, set)
		default:
			err = fmt.Errorf("unknown report %q", name)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func writeLateDeliveries(dir string, set *model.ReportSet) error {
	return writeCSV(filepath.Join(dir, LateDeliveriesFile),
		[]string{"order_id", "purchase_timestamp", "delivered_date", "estimated_date", "delay_days"},
		len(set.LateDeliveries), func(i int) []string {
			r := set.LateDeliveries[i]
			return []string{
				r.OrderID,
				r.PurchasedAt.Format(timeLayout),
				r.DeliveredAt.Format(timeLayout),
				r.EstimatedDelivery.Format(timeLayout),
				// Без округления: дробные дни — часть контракта.
				strconv.FormatFloat(r.DelayDays, 'f', -1, 64),
			}
		})
}

func writeSellerRevenue(dir string, set *model.ReportSet) error {
	return writeCSV(filepath.Join(dir, SellerRevenueFile),
		[]string{"seller_id", "seller_city", "seller_state", "total_revenue"},
		len(set.SellerRevenue), func(i int) []string {
			r := set.SellerRevenue[i]
			return []string{r.SellerID, r.City, r.State, strconv.FormatFloat(r.TotalRevenue, 'f', 2, 64)}
		})
}

func writeNewSellers(dir string, set *model.ReportSet) error {
	return writeCSV(filepath.Join(dir, NewSellersFile),
		[]string{"seller_id", "seller_city", "seller_state", "products_sold"},
		len(set.NewSellers), func(i int) []string {
			r := set.NewSellers[i]
			return []string{r.SellerID, r.City, r.State, strconv.Itoa(r.ProductsSold)}
		})
}

func writePostalRatings(dir string, set *model.ReportSet) error {
	return writeCSV(filepath.Join(dir, PostalRatingsFile),
		[]string{"postal_code_prefix", "avg_score", "total_reviews"},
		len(set.PostalRatings), func(i int) []string {
			r := set.PostalRatings[i]
			return []string{r.ZipCodePrefix, strconv.FormatFloat(r.AvgScore, 'f', 2, 64), strconv.Itoa(r.TotalReviews)}
		})
}

func writeCSV(path string, header []string, rows int, row func(i int) []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header of %s: %w", filepath.Base(path), err)
	}
	for i := 0; i < rows; i++ {
		if err := w.Write(row(i)); err != nil {
			return fmt.Errorf("write row of %s: %w", filepath.Base(path), err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", filepath.Base(path), err)
	}

	return f.Close()
}
