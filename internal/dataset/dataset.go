// Package dataset загружает снимок набора данных маркетплейса из CSV-файлов.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mmeshcher/marketplace-reports/internal/model"
	"github.com/mmeshcher/marketplace-reports/internal/report"
)

// timeLayout — формат временных меток в CSV-файлах набора.
const timeLayout = "2006-01-02 15:04:05"

// Имена файлов пяти таблиц внутри каталога набора.
const (
	ordersFile    = "orders.csv"
	itemsFile     = "order_items.csv"
	sellersFile   = "sellers.csv"
	customersFile = "customers.csv"
	reviewsFile   = "reviews.csv"
)

// Load читает пять CSV-файлов из каталога dir и возвращает снимок набора.
// Первая строка каждого файла — заголовок, пустое значение даты означает
// отсутствие события. После загрузки снимок проверяется на ссылочную
// целостность.
func Load(dir string) (*model.Dataset, error) {
	ds := &model.Dataset{}

	if err := readFile(filepath.Join(dir, ordersFile), 6, func(rec []string) error {
		o := model.Order{
			ID:         rec[0],
			CustomerID: rec[1],
			Status:     model.OrderStatus(rec[2]),
		}
		purchased, err := time.Parse(timeLayout, rec[3])
		if err != nil {
			return fmt.Errorf("order %s: parse purchase timestamp: %w", rec[0], err)
		}
		o.PurchasedAt = purchased

		if o.DeliveredAt, err = parseOptionalTime(rec[4]); err != nil {
			return fmt.Errorf("order %s: parse delivered date: %w", rec[0], err)
		}
		if o.EstimatedDelivery, err = parseOptionalTime(rec[5]); err != nil {
			return fmt.Errorf("order %s: parse estimated delivery date: %w", rec[0], err)
		}

		ds.Orders = append(ds.Orders, o)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := readFile(filepath.Join(dir, itemsFile), 4, func(rec []string) error {
		price, err := strconv.ParseFloat(rec[3], 64)
		if err != nil {
			return fmt.Errorf("order item of %s: parse price: %w", rec[0], err)
		}
		ds.Items = append(ds.Items, model.OrderItem{
			OrderID:   rec[0],
			ProductID: rec[1],
			SellerID:  rec[2],
			Price:     price,
		})
		return nil
	}); err != nil {
		return nil, err
	}

	if err := readFile(filepath.Join(dir, sellersFile), 3, func(rec []string) error {
		ds.Sellers = append(ds.Sellers, model.Seller{ID: rec[0], City: rec[1], State: rec[2]})
		return nil
	}); err != nil {
		return nil, err
	}

	if err := readFile(filepath.Join(dir, customersFile), 2, func(rec []string) error {
		ds.Customers = append(ds.Customers, model.Customer{ID: rec[0], ZipCodePrefix: rec[1]})
		return nil
	}); err != nil {
		return nil, err
	}

	if err := readFile(filepath.Join(dir, reviewsFile), 3, func(rec []string) error {
		score, err := strconv.Atoi(rec[2])
		if err != nil {
			return fmt.Errorf("review %s: parse score: %w", rec[0], err)
		}
		ds.Reviews = append(ds.Reviews, model.Review{ID: rec[0], OrderID: rec[1], Score: score})
		return nil
	}); err != nil {
		return nil, err
	}

	if err := Validate(ds); err != nil {
		return nil, err
	}

	return ds, nil
}

// Validate проверяет ссылочную целостность снимка. Любая висячая ссылка
// фатальна для загрузки: молча строки не отбрасываются.
func Validate(ds *model.Dataset) error {
	orders := make(map[string]struct{}, len(ds.Orders))
	for _, o := range ds.Orders {
		orders[o.ID] = struct{}{}
	}
	sellers := make(map[string]struct{}, len(ds.Sellers))
	for _, s := range ds.Sellers {
		sellers[s.ID] = struct{}{}
	}
	customers := make(map[string]struct{}, len(ds.Customers))
	for _, c := range ds.Customers {
		customers[c.ID] = struct{}{}
	}

	for _, o := range ds.Orders {
		if _, ok := customers[o.CustomerID]; !ok {
			return fmt.Errorf("%w: order %q references unknown customer %q", report.ErrReferentialIntegrity, o.ID, o.CustomerID)
		}
	}
	for _, it := range ds.Items {
		if _, ok := orders[it.OrderID]; !ok {
			return fmt.Errorf("%w: order item references unknown order %q", report.ErrReferentialIntegrity, it.OrderID)
		}
		if _, ok := sellers[it.SellerID]; !ok {
			return fmt.Errorf("%w: order item references unknown seller %q", report.ErrReferentialIntegrity, it.SellerID)
		}
	}
	for _, r := range ds.Reviews {
		if _, ok := orders[r.OrderID]; !ok {
			return fmt.Errorf("%w: review %q references unknown order %q", report.ErrReferentialIntegrity, r.ID, r.OrderID)
		}
	}
	return nil
}

func parseOptionalTime(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func readFile(path string, fields int, parse func(rec []string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open dataset file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = fields

	// Заголовок.
	if _, err := r.Read(); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("read header of %s: %w", filepath.Base(path), err)
	}

	for {
		rec, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}
		if err := parse(rec); err != nil {
			return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
		}
	}
}
