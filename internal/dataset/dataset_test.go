package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mmeshcher/marketplace-reports/internal/report"
)

func writeDataset(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	defaults := map[string]string{
		"orders.csv":      "order_id,customer_id,order_status,order_purchase_timestamp,order_delivered_customer_date,order_estimated_delivery_date\n",
		"order_items.csv": "order_id,product_id,seller_id,price\n",
		"sellers.csv":     "seller_id,seller_city,seller_state\n",
		"customers.csv":   "customer_id,customer_zip_code_prefix\n",
		"reviews.csv":     "review_id,order_id,review_score\n",
	}

	for name, header := range defaults {
		content, ok := files[name]
		if !ok {
			content = header
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestLoad(t *testing.T) {
	dir := writeDataset(t, map[string]string{
		"orders.csv": "order_id,customer_id,order_status,order_purchase_timestamp,order_delivered_customer_date,order_estimated_delivery_date\n" +
			"o1,c1,delivered,2018-01-10 12:00:00,2018-01-25 08:00:00,2018-01-20 00:00:00\n" +
			"o2,c1,shipped,2018-01-15 09:30:00,,2018-02-05 00:00:00\n",
		"order_items.csv": "order_id,product_id,seller_id,price\n" +
			"o1,p1,s1,129.90\n",
		"sellers.csv": "seller_id,seller_city,seller_state\n" +
			"s1,sao paulo,SP\n",
		"customers.csv": "customer_id,customer_zip_code_prefix\n" +
			"c1,01000\n",
		"reviews.csv": "review_id,order_id,review_score\n" +
			"r1,o1,4\n",
	})

	ds, err := Load(dir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if len(ds.Orders) != 2 || len(ds.Items) != 1 || len(ds.Sellers) != 1 || len(ds.Customers) != 1 || len(ds.Reviews) != 1 {
		t.Fatalf("unexpected dataset sizes: %+v", ds)
	}

	first := ds.Orders[0]
	if first.ID != "o1" || first.Status != "delivered" {
		t.Fatalf("unexpected first order: %+v", first)
	}
	if first.DeliveredAt == nil || first.EstimatedDelivery == nil {
		t.Fatalf("first order must have both delivery dates: %+v", first)
	}

	second := ds.Orders[1]
	if second.DeliveredAt != nil {
		t.Fatalf("empty delivered date must load as nil, got %v", second.DeliveredAt)
	}
	if second.EstimatedDelivery == nil {
		t.Fatalf("estimated delivery of second order must be present")
	}

	if ds.Items[0].Price != 129.90 {
		t.Fatalf("item price = %v, want 129.90", ds.Items[0].Price)
	}
	if ds.Reviews[0].Score != 4 {
		t.Fatalf("review score = %d, want 4", ds.Reviews[0].Score)
	}
}

func TestLoad_DanglingReference(t *testing.T) {
	dir := writeDataset(t, map[string]string{
		"orders.csv": "order_id,customer_id,order_status,order_purchase_timestamp,order_delivered_customer_date,order_estimated_delivery_date\n" +
			"o1,c1,delivered,2018-01-10 12:00:00,,\n",
		"order_items.csv": "order_id,product_id,seller_id,price\n" +
			"o1,p1,missing-seller,10.00\n",
		"customers.csv": "customer_id,customer_zip_code_prefix\n" +
			"c1,01000\n",
	})

	_, err := Load(dir)
	if !errors.Is(err, report.ErrReferentialIntegrity) {
		t.Fatalf("expected ErrReferentialIntegrity, got %v", err)
	}
}

func TestLoad_OrderWithoutCustomer(t *testing.T) {
	dir := writeDataset(t, map[string]string{
		"orders.csv": "order_id,customer_id,order_status,order_purchase_timestamp,order_delivered_customer_date,order_estimated_delivery_date\n" +
			"o1,ghost,delivered,2018-01-10 12:00:00,,\n",
	})

	_, err := Load(dir)
	if !errors.Is(err, report.ErrReferentialIntegrity) {
		t.Fatalf("expected ErrReferentialIntegrity, got %v", err)
	}
}

func TestLoad_BadTimestamp(t *testing.T) {
	dir := writeDataset(t, map[string]string{
		"orders.csv": "order_id,customer_id,order_status,order_purchase_timestamp,order_delivered_customer_date,order_estimated_delivery_date\n" +
			"o1,c1,delivered,not-a-date,,\n",
		"customers.csv": "customer_id,customer_zip_code_prefix\n" +
			"c1,01000\n",
	})

	if _, err := Load(dir); err == nil {
		t.Fatalf("expected parse error for malformed timestamp")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	dir := writeDataset(t, nil)
	if err := os.Remove(filepath.Join(dir, "reviews.csv")); err != nil {
		t.Fatalf("remove reviews.csv: %v", err)
	}

	if _, err := Load(dir); err == nil {
		t.Fatalf("expected error for missing dataset file")
	}
}
