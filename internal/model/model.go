// Package model содержит доменные сущности набора данных маркетплейса
// и строки аналитических отчётов.
package model

import "time"

// OrderStatus описывает статус заказа в наборе данных.
type OrderStatus string

const (
	OrderStatusCreated     OrderStatus = "created"
	OrderStatusApproved    OrderStatus = "approved"
	OrderStatusInvoiced    OrderStatus = "invoiced"
	OrderStatusProcessing  OrderStatus = "processing"
	OrderStatusShipped     OrderStatus = "shipped"
	OrderStatusDelivered   OrderStatus = "delivered"
	OrderStatusUnavailable OrderStatus = "unavailable"
	OrderStatusCanceled    OrderStatus = "canceled"
)

// Order описывает заказ покупателя. Даты доставки могут отсутствовать,
// если заказ ещё не доставлен.
type Order struct {
	ID                string
	CustomerID        string
	Status            OrderStatus
	PurchasedAt       time.Time
	DeliveredAt       *time.Time
	EstimatedDelivery *time.Time
}

// OrderItem описывает позицию заказа. Price содержит только цену товара,
// без стоимости доставки.
type OrderItem struct {
	OrderID   string
	SellerID  string
	ProductID string
	Price     float64
}

// Seller описывает продавца маркетплейса.
type Seller struct {
	ID    string
	City  string
	State string
}

// Customer описывает покупателя. ZipCodePrefix — усечённый почтовый
// индекс, объединяющий несколько адресов.
type Customer struct {
	ID            string
	ZipCodePrefix string
}

// Review описывает отзыв покупателя на заказ. Score — целая оценка
// по шкале от 1 до 5.
type Review struct {
	ID      string
	OrderID string
	Score   int
}

// Dataset содержит неизменяемый снимок пяти таблиц набора данных.
type Dataset struct {
	Orders    []Order
	Items     []OrderItem
	Sellers   []Seller
	Customers []Customer
	Reviews   []Review
}

// LateDeliveryRow — строка отчёта о просроченных доставках.
// DelayDays — дробное число дней опоздания, без округления.
type LateDeliveryRow struct {
	OrderID           string    `json:"order_id"`
	PurchasedAt       time.Time `json:"purchase_timestamp"`
	DeliveredAt       time.Time `json:"delivered_date"`
	EstimatedDelivery time.Time `json:"estimated_date"`
	DelayDays         float64   `json:"delay_days"`
}

// SellerRevenueRow — строка отчёта о выручке продавцов по доставленным
// заказам. TotalRevenue округлена до двух знаков.
type SellerRevenueRow struct {
	SellerID     string  `json:"seller_id"`
	City         string  `json:"seller_city"`
	State        string  `json:"seller_state"`
	TotalRevenue float64 `json:"total_revenue"`
}

// NewSellerRow — строка отчёта о недавно вышедших на площадку продавцах
// с высоким объёмом продаж.
type NewSellerRow struct {
	SellerID     string `json:"seller_id"`
	City         string `json:"seller_city"`
	State        string `json:"seller_state"`
	ProductsSold int    `json:"products_sold"`
}

// PostalRatingRow — строка отчёта о почтовых индексах с худшей средней
// оценкой. AvgScore округлена до двух знаков.
type PostalRatingRow struct {
	ZipCodePrefix string  `json:"postal_code_prefix"`
	AvgScore      float64 `json:"avg_score"`
	TotalReviews  int     `json:"total_reviews"`
}

// ReportSet содержит результат одного прогона всех четырёх отчётов,
// привязанный к общей опорной дате.
type ReportSet struct {
	ReferenceDate  time.Time          `json:"reference_date"`
	LateDeliveries []LateDeliveryRow  `json:"late_deliveries"`
	SellerRevenue  []SellerRevenueRow `json:"seller_revenue"`
	NewSellers     []NewSellerRow     `json:"new_sellers"`
	PostalRatings  []PostalRatingRow  `json:"postal_ratings"`
}
