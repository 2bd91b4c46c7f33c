// Package report реализует аналитические отчёты по снимку набора данных
// маркетплейса. Все скользящие окна привязаны к опорной дате — максимальной
// дате покупки в наборе, а не к текущему времени, поэтому результаты
// воспроизводимы на историческом наборе.
package report

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/mmeshcher/marketplace-reports/internal/model"
)

// ErrEmptyDataset возвращается, если в наборе нет ни одного заказа и
// опорную дату вычислить невозможно.
var ErrEmptyDataset = errors.New("dataset contains no orders")

// ErrReferentialIntegrity возвращается, если строка набора ссылается на
// несуществующую запись. Нарушение фатально для всего отчёта: строки не
// отбрасываются молча.
var ErrReferentialIntegrity = errors.New("referential integrity violation")

// Окна отчётов в месяцах. Экспортированы, чтобы хранилище на PostgreSQL
// вычисляло границы тем же WindowStart и передавало их в SQL параметром.
const (
	LateDeliveryWindowMonths = 3
	NewSellerWindowMonths    = 3
	PostalWindowMonths       = 12
)

const (
	lateDeliveryMinDays = 3.0

	revenueThreshold = 100000.0

	newSellerMinItems = 30

	postalMinReviews = 30
	postalTopN       = 5
)

// ReferenceDate возвращает опорную дату набора — максимальную дату покупки
// среди всех заказов.
func ReferenceDate(orders []model.Order) (time.Time, error) {
	if len(orders) == 0 {
		return time.Time{}, ErrEmptyDataset
	}

	ref := orders[0].PurchasedAt
	for _, o := range orders[1:] {
		if o.PurchasedAt.After(ref) {
			ref = o.PurchasedAt
		}
	}
	return ref, nil
}

// WindowStart возвращает начало скользящего окна: опорная дата минус months
// календарных месяцев. День месяца прижимается к последнему дню более
// короткого месяца (31 марта минус месяц — 28 или 29 февраля), время суток
// сохраняется. time.AddDate здесь не подходит: он нормализует переполнение
// вместо прижатия.
func WindowStart(ref time.Time, months int) time.Time {
	year, month, day := ref.Date()

	total := int(month) - 1 - months
	year += total / 12
	rem := total % 12
	if rem < 0 {
		rem += 12
		year--
	}
	m := time.Month(rem + 1)

	if last := daysIn(year, m); day > last {
		day = last
	}

	hour, minute, sec := ref.Clock()
	return time.Date(year, m, day, hour, minute, sec, ref.Nanosecond(), ref.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// LateDeliveries возвращает незакрытые отменой заказы за последние три
// месяца, доставленные минимум на три дня позже обещанного. Заказы без
// даты доставки или оценки срока отфильтровываются — это бизнес-логика,
// а не ошибка. Строки отсортированы по убыванию даты покупки.
func LateDeliveries(ds *model.Dataset, ref time.Time) []model.LateDeliveryRow {
	from := WindowStart(ref, LateDeliveryWindowMonths)

	var rows []model.LateDeliveryRow
	for _, o := range ds.Orders {
		if o.Status == model.OrderStatusCanceled || o.PurchasedAt.Before(from) {
			continue
		}
		if o.DeliveredAt == nil || o.EstimatedDelivery == nil {
			continue
		}

		delay := o.DeliveredAt.Sub(*o.EstimatedDelivery).Hours() / 24
		if delay < lateDeliveryMinDays {
			continue
		}

		rows = append(rows, model.LateDeliveryRow{
			OrderID:           o.ID,
			PurchasedAt:       o.PurchasedAt,
			DeliveredAt:       *o.DeliveredAt,
			EstimatedDelivery: *o.EstimatedDelivery,
			DelayDays:         delay,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].PurchasedAt.After(rows[j].PurchasedAt)
	})
	return rows
}

// SellerRevenue возвращает продавцов, чья выручка по позициям доставленных
// заказов строго превышает порог в 100 000. Суммируется только цена
// товара, без доставки. Порог сравнивается с неокруглённой суммой,
// округление до двух знаков выполняется только в выходной строке.
// Окно не применяется: учитываются все доставленные заказы набора.
// Строки отсортированы по убыванию выручки.
func SellerRevenue(ds *model.Dataset) ([]model.SellerRevenueRow, error) {
	orders := make(map[string]*model.Order, len(ds.Orders))
	for i := range ds.Orders {
		orders[ds.Orders[i].ID] = &ds.Orders[i]
	}
	sellers := make(map[string]*model.Seller, len(ds.Sellers))
	for i := range ds.Sellers {
		sellers[ds.Sellers[i].ID] = &ds.Sellers[i]
	}

	revenue := make(map[string]float64)
	for _, it := range ds.Items {
		o, ok := orders[it.OrderID]
		if !ok {
			return nil, fmt.Errorf("%w: order item references unknown order %q", ErrReferentialIntegrity, it.OrderID)
		}
		if _, ok := sellers[it.SellerID]; !ok {
			return nil, fmt.Errorf("%w: order item references unknown seller %q", ErrReferentialIntegrity, it.SellerID)
		}
		if o.Status != model.OrderStatusDelivered {
			continue
		}
		revenue[it.SellerID] += it.Price
	}

	var rows []model.SellerRevenueRow
	for sellerID, total := range revenue {
		if total <= revenueThreshold {
			continue
		}
		s := sellers[sellerID]
		rows = append(rows, model.SellerRevenueRow{
			SellerID:     s.ID,
			City:         s.City,
			State:        s.State,
			TotalRevenue: round2(total),
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].TotalRevenue > rows[j].TotalRevenue
	})
	return rows, nil
}

// EngagedNewSellers возвращает продавцов, чья первая продажа попадает в
// последние три месяца и которые продали больше 30 позиций. Статус заказа
// намеренно не учитывается: позиции отменённых заказов входят и в дату
// первой продажи, и в счётчик — поведение унаследовано от витрины и
// расходится с политикой отчётов о доставках и выручке. Строки
// отсортированы по убыванию числа проданных позиций.
func EngagedNewSellers(ds *model.Dataset, ref time.Time) ([]model.NewSellerRow, error) {
	orders := make(map[string]*model.Order, len(ds.Orders))
	for i := range ds.Orders {
		orders[ds.Orders[i].ID] = &ds.Orders[i]
	}
	sellers := make(map[string]*model.Seller, len(ds.Sellers))
	for i := range ds.Sellers {
		sellers[ds.Sellers[i].ID] = &ds.Sellers[i]
	}

	type sellerStats struct {
		firstOrder time.Time
		sold       int
	}

	stats := make(map[string]*sellerStats)
	for _, it := range ds.Items {
		o, ok := orders[it.OrderID]
		if !ok {
			return nil, fmt.Errorf("%w: order item references unknown order %q", ErrReferentialIntegrity, it.OrderID)
		}
		if _, ok := sellers[it.SellerID]; !ok {
			return nil, fmt.Errorf("%w: order item references unknown seller %q", ErrReferentialIntegrity, it.SellerID)
		}

		st, ok := stats[it.SellerID]
		if !ok {
			st = &sellerStats{firstOrder: o.PurchasedAt}
			stats[it.SellerID] = st
		} else if o.PurchasedAt.Before(st.firstOrder) {
			st.firstOrder = o.PurchasedAt
		}
		st.sold++
	}

	from := WindowStart(ref, NewSellerWindowMonths)

	var rows []model.NewSellerRow
	for sellerID, st := range stats {
		if st.firstOrder.Before(from) || st.sold <= newSellerMinItems {
			continue
		}
		s := sellers[sellerID]
		rows = append(rows, model.NewSellerRow{
			SellerID:     s.ID,
			City:         s.City,
			State:        s.State,
			ProductsSold: st.sold,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].ProductsSold > rows[j].ProductsSold
	})
	return rows, nil
}

// WorstRatedPostalCodes возвращает пять почтовых индексов с худшей средней
// оценкой отзывов за последние двенадцать месяцев; учитываются только
// группы, набравшие больше 30 отзывов. Средняя округляется до двух знаков
// в выходной строке. Сортировка: по возрастанию средней оценки, при
// равенстве — по возрастанию индекса; правило одинаково для обоих
// хранилищ, чтобы срез первых пяти строк был детерминированным.
func WorstRatedPostalCodes(ds *model.Dataset, ref time.Time) ([]model.PostalRatingRow, error) {
	orders := make(map[string]*model.Order, len(ds.Orders))
	for i := range ds.Orders {
		orders[ds.Orders[i].ID] = &ds.Orders[i]
	}
	customers := make(map[string]*model.Customer, len(ds.Customers))
	for i := range ds.Customers {
		customers[ds.Customers[i].ID] = &ds.Customers[i]
	}

	from := WindowStart(ref, PostalWindowMonths)

	type ratingStats struct {
		sum   int
		count int
	}

	stats := make(map[string]*ratingStats)
	for _, r := range ds.Reviews {
		o, ok := orders[r.OrderID]
		if !ok {
			return nil, fmt.Errorf("%w: review references unknown order %q", ErrReferentialIntegrity, r.OrderID)
		}
		if o.PurchasedAt.Before(from) {
			continue
		}

		c, ok := customers[o.CustomerID]
		if !ok {
			return nil, fmt.Errorf("%w: order references unknown customer %q", ErrReferentialIntegrity, o.CustomerID)
		}

		st, ok := stats[c.ZipCodePrefix]
		if !ok {
			st = &ratingStats{}
			stats[c.ZipCodePrefix] = st
		}
		st.sum += r.Score
		st.count++
	}

	var rows []model.PostalRatingRow
	for prefix, st := range stats {
		if st.count <= postalMinReviews {
			continue
		}
		rows = append(rows, model.PostalRatingRow{
			ZipCodePrefix: prefix,
			AvgScore:      round2(float64(st.sum) / float64(st.count)),
			TotalReviews:  st.count,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].AvgScore != rows[j].AvgScore {
			return rows[i].AvgScore < rows[j].AvgScore
		}
		return rows[i].ZipCodePrefix < rows[j].ZipCodePrefix
	})

	if len(rows) > postalTopN {
		rows = rows[:postalTopN]
	}
	return rows, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
