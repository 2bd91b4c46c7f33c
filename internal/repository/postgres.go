// Package repository содержит реализацию источника отчётов поверх PostgreSQL.
// Четыре отчёта выполняются как агрегирующие SQL-запросы на стороне базы;
// границы скользящих окон вычисляются в Go тем же кодом, что и для снимка
// в памяти, и передаются в запросы параметром.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/marketplace-reports/internal/model"
	"github.com/mmeshcher/marketplace-reports/internal/report"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresRepository предоставляет доступ к набору данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД
// через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		// Отчёты только читают, но длинный батч может пережить обрыв
		// соединения или рестарт базы.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// ReferenceDate возвращает опорную дату набора — максимальную дату покупки.
// Для пустой таблицы заказов возвращается report.ErrEmptyDataset.
func (r *PostgresRepository) ReferenceDate(ctx context.Context) (time.Time, error) {
	var ref *time.Time
	err := r.withRetry(ctx, func() error {
		return r.pool.QueryRow(ctx,
			`SELECT MAX(order_purchase_timestamp) FROM orders`,
		).Scan(&ref)
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("select reference date: %w", err)
	}
	if ref == nil {
		return time.Time{}, report.ErrEmptyDataset
	}
	return *ref, nil
}

// LateDeliveries возвращает отчёт о просроченных доставках: незакрытые
// отменой заказы трёхмесячного окна, доставленные минимум на три дня позже
// оценки. Опоздание считается в дробных днях.
func (r *PostgresRepository) LateDeliveries(ctx context.Context, ref time.Time) ([]model.LateDeliveryRow, error) {
	from := report.WindowStart(ref, report.LateDeliveryWindowMonths)

	var res []model.LateDeliveryRow
	err := r.withRetry(ctx, func() error {
		rows, err := r.pool.Query(ctx, `
			SELECT
				order_id,
				order_purchase_timestamp,
				order_delivered_customer_date,
				order_estimated_delivery_date,
				EXTRACT(EPOCH FROM (order_delivered_customer_date - order_estimated_delivery_date)) / 86400.0 AS delay_days
			FROM orders
			WHERE order_status <> 'canceled'
			  AND order_purchase_timestamp >= $1
			  AND order_delivered_customer_date IS NOT NULL
			  AND order_estimated_delivery_date IS NOT NULL
			  AND EXTRACT(EPOCH FROM (order_delivered_customer_date - order_estimated_delivery_date)) / 86400.0 >= 3
			ORDER BY order_purchase_timestamp DESC`,
			from,
		)
		if err != nil {
			return fmt.Errorf("select late deliveries: %w", err)
		}
		defer rows.Close()

		res = res[:0]
		for rows.Next() {
			var row model.LateDeliveryRow
			if err := rows.Scan(&row.OrderID, &row.PurchasedAt, &row.DeliveredAt, &row.EstimatedDelivery, &row.DelayDays); err != nil {
				return fmt.Errorf("scan late delivery: %w", err)
			}
			res = append(res, row)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// SellerRevenue возвращает продавцов с выручкой по доставленным позициям
// строго выше 100 000. Стоимость доставки не учитывается; порог
// сравнивается с неокруглённой суммой.
func (r *PostgresRepository) SellerRevenue(ctx context.Context) ([]model.SellerRevenueRow, error) {
	var res []model.SellerRevenueRow
	err := r.withRetry(ctx, func() error {
		rows, err := r.pool.Query(ctx, `
			SELECT
				s.seller_id,
				s.seller_city,
				s.seller_state,
				ROUND(SUM(oi.price)::numeric, 2)::double precision AS total_revenue
			FROM order_items oi
			JOIN orders o ON o.order_id = oi.order_id
			JOIN sellers s ON s.seller_id = oi.seller_id
			WHERE o.order_status = 'delivered'
			GROUP BY s.seller_id, s.seller_city, s.seller_state
			HAVING SUM(oi.price) > 100000
			ORDER BY total_revenue DESC`,
		)
		if err != nil {
			return fmt.Errorf("select seller revenue: %w", err)
		}
		defer rows.Close()

		res = res[:0]
		for rows.Next() {
			var row model.SellerRevenueRow
			if err := rows.Scan(&row.SellerID, &row.City, &row.State, &row.TotalRevenue); err != nil {
				return fmt.Errorf("scan seller revenue: %w", err)
			}
			res = append(res, row)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// EngagedNewSellers возвращает продавцов, чья первая продажа попадает в
// трёхмесячное окно и которые продали больше 30 позиций. Статус заказа
// намеренно не учитывается — поведение унаследовано от витрины.
func (r *PostgresRepository) EngagedNewSellers(ctx context.Context, ref time.Time) ([]model.NewSellerRow, error) {
	from := report.WindowStart(ref, report.NewSellerWindowMonths)

	var res []model.NewSellerRow
	err := r.withRetry(ctx, func() error {
		rows, err := r.pool.Query(ctx, `
			SELECT
				s.seller_id,
				s.seller_city,
				s.seller_state,
				f.products_sold
			FROM (
				SELECT
					oi.seller_id,
					MIN(o.order_purchase_timestamp) AS first_order_date,
					COUNT(*) AS products_sold
				FROM order_items oi
				JOIN orders o ON o.order_id = oi.order_id
				GROUP BY oi.seller_id
			) f
			JOIN sellers s ON s.seller_id = f.seller_id
			WHERE f.first_order_date >= $1
			  AND f.products_sold > 30
			ORDER BY f.products_sold DESC`,
			from,
		)
		if err != nil {
			return fmt.Errorf("select engaged new sellers: %w", err)
		}
		defer rows.Close()

		res = res[:0]
		for rows.Next() {
			var row model.NewSellerRow
			if err := rows.Scan(&row.SellerID, &row.City, &row.State, &row.ProductsSold); err != nil {
				return fmt.Errorf("scan engaged new seller: %w", err)
			}
			res = append(res, row)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// WorstRatedPostalCodes возвращает пять почтовых индексов с худшей средней
// оценкой за двенадцатимесячное окно; учитываются группы с более чем 30
// отзывами. Ничья разрешается по возрастанию индекса — то же правило, что
// и у снимка в памяти.
func (r *PostgresRepository) WorstRatedPostalCodes(ctx context.Context, ref time.Time) ([]model.PostalRatingRow, error) {
	from := report.WindowStart(ref, report.PostalWindowMonths)

	var res []model.PostalRatingRow
	err := r.withRetry(ctx, func() error {
		rows, err := r.pool.Query(ctx, `
			SELECT
				c.customer_zip_code_prefix,
				ROUND(AVG(r.review_score)::numeric, 2)::double precision AS avg_score,
				COUNT(*) AS total_reviews
			FROM reviews r
			JOIN orders o ON o.order_id = r.order_id
			JOIN customers c ON c.customer_id = o.customer_id
			WHERE o.order_purchase_timestamp >= $1
			GROUP BY c.customer_zip_code_prefix
			HAVING COUNT(*) > 30
			ORDER BY avg_score ASC, c.customer_zip_code_prefix ASC
			LIMIT 5`,
			from,
		)
		if err != nil {
			return fmt.Errorf("select worst rated postal codes: %w", err)
		}
		defer rows.Close()

		res = res[:0]
		for rows.Next() {
			var row model.PostalRatingRow
			if err := rows.Scan(&row.ZipCodePrefix, &row.AvgScore, &row.TotalReviews); err != nil {
				return fmt.Errorf("scan postal rating: %w", err)
			}
			res = append(res, row)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ImportDataset загружает снимок набора данных в базу одной транзакцией.
// Таблицы предварительно очищаются, строки копируются через COPY в порядке,
// который удовлетворяет внешним ключам. Нарушение внешнего ключа
// транслируется в report.ErrReferentialIntegrity.
func (r *PostgresRepository) ImportDataset(ctx context.Context, ds *model.Dataset) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`TRUNCATE reviews, order_items, orders, sellers, customers`,
	); err != nil {
		return fmt.Errorf("truncate tables: %w", err)
	}

	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"customers"},
		[]string{"customer_id", "customer_zip_code_prefix"},
		pgx.CopyFromSlice(len(ds.Customers), func(i int) ([]any, error) {
			c := ds.Customers[i]
			return []any{c.ID, c.ZipCodePrefix}, nil
		}),
	); err != nil {
		return importError("customers", err)
	}

	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"sellers"},
		[]string{"seller_id", "seller_city", "seller_state"},
		pgx.CopyFromSlice(len(ds.Sellers), func(i int) ([]any, error) {
			s := ds.Sellers[i]
			return []any{s.ID, s.City, s.State}, nil
		}),
	); err != nil {
		return importError("sellers", err)
	}

	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"orders"},
		[]string{"order_id", "customer_id", "order_status", "order_purchase_timestamp", "order_delivered_customer_date", "order_estimated_delivery_date"},
		pgx.CopyFromSlice(len(ds.Orders), func(i int) ([]any, error) {
			o := ds.Orders[i]
			return []any{o.ID, o.CustomerID, string(o.Status), o.PurchasedAt, o.DeliveredAt, o.EstimatedDelivery}, nil
		}),
	); err != nil {
		return importError("orders", err)
	}

	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"order_items"},
		[]string{"order_id", "product_id", "seller_id", "price"},
		pgx.CopyFromSlice(len(ds.Items), func(i int) ([]any, error) {
			it := ds.Items[i]
			return []any{it.OrderID, it.ProductID, it.SellerID, it.Price}, nil
		}),
	); err != nil {
		return importError("order_items", err)
	}

	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"reviews"},
		[]string{"review_id", "order_id", "review_score"},
		pgx.CopyFromSlice(len(ds.Reviews), func(i int) ([]any, error) {
			rv := ds.Reviews[i]
			return []any{rv.ID, rv.OrderID, rv.Score}, nil
		}),
	); err != nil {
		return importError("reviews", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

func importError(table string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
		return fmt.Errorf("%w: copy %s: %s", report.ErrReferentialIntegrity, table, pgErr.Detail)
	}
	return fmt.Errorf("copy %s: %w", table, err)
}
