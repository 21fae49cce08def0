package repositories

import (
	"context"
	"fmt"

	"github.com/fleurease/fleurease-api/internal/database"
	"github.com/fleurease/fleurease-api/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(db *database.DB) *OrderRepository {
	return &OrderRepository{pool: db.Pool}
}

// List returns every order, newest first, with line items attached.
// Orders without a total or a creation time are returned as stored.
func (r *OrderRepository) List(ctx context.Context) ([]models.Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, COALESCE(account_id::text, ''), total_price::float8, status, created_at
		FROM orders
		ORDER BY created_at DESC NULLS LAST, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]models.Order, 0)
	index := make(map[string]int)
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(&o.ID, &o.AccountID, &o.TotalPrice, &o.Status, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", database.MapPostgresError(err))
		}
		o.Items = make([]models.OrderItem, 0)
		index[o.ID] = len(orders)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	itemRows, err := r.pool.Query(ctx, `
		SELECT order_id, COALESCE(product_id::text, ''), name, quantity, price::float8
		FROM order_items
		ORDER BY order_id, line_no`)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var orderID string
		var item models.OrderItem
		if err := itemRows.Scan(&orderID, &item.ProductID, &item.Name, &item.Quantity, &item.Price); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		if i, ok := index[orderID]; ok {
			orders[i].Items = append(orders[i].Items, item)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return orders, nil
}

// MonthlySales totals orders per calendar month (UTC), labelled "October 2024".
func (r *OrderRepository) MonthlySales(ctx context.Context) ([]models.MonthlySales, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT to_char(m, 'FMMonth YYYY'), total
		FROM (
			SELECT date_trunc('month', created_at AT TIME ZONE 'UTC') AS m,
				COALESCE(SUM(total_price), 0)::float8 AS total
			FROM orders
			WHERE created_at IS NOT NULL
			GROUP BY 1
		) monthly
		ORDER BY m ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query monthly sales: %w", err)
	}
	defer rows.Close()

	sales := make([]models.MonthlySales, 0)
	for rows.Next() {
		var s models.MonthlySales
		if err := rows.Scan(&s.Month, &s.Total); err != nil {
			return nil, fmt.Errorf("failed to scan monthly sales: %w", err)
		}
		sales = append(sales, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return sales, nil
}
