package repositories

import (
	"context"
	"fmt"

	"github.com/fleurease/fleurease-api/internal/database"
	"github.com/fleurease/fleurease-api/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ProductRepository struct {
	pool *pgxpool.Pool
}

func NewProductRepository(db *database.DB) *ProductRepository {
	return &ProductRepository{pool: db.Pool}
}

func scanProductRow(scanner rowScanner) (models.Product, error) {
	var p models.Product
	if err := scanner.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.CategoryID, &p.CreatedAt); err != nil {
		return models.Product{}, database.MapPostgresError(err)
	}
	return p, nil
}

func scanProductRows(rows pgx.Rows) ([]models.Product, error) {
	defer rows.Close()

	products := make([]models.Product, 0)
	for rows.Next() {
		p, err := scanProductRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return products, nil
}

func (r *ProductRepository) List(ctx context.Context) ([]models.Product, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, price::float8, stock, category_id::text, created_at
		FROM products ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	return scanProductRows(rows)
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (models.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return models.Product{}, models.ErrNotFound
	}
	return scanProductRow(r.pool.QueryRow(ctx, `
		SELECT id, name, price::float8, stock, category_id::text, created_at
		FROM products WHERE id = $1`, id))
}

// SalesShares returns each product's share of all units sold, in percent.
func (r *ProductRepository) SalesShares(ctx context.Context) ([]models.ProductSalesShare, error) {
	query := `
		SELECT oi.name, SUM(oi.quantity)::float8 * 100 / NULLIF(SUM(SUM(oi.quantity)) OVER (), 0)
		FROM order_items oi
		GROUP BY oi.name
		ORDER BY 2 DESC, oi.name ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query product sales: %w", err)
	}
	defer rows.Close()

	shares := make([]models.ProductSalesShare, 0)
	for rows.Next() {
		var s models.ProductSalesShare
		var percent *float64
		if err := rows.Scan(&s.Name, &percent); err != nil {
			return nil, fmt.Errorf("failed to scan product sales: %w", err)
		}
		if percent != nil {
			s.Percent = *percent
		}
		shares = append(shares, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return shares, nil
}
