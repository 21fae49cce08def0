package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/fleurease/fleurease-api/internal/database"
	"github.com/fleurease/fleurease-api/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type WishlistRepository struct {
	pool *pgxpool.Pool
}

func NewWishlistRepository(db *database.DB) *WishlistRepository {
	return &WishlistRepository{pool: db.Pool}
}

// Add appends the product. A repeated product yields models.ErrAlreadyInWishlist.
func (r *WishlistRepository) Add(ctx context.Context, accountID, productID string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO account_wishlist (account_id, product_id) VALUES ($1, $2)`,
		accountID, productID)
	err = database.MapPostgresError(err)
	if errors.Is(err, models.ErrConflict) {
		return models.ErrAlreadyInWishlist
	}
	if errors.Is(err, models.ErrBadRequest) {
		return models.ErrNotFound
	}
	return err
}

func (r *WishlistRepository) Remove(ctx context.Context, accountID, productID string) error {
	if _, err := uuid.Parse(productID); err != nil {
		return models.ErrNotFound
	}
	result, err := r.pool.Exec(ctx,
		`DELETE FROM account_wishlist WHERE account_id = $1 AND product_id = $2`,
		accountID, productID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// List returns the wishlist products in insertion order.
func (r *WishlistRepository) List(ctx context.Context, accountID string) ([]models.Product, error) {
	query := `
		SELECT p.id, p.name, p.price::float8, p.stock, p.category_id::text, p.created_at
		FROM account_wishlist w
		JOIN products p ON p.id = w.product_id
		WHERE w.account_id = $1
		ORDER BY w.position ASC`

	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query wishlist: %w", err)
	}
	return scanProductRows(rows)
}
