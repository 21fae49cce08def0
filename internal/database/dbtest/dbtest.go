//go:build integration

// Package dbtest starts a disposable Postgres for repository tests.
package dbtest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/fleurease/fleurease-api/internal/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDB owns a Postgres container and a migrated pool.
type TestDB struct {
	Container testcontainers.Container
	Pool      *pgxpool.Pool
	DB        *database.DB
}

// Setup starts postgres:16-alpine and applies the embedded migrations.
func Setup(ctx context.Context) (*TestDB, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("fleurease"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := database.Migrate(ctx, pool, quiet); err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		return nil, err
	}

	return &TestDB{Container: container, Pool: pool, DB: database.New(pool, quiet)}, nil
}

func (db *TestDB) Teardown(ctx context.Context) error {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.Container != nil {
		return db.Container.Terminate(ctx)
	}
	return nil
}

// Truncate empties every table between tests.
func (db *TestDB) Truncate(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx,
		`TRUNCATE account_wishlist, order_items, orders, products, categories, accounts CASCADE`)
	return err
}

// SeedProduct inserts a product and returns its id.
func (db *TestDB) SeedProduct(ctx context.Context, name string, price float64, stock int) (string, error) {
	var id string
	err := db.Pool.QueryRow(ctx,
		`INSERT INTO products (name, price, stock) VALUES ($1, $2, $3) RETURNING id::text`,
		name, price, stock).Scan(&id)
	return id, err
}

// SeedOrder inserts an order and its lines in one transaction. total and
// createdAt may be nil.
func (db *TestDB) SeedOrder(ctx context.Context, total *float64, createdAt *time.Time, items ...SeedItem) (string, error) {
	var id string
	err := db.DB.WithTransaction(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx,
			`INSERT INTO orders (total_price, created_at) VALUES ($1, $2) RETURNING id::text`,
			total, createdAt).Scan(&id); err != nil {
			return err
		}
		for i, it := range items {
			if _, err := tx.Exec(ctx,
				`INSERT INTO order_items (order_id, line_no, name, quantity, price) VALUES ($1, $2, $3, $4, $5)`,
				id, i+1, it.Name, it.Quantity, it.Price); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

type SeedItem struct {
	Name     string
	Quantity int
	Price    float64
}
