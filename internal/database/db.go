package database

import (
	"context"
	"errors"
	"log/slog"

	"github.com/fleurease/fleurease-api/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// MapPostgresError converts driver errors into model sentinels
func MapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return models.ErrConflict
		case "23503", "23502", "23514": // foreign key, not null, check
			return models.ErrBadRequest
		}
	}

	return err
}

// WithTransaction runs fn in a transaction. It commits when fn returns nil
// and rolls back on an error or a panic. Errors pass through MapPostgresError.
func (db *DB) WithTransaction(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return MapPostgresError(err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				db.logger.Warn("transaction rollback failed", slog.Any("error", rbErr))
			}
			return
		}
		err = MapPostgresError(tx.Commit(ctx))
	}()

	return MapPostgresError(fn(tx))
}
