package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/conduit-lang/metabridge/internal/native"
)

// convertDBError converts driver-specific errors to native store errors
func convertDBError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return native.ErrNotFound
	}

	// PostgreSQL via pgx
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", native.ErrAlreadyExists, pgErr.Detail)
	}

	// PostgreSQL via lib/pq
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w: %s", native.ErrAlreadyExists, pqErr.Detail)
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %s", native.ErrAlreadyExists, liteErr.Error())
		}
	}

	return err
}
