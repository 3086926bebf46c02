package pg

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sundayezeilo/microblog/internal/db"
)

const uniqueViolation = "23505"

// normalize maps pgx errors onto the db sentinels. The driver error is kept
// as text only.
func normalize(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return db.ErrNoRows
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: constraint %s", db.ErrDuplicate, pgErr.ConstraintName)
	}

	return db.Opaque(err)
}
