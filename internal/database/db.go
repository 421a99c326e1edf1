package database

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hkaraoglu/dealer-auth/internal/models"
)

// MapPostgresError translates driver errors into the domain error set the
// service layer branches on. Unique violations keep the constraint name in
// the wrap so callers can tell which field collided; the name never reaches
// an HTTP response.
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
			return fmt.Errorf("%w: %s", models.ErrConflict, pgErr.ConstraintName)
		case "23503", "23502": // foreign_key_violation, not_null_violation
			return fmt.Errorf("%w: %s", models.ErrBadRequest, pgErr.ConstraintName)
		}
	}

	return err
}
