package storage

import (
	"errors"

	"github.com/careerpath/careerdesk/services/booking-service/internal/apperr"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	codeExclusionViolation = "23P01"
	codeUniqueViolation    = "23505"
	codeForeignKey         = "23503"
)

func IsConflict(err error) bool {
	return hasCode(err, codeExclusionViolation)
}

func IsUnique(err error) bool {
	return hasCode(err, codeUniqueViolation)
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// translate maps driver errors onto the domain errors callers test for.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case IsNotFound(err):
		return apperr.ErrNotFound
	case IsConflict(err), IsUnique(err):
		return apperr.ErrConflict
	case hasCode(err, codeForeignKey):
		return apperr.ErrNotFound
	}
	return err
}

// parseID reports whether id is a uuid; anything else can never match a row.
func parseID(id string) (uuid.UUID, bool) {
	u, err := uuid.Parse(id)
	return u, err == nil
}
