package postgres

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation reports whether err is a unique-constraint violation,
// optionally on a specific constraint. Cross-record invariants (email,
// chassis and registration numbers, one driver per user) are enforced by
// the store so concurrent writers race safely.
func uniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return false
	}
	if constraint == "" {
		return true
	}
	return strings.Contains(pgErr.ConstraintName, constraint)
}
