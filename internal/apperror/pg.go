package apperror

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres error codes the repositories care about.
const (
	pgUniqueViolation   = "23505"
	pgCheckViolation    = "23514"
	pgNumericOutOfRange = "22003"
)

// PgConstraint returns the violated constraint name when err is a
// Postgres unique or check violation, and "" otherwise.
func PgConstraint(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation, pgCheckViolation:
			return pgErr.ConstraintName
		}
	}
	return ""
}

// IsUniqueViolation reports whether err is a Postgres unique violation,
// optionally restricted to a named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// FromPg translates datastore faults into operational kinds:
//   - check violation -> ConstraintViolation (the non-negative balance
//     and positive amount checks are defense in depth; hitting one means
//     a service-level guard was bypassed)
//   - unique violation -> Conflict (callers special-case the
//     idempotency key constraint before reaching here)
//
// Everything else passes through unchanged.
func FromPg(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgCheckViolation:
		return ConstraintViolation("constraint violated: "+pgErr.ConstraintName, err)
	case pgUniqueViolation:
		return Conflict("duplicate value for " + pgErr.ConstraintName)
	case pgNumericOutOfRange:
		// money.Parse caps magnitude first; this is the store's answer
		// to a value that slipped past it.
		return ConstraintViolation("numeric value out of range", err)
	default:
		return err
	}
}
