package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ConstraintViolation names the column/table pair behind a Postgres
// constraint error so callers can self-correct their field mapping instead
// of surfacing a raw driver message.
type ConstraintViolation struct {
	Code       string
	Table      string
	Column     string
	Constraint string
	Detail     string
}

// Postgres error classes for integrity constraint violations (23xxx).
const (
	codeUniqueViolation     = "23505"
	codeNotNullViolation    = "23502"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeInvalidTextRep      = "22P02"
	codeNumericOutOfRange   = "22003"
)

// ParseConstraintError extracts structured constraint info from a pgconn
// error. Returns nil if err is not a recognizable constraint or cast error.
func ParseConstraintError(err error) *ConstraintViolation {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil
	}

	switch pgErr.Code {
	case codeUniqueViolation, codeNotNullViolation, codeForeignKeyViolation,
		codeCheckViolation, codeInvalidTextRep, codeNumericOutOfRange:
		return &ConstraintViolation{
			Code:       pgErr.Code,
			Table:      pgErr.TableName,
			Column:     pgErr.ColumnName,
			Constraint: pgErr.ConstraintName,
			Detail:     pgErr.Detail,
		}
	}
	return nil
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}
