package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolationCode = "23505"

// IsUniqueViolation reports whether the provided error is a unique-constraint
// violation. When constraintName is given, the violation must reference it.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolationCode {
			return false
		}
		return constraintName == "" || pgErr.ConstraintName == constraintName
	}

	// sqlite and simple-protocol postgres surface constraint failures as
	// text, and sqlite names columns rather than the index.
	msg := err.Error()
	if constraintName != "" && strings.Contains(msg, constraintName) {
		return true
	}
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

// IsSerializationFailure reports whether the error is a transient transaction
// conflict (serialization failure or deadlock) worth retrying.
func IsSerializationFailure(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	msg := err.Error()
	return strings.Contains(msg, "could not serialize access") ||
		strings.Contains(msg, "deadlock detected")
}
