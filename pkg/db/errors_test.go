package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolationPgError(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "idx_ledger_tx_account_order_kind"}
	wrapped := fmt.Errorf("create transaction: %w", pgErr)

	assert.True(t, IsUniqueViolation(wrapped, ""))
	assert.True(t, IsUniqueViolation(wrapped, "idx_ledger_tx_account_order_kind"))
	assert.False(t, IsUniqueViolation(wrapped, "other_constraint"))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}, ""))
}

func TestIsUniqueViolationTextFallback(t *testing.T) {
	assert.True(t, IsUniqueViolation(errors.New("UNIQUE constraint failed: ledger_transactions.account_id"), ""))
	assert.True(t, IsUniqueViolation(errors.New(`duplicate key value violates unique constraint "x"`), ""))
	assert.False(t, IsUniqueViolation(errors.New("connection refused"), ""))
	assert.False(t, IsUniqueViolation(nil, ""))
}

func TestIsSerializationFailure(t *testing.T) {
	assert.True(t, IsSerializationFailure(&pgconn.PgError{Code: "40001"}))
	assert.True(t, IsSerializationFailure(&pgconn.PgError{Code: "40P01"}))
	assert.True(t, IsSerializationFailure(errors.New("ERROR: deadlock detected")))
	assert.False(t, IsSerializationFailure(errors.New("not found")))
	assert.False(t, IsSerializationFailure(nil))
}
