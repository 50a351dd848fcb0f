package db

import (
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConstraintError_Unique(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           "23505",
		TableName:      "conversations",
		ConstraintName: "conversations_phone_key",
		Detail:         "Key (phone)=(5551234567) already exists.",
	}

	cv := ParseConstraintError(pgErr)
	require.NotNil(t, cv)
	assert.Equal(t, "conversations", cv.Table)
	assert.Equal(t, "conversations_phone_key", cv.Constraint)
	assert.Contains(t, cv.Detail, "already exists")
}

func TestParseConstraintError_NotNullNamesColumn(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:       "23502",
		TableName:  "lead_details",
		ColumnName: "conversation_id",
	}

	cv := ParseConstraintError(pgErr)
	require.NotNil(t, cv)
	assert.Equal(t, "lead_details", cv.Table)
	assert.Equal(t, "conversation_id", cv.Column)
}

func TestParseConstraintError_Wrapped(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "22P02", TableName: "lead_details"}
	wrapped := eris.Wrap(pgErr, "store: update lead details")

	cv := ParseConstraintError(wrapped)
	require.NotNil(t, cv)
	assert.Equal(t, "22P02", cv.Code)
}

func TestParseConstraintError_NotAConstraint(t *testing.T) {
	assert.Nil(t, ParseConstraintError(eris.New("connection refused")))
	assert.Nil(t, ParseConstraintError(&pgconn.PgError{Code: "42601"})) // syntax error
	assert.Nil(t, ParseConstraintError(nil))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23502"}))
	assert.False(t, IsUniqueViolation(eris.New("nope")))
}
