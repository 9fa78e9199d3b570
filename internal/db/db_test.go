package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/example/stay-scheduler/internal/internaltypes"
)

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(nil))

	assert.ErrorIs(t, Wrap(pgx.ErrNoRows), internaltypes.ErrNotFound)
	assert.True(t, IsNotFound(fmt.Errorf("scan: %w", pgx.ErrNoRows)))

	dup := &pgconn.PgError{Code: "23505", Message: "duplicate key value"}
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", dup)))
	assert.ErrorIs(t, Wrap(dup), internaltypes.ErrConflict)

	other := errors.New("connection reset")
	err := Wrap(other)
	assert.ErrorIs(t, err, other)
	assert.False(t, IsNotFound(err))
	assert.False(t, IsUniqueViolation(err))
}
