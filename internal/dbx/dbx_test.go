package dbx

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsCode(t *testing.T) {
	pgErr := &pgconn.PgError{Code: CodeUniqueViolation}

	assert.True(t, IsCode(pgErr, CodeUniqueViolation))
	assert.True(t, IsCode(fmt.Errorf("insert: %w", pgErr), CodeUniqueViolation))
	assert.False(t, IsCode(pgErr, CodeInvalidTextFormat))
	assert.False(t, IsCode(errors.New("plain"), CodeUniqueViolation))
	assert.False(t, IsCode(nil, CodeUniqueViolation))
}
