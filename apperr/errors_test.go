package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromPersistence(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want Kind
	}{
		{"unique", &pgconn.PgError{Code: "23505"}, KindDBConflict},
		{"foreign key", fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23503"}), KindDBConflict},
		{"no rows", fmt.Errorf("load: %w", pgx.ErrNoRows), KindDBMissingEntity},
		{"check violation", &pgconn.PgError{Code: "23514"}, KindInternal},
		{"plain", errors.New("connection reset"), KindInternal},
		{"already classified", InvalidRequest("bad"), KindInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromPersistence(tt.in)
			require.Error(t, got)
			assert.Equal(t, tt.want, KindOf(got))
			assert.ErrorIs(t, got, tt.in)
		})
	}
	assert.NoError(t, FromPersistence(nil))
}

func TestErrorIsMatchesKindAndMessage(t *testing.T) {
	err := fmt.Errorf("ctx: %w", InvalidRequest("Assignee does not exist."))

	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.ErrorIs(t, err, InvalidRequest("Assignee does not exist."))
	assert.NotErrorIs(t, err, InvalidRequest("something else"))
	assert.NotErrorIs(t, err, ErrDBConflict)
}

func TestPublicMessageHidesInternalCause(t *testing.T) {
	err := Internal(errors.New("password authentication failed for user admin"))

	assert.Equal(t, "Internal server error", PublicMessage(err))
	assert.Contains(t, err.Error(), "password authentication failed")
	assert.Equal(t, "Planned date should not be the past date", PublicMessage(InvalidRequest("Planned date should not be the past date")))
	assert.Equal(t, "Internal server error", PublicMessage(errors.New("raw")))
}
