package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"domain error passes through", NewConflict("bike busy", nil), http.StatusConflict, "CONFLICT"},
		{"wrapped domain error", fmt.Errorf("ctx: %w", NewForbidden("no")), http.StatusForbidden, "FORBIDDEN"},
		{"no rows", pgx.ErrNoRows, http.StatusNotFound, "NOT_FOUND"},
		{"unauthenticated", fmt.Errorf("gate: %w", ErrUnauthenticated), http.StatusUnauthorized, "UNAUTHENTICATED"},
		{"anything else", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			de := ToDomainError(tt.err)
			require.NotNil(t, de)
			assert.Equal(t, tt.status, de.HTTPStatus)
			assert.Equal(t, tt.code, de.Code)
		})
	}
}

func TestNewUnauthenticatedUnwraps(t *testing.T) {
	assert.ErrorIs(t, NewUnauthenticated(), ErrUnauthenticated)
	assert.Nil(t, ToDomainError(nil))
	assert.NoError(t, MapError(nil))
}
