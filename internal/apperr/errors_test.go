package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	dbErr := errors.New("database is locked")

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("cart is empty"), http.StatusBadRequest},
		{"authenticity", Authenticity("bad signature"), http.StatusUnauthorized},
		{"not found", NotFound("order not found"), http.StatusNotFound},
		{"persistence", Persistence("store order", dbErr), http.StatusInternalServerError},
		{"upstream", Upstream("failed to start checkout", dbErr), http.StatusBadGateway},
		{"wrapped", fmt.Errorf("finalize order: %w", Validation("cart is empty")), http.StatusBadRequest},
		{"plain", dbErr, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestIsAndUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("create session: %w", Upstream("failed to start checkout", cause))

	assert.True(t, Is(err, KindUpstream))
	assert.False(t, Is(err, KindPersistence))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "create session: failed to start checkout: connection refused", err.Error())
}

func TestPublicMessageHidesInternals(t *testing.T) {
	err := Persistence("store order", errors.New("UNIQUE constraint failed: orders.id"))
	assert.Equal(t, "Internal Server Error", PublicMessage(err))

	assert.Equal(t, "failed to start checkout", PublicMessage(Upstream("failed to start checkout", errors.New("502 from provider"))))
	assert.Equal(t, "cart is empty", PublicMessage(Validation("cart is empty")))
}
