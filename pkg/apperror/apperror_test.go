package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, Validation("x").HTTPStatus())
	assert.Equal(t, http.StatusNotFound, NotFound("Buku", 1).HTTPStatus())
	assert.Equal(t, http.StatusBadRequest, InsufficientStock("Laskar Pelangi", 1, 2).HTTPStatus())
	assert.Equal(t, http.StatusConflict, Conflict("BOOK_IN_USE", "x").HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, Integrity("x", errors.New("boom")).HTTPStatus())
	assert.Equal(t, http.StatusUnauthorized, Unauthorized("x").HTTPStatus())
}

func TestInsufficientStockNamesItem(t *testing.T) {
	err := InsufficientStock("Laskar Pelangi", 2, 5)
	assert.Contains(t, err.Message, "Laskar Pelangi")
	assert.Equal(t, 2, err.Details["available"])
	assert.Equal(t, 5, err.Details["requested"])
}

func TestAsThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", NotFound("Bundle", 7))

	appErr, ok := As(wrapped)
	assert.True(t, ok)
	assert.Equal(t, KindNotFound, appErr.Kind)
	assert.True(t, Is(wrapped, KindNotFound))
	assert.False(t, Is(wrapped, KindConflict))
}

func TestEnsureTyped(t *testing.T) {
	assert.NoError(t, EnsureTyped(nil, "x"))

	typed := Validation("bad")
	assert.Same(t, typed, EnsureTyped(typed, "x"))

	cause := errors.New("disk full")
	err := EnsureTyped(cause, "Pencatatan transaksi gagal")
	appErr, ok := As(err)
	assert.True(t, ok)
	assert.Equal(t, KindIntegrity, appErr.Kind)
	assert.Equal(t, "Pencatatan transaksi gagal", appErr.Message)
	assert.ErrorIs(t, err, cause)
}
