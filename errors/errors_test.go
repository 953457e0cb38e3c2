package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	original := New("original")
	wrapped := Wrap(original, "wrapped")

	assert.Contains(t, wrapped.Error(), "wrapped")
	assert.Contains(t, wrapped.Error(), "original")
	assert.True(t, Is(wrapped, original))
}

func TestWithHint(t *testing.T) {
	err := WithHintf(New("item set missing"), "create item set %d first", 12)

	hints := GetAllHints(err)
	require.Len(t, hints, 1)
	assert.Equal(t, "create item set 12 first", hints[0])
}

func TestNilHandling(t *testing.T) {
	assert.Nil(t, Wrap(nil, "context"))
	assert.Nil(t, Wrapf(nil, "context %d", 1))
	assert.Nil(t, WithHint(nil, "hint"))
	assert.Nil(t, WithDetail(nil, "detail"))
	assert.False(t, IsNotFoundError(nil))
	assert.False(t, IsUnauthorizedError(nil))
}

func TestForStatus(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{http.StatusOK, nil},
		{http.StatusCreated, nil},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusBadRequest, ErrInvalidRequest},
		{http.StatusUnprocessableEntity, ErrInvalidRequest},
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusConflict, ErrConflict},
		{http.StatusGatewayTimeout, ErrTimeout},
		{http.StatusInternalServerError, ErrServiceUnavailable},
		{http.StatusBadGateway, ErrServiceUnavailable},
		{http.StatusTeapot, nil},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, ForStatus(tt.code))
		})
	}
}

func TestMarkedStatusErrors(t *testing.T) {
	base := fmt.Errorf("GET /api/item_sets/999: 404 Not Found")
	err := Mark(base, ForStatus(http.StatusNotFound))
	err = Wrap(err, "probe failed")

	assert.True(t, IsNotFoundError(err))
	assert.Contains(t, err.Error(), "probe failed")
	assert.Contains(t, err.Error(), "404")

	denied := Mark(New("denied"), ErrForbidden)
	assert.True(t, IsUnauthorizedError(denied))
}

func TestNewNotFoundError(t *testing.T) {
	err := NewNotFoundError("item set %d", 999)
	assert.True(t, IsNotFoundError(err))
	assert.Contains(t, err.Error(), "item set 999")
}

func ExampleWrap() {
	baseErr := New("connection refused")
	err := Wrap(baseErr, "failed to list items")
	fmt.Println(err)
	// Output: failed to list items: connection refused
}
