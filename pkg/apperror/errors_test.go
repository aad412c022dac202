package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New("LED_003", "Wallet balance cannot be negative", http.StatusUnprocessableEntity),
			expected: "[LED_003] Wallet balance cannot be negative",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap("SYS_001", "DB error", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[SYS_001] DB error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap("SYS_001", "wrapped", http.StatusInternalServerError, inner)

	assert.True(t, errors.Is(appErr, inner))
	assert.Nil(t, New("LED_001", "test", http.StatusBadRequest).Unwrap())
}

func TestLedgerErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"InvalidAmount", ErrInvalidAmount(), "LED_001", 400},
		{"InvalidAmountDetail", ErrInvalidAmountDetail(errors.New("zero")), "LED_001", 400},
		{"DuplicateTxID", ErrDuplicateTxID(), "LED_002", 409},
		{"NegativeBalance", ErrNegativeBalance(), "LED_003", 422},
		{"NotFound", ErrNotFound("Wallet"), "LED_004", 404},
		{"Validation", Validation("label is required"), "VAL_001", 400},
		{"RateLimit", ErrRateLimitExceeded(), "RATE_001", 429},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestSystemErrors(t *testing.T) {
	inner := fmt.Errorf("pg: connection closed")

	storeErr := ErrStoreUnavailable(inner)
	assert.Equal(t, "SYS_002", storeErr.Code)
	assert.Equal(t, 503, storeErr.HTTPStatus)
	assert.True(t, errors.Is(storeErr, inner))

	internal := InternalError(inner)
	assert.Equal(t, "SYS_001", internal.Code)
	assert.Equal(t, 500, internal.HTTPStatus)
}

func TestHasCode(t *testing.T) {
	wrapped := fmt.Errorf("create transaction: %w", ErrNegativeBalance())

	assert.True(t, HasCode(wrapped, CodeNegativeBalance))
	assert.False(t, HasCode(wrapped, CodeNotFound))
	assert.False(t, HasCode(errors.New("plain"), CodeNotFound))
	assert.False(t, HasCode(nil, CodeNotFound))
}

func TestNotFoundEntity(t *testing.T) {
	err := ErrNotFound("Transaction")
	assert.Equal(t, "Transaction not found", err.Message)
}
