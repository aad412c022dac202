package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// Error codes exposed to clients.
const (
	CodeInvalidAmount    = "LED_001"
	CodeDuplicateTxID    = "LED_002"
	CodeNegativeBalance  = "LED_003"
	CodeNotFound         = "LED_004"
	CodeValidation       = "VAL_001"
	CodeRateLimited      = "RATE_001"
	CodeInternal         = "SYS_001"
	CodeStoreUnavailable = "SYS_002"
)

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// ---- Ledger (LED) ----

func ErrInvalidAmount() *AppError {
	return New(CodeInvalidAmount, "Invalid amount", http.StatusBadRequest)
}

// ErrInvalidAmountDetail keeps the generic code but explains the rejection.
func ErrInvalidAmountDetail(err error) *AppError {
	return Wrap(CodeInvalidAmount, fmt.Sprintf("Invalid amount: %v", err), http.StatusBadRequest, err)
}

func ErrDuplicateTxID() *AppError {
	return New(CodeDuplicateTxID, "Transaction with this txid already exists", http.StatusConflict)
}

func ErrNegativeBalance() *AppError {
	return New(CodeNegativeBalance, "Wallet balance cannot be negative", http.StatusUnprocessableEntity)
}

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimited, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// ErrStoreUnavailable marks a transient storage failure. Clients may retry.
func ErrStoreUnavailable(err error) *AppError {
	return Wrap(CodeStoreUnavailable, "Ledger store temporarily unavailable", http.StatusServiceUnavailable, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a VAL_001 request validation error.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}
