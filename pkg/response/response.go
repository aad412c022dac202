package response

import (
	"errors"
	"net/http"
	"time"

	"wallet-ledger/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDKey is the gin context key holding the request ID.
const RequestIDKey = "request_id"

// SuccessResponse wraps every 2xx payload.
type SuccessResponse struct {
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id"`
	Timestamp string      `json:"timestamp"`
}

// ErrorResponse is returned for every failed request. ErrorCode is one of
// the apperror codes (LED_xxx, VAL_xxx, SYS_xxx, RATE_xxx).
type ErrorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// OK writes data with status 200.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, success(c, data))
}

// Created writes data with status 201.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, success(c, data))
}

// NoContent writes an empty 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error maps err to its envelope. Anything that is not an *apperror.AppError
// becomes a generic SYS_001 so internal details never reach the client.
// The original error is attached to the gin context for the request logger.
func Error(c *gin.Context, err error) {
	appErr := asAppError(err)
	if err != nil && appErr.HTTPStatus >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(appErr.HTTPStatus, ErrorResponse{
		ErrorCode: appErr.Code,
		Message:   appErr.Message,
		RequestID: requestID(c),
		Timestamp: now(),
	})
}

func asAppError(err error) *apperror.AppError {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperror.New(apperror.CodeInternal, "Internal server error", http.StatusInternalServerError)
}

func success(c *gin.Context, data interface{}) SuccessResponse {
	return SuccessResponse{Data: data, RequestID: requestID(c), Timestamp: now()}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// requestID falls back to a fresh UUID when the RequestID middleware did not run.
func requestID(c *gin.Context) string {
	if id := c.GetString(RequestIDKey); id != "" {
		return id
	}
	return uuid.New().String()
}
