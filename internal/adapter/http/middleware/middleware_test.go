package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"wallet-ledger/pkg/logger"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestID_GeneratesWhenMissing(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(response.RequestIDKey))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	id := w.Header().Get(HeaderRequestID)
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, id, w.Body.String())
}

func TestRequestID_PropagatesCallerID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/test", func(c *gin.Context) {
		response.OK(c, nil)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get(HeaderRequestID))

	var body response.SuccessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "req-42", body.RequestID)
}

func TestRequestLogger_LevelByStatus(t *testing.T) {
	cases := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "info"},
		{http.StatusConflict, "warn"},
		{http.StatusServiceUnavailable, "error"},
	}

	for _, tc := range cases {
		var buf bytes.Buffer
		router := gin.New()
		router.Use(RequestID(), RequestLogger(logger.NewWithWriter("debug", &buf)))
		router.GET("/wallets/:id", func(c *gin.Context) {
			c.Status(tc.status)
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/wallets/abc", nil))

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, tc.level, entry["level"])
		assert.Equal(t, "/wallets/:id", entry["path"])
		assert.Equal(t, float64(tc.status), entry["status"])
		assert.NotEmpty(t, entry["request_id"])
	}
}

func TestRequestLogger_IncludesServerErrorCause(t *testing.T) {
	var buf bytes.Buffer
	router := gin.New()
	router.Use(RequestID(), RequestLogger(logger.NewWithWriter("debug", &buf)))
	router.GET("/boom", func(c *gin.Context) {
		response.Error(c, errors.New("pool exhausted"))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Contains(t, entry["error"], "pool exhausted")
}

func TestRecovery_ReturnsEnvelope(t *testing.T) {
	router := gin.New()
	router.Use(RequestID(), Recovery(zerolog.Nop()))
	router.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body response.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "SYS_001", body.ErrorCode)
	assert.Equal(t, w.Header().Get(HeaderRequestID), body.RequestID)
}
