package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"syscall"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoveryMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("RecoversFromPanicWithEnvelopeResponse", func(t *testing.T) {
		var logBuffer bytes.Buffer
		testLogger := slog.New(slog.NewJSONHandler(&logBuffer, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))

		router := gin.New()
		router.Use(CorrelationID())
		router.Use(Recovery(testLogger))

		panicMessage := "deposit state machine broke"
		router.POST("/api/v1/deposit", func(c *gin.Context) {
			panic(panicMessage)
		})

		testCorrelationID := uuid.New().String()
		req, _ := http.NewRequest(http.MethodPost, "/api/v1/deposit", nil)
		req.Header.Set(CorrelationIDHeader, testCorrelationID)

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)

		// The body must be the same envelope the handlers emit.
		var jsonResponse map[string]interface{}
		err := json.Unmarshal(rr.Body.Bytes(), &jsonResponse)
		require.NoError(t, err)

		errorField, ok := jsonResponse["error"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "INTERNAL_SERVER_ERROR", errorField["code"])
		assert.Equal(t, "An internal server error occurred", errorField["message"])
		assert.Equal(t, testCorrelationID, jsonResponse["correlation_id"])

		logOutput := logBuffer.String()
		assert.Contains(t, logOutput, `"level":"ERROR"`)
		assert.Contains(t, logOutput, `"msg":"Panic recovered"`)
		assert.Contains(t, logOutput, `"error":"`+panicMessage+`"`)
		assert.Contains(t, logOutput, `"stack":`)
		assert.Contains(t, logOutput, `"path":"/api/v1/deposit"`)
		assert.Contains(t, logOutput, `"method":"POST"`)
		assert.Contains(t, logOutput, `"correlation_id":"`+testCorrelationID+`"`)
	})

	t.Run("BrokenPipeAbortsWithoutResponseBody", func(t *testing.T) {
		var logBuffer bytes.Buffer
		testLogger := slog.New(slog.NewJSONHandler(&logBuffer, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))

		router := gin.New()
		router.Use(Recovery(testLogger))
		router.GET("/api/v1/wallet", func(c *gin.Context) {
			panic(&net.OpError{
				Op:  "write",
				Err: os.NewSyscallError("write", syscall.EPIPE),
			})
		})

		req, _ := http.NewRequest(http.MethodGet, "/api/v1/wallet", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		// The client is gone, so no JSON envelope is written.
		assert.Empty(t, rr.Body.String())
		assert.Contains(t, logBuffer.String(), `"msg":"Panic recovered"`)
	})

	t.Run("NoPanicNoEffect", func(t *testing.T) {
		var logBuffer bytes.Buffer
		testLogger := slog.New(slog.NewJSONHandler(&logBuffer, nil))

		router := gin.New()
		router.Use(Recovery(testLogger))
		router.GET("/health", func(c *gin.Context) {
			c.String(http.StatusOK, "OK")
		})

		req, _ := http.NewRequest(http.MethodGet, "/health", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Empty(t, logBuffer.String())
	})
}

func TestIsBrokenPipe(t *testing.T) {
	testCases := []struct {
		name      string
		recovered interface{}
		expected  bool
	}{
		{
			name: "EPIPE",
			recovered: &net.OpError{
				Op:  "write",
				Err: os.NewSyscallError("write", syscall.EPIPE),
			},
			expected: true,
		},
		{
			name: "ECONNRESET",
			recovered: &net.OpError{
				Op:  "write",
				Err: os.NewSyscallError("write", syscall.ECONNRESET),
			},
			expected: true,
		},
		{
			name:      "PlainError",
			recovered: errors.New("boom"),
			expected:  false,
		},
		{
			name:      "NonError",
			recovered: "boom",
			expected:  false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, isBrokenPipe(tc.recovered))
		})
	}
}
