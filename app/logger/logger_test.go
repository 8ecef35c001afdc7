package logger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger("production", &buf)

	handler := middleware.RequestID(StructuredLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/maps", nil))
	require.Equal(t, http.StatusTeapot, rr.Code)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "Request completed", entry["msg"])
	assert.Equal(t, float64(http.StatusTeapot), entry["status"])
	assert.Equal(t, float64(len("short and stout")), entry["bytes_written"])
	assert.Equal(t, "/api/v1/maps", entry["path"])
	assert.NotEmpty(t, entry["req_id"])
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	SetupLogger("development", &buf).Debug("visible in development")
	assert.Contains(t, buf.String(), "visible in development")

	buf.Reset()
	SetupLogger("production", &buf).Debug("hidden in production")
	assert.Empty(t, buf.String())
}
