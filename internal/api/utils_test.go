package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSONBody(t *testing.T) {
	type payload struct {
		Day int `json:"day"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"day": 2}`, ""},
		{"empty", ``, "body must not be empty"},
		{"syntax", `{"day": }`, "badly-formed JSON"},
		{"truncated", `{"day": 2`, "badly-formed JSON"},
		{"wrong type", `{"day": "two"}`, `incorrect JSON type for field "day"`},
		{"unknown field", `{"days": 2}`, `unknown key "days"`},
		{"trailing value", `{"day": 2}{"day": 3}`, "single JSON value"},
		{"too large", `{"day": 2, "pad": "` + strings.Repeat("x", maxBodyBytes) + `"}`, "larger than"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dst payload
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			err := DecodeJSONBody(httptest.NewRecorder(), req, &dst)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, 2, dst.Day)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestErrorResponse(t *testing.T) {
	var captured *http.Request
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r
		ErrorResponse(w, r, http.StatusConflict, "map surface is not ready")
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "map surface is not ready", body["error"])
	assert.Equal(t, middleware.GetReqID(captured.Context()), body["request_id"])
}

func TestWriteJSONResponse_NoContent(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteJSONResponse(rr, httptest.NewRequest(http.MethodDelete, "/", nil), http.StatusNoContent, map[string]string{"ignored": "yes"})
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())
}
