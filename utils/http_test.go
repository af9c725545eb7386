package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	t.Run("successful write", func(t *testing.T) {
		w := httptest.NewRecorder()
		data := map[string]string{"message": "test"}

		err := WriteJSON(w, http.StatusOK, data)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response map[string]string
		err = json.NewDecoder(w.Body).Decode(&response)
		require.NoError(t, err)
		assert.Equal(t, "test", response["message"])
	})

	t.Run("nil data", func(t *testing.T) {
		w := httptest.NewRecorder()

		err := WriteJSON(w, http.StatusNoContent, nil)
		require.NoError(t, err)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})
}

func TestWriteMessage(t *testing.T) {
	t.Run("with incident id", func(t *testing.T) {
		w := httptest.NewRecorder()
		require.NoError(t, WriteMessage(w, "Sensitive incident recorded", "8a480b8b8955150cb2e4"))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"message":"Sensitive incident recorded","incidentId":"8a480b8b8955150cb2e4"}`, w.Body.String())
	})

	t.Run("without incident id", func(t *testing.T) {
		w := httptest.NewRecorder()
		require.NoError(t, WriteMessage(w, "Non-sensitive event ignored", ""))

		assert.JSONEq(t, `{"message":"Non-sensitive event ignored"}`, w.Body.String())
	})
}

func TestWriteBadRequest(t *testing.T) {
	w := httptest.NewRecorder()
	details := map[string]interface{}{"field": "limit"}

	err := WriteBadRequest(w, "limit must be a positive integer", details)
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "limit must be a positive integer", response.Error)
	assert.Equal(t, "bad_request", response.Code)
	assert.Equal(t, "limit", response.Details["field"])
}

func TestWriteErrorDefaults(t *testing.T) {
	tests := []struct {
		name    string
		write   func(http.ResponseWriter) error
		status  int
		code    string
		message string
	}{
		{"unauthorized", func(w http.ResponseWriter) error { return WriteUnauthorized(w, "") }, http.StatusUnauthorized, "unauthorized", "Authentication required"},
		{"forbidden", func(w http.ResponseWriter) error { return WriteForbidden(w, "") }, http.StatusForbidden, "forbidden", "Access forbidden"},
		{"not found", func(w http.ResponseWriter) error { return WriteNotFound(w, "") }, http.StatusNotFound, "not_found", "Resource not found"},
		{"unavailable", func(w http.ResponseWriter) error { return WriteServiceUnavailable(w, "") }, http.StatusServiceUnavailable, "unavailable", "Service unavailable"},
		{"internal", func(w http.ResponseWriter) error { return WriteInternalServerError(w, "") }, http.StatusInternalServerError, "internal_error", "Internal server error"},
		{"custom message", func(w http.ResponseWriter) error { return WriteUnauthorized(w, "token expired") }, http.StatusUnauthorized, "unauthorized", "token expired"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			require.NoError(t, tt.write(w))

			assert.Equal(t, tt.status, w.Code)

			var response map[string]interface{}
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.message, response["error"])
			assert.Equal(t, tt.code, response["code"])
			assert.NotContains(t, response, "details")
		})
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		status int
		code   string
	}{
		{http.StatusBadRequest, "bad_request"},
		{http.StatusRequestEntityTooLarge, "payload_too_large"},
		{http.StatusBadGateway, "internal_error"},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		require.NoError(t, WriteError(w, tt.status, "msg", map[string]interface{}{}))

		var response map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, tt.code, response["code"])
		assert.NotContains(t, response, "details")
	}
}
