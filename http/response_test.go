package http_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelinot/peerdrop"
	pdhttp "github.com/avelinot/peerdrop/http"
)

func TestHandleError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{name: "missing file", err: peerdrop.ErrMissingFile, wantCode: http.StatusBadRequest, wantErr: "missing_file"},
		{name: "not found", err: peerdrop.ErrNotFound, wantCode: http.StatusNotFound, wantErr: "not_found"},
		{name: "ingest", err: peerdrop.ErrIngest, wantCode: http.StatusInternalServerError, wantErr: "ingest_failed"},
		{name: "ticket", err: peerdrop.ErrInvalidTicket, wantCode: http.StatusInternalServerError, wantErr: "ticket_failed"},
		{name: "unknown", err: errors.New("boom"), wantCode: http.StatusInternalServerError, wantErr: "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			pdhttp.HandleError(rec, tt.err)

			assert.Equal(t, tt.wantCode, rec.Code)

			var resp pdhttp.ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.wantErr, resp.Error)
			// Internal error detail never leaks to clients.
			assert.NotContains(t, resp.Message, "boom")
		})
	}
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	err := pdhttp.WriteJSON(rec, http.StatusOK, map[string]string{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"k":"v"}`, rec.Body.String())
}
