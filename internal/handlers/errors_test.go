package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academy/internal/apperr"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRespondWithErrorWritesEnvelope(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"conflict", apperr.New(apperr.CodeAccountConflict), http.StatusConflict, "User already exists"},
		{"not found", apperr.New(apperr.CodeAccountNotFound), http.StatusNotFound, "User not found"},
		{"guard", apperr.New(apperr.CodeTokenExpired), http.StatusBadRequest, "jwt expired"},
		{"override", apperr.Newf(apperr.CodeCredentialMismatch, "The Old Password is not correct"), http.StatusBadRequest, "The Old Password is not correct"},
		{"rate limited", apperr.New(apperr.CodeRateLimited), http.StatusTooManyRequests, "Too many requests"},
		{"infrastructure", apperr.Wrap(errors.New("pq: connection refused"), apperr.CodeStoreFailure, "failed to find account"), http.StatusInternalServerError, apperr.InternalMessage},
		{"uncoded", errors.New("boom"), http.StatusInternalServerError, apperr.InternalMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			respondWithError(rec, nil, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			body := decodeError(t, rec)
			assert.False(t, body.Success)
			assert.Equal(t, tt.wantMsg, body.Message)
			assert.Equal(t, tt.wantStatus, body.StatusCode)
		})
	}
}

func TestRespondWithErrorLogsDetails(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	rec := httptest.NewRecorder()
	err := apperr.Wrap(errors.New("disk full"), apperr.CodeStoreFailure, "failed to update password")
	respondWithError(rec, logger, err)

	logOutput := buf.String()
	assert.Contains(t, logOutput, "disk full")
	assert.Contains(t, logOutput, apperr.CodeStoreFailure)
	assert.NotContains(t, rec.Body.String(), "disk full")
}
