package handlers

import (
	"log/slog"
	"net/http"

	"academy/internal/apperr"
)

type errorResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

// respondWithError logs err with its code and context and writes the error
// envelope. Infrastructure details never reach the client.
func respondWithError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := apperr.Status(err)
	if logger != nil {
		apperr.LogError(logger, "request failed", err)
	}

	writeJSON(w, status, errorResponse{
		Success:    false,
		Message:    apperr.PublicMessage(err),
		StatusCode: status,
	})
}
