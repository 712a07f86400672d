package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"academy/internal/apperr"
)

type successResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// respondWithData wraps data in the success envelope
func respondWithData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, successResponse{Success: true, Data: data})
}

func respondWithMessage(w http.ResponseWriter, msg string) {
	respondWithData(w, http.StatusOK, messageResponse{Message: msg})
}

// decodeJSON strictly decodes the request body into out. Unknown fields and
// trailing data are client input errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, out any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Invalid(errors.New("request body is required"))
		}
		return apperr.Invalid(fmt.Errorf("invalid request body: %w", err))
	}
	if decoder.More() {
		return apperr.Invalid(errors.New("request body must contain a single JSON object"))
	}
	return nil
}
