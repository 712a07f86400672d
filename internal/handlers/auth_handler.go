package handlers

import (
	"log/slog"
	"net/http"

	"academy/internal/service"
)

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	authService *service.AuthService
	logger      *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// SignUp creates an account and returns its first token pair
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req service.SignUpInput
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	pair, err := h.authService.SignUp(r.Context(), req)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithData(w, http.StatusCreated, pair)
}

// Login exchanges email and password for a token pair
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginInput
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	pair, err := h.authService.Login(r.Context(), req)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithData(w, http.StatusOK, pair)
}

// Refresh rotates a refresh token into a new token pair
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	pair, err := h.authService.RefreshAccessToken(r.Context(), req.RefreshToken)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithData(w, http.StatusOK, pair)
}
