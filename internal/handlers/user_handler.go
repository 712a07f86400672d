package handlers

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"academy/internal/apperr"
	"academy/internal/models"
	"academy/internal/service"
)

// UserHandler handles password management and the current-user endpoint
type UserHandler struct {
	passwordService *service.PasswordService
	resetTTL        time.Duration
	logger          *slog.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(passwordService *service.PasswordService, resetTTL time.Duration, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		passwordService: passwordService,
		resetTTL:        resetTTL,
		logger:          logger,
	}
}

type forgetPasswordRequest struct {
	Email string `json:"email"`
}

type currentUserResponse struct {
	CurrentUser *models.Profile `json:"currentUser"`
}

// ForgetPassword mails a reset link. Unknown addresses get the same answer
// as known ones.
func (h *UserHandler) ForgetPassword(w http.ResponseWriter, r *http.Request) {
	var req forgetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	err := h.passwordService.RequestReset(r.Context(), req.Email, requestHostname(r))
	if err != nil && !apperr.HasCode(err, apperr.CodeAccountNotFound) {
		respondWithError(w, h.logger, err)
		return
	}
	if err != nil {
		h.logger.Info("password reset requested for unknown email")
	}

	respondWithMessage(w, fmt.Sprintf(MsgResetLinkSent, int(h.resetTTL.Minutes())))
}

// ResetPassword consumes a reset token and sets a new password
func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req service.ResetPasswordInput
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	if err := h.passwordService.ConsumeReset(r.Context(), req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithMessage(w, MsgPasswordReset)
}

// ChangePassword replaces the caller's password
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r.Context())
	if user == nil {
		respondWithError(w, h.logger, apperr.New(apperr.CodeAccountNotFound))
		return
	}

	var req service.ChangePasswordInput
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	if err := h.passwordService.ChangePassword(r.Context(), user.ID, req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithMessage(w, MsgPasswordChanged)
}

// Me returns the caller's profile
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r.Context())
	if user == nil {
		respondWithError(w, h.logger, apperr.New(apperr.CodeAccountNotFound))
		return
	}

	respondWithData(w, http.StatusOK, currentUserResponse{CurrentUser: user})
}

// requestHostname returns the request host without its port
func requestHostname(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.Host); err == nil {
		return host
	}
	return r.Host
}
