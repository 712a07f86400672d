package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"academy/internal/apperr"
	"academy/internal/metrics"
	"academy/internal/repository"
	"academy/internal/security"
	rules "academy/internal/validation"
)

// ResetPasswordInput is the payload for consuming a reset token
type ResetPasswordInput struct {
	ResetToken  string `json:"resetToken"`
	NewPassword string `json:"newPassword"`
}

// Validate checks the reset fields
func (in ResetPasswordInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.ResetToken, validation.Required),
		validation.Field(&in.NewPassword, rules.PasswordRules...),
	)
}

// ChangePasswordInput is the payload for changing a known password
type ChangePasswordInput struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// Validate checks the change-password fields
func (in ChangePasswordInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.OldPassword, validation.Required),
		validation.Field(&in.NewPassword, rules.PasswordRules...),
	)
}

// ResetLinkConfig decides how reset links are built
type ResetLinkConfig struct {
	TTL        time.Duration
	Port       string
	Production bool
}

// PasswordService handles forgotten-password resets and password changes
type PasswordService struct {
	accounts AccountStore
	hasher   security.PasswordHasher
	tokens   *security.TokenIssuer
	mailer   Mailer
	links    ResetLinkConfig
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewPasswordService creates a new password service
func NewPasswordService(accounts AccountStore, hasher security.PasswordHasher, tokens *security.TokenIssuer,
	mailer Mailer, links ResetLinkConfig, logger *slog.Logger, m *metrics.Metrics) *PasswordService {
	return &PasswordService{
		accounts: accounts,
		hasher:   hasher,
		tokens:   tokens,
		mailer:   mailer,
		links:    links,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// RequestReset issues a reset token for the account with email and mails a
// link to it. Any previously issued reset token stops working.
func (s *PasswordService) RequestReset(ctx context.Context, email, hostname string) (err error) {
	defer func() { s.metrics.ObserveAuth("request_reset", err) }()

	email = strings.TrimSpace(email)
	if err := rules.ValidateEmail(email); err != nil {
		return apperr.Invalid(fmt.Errorf("email: %w", err))
	}

	account, err := s.accounts.FindOne(ctx, repository.AccountFilter{Email: email},
		repository.FieldID, repository.FieldName, repository.FieldEmail)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.New(apperr.CodeAccountNotFound)
	}
	if err != nil {
		return apperr.Wrap(err, apperr.CodeStoreFailure, "failed to find account")
	}

	token, err := s.tokens.IssueOpaqueToken()
	if err != nil {
		return apperr.Wrap(err, apperr.CodeTokenGenerationFailure, "failed to generate reset token")
	}

	expiry := s.now().Add(s.links.TTL)
	_, err = s.accounts.Update(ctx, repository.ByID(account.ID), repository.AccountUpdate{
		ResetToken: repository.SetToken(token, expiry),
	})
	if err != nil {
		return apperr.Wrap(err, apperr.CodeStoreFailure, "failed to store reset token")
	}
	s.metrics.TokenIssued("reset")

	link := s.ResetURL(hostname, token)
	minutes := int(s.links.TTL.Minutes())
	text := resetEmailText(account.Name, link, minutes)
	html := resetEmailHTML(account.Name, link, minutes)

	if err := s.mailer.Send(ctx, account.Email, resetEmailSubject, text, html); err != nil {
		return apperr.Wrap(err, apperr.CodeResetEmailDeliveryFailure, "failed to send reset email")
	}

	s.logger.Info("password reset requested", "account_id", account.ID, "expires_at", expiry)
	return nil
}

// ResetURL builds the link mailed to the user. Production hosts other than
// localhost get https on the default port.
func (s *PasswordService) ResetURL(hostname, token string) string {
	host := fmt.Sprintf("http://%s:%s", hostname, s.links.Port)
	if s.links.Production && hostname != "localhost" {
		host = "https://" + hostname
	}
	return fmt.Sprintf("%s/api/users/resetPassword?token=%s", host, url.QueryEscape(token))
}

// ConsumeReset sets a new password using a reset token. The password and
// the cleared token are written in one statement so the token is single-use.
func (s *PasswordService) ConsumeReset(ctx context.Context, in ResetPasswordInput) (err error) {
	defer func() { s.metrics.ObserveAuth("reset_password", err) }()

	if err := in.Validate(); err != nil {
		return apperr.Invalid(err)
	}

	account, err := s.accounts.FindOne(ctx, repository.ByResetToken(in.ResetToken),
		repository.FieldID, repository.FieldResetToken, repository.FieldResetTokenExpiry)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.New(apperr.CodeResetTokenInvalid)
	}
	if err != nil {
		return apperr.Wrap(err, apperr.CodeStoreFailure, "failed to find reset token")
	}

	if !account.HasResetToken() {
		return apperr.New(apperr.CodeResetTokenMissing)
	}
	if account.ResetTokenExpired(s.now()) {
		return apperr.New(apperr.CodeResetTokenExpired)
	}

	hash, err := s.hasher.Hash(ctx, in.NewPassword)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeHashingFailure, "failed to hash password")
	}

	filter := repository.AccountFilter{ID: &account.ID, ResetToken: in.ResetToken}
	n, err := s.accounts.Update(ctx, filter, repository.AccountUpdate{
		PasswordHash: &hash,
		ResetToken:   repository.ClearToken(),
	})
	if err != nil {
		return apperr.Wrap(err, apperr.CodeStoreFailure, "failed to reset password")
	}
	if n == 0 {
		return apperr.New(apperr.CodeResetTokenInvalid)
	}

	s.logger.Info("password reset completed", "account_id", account.ID)
	return nil
}

// ChangePassword replaces the password of an authenticated account after
// checking the old one
func (s *PasswordService) ChangePassword(ctx context.Context, accountID int64, in ChangePasswordInput) (err error) {
	defer func() { s.metrics.ObserveAuth("change_password", err) }()

	if err := in.Validate(); err != nil {
		return apperr.Invalid(err)
	}

	account, err := s.accounts.FindOne(ctx, repository.ByID(accountID), repository.CredentialFields...)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.New(apperr.CodeAccountNotFound)
	}
	if err != nil {
		return apperr.Wrap(err, apperr.CodeStoreFailure, "failed to find account")
	}

	ok, err := s.hasher.Verify(ctx, in.OldPassword, account.PasswordHash)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeHashingFailure, "failed to verify password")
	}
	if !ok {
		return apperr.Newf(apperr.CodeCredentialMismatch, "The Old Password is not correct")
	}

	hash, err := s.hasher.Hash(ctx, in.NewPassword)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeHashingFailure, "failed to hash password")
	}

	if _, err := s.accounts.Update(ctx, repository.ByID(accountID), repository.AccountUpdate{PasswordHash: &hash}); err != nil {
		return apperr.Wrap(err, apperr.CodeStoreFailure, "failed to update password")
	}

	s.logger.Info("password changed", "account_id", accountID)
	return nil
}
