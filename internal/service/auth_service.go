package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"academy/internal/apperr"
	"academy/internal/metrics"
	"academy/internal/models"
	"academy/internal/repository"
	"academy/internal/security"
	rules "academy/internal/validation"
)

// SignUpInput is the payload for creating an account
type SignUpInput struct {
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	Role      string  `json:"role"`
	Phone     *string `json:"phone,omitempty"`
	Image     *string `json:"image,omitempty"`
	TeacherID *int64  `json:"teacherId,omitempty"`
}

// Validate checks the sign-up fields
func (in SignUpInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, rules.NameRules...),
		validation.Field(&in.Email, rules.EmailRules...),
		validation.Field(&in.Password, rules.PasswordRules...),
		validation.Field(&in.Role, rules.RoleRules...),
		validation.Field(&in.Phone, rules.PhoneRules...),
		validation.Field(&in.Image, rules.ImageRules...),
	)
}

// LoginInput is the payload for password login. TeacherID scopes the email
// lookup; without it only accounts that have no teacher match.
type LoginInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	TeacherID *int64 `json:"teacherId,omitempty"`
}

// Validate checks the login fields
func (in LoginInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, rules.EmailRules...),
		validation.Field(&in.Password, validation.Required),
	)
}

// TokenPair is returned by every successful authentication
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AuthService handles sign-up, login and refresh-token re-authentication
type AuthService struct {
	accounts   AccountStore
	hasher     security.PasswordHasher
	tokens     *security.TokenIssuer
	refreshTTL time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(accounts AccountStore, hasher security.PasswordHasher, tokens *security.TokenIssuer,
	refreshTTL time.Duration, logger *slog.Logger, m *metrics.Metrics) *AuthService {
	return &AuthService{
		accounts:   accounts,
		hasher:     hasher,
		tokens:     tokens,
		refreshTTL: refreshTTL,
		logger:     logger,
		metrics:    m,
		now:        time.Now,
	}
}

// SignUp creates an account and authenticates it
func (s *AuthService) SignUp(ctx context.Context, in SignUpInput) (pair *TokenPair, err error) {
	defer func() { s.metrics.ObserveAuth("signup", err) }()

	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if err := in.Validate(); err != nil {
		return nil, apperr.Invalid(err)
	}

	_, err = s.accounts.FindOne(ctx, repository.ByEmail(in.Email, in.TeacherID), repository.FieldID)
	switch {
	case err == nil:
		return nil, apperr.New(apperr.CodeAccountConflict)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, apperr.Wrap(err, apperr.CodeStoreFailure, "failed to check existing account")
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeHashingFailure, "failed to hash password")
	}

	role, err := models.ParseRole(in.Role)
	if err != nil {
		return nil, apperr.Invalid(err)
	}

	account, err := s.accounts.Create(ctx, &models.Account{
		Name:         in.Name,
		Email:        in.Email,
		TeacherID:    in.TeacherID,
		PasswordHash: hash,
		Role:         role,
		Phone:        in.Phone,
		Image:        in.Image,
		Active:       true,
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, apperr.New(apperr.CodeAccountConflict)
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeAccountCreationFailure, "failed to create account")
	}

	s.logger.Info("account created", "account_id", account.ID, "role", account.Role)
	return s.issueTokens(ctx, account.ID)
}

// Login authenticates an account by email and password
func (s *AuthService) Login(ctx context.Context, in LoginInput) (pair *TokenPair, err error) {
	defer func() { s.metrics.ObserveAuth("login", err) }()

	in.Email = strings.TrimSpace(in.Email)
	if err := in.Validate(); err != nil {
		return nil, apperr.Invalid(err)
	}

	account, err := s.accounts.FindOne(ctx, repository.ByEmail(in.Email, in.TeacherID), repository.CredentialFields...)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.New(apperr.CodeAccountNotFound)
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeStoreFailure, "failed to find account")
	}

	ok, err := s.hasher.Verify(ctx, in.Password, account.PasswordHash)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeHashingFailure, "failed to verify password")
	}
	if !ok {
		return nil, apperr.New(apperr.CodeCredentialMismatch)
	}
	if !account.Active {
		return nil, apperr.New(apperr.CodeAccountInactive)
	}

	return s.issueTokens(ctx, account.ID)
}

// RefreshAccessToken exchanges a live refresh token for a new token pair.
// The presented refresh token is replaced and can not be used again.
func (s *AuthService) RefreshAccessToken(ctx context.Context, refreshToken string) (pair *TokenPair, err error) {
	defer func() { s.metrics.ObserveAuth("refresh", err) }()

	if strings.TrimSpace(refreshToken) == "" {
		return nil, apperr.New(apperr.CodeRefreshTokenInvalid)
	}

	account, err := s.accounts.FindOne(ctx, repository.ByRefreshToken(refreshToken, s.now()),
		repository.FieldID, repository.FieldActive)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.New(apperr.CodeRefreshTokenInvalid)
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeStoreFailure, "failed to find refresh token")
	}
	if !account.Active {
		return nil, apperr.New(apperr.CodeAccountInactive)
	}

	accessToken, err := s.issueAccessToken(account.ID)
	if err != nil {
		return nil, err
	}

	next, err := s.tokens.IssueOpaqueToken()
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeTokenGenerationFailure, "failed to generate refresh token")
	}

	// Rotation only succeeds while the presented token is still stored
	filter := repository.AccountFilter{ID: &account.ID, RefreshToken: refreshToken}
	n, err := s.accounts.Update(ctx, filter, repository.AccountUpdate{
		RefreshToken: repository.SetToken(next, s.now().Add(s.refreshTTL)),
	})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeStoreFailure, "failed to rotate refresh token")
	}
	if n == 0 {
		return nil, apperr.New(apperr.CodeRefreshTokenInvalid)
	}
	s.metrics.TokenIssued("refresh")

	return &TokenPair{AccessToken: accessToken, RefreshToken: next}, nil
}

func (s *AuthService) issueTokens(ctx context.Context, accountID int64) (*TokenPair, error) {
	accessToken, err := s.issueAccessToken(accountID)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.issueRefreshToken(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (s *AuthService) issueAccessToken(accountID int64) (string, error) {
	token, err := s.tokens.IssueAccessToken(accountID)
	if err != nil {
		return "", apperr.Wrap(err, apperr.CodeTokenSigningFailure, "failed to sign access token")
	}
	s.metrics.TokenIssued("access")
	return token, nil
}

// issueRefreshToken generates and stores a refresh token. A storage failure
// is logged and the token is still returned; the caller can log in again
// once it fails to refresh.
func (s *AuthService) issueRefreshToken(ctx context.Context, accountID int64) (string, error) {
	token, err := s.tokens.IssueOpaqueToken()
	if err != nil {
		return "", apperr.Wrap(err, apperr.CodeTokenGenerationFailure, "failed to generate refresh token")
	}

	expiry := s.now().Add(s.refreshTTL)
	_, err = s.accounts.Update(ctx, repository.ByID(accountID), repository.AccountUpdate{
		RefreshToken: repository.SetToken(token, expiry),
	})
	if err != nil {
		s.logger.Warn("failed to persist refresh token", "account_id", accountID, "error", err)
	}
	s.metrics.TokenIssued("refresh")

	return token, nil
}
