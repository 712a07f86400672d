package service

import (
	"context"
	"errors"

	"academy/internal/apperr"
	"academy/internal/models"
	"academy/internal/repository"
)

// AccountService exposes read access to accounts
type AccountService struct {
	accounts AccountStore
}

// NewAccountService creates a new account service
func NewAccountService(accounts AccountStore) *AccountService {
	return &AccountService{accounts: accounts}
}

// Profile loads the non-sensitive view of an account
func (s *AccountService) Profile(ctx context.Context, accountID int64) (*models.Profile, error) {
	account, err := s.accounts.FindOne(ctx, repository.ByID(accountID), repository.ProfileFields...)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.New(apperr.CodeAccountNotFound)
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeStoreFailure, "failed to load profile")
	}
	return account.Profile(), nil
}
