package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"academy/internal/models"
	"academy/internal/repository"
	"academy/internal/security"
)

// memStore is an in-memory AccountStore with the same filter semantics as
// the SQL repository
type memStore struct {
	mu       sync.Mutex
	accounts map[int64]*models.Account
	nextID   int64

	findErr   error
	createErr error
	updateErr error
}

func newMemStore() *memStore {
	return &memStore{accounts: make(map[int64]*models.Account)}
}

func (s *memStore) matches(f repository.AccountFilter, a *models.Account) bool {
	if f.ID != nil && a.ID != *f.ID {
		return false
	}
	if f.Email != "" && a.Email != f.Email {
		return false
	}
	if f.TeacherID != nil {
		if a.TeacherID == nil || *a.TeacherID != *f.TeacherID {
			return false
		}
	} else if f.TeacherScoped && a.TeacherID != nil {
		return false
	}
	if f.RefreshToken != "" && (a.RefreshToken == nil || *a.RefreshToken != f.RefreshToken) {
		return false
	}
	if f.RefreshValidAt != nil && (a.RefreshTokenExpiry == nil || !a.RefreshTokenExpiry.After(*f.RefreshValidAt)) {
		return false
	}
	if f.ResetToken != "" && (a.ResetToken == nil || *a.ResetToken != f.ResetToken) {
		return false
	}
	return true
}

func isEmpty(f repository.AccountFilter) bool {
	return f.ID == nil && f.Email == "" && f.RefreshToken == "" && f.ResetToken == ""
}

func (s *memStore) FindOne(_ context.Context, f repository.AccountFilter, _ ...repository.Field) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findErr != nil {
		return nil, s.findErr
	}
	if isEmpty(f) {
		return nil, repository.ErrEmptyFilter
	}
	for id := int64(1); id <= s.nextID; id++ {
		if a, ok := s.accounts[id]; ok && s.matches(f, a) {
			copied := *a
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memStore) Create(_ context.Context, account *models.Account) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.createErr != nil {
		return nil, s.createErr
	}
	for _, a := range s.accounts {
		if s.matches(repository.ByEmail(account.Email, account.TeacherID), a) {
			return nil, repository.ErrDuplicate
		}
	}
	s.nextID++
	created := *account
	created.ID = s.nextID
	created.CreatedAt = time.Now()
	s.accounts[created.ID] = &created
	out := created
	return &out, nil
}

func (s *memStore) Update(_ context.Context, f repository.AccountFilter, u repository.AccountUpdate) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.updateErr != nil {
		return 0, s.updateErr
	}
	if isEmpty(f) {
		return 0, repository.ErrEmptyFilter
	}
	var n int64
	for _, a := range s.accounts {
		if !s.matches(f, a) {
			continue
		}
		if u.PasswordHash != nil {
			a.PasswordHash = *u.PasswordHash
		}
		if u.RefreshToken != nil {
			a.RefreshToken, a.RefreshTokenExpiry = u.RefreshToken.Token, u.RefreshToken.Expiry
		}
		if u.ResetToken != nil {
			a.ResetToken, a.ResetTokenExpiry = u.ResetToken.Token, u.ResetToken.Expiry
		}
		if u.Active != nil {
			a.Active = *u.Active
		}
		n++
	}
	return n, nil
}

func (s *memStore) Remove(_ context.Context, f repository.AccountFilter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if isEmpty(f) {
		return 0, repository.ErrEmptyFilter
	}
	var n int64
	for id, a := range s.accounts {
		if s.matches(f, a) {
			delete(s.accounts, id)
			n++
		}
	}
	return n, nil
}

// get returns a copy of the stored account for assertions
func (s *memStore) get(id int64) *models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *s.accounts[id]
	return &copied
}

type sentMail struct {
	to, subject, text, html string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(_ context.Context, to, subject, text, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, text: text, html: html})
	return nil
}

func (m *fakeMailer) last() sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[len(m.sent)-1]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	store     *memStore
	mailer    *fakeMailer
	tokens    *security.TokenIssuer
	auth      *AuthService
	passwords *PasswordService
	accounts  *AccountService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := newMemStore()
	mailer := &fakeMailer{}
	hasher := security.NewBcryptHasher(bcrypt.MinCost)
	tokens := security.NewTokenIssuer("test-secret", "academy", 2*time.Hour)
	logger := discardLogger()

	return &fixture{
		store:     store,
		mailer:    mailer,
		tokens:    tokens,
		auth:      NewAuthService(store, hasher, tokens, 7*24*time.Hour, logger, nil),
		passwords: NewPasswordService(store, hasher, tokens, mailer, ResetLinkConfig{TTL: 15 * time.Minute, Port: "3333"}, logger, nil),
		accounts:  NewAccountService(store),
	}
}
