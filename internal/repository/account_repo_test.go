package repository

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academy/internal/database"
	"academy/internal/models"
)

func newTestRepo(t *testing.T) *AccountRepository {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "accounts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.RunMigrations(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil))))
	return NewAccountRepository(db)
}

func createAccount(t *testing.T, repo *AccountRepository, email string, teacherID *int64) *models.Account {
	t.Helper()
	phone := "0123456789"
	account, err := repo.Create(context.Background(), &models.Account{
		Name:         "Test " + email,
		Email:        email,
		TeacherID:    teacherID,
		PasswordHash: "$2a$10$hash",
		Role:         models.RoleStudent,
		Phone:        &phone,
		Active:       true,
	})
	require.NoError(t, err)
	return account
}

func TestAccountRepositoryCreateAndFind(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created := createAccount(t, repo, "ada@example.com", nil)
	assert.NotZero(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	found, err := repo.FindOne(ctx, ByID(created.ID))
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", found.Email)
	assert.Equal(t, "$2a$10$hash", found.PasswordHash)
	assert.Equal(t, models.RoleStudent, found.Role)
	require.NotNil(t, found.Phone)
	assert.Equal(t, "0123456789", *found.Phone)
	assert.Nil(t, found.TeacherID)
	assert.Nil(t, found.Image)
	assert.True(t, found.Active)

	byEmail, err := repo.FindOne(ctx, ByEmail("ada@example.com", nil))
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)
}

func TestAccountRepositoryProjection(t *testing.T) {
	repo := newTestRepo(t)
	created := createAccount(t, repo, "proj@example.com", nil)

	found, err := repo.FindOne(context.Background(), ByID(created.ID), ProfileFields...)
	require.NoError(t, err)

	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "proj@example.com", found.Email)
	assert.Empty(t, found.PasswordHash)
	assert.Nil(t, found.RefreshToken)
	assert.Nil(t, found.ResetToken)
}

func TestAccountRepositoryFindErrors(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.FindOne(ctx, AccountFilter{})
	assert.ErrorIs(t, err, ErrEmptyFilter)

	_, err = repo.FindOne(ctx, AccountFilter{TeacherScoped: true})
	assert.ErrorIs(t, err, ErrEmptyFilter)

	_, err = repo.FindOne(ctx, ByEmail("nobody@example.com", nil))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAccountRepositoryTeacherScope(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	teacher := createAccount(t, repo, "teacher@example.com", nil)
	student := createAccount(t, repo, "same@example.com", &teacher.ID)

	_, err := repo.FindOne(ctx, ByEmail("same@example.com", nil))
	assert.ErrorIs(t, err, ErrNotFound, "unscoped lookup must not match a teacher-scoped account")

	found, err := repo.FindOne(ctx, ByEmail("same@example.com", &teacher.ID))
	require.NoError(t, err)
	assert.Equal(t, student.ID, found.ID)
	require.NotNil(t, found.TeacherID)
	assert.Equal(t, teacher.ID, *found.TeacherID)

	unscoped := createAccount(t, repo, "same@example.com", nil)
	assert.NotEqual(t, student.ID, unscoped.ID)
}

func TestAccountRepositoryDuplicate(t *testing.T) {
	repo := newTestRepo(t)

	createAccount(t, repo, "dup@example.com", nil)
	_, err := repo.Create(context.Background(), &models.Account{
		Name:         "Again",
		Email:        "dup@example.com",
		PasswordHash: "$2a$10$hash",
		Role:         models.RoleTeacher,
		Active:       true,
	})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestAccountRepositoryWithTx(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	errAbort := errors.New("abort")

	err := repo.WithTx(ctx, func(tx *AccountRepository) error {
		created := createAccount(t, tx, "rolled@example.com", nil)

		found, err := tx.FindOne(ctx, ByID(created.ID), FieldEmail)
		require.NoError(t, err)
		assert.Equal(t, "rolled@example.com", found.Email)

		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	_, err = repo.FindOne(ctx, ByEmail("rolled@example.com", nil))
	assert.ErrorIs(t, err, ErrNotFound)

	err = repo.WithTx(ctx, func(tx *AccountRepository) error {
		createAccount(t, tx, "kept@example.com", nil)
		return tx.WithTx(ctx, func(nested *AccountRepository) error {
			assert.Same(t, tx, nested)
			return nil
		})
	})
	require.NoError(t, err)

	kept, err := repo.FindOne(ctx, ByEmail("kept@example.com", nil))
	require.NoError(t, err)
	assert.True(t, kept.Active)
}

func TestAccountRepositoryRefreshToken(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	account := createAccount(t, repo, "refresh@example.com", nil)
	now := time.Now()

	n, err := repo.Update(ctx, ByID(account.ID), AccountUpdate{
		RefreshToken: SetToken("live-token", now.Add(7*24*time.Hour)),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	found, err := repo.FindOne(ctx, ByRefreshToken("live-token", now), FieldID)
	require.NoError(t, err)
	assert.Equal(t, account.ID, found.ID)

	_, err = repo.Update(ctx, ByID(account.ID), AccountUpdate{
		RefreshToken: SetToken("stale-token", now.Add(-time.Minute)),
	})
	require.NoError(t, err)

	_, err = repo.FindOne(ctx, ByRefreshToken("stale-token", now), FieldID)
	assert.ErrorIs(t, err, ErrNotFound, "expired refresh token must not match")

	_, err = repo.FindOne(ctx, ByRefreshToken("live-token", now), FieldID)
	assert.ErrorIs(t, err, ErrNotFound, "overwritten refresh token must not match")
}

func TestAccountRepositoryResetTokenLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	account := createAccount(t, repo, "reset@example.com", nil)
	expiry := time.Now().Add(15 * time.Minute)

	_, err := repo.Update(ctx, ByID(account.ID), AccountUpdate{ResetToken: SetToken("reset-token", expiry)})
	require.NoError(t, err)

	found, err := repo.FindOne(ctx, ByResetToken("reset-token"))
	require.NoError(t, err)
	require.NotNil(t, found.ResetTokenExpiry)
	assert.WithinDuration(t, expiry, *found.ResetTokenExpiry, time.Second)

	newHash := "$2a$10$newhash"
	n, err := repo.Update(ctx, AccountFilter{ID: &account.ID, ResetToken: "reset-token"}, AccountUpdate{
		PasswordHash: &newHash,
		ResetToken:   ClearToken(),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.FindOne(ctx, ByResetToken("reset-token"))
	assert.ErrorIs(t, err, ErrNotFound)

	found, err = repo.FindOne(ctx, ByID(account.ID))
	require.NoError(t, err)
	assert.Equal(t, newHash, found.PasswordHash)
	assert.Nil(t, found.ResetToken)
	assert.Nil(t, found.ResetTokenExpiry)
}

func TestAccountRepositoryUpdateErrors(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.Update(ctx, AccountFilter{}, AccountUpdate{Active: new(bool)})
	assert.ErrorIs(t, err, ErrEmptyFilter)

	_, err = repo.Update(ctx, ByID(1), AccountUpdate{})
	assert.ErrorIs(t, err, ErrEmptyUpdate)

	n, err := repo.Update(ctx, ByID(9999), AccountUpdate{Active: new(bool)})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAccountRepositoryRemove(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	account := createAccount(t, repo, "gone@example.com", nil)

	_, err := repo.Remove(ctx, AccountFilter{})
	assert.ErrorIs(t, err, ErrEmptyFilter)

	n, err := repo.Remove(ctx, ByID(account.ID))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.FindOne(ctx, ByID(account.ID))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAccountRepositoryClearExpiredTokens(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now()

	expired := createAccount(t, repo, "expired@example.com", nil)
	live := createAccount(t, repo, "live@example.com", nil)

	_, err := repo.Update(ctx, ByID(expired.ID), AccountUpdate{
		RefreshToken: SetToken("old-refresh", now.Add(-time.Hour)),
		ResetToken:   SetToken("old-reset", now.Add(-time.Minute)),
	})
	require.NoError(t, err)
	_, err = repo.Update(ctx, ByID(live.ID), AccountUpdate{
		RefreshToken: SetToken("new-refresh", now.Add(time.Hour)),
		ResetToken:   SetToken("new-reset", now.Add(time.Minute)),
	})
	require.NoError(t, err)

	cleared, err := repo.ClearExpiredTokens(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), cleared)

	found, err := repo.FindOne(ctx, ByID(expired.ID))
	require.NoError(t, err)
	assert.Nil(t, found.RefreshToken)
	assert.Nil(t, found.ResetToken)

	found, err = repo.FindOne(ctx, ByID(live.ID))
	require.NoError(t, err)
	require.NotNil(t, found.RefreshToken)
	assert.Equal(t, "new-refresh", *found.RefreshToken)
	require.NotNil(t, found.ResetToken)
	assert.Equal(t, "new-reset", *found.ResetToken)
}
