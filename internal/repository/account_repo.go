package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"academy/internal/database"
	"academy/internal/models"
)

var (
	// ErrNotFound is returned when no account matches a filter
	ErrNotFound = errors.New("account not found")
	// ErrDuplicate is returned when an insert collides with the (email, teacher) index
	ErrDuplicate = errors.New("account already exists")
	// ErrEmptyFilter is returned for filters that constrain no identifying column
	ErrEmptyFilter = errors.New("account filter must constrain id, email, refresh token or reset token")
	// ErrEmptyUpdate is returned for updates that assign no column
	ErrEmptyUpdate = errors.New("account update assigns no columns")
)

// Field is a selectable account column
type Field int

const (
	FieldID Field = iota
	FieldName
	FieldEmail
	FieldTeacherID
	FieldPasswordHash
	FieldRole
	FieldPhone
	FieldImage
	FieldActive
	FieldRefreshToken
	FieldRefreshTokenExpiry
	FieldResetToken
	FieldResetTokenExpiry
	FieldCreatedAt
	FieldUpdatedAt
)

var fieldColumns = [...]string{
	FieldID:                 "id",
	FieldName:               "name",
	FieldEmail:              "email",
	FieldTeacherID:          "teacher_id",
	FieldPasswordHash:       "password_hash",
	FieldRole:               "role",
	FieldPhone:              "phone",
	FieldImage:              "image",
	FieldActive:             "active",
	FieldRefreshToken:       "refresh_token",
	FieldRefreshTokenExpiry: "refresh_token_expiry",
	FieldResetToken:         "reset_token",
	FieldResetTokenExpiry:   "reset_token_expiry",
	FieldCreatedAt:          "created_at",
	FieldUpdatedAt:          "updated_at",
}

// Column returns the SQL column backing the field
func (f Field) Column() string {
	return fieldColumns[f]
}

var (
	// AllFields selects every column
	AllFields = []Field{
		FieldID, FieldName, FieldEmail, FieldTeacherID, FieldPasswordHash, FieldRole, FieldPhone, FieldImage,
		FieldActive, FieldRefreshToken, FieldRefreshTokenExpiry, FieldResetToken, FieldResetTokenExpiry,
		FieldCreatedAt, FieldUpdatedAt,
	}
	// ProfileFields selects the non-sensitive projection
	ProfileFields = []Field{
		FieldID, FieldName, FieldEmail, FieldRole, FieldPhone, FieldImage, FieldTeacherID, FieldActive, FieldCreatedAt,
	}
	// CredentialFields selects what a password check needs
	CredentialFields = []Field{FieldID, FieldPasswordHash, FieldActive}
)

// AccountFilter selects accounts by equality on the set fields. At least one
// of ID, Email, RefreshToken or ResetToken must be set.
type AccountFilter struct {
	ID    *int64
	Email string
	// TeacherID scopes Email lookups. With TeacherScoped set, a nil TeacherID
	// matches only accounts without a teacher.
	TeacherID     *int64
	TeacherScoped bool
	RefreshToken  string
	ResetToken    string
	// RefreshValidAt requires refresh_token_expiry to be after the given time
	RefreshValidAt *time.Time
}

// ByID filters on the primary key
func ByID(id int64) AccountFilter {
	return AccountFilter{ID: &id}
}

// ByEmail filters on email within the given teacher scope
func ByEmail(email string, teacherID *int64) AccountFilter {
	return AccountFilter{Email: email, TeacherID: teacherID, TeacherScoped: true}
}

// ByRefreshToken filters on a refresh token that is still valid at now
func ByRefreshToken(token string, now time.Time) AccountFilter {
	return AccountFilter{RefreshToken: token, RefreshValidAt: &now}
}

// ByResetToken filters on a reset token regardless of its expiry
func ByResetToken(token string) AccountFilter {
	return AccountFilter{ResetToken: token}
}

func (f AccountFilter) isEmpty() bool {
	return f.ID == nil && f.Email == "" && f.RefreshToken == "" && f.ResetToken == ""
}

func (f AccountFilter) where() (string, []any, error) {
	if f.isEmpty() {
		return "", nil, ErrEmptyFilter
	}

	var clauses []string
	var args []any
	if f.ID != nil {
		clauses = append(clauses, "id = ?")
		args = append(args, *f.ID)
	}
	if f.Email != "" {
		clauses = append(clauses, "email = ?")
		args = append(args, f.Email)
	}
	if f.TeacherID != nil {
		clauses = append(clauses, "teacher_id = ?")
		args = append(args, *f.TeacherID)
	} else if f.TeacherScoped {
		clauses = append(clauses, "teacher_id IS NULL")
	}
	if f.RefreshToken != "" {
		clauses = append(clauses, "refresh_token = ?")
		args = append(args, f.RefreshToken)
	}
	if f.RefreshValidAt != nil {
		clauses = append(clauses, "refresh_token_expiry > ?")
		args = append(args, f.RefreshValidAt.UTC())
	}
	if f.ResetToken != "" {
		clauses = append(clauses, "reset_token = ?")
		args = append(args, f.ResetToken)
	}
	return strings.Join(clauses, " AND "), args, nil
}

// TokenUpdate assigns or clears a token and its expiry together
type TokenUpdate struct {
	Token  *string
	Expiry *time.Time
}

// SetToken stores token with its expiry
func SetToken(token string, expiry time.Time) *TokenUpdate {
	return &TokenUpdate{Token: &token, Expiry: &expiry}
}

// ClearToken removes the token and its expiry
func ClearToken() *TokenUpdate {
	return &TokenUpdate{}
}

// AccountUpdate is a set of column assignments. Nil fields are left untouched.
type AccountUpdate struct {
	PasswordHash *string
	RefreshToken *TokenUpdate
	ResetToken   *TokenUpdate
	Active       *bool
}

func (u AccountUpdate) set(now time.Time) (string, []any, error) {
	var assignments []string
	var args []any
	if u.PasswordHash != nil {
		assignments = append(assignments, "password_hash = ?")
		args = append(args, *u.PasswordHash)
	}
	if u.RefreshToken != nil {
		assignments = append(assignments, "refresh_token = ?", "refresh_token_expiry = ?")
		args = append(args, nullString(u.RefreshToken.Token), nullTime(u.RefreshToken.Expiry))
	}
	if u.ResetToken != nil {
		assignments = append(assignments, "reset_token = ?", "reset_token_expiry = ?")
		args = append(args, nullString(u.ResetToken.Token), nullTime(u.ResetToken.Expiry))
	}
	if u.Active != nil {
		assignments = append(assignments, "active = ?")
		args = append(args, *u.Active)
	}
	if len(assignments) == 0 {
		return "", nil, ErrEmptyUpdate
	}
	assignments = append(assignments, "updated_at = ?")
	args = append(args, now.UTC())
	return strings.Join(assignments, ", "), args, nil
}

// AccountRepository handles database operations for accounts
type AccountRepository struct {
	db  database.DBTX
	now func() time.Time
}

// NewAccountRepository creates a new account repository over a connection
// or an open transaction
func NewAccountRepository(db database.DBTX) *AccountRepository {
	return &AccountRepository{db: db, now: time.Now}
}

// WithTx runs fn with a repository bound to a single transaction. A
// repository that is already inside one hands itself to fn.
func (r *AccountRepository) WithTx(ctx context.Context, fn func(repo *AccountRepository) error) error {
	conn, ok := r.db.(*database.DB)
	if !ok {
		return fn(r)
	}
	return conn.WithTx(ctx, func(tx *database.Tx) error {
		return fn(&AccountRepository{db: tx, now: r.now})
	})
}

// FindOne returns the first account matching filter, loading only fields.
// With no fields every column is loaded.
func (r *AccountRepository) FindOne(ctx context.Context, filter AccountFilter, fields ...Field) (*models.Account, error) {
	where, args, err := filter.where()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		fields = AllFields
	}

	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Column()
	}
	query := fmt.Sprintf("SELECT %s FROM users WHERE %s LIMIT 1", strings.Join(columns, ", "), where)

	row := &accountRow{}
	targets := make([]any, len(fields))
	for i, f := range fields {
		targets[i] = row.target(f)
	}

	err = r.db.QueryRowContext(ctx, query, args...).Scan(targets...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}

	return row.account(), nil
}

// Create inserts a new account and returns the stored row, read back in
// the same transaction
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	now := r.now().UTC()
	query := `
		INSERT INTO users (name, email, teacher_id, password_hash, role, phone, image, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	var created *models.Account
	err := r.WithTx(ctx, func(repo *AccountRepository) error {
		id, err := repo.db.ExecReturningID(ctx, query,
			account.Name,
			account.Email,
			nullInt64(account.TeacherID),
			account.PasswordHash,
			string(account.Role),
			nullString(account.Phone),
			nullString(account.Image),
			account.Active,
			now,
			now,
		)
		if err != nil {
			return err
		}
		created, err = repo.FindOne(ctx, ByID(id))
		return err
	})
	if err != nil {
		if r.db.GetDialect().IsUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return created, nil
}

// Update applies update to every account matching filter and returns the
// number of rows changed
func (r *AccountRepository) Update(ctx context.Context, filter AccountFilter, update AccountUpdate) (int64, error) {
	where, whereArgs, err := filter.where()
	if err != nil {
		return 0, err
	}
	set, args, err := update.set(r.now())
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf("UPDATE users SET %s WHERE %s", set, where)
	result, err := r.db.ExecContext(ctx, query, append(args, whereArgs...)...)
	if err != nil {
		return 0, fmt.Errorf("failed to update account: %w", err)
	}
	return result.RowsAffected()
}

// Remove deletes every account matching filter
func (r *AccountRepository) Remove(ctx context.Context, filter AccountFilter) (int64, error) {
	where, args, err := filter.where()
	if err != nil {
		return 0, err
	}

	result, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE "+where, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to remove account: %w", err)
	}
	return result.RowsAffected()
}

// ClearExpiredTokens clears refresh and reset tokens whose expiry passed
// before now. It returns the number of tokens cleared.
func (r *AccountRepository) ClearExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	var cleared int64
	err := r.WithTx(ctx, func(repo *AccountRepository) error {
		queries := []string{
			`UPDATE users SET refresh_token = NULL, refresh_token_expiry = NULL
			 WHERE refresh_token_expiry IS NOT NULL AND refresh_token_expiry < ?`,
			`UPDATE users SET reset_token = NULL, reset_token_expiry = NULL
			 WHERE reset_token_expiry IS NOT NULL AND reset_token_expiry < ?`,
		}
		for _, query := range queries {
			result, err := repo.db.ExecContext(ctx, query, now.UTC())
			if err != nil {
				return err
			}
			n, err := result.RowsAffected()
			if err != nil {
				return err
			}
			cleared += n
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to clear expired tokens: %w", err)
	}
	return cleared, nil
}

// accountRow holds scan targets for nullable columns
type accountRow struct {
	id                 int64
	name               string
	email              string
	teacherID          sql.NullInt64
	passwordHash       string
	role               string
	phone              sql.NullString
	image              sql.NullString
	active             bool
	refreshToken       sql.NullString
	refreshTokenExpiry sql.NullTime
	resetToken         sql.NullString
	resetTokenExpiry   sql.NullTime
	createdAt          time.Time
	updatedAt          time.Time
}

func (r *accountRow) target(f Field) any {
	switch f {
	case FieldID:
		return &r.id
	case FieldName:
		return &r.name
	case FieldEmail:
		return &r.email
	case FieldTeacherID:
		return &r.teacherID
	case FieldPasswordHash:
		return &r.passwordHash
	case FieldRole:
		return &r.role
	case FieldPhone:
		return &r.phone
	case FieldImage:
		return &r.image
	case FieldActive:
		return &r.active
	case FieldRefreshToken:
		return &r.refreshToken
	case FieldRefreshTokenExpiry:
		return &r.refreshTokenExpiry
	case FieldResetToken:
		return &r.resetToken
	case FieldResetTokenExpiry:
		return &r.resetTokenExpiry
	case FieldCreatedAt:
		return &r.createdAt
	default:
		return &r.updatedAt
	}
}

func (r *accountRow) account() *models.Account {
	return &models.Account{
		ID:                 r.id,
		Name:               r.name,
		Email:              r.email,
		TeacherID:          int64Ptr(r.teacherID),
		PasswordHash:       r.passwordHash,
		Role:               models.Role(r.role),
		Phone:              stringPtr(r.phone),
		Image:              stringPtr(r.image),
		Active:             r.active,
		RefreshToken:       stringPtr(r.refreshToken),
		RefreshTokenExpiry: timePtr(r.refreshTokenExpiry),
		ResetToken:         stringPtr(r.resetToken),
		ResetTokenExpiry:   timePtr(r.resetTokenExpiry),
		CreatedAt:          r.createdAt,
		UpdatedAt:          r.updatedAt,
	}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt64(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func int64Ptr(i sql.NullInt64) *int64 {
	if !i.Valid {
		return nil
	}
	return &i.Int64
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}
