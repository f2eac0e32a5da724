package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/librisapp/libris-server/internal/domain"
	"github.com/librisapp/libris-server/internal/store"
)

// userColumns must match the scan order in scanUser.
const userColumns = `id, username, email, password_hash, first_name, last_name,
	created_at, updated_at, last_login_at`

func scanUser(scanner interface{ Scan(dest ...any) error }) (*domain.User, error) {
	var (
		u           domain.User
		createdAt   string
		updatedAt   string
		lastLoginAt sql.NullString
	)

	err := scanner.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&createdAt,
		&updatedAt,
		&lastLoginAt,
	)
	if err != nil {
		return nil, err
	}

	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	last, err := parseNullableTime(lastLoginAt)
	if err != nil {
		return nil, err
	}
	if last != nil {
		u.LastLoginAt = *last
	}
	return &u, nil
}

func lowerKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// CreateUser inserts a user. Returns store.ErrAlreadyExists when the ID,
// username or email is taken (case-insensitive).
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (
			id, username, username_lower, email, email_lower, password_hash,
			first_name, last_name, created_at, updated_at, last_login_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		lowerKey(user.Username),
		user.Email,
		lowerKey(user.Email),
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		formatTime(user.CreatedAt),
		formatTime(user.UpdatedAt),
		nullTimeString(&user.LastLoginAt),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.getUserWhere(ctx, "id = ?", id)
}

// GetUserByEmail retrieves a user by email, ignoring case.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.getUserWhere(ctx, "email_lower = ?", lowerKey(email))
}

// GetUserByUsername retrieves a user by username, ignoring case.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.getUserWhere(ctx, "username_lower = ?", lowerKey(username))
}

func (s *Store) getUserWhere(ctx context.Context, where string, arg any) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg)

	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// UpdateUser rewrites the mutable user fields.
func (s *Store) UpdateUser(ctx context.Context, user *domain.User) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET
			username = ?, username_lower = ?, email = ?, email_lower = ?,
			password_hash = ?, first_name = ?, last_name = ?,
			updated_at = ?, last_login_at = ?
		WHERE id = ?`,
		user.Username,
		lowerKey(user.Username),
		user.Email,
		lowerKey(user.Email),
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		formatTime(user.UpdatedAt),
		nullTimeString(&user.LastLoginAt),
		user.ID,
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
