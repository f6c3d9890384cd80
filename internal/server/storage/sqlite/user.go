package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iudanet/webauth/internal/models"
	"github.com/iudanet/webauth/internal/server/storage"
)

const userColumns = `id, username, email, password_hash,
	remember_token_hash, remember_expires, reset_token, reset_expires,
	created_at, last_login`

// CreateUser creates a new user in the storage
func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, username, email, password_hash,
			remember_token_hash, remember_expires, reset_token, reset_expires,
			created_at, last_login)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.RememberTokenHash,
		user.RememberExpires,
		user.ResetToken,
		user.ResetExpires,
		user.CreatedAt,
		user.LastLogin,
	)

	if err != nil {
		// Проверяем на duplicate username/email
		if strings.Contains(err.Error(), "UNIQUE constraint failed: users.") {
			return storage.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// GetUserByID retrieves user by ID
func (s *Storage) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return s.scanUser(s.db.QueryRowContext(ctx, query, userID))
}

// GetUserByLogin retrieves user by email or username
func (s *Storage) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ? OR username = ? LIMIT 1`
	return s.scanUser(s.db.QueryRowContext(ctx, query, login, login))
}

// GetUserByEmail retrieves user by email
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	return s.scanUser(s.db.QueryRowContext(ctx, query, email))
}

// GetUserByRememberToken retrieves user by the stored remember token value
func (s *Storage) GetUserByRememberToken(ctx context.Context, tokenValue string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE remember_token_hash = ? LIMIT 1`
	return s.scanUser(s.db.QueryRowContext(ctx, query, tokenValue))
}

// GetUserByResetToken retrieves user by exact reset token match
func (s *Storage) GetUserByResetToken(ctx context.Context, token string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE reset_token = ? LIMIT 1`
	return s.scanUser(s.db.QueryRowContext(ctx, query, token))
}

// UpdatePassword replaces the password hash and clears the reset slot
func (s *Storage) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	// Смена пароля и погашение reset токена - один statement,
	// чтобы токен нельзя было использовать дважды
	query := `
		UPDATE users
		SET password_hash = ?, reset_token = NULL, reset_expires = NULL
		WHERE id = ?
	`
	return s.execForUser(ctx, query, passwordHash, userID)
}

// UpdateLastLogin updates the last login timestamp
func (s *Storage) UpdateLastLogin(ctx context.Context, userID string, lastLogin time.Time) error {
	query := `UPDATE users SET last_login = ? WHERE id = ?`
	return s.execForUser(ctx, query, lastLogin, userID)
}

// SetRememberToken overwrites the user's remember-me slot
func (s *Storage) SetRememberToken(ctx context.Context, userID, tokenHash string, expires time.Time) error {
	query := `UPDATE users SET remember_token_hash = ?, remember_expires = ? WHERE id = ?`
	return s.execForUser(ctx, query, tokenHash, expires, userID)
}

// UpdateRememberExpires slides the remember-me expiry forward
func (s *Storage) UpdateRememberExpires(ctx context.Context, userID string, expires time.Time) error {
	query := `UPDATE users SET remember_expires = ? WHERE id = ?`
	return s.execForUser(ctx, query, expires, userID)
}

// ClearRememberToken nulls the user's remember-me slot
func (s *Storage) ClearRememberToken(ctx context.Context, userID string) error {
	query := `UPDATE users SET remember_token_hash = NULL, remember_expires = NULL WHERE id = ?`
	return s.execForUser(ctx, query, userID)
}

// ClearAllRememberTokens nulls the remember-me slot for every user
func (s *Storage) ClearAllRememberTokens(ctx context.Context) (int, error) {
	query := `UPDATE users SET remember_token_hash = NULL, remember_expires = NULL`

	result, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to clear remember tokens: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rows), nil
}

// SetResetToken overwrites the user's reset slot
func (s *Storage) SetResetToken(ctx context.Context, userID, token string, expires time.Time) error {
	query := `UPDATE users SET reset_token = ?, reset_expires = ? WHERE id = ?`
	return s.execForUser(ctx, query, token, expires, userID)
}

// execForUser выполняет single-row UPDATE и превращает "0 строк" в ErrUserNotFound
func (s *Storage) execForUser(ctx context.Context, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

// scanUser читает строку users с учетом nullable колонок
func (s *Storage) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var (
		rememberHash    sql.NullString
		rememberExpires sql.NullTime
		resetToken      sql.NullString
		resetExpires    sql.NullTime
		lastLogin       sql.NullTime
	)

	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&rememberHash,
		&rememberExpires,
		&resetToken,
		&resetExpires,
		&user.CreatedAt,
		&lastLogin,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if rememberHash.Valid {
		user.RememberTokenHash = &rememberHash.String
	}
	if rememberExpires.Valid {
		user.RememberExpires = &rememberExpires.Time
	}
	if resetToken.Valid {
		user.ResetToken = &resetToken.String
	}
	if resetExpires.Valid {
		user.ResetExpires = &resetExpires.Time
	}
	if lastLogin.Valid {
		user.LastLogin = &lastLogin.Time
	}

	return user, nil
}
