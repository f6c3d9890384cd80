package storage

import (
	"context"
	"time"

	"github.com/iudanet/webauth/internal/models"
)

// UserStorage defines interface for user data persistence
//
// Все операции обновления - атомарные single-row записи: гонка двух запросов
// разрешается по принципу last-writer-wins, что допустимо для remember/reset
// слотов (см. ClearRememberToken/SetRememberToken).
type UserStorage interface {
	// CreateUser creates a new user in the storage
	// Returns ErrUserAlreadyExists if username or email is already taken
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByID retrieves user by ID
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByID(ctx context.Context, userID string) (*models.User, error)

	// GetUserByLogin retrieves user by email or username (login form accepts both)
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)

	// GetUserByEmail retrieves user by email
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// UpdatePassword replaces the password hash and clears the reset slot
	// in a single statement (single-use enforcement for reset tokens)
	// Returns ErrUserNotFound if user doesn't exist
	UpdatePassword(ctx context.Context, userID, passwordHash string) error

	// UpdateLastLogin updates the last login timestamp
	UpdateLastLogin(ctx context.Context, userID string, lastLogin time.Time) error

	// SetRememberToken overwrites the user's remember-me slot with a new
	// token hash and absolute expiry (single active token per user)
	// Returns ErrUserNotFound if user doesn't exist
	SetRememberToken(ctx context.Context, userID, tokenHash string, expires time.Time) error

	// GetUserByRememberToken retrieves user by the stored remember token value.
	// The caller passes either SHA256(raw) for the normal path or the raw
	// cookie value for the legacy plaintext fallback.
	// Returns ErrUserNotFound if no row matches
	GetUserByRememberToken(ctx context.Context, tokenValue string) (*models.User, error)

	// UpdateRememberExpires slides the remember-me expiry forward without
	// touching the token itself
	// Returns ErrUserNotFound if user doesn't exist
	UpdateRememberExpires(ctx context.Context, userID string, expires time.Time) error

	// ClearRememberToken nulls the user's remember-me slot
	// Returns ErrUserNotFound if user doesn't exist
	ClearRememberToken(ctx context.Context, userID string) error

	// ClearAllRememberTokens nulls the remember-me slot for every user.
	// One-time data migration used to retire the legacy plaintext fallback.
	// Returns number of affected users
	ClearAllRememberTokens(ctx context.Context) (int, error)

	// SetResetToken overwrites the user's reset slot with a new token and
	// expiry (at most one pending reset per user)
	// Returns ErrUserNotFound if user doesn't exist
	SetResetToken(ctx context.Context, userID, token string, expires time.Time) error

	// GetUserByResetToken retrieves user by exact reset token match
	// Returns ErrUserNotFound if no row matches
	GetUserByResetToken(ctx context.Context, token string) (*models.User, error)
}
