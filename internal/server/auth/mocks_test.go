package auth

import (
	"context"
	"time"

	"github.com/iudanet/webauth/internal/models"
	"github.com/iudanet/webauth/internal/server/storage"
)

// mockUserStorage is a hand-written in-memory UserStorage for tests
type mockUserStorage struct {
	users map[string]*models.User // id -> user

	rememberExpiresErr error
	setRememberErr     error
	setResetErr        error
	updatePasswordErr  error

	slideCalls int
}

func newMockUserStorage() *mockUserStorage {
	return &mockUserStorage{users: make(map[string]*models.User)}
}

func (m *mockUserStorage) CreateUser(ctx context.Context, user *models.User) error {
	for _, u := range m.users {
		if u.Username == user.Username || u.Email == user.Email {
			return storage.ErrUserAlreadyExists
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m *mockUserStorage) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	user, ok := m.users[userID]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserStorage) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == login || u.Username == login {
			return u, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (m *mockUserStorage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (m *mockUserStorage) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	if m.updatePasswordErr != nil {
		return m.updatePasswordErr
	}
	user, ok := m.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}
	user.PasswordHash = passwordHash
	user.ResetToken = nil
	user.ResetExpires = nil
	return nil
}

func (m *mockUserStorage) UpdateLastLogin(ctx context.Context, userID string, lastLogin time.Time) error {
	user, ok := m.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}
	user.LastLogin = &lastLogin
	return nil
}

func (m *mockUserStorage) SetRememberToken(ctx context.Context, userID, tokenHash string, expires time.Time) error {
	if m.setRememberErr != nil {
		return m.setRememberErr
	}
	user, ok := m.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}
	user.RememberTokenHash = &tokenHash
	user.RememberExpires = &expires
	return nil
}

func (m *mockUserStorage) GetUserByRememberToken(ctx context.Context, tokenValue string) (*models.User, error) {
	for _, u := range m.users {
		if u.RememberTokenHash != nil && *u.RememberTokenHash == tokenValue {
			return u, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (m *mockUserStorage) UpdateRememberExpires(ctx context.Context, userID string, expires time.Time) error {
	m.slideCalls++
	if m.rememberExpiresErr != nil {
		return m.rememberExpiresErr
	}
	user, ok := m.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}
	user.RememberExpires = &expires
	return nil
}

func (m *mockUserStorage) ClearRememberToken(ctx context.Context, userID string) error {
	user, ok := m.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}
	user.RememberTokenHash = nil
	user.RememberExpires = nil
	return nil
}

func (m *mockUserStorage) ClearAllRememberTokens(ctx context.Context) (int, error) {
	count := 0
	for _, u := range m.users {
		if u.RememberTokenHash != nil {
			u.RememberTokenHash = nil
			u.RememberExpires = nil
			count++
		}
	}
	return count, nil
}

func (m *mockUserStorage) SetResetToken(ctx context.Context, userID, token string, expires time.Time) error {
	if m.setResetErr != nil {
		return m.setResetErr
	}
	user, ok := m.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}
	user.ResetToken = &token
	user.ResetExpires = &expires
	return nil
}

func (m *mockUserStorage) GetUserByResetToken(ctx context.Context, token string) (*models.User, error) {
	for _, u := range m.users {
		if u.ResetToken != nil && *u.ResetToken == token {
			return u, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

// mockRateLimiter is a configurable RateLimitStorage for tests
type mockRateLimiter struct {
	allowed bool
	err     error
	keys    []string
}

func (m *mockRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (bool, error) {
	m.keys = append(m.keys, key)
	if m.err != nil {
		return false, m.err
	}
	return m.allowed, nil
}

// sentMail captures one outgoing message
type sentMail struct {
	to      string
	subject string
	body    string
}

// mockMailer records sent messages
type mockMailer struct {
	sent []sentMail
	err  error
}

func (m *mockMailer) Send(ctx context.Context, to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}
