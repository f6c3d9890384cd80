package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/webauth/internal/models"
	"github.com/iudanet/webauth/internal/server/storage"
)

func setupTestStorage(t *testing.T) (*Storage, func()) {
	ctx := context.Background()

	// Используем in-memory database для тестов
	s, err := New(ctx, ":memory:")
	require.NoError(t, err)

	cleanup := func() {
		_ = s.Close()
	}

	return s, cleanup
}

func createTestUser(t *testing.T, ctx context.Context, s *Storage) string {
	userID := uuid.New().String()
	user := &models.User{
		ID:           userID,
		Username:     "testuser_" + userID[:8],
		Email:        "testuser_" + userID[:8] + "@example.com",
		PasswordHash: "bcrypt-hash",
		CreatedAt:    time.Now(),
	}

	err := s.CreateUser(ctx, user)
	require.NoError(t, err)

	return userID
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func strPtr(s string) *string {
	return &s
}

func TestUserStorage_CreateUser(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	tests := []struct {
		wantError error
		user      *models.User
		name      string
	}{
		{
			name: "create new user successfully",
			user: &models.User{
				ID:           uuid.New().String(),
				Username:     "testuser1",
				Email:        "user1@example.com",
				PasswordHash: "hash123",
				CreatedAt:    time.Now(),
			},
			wantError: nil,
		},
		{
			name: "create user with remember and reset slots",
			user: &models.User{
				ID:                uuid.New().String(),
				Username:          "testuser2",
				Email:             "user2@example.com",
				PasswordHash:      "hash456",
				RememberTokenHash: strPtr("remember-hash"),
				RememberExpires:   timePtr(time.Now().Add(time.Hour)),
				ResetToken:        strPtr("reset-token"),
				ResetExpires:      timePtr(time.Now().Add(time.Hour)),
				CreatedAt:         time.Now(),
			},
			wantError: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.CreateUser(ctx, tt.user)
			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
			} else {
				require.NoError(t, err)

				// Verify user was created
				retrieved, err := s.GetUserByID(ctx, tt.user.ID)
				require.NoError(t, err)
				assert.Equal(t, tt.user.ID, retrieved.ID)
				assert.Equal(t, tt.user.Username, retrieved.Username)
				assert.Equal(t, tt.user.Email, retrieved.Email)
				assert.Equal(t, tt.user.PasswordHash, retrieved.PasswordHash)
			}
		})
	}
}

func TestUserStorage_CreateUser_Duplicates(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	user1 := &models.User{
		ID:           uuid.New().String(),
		Username:     "duplicate",
		Email:        "duplicate@example.com",
		PasswordHash: "hash1",
		CreatedAt:    time.Now(),
	}
	require.NoError(t, s.CreateUser(ctx, user1))

	tests := []struct {
		name     string
		username string
		email    string
	}{
		{name: "duplicate username", username: "duplicate", email: "other@example.com"},
		{name: "duplicate email", username: "otheruser", email: "duplicate@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.CreateUser(ctx, &models.User{
				ID:           uuid.New().String(),
				Username:     tt.username,
				Email:        tt.email,
				PasswordHash: "hash2",
				CreatedAt:    time.Now(),
			})
			assert.ErrorIs(t, err, storage.ErrUserAlreadyExists)
		})
	}
}

func TestUserStorage_GetUserByLogin(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	user := &models.User{
		ID:           uuid.New().String(),
		Username:     "findme",
		Email:        "findme@example.com",
		PasswordHash: "hash123",
		CreatedAt:    time.Now(),
	}
	require.NoError(t, s.CreateUser(ctx, user))

	tests := []struct {
		wantError error
		name      string
		login     string
	}{
		{name: "find by username", login: "findme", wantError: nil},
		{name: "find by email", login: "findme@example.com", wantError: nil},
		{name: "unknown login", login: "nobody", wantError: storage.ErrUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retrieved, err := s.GetUserByLogin(ctx, tt.login)
			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
				assert.Nil(t, retrieved)
			} else {
				require.NoError(t, err)
				assert.Equal(t, user.ID, retrieved.ID)
			}
		})
	}
}

func TestUserStorage_GetUserByEmail(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	user := &models.User{
		ID:           uuid.New().String(),
		Username:     "mailuser",
		Email:        "mailuser@example.com",
		PasswordHash: "hash123",
		CreatedAt:    time.Now(),
	}
	require.NoError(t, s.CreateUser(ctx, user))

	retrieved, err := s.GetUserByEmail(ctx, "mailuser@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, retrieved.ID)

	_, err = s.GetUserByEmail(ctx, "unknown@example.com")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestUserStorage_RememberTokenLifecycle(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	userID := createTestUser(t, ctx, s)
	expires := time.Now().Add(30 * 24 * time.Hour)

	// Выдаем remember токен
	require.NoError(t, s.SetRememberToken(ctx, userID, "token-hash-1", expires))

	retrieved, err := s.GetUserByRememberToken(ctx, "token-hash-1")
	require.NoError(t, err)
	assert.Equal(t, userID, retrieved.ID)
	require.NotNil(t, retrieved.RememberTokenHash)
	assert.Equal(t, "token-hash-1", *retrieved.RememberTokenHash)
	require.NotNil(t, retrieved.RememberExpires)
	assert.WithinDuration(t, expires, *retrieved.RememberExpires, time.Second)

	// Повторная выдача перезаписывает слот (single active token per user)
	require.NoError(t, s.SetRememberToken(ctx, userID, "token-hash-2", expires))

	_, err = s.GetUserByRememberToken(ctx, "token-hash-1")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)

	// Сдвиг срока не трогает токен
	newExpires := time.Now().Add(60 * 24 * time.Hour)
	require.NoError(t, s.UpdateRememberExpires(ctx, userID, newExpires))

	retrieved, err = s.GetUserByRememberToken(ctx, "token-hash-2")
	require.NoError(t, err)
	assert.WithinDuration(t, newExpires, *retrieved.RememberExpires, time.Second)

	// Отзыв очищает оба поля
	require.NoError(t, s.ClearRememberToken(ctx, userID))

	retrieved, err = s.GetUserByID(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, retrieved.RememberTokenHash)
	assert.Nil(t, retrieved.RememberExpires)
}

func TestUserStorage_ClearAllRememberTokens(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	expires := time.Now().Add(time.Hour)

	user1 := createTestUser(t, ctx, s)
	user2 := createTestUser(t, ctx, s)
	require.NoError(t, s.SetRememberToken(ctx, user1, "hash1", expires))
	require.NoError(t, s.SetRememberToken(ctx, user2, "hash2", expires))

	// Миграция очищает слоты всех пользователей
	count, err := s.ClearAllRememberTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	for _, id := range []string{user1, user2} {
		u, err := s.GetUserByID(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, u.RememberTokenHash)
		assert.Nil(t, u.RememberExpires)
	}
}

func TestUserStorage_ResetTokenLifecycle(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	userID := createTestUser(t, ctx, s)
	expires := time.Now().Add(time.Hour)

	require.NoError(t, s.SetResetToken(ctx, userID, "reset-token-1", expires))

	retrieved, err := s.GetUserByResetToken(ctx, "reset-token-1")
	require.NoError(t, err)
	assert.Equal(t, userID, retrieved.ID)
	require.NotNil(t, retrieved.ResetExpires)
	assert.WithinDuration(t, expires, *retrieved.ResetExpires, time.Second)

	// UpdatePassword меняет хеш и гасит reset слот одним statement
	require.NoError(t, s.UpdatePassword(ctx, userID, "new-bcrypt-hash"))

	_, err = s.GetUserByResetToken(ctx, "reset-token-1")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)

	retrieved, err = s.GetUserByID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "new-bcrypt-hash", retrieved.PasswordHash)
	assert.Nil(t, retrieved.ResetToken)
	assert.Nil(t, retrieved.ResetExpires)
}

func TestUserStorage_UpdatePassword_NotFound(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	err := s.UpdatePassword(ctx, "nonexistent", "hash")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestUserStorage_UpdateLastLogin(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	userID := createTestUser(t, ctx, s)
	loginTime := time.Now()

	require.NoError(t, s.UpdateLastLogin(ctx, userID, loginTime))

	retrieved, err := s.GetUserByID(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, retrieved.LastLogin)
	assert.WithinDuration(t, loginTime, *retrieved.LastLogin, time.Second)

	err = s.UpdateLastLogin(ctx, "nonexistent", loginTime)
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}
