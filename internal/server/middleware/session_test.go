package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/webauth/internal/crypto"
	"github.com/iudanet/webauth/internal/models"
	"github.com/iudanet/webauth/internal/server/auth"
	"github.com/iudanet/webauth/internal/server/handlers"
	"github.com/iudanet/webauth/internal/server/session"
	"github.com/iudanet/webauth/internal/server/storage"
)

// memSessionStore - in-memory session.Store для тестов
type memSessionStore struct {
	sessions map[string]session.Session
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: make(map[string]session.Session)}
}

func (s *memSessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	copied := sess
	return &copied, nil
}

func (s *memSessionStore) Save(ctx context.Context, sess *session.Session) error {
	s.sessions[sess.ID] = *sess
	return nil
}

func (s *memSessionStore) Delete(ctx context.Context, id string) error {
	delete(s.sessions, id)
	return nil
}

// stubUserStorage реализует только методы, нужные remember-me потоку
type stubUserStorage struct {
	storage.UserStorage
	user *models.User
}

func (s *stubUserStorage) GetUserByRememberToken(ctx context.Context, tokenValue string) (*models.User, error) {
	if s.user != nil && s.user.RememberTokenHash != nil && *s.user.RememberTokenHash == tokenValue {
		return s.user, nil
	}
	return nil, storage.ErrUserNotFound
}

func (s *stubUserStorage) UpdateRememberExpires(ctx context.Context, userID string, expires time.Time) error {
	s.user.RememberExpires = &expires
	return nil
}

func (s *stubUserStorage) SetRememberToken(ctx context.Context, userID, tokenHash string, expires time.Time) error {
	s.user.RememberTokenHash = &tokenHash
	s.user.RememberExpires = &expires
	return nil
}

type sessionTestEnv struct {
	store    *memSessionStore
	sessions *session.Manager
	users    *stubUserStorage
	handler  http.Handler

	// сессия, которую увидел внутренний handler
	seen *session.Session
}

func newSessionTestEnv(t *testing.T, legacyFallback bool) *sessionTestEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env := &sessionTestEnv{
		store: newMemSessionStore(),
		users: &stubUserStorage{},
	}
	env.sessions = session.NewManager(env.store, time.Hour)

	remember := auth.NewRememberManager(logger, env.users, legacyFallback)
	mw := SessionMiddleware(logger, env.sessions, remember, handlers.CookieConfig{})

	env.handler = mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.seen = handlers.SessionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	return env
}

func findCookie(t *testing.T, resp *http.Response, name string) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestSessionMiddleware_AnonymousRequest(t *testing.T) {
	env := newSessionTestEnv(t, false)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	w := httptest.NewRecorder()

	env.handler.ServeHTTP(w, req)

	require.NotNil(t, env.seen)
	assert.False(t, env.seen.Authenticated())
	assert.NotEmpty(t, env.seen.ID)

	// Cookie выставлен и сессия сохранена в store
	c := findCookie(t, w.Result(), handlers.SessionCookieName)
	require.NotNil(t, c)
	assert.Equal(t, env.seen.ID, c.Value)
	assert.True(t, c.HttpOnly)

	_, ok := env.store.sessions[env.seen.ID]
	assert.True(t, ok)
}

func TestSessionMiddleware_LoadsExistingSession(t *testing.T) {
	env := newSessionTestEnv(t, false)

	existing := &session.Session{
		ID:           "session-1",
		UserID:       "user-1",
		Username:     "alice",
		LastActivity: time.Now().Add(-10 * time.Minute),
	}
	require.NoError(t, env.store.Save(context.Background(), existing))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: handlers.SessionCookieName, Value: "session-1"})
	w := httptest.NewRecorder()

	env.handler.ServeHTTP(w, req)

	require.NotNil(t, env.seen)
	assert.True(t, env.seen.Authenticated())
	assert.Equal(t, "user-1", env.seen.UserID)

	// Скользящий TTL: отметка активности сдвинулась и сохранилась
	saved := env.store.sessions["session-1"]
	assert.WithinDuration(t, time.Now(), saved.LastActivity, time.Minute)
}

func TestSessionMiddleware_ExpiredSessionDegrades(t *testing.T) {
	env := newSessionTestEnv(t, false)

	existing := &session.Session{
		ID:           "session-1",
		UserID:       "user-1",
		Username:     "alice",
		LastActivity: time.Now().Add(-2 * time.Hour), // TTL в тесте 1 час
	}
	require.NoError(t, env.store.Save(context.Background(), existing))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: handlers.SessionCookieName, Value: "session-1"})
	w := httptest.NewRecorder()

	env.handler.ServeHTTP(w, req)

	require.NotNil(t, env.seen)
	assert.False(t, env.seen.Authenticated())
	assert.NotEqual(t, "session-1", env.seen.ID)

	// Истекшая запись уничтожена
	_, ok := env.store.sessions["session-1"]
	assert.False(t, ok)
}

func TestSessionMiddleware_RememberLogin(t *testing.T) {
	env := newSessionTestEnv(t, false)

	rawToken := "aabbccddeeff00112233445566778899aabbccddeeff0011"
	tokenHash := crypto.HashToken(rawToken)
	expires := time.Now().Add(10 * 24 * time.Hour)
	env.users.user = &models.User{
		ID:                "user-1",
		Username:          "alice",
		RememberTokenHash: &tokenHash,
		RememberExpires:   &expires,
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: handlers.RememberCookieName, Value: rawToken})
	w := httptest.NewRecorder()

	env.handler.ServeHTTP(w, req)

	require.NotNil(t, env.seen)
	assert.True(t, env.seen.Authenticated())
	assert.Equal(t, "user-1", env.seen.UserID)
	assert.Equal(t, "alice", env.seen.Username)

	// Сессионный cookie соответствует новой сессии
	c := findCookie(t, w.Result(), handlers.SessionCookieName)
	require.NotNil(t, c)
	assert.Equal(t, env.seen.ID, c.Value)

	// Хешированный токен не ротируется: новый remember cookie не выдается
	assert.Nil(t, findCookie(t, w.Result(), handlers.RememberCookieName))
}

func TestSessionMiddleware_RememberLegacyRotation(t *testing.T) {
	env := newSessionTestEnv(t, true)

	// Legacy строка: в слоте сырое значение, не хеш
	legacyRaw := "0011223344556677889900112233445566778899aabbccdd"
	expires := time.Now().Add(10 * 24 * time.Hour)
	env.users.user = &models.User{
		ID:                "user-1",
		Username:          "alice",
		RememberTokenHash: &legacyRaw,
		RememberExpires:   &expires,
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: handlers.RememberCookieName, Value: legacyRaw})
	w := httptest.NewRecorder()

	env.handler.ServeHTTP(w, req)

	require.NotNil(t, env.seen)
	assert.True(t, env.seen.Authenticated())

	// Миграция выдала новый cookie с новым токеном
	c := findCookie(t, w.Result(), handlers.RememberCookieName)
	require.NotNil(t, c)
	assert.NotEqual(t, legacyRaw, c.Value)
	assert.Equal(t, crypto.HashToken(c.Value), *env.users.user.RememberTokenHash)
}

func TestSessionMiddleware_InvalidRememberCookieCleared(t *testing.T) {
	env := newSessionTestEnv(t, false)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: handlers.RememberCookieName, Value: "bogus"})
	w := httptest.NewRecorder()

	env.handler.ServeHTTP(w, req)

	require.NotNil(t, env.seen)
	assert.False(t, env.seen.Authenticated())

	// Мертвый cookie очищен
	c := findCookie(t, w.Result(), handlers.RememberCookieName)
	require.NotNil(t, c)
	assert.Empty(t, c.Value)
	assert.Equal(t, -1, c.MaxAge)
}

func TestSessionMiddleware_PersistsHandlerMutations(t *testing.T) {
	env := newSessionTestEnv(t, false)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	remember := auth.NewRememberManager(logger, env.users, false)
	mw := SessionMiddleware(logger, env.sessions, remember, handlers.CookieConfig{})

	var sessID string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := handlers.SessionFromContext(r.Context())
		sessID = sess.ID
		_, err := env.sessions.EnsureCSRF(sess)
		require.NoError(t, err)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/csrf", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	// Мутация из handler (CSRF токен) сохранена в store
	saved, ok := env.store.sessions[sessID]
	require.True(t, ok)
	assert.NotEmpty(t, saved.CSRFToken)
}
