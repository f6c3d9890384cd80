package session

import (
	"context"
	"errors"
	"time"
)

// Session представляет серверную сессию, привязанную к cookie session_id.
// Сессия - явный объект: HTTP-слой загружает ее перед обработчиком и
// сохраняет после, сами обработчики работают только с этим значением.
type Session struct {
	ID           string    `json:"id"`            // UUID сессии, значение cookie
	UserID       string    `json:"user_id"`       // пустая строка = не аутентифицирован
	Username     string    `json:"username"`      // username для быстрого доступа без похода в БД
	CSRFToken    string    `json:"csrf_token"`    // per-session CSRF токен (double-submit)
	LastActivity time.Time `json:"last_activity"` // обновляется на каждом запросе (sliding TTL)

	// Ended выставляется при logout: запись уже удалена из store,
	// middleware должен очистить cookie вместо сохранения
	Ended bool `json:"-"`
}

// Authenticated сообщает, привязана ли сессия к пользователю
func (s *Session) Authenticated() bool {
	return s.UserID != ""
}

// Store defines interface for server-side session persistence
type Store interface {
	// Get retrieves session by ID
	// Returns ErrSessionNotFound if session doesn't exist
	Get(ctx context.Context, id string) (*Session, error)

	// Save stores or updates a session
	Save(ctx context.Context, sess *Session) error

	// Delete removes session by ID
	// Deleting a missing session is not an error
	Delete(ctx context.Context, id string) error
}

// ErrSessionNotFound indicates that session was not found in the store
var ErrSessionNotFound = errors.New("session not found")
