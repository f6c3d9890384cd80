package handlers

import (
	"context"

	"github.com/iudanet/webauth/internal/server/session"
)

type contextKey string

// SessionKey - ключ контекста, под которым middleware кладет сессию запроса
const SessionKey contextKey = "session"

// SessionFromContext достает сессию текущего запроса из контекста.
// Если middleware не отработал, возвращается пустая неаутентифицированная
// сессия - handler деградирует до "не аутентифицирован", а не паникует.
func SessionFromContext(ctx context.Context) *session.Session {
	if sess, ok := ctx.Value(SessionKey).(*session.Session); ok {
		return sess
	}
	return &session.Session{}
}
