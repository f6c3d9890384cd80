package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/iudanet/webauth/internal/server/auth"
	"github.com/iudanet/webauth/internal/server/handlers"
	"github.com/iudanet/webauth/internal/server/session"
)

// SessionMiddleware создает middleware жизненного цикла сессии.
//
// На каждом запросе: загрузка сессии по cookie, скользящий TTL, тихий
// remember-me логин при отсутствии активной сессии, прокидывание сессии
// в контекст и сохранение после обработки.
//
// Cookie сессии выставляется до вызова handler: если handler ротирует
// сессию (login) или завершает ее (logout), он перевыставляет cookie сам.
func SessionMiddleware(
	logger *slog.Logger,
	sessions *session.Manager,
	remember *auth.RememberManager,
	cookies handlers.CookieConfig,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			// Загружаем сессию по cookie; отсутствие cookie дает пустую
			var sessionID string
			if c, err := r.Cookie(handlers.SessionCookieName); err == nil {
				sessionID = c.Value
			}

			sess, err := sessions.Load(ctx, sessionID)
			if err != nil {
				logger.ErrorContext(ctx, "failed to load session", slog.Any("error", err))
				sendInternalError(w)
				return
			}

			// Скользящий TTL: истекшая сессия деградирует до пустой
			sess, err = sessions.Touch(ctx, sess)
			if err != nil {
				logger.ErrorContext(ctx, "failed to touch session", slog.Any("error", err))
				sendInternalError(w)
				return
			}

			// Тихий remember-me логин, только когда активной сессии нет
			if !sess.Authenticated() {
				sess = tryRememberLogin(ctx, w, r, logger, sessions, remember, cookies, sess)
			}

			cookies.SetSession(w, sess.ID)

			ctx = context.WithValue(ctx, handlers.SessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))

			// Завершенные сессии Save игнорирует; cookie очистил handler
			if err := sessions.Save(ctx, sess); err != nil {
				logger.ErrorContext(ctx, "failed to save session", slog.Any("error", err))
			}
		})
	}
}

// tryRememberLogin пытается восстановить identity по remember-me cookie.
// Любой провал не ломает запрос: он продолжается неаутентифицированным.
func tryRememberLogin(
	ctx context.Context,
	w http.ResponseWriter,
	r *http.Request,
	logger *slog.Logger,
	sessions *session.Manager,
	remember *auth.RememberManager,
	cookies handlers.CookieConfig,
	sess *session.Session,
) *session.Session {
	c, err := r.Cookie(handlers.RememberCookieName)
	if err != nil || c.Value == "" {
		return sess
	}

	result, err := remember.Authenticate(ctx, c.Value)
	if err != nil {
		if errors.Is(err, auth.ErrRememberInvalid) {
			// Мертвый cookie очищаем, чтобы браузер его не пересылал
			cookies.ClearRemember(w)
		} else {
			logger.ErrorContext(ctx, "remember-me authentication failed", slog.Any("error", err))
		}
		return sess
	}

	started, err := sessions.Start(ctx, sess, result.User.ID, result.User.Username)
	if err != nil {
		logger.ErrorContext(ctx, "failed to start session from remember token", slog.Any("error", err))
		return sess
	}

	// Мигрированный legacy токен означает новый cookie
	if result.Rotated {
		cookies.SetRemember(w, result.NewToken, result.NewExpires)
	}

	logger.InfoContext(ctx, "user authenticated via remember token",
		slog.String("user_id", result.User.ID))

	return started
}

func sendInternalError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte(`{"success":false,"message":"internal server error"}`))
}
