package handlers

import (
	"net/http"
	"time"
)

// Имена cookie, которые выдает сервер
const (
	// SessionCookieName несет ID сессии; живет до закрытия браузера,
	// серверный TTL сессии строже
	SessionCookieName = "session_id"
	// RememberCookieName несет сырой remember-me токен
	RememberCookieName = "remember_token"
)

// CookieConfig - общие атрибуты выдаваемых cookie
type CookieConfig struct {
	// Secure выставляет флаг Secure; выключается только для локальной
	// разработки без TLS
	Secure bool
}

// SetSession выставляет сессионный cookie без Expires:
// браузер держит его до закрытия, сервер - до истечения TTL
func (c CookieConfig) SetSession(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   c.Secure,
	})
}

// ClearSession удаляет сессионный cookie
func (c CookieConfig) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   c.Secure,
	})
}

// SetRemember выставляет remember-me cookie с абсолютным сроком,
// совпадающим со сроком токена в БД
func (c CookieConfig) SetRemember(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     RememberCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   c.Secure,
	})
}

// ClearRemember удаляет remember-me cookie, чтобы браузер перестал
// пересылать мертвый токен
func (c CookieConfig) ClearRemember(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RememberCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   c.Secure,
	})
}
