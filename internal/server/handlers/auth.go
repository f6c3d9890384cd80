package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/webauth/internal/crypto"
	"github.com/iudanet/webauth/internal/models"
	"github.com/iudanet/webauth/internal/server/auth"
	"github.com/iudanet/webauth/internal/server/session"
	"github.com/iudanet/webauth/internal/server/storage"
	"github.com/iudanet/webauth/internal/validation"
	"github.com/iudanet/webauth/pkg/api"
)

// AuthHandler обрабатывает запросы аутентификации
type AuthHandler struct {
	logger       *slog.Logger
	userStorage  storage.UserStorage
	sessions     *session.Manager
	remember     *auth.RememberManager
	reset        *auth.ResetFlow
	cookies      CookieConfig
	bcryptCost   int
	rememberDays int
}

// NewAuthHandler создает новый handler для аутентификации
func NewAuthHandler(
	logger *slog.Logger,
	userStorage storage.UserStorage,
	sessions *session.Manager,
	remember *auth.RememberManager,
	reset *auth.ResetFlow,
	cookies CookieConfig,
	bcryptCost int,
	rememberDays int,
) *AuthHandler {
	if bcryptCost <= 0 {
		bcryptCost = crypto.DefaultBcryptCost
	}
	if rememberDays <= 0 {
		rememberDays = auth.DefaultRememberDays
	}
	return &AuthHandler{
		logger:       logger,
		userStorage:  userStorage,
		sessions:     sessions,
		remember:     remember,
		reset:        reset,
		cookies:      cookies,
		bcryptCost:   bcryptCost,
		rememberDays: rememberDays,
	}
}

// Signup обрабатывает POST /api/v1/auth/signup
// Регистрация нового пользователя
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.ErrorContext(ctx, "failed to decode signup request", slog.Any("error", err))
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if !h.verifyCSRF(w, r, req.CSRF) {
		return
	}

	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(req.Email)

	if username == "" || email == "" || req.Password == "" {
		h.sendError(w, "Missing fields", http.StatusBadRequest)
		return
	}

	if err := validation.ValidateUsername(username); err != nil {
		h.logger.WarnContext(ctx, "invalid username", slog.String("username", username), slog.Any("error", err))
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateEmail(email); err != nil {
		h.logger.WarnContext(ctx, "invalid email", slog.Any("error", err))
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Все нарушения парольной политики возвращаются разом
	if violations := validation.ValidatePasswordPolicy(req.Password); len(violations) > 0 {
		h.sendError(w, strings.Join(violations, "; "), http.StatusUnprocessableEntity)
		return
	}

	hash, err := crypto.HashPassword(req.Password, h.bcryptCost)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to hash password", slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}

	if err := h.userStorage.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			h.logger.WarnContext(ctx, "user already exists", slog.String("username", username))
			h.sendError(w, "Email or username already taken", http.StatusConflict)
			return
		}
		h.logger.ErrorContext(ctx, "failed to create user", slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "user registered successfully",
		slog.String("username", username),
		slog.String("user_id", user.ID))

	h.sendJSON(w, api.Response{Success: true, Message: "Account created"}, http.StatusCreated)
}

// Login обрабатывает POST /api/v1/auth/login
// Аутентификация по паре login (username или email) + пароль
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.ErrorContext(ctx, "failed to decode login request", slog.Any("error", err))
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if !h.verifyCSRF(w, r, req.CSRF) {
		return
	}

	login := strings.TrimSpace(req.Login)
	if login == "" || req.Password == "" {
		h.sendError(w, "Missing email or password", http.StatusBadRequest)
		return
	}

	user, err := h.userStorage.GetUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			// Единое сообщение: существование аккаунта не раскрываем
			h.logger.WarnContext(ctx, "login failed: user not found")
			h.sendError(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get user", slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if !crypto.VerifyPassword(req.Password, user.PasswordHash) {
		h.logger.WarnContext(ctx, "login failed: invalid password", slog.String("user_id", user.ID))
		h.sendError(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	// Сессия привязывается к пользователю с ротацией ID
	sess := SessionFromContext(ctx)
	sess, err = h.sessions.Start(ctx, sess, user.ID, user.Username)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to start session", slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	h.cookies.SetSession(w, sess.ID)

	if err := h.userStorage.UpdateLastLogin(ctx, user.ID, time.Now()); err != nil {
		// Не критичная ошибка, логируем но не прерываем
		h.logger.WarnContext(ctx, "failed to update last login", slog.Any("error", err))
	}

	if req.Remember {
		token, expires, err := h.remember.Issue(ctx, user.ID, h.rememberDays)
		if err != nil {
			h.logger.ErrorContext(ctx, "failed to issue remember token", slog.Any("error", err))
			h.sendError(w, "internal server error", http.StatusInternalServerError)
			return
		}
		h.cookies.SetRemember(w, token, expires)
	}

	h.logger.InfoContext(ctx, "user logged in successfully",
		slog.String("username", user.Username),
		slog.String("user_id", user.ID))

	h.sendJSON(w, api.Response{Success: true, Message: "Logged in"}, http.StatusOK)
}

// RequestReset обрабатывает POST /api/v1/auth/request-reset
// Запрос ссылки на сброс пароля
func (h *AuthHandler) RequestReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.RequestResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.ErrorContext(ctx, "failed to decode reset request", slog.Any("error", err))
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if !h.verifyCSRF(w, r, req.CSRF) {
		return
	}

	email := strings.TrimSpace(req.Email)
	if email == "" {
		h.sendError(w, "Missing email", http.StatusBadRequest)
		return
	}

	if err := h.reset.Request(ctx, email, getClientIP(r)); err != nil {
		if errors.Is(err, auth.ErrRateLimited) {
			h.sendError(w, "Too many reset requests, try later", http.StatusTooManyRequests)
			return
		}
		h.logger.ErrorContext(ctx, "failed to process reset request", slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	// Байт-в-байт одинаковый ответ для известного и неизвестного email
	h.sendJSON(w, api.Response{
		Success: true,
		Message: "If that email exists, a reset link was sent (silent)",
	}, http.StatusOK)
}

// ResetPassword обрабатывает GET и POST /api/v1/auth/reset
// GET проверяет токен перед показом формы, POST устанавливает новый пароль
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		h.validateResetToken(w, r)
		return
	}
	h.consumeResetToken(w, r)
}

// validateResetToken отвечает на GET: токен валиден или нет, не потребляя его
func (h *AuthHandler) validateResetToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := r.URL.Query().Get("token")
	if token == "" {
		h.sendError(w, "Missing token", http.StatusBadRequest)
		return
	}

	if err := h.reset.Validate(ctx, token); err != nil {
		if errors.Is(err, auth.ErrTokenInvalid) {
			h.sendError(w, "Token invalid or expired", http.StatusGone)
			return
		}
		h.logger.ErrorContext(ctx, "failed to validate reset token", slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.sendJSON(w, api.ResetTokenResponse{Success: true, Token: token}, http.StatusOK)
}

// consumeResetToken отвечает на POST: гасит токен и ставит новый пароль
func (h *AuthHandler) consumeResetToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.ErrorContext(ctx, "failed to decode reset password request", slog.Any("error", err))
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// Токен приходит в теле или в query - как удобнее форме
	token := req.Token
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		h.sendError(w, "Missing token", http.StatusBadRequest)
		return
	}

	if !h.verifyCSRF(w, r, req.CSRF) {
		return
	}

	if req.Password == "" {
		h.sendError(w, "Missing password", http.StatusBadRequest)
		return
	}

	if err := h.reset.Consume(ctx, token, req.Password); err != nil {
		var policyErr *validation.PolicyError
		switch {
		case errors.As(err, &policyErr):
			h.sendError(w, policyErr.Error(), http.StatusUnprocessableEntity)
		case errors.Is(err, auth.ErrTokenInvalid):
			h.sendError(w, "Token invalid or expired", http.StatusGone)
		default:
			h.logger.ErrorContext(ctx, "failed to reset password", slog.Any("error", err))
			h.sendError(w, "internal server error", http.StatusInternalServerError)
		}
		return
	}

	h.sendJSON(w, api.Response{Success: true, Message: "Password reset"}, http.StatusOK)
}

// Logout обрабатывает POST /api/v1/auth/logout
// Завершение сессии и отзыв remember-me токена
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Тело может быть пустым, если CSRF пришел заголовком
	var req api.LogoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.ErrorContext(ctx, "failed to decode logout request", slog.Any("error", err))
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if !h.verifyCSRF(w, r, req.CSRF) {
		return
	}

	sess := SessionFromContext(ctx)

	if sess.Authenticated() {
		if err := h.remember.Revoke(ctx, sess.UserID); err != nil {
			// Не критичная ошибка: сессию все равно завершаем
			h.logger.WarnContext(ctx, "failed to revoke remember token", slog.Any("error", err))
		}
	}

	if err := h.sessions.End(ctx, sess); err != nil {
		h.logger.ErrorContext(ctx, "failed to end session", slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.cookies.ClearSession(w)
	h.cookies.ClearRemember(w)

	h.logger.InfoContext(ctx, "user logged out successfully")

	h.sendJSON(w, api.Response{Success: true, Message: "Logged out"}, http.StatusOK)
}

// Me обрабатывает GET /api/v1/auth/me
// Возвращает identity текущей сессии
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())

	if !sess.Authenticated() {
		h.sendError(w, "Not authenticated", http.StatusUnauthorized)
		return
	}

	h.sendJSON(w, api.MeResponse{
		Success: true,
		User: api.SessionUser{
			ID:       sess.UserID,
			Username: sess.Username,
		},
	}, http.StatusOK)
}

// Csrf обрабатывает GET /api/v1/auth/csrf
// Выдает per-session CSRF токен; повторный вызов возвращает тот же токен
func (h *AuthHandler) Csrf(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := SessionFromContext(ctx)

	token, err := h.sessions.EnsureCSRF(sess)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to ensure csrf token", slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.sendJSON(w, api.CSRFResponse{Success: true, CSRFToken: token}, http.StatusOK)
}

// verifyCSRF проверяет double-submit токен. Заголовок X-CSRF-Token имеет
// приоритет, поле тела - fallback. При провале пишет 403 и возвращает false.
func (h *AuthHandler) verifyCSRF(w http.ResponseWriter, r *http.Request, bodyToken string) bool {
	sess := SessionFromContext(r.Context())
	if !session.VerifyCSRF(sess, r.Header.Get("X-CSRF-Token"), bodyToken) {
		h.logger.WarnContext(r.Context(), "csrf verification failed",
			slog.String("path", r.URL.Path))
		h.sendError(w, "Invalid CSRF token", http.StatusForbidden)
		return false
	}
	return true
}

// getClientIP извлекает IP адрес клиента из запроса
// Проверяет заголовки X-Forwarded-For и X-Real-IP для прокси
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// Берем первый IP из списка (реальный клиент)
		if idx := strings.IndexByte(xff, ','); idx >= 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return xff
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	return r.RemoteAddr
}

// sendJSON отправляет JSON ответ
func (h *AuthHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

// sendError отправляет JSON ответ с ошибкой
func (h *AuthHandler) sendError(w http.ResponseWriter, message string, statusCode int) {
	h.sendJSON(w, api.Response{Success: false, Message: message}, statusCode)
}
