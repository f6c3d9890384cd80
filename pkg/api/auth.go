package api

// Response представляет базовый ответ API
type Response struct {
	Success bool   `json:"success"`           // успех операции
	Message string `json:"message,omitempty"` // человекочитаемое сообщение
}

// SignupRequest представляет запрос на регистрацию нового пользователя
type SignupRequest struct {
	Username string `json:"username"` // username пользователя (3-32 символа, [a-zA-Z0-9_])
	Email    string `json:"email"`    // email пользователя
	Password string `json:"password"` // пароль открытым текстом (хешируется на сервере)
	CSRF     string `json:"csrf"`     // CSRF токен (fallback, если нет заголовка X-CSRF-Token)
}

// LoginRequest представляет запрос на аутентификацию
type LoginRequest struct {
	Login    string `json:"login"`    // username или email
	Password string `json:"password"` // пароль открытым текстом
	Remember bool   `json:"remember"` // выдать remember-me cookie на 30 дней
	CSRF     string `json:"csrf"`     // CSRF токен
}

// RequestResetRequest представляет запрос на сброс пароля
type RequestResetRequest struct {
	Email string `json:"email"` // email, на который придет ссылка
	CSRF  string `json:"csrf"`  // CSRF токен
}

// ResetPasswordRequest представляет запрос на установку нового пароля
type ResetPasswordRequest struct {
	Token    string `json:"token"`    // reset токен из письма
	Password string `json:"password"` // новый пароль
	CSRF     string `json:"csrf"`     // CSRF токен
}

// LogoutRequest представляет запрос на выход
type LogoutRequest struct {
	CSRF string `json:"csrf"` // CSRF токен
}

// SessionUser представляет публичные данные аутентифицированного пользователя
type SessionUser struct {
	ID       string `json:"id"`       // UUID пользователя
	Username string `json:"username"` // username пользователя
}

// MeResponse представляет ответ на запрос текущей сессии
type MeResponse struct {
	Success bool        `json:"success"`
	User    SessionUser `json:"user"`
}

// CSRFResponse представляет ответ с CSRF токеном текущей сессии
type CSRFResponse struct {
	Success   bool   `json:"success"`
	CSRFToken string `json:"csrf_token"` // hex-encoded токен для заголовка X-CSRF-Token
}

// ResetTokenResponse представляет ответ на валидацию reset токена
type ResetTokenResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"` // валидный токен, эхом для формы сброса
}
