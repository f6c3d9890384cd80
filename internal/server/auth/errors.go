package auth

import "errors"

// Ошибки доменных workflow. На границе API каждая превращается в
// {success:false, message} с соответствующим статусом; детали внутренних
// сбоев наружу не уходят.
var (
	// ErrInvalidCredentials - неверная пара логин/пароль. Сообщение
	// намеренно не различает "нет такого пользователя" и "не тот пароль"
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrRateLimited - превышен лимит запросов сброса пароля с одного IP
	ErrRateLimited = errors.New("too many reset requests")

	// ErrTokenInvalid - reset токен не найден или истек.
	// Единое сообщение для обоих случаев
	ErrTokenInvalid = errors.New("token invalid or expired")

	// ErrRememberInvalid - remember-me cookie не опознан или истек;
	// вызывающий должен очистить cookie, чтобы браузер перестал
	// пересылать мертвый credential
	ErrRememberInvalid = errors.New("remember token invalid or expired")
)
