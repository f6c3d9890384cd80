package models

import "time"

// User представляет пользователя в системе
//
// Поля remember_* и reset_* описывают не более одного активного credential
// на пользователя: новая выдача перезаписывает предыдущую. Непустое значение
// само по себе ничего не гарантирует - срок действия проверяется заново при
// каждой валидации.
type User struct {
	ID                string     `json:"id"`                   // UUID пользователя
	Username          string     `json:"username"`             // уникальный username
	Email             string     `json:"email"`                // уникальный email
	PasswordHash      string     `json:"-"`                    // bcrypt хеш пароля, никогда не отдается клиенту
	RememberTokenHash *string    `json:"-"`                    // SHA256 хеш remember-me токена (hex)
	RememberExpires   *time.Time `json:"-"`                    // абсолютный срок действия remember-me токена
	ResetToken        *string    `json:"-"`                    // одноразовый токен сброса пароля
	ResetExpires      *time.Time `json:"-"`                    // срок действия токена сброса
	CreatedAt         time.Time  `json:"created_at"`           // время создания
	LastLogin         *time.Time `json:"last_login,omitempty"` // время последнего входа
}

// Notification представляет запись в журнале исходящих уведомлений.
// Журнал append-only и используется вместо реальной доставки почты.
type Notification struct {
	ID        int64     `json:"id"`         // автоинкрементный ID записи
	Recipient string    `json:"recipient"`  // email получателя
	Subject   string    `json:"subject"`    // тема письма
	Body      string    `json:"body"`       // тело письма
	CreatedAt time.Time `json:"created_at"` // время постановки в журнал
}
