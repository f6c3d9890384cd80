package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iudanet/webauth/internal/crypto"
	"github.com/iudanet/webauth/internal/models"
	"github.com/iudanet/webauth/internal/server/storage"
)

// DefaultRememberDays - срок жизни remember-me токена по умолчанию
const DefaultRememberDays = 30

// RememberManager управляет долгоживущими remember-me токенами.
//
// В cookie клиента живет сырой токен, в БД - только его SHA256 хеш:
// компрометация хранилища не дает рабочих токенов. На пользователя
// активен максимум один токен - логин с нового устройства перезаписывает
// слот и отзывает старое устройство.
type RememberManager struct {
	logger *slog.Logger
	users  storage.UserStorage
	now    func() time.Time

	// legacyFallback включает поиск по сырому значению для строк,
	// записанных до перехода на хеширование. Это миграционный костыль
	// с датой заката: после прогона -invalidate-remember-tokens флаг
	// выключается в конфиге.
	legacyFallback bool
}

// NewRememberManager создает менеджер remember-me токенов
func NewRememberManager(logger *slog.Logger, users storage.UserStorage, legacyFallback bool) *RememberManager {
	return &RememberManager{
		logger:         logger,
		users:          users,
		legacyFallback: legacyFallback,
		now:            time.Now,
	}
}

// RememberResult - результат успешной тихой аутентификации по cookie
type RememberResult struct {
	User *models.User

	// Rotated=true, когда строка мигрирована с legacy plaintext:
	// клиенту нужно выставить новый cookie
	Rotated    bool
	NewToken   string
	NewExpires time.Time
}

// Authenticate пытается тихо аутентифицировать пользователя по значению
// remember cookie. Вызывается только когда активной сессии нет.
//
// Быстрый путь: поиск по SHA256(cookie), сравнение за константное время,
// перепроверка срока действия (непустому полю не доверяем), затем сдвиг
// срока вперед без ротации токена. Ошибка сдвига не фатальна.
//
// Fallback: поиск по сырому значению - только для строк, записанных до
// хеширования. При первом же успехе строка мигрирует: выдается новый
// токен, plaintext уничтожается.
//
// Возвращает ErrRememberInvalid для мертвого cookie - вызывающий его
// очищает.
func (m *RememberManager) Authenticate(ctx context.Context, rawToken string) (*RememberResult, error) {
	if rawToken == "" {
		return nil, ErrRememberInvalid
	}

	now := m.now()
	tokenHash := crypto.HashToken(rawToken)

	user, err := m.users.GetUserByRememberToken(ctx, tokenHash)
	switch {
	case err == nil:
		if user.RememberTokenHash == nil || !crypto.TokensEqual(*user.RememberTokenHash, tokenHash) {
			return nil, ErrRememberInvalid
		}
		if user.RememberExpires == nil || user.RememberExpires.Before(now) {
			// Совпал, но истек: fallback не пробуем, cookie умирает
			return nil, ErrRememberInvalid
		}

		// Скользящее окно: тот же токен, тот же cookie, новый срок
		newExpires := now.Add(DefaultRememberDays * 24 * time.Hour)
		if err := m.users.UpdateRememberExpires(ctx, user.ID, newExpires); err != nil {
			// Не фатально: пользователь уже аутентифицирован
			m.logger.WarnContext(ctx, "failed to slide remember expiry",
				slog.String("user_id", user.ID), slog.Any("error", err))
		}

		return &RememberResult{User: user}, nil

	case errors.Is(err, storage.ErrUserNotFound):
		if !m.legacyFallback {
			return nil, ErrRememberInvalid
		}
		return m.authenticateLegacy(ctx, rawToken, now)

	default:
		return nil, fmt.Errorf("failed to look up remember token: %w", err)
	}
}

// authenticateLegacy ищет строку с plaintext токеном и мигрирует ее
// на хешированное хранение принудительной ротацией
func (m *RememberManager) authenticateLegacy(ctx context.Context, rawToken string, now time.Time) (*RememberResult, error) {
	user, err := m.users.GetUserByRememberToken(ctx, rawToken)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrRememberInvalid
		}
		return nil, fmt.Errorf("failed to look up legacy remember token: %w", err)
	}

	if user.RememberExpires == nil || user.RememberExpires.Before(now) {
		return nil, ErrRememberInvalid
	}

	// Принудительная ротация: plaintext значение уничтожается при первом
	// успешном использовании
	newToken, newExpires, err := m.Issue(ctx, user.ID, DefaultRememberDays)
	if err != nil {
		return nil, fmt.Errorf("failed to rotate legacy remember token: %w", err)
	}

	m.logger.InfoContext(ctx, "legacy remember token migrated to hashed storage",
		slog.String("user_id", user.ID))

	return &RememberResult{
		User:       user,
		Rotated:    true,
		NewToken:   newToken,
		NewExpires: newExpires,
	}, nil
}

// Issue выдает новый remember-me токен: генерирует сырое значение,
// сохраняет в БД только хеш и абсолютный срок, возвращает сырое значение
// для cookie. Прежний токен пользователя перезаписывается.
func (m *RememberManager) Issue(ctx context.Context, userID string, days int) (string, time.Time, error) {
	if days <= 0 {
		days = DefaultRememberDays
	}

	rawToken, err := crypto.NewToken(crypto.TokenBytes)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate remember token: %w", err)
	}

	expires := m.now().Add(time.Duration(days) * 24 * time.Hour)

	if err := m.users.SetRememberToken(ctx, userID, crypto.HashToken(rawToken), expires); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to store remember token: %w", err)
	}

	return rawToken, expires, nil
}

// Revoke очищает remember-me слот пользователя. Вызывается на logout.
func (m *RememberManager) Revoke(ctx context.Context, userID string) error {
	if err := m.users.ClearRememberToken(ctx, userID); err != nil {
		return fmt.Errorf("failed to revoke remember token: %w", err)
	}
	return nil
}
