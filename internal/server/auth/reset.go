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
	"github.com/iudanet/webauth/internal/validation"
)

// Параметры workflow сброса пароля по умолчанию
const (
	DefaultResetTokenTTL  = time.Hour
	DefaultResetRateLimit = 5
	DefaultResetWindow    = time.Hour
)

// Mailer - внешняя возможность отправки почты.
// Механика доставки workflow не касается.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// ResetConfig - настройки workflow сброса пароля
type ResetConfig struct {
	// BaseURL - внешний адрес сервиса для построения ссылки в письме
	BaseURL string
	// TokenTTL - срок жизни reset токена
	TokenTTL time.Duration
	// RateLimit - максимум запросов сброса с одного IP за окно
	RateLimit int
	// RateWindow - скользящее окно лимита
	RateWindow time.Duration
	// BcryptCost - cost-параметр для хеширования нового пароля
	BcryptCost int
}

// ResetFlow реализует rate-limited workflow сброса пароля:
// NONE -> PENDING -> (CONSUMED | EXPIRED).
//
// Reset токен ищется по точному совпадению, без хеша: он короткоживущий,
// одноразовый и передается один раз по доверенному каналу (почта) -
// планка ниже, чем у долгоживущего remember-me cookie.
type ResetFlow struct {
	logger *slog.Logger
	users  storage.UserStorage
	rates  storage.RateLimitStorage
	mailer Mailer
	cfg    ResetConfig
	now    func() time.Time
}

// NewResetFlow создает workflow сброса пароля
func NewResetFlow(logger *slog.Logger, users storage.UserStorage, rates storage.RateLimitStorage, mailer Mailer, cfg ResetConfig) *ResetFlow {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultResetTokenTTL
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = DefaultResetRateLimit
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = DefaultResetWindow
	}
	if cfg.BcryptCost <= 0 {
		cfg.BcryptCost = crypto.DefaultBcryptCost
	}

	return &ResetFlow{
		logger: logger,
		users:  users,
		rates:  rates,
		mailer: mailer,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Request обрабатывает запрос сброса пароля.
//
// Существование email не должно быть наблюдаемо из ответа: для известного
// и неизвестного адреса вызывающий возвращает байт-в-байт одинаковый
// успех. Единственная различимая ошибка - превышение лимита по IP.
func (f *ResetFlow) Request(ctx context.Context, email, clientIP string) error {
	allowed, err := f.rates.Allow(ctx, clientIP, f.cfg.RateLimit, f.cfg.RateWindow, f.now())
	if err != nil {
		return fmt.Errorf("failed to check reset rate limit: %w", err)
	}
	if !allowed {
		return ErrRateLimited
	}

	user, err := f.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			// Токен не выдаем, но наружу это неотличимо от успеха
			f.logger.InfoContext(ctx, "reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("failed to look up user by email: %w", err)
	}

	token, err := crypto.NewToken(crypto.TokenBytes)
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}

	expires := f.now().Add(f.cfg.TokenTTL)

	// Перезаписывает прежний pending запрос: активен максимум один
	if err := f.users.SetResetToken(ctx, user.ID, token, expires); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	link := fmt.Sprintf("%s/api/v1/auth/reset?token=%s", f.cfg.BaseURL, token)
	body := "Click the link to reset your password: " + link

	if err := f.mailer.Send(ctx, user.Email, "Password reset", body); err != nil {
		return fmt.Errorf("failed to send reset email: %w", err)
	}

	f.logger.InfoContext(ctx, "reset token issued", slog.String("user_id", user.ID))
	return nil
}

// Validate проверяет токен перед показом формы сброса, не потребляя его.
// Fail closed: не найден или истек - ErrTokenInvalid.
func (f *ResetFlow) Validate(ctx context.Context, token string) error {
	_, err := f.lookup(ctx, token)
	return err
}

// Consume гасит токен: перепроверяет его, применяет парольную политику,
// сохраняет новый хеш и обнуляет reset слот - повторное использование
// невозможно. Сессия при этом не стартует, пользователь логинится заново.
func (f *ResetFlow) Consume(ctx context.Context, token, newPassword string) error {
	user, err := f.lookup(ctx, token)
	if err != nil {
		return err
	}

	if err := validation.CheckPasswordPolicy(newPassword); err != nil {
		return err
	}

	hash, err := crypto.HashPassword(newPassword, f.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash new password: %w", err)
	}

	// UpdatePassword одним statement меняет хеш и гасит reset слот
	if err := f.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	f.logger.InfoContext(ctx, "password reset completed", slog.String("user_id", user.ID))
	return nil
}

// lookup находит пользователя по токену с перепроверкой срока действия
func (f *ResetFlow) lookup(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrTokenInvalid
	}

	user, err := f.users.GetUserByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("failed to look up reset token: %w", err)
	}

	if user.ResetExpires == nil || user.ResetExpires.Before(f.now()) {
		return nil, ErrTokenInvalid
	}

	return user, nil
}
