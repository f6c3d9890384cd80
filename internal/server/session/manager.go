package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/webauth/internal/crypto"
)

// DefaultTTL - срок бездействия, после которого сессия уничтожается (1 сутки)
const DefaultTTL = 24 * time.Hour

// Manager управляет жизненным циклом сессий со скользящим TTL
type Manager struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// NewManager создает менеджер сессий поверх store
// ttl <= 0 заменяется на DefaultTTL
func NewManager(store Store, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		store: store,
		ttl:   ttl,
		now:   time.Now,
	}
}

// Load загружает сессию по ID из cookie.
// Отсутствующая или неизвестная сессия - не ошибка: возвращается свежая
// пустая сессия ("не аутентифицирован").
func (m *Manager) Load(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return m.newSession(), nil
	}

	sess, err := m.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return m.newSession(), nil
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	return sess, nil
}

// Touch применяет скользящий TTL. Вызывается до любой другой auth-логики
// на каждом запросе.
// Если с последней активности прошло больше TTL - сессия уничтожается
// и взамен создается свежая пустая; иначе отметка активности сдвигается
// на текущий момент. Истечение никогда не ошибка, только деградация до
// "не аутентифицирован".
func (m *Manager) Touch(ctx context.Context, sess *Session) (*Session, error) {
	now := m.now()

	if !sess.LastActivity.IsZero() && now.Sub(sess.LastActivity) > m.ttl {
		if err := m.store.Delete(ctx, sess.ID); err != nil {
			return nil, fmt.Errorf("failed to destroy expired session: %w", err)
		}
		return m.newSession(), nil
	}

	sess.LastActivity = now
	return sess, nil
}

// Start привязывает сессию к пользователю после успешной аутентификации.
// Идентификатор сессии меняется (защита от session fixation): старая
// запись удаляется, данные переезжают под новый UUID. CSRF токен при
// этом сохраняется.
func (m *Manager) Start(ctx context.Context, sess *Session, userID, username string) (*Session, error) {
	if err := m.store.Delete(ctx, sess.ID); err != nil {
		return nil, fmt.Errorf("failed to rotate session id: %w", err)
	}

	sess.ID = uuid.New().String()
	sess.UserID = userID
	sess.Username = username
	sess.LastActivity = m.now()
	sess.Ended = false

	return sess, nil
}

// End завершает сессию: запись удаляется из store, identity-поля
// очищаются. Вызывается на logout.
func (m *Manager) End(ctx context.Context, sess *Session) error {
	if err := m.store.Delete(ctx, sess.ID); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}

	sess.UserID = ""
	sess.Username = ""
	sess.CSRFToken = ""
	sess.Ended = true

	return nil
}

// Save сохраняет сессию в store. Завершенные сессии не сохраняются.
func (m *Manager) Save(ctx context.Context, sess *Session) error {
	if sess.Ended {
		return nil
	}
	if err := m.store.Save(ctx, sess); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// EnsureCSRF лениво создает per-session CSRF токен. Идемпотентна:
// повторный вызов возвращает существующий токен.
func (m *Manager) EnsureCSRF(sess *Session) (string, error) {
	if sess.CSRFToken == "" {
		token, err := crypto.NewToken(crypto.TokenBytes)
		if err != nil {
			return "", fmt.Errorf("failed to generate csrf token: %w", err)
		}
		sess.CSRFToken = token
	}
	return sess.CSRFToken, nil
}

// VerifyCSRF проверяет double-submit токен за константное время.
// Заголовок имеет приоритет над полем тела; поле - fallback для клиентов,
// не умеющих ставить свои заголовки.
func VerifyCSRF(sess *Session, headerToken, bodyToken string) bool {
	supplied := headerToken
	if supplied == "" {
		supplied = bodyToken
	}
	return crypto.TokensEqual(sess.CSRFToken, supplied)
}

// newSession создает пустую неаутентифицированную сессию
func (m *Manager) newSession() *Session {
	return &Session{
		ID:           uuid.New().String(),
		LastActivity: m.now(),
	}
}
