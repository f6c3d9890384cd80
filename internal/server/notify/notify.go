// Package notify реализует доставку писем через журнал уведомлений в БД.
// Реального SMTP в сервисе нет: исходящие письма складываются в таблицу
// notifications, откуда их забирает внешний воркер доставки.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/iudanet/webauth/internal/models"
	"github.com/iudanet/webauth/internal/server/storage"
)

// LogMailer пишет исходящее письмо в журнал уведомлений
type LogMailer struct {
	logger *slog.Logger
	store  storage.NotificationStorage
	now    func() time.Time
}

// NewLogMailer создает mailer поверх журнала уведомлений
func NewLogMailer(logger *slog.Logger, store storage.NotificationStorage) *LogMailer {
	return &LogMailer{
		logger: logger,
		store:  store,
		now:    time.Now,
	}
}

// Send сохраняет письмо в журнал. Тело письма в лог не попадает:
// оно содержит reset ссылку с токеном.
func (m *LogMailer) Send(ctx context.Context, to, subject, body string) error {
	n := &models.Notification{
		Recipient: to,
		Subject:   subject,
		Body:      body,
		CreatedAt: m.now(),
	}

	if err := m.store.SaveNotification(ctx, n); err != nil {
		return fmt.Errorf("failed to save notification: %w", err)
	}

	m.logger.InfoContext(ctx, "notification queued",
		slog.String("subject", subject), slog.Int64("notification_id", n.ID))
	return nil
}
