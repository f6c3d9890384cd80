package storage

import (
	"context"

	"github.com/iudanet/webauth/internal/models"
)

// NotificationStorage defines interface for the append-only outgoing mail log
type NotificationStorage interface {
	// SaveNotification appends an outgoing message to the log
	SaveNotification(ctx context.Context, n *models.Notification) error

	// ListNotifications retrieves all messages for a recipient,
	// newest first. Returns empty slice if none found
	ListNotifications(ctx context.Context, recipient string) ([]*models.Notification, error)
}
