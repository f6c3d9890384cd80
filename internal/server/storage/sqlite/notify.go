package sqlite

import (
	"context"
	"fmt"

	"github.com/iudanet/webauth/internal/models"
)

// SaveNotification appends an outgoing message to the log
func (s *Storage) SaveNotification(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (recipient, subject, body, created_at)
		VALUES (?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		n.Recipient,
		n.Subject,
		n.Body,
		n.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get notification id: %w", err)
	}
	n.ID = id

	return nil
}

// ListNotifications retrieves all messages for a recipient, newest first
func (s *Storage) ListNotifications(ctx context.Context, recipient string) ([]*models.Notification, error) {
	query := `
		SELECT id, recipient, subject, body, created_at
		FROM notifications
		WHERE recipient = ?
		ORDER BY id DESC
	`

	rows, err := s.db.QueryContext(ctx, query, recipient)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var notifications []*models.Notification

	for rows.Next() {
		n := &models.Notification{}
		if err := rows.Scan(
			&n.ID,
			&n.Recipient,
			&n.Subject,
			&n.Body,
			&n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return notifications, nil
}
