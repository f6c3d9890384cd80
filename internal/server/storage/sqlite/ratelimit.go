package sqlite

import (
	"context"
	"fmt"
	"time"
)

// Allow prunes the key's ledger entries to the rolling window and records
// the attempt if it fits under the limit.
//
// Prune + count + insert выполняются в одной транзакции: конкурентные
// всплески с одного IP сериализуются на writer lock и не недосчитываются.
// busy_timeout ограничивает ожидание блокировки.
func (s *Storage) Allow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	windowStart := now.Add(-window)

	// Удаляем записи, выпавшие из окна
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM reset_rate WHERE key = ? AND requested_at <= ?`,
		key, windowStart,
	); err != nil {
		return false, fmt.Errorf("failed to prune rate ledger: %w", err)
	}

	// Считаем оставшиеся попытки в окне
	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reset_rate WHERE key = ?`,
		key,
	).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to count rate ledger: %w", err)
	}

	if count >= limit {
		// Отказ не расходует квоту: после сдвига окна запрос пройдет
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return false, nil
	}

	// Фиксируем попытку только когда лимит не превышен
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO reset_rate (key, requested_at) VALUES (?, ?)`,
		key, now,
	); err != nil {
		return false, fmt.Errorf("failed to record rate ledger entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return true, nil
}
