package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/adilp/bhmhockey/models"
	"github.com/lib/pq"
)

var ErrNotificationNotFound = errors.New("notification not found")

type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID int, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID int, at time.Time) error
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)

	UpsertPushToken(ctx context.Context, token *models.PushToken) error
	ListPushTokens(ctx context.Context, userIDs []int) ([]models.PushToken, error)
	DeletePushToken(ctx context.Context, token string) error
}

type postgresNotificationRepository struct {
	db *sql.DB
}

func NewPostgresNotificationRepository(db *sql.DB) NotificationRepository {
	return &postgresNotificationRepository{db: db}
}

func (r *postgresNotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (user_id, type, title, body, data)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, n.UserID, n.Type, n.Title, n.Body, n.Data).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *postgresNotificationRepository) ListByUser(ctx context.Context, userID int, unreadOnly bool, limit int) ([]models.Notification, error) {
	query := `
		SELECT id, user_id, type, title, body, data, read_at, created_at
		FROM notifications
		WHERE user_id = $1`
	if unreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += ` ORDER BY created_at DESC`

	args := []interface{}{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := make([]models.Notification, 0)
	for rows.Next() {
		var n models.Notification
		if scanErr := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Body, &n.Data, &n.ReadAt, &n.CreatedAt); scanErr != nil {
			return nil, scanErr
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (r *postgresNotificationRepository) MarkRead(ctx context.Context, id, userID int, at time.Time) error {
	query := `UPDATE notifications SET read_at = $1 WHERE id = $2 AND user_id = $3 AND read_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, at, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return checkAffectedRows(result, ErrNotificationNotFound)
}

func (r *postgresNotificationRepository) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE read_at IS NOT NULL AND read_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old notifications: %w", err)
	}
	return result.RowsAffected()
}

func (r *postgresNotificationRepository) UpsertPushToken(ctx context.Context, token *models.PushToken) error {
	query := `
		INSERT INTO push_tokens (user_id, token, platform)
		VALUES ($1, $2, $3)
		ON CONFLICT (token) DO UPDATE SET user_id = EXCLUDED.user_id, platform = EXCLUDED.platform
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, token.UserID, token.Token, token.Platform).Scan(&token.ID, &token.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert push token: %w", err)
	}
	return nil
}

func (r *postgresNotificationRepository) ListPushTokens(ctx context.Context, userIDs []int) ([]models.PushToken, error) {
	if len(userIDs) == 0 {
		return []models.PushToken{}, nil
	}
	query := `SELECT id, user_id, token, platform, created_at FROM push_tokens WHERE user_id = ANY($1)`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(userIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tokens := make([]models.PushToken, 0)
	for rows.Next() {
		var t models.PushToken
		if scanErr := rows.Scan(&t.ID, &t.UserID, &t.Token, &t.Platform, &t.CreatedAt); scanErr != nil {
			return nil, scanErr
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func (r *postgresNotificationRepository) DeletePushToken(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM push_tokens WHERE token = $1`, token); err != nil {
		return fmt.Errorf("failed to delete push token: %w", err)
	}
	return nil
}
