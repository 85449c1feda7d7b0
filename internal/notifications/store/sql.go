package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"movetrack/internal/notifications/models"
	"movetrack/internal/platform/database"
	id "movetrack/pkg/domain"
	"movetrack/pkg/platform/sentinel"
)

type SQL struct {
	db      *sql.DB
	dialect database.Dialect
}

func NewSQL(db *sql.DB, dialect database.Dialect) *SQL {
	return &SQL{db: db, dialect: dialect}
}

func (s *SQL) Create(ctx context.Context, n *models.Notification) (bool, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, subscription_id, topic_kind, topic_id, notification_type, event_type,
			dedup_key, delivered_at, delivery_attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		n.ID.String(), n.SubscriptionID.String(), string(n.Topic.Kind), n.Topic.ID.String(),
		string(n.Type), n.EventType, n.DedupKey, s.dialect.NullTime(n.DeliveredAt), n.DeliveryAttempts,
		s.dialect.Time(n.CreatedAt),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert notification: %w", err)
	}
	return true, nil
}

const notificationColumns = `id, subscription_id, topic_kind, topic_id, notification_type, event_type,
	dedup_key, delivered_at, delivery_attempts, created_at`

func (s *SQL) PendingDeliveries(ctx context.Context, maxAttempts, limit int) ([]*models.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE delivered_at IS NULL AND delivery_attempts < $1
		ORDER BY created_at ASC
		LIMIT $2
	`, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending notifications: %w", err)
	}
	return scanNotifications(rows)
}

func (s *SQL) ForTopic(ctx context.Context, topic id.Ref) ([]*models.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE topic_kind = $1 AND topic_id = $2
		ORDER BY created_at ASC
	`, string(topic.Kind), topic.ID.String())
	if err != nil {
		return nil, fmt.Errorf("query topic notifications: %w", err)
	}
	return scanNotifications(rows)
}

// MarkDelivered sets delivered_at once and counts the attempt.
func (s *SQL) MarkDelivered(ctx context.Context, nID id.NotificationID, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications
		SET delivered_at = COALESCE(delivered_at, $1), delivery_attempts = delivery_attempts + 1
		WHERE id = $2
	`, s.dialect.Time(at), nID.String())
	if err != nil {
		return fmt.Errorf("mark notification delivered: %w", err)
	}
	return requireRow(res)
}

func (s *SQL) RecordFailure(ctx context.Context, nID id.NotificationID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET delivery_attempts = delivery_attempts + 1 WHERE id = $1`, nID.String())
	if err != nil {
		return fmt.Errorf("record delivery failure: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanNotifications(rows *sql.Rows) ([]*models.Notification, error) {
	defer rows.Close()
	var out []*models.Notification
	for rows.Next() {
		var (
			n                                models.Notification
			nID, subID, kind, topicID, nType string
			deliveredAt, createdAt           database.Time
		)
		if err := rows.Scan(&nID, &subID, &kind, &topicID, &nType, &n.EventType, &n.DedupKey,
			&deliveredAt, &n.DeliveryAttempts, &createdAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		var err error
		if n.ID, err = id.ParseNotificationID(nID); err != nil {
			return nil, err
		}
		if n.SubscriptionID, err = id.ParseSubscriptionID(subID); err != nil {
			return nil, err
		}
		if n.Topic.ID, err = id.ParseEntityID(topicID); err != nil {
			return nil, err
		}
		n.Topic.Kind = id.EventableKind(kind)
		n.Type = models.Type(nType)
		n.DeliveredAt = deliveredAt.Ptr()
		n.CreatedAt = createdAt.T
		out = append(out, &n)
	}
	return out, rows.Err()
}
