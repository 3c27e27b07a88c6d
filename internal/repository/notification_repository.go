package repository

import (
	"context"
	"database/sql"
	"errors"

	"hygienix/backend/internal/model"
)

type CreateNotificationInput struct {
	Type    model.NotificationType
	Title   string
	Message string
	Meta    map[string]any
}

type NotificationRepository interface {
	CreateNotification(ctx context.Context, input CreateNotificationInput) (int64, error)
	ListNotifications(ctx context.Context) ([]model.Notification, error)
	MarkRead(ctx context.Context, id int64) error
}

var ErrNotificationNotFound = errors.New("notification not found")

type SQLNotificationRepository struct {
	db *sql.DB
}

func NewSQLNotificationRepository(db *sql.DB) *SQLNotificationRepository {
	return &SQLNotificationRepository{db: db}
}

func (r *SQLNotificationRepository) CreateNotification(ctx context.Context, input CreateNotificationInput) (int64, error) {
	meta, err := model.EncodeMeta(input.Meta)
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (type, title, message, meta) VALUES (?, ?, ?, ?)`,
		input.Type, input.Title, input.Message, meta,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *SQLNotificationRepository) ListNotifications(ctx context.Context) ([]model.Notification, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, type, title, message, meta, is_read, created_at
FROM notifications
ORDER BY created_at DESC, id DESC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Notification, 0)
	for rows.Next() {
		var (
			n    model.Notification
			meta sql.NullString
		)
		if err := rows.Scan(&n.ID, &n.Type, &n.Title, &n.Message, &meta, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		if n.Meta, err = model.DecodeMeta(meta.String); err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *SQLNotificationRepository) MarkRead(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
