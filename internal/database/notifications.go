package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const notificationColumns = `id, recipient_id, title, message, order_id, is_read, created_at`

func scanNotification(row interface{ Scan(...any) error }) (Notification, error) {
	var n Notification
	err := row.Scan(&n.ID, &n.RecipientID, &n.Title, &n.Message, &n.OrderID, &n.Read, &n.CreatedAt)
	return n, err
}

type CreateNotificationParams struct {
	RecipientID uuid.UUID
	Title       string
	Message     string
	OrderID     pgtype.UUID
}

func (q *Queries) CreateNotification(ctx context.Context, arg CreateNotificationParams) (Notification, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO notifications (recipient_id, title, message, order_id)
		VALUES ($1, $2, $3, $4)
		RETURNING `+notificationColumns,
		arg.RecipientID, arg.Title, arg.Message, arg.OrderID)
	return scanNotification(row)
}

func (q *Queries) GetNotification(ctx context.Context, id uuid.UUID) (Notification, error) {
	row := q.db.QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id)
	return scanNotification(row)
}

func (q *Queries) ListNotificationsByRecipient(ctx context.Context, recipientID uuid.UUID) ([]Notification, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE recipient_id = $1 ORDER BY created_at DESC`, recipientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (q *Queries) MarkNotificationRead(ctx context.Context, id uuid.UUID) (Notification, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE notifications SET is_read = true
		WHERE id = $1
		RETURNING `+notificationColumns, id)
	return scanNotification(row)
}
