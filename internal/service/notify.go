package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/nilewear/api/internal/database"
	"github.com/nilewear/api/internal/ws"
)

// ErrNotificationNotFound is returned when a notification does not exist or
// belongs to someone else.
var ErrNotificationNotFound = errors.New("notification not found")

// NotificationStore defines the DB methods needed by the notification
// service. Satisfied by *database.Queries.
type NotificationStore interface {
	CreateNotification(ctx context.Context, arg database.CreateNotificationParams) (database.Notification, error)
	GetNotification(ctx context.Context, id uuid.UUID) (database.Notification, error)
	ListNotificationsByRecipient(ctx context.Context, recipientID uuid.UUID) ([]database.Notification, error)
	MarkNotificationRead(ctx context.Context, id uuid.UUID) (database.Notification, error)
}

// Pusher fans an event out to a user's live websocket connections.
// Satisfied by *ws.Hub.
type Pusher interface {
	PushToUser(userID uuid.UUID, event ws.Event)
}

// NotificationService persists notifications and pushes them to connected
// clients. Persistence is the source of truth; the websocket push is
// best-effort on top of it.
type NotificationService struct {
	store  NotificationStore
	pusher Pusher // optional, nil disables live push
}

// NewNotificationService creates a new NotificationService. pusher may be
// nil.
func NewNotificationService(store NotificationStore, pusher Pusher) *NotificationService {
	return &NotificationService{store: store, pusher: pusher}
}

// notificationPayload is the wire shape pushed over the websocket.
type notificationPayload struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	OrderID   string    `json:"order_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Notify stores a notification for the recipient and pushes it to their open
// connections. Failures are logged, never propagated; an order must not fail
// because a notification could not be delivered.
func (s *NotificationService) Notify(ctx context.Context, recipientID uuid.UUID, title, message string, orderID uuid.UUID) {
	arg := database.CreateNotificationParams{
		RecipientID: recipientID,
		Title:       title,
		Message:     message,
	}
	if orderID != uuid.Nil {
		arg.OrderID = pgtype.UUID{Bytes: orderID, Valid: true}
	}

	n, err := s.store.CreateNotification(ctx, arg)
	if err != nil {
		log.Printf("create notification for %s: %v", recipientID, err)
		return
	}

	if s.pusher == nil {
		return
	}
	payload := notificationPayload{
		ID:        n.ID,
		Title:     n.Title,
		Message:   n.Message,
		CreatedAt: n.CreatedAt,
	}
	if n.OrderID.Valid {
		payload.OrderID = uuid.UUID(n.OrderID.Bytes).String()
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("marshal notification payload: %v", err)
		return
	}
	s.pusher.PushToUser(recipientID, ws.Event{Type: "notification", Payload: raw})
}

// ListMine returns the user's notifications, newest first.
func (s *NotificationService) ListMine(ctx context.Context, userID uuid.UUID) ([]database.Notification, error) {
	return s.store.ListNotificationsByRecipient(ctx, userID)
}

// MarkRead marks one of the user's notifications as read. A notification
// belonging to someone else looks like a missing one.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) (database.Notification, error) {
	n, err := s.store.GetNotification(ctx, notificationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Notification{}, ErrNotificationNotFound
		}
		return database.Notification{}, fmt.Errorf("get notification: %w", err)
	}
	if n.RecipientID != userID {
		return database.Notification{}, ErrNotificationNotFound
	}
	updated, err := s.store.MarkNotificationRead(ctx, notificationID)
	if err != nil {
		return database.Notification{}, fmt.Errorf("mark notification read: %w", err)
	}
	return updated, nil
}
