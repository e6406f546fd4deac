package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nilewear/api/internal/database"
	"github.com/nilewear/api/internal/middleware"
	"github.com/nilewear/api/internal/service"
)

// NotificationServicer defines the service methods needed by notification
// handlers. Satisfied by *service.NotificationService.
type NotificationServicer interface {
	ListMine(ctx context.Context, userID uuid.UUID) ([]database.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) (database.Notification, error)
}

// NotificationHandler exposes the caller's notification feed.
type NotificationHandler struct {
	notifications NotificationServicer
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(notifications NotificationServicer) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// RegisterRoutes registers notification endpoints on the given Chi router.
func (h *NotificationHandler) RegisterRoutes(r chi.Router) {
	r.Get("/notifications", h.ListMine)
	r.Patch("/notifications/{id}/read", h.MarkRead)
}

type notificationResponse struct {
	ID        uuid.UUID  `json:"id"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	OrderID   *uuid.UUID `json:"order_id"`
	Read      bool       `json:"read"`
	CreatedAt time.Time  `json:"created_at"`
}

func toNotificationResponse(n database.Notification) notificationResponse {
	resp := notificationResponse{
		ID:        n.ID,
		Title:     n.Title,
		Message:   n.Message,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
	if n.OrderID.Valid {
		oid := uuid.UUID(n.OrderID.Bytes)
		resp.OrderID = &oid
	}
	return resp
}

// ListMine returns the caller's notifications, newest first.
func (h *NotificationHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	notifications, err := h.notifications.ListMine(r.Context(), claims.UserID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]notificationResponse, 0, len(notifications))
	for _, n := range notifications {
		resp = append(resp, toNotificationResponse(n))
	}
	writeJSON(w, http.StatusOK, resp)
}

// MarkRead marks one of the caller's notifications as read.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid notification id"})
		return
	}

	n, err := h.notifications.MarkRead(r.Context(), claims.UserID, id)
	if err != nil {
		if errors.Is(err, service.ErrNotificationNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toNotificationResponse(n))
}
