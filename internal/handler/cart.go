package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nilewear/api/internal/middleware"
	"github.com/nilewear/api/internal/service"
)

// CartServicer defines the service methods needed by cart handlers.
// Satisfied by *service.CartService; narrow interface for testability.
type CartServicer interface {
	View(ctx context.Context, userID uuid.UUID) (*service.CartView, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID, color, size string, quantity int32) (*service.CartView, error)
	UpdateItemQuantity(ctx context.Context, userID, productID uuid.UUID, color, size string, quantity int32) (*service.CartView, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID, color, size string) (*service.CartView, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

// CartHandler exposes the per-user cart. All routes require authentication;
// the cart addressed is always the caller's own.
type CartHandler struct {
	carts CartServicer
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(carts CartServicer) *CartHandler {
	return &CartHandler{carts: carts}
}

// RegisterRoutes registers cart endpoints on the given Chi router.
func (h *CartHandler) RegisterRoutes(r chi.Router) {
	r.Get("/cart", h.View)
	r.Post("/cart/items", h.AddItem)
	r.Patch("/cart/items", h.UpdateItem)
	r.Delete("/cart/items", h.RemoveItem)
	r.Delete("/cart", h.Clear)
}

// --- Request types ---

type cartItemRequest struct {
	ProductID string `json:"product_id"`
	Color     string `json:"color"`
	Size      string `json:"size"`
	Quantity  int32  `json:"quantity"`
}

func (req *cartItemRequest) parse() (uuid.UUID, string) {
	if req.Color == "" || req.Size == "" {
		return uuid.Nil, "color and size are required"
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return uuid.Nil, "invalid product_id"
	}
	return productID, ""
}

// --- Handlers ---

// View returns the caller's cart priced against the current catalog.
func (h *CartHandler) View(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	view, err := h.carts.View(r.Context(), claims.UserID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// AddItem adds units of a product variant, merging with an existing line.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	var req cartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	productID, errMsg := req.parse()
	if errMsg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errMsg})
		return
	}

	view, err := h.carts.AddItem(r.Context(), claims.UserID, productID, req.Color, req.Size, req.Quantity)
	if err != nil {
		writeCartError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// UpdateItem sets a line's absolute quantity. Zero removes the line.
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	var req cartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	productID, errMsg := req.parse()
	if errMsg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errMsg})
		return
	}

	view, err := h.carts.UpdateItemQuantity(r.Context(), claims.UserID, productID, req.Color, req.Size, req.Quantity)
	if err != nil {
		writeCartError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// RemoveItem deletes a line identified by (product, color, size).
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	var req cartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	productID, errMsg := req.parse()
	if errMsg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errMsg})
		return
	}

	view, err := h.carts.RemoveItem(r.Context(), claims.UserID, productID, req.Color, req.Size)
	if err != nil {
		writeCartError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Clear deletes the caller's cart.
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	if err := h.carts.Clear(r.Context(), claims.UserID); err != nil {
		writeCartError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeCartError maps cart service errors to HTTP statuses.
func writeCartError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, service.ErrVariantNotFound),
		errors.Is(err, service.ErrCartNotFound),
		errors.Is(err, service.ErrCartItemNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrInsufficientStock),
		errors.Is(err, service.ErrQuantityCapExceeded):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidQuantity):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
