package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nilewear/api/internal/database"
	"github.com/nilewear/api/internal/enum"
	"github.com/nilewear/api/internal/middleware"
	"github.com/nilewear/api/internal/service"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	Create(ctx context.Context, userID uuid.UUID, paymentMethod string) (*service.OrderResult, error)
	Get(ctx context.Context, actorID uuid.UUID, actorRole string, orderID uuid.UUID) (*service.OrderResult, error)
	ListMine(ctx context.Context, userID uuid.UUID) ([]database.Order, error)
	List(ctx context.Context, status string) ([]database.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status string) (database.Order, error)
	Cancel(ctx context.Context, actorID uuid.UUID, actorRole string, orderID uuid.UUID) (database.Order, error)
	Delete(ctx context.Context, orderID uuid.UUID) error
}

// OrderHandler exposes order placement and lifecycle endpoints.
type OrderHandler struct {
	orders OrderServicer
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orders OrderServicer) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// RegisterRoutes registers customer-facing order endpoints.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/orders", h.Create)
	r.Get("/orders", h.ListMine)
	r.Get("/orders/{id}", h.Get)
	r.Post("/orders/{id}/cancel", h.Cancel)
}

// RegisterAdminRoutes registers order management endpoints. Mount behind
// admin-only middleware.
func (h *OrderHandler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/orders", h.ListAll)
	r.Patch("/orders/{id}/status", h.UpdateStatus)
	r.Delete("/orders/{id}", h.Delete)
}

// --- Request / Response types ---

type createOrderRequest struct {
	PaymentMethod string `json:"payment_method"`
}

type updateOrderStatusRequest struct {
	Status string `json:"status"`
}

type orderItemResponse struct {
	ProductID          *uuid.UUID `json:"product_id"`
	Title              string     `json:"title"`
	ImageURL           *string    `json:"image_url"`
	Color              string     `json:"color"`
	Size               string     `json:"size"`
	Quantity           int32      `json:"quantity"`
	OriginalPrice      string     `json:"original_price"`
	PriceAfterDiscount string     `json:"price_after_discount"`
	DiscountPerUnit    string     `json:"discount_per_unit"`
	LineDiscountTotal  string     `json:"line_discount_total"`
	LineTotal          string     `json:"line_total"`
	LineOriginalTotal  string     `json:"line_original_total"`
}

type orderResponse struct {
	ID            uuid.UUID           `json:"id"`
	OrderNumber   string              `json:"order_number"`
	UserID        uuid.UUID           `json:"user_id"`
	Status        string              `json:"status"`
	PaymentMethod string              `json:"payment_method"`
	FullName      string              `json:"full_name"`
	Phone         string              `json:"phone"`
	AnotherPhone  *string             `json:"another_phone"`
	AddressLine   string              `json:"address_line"`
	City          string              `json:"city"`
	Governorate   string              `json:"governorate"`
	Country       string              `json:"country"`
	Notes         *string             `json:"notes"`
	Items         []orderItemResponse `json:"items,omitempty"`
	SubTotal      string              `json:"sub_total"`
	DiscountTotal string              `json:"discount_total"`
	ShippingFee   string              `json:"shipping_fee"`
	FinalTotal    string              `json:"final_total"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

func toOrderResponse(o database.Order, items []database.OrderItem) orderResponse {
	resp := orderResponse{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		UserID:        o.UserID,
		Status:        o.Status,
		PaymentMethod: o.PaymentMethod,
		FullName:      o.FullName,
		Phone:         o.Phone,
		AddressLine:   o.AddressLine,
		City:          o.City,
		Governorate:   o.Governorate,
		Country:       o.Country,
		SubTotal:      database.NumericToDecimal(o.SubTotal).StringFixed(2),
		DiscountTotal: database.NumericToDecimal(o.DiscountTotal).StringFixed(2),
		ShippingFee:   database.NumericToDecimal(o.ShippingFee).StringFixed(2),
		FinalTotal:    database.NumericToDecimal(o.FinalTotal).StringFixed(2),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	if o.AnotherPhone.Valid {
		resp.AnotherPhone = &o.AnotherPhone.String
	}
	if o.Notes.Valid {
		resp.Notes = &o.Notes.String
	}
	for _, item := range items {
		i := orderItemResponse{
			Title:              item.Title,
			Color:              item.Color,
			Size:               item.Size,
			Quantity:           item.Quantity,
			OriginalPrice:      database.NumericToDecimal(item.OriginalPrice).StringFixed(2),
			PriceAfterDiscount: database.NumericToDecimal(item.PriceAfterDiscount).StringFixed(2),
			DiscountPerUnit:    database.NumericToDecimal(item.DiscountPerUnit).StringFixed(2),
			LineDiscountTotal:  database.NumericToDecimal(item.LineDiscountTotal).StringFixed(2),
			LineTotal:          database.NumericToDecimal(item.LineTotal).StringFixed(2),
			LineOriginalTotal:  database.NumericToDecimal(item.LineOriginalTotal).StringFixed(2),
		}
		if item.ProductID.Valid {
			pid := uuid.UUID(item.ProductID.Bytes)
			i.ProductID = &pid
		}
		if item.ImageUrl.Valid {
			i.ImageURL = &item.ImageUrl.String
		}
		resp.Items = append(resp.Items, i)
	}
	return resp
}

// --- Handlers ---

// Create commits the caller's cart and pending checkout into an order.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	// The body is optional; an empty one means cash on delivery.
	var req createOrderRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	result, err := h.orders.Create(r.Context(), claims.UserID, req.PaymentMethod)
	if err != nil {
		writeOrderError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(result.Order, result.Items))
}

// ListMine returns the caller's orders, newest first, without items.
func (h *OrderHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	orders, err := h.orders.ListMine(r.Context(), claims.UserID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toOrderResponse(o, nil))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns one order with its snapshot items.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	result, err := h.orders.Get(r.Context(), claims.UserID, claims.Role, id)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(result.Order, result.Items))
}

// Cancel cancels a pending order. Owners and admins only.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	order, err := h.orders.Cancel(r.Context(), claims.UserID, claims.Role, id)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order, nil))
}

// ListAll returns every order, optionally filtered with ?status=.
func (h *OrderHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeOrderError(w, err)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toOrderResponse(o, nil))
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateStatus moves an order along the fulfilment path. Setting "cancelled"
// goes through the cancellation rules instead of a blind overwrite.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	var req updateOrderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	var order database.Order
	if req.Status == enum.OrderStatusCancelled {
		order, err = h.orders.Cancel(r.Context(), claims.UserID, claims.Role, id)
	} else {
		order, err = h.orders.UpdateStatus(r.Context(), id, req.Status)
	}
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order, nil))
}

// Delete removes an order entirely.
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	if err := h.orders.Delete(r.Context(), id); err != nil {
		writeOrderError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeOrderError maps order service errors to HTTP statuses.
func writeOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrVariantNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidPaymentMethod),
		errors.Is(err, service.ErrInvalidStatus):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrCheckoutRequired),
		errors.Is(err, service.ErrInsufficientStock),
		errors.Is(err, service.ErrProductUnavailable),
		errors.Is(err, service.ErrUnsupportedGovernorate),
		errors.Is(err, service.ErrOrderNotCancellable):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
