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
	"github.com/nilewear/api/internal/middleware"
	"github.com/nilewear/api/internal/service"
)

// CheckoutServicer defines the service methods needed by checkout handlers.
// Satisfied by *service.CheckoutService; narrow interface for testability.
type CheckoutServicer interface {
	Preview(ctx context.Context, userID uuid.UUID, addr service.ShippingAddress) (*service.PreviewResult, error)
	Current(ctx context.Context, userID uuid.UUID) (*service.PreviewResult, error)
}

// CheckoutHandler exposes the checkout preview step.
type CheckoutHandler struct {
	checkouts CheckoutServicer
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(checkouts CheckoutServicer) *CheckoutHandler {
	return &CheckoutHandler{checkouts: checkouts}
}

// RegisterRoutes registers checkout endpoints on the given Chi router.
func (h *CheckoutHandler) RegisterRoutes(r chi.Router) {
	r.Post("/checkout/preview", h.Preview)
	r.Get("/checkout", h.Current)
}

// --- Request / Response types ---

type previewRequest struct {
	FullName     string `json:"full_name"`
	Phone        string `json:"phone"`
	AnotherPhone string `json:"another_phone"`
	AddressLine  string `json:"address_line"`
	City         string `json:"city"`
	Governorate  string `json:"governorate"`
	Country      string `json:"country"`
	Notes        string `json:"notes"`
}

type previewItemResponse struct {
	ProductID          uuid.UUID `json:"product_id"`
	Title              string    `json:"title"`
	ImageURL           *string   `json:"image_url"`
	Color              string    `json:"color"`
	Size               string    `json:"size"`
	Quantity           int32     `json:"quantity"`
	OriginalPrice      string    `json:"original_price"`
	PriceAfterDiscount string    `json:"price_after_discount"`
	DiscountPerUnit    string    `json:"discount_per_unit"`
	LineDiscountTotal  string    `json:"line_discount_total"`
	LineTotal          string    `json:"line_total"`
}

type previewResponse struct {
	FullName      string                `json:"full_name"`
	Phone         string                `json:"phone"`
	AnotherPhone  *string               `json:"another_phone"`
	AddressLine   string                `json:"address_line"`
	City          string                `json:"city"`
	Governorate   string                `json:"governorate"`
	Country       string                `json:"country"`
	Notes         *string               `json:"notes"`
	Items         []previewItemResponse `json:"items"`
	SubTotal      string                `json:"sub_total"`
	DiscountTotal string                `json:"discount_total"`
	ShippingFee   string                `json:"shipping_fee"`
	FinalTotal    string                `json:"final_total"`
	CreatedAt     time.Time             `json:"created_at"`
}

func toPreviewResponse(result *service.PreviewResult) previewResponse {
	c := result.Checkout
	resp := previewResponse{
		FullName:      c.FullName,
		Phone:         c.Phone,
		AddressLine:   c.AddressLine,
		City:          c.City,
		Governorate:   c.Governorate,
		Country:       c.Country,
		SubTotal:      database.NumericToDecimal(c.SubTotal).StringFixed(2),
		DiscountTotal: database.NumericToDecimal(c.DiscountTotal).StringFixed(2),
		ShippingFee:   database.NumericToDecimal(c.ShippingFee).StringFixed(2),
		FinalTotal:    database.NumericToDecimal(c.FinalTotal).StringFixed(2),
		CreatedAt:     c.CreatedAt,
	}
	if c.AnotherPhone.Valid {
		resp.AnotherPhone = &c.AnotherPhone.String
	}
	if c.Notes.Valid {
		resp.Notes = &c.Notes.String
	}
	resp.Items = make([]previewItemResponse, 0, len(result.Items))
	for _, item := range result.Items {
		i := previewItemResponse{
			ProductID:          item.ProductID,
			Title:              item.Title,
			Color:              item.Color,
			Size:               item.Size,
			Quantity:           item.Quantity,
			OriginalPrice:      database.NumericToDecimal(item.OriginalPrice).StringFixed(2),
			PriceAfterDiscount: database.NumericToDecimal(item.PriceAfterDiscount).StringFixed(2),
			DiscountPerUnit:    database.NumericToDecimal(item.DiscountPerUnit).StringFixed(2),
			LineDiscountTotal:  database.NumericToDecimal(item.LineDiscountTotal).StringFixed(2),
			LineTotal:          database.NumericToDecimal(item.LineTotal).StringFixed(2),
		}
		if item.ImageUrl.Valid {
			i.ImageURL = &item.ImageUrl.String
		}
		resp.Items = append(resp.Items, i)
	}
	return resp
}

// --- Handlers ---

// Preview prices the caller's cart against a shipping address and stores the
// result as their pending checkout.
func (h *CheckoutHandler) Preview(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.checkouts.Preview(r.Context(), claims.UserID, service.ShippingAddress{
		FullName:     req.FullName,
		Phone:        req.Phone,
		AnotherPhone: req.AnotherPhone,
		AddressLine:  req.AddressLine,
		City:         req.City,
		Governorate:  req.Governorate,
		Country:      req.Country,
		Notes:        req.Notes,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidAddress),
			errors.Is(err, service.ErrUnsupportedGovernorate):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrEmptyCart):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrProductUnavailable):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, toPreviewResponse(result))
}

// Current returns the caller's pending checkout as last previewed.
func (h *CheckoutHandler) Current(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	result, err := h.checkouts.Current(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrCheckoutNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toPreviewResponse(result))
}
