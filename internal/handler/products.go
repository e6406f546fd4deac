package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/nilewear/api/internal/database"
	"github.com/nilewear/api/internal/enum"
)

// ProductStore defines the database methods needed by product handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ProductStore interface {
	ListProducts(ctx context.Context) ([]database.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error)
	CreateProduct(ctx context.Context, arg database.CreateProductParams) (database.Product, error)
	UpdateProduct(ctx context.Context, arg database.UpdateProductParams) (database.Product, error)
	SoftDeleteProduct(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	ListVariantsByProduct(ctx context.Context, productID uuid.UUID) ([]database.ProductVariant, error)
	UpsertVariant(ctx context.Context, arg database.UpsertVariantParams) (database.ProductVariant, error)
	DeleteVariant(ctx context.Context, id uuid.UUID) error
}

// ProductHandler handles catalog endpoints.
type ProductHandler struct {
	store ProductStore
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(store ProductStore) *ProductHandler {
	return &ProductHandler{store: store}
}

// RegisterPublicRoutes registers the read-only catalog endpoints.
func (h *ProductHandler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/products", h.List)
	r.Get("/products/{id}", h.Get)
}

// RegisterAdminRoutes registers catalog management endpoints. Mount behind
// admin-only middleware.
func (h *ProductHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/products", h.Create)
	r.Put("/products/{id}", h.Update)
	r.Delete("/products/{id}", h.Delete)
	r.Put("/products/{id}/variants", h.UpsertVariant)
	r.Delete("/products/{id}/variants/{variantID}", h.DeleteVariant)
}

// --- Request / Response types ---

type productRequest struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	OriginalPrice  string `json:"original_price"`
	DiscountType   string `json:"discount_type"`
	DiscountAmount string `json:"discount_amount"`
	ImageURL       string `json:"image_url"`
}

type upsertVariantRequest struct {
	Color    string `json:"color"`
	Size     string `json:"size"`
	Quantity int32  `json:"quantity"`
}

type variantResponse struct {
	ID       uuid.UUID `json:"id"`
	Color    string    `json:"color"`
	Size     string    `json:"size"`
	Quantity int32     `json:"quantity"`
}

type productResponse struct {
	ID             uuid.UUID         `json:"id"`
	Title          string            `json:"title"`
	Description    *string           `json:"description"`
	OriginalPrice  string            `json:"original_price"`
	DiscountType   *string           `json:"discount_type"`
	DiscountAmount *string           `json:"discount_amount"`
	Price          string            `json:"price"`
	ImageURL       *string           `json:"image_url"`
	Variants       []variantResponse `json:"variants,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

func toProductResponse(p database.Product, variants []database.ProductVariant) productResponse {
	resp := productResponse{
		ID:        p.ID,
		Title:     p.Title,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}

	original := database.NumericToDecimal(p.OriginalPrice)
	resp.OriginalPrice = original.StringFixed(2)
	// price is what one unit costs right now, discount applied.
	resp.Price = original.StringFixed(2)
	if p.DiscountType.Valid && p.DiscountAmount.Valid {
		resp.DiscountType = &p.DiscountType.String
		amount := database.NumericToDecimal(p.DiscountAmount)
		amountStr := amount.StringFixed(2)
		resp.DiscountAmount = &amountStr

		perUnit := amount
		if p.DiscountType.String == enum.DiscountTypePercentage {
			perUnit = original.Mul(amount).Div(decimal.NewFromInt(100))
		}
		if perUnit.GreaterThan(original) {
			perUnit = original
		}
		resp.Price = original.Sub(perUnit).Round(2).StringFixed(2)
	}

	if p.Description.Valid {
		resp.Description = &p.Description.String
	}
	if p.ImageUrl.Valid {
		resp.ImageURL = &p.ImageUrl.String
	}
	for _, v := range variants {
		resp.Variants = append(resp.Variants, variantResponse{
			ID:       v.ID,
			Color:    v.Color,
			Size:     v.Size,
			Quantity: v.Quantity,
		})
	}
	return resp
}

// --- Handlers ---

// List returns the active catalog.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.store.ListProducts(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]productResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, toProductResponse(p, nil))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single product with its variants and per-variant stock.
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product id"})
		return
	}

	product, err := h.store.GetProduct(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	variants, err := h.store.ListVariantsByProduct(r.Context(), product.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toProductResponse(product, variants))
}

// Create adds a product to the catalog.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	params, errMsg := req.toParams()
	if errMsg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errMsg})
		return
	}

	product, err := h.store.CreateProduct(r.Context(), database.CreateProductParams{
		Title:          params.Title,
		Description:    params.Description,
		OriginalPrice:  params.OriginalPrice,
		DiscountType:   params.DiscountType,
		DiscountAmount: params.DiscountAmount,
		ImageUrl:       params.ImageUrl,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toProductResponse(product, nil))
}

// Update replaces a product's catalog fields.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product id"})
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	params, errMsg := req.toParams()
	if errMsg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errMsg})
		return
	}
	params.ID = id

	product, err := h.store.UpdateProduct(r.Context(), params)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toProductResponse(product, nil))
}

// Delete soft-deletes a product. Order snapshots keep referencing it; the
// catalog just stops showing it.
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product id"})
		return
	}

	if _, err := h.store.SoftDeleteProduct(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UpsertVariant creates a (color, size) variant or overwrites its stock
// level.
func (h *ProductHandler) UpsertVariant(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product id"})
		return
	}

	var req upsertVariantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Color == "" || req.Size == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "color and size are required"})
		return
	}
	if req.Quantity < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "quantity must be >= 0"})
		return
	}

	if _, err := h.store.GetProduct(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	variant, err := h.store.UpsertVariant(r.Context(), database.UpsertVariantParams{
		ProductID: id,
		Color:     req.Color,
		Size:      req.Size,
		Quantity:  req.Quantity,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, variantResponse{
		ID:       variant.ID,
		Color:    variant.Color,
		Size:     variant.Size,
		Quantity: variant.Quantity,
	})
}

// DeleteVariant removes a variant entirely.
func (h *ProductHandler) DeleteVariant(w http.ResponseWriter, r *http.Request) {
	variantID, err := uuid.Parse(chi.URLParam(r, "variantID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid variant id"})
		return
	}

	if err := h.store.DeleteVariant(r.Context(), variantID); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

// toParams validates the request and converts it to update params. The
// returned string is an error message for the client, empty on success.
func (req *productRequest) toParams() (database.UpdateProductParams, string) {
	var params database.UpdateProductParams

	if req.Title == "" {
		return params, "title is required"
	}
	if req.OriginalPrice == "" {
		return params, "original_price is required"
	}
	price, err := decimal.NewFromString(req.OriginalPrice)
	if err != nil || price.IsNegative() {
		return params, "invalid original_price"
	}

	params.Title = req.Title
	params.OriginalPrice = database.DecimalToNumeric(price)
	if req.Description != "" {
		params.Description = pgtype.Text{String: req.Description, Valid: true}
	}
	if req.ImageURL != "" {
		params.ImageUrl = pgtype.Text{String: req.ImageURL, Valid: true}
	}

	// Discount fields come and go together.
	if (req.DiscountType == "") != (req.DiscountAmount == "") {
		return params, "discount_type and discount_amount must be set together"
	}
	if req.DiscountType != "" {
		if !enum.IsDiscountType(req.DiscountType) {
			return params, "invalid discount_type"
		}
		amount, err := decimal.NewFromString(req.DiscountAmount)
		if err != nil || amount.IsNegative() {
			return params, "invalid discount_amount"
		}
		params.DiscountType = pgtype.Text{String: req.DiscountType, Valid: true}
		params.DiscountAmount = database.DecimalToNumeric(amount)
	}

	return params, ""
}
