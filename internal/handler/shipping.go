package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nilewear/api/internal/shipping"
)

// ShippingHandler exposes the flat-fee shipping table.
type ShippingHandler struct{}

// NewShippingHandler creates a new ShippingHandler.
func NewShippingHandler() *ShippingHandler {
	return &ShippingHandler{}
}

// RegisterRoutes registers shipping endpoints on the given Chi router.
func (h *ShippingHandler) RegisterRoutes(r chi.Router) {
	r.Get("/shipping/governorates", h.List)
}

type governorateResponse struct {
	Governorate string `json:"governorate"`
	Fee         string `json:"fee"`
}

// List returns every governorate the store ships to and its flat fee.
func (h *ShippingHandler) List(w http.ResponseWriter, r *http.Request) {
	names := shipping.Governorates()
	resp := make([]governorateResponse, 0, len(names))
	for _, name := range names {
		fee, _ := shipping.Fee(name)
		resp = append(resp, governorateResponse{
			Governorate: name,
			Fee:         fee.StringFixed(2),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
