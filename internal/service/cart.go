package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nilewear/api/internal/cache"
	"github.com/nilewear/api/internal/database"
	"github.com/nilewear/api/internal/pricing"
)

// A single cart line never holds more than this many units.
const maxLineQuantity = 8

// Errors returned by the cart service.
var (
	ErrInvalidQuantity     = errors.New("quantity must be > 0")
	ErrProductNotFound     = errors.New("product not found")
	ErrVariantNotFound     = errors.New("selected color/size is not available")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrQuantityCapExceeded = fmt.Errorf("no more than %d pieces of a product per cart", maxLineQuantity)
	ErrCartNotFound        = errors.New("cart not found")
	ErrCartItemNotFound    = errors.New("item not found in cart")
)

// CartStore defines the DB methods needed by the cart service.
// Satisfied by *database.Queries; narrow interface for testability.
type CartStore interface {
	GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error)
	GetVariant(ctx context.Context, arg database.GetVariantParams) (database.ProductVariant, error)
	GetCartByUser(ctx context.Context, userID uuid.UUID) (database.Cart, error)
	CreateCart(ctx context.Context, userID uuid.UUID) (database.Cart, error)
	GetCartItem(ctx context.Context, arg database.GetCartItemParams) (database.CartItem, error)
	CreateCartItem(ctx context.Context, arg database.CreateCartItemParams) (database.CartItem, error)
	UpdateCartItemQuantity(ctx context.Context, arg database.UpdateCartItemQuantityParams) (database.CartItem, error)
	DeleteCartItem(ctx context.Context, id uuid.UUID) error
	CountCartItems(ctx context.Context, cartID uuid.UUID) (int64, error)
	DeleteCart(ctx context.Context, id uuid.UUID) error
	ListCartLines(ctx context.Context, cartID uuid.UUID) ([]database.CartLine, error)
}

// CartService owns per-user mutable line items. Stock and the quantity cap
// are checked at mutation time only; a cart is never re-validated while it
// sits idle, so its lines can go stale until preview or commit re-checks
// them.
type CartService struct {
	store CartStore
	cache cache.CartCache // optional, nil disables caching
}

// NewCartService creates a new CartService. cartCache may be nil.
func NewCartService(store CartStore, cartCache cache.CartCache) *CartService {
	return &CartService{store: store, cache: cartCache}
}

// CartView is a cart rendered with current product pricing. This is live
// pricing, not a snapshot: what the cart displays and what an order finally
// charges are reconciled only at preview/commit time.
type CartView struct {
	Items    []CartViewItem `json:"items"`
	SubTotal string         `json:"sub_total"`
}

type CartViewItem struct {
	ProductID          uuid.UUID `json:"product_id"`
	Title              string    `json:"title"`
	ImageURL           string    `json:"image_url,omitempty"`
	Color              string    `json:"color"`
	Size               string    `json:"size"`
	Quantity           int32     `json:"quantity"`
	OriginalPrice      string    `json:"original_price"`
	PriceAfterDiscount string    `json:"price_after_discount"`
	LineTotal          string    `json:"line_total"`
	Unavailable        bool      `json:"unavailable,omitempty"`
}

// AddItem adds quantity units of a product variant to the user's cart,
// creating the cart on first use. A line is identified by (product, color,
// size); adding the same combination again merges quantities.
func (s *CartService) AddItem(ctx context.Context, userID, productID uuid.UUID, color, size string, quantity int32) (*CartView, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	if _, err := s.store.GetProduct(ctx, productID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	variant, err := s.store.GetVariant(ctx, database.GetVariantParams{
		ProductID: productID,
		Color:     color,
		Size:      size,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVariantNotFound
		}
		return nil, fmt.Errorf("get variant: %w", err)
	}

	cart, err := s.store.GetCartByUser(ctx, userID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get cart: %w", err)
		}
		cart, err = s.store.CreateCart(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("create cart: %w", err)
		}
	}

	var existingQty int32
	existing, err := s.store.GetCartItem(ctx, database.GetCartItemParams{
		CartID:    cart.ID,
		ProductID: productID,
		Color:     color,
		Size:      size,
	})
	switch {
	case err == nil:
		existingQty = existing.Quantity
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return nil, fmt.Errorf("get cart item: %w", err)
	}

	merged := existingQty + quantity
	if merged > maxLineQuantity {
		return nil, ErrQuantityCapExceeded
	}
	if merged > variant.Quantity {
		return nil, ErrInsufficientStock
	}

	if existingQty > 0 {
		_, err = s.store.UpdateCartItemQuantity(ctx, database.UpdateCartItemQuantityParams{
			ID:       existing.ID,
			Quantity: merged,
		})
	} else {
		_, err = s.store.CreateCartItem(ctx, database.CreateCartItemParams{
			CartID:    cart.ID,
			ProductID: productID,
			Color:     color,
			Size:      size,
			Quantity:  quantity,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("write cart item: %w", err)
	}

	s.invalidate(ctx, userID)
	return s.View(ctx, userID)
}

// UpdateItemQuantity sets a line to an absolute quantity. Zero removes the
// line; removing the last line deletes the cart record entirely.
func (s *CartService) UpdateItemQuantity(ctx context.Context, userID, productID uuid.UUID, color, size string, quantity int32) (*CartView, error) {
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}

	cart, err := s.store.GetCartByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}

	item, err := s.store.GetCartItem(ctx, database.GetCartItemParams{
		CartID:    cart.ID,
		ProductID: productID,
		Color:     color,
		Size:      size,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCartItemNotFound
		}
		return nil, fmt.Errorf("get cart item: %w", err)
	}

	if quantity == 0 {
		if err := s.removeItem(ctx, cart, item); err != nil {
			return nil, err
		}
		s.invalidate(ctx, userID)
		return s.View(ctx, userID)
	}

	if quantity > maxLineQuantity {
		return nil, ErrQuantityCapExceeded
	}

	variant, err := s.store.GetVariant(ctx, database.GetVariantParams{
		ProductID: productID,
		Color:     color,
		Size:      size,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVariantNotFound
		}
		return nil, fmt.Errorf("get variant: %w", err)
	}
	if quantity > variant.Quantity {
		return nil, ErrInsufficientStock
	}

	if _, err := s.store.UpdateCartItemQuantity(ctx, database.UpdateCartItemQuantityParams{
		ID:       item.ID,
		Quantity: quantity,
	}); err != nil {
		return nil, fmt.Errorf("update cart item: %w", err)
	}

	s.invalidate(ctx, userID)
	return s.View(ctx, userID)
}

// RemoveItem deletes a line from the cart. Removing the last line deletes
// the cart record.
func (s *CartService) RemoveItem(ctx context.Context, userID, productID uuid.UUID, color, size string) (*CartView, error) {
	cart, err := s.store.GetCartByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}

	item, err := s.store.GetCartItem(ctx, database.GetCartItemParams{
		CartID:    cart.ID,
		ProductID: productID,
		Color:     color,
		Size:      size,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCartItemNotFound
		}
		return nil, fmt.Errorf("get cart item: %w", err)
	}

	if err := s.removeItem(ctx, cart, item); err != nil {
		return nil, err
	}

	s.invalidate(ctx, userID)
	return s.View(ctx, userID)
}

// Clear deletes the user's cart and all its lines.
func (s *CartService) Clear(ctx context.Context, userID uuid.UUID) error {
	cart, err := s.store.GetCartByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCartNotFound
		}
		return fmt.Errorf("get cart: %w", err)
	}
	if err := s.store.DeleteCart(ctx, cart.ID); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	s.invalidate(ctx, userID)
	return nil
}

// View renders the cart with current product pricing. A missing cart is an
// empty view, not an error.
func (s *CartService) View(ctx context.Context, userID uuid.UUID) (*CartView, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, userID.String()); err == nil {
			var view CartView
			if err := json.Unmarshal(raw, &view); err == nil {
				return &view, nil
			}
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("cart cache get: %v", err)
		}
	}

	view, err := s.buildView(ctx, userID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(view); err == nil {
			if err := s.cache.Set(ctx, userID.String(), raw); err != nil {
				log.Printf("cart cache set: %v", err)
			}
		}
	}
	return view, nil
}

func (s *CartService) buildView(ctx context.Context, userID uuid.UUID) (*CartView, error) {
	view := &CartView{Items: []CartViewItem{}, SubTotal: "0.00"}

	cart, err := s.store.GetCartByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return view, nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}

	lines, err := s.store.ListCartLines(ctx, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("list cart lines: %w", err)
	}

	var priced []pricing.Line
	for _, l := range lines {
		item := CartViewItem{
			ProductID: l.Item.ProductID,
			Title:     l.Title,
			Color:     l.Item.Color,
			Size:      l.Item.Size,
			Quantity:  l.Item.Quantity,
		}
		if l.ImageUrl.Valid {
			item.ImageURL = l.ImageUrl.String
		}

		if !l.ProductActive {
			item.Unavailable = true
			item.OriginalPrice = "0.00"
			item.PriceAfterDiscount = "0.00"
			item.LineTotal = "0.00"
			view.Items = append(view.Items, item)
			continue
		}

		original := database.NumericToDecimal(l.OriginalPrice)
		line := pricing.PriceLine(original, discountOf(l.DiscountType, l.DiscountAmount), l.Item.Quantity)
		priced = append(priced, line)

		item.OriginalPrice = original.StringFixed(2)
		item.PriceAfterDiscount = line.PriceAfterDiscount.StringFixed(2)
		item.LineTotal = line.LineTotal.StringFixed(2)
		view.Items = append(view.Items, item)
	}

	totals := pricing.Aggregate(priced, decimalZero)
	view.SubTotal = totals.SubTotal.Sub(totals.DiscountTotal).StringFixed(2)
	return view, nil
}

func (s *CartService) removeItem(ctx context.Context, cart database.Cart, item database.CartItem) error {
	if err := s.store.DeleteCartItem(ctx, item.ID); err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	count, err := s.store.CountCartItems(ctx, cart.ID)
	if err != nil {
		return fmt.Errorf("count cart items: %w", err)
	}
	// No empty-cart records persist.
	if count == 0 {
		if err := s.store.DeleteCart(ctx, cart.ID); err != nil {
			return fmt.Errorf("delete cart: %w", err)
		}
	}
	return nil
}

func (s *CartService) invalidate(ctx context.Context, userID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, userID.String()); err != nil {
		log.Printf("cart cache delete: %v", err)
	}
}
