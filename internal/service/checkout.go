package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/nilewear/api/internal/database"
	"github.com/nilewear/api/internal/pricing"
	"github.com/nilewear/api/internal/shipping"
)

// Errors returned by the checkout and order services.
var (
	ErrEmptyCart              = errors.New("cart is empty")
	ErrInvalidAddress         = errors.New("invalid shipping address")
	ErrUnsupportedGovernorate = errors.New("shipping is not available for this governorate")
	ErrProductUnavailable     = errors.New("a product in the cart is no longer available")
	ErrCheckoutNotFound       = errors.New("no pending checkout")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// CheckoutStore defines the DB methods needed to preview a checkout.
// Satisfied by *database.Queries (and its WithTx variant).
type CheckoutStore interface {
	GetCartByUser(ctx context.Context, userID uuid.UUID) (database.Cart, error)
	ListCartLines(ctx context.Context, cartID uuid.UUID) ([]database.CartLine, error)
	UpsertPendingCheckout(ctx context.Context, arg database.UpsertPendingCheckoutParams) (database.PendingCheckout, error)
	DeletePendingCheckoutItems(ctx context.Context, pendingCheckoutID uuid.UUID) error
	CreatePendingCheckoutItem(ctx context.Context, arg database.CreatePendingCheckoutItemParams) (database.PendingCheckoutItem, error)
	GetPendingCheckoutByUser(ctx context.Context, userID uuid.UUID) (database.PendingCheckout, error)
	ListPendingCheckoutItems(ctx context.Context, pendingCheckoutID uuid.UUID) ([]database.PendingCheckoutItem, error)
}

// NewCheckoutStore creates a CheckoutStore from a DBTX (pool or tx).
type NewCheckoutStore func(db database.DBTX) CheckoutStore

// ShippingAddress is the delivery destination captured at preview time.
type ShippingAddress struct {
	FullName     string
	Phone        string
	AnotherPhone string
	AddressLine  string
	City         string
	Governorate  string
	Country      string
	Notes        string
}

func (a *ShippingAddress) validate() error {
	switch {
	case a.FullName == "":
		return fmt.Errorf("%w: full_name is required", ErrInvalidAddress)
	case a.Phone == "":
		return fmt.Errorf("%w: phone is required", ErrInvalidAddress)
	case a.AddressLine == "":
		return fmt.Errorf("%w: address_line is required", ErrInvalidAddress)
	case a.City == "":
		return fmt.Errorf("%w: city is required", ErrInvalidAddress)
	case a.Governorate == "":
		return fmt.Errorf("%w: governorate is required", ErrInvalidAddress)
	}
	if !shipping.Valid(a.Governorate) {
		return ErrUnsupportedGovernorate
	}
	if a.Country == "" {
		a.Country = "Egypt"
	}
	return nil
}

// PreviewResult is the priced checkout snapshot returned to the client.
type PreviewResult struct {
	Checkout database.PendingCheckout
	Items    []database.PendingCheckoutItem
}

// CheckoutService prices the cart against an address and persists the result
// as the user's single pending checkout. Previewing does not touch inventory
// and does not reserve stock; availability is only enforced when the order is
// committed.
type CheckoutService struct {
	pool     TxBeginner
	store    CheckoutStore // pool-backed, for reads outside a preview
	newStore NewCheckoutStore
}

// NewCheckoutService creates a new CheckoutService.
func NewCheckoutService(pool TxBeginner, store CheckoutStore, newStore NewCheckoutStore) *CheckoutService {
	return &CheckoutService{pool: pool, store: store, newStore: newStore}
}

// Preview prices the user's cart against the given address and replaces their
// pending checkout snapshot. Each call supersedes the previous snapshot.
func (s *CheckoutService) Preview(ctx context.Context, userID uuid.UUID, addr ShippingAddress) (*PreviewResult, error) {
	if err := addr.validate(); err != nil {
		return nil, err
	}
	fee, _ := shipping.Fee(addr.Governorate)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	cart, err := store.GetCartByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEmptyCart
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}
	lines, err := store.ListCartLines(ctx, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("list cart lines: %w", err)
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	priced, itemParams, err := priceCartLines(lines)
	if err != nil {
		return nil, err
	}
	totals := pricing.Aggregate(priced, fee)

	checkout, err := store.UpsertPendingCheckout(ctx, database.UpsertPendingCheckoutParams{
		UserID:        userID,
		FullName:      addr.FullName,
		Phone:         addr.Phone,
		AnotherPhone:  textOrNull(addr.AnotherPhone),
		AddressLine:   addr.AddressLine,
		City:          addr.City,
		Governorate:   addr.Governorate,
		Country:       addr.Country,
		Notes:         textOrNull(addr.Notes),
		SubTotal:      database.DecimalToNumeric(totals.SubTotal),
		DiscountTotal: database.DecimalToNumeric(totals.DiscountTotal),
		ShippingFee:   database.DecimalToNumeric(totals.ShippingFee),
		FinalTotal:    database.DecimalToNumeric(totals.FinalTotal),
	})
	if err != nil {
		return nil, fmt.Errorf("upsert pending checkout: %w", err)
	}

	// Replace item rows wholesale; stale lines from an earlier preview must
	// not survive.
	if err := store.DeletePendingCheckoutItems(ctx, checkout.ID); err != nil {
		return nil, fmt.Errorf("delete pending checkout items: %w", err)
	}

	var items []database.PendingCheckoutItem
	for i := range itemParams {
		itemParams[i].PendingCheckoutID = checkout.ID
		item, err := store.CreatePendingCheckoutItem(ctx, itemParams[i])
		if err != nil {
			return nil, fmt.Errorf("create pending checkout item: %w", err)
		}
		items = append(items, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &PreviewResult{Checkout: checkout, Items: items}, nil
}

// Current returns the user's pending checkout snapshot as last previewed.
func (s *CheckoutService) Current(ctx context.Context, userID uuid.UUID) (*PreviewResult, error) {
	checkout, err := s.store.GetPendingCheckoutByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCheckoutNotFound
		}
		return nil, fmt.Errorf("get pending checkout: %w", err)
	}
	items, err := s.store.ListPendingCheckoutItems(ctx, checkout.ID)
	if err != nil {
		return nil, fmt.Errorf("list pending checkout items: %w", err)
	}
	return &PreviewResult{Checkout: checkout, Items: items}, nil
}

// priceCartLines runs the pricing rules over raw cart lines and prepares the
// snapshot item rows. An inactive product anywhere in the cart aborts.
func priceCartLines(lines []database.CartLine) ([]pricing.Line, []database.CreatePendingCheckoutItemParams, error) {
	var (
		priced []pricing.Line
		params []database.CreatePendingCheckoutItemParams
	)
	for _, l := range lines {
		if !l.ProductActive {
			return nil, nil, fmt.Errorf("%w: %s", ErrProductUnavailable, l.Title)
		}
		original := database.NumericToDecimal(l.OriginalPrice)
		line := pricing.PriceLine(original, discountOf(l.DiscountType, l.DiscountAmount), l.Item.Quantity)
		priced = append(priced, line)
		params = append(params, database.CreatePendingCheckoutItemParams{
			ProductID:          l.Item.ProductID,
			Quantity:           l.Item.Quantity,
			Color:              l.Item.Color,
			Size:               l.Item.Size,
			Title:              l.Title,
			ImageUrl:           l.ImageUrl,
			OriginalPrice:      database.DecimalToNumeric(original),
			PriceAfterDiscount: database.DecimalToNumeric(line.PriceAfterDiscount),
			DiscountPerUnit:    database.DecimalToNumeric(line.DiscountPerUnit),
			LineDiscountTotal:  database.DecimalToNumeric(line.LineDiscountTotal),
			LineTotal:          database.DecimalToNumeric(line.LineTotal),
		})
	}
	return priced, params, nil
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
