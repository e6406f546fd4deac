package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/nilewear/api/internal/cache"
	"github.com/nilewear/api/internal/database"
	"github.com/nilewear/api/internal/enum"
	"github.com/nilewear/api/internal/pricing"
	"github.com/nilewear/api/internal/shipping"
)

// orderNumberCounter names the row in the counters table that order numbers
// are allocated from.
const orderNumberCounter = "orders"

// Errors returned by the order service.
var (
	ErrCheckoutRequired     = errors.New("checkout preview is required before placing an order")
	ErrInvalidPaymentMethod = errors.New("invalid payment_method")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrOrderNotFound        = errors.New("order not found")
	ErrOrderNotCancellable  = errors.New("only pending orders can be cancelled")
)

// OrderStore defines the DB methods needed by the order service.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	NextCounterValue(ctx context.Context, name string) (int64, error)
	GetCartByUser(ctx context.Context, userID uuid.UUID) (database.Cart, error)
	ListCartLines(ctx context.Context, cartID uuid.UUID) ([]database.CartLine, error)
	GetPendingCheckoutByUser(ctx context.Context, userID uuid.UUID) (database.PendingCheckout, error)
	GetVariant(ctx context.Context, arg database.GetVariantParams) (database.ProductVariant, error)
	DecrementVariantStock(ctx context.Context, arg database.DecrementVariantStockParams) (database.ProductVariant, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	DeleteCart(ctx context.Context, id uuid.UUID) error
	DeletePendingCheckoutByUser(ctx context.Context, userID uuid.UUID) error
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	ListOrders(ctx context.Context) ([]database.Order, error)
	ListOrdersByUser(ctx context.Context, userID uuid.UUID) ([]database.Order, error)
	ListOrdersByStatus(ctx context.Context, status string) ([]database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	CancelOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) error
	ListAdmins(ctx context.Context) ([]database.User, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// Notifier delivers a notification to a user. Implementations persist and
// push; delivery failures never fail the calling operation.
type Notifier interface {
	Notify(ctx context.Context, recipientID uuid.UUID, title, message string, orderID uuid.UUID)
}

// OrderResult is a full order with its snapshot items.
type OrderResult struct {
	Order database.Order
	Items []database.OrderItem
}

// OrderService commits carts into immutable orders and manages their
// lifecycle afterwards.
type OrderService struct {
	pool     TxBeginner
	store    OrderStore // pool-backed, for reads and counter allocation
	newStore NewOrderStore
	notifier Notifier        // optional, nil disables notifications
	cache    cache.CartCache // optional, nil disables cart cache invalidation
}

// NewOrderService creates a new OrderService. notifier and cartCache may be
// nil.
func NewOrderService(pool TxBeginner, store OrderStore, newStore NewOrderStore, notifier Notifier, cartCache cache.CartCache) *OrderService {
	return &OrderService{pool: pool, store: store, newStore: newStore, notifier: notifier, cache: cartCache}
}

// Create turns the user's cart plus their pending checkout into an order.
//
// The order number is allocated before the transaction opens, so an attempt
// that fails afterwards still consumes its number. Numbers are strictly
// increasing but not dense; a gap means a failed attempt, never a reused or
// reordered number. Everything after allocation, repricing, the per-variant
// stock decrements, the order insert and the cart/checkout cleanup, happens
// in one transaction: an order either fully exists with its stock taken, or
// not at all.
func (s *OrderService) Create(ctx context.Context, userID uuid.UUID, paymentMethod string) (*OrderResult, error) {
	if paymentMethod == "" {
		paymentMethod = enum.PaymentMethodCash
	}
	if !enum.IsPaymentMethod(paymentMethod) {
		return nil, ErrInvalidPaymentMethod
	}

	checkout, err := s.store.GetPendingCheckoutByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCheckoutRequired
		}
		return nil, fmt.Errorf("get pending checkout: %w", err)
	}

	cart, err := s.store.GetCartByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEmptyCart
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}
	lines, err := s.store.ListCartLines(ctx, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("list cart lines: %w", err)
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	fee, ok := shipping.Fee(checkout.Governorate)
	if !ok {
		return nil, ErrUnsupportedGovernorate
	}

	number, err := s.store.NextCounterValue(ctx, orderNumberCounter)
	if err != nil {
		return nil, fmt.Errorf("allocate order number: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// Reprice from the live catalog. The pending checkout's totals are a
	// preview; what the customer is charged is what holds at commit time.
	var (
		priced     []pricing.Line
		itemParams []database.CreateOrderItemParams
	)
	for _, l := range lines {
		if !l.ProductActive {
			return nil, fmt.Errorf("%w: %s", ErrProductUnavailable, l.Title)
		}

		// Resolve the variant before decrementing, so a selector that no
		// longer exists is reported as missing rather than as a stock
		// conflict. The decrement's WHERE still guards against races.
		if _, err := store.GetVariant(ctx, database.GetVariantParams{
			ProductID: l.Item.ProductID,
			Color:     l.Item.Color,
			Size:      l.Item.Size,
		}); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("%w: %s (%s/%s)", ErrVariantNotFound, l.Title, l.Item.Color, l.Item.Size)
			}
			return nil, fmt.Errorf("get variant: %w", err)
		}

		if _, err := store.DecrementVariantStock(ctx, database.DecrementVariantStockParams{
			ProductID: l.Item.ProductID,
			Color:     l.Item.Color,
			Size:      l.Item.Size,
			Quantity:  l.Item.Quantity,
		}); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("%w: %s (%s/%s)", ErrInsufficientStock, l.Title, l.Item.Color, l.Item.Size)
			}
			return nil, fmt.Errorf("decrement stock: %w", err)
		}

		original := database.NumericToDecimal(l.OriginalPrice)
		line := pricing.PriceLine(original, discountOf(l.DiscountType, l.DiscountAmount), l.Item.Quantity)
		priced = append(priced, line)
		itemParams = append(itemParams, database.CreateOrderItemParams{
			ProductID:          pgtype.UUID{Bytes: l.Item.ProductID, Valid: true},
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
			LineOriginalTotal:  database.DecimalToNumeric(line.LineOriginalTotal),
		})
	}
	totals := pricing.Aggregate(priced, fee)

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		OrderNumber:   formatOrderNumber(number),
		UserID:        userID,
		SubTotal:      database.DecimalToNumeric(totals.SubTotal),
		DiscountTotal: database.DecimalToNumeric(totals.DiscountTotal),
		ShippingFee:   database.DecimalToNumeric(totals.ShippingFee),
		FinalTotal:    database.DecimalToNumeric(totals.FinalTotal),
		PaymentMethod: paymentMethod,
		FullName:      checkout.FullName,
		Phone:         checkout.Phone,
		AnotherPhone:  checkout.AnotherPhone,
		AddressLine:   checkout.AddressLine,
		City:          checkout.City,
		Governorate:   checkout.Governorate,
		Country:       checkout.Country,
		Notes:         checkout.Notes,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	var items []database.OrderItem
	for i := range itemParams {
		itemParams[i].OrderID = order.ID
		item, err := store.CreateOrderItem(ctx, itemParams[i])
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		items = append(items, item)
	}

	if err := store.DeleteCart(ctx, cart.ID); err != nil {
		return nil, fmt.Errorf("delete cart: %w", err)
	}
	if err := store.DeletePendingCheckoutByUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("delete pending checkout: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	if s.cache != nil {
		_ = s.cache.Delete(ctx, userID.String())
	}
	s.notifyAdmins(ctx, order, fmt.Sprintf("New order %s from %s (%s EGP)",
		order.OrderNumber, order.FullName, database.NumericToDecimal(order.FinalTotal).StringFixed(2)))

	return &OrderResult{Order: order, Items: items}, nil
}

// Get returns an order with its items. Customers only see their own orders;
// someone else's order looks like a missing one.
func (s *OrderService) Get(ctx context.Context, actorID uuid.UUID, actorRole string, orderID uuid.UUID) (*OrderResult, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if actorRole != enum.UserRoleAdmin && order.UserID != actorID {
		return nil, ErrOrderNotFound
	}
	items, err := s.store.ListOrderItemsByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	return &OrderResult{Order: order, Items: items}, nil
}

// ListMine returns the user's orders, newest first.
func (s *OrderService) ListMine(ctx context.Context, userID uuid.UUID) ([]database.Order, error) {
	return s.store.ListOrdersByUser(ctx, userID)
}

// List returns all orders, optionally filtered by status. Admin only; the
// handler enforces that.
func (s *OrderService) List(ctx context.Context, status string) ([]database.Order, error) {
	if status == "" {
		return s.store.ListOrders(ctx)
	}
	if !enum.IsOrderStatus(status) {
		return nil, ErrInvalidStatus
	}
	return s.store.ListOrdersByStatus(ctx, status)
}

// UpdateStatus sets an order to any non-cancelled status and notifies its
// owner. An admin may move an order backwards, including back to pending.
// Cancellation goes through Cancel, which enforces the pending-only rule;
// this method rejects it.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, status string) (database.Order, error) {
	switch status {
	case enum.OrderStatusPending, enum.OrderStatusConfirmed, enum.OrderStatusShipped, enum.OrderStatusDelivered:
	default:
		return database.Order{}, ErrInvalidStatus
	}

	order, err := s.store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:     orderID,
		Status: status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("update order status: %w", err)
	}

	s.notify(ctx, order.UserID, order,
		fmt.Sprintf("Your order %s is now %s", order.OrderNumber, order.Status))
	return order, nil
}

// Cancel flips a pending order to cancelled and notifies the owner and every
// admin, whoever asked for it. The owner or an admin may do it; once an order
// leaves pending it can no longer be cancelled. Stock taken by the order is
// not returned.
func (s *OrderService) Cancel(ctx context.Context, actorID uuid.UUID, actorRole string, orderID uuid.UUID) (database.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}
	isAdmin := actorRole == enum.UserRoleAdmin
	if !isAdmin && order.UserID != actorID {
		return database.Order{}, ErrOrderNotFound
	}

	cancelled, err := s.store.CancelOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// The order exists but left pending in the meantime.
			return database.Order{}, ErrOrderNotCancellable
		}
		return database.Order{}, fmt.Errorf("cancel order: %w", err)
	}

	s.notify(ctx, cancelled.UserID, cancelled,
		fmt.Sprintf("Your order %s was cancelled", cancelled.OrderNumber))
	s.notifyAdmins(ctx, cancelled,
		fmt.Sprintf("Order %s was cancelled by %s", cancelled.OrderNumber, cancelled.FullName))
	return cancelled, nil
}

// Delete removes an order entirely. Admin cleanup only.
func (s *OrderService) Delete(ctx context.Context, orderID uuid.UUID) error {
	if _, err := s.store.GetOrder(ctx, orderID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("get order: %w", err)
	}
	if err := s.store.DeleteOrder(ctx, orderID); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return nil
}

func (s *OrderService) notify(ctx context.Context, recipientID uuid.UUID, order database.Order, message string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, recipientID, "Order update", message, order.ID)
}

func (s *OrderService) notifyAdmins(ctx context.Context, order database.Order, message string) {
	if s.notifier == nil {
		return
	}
	admins, err := s.store.ListAdmins(ctx)
	if err != nil {
		return
	}
	for _, admin := range admins {
		if admin.ID == order.UserID {
			continue
		}
		s.notifier.Notify(ctx, admin.ID, "Order update", message, order.ID)
	}
}

func formatOrderNumber(n int64) string {
	return fmt.Sprintf("#%06d", n)
}
