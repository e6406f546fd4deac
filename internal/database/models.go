package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

type User struct {
	ID             uuid.UUID
	FullName       string
	Email          string
	HashedPassword string
	Role           string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Product struct {
	ID             uuid.UUID
	Title          string
	Description    pgtype.Text
	OriginalPrice  pgtype.Numeric
	DiscountType   pgtype.Text
	DiscountAmount pgtype.Numeric
	ImageUrl       pgtype.Text
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ProductVariant is the stock-tracked sub-unit of a product, identified by
// (product_id, color, size). Quantity never goes negative; the decrement
// query enforces that with a conditional update.
type ProductVariant struct {
	ID        uuid.UUID
	ProductID uuid.UUID
	Color     string
	Size      string
	Quantity  int32
}

type Cart struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CartItem struct {
	ID        uuid.UUID
	CartID    uuid.UUID
	ProductID uuid.UUID
	Color     string
	Size      string
	Quantity  int32
	AddedAt   time.Time
}

// CartLine is a cart item joined against its product's current pricing.
// Cart views price live; nothing here is a snapshot.
type CartLine struct {
	Item           CartItem
	Title          string
	ImageUrl       pgtype.Text
	OriginalPrice  pgtype.Numeric
	DiscountType   pgtype.Text
	DiscountAmount pgtype.Numeric
	ProductActive  bool
}

type PendingCheckout struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	FullName      string
	Phone         string
	AnotherPhone  pgtype.Text
	AddressLine   string
	City          string
	Governorate   string
	Country       string
	Notes         pgtype.Text
	SubTotal      pgtype.Numeric
	DiscountTotal pgtype.Numeric
	ShippingFee   pgtype.Numeric
	FinalTotal    pgtype.Numeric
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type PendingCheckoutItem struct {
	ID                 uuid.UUID
	PendingCheckoutID  uuid.UUID
	ProductID          uuid.UUID
	Quantity           int32
	Color              string
	Size               string
	Title              string
	ImageUrl           pgtype.Text
	OriginalPrice      pgtype.Numeric
	PriceAfterDiscount pgtype.Numeric
	DiscountPerUnit    pgtype.Numeric
	LineDiscountTotal  pgtype.Numeric
	LineTotal          pgtype.Numeric
}

type Order struct {
	ID            uuid.UUID
	OrderNumber   string
	UserID        uuid.UUID
	Status        string
	SubTotal      pgtype.Numeric
	DiscountTotal pgtype.Numeric
	ShippingFee   pgtype.Numeric
	FinalTotal    pgtype.Numeric
	PaymentMethod string
	FullName      string
	Phone         string
	AnotherPhone  pgtype.Text
	AddressLine   string
	City          string
	Governorate   string
	Country       string
	Notes         pgtype.Text
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderItem carries the full price snapshot captured at commit time. It is
// never re-derived from the product, which may change or disappear later
// (product_id is SET NULL on product deletion).
type OrderItem struct {
	ID                 uuid.UUID
	OrderID            uuid.UUID
	ProductID          pgtype.UUID
	Quantity           int32
	Color              string
	Size               string
	Title              string
	ImageUrl           pgtype.Text
	OriginalPrice      pgtype.Numeric
	PriceAfterDiscount pgtype.Numeric
	DiscountPerUnit    pgtype.Numeric
	LineDiscountTotal  pgtype.Numeric
	LineTotal          pgtype.Numeric
	LineOriginalTotal  pgtype.Numeric
}

type Notification struct {
	ID          uuid.UUID
	RecipientID uuid.UUID
	Title       string
	Message     string
	OrderID     pgtype.UUID
	Read        bool
	CreatedAt   time.Time
}

// --- Numeric helpers ---

// NumericToDecimal converts a pgtype.Numeric to a decimal, treating NULL and
// scan failures as zero.
func NumericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// DecimalToNumeric converts a decimal to pgtype.Numeric fixed at 2 places,
// the storage precision for all monetary columns.
func DecimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
