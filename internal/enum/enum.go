package enum

// ── Order lifecycle (CHECK constrained in DB) ──
//
// Every order starts as "pending". Cancellation is only reachable from
// "pending"; the remaining statuses may be set in any order by an admin.

const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

const (
	UserRoleCustomer = "CUSTOMER"
	UserRoleAdmin    = "ADMIN"
)

// ── Configurable labels (no DB constraint) ──

const (
	PaymentMethodCash = "cash"
	PaymentMethodCard = "card"
)

const (
	DiscountTypePercentage = "percentage"
	DiscountTypeFixed      = "fixed"
)

// IsOrderStatus reports whether s is one of the known order statuses.
func IsOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// IsPaymentMethod reports whether s is a known payment method.
func IsPaymentMethod(s string) bool {
	switch s {
	case PaymentMethodCash, PaymentMethodCard:
		return true
	}
	return false
}

// IsDiscountType reports whether s is a known discount type.
func IsDiscountType(s string) bool {
	switch s {
	case DiscountTypePercentage, DiscountTypeFixed:
		return true
	}
	return false
}
