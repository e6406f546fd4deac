package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, order_number, user_id, status, sub_total, discount_total, shipping_fee, final_total, payment_method, full_name, phone, another_phone, address_line, city, governorate, country, notes, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.Status,
		&o.SubTotal, &o.DiscountTotal, &o.ShippingFee, &o.FinalTotal,
		&o.PaymentMethod, &o.FullName, &o.Phone, &o.AnotherPhone,
		&o.AddressLine, &o.City, &o.Governorate, &o.Country, &o.Notes,
		&o.CreatedAt, &o.UpdatedAt)
	return o, err
}

type CreateOrderParams struct {
	OrderNumber   string
	UserID        uuid.UUID
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
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO orders
			(order_number, user_id, sub_total, discount_total, shipping_fee, final_total,
			 payment_method, full_name, phone, another_phone, address_line, city, governorate, country, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING `+orderColumns,
		arg.OrderNumber, arg.UserID, arg.SubTotal, arg.DiscountTotal,
		arg.ShippingFee, arg.FinalTotal, arg.PaymentMethod,
		arg.FullName, arg.Phone, arg.AnotherPhone, arg.AddressLine,
		arg.City, arg.Governorate, arg.Country, arg.Notes)
	return scanOrder(row)
}

const orderItemColumns = `id, order_id, product_id, quantity, color, size, title, image_url, original_price, price_after_discount, discount_per_unit, line_discount_total, line_total, line_original_total`

func scanOrderItem(row interface{ Scan(...any) error }) (OrderItem, error) {
	var i OrderItem
	err := row.Scan(&i.ID, &i.OrderID, &i.ProductID, &i.Quantity, &i.Color, &i.Size,
		&i.Title, &i.ImageUrl, &i.OriginalPrice, &i.PriceAfterDiscount,
		&i.DiscountPerUnit, &i.LineDiscountTotal, &i.LineTotal, &i.LineOriginalTotal)
	return i, err
}

type CreateOrderItemParams struct {
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

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO order_items
			(order_id, product_id, quantity, color, size, title, image_url,
			 original_price, price_after_discount, discount_per_unit,
			 line_discount_total, line_total, line_original_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+orderItemColumns,
		arg.OrderID, arg.ProductID, arg.Quantity, arg.Color, arg.Size,
		arg.Title, arg.ImageUrl, arg.OriginalPrice, arg.PriceAfterDiscount,
		arg.DiscountPerUnit, arg.LineDiscountTotal, arg.LineTotal, arg.LineOriginalTotal)
	return scanOrderItem(row)
}

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+orderItemColumns+` FROM order_items
		WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		i, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

func (q *Queries) listOrders(ctx context.Context, sql string, args ...any) ([]Order, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (q *Queries) ListOrders(ctx context.Context) ([]Order, error) {
	return q.listOrders(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
}

func (q *Queries) ListOrdersByUser(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	return q.listOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (q *Queries) ListOrdersByStatus(ctx context.Context, status string) ([]Order, error) {
	return q.listOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE status = $1 ORDER BY created_at DESC`, status)
}

type UpdateOrderStatusParams struct {
	ID     uuid.UUID
	Status string
}

// UpdateOrderStatus overwrites the status unconditionally. The pending-only
// cancellation rule is enforced by CancelOrder, not here.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+orderColumns,
		arg.ID, arg.Status)
	return scanOrder(row)
}

// CancelOrder flips a pending order to cancelled. The precondition lives in
// the WHERE clause so a concurrent status change cannot slip through; callers
// get pgx.ErrNoRows when the order is missing or no longer pending.
func (q *Queries) CancelOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders SET status = 'cancelled', updated_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING `+orderColumns, id)
	return scanOrder(row)
}

func (q *Queries) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	return err
}
