package database

import (
	"context"

	"github.com/google/uuid"
)

const cartColumns = `id, user_id, created_at, updated_at`
const cartItemColumns = `id, cart_id, product_id, color, size, quantity, added_at`

func scanCart(row interface{ Scan(...any) error }) (Cart, error) {
	var c Cart
	err := row.Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func scanCartItem(row interface{ Scan(...any) error }) (CartItem, error) {
	var i CartItem
	err := row.Scan(&i.ID, &i.CartID, &i.ProductID, &i.Color, &i.Size, &i.Quantity, &i.AddedAt)
	return i, err
}

func (q *Queries) GetCartByUser(ctx context.Context, userID uuid.UUID) (Cart, error) {
	row := q.db.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts WHERE user_id = $1`, userID)
	return scanCart(row)
}

func (q *Queries) CreateCart(ctx context.Context, userID uuid.UUID) (Cart, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO carts (user_id) VALUES ($1)
		RETURNING `+cartColumns, userID)
	return scanCart(row)
}

func (q *Queries) DeleteCart(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM carts WHERE id = $1`, id)
	return err
}

type GetCartItemParams struct {
	CartID    uuid.UUID
	ProductID uuid.UUID
	Color     string
	Size      string
}

func (q *Queries) GetCartItem(ctx context.Context, arg GetCartItemParams) (CartItem, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+cartItemColumns+` FROM cart_items
		WHERE cart_id = $1 AND product_id = $2 AND color = $3 AND size = $4`,
		arg.CartID, arg.ProductID, arg.Color, arg.Size)
	return scanCartItem(row)
}

type CreateCartItemParams struct {
	CartID    uuid.UUID
	ProductID uuid.UUID
	Color     string
	Size      string
	Quantity  int32
}

func (q *Queries) CreateCartItem(ctx context.Context, arg CreateCartItemParams) (CartItem, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO cart_items (cart_id, product_id, color, size, quantity)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+cartItemColumns,
		arg.CartID, arg.ProductID, arg.Color, arg.Size, arg.Quantity)
	return scanCartItem(row)
}

type UpdateCartItemQuantityParams struct {
	ID       uuid.UUID
	Quantity int32
}

func (q *Queries) UpdateCartItemQuantity(ctx context.Context, arg UpdateCartItemQuantityParams) (CartItem, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE cart_items SET quantity = $2
		WHERE id = $1
		RETURNING `+cartItemColumns,
		arg.ID, arg.Quantity)
	return scanCartItem(row)
}

func (q *Queries) DeleteCartItem(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM cart_items WHERE id = $1`, id)
	return err
}

func (q *Queries) CountCartItems(ctx context.Context, cartID uuid.UUID) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM cart_items WHERE cart_id = $1`, cartID).Scan(&count)
	return count, err
}

// ListCartLines joins cart items against current product data. Cart pricing
// is always live; what the customer pays is only fixed at preview/commit.
func (q *Queries) ListCartLines(ctx context.Context, cartID uuid.UUID) ([]CartLine, error) {
	rows, err := q.db.Query(ctx, `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.color, ci.size, ci.quantity, ci.added_at,
		       p.title, p.image_url, p.original_price, p.discount_type, p.discount_amount, p.is_active
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.added_at`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []CartLine
	for rows.Next() {
		var l CartLine
		if err := rows.Scan(
			&l.Item.ID, &l.Item.CartID, &l.Item.ProductID, &l.Item.Color,
			&l.Item.Size, &l.Item.Quantity, &l.Item.AddedAt,
			&l.Title, &l.ImageUrl, &l.OriginalPrice, &l.DiscountType,
			&l.DiscountAmount, &l.ProductActive,
		); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
