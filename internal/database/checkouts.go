package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const pendingCheckoutColumns = `id, user_id, full_name, phone, another_phone, address_line, city, governorate, country, notes, sub_total, discount_total, shipping_fee, final_total, created_at, updated_at`

func scanPendingCheckout(row interface{ Scan(...any) error }) (PendingCheckout, error) {
	var pc PendingCheckout
	err := row.Scan(&pc.ID, &pc.UserID, &pc.FullName, &pc.Phone, &pc.AnotherPhone,
		&pc.AddressLine, &pc.City, &pc.Governorate, &pc.Country, &pc.Notes,
		&pc.SubTotal, &pc.DiscountTotal, &pc.ShippingFee, &pc.FinalTotal,
		&pc.CreatedAt, &pc.UpdatedAt)
	return pc, err
}

type UpsertPendingCheckoutParams struct {
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
}

// UpsertPendingCheckout replaces the user's snapshot header. One snapshot per
// user, replace-on-write; each preview supersedes the last. Item rows are
// replaced separately by the caller inside the same transaction.
func (q *Queries) UpsertPendingCheckout(ctx context.Context, arg UpsertPendingCheckoutParams) (PendingCheckout, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO pending_checkouts
			(user_id, full_name, phone, another_phone, address_line, city, governorate, country, notes,
			 sub_total, discount_total, shipping_fee, final_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (user_id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			phone = EXCLUDED.phone,
			another_phone = EXCLUDED.another_phone,
			address_line = EXCLUDED.address_line,
			city = EXCLUDED.city,
			governorate = EXCLUDED.governorate,
			country = EXCLUDED.country,
			notes = EXCLUDED.notes,
			sub_total = EXCLUDED.sub_total,
			discount_total = EXCLUDED.discount_total,
			shipping_fee = EXCLUDED.shipping_fee,
			final_total = EXCLUDED.final_total,
			updated_at = now()
		RETURNING `+pendingCheckoutColumns,
		arg.UserID, arg.FullName, arg.Phone, arg.AnotherPhone, arg.AddressLine,
		arg.City, arg.Governorate, arg.Country, arg.Notes,
		arg.SubTotal, arg.DiscountTotal, arg.ShippingFee, arg.FinalTotal)
	return scanPendingCheckout(row)
}

func (q *Queries) GetPendingCheckoutByUser(ctx context.Context, userID uuid.UUID) (PendingCheckout, error) {
	row := q.db.QueryRow(ctx, `SELECT `+pendingCheckoutColumns+` FROM pending_checkouts WHERE user_id = $1`, userID)
	return scanPendingCheckout(row)
}

func (q *Queries) DeletePendingCheckoutByUser(ctx context.Context, userID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM pending_checkouts WHERE user_id = $1`, userID)
	return err
}

func (q *Queries) DeletePendingCheckoutItems(ctx context.Context, pendingCheckoutID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM pending_checkout_items WHERE pending_checkout_id = $1`, pendingCheckoutID)
	return err
}

type CreatePendingCheckoutItemParams struct {
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

func (q *Queries) CreatePendingCheckoutItem(ctx context.Context, arg CreatePendingCheckoutItemParams) (PendingCheckoutItem, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO pending_checkout_items
			(pending_checkout_id, product_id, quantity, color, size, title, image_url,
			 original_price, price_after_discount, discount_per_unit, line_discount_total, line_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, pending_checkout_id, product_id, quantity, color, size, title, image_url,
			original_price, price_after_discount, discount_per_unit, line_discount_total, line_total`,
		arg.PendingCheckoutID, arg.ProductID, arg.Quantity, arg.Color, arg.Size,
		arg.Title, arg.ImageUrl, arg.OriginalPrice, arg.PriceAfterDiscount,
		arg.DiscountPerUnit, arg.LineDiscountTotal, arg.LineTotal)

	var item PendingCheckoutItem
	err := row.Scan(&item.ID, &item.PendingCheckoutID, &item.ProductID, &item.Quantity,
		&item.Color, &item.Size, &item.Title, &item.ImageUrl, &item.OriginalPrice,
		&item.PriceAfterDiscount, &item.DiscountPerUnit, &item.LineDiscountTotal, &item.LineTotal)
	return item, err
}

func (q *Queries) ListPendingCheckoutItems(ctx context.Context, pendingCheckoutID uuid.UUID) ([]PendingCheckoutItem, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, pending_checkout_id, product_id, quantity, color, size, title, image_url,
			original_price, price_after_discount, discount_per_unit, line_discount_total, line_total
		FROM pending_checkout_items WHERE pending_checkout_id = $1`, pendingCheckoutID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []PendingCheckoutItem
	for rows.Next() {
		var item PendingCheckoutItem
		if err := rows.Scan(&item.ID, &item.PendingCheckoutID, &item.ProductID, &item.Quantity,
			&item.Color, &item.Size, &item.Title, &item.ImageUrl, &item.OriginalPrice,
			&item.PriceAfterDiscount, &item.DiscountPerUnit, &item.LineDiscountTotal, &item.LineTotal,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
