package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const productColumns = `id, title, description, original_price, discount_type, discount_amount, image_url, is_active, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Title, &p.Description, &p.OriginalPrice,
		&p.DiscountType, &p.DiscountAmount, &p.ImageUrl, &p.IsActive,
		&p.CreatedAt, &p.UpdatedAt)
	return p, err
}

type CreateProductParams struct {
	Title          string
	Description    pgtype.Text
	OriginalPrice  pgtype.Numeric
	DiscountType   pgtype.Text
	DiscountAmount pgtype.Numeric
	ImageUrl       pgtype.Text
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO products (title, description, original_price, discount_type, discount_amount, image_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+productColumns,
		arg.Title, arg.Description, arg.OriginalPrice, arg.DiscountType, arg.DiscountAmount, arg.ImageUrl)
	return scanProduct(row)
}

func (q *Queries) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	row := q.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 AND is_active`, id)
	return scanProduct(row)
}

func (q *Queries) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := q.db.Query(ctx, `SELECT `+productColumns+` FROM products WHERE is_active ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

type UpdateProductParams struct {
	ID             uuid.UUID
	Title          string
	Description    pgtype.Text
	OriginalPrice  pgtype.Numeric
	DiscountType   pgtype.Text
	DiscountAmount pgtype.Numeric
	ImageUrl       pgtype.Text
}

func (q *Queries) UpdateProduct(ctx context.Context, arg UpdateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE products
		SET title = $2, description = $3, original_price = $4,
		    discount_type = $5, discount_amount = $6, image_url = $7,
		    updated_at = now()
		WHERE id = $1 AND is_active
		RETURNING `+productColumns,
		arg.ID, arg.Title, arg.Description, arg.OriginalPrice,
		arg.DiscountType, arg.DiscountAmount, arg.ImageUrl)
	return scanProduct(row)
}

// SoftDeleteProduct hides a product from the catalog. Existing order item
// snapshots are unaffected.
func (q *Queries) SoftDeleteProduct(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var deleted uuid.UUID
	err := q.db.QueryRow(ctx, `
		UPDATE products SET is_active = false, updated_at = now()
		WHERE id = $1 AND is_active
		RETURNING id`, id).Scan(&deleted)
	return deleted, err
}

// --- Variants ---

const variantColumns = `id, product_id, color, size, quantity`

func scanVariant(row interface{ Scan(...any) error }) (ProductVariant, error) {
	var v ProductVariant
	err := row.Scan(&v.ID, &v.ProductID, &v.Color, &v.Size, &v.Quantity)
	return v, err
}

type UpsertVariantParams struct {
	ProductID uuid.UUID
	Color     string
	Size      string
	Quantity  int32
}

// UpsertVariant creates a variant or overwrites its stock level. Used by
// catalog management, not by the order pipeline.
func (q *Queries) UpsertVariant(ctx context.Context, arg UpsertVariantParams) (ProductVariant, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO product_variants (product_id, color, size, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (product_id, color, size)
		DO UPDATE SET quantity = EXCLUDED.quantity
		RETURNING `+variantColumns,
		arg.ProductID, arg.Color, arg.Size, arg.Quantity)
	return scanVariant(row)
}

func (q *Queries) ListVariantsByProduct(ctx context.Context, productID uuid.UUID) ([]ProductVariant, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+variantColumns+` FROM product_variants
		WHERE product_id = $1 ORDER BY color, size`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var variants []ProductVariant
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

func (q *Queries) DeleteVariant(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM product_variants WHERE id = $1`, id)
	return err
}

type GetVariantParams struct {
	ProductID uuid.UUID
	Color     string
	Size      string
}

func (q *Queries) GetVariant(ctx context.Context, arg GetVariantParams) (ProductVariant, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+variantColumns+` FROM product_variants
		WHERE product_id = $1 AND color = $2 AND size = $3`,
		arg.ProductID, arg.Color, arg.Size)
	return scanVariant(row)
}

type DecrementVariantStockParams struct {
	ProductID uuid.UUID
	Color     string
	Size      string
	Quantity  int32
}

// DecrementVariantStock subtracts stock only if enough remains. The
// conditional WHERE is the whole point: a plain read-modify-write loses
// updates under concurrency, and this form can never drive quantity
// negative. Returns pgx.ErrNoRows when stock is insufficient or the variant
// does not exist.
func (q *Queries) DecrementVariantStock(ctx context.Context, arg DecrementVariantStockParams) (ProductVariant, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE product_variants
		SET quantity = quantity - $4
		WHERE product_id = $1 AND color = $2 AND size = $3 AND quantity >= $4
		RETURNING `+variantColumns,
		arg.ProductID, arg.Color, arg.Size, arg.Quantity)
	return scanVariant(row)
}
