package postgres

import (
	"context"
	"errors"

	domain "github.com/craftmarket/api/internal/domain"
	"github.com/craftmarket/api/internal/repositories"
)

const productColumns = `id, seller_id, name, status, price, quantity, is_customizable, image_urls, attributes, updated_at`

// ProductRepository implements repositories.ProductRepository on Postgres.
type ProductRepository struct {
	provider *Provider
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)

// NewProductRepository constructs a Postgres-backed product repository.
func NewProductRepository(provider *Provider) *ProductRepository {
	return &ProductRepository{provider: provider}
}

// FindByID loads a single product.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.provider == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	q := r.provider.querier(ctx)

	row := q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, productID)
	var product domain.Product
	err := row.Scan(&product.ID, &product.SellerID, &product.Name, &product.Status, &product.Price,
		&product.Quantity, &product.IsCustomizable, &product.ImageURLs, &product.Attributes, &product.UpdatedAt)
	if err != nil {
		return domain.Product{}, wrapError("products.find_by_id", err)
	}
	return product, nil
}

// FindByIDs returns the products that exist, keyed by id. Missing ids are absent from the map.
func (r *ProductRepository) FindByIDs(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("product repository not initialised")
	}
	products := make(map[string]domain.Product, len(productIDs))
	if len(productIDs) == 0 {
		return products, nil
	}
	q := r.provider.querier(ctx)

	rows, err := q.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, productIDs)
	if err != nil {
		return nil, wrapError("products.find_by_ids", err)
	}
	defer rows.Close()

	for rows.Next() {
		var product domain.Product
		if err := rows.Scan(&product.ID, &product.SellerID, &product.Name, &product.Status, &product.Price,
			&product.Quantity, &product.IsCustomizable, &product.ImageURLs, &product.Attributes, &product.UpdatedAt); err != nil {
			return nil, wrapError("products.find_by_ids", err)
		}
		products[product.ID] = product
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("products.find_by_ids", err)
	}
	return products, nil
}

// AdjustStock applies delta to the product's quantity. Decrements are
// conditional on sufficient availability so concurrent checkouts cannot drive
// the count negative; the check and the write are a single statement.
func (r *ProductRepository) AdjustStock(ctx context.Context, productID string, delta int) error {
	if r == nil || r.provider == nil {
		return errors.New("product repository not initialised")
	}
	q := r.provider.querier(ctx)

	tag, err := q.Exec(ctx, `
		UPDATE products
		SET quantity = quantity + $2, updated_at = now()
		WHERE id = $1 AND quantity + $2 >= 0`,
		productID, delta,
	)
	if err != nil {
		return wrapError("products.adjust_stock", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Either the product is missing or availability was short. One more read
	// distinguishes the two for the caller.
	var available int
	err = q.QueryRow(ctx, `SELECT quantity FROM products WHERE id = $1`, productID).Scan(&available)
	if err != nil {
		return wrapError("products.adjust_stock", err)
	}
	return &repositories.InsufficientStockError{
		ProductID: productID,
		Requested: -delta,
		Available: available,
	}
}
