package postgres

import (
	"context"
	"errors"

	domain "github.com/craftmarket/api/internal/domain"
	"github.com/craftmarket/api/internal/repositories"
)

// CartRepository implements repositories.CartRepository on Postgres.
type CartRepository struct {
	provider *Provider
}

var _ repositories.CartRepository = (*CartRepository)(nil)

// NewCartRepository constructs a Postgres-backed cart repository.
func NewCartRepository(provider *Provider) *CartRepository {
	return &CartRepository{provider: provider}
}

// GetCart returns the user's cart items in insertion order. An empty cart is
// an empty slice, not an error.
func (r *CartRepository) GetCart(ctx context.Context, userID string) ([]domain.CartItem, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("cart repository not initialised")
	}
	q := r.provider.querier(ctx)

	rows, err := q.Query(ctx, `
		SELECT id, user_id, product_id, quantity, added_at
		FROM cart_items WHERE user_id = $1 ORDER BY added_at, id`, userID)
	if err != nil {
		return nil, wrapError("carts.get", err)
	}
	defer rows.Close()

	var items []domain.CartItem
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.ID, &item.UserID, &item.ProductID, &item.Quantity, &item.AddedAt); err != nil {
			return nil, wrapError("carts.get", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("carts.get", err)
	}
	return items, nil
}

// Clear removes every item from the user's cart.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	if r == nil || r.provider == nil {
		return errors.New("cart repository not initialised")
	}
	q := r.provider.querier(ctx)

	_, err := q.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	if err != nil {
		return wrapError("carts.clear", err)
	}
	return nil
}
