package postgres

import (
	"context"
	"errors"

	domain "github.com/craftmarket/api/internal/domain"
	"github.com/craftmarket/api/internal/repositories"
)

// AddressRepository implements repositories.AddressRepository on Postgres.
type AddressRepository struct {
	provider *Provider
}

var _ repositories.AddressRepository = (*AddressRepository)(nil)

// NewAddressRepository constructs a Postgres-backed address repository.
func NewAddressRepository(provider *Provider) *AddressRepository {
	return &AddressRepository{provider: provider}
}

// Get loads one address scoped to its owner, so callers cannot read another
// user's address by guessing ids.
func (r *AddressRepository) Get(ctx context.Context, userID string, addressID string) (domain.Address, error) {
	if r == nil || r.provider == nil {
		return domain.Address{}, errors.New("address repository not initialised")
	}
	q := r.provider.querier(ctx)

	row := q.QueryRow(ctx, `
		SELECT id, user_id, recipient, line1, line2, city, state, postal_code, country, phone
		FROM addresses WHERE id = $1 AND user_id = $2`, addressID, userID)

	var addr domain.Address
	err := row.Scan(&addr.ID, &addr.UserID, &addr.Recipient, &addr.Line1, &addr.Line2,
		&addr.City, &addr.State, &addr.PostalCode, &addr.Country, &addr.Phone)
	if err != nil {
		return domain.Address{}, wrapError("addresses.get", err)
	}
	return addr, nil
}
