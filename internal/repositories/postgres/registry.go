package postgres

import (
	"context"
	"errors"

	"github.com/craftmarket/api/internal/repositories"
)

// Registry bundles the Postgres-backed repositories behind the repositories.Registry seam.
type Registry struct {
	provider *Provider

	orders    *OrderRepository
	quotes    *QuoteRepository
	products  *ProductRepository
	carts     *CartRepository
	users     *UserRepository
	addresses *AddressRepository
	counters  *CounterRepository
	health    repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry wires every repository onto the shared provider.
func NewRegistry(provider *Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("postgres: registry requires provider")
	}

	health, err := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{
		{
			Name:  "postgres",
			Check: provider.Ping,
		},
	})
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider:  provider,
		orders:    NewOrderRepository(provider),
		quotes:    NewQuoteRepository(provider),
		products:  NewProductRepository(provider),
		carts:     NewCartRepository(provider),
		users:     NewUserRepository(provider),
		addresses: NewAddressRepository(provider),
		counters:  NewCounterRepository(provider),
		health:    health,
	}, nil
}

func (r *Registry) Close(ctx context.Context) error { return r.provider.Close(ctx) }

func (r *Registry) Orders() repositories.OrderRepository       { return r.orders }
func (r *Registry) Quotes() repositories.QuoteRepository       { return r.quotes }
func (r *Registry) Products() repositories.ProductRepository   { return r.products }
func (r *Registry) Carts() repositories.CartRepository         { return r.carts }
func (r *Registry) Users() repositories.UserRepository         { return r.users }
func (r *Registry) Addresses() repositories.AddressRepository  { return r.addresses }
func (r *Registry) Counters() repositories.CounterRepository   { return r.counters }
func (r *Registry) Health() repositories.HealthRepository      { return r.health }

// RunInTx groups repository calls into one database transaction.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.provider.RunInTx(ctx, fn)
}
