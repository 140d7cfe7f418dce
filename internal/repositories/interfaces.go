package repositories

import (
	"context"
	"time"

	domain "github.com/craftmarket/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	Quotes() QuoteRepository
	Products() ProductRepository
	Carts() CartRepository
	Users() UserRepository
	Addresses() AddressRepository
	Counters() CounterRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository persists order headers with their owned items and history log.
type OrderRepository interface {
	// Insert stores the order header, its item snapshots, and any seeded history entries.
	Insert(ctx context.Context, order domain.Order) error
	// Update rewrites mutable header fields. Items are immutable after insert.
	Update(ctx context.Context, order domain.Order) error
	AppendStatusChange(ctx context.Context, change domain.OrderStatusChange) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
}

// QuoteRepository persists quote negotiations and their message threads.
type QuoteRepository interface {
	Insert(ctx context.Context, quote domain.QuoteRequest) error
	Update(ctx context.Context, quote domain.QuoteRequest) error
	AppendMessage(ctx context.Context, message domain.QuoteMessage) error
	FindByID(ctx context.Context, quoteID string) (domain.QuoteRequest, error)
	List(ctx context.Context, filter QuoteListFilter) (domain.CursorPage[domain.QuoteRequest], error)
	// ExpirePending marks unanswered pending quotes past their deadline as expired
	// and returns how many rows changed. Safe to call repeatedly.
	ExpirePending(ctx context.Context, now time.Time) (int64, error)
}

// ProductRepository exposes the catalog projection needed for validation and snapshots.
type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	// FindByIDs returns the products that exist, keyed by id. Missing ids are
	// simply absent from the map; callers decide whether that is an error.
	FindByIDs(ctx context.Context, productIDs []string) (map[string]domain.Product, error)
	// AdjustStock applies delta to the product's quantity. Negative deltas are
	// conditional: when availability is short the stored quantity is untouched
	// and an InsufficientStockError is returned.
	AdjustStock(ctx context.Context, productID string, delta int) error
}

// CartRepository reads and clears a user's cart. Cart mutation belongs to the
// cart subsystem; checkout only consumes and empties it.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) ([]domain.CartItem, error)
	Clear(ctx context.Context, userID string) error
}

// UserRepository resolves actor identities for authorization decisions.
type UserRepository interface {
	FindByID(ctx context.Context, userID string) (domain.User, error)
}

// AddressRepository stores shipping addresses per user.
type AddressRepository interface {
	Get(ctx context.Context, userID string, addressID string) (domain.Address, error)
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// Filter DTOs shared across repositories ------------------------------------

type OrderListFilter struct {
	UserID     string
	SellerID   string
	Status     []domain.OrderStatus
	DateRange  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}

type QuoteListFilter struct {
	CustomerID string
	ArtisanID  string
	Status     []domain.QuoteStatus
	Pagination domain.Pagination
}
