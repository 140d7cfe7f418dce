package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	domain "github.com/craftmarket/api/internal/domain"
	"github.com/craftmarket/api/internal/repositories"
)

func fixedClock() time.Time {
	return time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
}

func sequentialIDs(prefix string) func() string {
	var n int
	return func() string {
		n++
		return fmt.Sprintf("%s%04d", prefix, n)
	}
}

// stubRepoError implements repositories.RepositoryError for tests.
type stubRepoError struct {
	msg         string
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *stubRepoError) Error() string       { return e.msg }
func (e *stubRepoError) IsNotFound() bool    { return e.notFound }
func (e *stubRepoError) IsConflict() bool    { return e.conflict }
func (e *stubRepoError) IsUnavailable() bool { return e.unavailable }

func notFoundErr(msg string) error { return &stubRepoError{msg: msg, notFound: true} }
func conflictErr(msg string) error { return &stubRepoError{msg: msg, conflict: true} }

type stubOrderRepository struct {
	insertFn             func(ctx context.Context, order domain.Order) error
	updateFn             func(ctx context.Context, order domain.Order) error
	appendStatusChangeFn func(ctx context.Context, change domain.OrderStatusChange) error
	findByIDFn           func(ctx context.Context, orderID string) (domain.Order, error)
	listFn               func(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error)
}

func (s *stubOrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, order)
	}
	return nil
}

func (s *stubOrderRepository) Update(ctx context.Context, order domain.Order) error {
	if s.updateFn != nil {
		return s.updateFn(ctx, order)
	}
	return nil
}

func (s *stubOrderRepository) AppendStatusChange(ctx context.Context, change domain.OrderStatusChange) error {
	if s.appendStatusChangeFn != nil {
		return s.appendStatusChangeFn(ctx, change)
	}
	return nil
}

func (s *stubOrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if s.findByIDFn != nil {
		return s.findByIDFn(ctx, orderID)
	}
	return domain.Order{}, notFoundErr("order not found")
}

func (s *stubOrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[domain.Order]{}, nil
}

type stubQuoteRepository struct {
	insertFn        func(ctx context.Context, quote domain.QuoteRequest) error
	updateFn        func(ctx context.Context, quote domain.QuoteRequest) error
	appendMessageFn func(ctx context.Context, message domain.QuoteMessage) error
	findByIDFn      func(ctx context.Context, quoteID string) (domain.QuoteRequest, error)
	listFn          func(ctx context.Context, filter repositories.QuoteListFilter) (domain.CursorPage[domain.QuoteRequest], error)
	expirePendingFn func(ctx context.Context, now time.Time) (int64, error)
}

func (s *stubQuoteRepository) Insert(ctx context.Context, quote domain.QuoteRequest) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, quote)
	}
	return nil
}

func (s *stubQuoteRepository) Update(ctx context.Context, quote domain.QuoteRequest) error {
	if s.updateFn != nil {
		return s.updateFn(ctx, quote)
	}
	return nil
}

func (s *stubQuoteRepository) AppendMessage(ctx context.Context, message domain.QuoteMessage) error {
	if s.appendMessageFn != nil {
		return s.appendMessageFn(ctx, message)
	}
	return nil
}

func (s *stubQuoteRepository) FindByID(ctx context.Context, quoteID string) (domain.QuoteRequest, error) {
	if s.findByIDFn != nil {
		return s.findByIDFn(ctx, quoteID)
	}
	return domain.QuoteRequest{}, notFoundErr("quote not found")
}

func (s *stubQuoteRepository) List(ctx context.Context, filter repositories.QuoteListFilter) (domain.CursorPage[domain.QuoteRequest], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[domain.QuoteRequest]{}, nil
}

func (s *stubQuoteRepository) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	if s.expirePendingFn != nil {
		return s.expirePendingFn(ctx, now)
	}
	return 0, nil
}

type stubProductRepository struct {
	findByIDFn    func(ctx context.Context, productID string) (domain.Product, error)
	findByIDsFn   func(ctx context.Context, productIDs []string) (map[string]domain.Product, error)
	adjustStockFn func(ctx context.Context, productID string, delta int) error
}

func (s *stubProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if s.findByIDFn != nil {
		return s.findByIDFn(ctx, productID)
	}
	return domain.Product{}, notFoundErr("product not found")
}

func (s *stubProductRepository) FindByIDs(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	if s.findByIDsFn != nil {
		return s.findByIDsFn(ctx, productIDs)
	}
	return map[string]domain.Product{}, nil
}

func (s *stubProductRepository) AdjustStock(ctx context.Context, productID string, delta int) error {
	if s.adjustStockFn != nil {
		return s.adjustStockFn(ctx, productID, delta)
	}
	return nil
}

type stubCartRepository struct {
	getCartFn func(ctx context.Context, userID string) ([]domain.CartItem, error)
	clearFn   func(ctx context.Context, userID string) error
}

func (s *stubCartRepository) GetCart(ctx context.Context, userID string) ([]domain.CartItem, error) {
	if s.getCartFn != nil {
		return s.getCartFn(ctx, userID)
	}
	return nil, nil
}

func (s *stubCartRepository) Clear(ctx context.Context, userID string) error {
	if s.clearFn != nil {
		return s.clearFn(ctx, userID)
	}
	return nil
}

// stubUserRepository resolves actors from a fixed map.
type stubUserRepository struct {
	users map[string]domain.User
}

func (s *stubUserRepository) FindByID(ctx context.Context, userID string) (domain.User, error) {
	if user, ok := s.users[userID]; ok {
		return user, nil
	}
	return domain.User{}, notFoundErr("user not found")
}

type stubAddressRepository struct {
	getFn func(ctx context.Context, userID, addressID string) (domain.Address, error)
}

func (s *stubAddressRepository) Get(ctx context.Context, userID, addressID string) (domain.Address, error) {
	if s.getFn != nil {
		return s.getFn(ctx, userID, addressID)
	}
	return domain.Address{ID: addressID, UserID: userID}, nil
}

type stubCounterRepository struct {
	nextFn func(ctx context.Context, counterID string, step int64) (int64, error)

	mu     sync.Mutex
	values map[string]int64
}

func (s *stubCounterRepository) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	if s.nextFn != nil {
		return s.nextFn(ctx, counterID, step)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		s.values = map[string]int64{}
	}
	s.values[counterID] += step
	return s.values[counterID], nil
}

type stubQuoteCompleter struct {
	getQuoteFn        func(ctx context.Context, quoteID string) (domain.QuoteRequest, error)
	completeViaOrders func(ctx context.Context, cmd CompleteQuoteCommand) (domain.QuoteRequest, error)
}

func (s *stubQuoteCompleter) GetQuote(ctx context.Context, quoteID string) (domain.QuoteRequest, error) {
	if s.getQuoteFn != nil {
		return s.getQuoteFn(ctx, quoteID)
	}
	return domain.QuoteRequest{}, notFoundErr("quote not found")
}

func (s *stubQuoteCompleter) CompleteViaOrder(ctx context.Context, cmd CompleteQuoteCommand) (domain.QuoteRequest, error) {
	if s.completeViaOrders != nil {
		return s.completeViaOrders(ctx, cmd)
	}
	return domain.QuoteRequest{}, nil
}

// capturePublisher records notifications emitted during a test.
type capturePublisher struct {
	mu            sync.Mutex
	notifications []Notification
	err           error
}

func (p *capturePublisher) PublishNotification(_ context.Context, notification Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.notifications = append(p.notifications, notification)
	return nil
}

func (p *capturePublisher) byType(eventType string) []Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	var matched []Notification
	for _, notification := range p.notifications {
		if notification.Type == eventType {
			matched = append(matched, notification)
		}
	}
	return matched
}
