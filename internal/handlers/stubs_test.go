package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/craftmarket/api/internal/domain"
	"github.com/craftmarket/api/internal/platform/auth"
	"github.com/craftmarket/api/internal/services"
)

type stubOrderService struct {
	createFromCartFn   func(ctx context.Context, cmd services.CreateOrderFromCartCommand) (domain.Order, error)
	createFromQuoteFn  func(ctx context.Context, cmd services.CreateOrderFromQuoteCommand) (domain.Order, error)
	getOrderFn         func(ctx context.Context, query services.GetOrderQuery) (domain.Order, error)
	listOrdersFn       func(ctx context.Context, query services.ListOrdersQuery) (domain.CursorPage[domain.Order], error)
	transitionStatusFn func(ctx context.Context, cmd services.OrderStatusTransitionCommand) (domain.Order, error)
	cancelFn           func(ctx context.Context, cmd services.CancelOrderCommand) (domain.Order, error)
	processPaymentFn   func(ctx context.Context, cmd services.ProcessPaymentCommand) (domain.Order, error)
	updateShippingFn   func(ctx context.Context, cmd services.UpdateShippingCommand) (domain.Order, error)
}

func (s *stubOrderService) CreateFromCart(ctx context.Context, cmd services.CreateOrderFromCartCommand) (domain.Order, error) {
	if s.createFromCartFn == nil {
		return domain.Order{}, nil
	}
	return s.createFromCartFn(ctx, cmd)
}

func (s *stubOrderService) CreateFromQuote(ctx context.Context, cmd services.CreateOrderFromQuoteCommand) (domain.Order, error) {
	if s.createFromQuoteFn == nil {
		return domain.Order{}, nil
	}
	return s.createFromQuoteFn(ctx, cmd)
}

func (s *stubOrderService) GetOrder(ctx context.Context, query services.GetOrderQuery) (domain.Order, error) {
	if s.getOrderFn == nil {
		return domain.Order{}, nil
	}
	return s.getOrderFn(ctx, query)
}

func (s *stubOrderService) ListOrders(ctx context.Context, query services.ListOrdersQuery) (domain.CursorPage[domain.Order], error) {
	if s.listOrdersFn == nil {
		return domain.CursorPage[domain.Order]{}, nil
	}
	return s.listOrdersFn(ctx, query)
}

func (s *stubOrderService) TransitionStatus(ctx context.Context, cmd services.OrderStatusTransitionCommand) (domain.Order, error) {
	if s.transitionStatusFn == nil {
		return domain.Order{}, nil
	}
	return s.transitionStatusFn(ctx, cmd)
}

func (s *stubOrderService) Cancel(ctx context.Context, cmd services.CancelOrderCommand) (domain.Order, error) {
	if s.cancelFn == nil {
		return domain.Order{}, nil
	}
	return s.cancelFn(ctx, cmd)
}

func (s *stubOrderService) ProcessPayment(ctx context.Context, cmd services.ProcessPaymentCommand) (domain.Order, error) {
	if s.processPaymentFn == nil {
		return domain.Order{}, nil
	}
	return s.processPaymentFn(ctx, cmd)
}

func (s *stubOrderService) UpdateShipping(ctx context.Context, cmd services.UpdateShippingCommand) (domain.Order, error) {
	if s.updateShippingFn == nil {
		return domain.Order{}, nil
	}
	return s.updateShippingFn(ctx, cmd)
}

type stubQuoteService struct {
	createFn           func(ctx context.Context, cmd services.CreateQuoteCommand) (domain.QuoteRequest, error)
	getFn              func(ctx context.Context, query services.GetQuoteQuery) (domain.QuoteRequest, error)
	listFn             func(ctx context.Context, query services.ListQuotesQuery) (domain.CursorPage[domain.QuoteRequest], error)
	respondFn          func(ctx context.Context, cmd services.RespondQuoteCommand) (domain.QuoteRequest, error)
	addMessageFn       func(ctx context.Context, cmd services.AddQuoteMessageCommand) (domain.QuoteRequest, error)
	cancelFn           func(ctx context.Context, cmd services.CancelQuoteCommand) (domain.QuoteRequest, error)
	expireOpenFn       func(ctx context.Context) (int64, error)
	getQuoteFn         func(ctx context.Context, quoteID string) (domain.QuoteRequest, error)
	completeViaOrderFn func(ctx context.Context, cmd services.CompleteQuoteCommand) (domain.QuoteRequest, error)
}

func (s *stubQuoteService) Create(ctx context.Context, cmd services.CreateQuoteCommand) (domain.QuoteRequest, error) {
	if s.createFn == nil {
		return domain.QuoteRequest{}, nil
	}
	return s.createFn(ctx, cmd)
}

func (s *stubQuoteService) Get(ctx context.Context, query services.GetQuoteQuery) (domain.QuoteRequest, error) {
	if s.getFn == nil {
		return domain.QuoteRequest{}, nil
	}
	return s.getFn(ctx, query)
}

func (s *stubQuoteService) List(ctx context.Context, query services.ListQuotesQuery) (domain.CursorPage[domain.QuoteRequest], error) {
	if s.listFn == nil {
		return domain.CursorPage[domain.QuoteRequest]{}, nil
	}
	return s.listFn(ctx, query)
}

func (s *stubQuoteService) Respond(ctx context.Context, cmd services.RespondQuoteCommand) (domain.QuoteRequest, error) {
	if s.respondFn == nil {
		return domain.QuoteRequest{}, nil
	}
	return s.respondFn(ctx, cmd)
}

func (s *stubQuoteService) AddMessage(ctx context.Context, cmd services.AddQuoteMessageCommand) (domain.QuoteRequest, error) {
	if s.addMessageFn == nil {
		return domain.QuoteRequest{}, nil
	}
	return s.addMessageFn(ctx, cmd)
}

func (s *stubQuoteService) Cancel(ctx context.Context, cmd services.CancelQuoteCommand) (domain.QuoteRequest, error) {
	if s.cancelFn == nil {
		return domain.QuoteRequest{}, nil
	}
	return s.cancelFn(ctx, cmd)
}

func (s *stubQuoteService) ExpireOpen(ctx context.Context) (int64, error) {
	if s.expireOpenFn == nil {
		return 0, nil
	}
	return s.expireOpenFn(ctx)
}

func (s *stubQuoteService) GetQuote(ctx context.Context, quoteID string) (domain.QuoteRequest, error) {
	if s.getQuoteFn == nil {
		return domain.QuoteRequest{}, nil
	}
	return s.getQuoteFn(ctx, quoteID)
}

func (s *stubQuoteService) CompleteViaOrder(ctx context.Context, cmd services.CompleteQuoteCommand) (domain.QuoteRequest, error) {
	if s.completeViaOrderFn == nil {
		return domain.QuoteRequest{}, nil
	}
	return s.completeViaOrderFn(ctx, cmd)
}

type stubSystemService struct {
	healthReportFn func(ctx context.Context) (domain.SystemHealthReport, error)
}

func (s *stubSystemService) HealthReport(ctx context.Context) (domain.SystemHealthReport, error) {
	if s.healthReportFn == nil {
		return domain.SystemHealthReport{Status: domain.HealthStatusOK}, nil
	}
	return s.healthReportFn(ctx)
}

func sampleOrder() domain.Order {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	return domain.Order{
		ID:            "ord_0001",
		OrderNumber:   "ORD-260829-0001",
		UserID:        "usr_customer",
		AddressID:     "adr_0001",
		Status:        domain.OrderStatusPending,
		PaymentMethod: "card",
		PaymentStatus: domain.PaymentStatusPending,
		Subtotal:      decimal.RequireFromString("200"),
		Tax:           decimal.RequireFromString("20"),
		Shipping:      decimal.RequireFromString("0"),
		Discount:      decimal.RequireFromString("0"),
		Total:         decimal.RequireFromString("220"),
		CreatedAt:     now,
		UpdatedAt:     now,
		Items: []domain.OrderItem{{
			ID:        "itm_0001",
			OrderID:   "ord_0001",
			ProductID: "prd_0001",
			SellerID:  "usr_artisan",
			Name:      "walnut jewellery box",
			Quantity:  2,
			UnitPrice: decimal.RequireFromString("100"),
			Total:     decimal.RequireFromString("200"),
		}},
	}
}

func sampleQuote() domain.QuoteRequest {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	return domain.QuoteRequest{
		ID:             "qte_0001",
		ProductID:      "prd_0001",
		CustomerID:     "usr_customer",
		ArtisanID:      "usr_artisan",
		Specifications: "engrave initials",
		RequestedPrice: decimal.RequireFromString("50"),
		LastOfferBy:    domain.PartyCustomer,
		Status:         domain.QuoteStatusPending,
		ExpiresAt:      now.Add(7 * 24 * time.Hour),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func newTestRouter(orders services.OrderService, quotes services.QuoteService) http.Handler {
	opts := []Option{}
	if orders != nil {
		h, err := NewOrderHandlers(orders)
		if err != nil {
			panic(err)
		}
		opts = append(opts, WithOrderHandlers(h))
	}
	if quotes != nil {
		h, err := NewQuoteHandlers(quotes)
		if err != nil {
			panic(err)
		}
		opts = append(opts, WithQuoteHandlers(h))
	}
	return NewRouter(opts...)
}

func doRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func authedRequest(method, target, actorID string, body *string) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(*body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if actorID != "" {
		req.Header.Set(auth.ActorHeader, actorID)
	}
	return req
}
