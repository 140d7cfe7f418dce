package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	domain "github.com/craftmarket/api/internal/domain"
	"github.com/craftmarket/api/internal/repositories"
)

const (
	testCustomerID = "usr_customer"
	testArtisanID  = "usr_artisan"
	testAdminID    = "usr_admin"
	testOtherID    = "usr_other"
)

func testUsers() map[string]domain.User {
	return map[string]domain.User{
		testCustomerID: {ID: testCustomerID, Role: domain.RoleCustomer},
		testArtisanID:  {ID: testArtisanID, Role: domain.RoleArtisan},
		testAdminID:    {ID: testAdminID, Role: domain.RoleAdmin},
		testOtherID:    {ID: testOtherID, Role: domain.RoleCustomer},
	}
}

func testPricing() PricingPolicy {
	return PricingPolicy{
		TaxRate:      decimal.RequireFromString("0.10"),
		ShippingFlat: decimal.Zero,
	}
}

type orderFixture struct {
	orders   *stubOrderRepository
	products *stubProductRepository
	carts    *stubCartRepository
	counters *stubCounterRepository
	quotes   *stubQuoteCompleter
	events   *capturePublisher
	service  OrderService
}

func newOrderFixture(t *testing.T, mutate func(deps *OrderServiceDeps)) *orderFixture {
	t.Helper()

	fx := &orderFixture{
		orders:   &stubOrderRepository{},
		products: &stubProductRepository{},
		carts:    &stubCartRepository{},
		counters: &stubCounterRepository{},
		quotes:   &stubQuoteCompleter{},
		events:   &capturePublisher{},
	}

	validator, err := NewCartValidator(CartValidatorDeps{Products: fx.products})
	if err != nil {
		t.Fatalf("new cart validator: %v", err)
	}

	deps := OrderServiceDeps{
		Orders:      fx.orders,
		Quotes:      fx.quotes,
		Products:    fx.products,
		Users:       &stubUserRepository{users: testUsers()},
		Addresses:   &stubAddressRepository{},
		Carts:       fx.carts,
		Counters:    fx.counters,
		Validator:   validator,
		Clock:       fixedClock,
		IDGenerator: sequentialIDs("id"),
		Events:      fx.events,
		Pricing:     testPricing(),
	}
	if mutate != nil {
		mutate(&deps)
	}

	service, err := NewOrderService(deps)
	if err != nil {
		t.Fatalf("new order service: %v", err)
	}
	fx.service = service
	return fx
}

func publishedProduct(id string, price int64, quantity int) domain.Product {
	return domain.Product{
		ID:        id,
		SellerID:  testArtisanID,
		Name:      "walnut jewellery box",
		Status:    domain.ProductStatusPublished,
		Price:     decimal.NewFromInt(price),
		Quantity:  quantity,
		ImageURLs: []string{"https://img.example/" + id + ".jpg"},
	}
}

func TestCreateFromCartComputesTotals(t *testing.T) {
	product := publishedProduct("prd_box", 100, 10)

	var (
		inserted    *domain.Order
		stockDeltas []int
		cartCleared bool
	)

	fx := newOrderFixture(t, nil)
	fx.products.findByIDsFn = func(_ context.Context, _ []string) (map[string]domain.Product, error) {
		return map[string]domain.Product{product.ID: product}, nil
	}
	fx.products.adjustStockFn = func(_ context.Context, productID string, delta int) error {
		if productID != product.ID {
			t.Fatalf("unexpected stock adjustment for %s", productID)
		}
		stockDeltas = append(stockDeltas, delta)
		return nil
	}
	fx.carts.getCartFn = func(_ context.Context, userID string) ([]domain.CartItem, error) {
		return []domain.CartItem{{UserID: userID, ProductID: product.ID, Quantity: 2}}, nil
	}
	fx.carts.clearFn = func(context.Context, string) error {
		cartCleared = true
		return nil
	}
	fx.orders.insertFn = func(_ context.Context, order domain.Order) error {
		inserted = &order
		return nil
	}

	order, err := fx.service.CreateFromCart(context.Background(), CreateOrderFromCartCommand{
		ActorID:       testCustomerID,
		AddressID:     "adr_home",
		PaymentMethod: "card",
	})
	if err != nil {
		t.Fatalf("create from cart: %v", err)
	}

	if got := order.Subtotal.String(); got != "200" {
		t.Fatalf("subtotal = %s, want 200", got)
	}
	if got := order.Tax.String(); got != "20" {
		t.Fatalf("tax = %s, want 20", got)
	}
	if got := order.Total.String(); got != "220" {
		t.Fatalf("total = %s, want 220", got)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("status = %s, want pending", order.Status)
	}
	if order.OrderNumber != "ORD-260829-0001" {
		t.Fatalf("order number = %s", order.OrderNumber)
	}
	if len(order.Items) != 1 || order.Items[0].Quantity != 2 || order.Items[0].SellerID != testArtisanID {
		t.Fatalf("unexpected items: %+v", order.Items)
	}
	if len(order.History) != 1 || order.History[0].Status != domain.OrderStatusPending {
		t.Fatalf("unexpected history: %+v", order.History)
	}

	if inserted == nil {
		t.Fatal("order was not persisted")
	}
	if len(stockDeltas) != 1 || stockDeltas[0] != -2 {
		t.Fatalf("stock deltas = %v, want [-2]", stockDeltas)
	}
	if !cartCleared {
		t.Fatal("cart was not cleared")
	}
	if created := fx.events.byType(orderEventCreated); len(created) != 1 {
		t.Fatalf("order.created events = %d, want 1", len(created))
	}
}

func TestCreateFromCartRejectsInvalidCart(t *testing.T) {
	product := publishedProduct("prd_box", 100, 1)

	fx := newOrderFixture(t, nil)
	fx.products.findByIDsFn = func(context.Context, []string) (map[string]domain.Product, error) {
		return map[string]domain.Product{product.ID: product}, nil
	}
	fx.carts.getCartFn = func(_ context.Context, userID string) ([]domain.CartItem, error) {
		return []domain.CartItem{{UserID: userID, ProductID: product.ID, Quantity: 5}}, nil
	}
	fx.orders.insertFn = func(context.Context, domain.Order) error {
		t.Fatal("insert must not be reached for an invalid cart")
		return nil
	}

	_, err := fx.service.CreateFromCart(context.Background(), CreateOrderFromCartCommand{
		ActorID:       testCustomerID,
		AddressID:     "adr_home",
		PaymentMethod: "card",
	})

	var cartErr *InvalidCartError
	if !errors.As(err, &cartErr) {
		t.Fatalf("err = %v, want InvalidCartError", err)
	}
	if len(cartErr.Validation.Problems) != 1 || cartErr.Validation.Problems[0].Code != "insufficient_stock" {
		t.Fatalf("unexpected problems: %+v", cartErr.Validation.Problems)
	}
}

func TestCreateFromCartRetriesOrderNumberConflict(t *testing.T) {
	product := publishedProduct("prd_box", 100, 10)

	attempts := 0
	fx := newOrderFixture(t, nil)
	fx.products.findByIDsFn = func(context.Context, []string) (map[string]domain.Product, error) {
		return map[string]domain.Product{product.ID: product}, nil
	}
	fx.carts.getCartFn = func(_ context.Context, userID string) ([]domain.CartItem, error) {
		return []domain.CartItem{{UserID: userID, ProductID: product.ID, Quantity: 1}}, nil
	}
	fx.orders.insertFn = func(_ context.Context, order domain.Order) error {
		attempts++
		if attempts == 1 {
			return conflictErr("duplicate order number")
		}
		return nil
	}

	order, err := fx.service.CreateFromCart(context.Background(), CreateOrderFromCartCommand{
		ActorID:       testCustomerID,
		AddressID:     "adr_home",
		PaymentMethod: "card",
	})
	if err != nil {
		t.Fatalf("create from cart: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("insert attempts = %d, want 2", attempts)
	}
	if order.OrderNumber != "ORD-260829-0002" {
		t.Fatalf("order number = %s, want second sequence value", order.OrderNumber)
	}
}

func TestCreateFromCartRequiresCustomerRole(t *testing.T) {
	fx := newOrderFixture(t, nil)

	_, err := fx.service.CreateFromCart(context.Background(), CreateOrderFromCartCommand{
		ActorID:       testArtisanID,
		AddressID:     "adr_home",
		PaymentMethod: "card",
	})
	if !errors.Is(err, ErrOrderForbidden) {
		t.Fatalf("err = %v, want ErrOrderForbidden", err)
	}
}

func TestCreateFromQuoteUsesFinalPrice(t *testing.T) {
	product := publishedProduct("prd_custom", 100, 3)
	final := decimal.NewFromInt(60)

	var completed *CompleteQuoteCommand
	fx := newOrderFixture(t, nil)
	fx.products.findByIDFn = func(context.Context, string) (domain.Product, error) {
		return product, nil
	}
	fx.quotes.getQuoteFn = func(_ context.Context, quoteID string) (domain.QuoteRequest, error) {
		return domain.QuoteRequest{
			ID:         quoteID,
			ProductID:  product.ID,
			CustomerID: testCustomerID,
			ArtisanID:  testArtisanID,
			Status:     domain.QuoteStatusAccepted,
			FinalPrice: &final,
		}, nil
	}
	fx.quotes.completeViaOrders = func(_ context.Context, cmd CompleteQuoteCommand) (domain.QuoteRequest, error) {
		completed = &cmd
		return domain.QuoteRequest{ID: cmd.QuoteID, Status: domain.QuoteStatusCompleted}, nil
	}

	order, err := fx.service.CreateFromQuote(context.Background(), CreateOrderFromQuoteCommand{
		ActorID:       testCustomerID,
		QuoteID:       "qte_1",
		AddressID:     "adr_home",
		PaymentMethod: "card",
	})
	if err != nil {
		t.Fatalf("create from quote: %v", err)
	}

	if len(order.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(order.Items))
	}
	item := order.Items[0]
	if item.Quantity != 1 || !item.UnitPrice.Equal(final) {
		t.Fatalf("item = %+v, want quantity 1 at 60", item)
	}
	if got := order.Total.String(); got != "66" {
		t.Fatalf("total = %s, want 66 (60 + 10%% tax)", got)
	}
	if order.QuoteRef == nil || *order.QuoteRef != "qte_1" {
		t.Fatalf("quote ref = %v", order.QuoteRef)
	}
	if completed == nil || completed.QuoteID != "qte_1" || completed.OrderID != order.ID {
		t.Fatalf("quote completion = %+v", completed)
	}
}

func TestCreateFromQuoteRequiresAcceptedStatus(t *testing.T) {
	fx := newOrderFixture(t, nil)
	fx.quotes.getQuoteFn = func(_ context.Context, quoteID string) (domain.QuoteRequest, error) {
		return domain.QuoteRequest{
			ID:         quoteID,
			CustomerID: testCustomerID,
			Status:     domain.QuoteStatusPending,
		}, nil
	}

	_, err := fx.service.CreateFromQuote(context.Background(), CreateOrderFromQuoteCommand{
		ActorID:       testCustomerID,
		QuoteID:       "qte_1",
		AddressID:     "adr_home",
		PaymentMethod: "card",
	})
	if !errors.Is(err, ErrQuoteInvalidState) {
		t.Fatalf("err = %v, want ErrQuoteInvalidState", err)
	}
}

func existingOrder(status domain.OrderStatus) domain.Order {
	return domain.Order{
		ID:            "ord_1",
		OrderNumber:   "ORD-260829-0001",
		UserID:        testCustomerID,
		Status:        status,
		PaymentMethod: "card",
		PaymentStatus: domain.PaymentStatusPending,
		Subtotal:      decimal.NewFromInt(200),
		Tax:           decimal.NewFromInt(20),
		Total:         decimal.NewFromInt(220),
		CreatedAt:     fixedClock(),
		UpdatedAt:     fixedClock(),
		Items: []domain.OrderItem{{
			ID:        "itm_1",
			OrderID:   "ord_1",
			ProductID: "prd_box",
			SellerID:  testArtisanID,
			Quantity:  2,
			UnitPrice: decimal.NewFromInt(100),
			Total:     decimal.NewFromInt(200),
		}},
	}
}

func TestTransitionStatusArtisanStepsForward(t *testing.T) {
	order := existingOrder(domain.OrderStatusPaid)

	var updated *domain.Order
	var logged *domain.OrderStatusChange
	fx := newOrderFixture(t, nil)
	fx.orders.findByIDFn = func(context.Context, string) (domain.Order, error) {
		return order, nil
	}
	fx.orders.updateFn = func(_ context.Context, o domain.Order) error {
		updated = &o
		return nil
	}
	fx.orders.appendStatusChangeFn = func(_ context.Context, change domain.OrderStatusChange) error {
		logged = &change
		return nil
	}

	got, err := fx.service.TransitionStatus(context.Background(), OrderStatusTransitionCommand{
		ActorID:      testArtisanID,
		OrderID:      order.ID,
		TargetStatus: domain.OrderStatusProcessing,
	})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if got.Status != domain.OrderStatusProcessing {
		t.Fatalf("status = %s, want processing", got.Status)
	}
	if updated == nil || updated.Status != domain.OrderStatusProcessing {
		t.Fatal("update was not persisted")
	}
	if logged == nil || logged.Status != domain.OrderStatusProcessing || logged.ActorID != testArtisanID {
		t.Fatalf("status change = %+v", logged)
	}
	if events := fx.events.byType(orderEventStatusChanged); len(events) != 1 {
		t.Fatalf("status changed events = %d, want 1", len(events))
	}
}

func TestTransitionStatusRejectsNonAdjacentStep(t *testing.T) {
	// Skipping intermediate statuses is an invalid transition even for actors
	// who could otherwise drive each individual step.
	fx := newOrderFixture(t, nil)
	fx.orders.findByIDFn = func(context.Context, string) (domain.Order, error) {
		return existingOrder(domain.OrderStatusPaid), nil
	}

	_, err := fx.service.TransitionStatus(context.Background(), OrderStatusTransitionCommand{
		ActorID:      testArtisanID,
		OrderID:      "ord_1",
		TargetStatus: domain.OrderStatusDelivered,
	})
	if !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("err = %v, want ErrOrderInvalidState", err)
	}
}

func TestTransitionStatusCustomerCannotStepForward(t *testing.T) {
	fx := newOrderFixture(t, nil)
	fx.orders.findByIDFn = func(context.Context, string) (domain.Order, error) {
		return existingOrder(domain.OrderStatusPaid), nil
	}

	_, err := fx.service.TransitionStatus(context.Background(), OrderStatusTransitionCommand{
		ActorID:      testCustomerID,
		OrderID:      "ord_1",
		TargetStatus: domain.OrderStatusProcessing,
	})
	if !errors.Is(err, ErrOrderForbidden) {
		t.Fatalf("err = %v, want ErrOrderForbidden", err)
	}
}

func TestTransitionStatusTerminalOrderRejected(t *testing.T) {
	fx := newOrderFixture(t, nil)
	fx.orders.findByIDFn = func(context.Context, string) (domain.Order, error) {
		return existingOrder(domain.OrderStatusCancelled), nil
	}

	_, err := fx.service.TransitionStatus(context.Background(), OrderStatusTransitionCommand{
		ActorID:      testAdminID,
		OrderID:      "ord_1",
		TargetStatus: domain.OrderStatusPaid,
	})
	if !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("err = %v, want ErrOrderInvalidState", err)
	}
}

func TestCancelRestoresStockAndRefundsPayment(t *testing.T) {
	order := existingOrder(domain.OrderStatusPaid)
	order.PaymentStatus = domain.PaymentStatusCompleted

	var restored []int
	var updated *domain.Order
	fx := newOrderFixture(t, nil)
	fx.orders.findByIDFn = func(context.Context, string) (domain.Order, error) {
		return order, nil
	}
	fx.orders.updateFn = func(_ context.Context, o domain.Order) error {
		updated = &o
		return nil
	}
	fx.products.adjustStockFn = func(_ context.Context, productID string, delta int) error {
		restored = append(restored, delta)
		return nil
	}

	got, err := fx.service.Cancel(context.Background(), CancelOrderCommand{
		ActorID: testCustomerID,
		OrderID: order.ID,
		Reason:  "changed my mind",
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != domain.OrderStatusCancelled {
		t.Fatalf("status = %s, want cancelled", got.Status)
	}
	if got.CancelledAt == nil {
		t.Fatal("cancelled timestamp not set")
	}
	if got.PaymentStatus != domain.PaymentStatusRefunded {
		t.Fatalf("payment status = %s, want refunded", got.PaymentStatus)
	}
	if len(restored) != 1 || restored[0] != 2 {
		t.Fatalf("restored deltas = %v, want [2]", restored)
	}
	if updated == nil {
		t.Fatal("update was not persisted")
	}
}

func TestCancelForeignOrderForbidden(t *testing.T) {
	fx := newOrderFixture(t, nil)
	fx.orders.findByIDFn = func(context.Context, string) (domain.Order, error) {
		return existingOrder(domain.OrderStatusPending), nil
	}

	_, err := fx.service.Cancel(context.Background(), CancelOrderCommand{
		ActorID: testOtherID,
		OrderID: "ord_1",
	})
	if !errors.Is(err, ErrOrderForbidden) {
		t.Fatalf("err = %v, want ErrOrderForbidden", err)
	}
}

func TestCancelDeliveredOrderRejected(t *testing.T) {
	fx := newOrderFixture(t, nil)
	fx.orders.findByIDFn = func(context.Context, string) (domain.Order, error) {
		return existingOrder(domain.OrderStatusDelivered), nil
	}

	_, err := fx.service.Cancel(context.Background(), CancelOrderCommand{
		ActorID: testCustomerID,
		OrderID: "ord_1",
	})
	if !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("err = %v, want ErrOrderInvalidState", err)
	}
}

func TestProcessPaymentMarksOrderPaid(t *testing.T) {
	var updated *domain.Order
	fx := newOrderFixture(t, nil)
	fx.orders.findByIDFn = func(context.Context, string) (domain.Order, error) {
		return existingOrder(domain.OrderStatusPending), nil
	}
	fx.orders.updateFn = func(_ context.Context, o domain.Order) error {
		updated = &o
		return nil
	}

	got, err := fx.service.ProcessPayment(context.Background(), ProcessPaymentCommand{
		ActorID:    testCustomerID,
		OrderID:    "ord_1",
		PaymentRef: "pay_abc123",
	})
	if err != nil {
		t.Fatalf("process payment: %v", err)
	}
	if got.Status != domain.OrderStatusPaid {
		t.Fatalf("status = %s, want paid", got.Status)
	}
	if got.PaymentStatus != domain.PaymentStatusCompleted {
		t.Fatalf("payment status = %s, want completed", got.PaymentStatus)
	}
	if got.PaymentRef == nil || *got.PaymentRef != "pay_abc123" {
		t.Fatalf("payment ref = %v", got.PaymentRef)
	}
	if got.PaidAt == nil {
		t.Fatal("paid timestamp not set")
	}
	if updated == nil {
		t.Fatal("update was not persisted")
	}
	if events := fx.events.byType(orderEventPaymentCompleted); len(events) != 1 {
		t.Fatalf("payment events = %d, want 1", len(events))
	}
}

func TestProcessPaymentRequiresPendingStatus(t *testing.T) {
	fx := newOrderFixture(t, nil)
	fx.orders.findByIDFn = func(context.Context, string) (domain.Order, error) {
		return existingOrder(domain.OrderStatusPaid), nil
	}

	_, err := fx.service.ProcessPayment(context.Background(), ProcessPaymentCommand{
		ActorID:    testCustomerID,
		OrderID:    "ord_1",
		PaymentRef: "pay_abc123",
	})
	if !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("err = %v, want ErrOrderInvalidState", err)
	}
}

func TestUpdateShippingBySellerInOrder(t *testing.T) {
	var updated *domain.Order
	fx := newOrderFixture(t, nil)
	fx.orders.findByIDFn = func(context.Context, string) (domain.Order, error) {
		return existingOrder(domain.OrderStatusProcessing), nil
	}
	fx.orders.updateFn = func(_ context.Context, o domain.Order) error {
		updated = &o
		return nil
	}

	got, err := fx.service.UpdateShipping(context.Background(), UpdateShippingCommand{
		ActorID:      testArtisanID,
		OrderID:      "ord_1",
		Carrier:      "yamato",
		TrackingCode: "YT123456789",
	})
	if err != nil {
		t.Fatalf("update shipping: %v", err)
	}
	if got.TrackingCarrier == nil || *got.TrackingCarrier != "yamato" {
		t.Fatalf("carrier = %v", got.TrackingCarrier)
	}
	if got.TrackingCode == nil || *got.TrackingCode != "YT123456789" {
		t.Fatalf("tracking code = %v", got.TrackingCode)
	}
	if updated == nil {
		t.Fatal("update was not persisted")
	}
}

func TestUpdateShippingByUnrelatedSellerForbidden(t *testing.T) {
	order := existingOrder(domain.OrderStatusProcessing)
	order.Items[0].SellerID = "usr_someone_else"

	fx := newOrderFixture(t, nil)
	fx.orders.findByIDFn = func(context.Context, string) (domain.Order, error) {
		return order, nil
	}

	_, err := fx.service.UpdateShipping(context.Background(), UpdateShippingCommand{
		ActorID:      testArtisanID,
		OrderID:      "ord_1",
		Carrier:      "yamato",
		TrackingCode: "YT123456789",
	})
	if !errors.Is(err, ErrOrderForbidden) {
		t.Fatalf("err = %v, want ErrOrderForbidden", err)
	}
}

func TestListOrdersScopesByRole(t *testing.T) {
	cases := []struct {
		name       string
		actorID    string
		wantUser   string
		wantSeller string
	}{
		{name: "customer sees own orders", actorID: testCustomerID, wantUser: testCustomerID},
		{name: "artisan sees orders with their items", actorID: testArtisanID, wantSeller: testArtisanID},
		{name: "admin sees everything", actorID: testAdminID},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var captured repositories.OrderListFilter
			fx := newOrderFixture(t, nil)
			fx.orders.listFn = func(_ context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
				captured = filter
				return domain.CursorPage[domain.Order]{}, nil
			}

			if _, err := fx.service.ListOrders(context.Background(), ListOrdersQuery{ActorID: tc.actorID}); err != nil {
				t.Fatalf("list orders: %v", err)
			}
			if captured.UserID != tc.wantUser {
				t.Fatalf("user filter = %q, want %q", captured.UserID, tc.wantUser)
			}
			if captured.SellerID != tc.wantSeller {
				t.Fatalf("seller filter = %q, want %q", captured.SellerID, tc.wantSeller)
			}
		})
	}
}

func TestGetOrderHiddenFromStrangers(t *testing.T) {
	fx := newOrderFixture(t, nil)
	fx.orders.findByIDFn = func(context.Context, string) (domain.Order, error) {
		return existingOrder(domain.OrderStatusPending), nil
	}

	if _, err := fx.service.GetOrder(context.Background(), GetOrderQuery{ActorID: testCustomerID, OrderID: "ord_1"}); err != nil {
		t.Fatalf("owner read: %v", err)
	}
	if _, err := fx.service.GetOrder(context.Background(), GetOrderQuery{ActorID: testArtisanID, OrderID: "ord_1"}); err != nil {
		t.Fatalf("seller read: %v", err)
	}
	_, err := fx.service.GetOrder(context.Background(), GetOrderQuery{ActorID: testOtherID, OrderID: "ord_1"})
	if !errors.Is(err, ErrOrderForbidden) {
		t.Fatalf("stranger read err = %v, want ErrOrderForbidden", err)
	}
}
