package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	domain "github.com/craftmarket/api/internal/domain"
	"github.com/craftmarket/api/internal/repositories"
)

const (
	orderEventCreated          = "order.created"
	orderEventStatusChanged    = "order.status.changed"
	orderEventPaymentCompleted = "order.payment.completed"

	orderIDPrefix     = "ord_"
	orderItemIDPrefix = "itm_"
	statusLogIDPrefix = "osc_"

	orderNumberCounterPrefix = "orders:"
	orderNumberDateLayout    = "060102"
	orderNumberAttempts      = 3

	defaultOrderNumberPrefix = "ORD"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderForbidden indicates the actor lacks the role or ownership for the action.
	ErrOrderForbidden = errors.New("order: forbidden")
	// ErrOrderInvalidState indicates an invalid status transition was attempted.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrOrderConflict indicates concurrent modification or duplicates.
	ErrOrderConflict = errors.New("order: conflict")
)

// InvalidCartError reports checkout rejection with the per-item problems attached.
type InvalidCartError struct {
	Validation CartValidation
}

func (e *InvalidCartError) Error() string {
	return fmt.Sprintf("order: cart failed validation with %d problem(s)", len(e.Validation.Problems))
}

var orderStateTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending:    {domain.OrderStatusPaid, domain.OrderStatusCancelled},
	domain.OrderStatusPaid:       {domain.OrderStatusProcessing, domain.OrderStatusCancelled, domain.OrderStatusRefunded},
	domain.OrderStatusProcessing: {domain.OrderStatusShipped, domain.OrderStatusCancelled, domain.OrderStatusRefunded},
	domain.OrderStatusShipped:    {domain.OrderStatusDelivered, domain.OrderStatusCancelled, domain.OrderStatusRefunded},
	domain.OrderStatusDelivered:  {domain.OrderStatusRefunded},
}

// artisanTransitions is the single forward step a seller may drive from each status.
var artisanTransitions = map[domain.OrderStatus]domain.OrderStatus{
	domain.OrderStatusPaid:       domain.OrderStatusProcessing,
	domain.OrderStatusProcessing: domain.OrderStatusShipped,
	domain.OrderStatusShipped:    domain.OrderStatusDelivered,
}

var customerCancellableStatuses = []domain.OrderStatus{
	domain.OrderStatusPending,
	domain.OrderStatusPaid,
	domain.OrderStatusProcessing,
	domain.OrderStatusShipped,
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Quotes      QuoteCompleter
	Products    repositories.ProductRepository
	Users       repositories.UserRepository
	Addresses   repositories.AddressRepository
	Carts       repositories.CartRepository
	Counters    repositories.CounterRepository
	Validator   CartValidator
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
	Events      NotificationPublisher
	Logger      func(ctx context.Context, event string, fields map[string]any)
	Pricing     PricingPolicy
}

type orderService struct {
	orders     repositories.OrderRepository
	quotes     QuoteCompleter
	products   repositories.ProductRepository
	users      repositories.UserRepository
	addresses  repositories.AddressRepository
	carts      repositories.CartRepository
	counters   repositories.CounterRepository
	validator  CartValidator
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	newID      func() string
	events     NotificationPublisher
	logger     func(context.Context, string, map[string]any)
	pricing    PricingPolicy
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("order service: product repository is required")
	}
	if deps.Users == nil {
		return nil, errors.New("order service: user repository is required")
	}
	if deps.Addresses == nil {
		return nil, errors.New("order service: address repository is required")
	}
	if deps.Carts == nil {
		return nil, errors.New("order service: cart repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter repository is required")
	}
	if deps.Validator == nil {
		return nil, errors.New("order service: cart validator is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	pricing := deps.Pricing
	if strings.TrimSpace(pricing.OrderNumberPrefix) == "" {
		pricing.OrderNumberPrefix = defaultOrderNumberPrefix
	}

	return &orderService{
		orders:     deps.Orders,
		quotes:     deps.Quotes,
		products:   deps.Products,
		users:      deps.Users,
		addresses:  deps.Addresses,
		carts:      deps.Carts,
		counters:   deps.Counters,
		validator:  deps.Validator,
		unitOfWork: unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:   idGen,
		events:  deps.Events,
		logger:  logger,
		pricing: pricing,
	}, nil
}

func (s *orderService) CreateFromCart(ctx context.Context, cmd CreateOrderFromCartCommand) (Order, error) {
	actor, err := s.loadActor(ctx, cmd.ActorID)
	if err != nil {
		return Order{}, err
	}
	if actor.Role != domain.RoleCustomer {
		return Order{}, fmt.Errorf("%w: only customers can place orders", ErrOrderForbidden)
	}
	if err := s.checkAddress(ctx, actor.ID, cmd.AddressID); err != nil {
		return Order{}, err
	}
	if strings.TrimSpace(cmd.PaymentMethod) == "" {
		return Order{}, fmt.Errorf("%w: payment method is required", ErrOrderInvalidInput)
	}

	cart, err := s.carts.GetCart(ctx, actor.ID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	validation, err := s.validator.Validate(ctx, actor.ID, cart)
	if err != nil {
		return Order{}, err
	}
	if !validation.Valid {
		return Order{}, &InvalidCartError{Validation: validation}
	}

	now := s.now()
	order := Order{
		ID:            orderIDPrefix + s.newID(),
		UserID:        actor.ID,
		AddressID:     strings.TrimSpace(cmd.AddressID),
		Status:        domain.OrderStatusPending,
		PaymentMethod: strings.TrimSpace(cmd.PaymentMethod),
		PaymentStatus: domain.PaymentStatusPending,
		Notes:         strings.TrimSpace(cmd.Notes),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	for _, entry := range cart {
		product := validation.Products[entry.ProductID]
		order.Items = append(order.Items, s.snapshotItem(order.ID, product, entry.Quantity, product.Price))
	}
	s.applyTotals(&order, validation.Subtotal)
	order.History = []OrderStatusChange{s.statusChange(order.ID, domain.OrderStatusPending, "order placed", actor.ID, now)}

	err = s.insertWithFreshNumber(ctx, &order, now, func(txCtx context.Context) error {
		for _, item := range order.Items {
			if err := s.products.AdjustStock(txCtx, item.ProductID, -item.Quantity); err != nil {
				return s.mapRepositoryError(err)
			}
		}
		if err := s.orders.Insert(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		return s.mapRepositoryError(s.carts.Clear(txCtx, actor.ID))
	})
	if err != nil {
		return Order{}, err
	}

	s.publishNotification(ctx, Notification{
		Type:        orderEventCreated,
		SubjectID:   order.ID,
		ActorID:     actor.ID,
		RecipientID: order.UserID,
		OccurredAt:  now,
		Metadata: map[string]any{
			"orderNumber": order.OrderNumber,
			"total":       order.Total.String(),
		},
	})

	return order, nil
}

func (s *orderService) CreateFromQuote(ctx context.Context, cmd CreateOrderFromQuoteCommand) (Order, error) {
	if s.quotes == nil {
		return Order{}, errors.New("order service: quote service not configured")
	}

	actor, err := s.loadActor(ctx, cmd.ActorID)
	if err != nil {
		return Order{}, err
	}
	if actor.Role != domain.RoleCustomer {
		return Order{}, fmt.Errorf("%w: only customers can place orders", ErrOrderForbidden)
	}
	if err := s.checkAddress(ctx, actor.ID, cmd.AddressID); err != nil {
		return Order{}, err
	}
	if strings.TrimSpace(cmd.PaymentMethod) == "" {
		return Order{}, fmt.Errorf("%w: payment method is required", ErrOrderInvalidInput)
	}

	quote, err := s.quotes.GetQuote(ctx, cmd.QuoteID)
	if err != nil {
		return Order{}, err
	}
	if quote.CustomerID != actor.ID {
		return Order{}, fmt.Errorf("%w: quote belongs to another customer", ErrOrderForbidden)
	}
	if quote.Status != domain.QuoteStatusAccepted || quote.FinalPrice == nil {
		return Order{}, fmt.Errorf("%w: quote is %s, must be accepted", ErrQuoteInvalidState, quote.Status)
	}

	product, err := s.products.FindByID(ctx, quote.ProductID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	now := s.now()
	order := Order{
		ID:            orderIDPrefix + s.newID(),
		UserID:        actor.ID,
		AddressID:     strings.TrimSpace(cmd.AddressID),
		Status:        domain.OrderStatusPending,
		PaymentMethod: strings.TrimSpace(cmd.PaymentMethod),
		PaymentStatus: domain.PaymentStatusPending,
		QuoteRef:      valuePtr(quote.ID),
		Notes:         strings.TrimSpace(cmd.Notes),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	order.Items = []OrderItem{s.snapshotItem(order.ID, product, 1, *quote.FinalPrice)}
	s.applyTotals(&order, *quote.FinalPrice)
	order.History = []OrderStatusChange{s.statusChange(order.ID, domain.OrderStatusPending, "order placed from quote", actor.ID, now)}

	err = s.insertWithFreshNumber(ctx, &order, now, func(txCtx context.Context) error {
		if err := s.products.AdjustStock(txCtx, product.ID, -1); err != nil {
			return s.mapRepositoryError(err)
		}
		if err := s.orders.Insert(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		_, err := s.quotes.CompleteViaOrder(txCtx, CompleteQuoteCommand{
			QuoteID: quote.ID,
			OrderID: order.ID,
			ActorID: actor.ID,
		})
		return err
	})
	if err != nil {
		return Order{}, err
	}

	s.publishNotification(ctx, Notification{
		Type:        orderEventCreated,
		SubjectID:   order.ID,
		ActorID:     actor.ID,
		RecipientID: quote.ArtisanID,
		OccurredAt:  now,
		Metadata: map[string]any{
			"orderNumber": order.OrderNumber,
			"quote":       quote.ID,
			"total":       order.Total.String(),
		},
	})

	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, query GetOrderQuery) (Order, error) {
	actor, err := s.loadActor(ctx, query.ActorID)
	if err != nil {
		return Order{}, err
	}

	order, err := s.findOrder(ctx, query.OrderID)
	if err != nil {
		return Order{}, err
	}
	if !canReadOrder(actor, order) {
		return Order{}, fmt.Errorf("%w: not a participant of this order", ErrOrderForbidden)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, query ListOrdersQuery) (domain.CursorPage[Order], error) {
	actor, err := s.loadActor(ctx, query.ActorID)
	if err != nil {
		return domain.CursorPage[Order]{}, err
	}

	filter := repositories.OrderListFilter{
		Status:     query.Status,
		DateRange:  query.DateRange,
		Pagination: query.Pagination,
	}
	switch actor.Role {
	case domain.RoleCustomer:
		filter.UserID = actor.ID
	case domain.RoleArtisan:
		filter.SellerID = actor.ID
	case domain.RoleAdmin:
		// Admins see every order.
	default:
		return domain.CursorPage[Order]{}, fmt.Errorf("%w: unknown role %q", ErrOrderForbidden, actor.Role)
	}

	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *orderService) TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error) {
	target := domain.OrderStatus(strings.TrimSpace(string(cmd.TargetStatus)))
	if target == "" {
		return Order{}, fmt.Errorf("%w: target status is required", ErrOrderInvalidInput)
	}

	// Cancellation restores stock, so it always routes through the cancel flow.
	if target == domain.OrderStatusCancelled {
		return s.Cancel(ctx, CancelOrderCommand{
			ActorID: cmd.ActorID,
			OrderID: cmd.OrderID,
			Reason:  cmd.Note,
		})
	}

	actor, err := s.loadActor(ctx, cmd.ActorID)
	if err != nil {
		return Order{}, err
	}

	order, err := s.findOrder(ctx, cmd.OrderID)
	if err != nil {
		return Order{}, err
	}

	prevStatus := order.Status
	now := s.now()

	// Adjacency is checked before authorization so an impossible step is
	// reported as invalid even to actors who could never drive it.
	if err := s.applyStatusTransition(&order, target, now); err != nil {
		return Order{}, err
	}
	if err := authorizeTransition(actor, order, prevStatus, target); err != nil {
		return Order{}, err
	}

	change := s.statusChange(order.ID, target, strings.TrimSpace(cmd.Note), actor.ID, now)
	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		return s.mapRepositoryError(s.orders.AppendStatusChange(txCtx, change))
	})
	if err != nil {
		return Order{}, err
	}
	order.History = append(order.History, change)

	s.publishStatusChanged(ctx, order, prevStatus, actor.ID, now, nil)
	return order, nil
}

func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	actor, err := s.loadActor(ctx, cmd.ActorID)
	if err != nil {
		return Order{}, err
	}

	order, err := s.findOrder(ctx, cmd.OrderID)
	if err != nil {
		return Order{}, err
	}

	if !slices.Contains(customerCancellableStatuses, order.Status) {
		return Order{}, fmt.Errorf("%w: order status %q cannot be cancelled", ErrOrderInvalidState, order.Status)
	}
	switch actor.Role {
	case domain.RoleAdmin:
	case domain.RoleCustomer:
		if order.UserID != actor.ID {
			return Order{}, fmt.Errorf("%w: order belongs to another customer", ErrOrderForbidden)
		}
	default:
		return Order{}, fmt.Errorf("%w: role %q cannot cancel orders", ErrOrderForbidden, actor.Role)
	}

	now := s.now()
	prevStatus := order.Status
	reason := strings.TrimSpace(cmd.Reason)

	if err := s.applyStatusTransition(&order, domain.OrderStatusCancelled, now); err != nil {
		return Order{}, err
	}
	if order.PaymentStatus == domain.PaymentStatusCompleted {
		order.PaymentStatus = domain.PaymentStatusRefunded
	}

	note := "order cancelled"
	if reason != "" {
		note = reason
	}
	change := s.statusChange(order.ID, domain.OrderStatusCancelled, note, actor.ID, now)

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		for _, item := range order.Items {
			if err := s.products.AdjustStock(txCtx, item.ProductID, item.Quantity); err != nil {
				return s.mapRepositoryError(err)
			}
		}
		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		return s.mapRepositoryError(s.orders.AppendStatusChange(txCtx, change))
	})
	if err != nil {
		return Order{}, err
	}
	order.History = append(order.History, change)

	metadata := map[string]any{}
	if reason != "" {
		metadata["reason"] = reason
	}
	s.publishStatusChanged(ctx, order, prevStatus, actor.ID, now, metadata)

	return order, nil
}

func (s *orderService) ProcessPayment(ctx context.Context, cmd ProcessPaymentCommand) (Order, error) {
	paymentRef := strings.TrimSpace(cmd.PaymentRef)
	if paymentRef == "" {
		return Order{}, fmt.Errorf("%w: payment reference is required", ErrOrderInvalidInput)
	}

	actor, err := s.loadActor(ctx, cmd.ActorID)
	if err != nil {
		return Order{}, err
	}

	order, err := s.findOrder(ctx, cmd.OrderID)
	if err != nil {
		return Order{}, err
	}
	if actor.Role != domain.RoleAdmin && order.UserID != actor.ID {
		return Order{}, fmt.Errorf("%w: order belongs to another customer", ErrOrderForbidden)
	}
	if order.Status != domain.OrderStatusPending {
		return Order{}, fmt.Errorf("%w: order status %q cannot accept payment", ErrOrderInvalidState, order.Status)
	}

	now := s.now()
	prevStatus := order.Status

	if err := s.applyStatusTransition(&order, domain.OrderStatusPaid, now); err != nil {
		return Order{}, err
	}
	order.PaymentStatus = domain.PaymentStatusCompleted
	order.PaymentRef = &paymentRef

	change := s.statusChange(order.ID, domain.OrderStatusPaid, "payment completed", actor.ID, now)
	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		return s.mapRepositoryError(s.orders.AppendStatusChange(txCtx, change))
	})
	if err != nil {
		return Order{}, err
	}
	order.History = append(order.History, change)

	s.publishNotification(ctx, Notification{
		Type:        orderEventPaymentCompleted,
		SubjectID:   order.ID,
		ActorID:     actor.ID,
		RecipientID: order.UserID,
		OccurredAt:  now,
		Metadata: map[string]any{
			"orderNumber": order.OrderNumber,
			"paymentRef":  paymentRef,
		},
	})
	s.publishStatusChanged(ctx, order, prevStatus, actor.ID, now, nil)

	return order, nil
}

func (s *orderService) UpdateShipping(ctx context.Context, cmd UpdateShippingCommand) (Order, error) {
	carrier := strings.TrimSpace(cmd.Carrier)
	trackingCode := strings.TrimSpace(cmd.TrackingCode)
	if carrier == "" || trackingCode == "" {
		return Order{}, fmt.Errorf("%w: carrier and tracking code are required", ErrOrderInvalidInput)
	}

	actor, err := s.loadActor(ctx, cmd.ActorID)
	if err != nil {
		return Order{}, err
	}

	order, err := s.findOrder(ctx, cmd.OrderID)
	if err != nil {
		return Order{}, err
	}
	switch actor.Role {
	case domain.RoleAdmin:
	case domain.RoleArtisan:
		if !orderHasSeller(order, actor.ID) {
			return Order{}, fmt.Errorf("%w: no items in this order belong to the seller", ErrOrderForbidden)
		}
	default:
		return Order{}, fmt.Errorf("%w: role %q cannot update shipping", ErrOrderForbidden, actor.Role)
	}
	if order.Status != domain.OrderStatusProcessing && order.Status != domain.OrderStatusShipped {
		return Order{}, fmt.Errorf("%w: order status %q cannot carry tracking details", ErrOrderInvalidState, order.Status)
	}

	now := s.now()
	order.TrackingCarrier = &carrier
	order.TrackingCode = &trackingCode
	order.UpdatedAt = now

	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

// insertWithFreshNumber stamps a generated order number and runs the insert
// transaction, regenerating on a duplicate-number conflict.
func (s *orderService) insertWithFreshNumber(ctx context.Context, order *Order, now time.Time, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		number, err := s.generateOrderNumber(ctx, now)
		if err != nil {
			return err
		}
		order.OrderNumber = number

		lastErr = s.runInTx(ctx, fn)
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, ErrOrderConflict) {
			return lastErr
		}
		s.logger(ctx, "order.number.conflict", map[string]any{
			"order":   order.ID,
			"number":  number,
			"attempt": attempt + 1,
		})
	}
	return lastErr
}

// generateOrderNumber derives ORD-YYMMDD-NNNN from a per-day counter.
func (s *orderService) generateOrderNumber(ctx context.Context, now time.Time) (string, error) {
	day := now.Format(orderNumberDateLayout)
	seq, err := s.counters.Next(ctx, orderNumberCounterPrefix+day, 1)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%04d", s.pricing.OrderNumberPrefix, day, seq%10000), nil
}

func (s *orderService) applyTotals(order *Order, subtotal decimal.Decimal) {
	order.Subtotal = subtotal
	order.Tax = subtotal.Mul(s.pricing.TaxRate).Round(2)
	order.Shipping = s.pricing.ShippingFlat
	order.Discount = decimal.Zero
	order.Total = order.Subtotal.Add(order.Tax).Add(order.Shipping).Sub(order.Discount)
}

func (s *orderService) snapshotItem(orderID string, product Product, quantity int, unitPrice decimal.Decimal) OrderItem {
	item := OrderItem{
		ID:        orderItemIDPrefix + s.newID(),
		OrderID:   orderID,
		ProductID: product.ID,
		SellerID:  product.SellerID,
		Name:      product.Name,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Total:     unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
	}
	if len(product.ImageURLs) > 0 {
		item.ImageURL = product.ImageURLs[0]
	}
	if product.Attributes != nil {
		item.Attributes = maps.Clone(product.Attributes)
	}
	return item
}

func (s *orderService) statusChange(orderID string, status OrderStatus, note, actorID string, now time.Time) OrderStatusChange {
	return OrderStatusChange{
		ID:        statusLogIDPrefix + s.newID(),
		OrderID:   orderID,
		Status:    status,
		Note:      note,
		ActorID:   actorID,
		CreatedAt: now,
	}
}

func (s *orderService) applyStatusTransition(order *Order, target domain.OrderStatus, now time.Time) error {
	current := order.Status
	if !canTransition(current, target) {
		return fmt.Errorf("%w: %s to %s", ErrOrderInvalidState, current, target)
	}

	order.Status = target
	order.UpdatedAt = now
	switch target {
	case domain.OrderStatusPaid:
		order.PaidAt = &now
	case domain.OrderStatusShipped:
		order.ShippedAt = &now
	case domain.OrderStatusDelivered:
		order.DeliveredAt = &now
	case domain.OrderStatusCancelled:
		order.CancelledAt = &now
	case domain.OrderStatusRefunded:
		order.PaymentStatus = domain.PaymentStatusRefunded
	}
	return nil
}

func (s *orderService) findOrder(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

func (s *orderService) loadActor(ctx context.Context, actorID string) (User, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return User{}, fmt.Errorf("%w: actor id is required", ErrOrderInvalidInput)
	}
	actor, err := s.users.FindByID(ctx, actorID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return User{}, fmt.Errorf("%w: unknown actor %q", ErrOrderForbidden, actorID)
		}
		return User{}, s.mapRepositoryError(err)
	}
	return actor, nil
}

func (s *orderService) checkAddress(ctx context.Context, userID, addressID string) error {
	addressID = strings.TrimSpace(addressID)
	if addressID == "" {
		return fmt.Errorf("%w: address id is required", ErrOrderInvalidInput)
	}
	if _, err := s.addresses.Get(ctx, userID, addressID); err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return fmt.Errorf("%w: address %q does not belong to the user", ErrOrderInvalidInput, addressID)
		}
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var stockErr *repositories.InsufficientStockError
	if errors.As(err, &stockErr) {
		return err
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) publishStatusChanged(ctx context.Context, order Order, prev domain.OrderStatus, actorID string, now time.Time, metadata map[string]any) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["orderNumber"] = order.OrderNumber
	metadata["previousStatus"] = string(prev)
	metadata["status"] = string(order.Status)

	s.publishNotification(ctx, Notification{
		Type:        orderEventStatusChanged,
		SubjectID:   order.ID,
		ActorID:     actorID,
		RecipientID: order.UserID,
		OccurredAt:  now,
		Metadata:    metadata,
	})
}

func (s *orderService) publishNotification(ctx context.Context, notification Notification) {
	if s.events == nil {
		return
	}
	if notification.Metadata != nil {
		notification.Metadata = maps.Clone(notification.Metadata)
	}
	if err := s.events.PublishNotification(ctx, notification); err != nil {
		s.logger(ctx, "order.notification.publish.failed", map[string]any{
			"type":  notification.Type,
			"order": notification.SubjectID,
			"error": err.Error(),
		})
	}
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

// authorizeTransition enforces the role matrix on an already-validated step.
func authorizeTransition(actor User, order Order, from, to domain.OrderStatus) error {
	switch actor.Role {
	case domain.RoleAdmin:
		return nil
	case domain.RoleArtisan:
		if !orderHasSeller(order, actor.ID) {
			return fmt.Errorf("%w: no items in this order belong to the seller", ErrOrderForbidden)
		}
		if artisanTransitions[from] != to {
			return fmt.Errorf("%w: sellers cannot move orders from %s to %s", ErrOrderForbidden, from, to)
		}
		return nil
	case domain.RoleCustomer:
		return fmt.Errorf("%w: customers can only cancel orders", ErrOrderForbidden)
	default:
		return fmt.Errorf("%w: unknown role %q", ErrOrderForbidden, actor.Role)
	}
}

func canReadOrder(actor User, order Order) bool {
	switch actor.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleArtisan:
		return orderHasSeller(order, actor.ID)
	default:
		return order.UserID == actor.ID
	}
}

func orderHasSeller(order Order, sellerID string) bool {
	for _, item := range order.Items {
		if item.SellerID == sellerID {
			return true
		}
	}
	return false
}

func canTransition(current, target domain.OrderStatus) bool {
	return slices.Contains(orderStateTransitions[current], target)
}

func valuePtr[T any](v T) *T {
	return &v
}
