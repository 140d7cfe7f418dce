package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/craftmarket/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	Order              = domain.Order
	OrderItem          = domain.OrderItem
	OrderStatus        = domain.OrderStatus
	OrderStatusChange  = domain.OrderStatusChange
	PaymentStatus      = domain.PaymentStatus
	QuoteRequest       = domain.QuoteRequest
	QuoteMessage       = domain.QuoteMessage
	QuoteStatus        = domain.QuoteStatus
	QuoteParty         = domain.QuoteParty
	CartItem           = domain.CartItem
	Product            = domain.Product
	User               = domain.User
	UserRole           = domain.UserRole
	Address            = domain.Address
	SystemHealthReport = domain.SystemHealthReport
)

// CartValidator checks a cart against the live catalog before checkout. The
// result is advisory: the authoritative stock check happens inside the order
// creation transaction.
type CartValidator interface {
	Validate(ctx context.Context, userID string, items []CartItem) (CartValidation, error)
}

// CartValidation reports per-item problems and the derived subtotal for a cart.
type CartValidation struct {
	Valid    bool
	Problems []CartProblem
	Subtotal decimal.Decimal
	Products map[string]Product
}

// CartProblem describes a single reason a cart item cannot be checked out.
type CartProblem struct {
	ProductID string
	Code      string
	Message   string
	Requested int
	Available int
}

// OrderService encapsulates order assembly, payment, and lifecycle flows.
type OrderService interface {
	CreateFromCart(ctx context.Context, cmd CreateOrderFromCartCommand) (Order, error)
	CreateFromQuote(ctx context.Context, cmd CreateOrderFromQuoteCommand) (Order, error)
	GetOrder(ctx context.Context, query GetOrderQuery) (Order, error)
	ListOrders(ctx context.Context, query ListOrdersQuery) (domain.CursorPage[Order], error)
	TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error)
	Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error)
	ProcessPayment(ctx context.Context, cmd ProcessPaymentCommand) (Order, error)
	UpdateShipping(ctx context.Context, cmd UpdateShippingCommand) (Order, error)
}

// QuoteService coordinates the quote negotiation lifecycle.
type QuoteService interface {
	Create(ctx context.Context, cmd CreateQuoteCommand) (QuoteRequest, error)
	Get(ctx context.Context, query GetQuoteQuery) (QuoteRequest, error)
	List(ctx context.Context, query ListQuotesQuery) (domain.CursorPage[QuoteRequest], error)
	Respond(ctx context.Context, cmd RespondQuoteCommand) (QuoteRequest, error)
	AddMessage(ctx context.Context, cmd AddQuoteMessageCommand) (QuoteRequest, error)
	Cancel(ctx context.Context, cmd CancelQuoteCommand) (QuoteRequest, error)
	ExpireOpen(ctx context.Context) (int64, error)

	QuoteCompleter
}

// QuoteCompleter is the narrow surface the order workflow needs from quotes:
// an unscoped read and the terminal flip once an order exists for the quote.
type QuoteCompleter interface {
	GetQuote(ctx context.Context, quoteID string) (QuoteRequest, error)
	CompleteViaOrder(ctx context.Context, cmd CompleteQuoteCommand) (QuoteRequest, error)
}

// SystemService aggregates utility endpoints such as health checks.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// NotificationPublisher accepts marketplace notifications for downstream consumers.
// Publish failures are logged by callers, never propagated to the request path.
type NotificationPublisher interface {
	PublishNotification(ctx context.Context, notification Notification) error
}

// Notification captures metadata for emitted marketplace events.
type Notification struct {
	Type        string
	SubjectID   string
	ActorID     string
	RecipientID string
	OccurredAt  time.Time
	Metadata    map[string]any
}

// PricingPolicy controls how order totals and order numbers are derived.
type PricingPolicy struct {
	TaxRate           decimal.Decimal
	ShippingFlat      decimal.Decimal
	OrderNumberPrefix string
}

// Command and DTO definitions ------------------------------------------------

// RespondAction enumerates the ways a party can answer the offer on the table.
type RespondAction string

const (
	RespondActionAccept  RespondAction = "accept"
	RespondActionReject  RespondAction = "reject"
	RespondActionCounter RespondAction = "counter"
)

type CreateOrderFromCartCommand struct {
	ActorID       string
	AddressID     string
	PaymentMethod string
	Notes         string
}

type CreateOrderFromQuoteCommand struct {
	ActorID       string
	QuoteID       string
	AddressID     string
	PaymentMethod string
	Notes         string
}

type GetOrderQuery struct {
	ActorID string
	OrderID string
}

type ListOrdersQuery struct {
	ActorID    string
	Status     []OrderStatus
	DateRange  domain.RangeQuery[time.Time]
	Pagination Pagination
}

type OrderStatusTransitionCommand struct {
	ActorID      string
	OrderID      string
	TargetStatus OrderStatus
	Note         string
}

type CancelOrderCommand struct {
	ActorID string
	OrderID string
	Reason  string
}

type ProcessPaymentCommand struct {
	ActorID    string
	OrderID    string
	PaymentRef string
}

type UpdateShippingCommand struct {
	ActorID      string
	OrderID      string
	Carrier      string
	TrackingCode string
}

type CreateQuoteCommand struct {
	ActorID        string
	ProductID      string
	Specifications string
	RequestedPrice decimal.Decimal
	// ExpiresInDays overrides the configured expiry window when positive.
	ExpiresInDays int
}

type GetQuoteQuery struct {
	ActorID string
	QuoteID string
}

type ListQuotesQuery struct {
	ActorID    string
	Status     []QuoteStatus
	Pagination Pagination
}

type RespondQuoteCommand struct {
	ActorID      string
	QuoteID      string
	Action       RespondAction
	CounterPrice *decimal.Decimal
	Message      string
}

type AddQuoteMessageCommand struct {
	ActorID string
	QuoteID string
	Body    string
}

type CancelQuoteCommand struct {
	ActorID string
	QuoteID string
}

type CompleteQuoteCommand struct {
	QuoteID string
	OrderID string
	ActorID string
}
