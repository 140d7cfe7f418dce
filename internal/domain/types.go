package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// UserRole enumerates the actor roles recognised by the workflow engine.
type UserRole string

const (
	// RoleAdmin may drive any transition the adjacency table allows.
	RoleAdmin UserRole = "admin"
	// RoleArtisan sells products and fulfils orders containing them.
	RoleArtisan UserRole = "artisan"
	// RoleCustomer buys products and may cancel their own orders.
	RoleCustomer UserRole = "customer"
)

// User is the narrow identity projection consumed by authorization checks.
type User struct {
	ID          string
	Role        UserRole
	DisplayName string
	Email       string
	CreatedAt   time.Time
}

// Address represents a shipping address owned by a user.
type Address struct {
	ID         string
	UserID     string
	Recipient  string
	Line1      string
	Line2      *string
	City       string
	State      *string
	PostalCode string
	Country    string
	Phone      *string
}

// ProductStatus enumerates catalog publication states.
type ProductStatus string

const (
	// ProductStatusDraft indicates the product is not yet purchasable.
	ProductStatusDraft ProductStatus = "draft"
	// ProductStatusPublished indicates the product is live and purchasable.
	ProductStatusPublished ProductStatus = "published"
	// ProductStatusArchived indicates the product has been withdrawn.
	ProductStatusArchived ProductStatus = "archived"
)

// Product is the catalog projection consumed by validation and snapshots.
type Product struct {
	ID             string
	SellerID       string
	Name           string
	Status         ProductStatus
	Price          decimal.Decimal
	Quantity       int
	IsCustomizable bool
	ImageURLs      []string
	Attributes     map[string]any
	UpdatedAt      time.Time
}

// CartItem is a single entry in a user's cart, owned by the cart subsystem
// and consumed read-only at checkout.
type CartItem struct {
	ID        string
	UserID    string
	ProductID string
	Quantity  int
	AddedAt   time.Time
}

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusPending indicates the order awaits payment.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusPaid indicates payment completed.
	OrderStatusPaid OrderStatus = "paid"
	// OrderStatusProcessing indicates the seller is preparing the order.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped indicates the order has been handed to a carrier.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered indicates the order reached the buyer.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled is terminal; stock is restored on entry.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusRefunded is terminal.
	OrderStatusRefunded OrderStatus = "refunded"
)

// PaymentStatus enumerates payment settlement states stamped on orders.
type PaymentStatus string

const (
	// PaymentStatusPending indicates no successful payment yet.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusCompleted indicates the payment settled.
	PaymentStatusCompleted PaymentStatus = "completed"
	// PaymentStatusRefunded indicates the payment was returned.
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Order captures the order header plus its owned items and history log.
// Monetary fields are derived at assembly time and never mutated independently.
type Order struct {
	ID              string
	OrderNumber     string
	UserID          string
	AddressID       string
	Status          OrderStatus
	PaymentMethod   string
	PaymentStatus   PaymentStatus
	PaymentRef      *string
	QuoteRef        *string
	Subtotal        decimal.Decimal
	Tax             decimal.Decimal
	Shipping        decimal.Decimal
	Discount        decimal.Decimal
	Total           decimal.Decimal
	Notes           string
	TrackingCarrier *string
	TrackingCode    *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	PaidAt          *time.Time
	ShippedAt       *time.Time
	DeliveredAt     *time.Time
	CancelledAt     *time.Time
	Items           []OrderItem
	History         []OrderStatusChange
}

// OrderItem is an immutable snapshot of a product at purchase time so later
// catalog edits cannot corrupt historical orders.
type OrderItem struct {
	ID         string
	OrderID    string
	ProductID  string
	SellerID   string
	Name       string
	ImageURL   string
	Attributes map[string]any
	Quantity   int
	UnitPrice  decimal.Decimal
	Total      decimal.Decimal
}

// OrderStatusChange is one append-only entry in an order's transition log.
type OrderStatusChange struct {
	ID        string
	OrderID   string
	Status    OrderStatus
	Note      string
	ActorID   string
	CreatedAt time.Time
}

// QuoteStatus enumerates quote negotiation states.
type QuoteStatus string

const (
	// QuoteStatusPending awaits the artisan's first response.
	QuoteStatusPending QuoteStatus = "pending"
	// QuoteStatusCounterOffered indicates an open counter-offer exchange.
	QuoteStatusCounterOffered QuoteStatus = "counter_offered"
	// QuoteStatusAccepted indicates an agreed final price awaiting checkout.
	QuoteStatusAccepted QuoteStatus = "accepted"
	// QuoteStatusRejected is terminal.
	QuoteStatusRejected QuoteStatus = "rejected"
	// QuoteStatusCompleted is terminal; an order was created from the quote.
	QuoteStatusCompleted QuoteStatus = "completed"
	// QuoteStatusExpired is terminal; the request lapsed unanswered.
	QuoteStatusExpired QuoteStatus = "expired"
)

// QuoteParty identifies which side of a negotiation produced an offer or message.
type QuoteParty string

const (
	// PartyCustomer is the requesting buyer.
	PartyCustomer QuoteParty = "customer"
	// PartyArtisan is the product's seller.
	PartyArtisan QuoteParty = "artisan"
)

// QuoteRequest models a price negotiation over one customizable product.
// FinalPrice is set if and only if the status is accepted or completed.
type QuoteRequest struct {
	ID             string
	ProductID      string
	CustomerID     string
	ArtisanID      string
	Specifications string
	RequestedPrice decimal.Decimal
	CounterOffer   *decimal.Decimal
	LastOfferBy    QuoteParty
	FinalPrice     *decimal.Decimal
	Status         QuoteStatus
	ExpiresAt      time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	RespondedAt    *time.Time
	Messages       []QuoteMessage
}

// QuoteMessage is one append-only entry in a quote's negotiation thread.
type QuoteMessage struct {
	ID        string
	QuoteID   string
	SenderID  string
	Body      string
	CreatedAt time.Time
}

// Terminal reports whether the quote can no longer change state.
func (s QuoteStatus) Terminal() bool {
	switch s {
	case QuoteStatusRejected, QuoteStatusCompleted, QuoteStatusExpired:
		return true
	}
	return false
}

// Terminal reports whether the order can no longer change state.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCancelled || s == OrderStatusRefunded
}
