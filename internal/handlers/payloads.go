package handlers

import (
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/craftmarket/api/internal/domain"
)

// Monetary amounts are rendered as decimal strings so clients never see
// binary-float artefacts.

type orderResponse struct {
	ID              string                      `json:"id"`
	OrderNumber     string                      `json:"orderNumber"`
	UserID          string                      `json:"userId"`
	AddressID       string                      `json:"addressId"`
	Status          string                      `json:"status"`
	PaymentMethod   string                      `json:"paymentMethod"`
	PaymentStatus   string                      `json:"paymentStatus"`
	PaymentRef      *string                     `json:"paymentRef,omitempty"`
	QuoteRef        *string                     `json:"quoteRef,omitempty"`
	Subtotal        string                      `json:"subtotal"`
	Tax             string                      `json:"tax"`
	Shipping        string                      `json:"shipping"`
	Discount        string                      `json:"discount"`
	Total           string                      `json:"total"`
	Notes           string                      `json:"notes,omitempty"`
	TrackingCarrier *string                     `json:"trackingCarrier,omitempty"`
	TrackingCode    *string                     `json:"trackingCode,omitempty"`
	CreatedAt       time.Time                   `json:"createdAt"`
	UpdatedAt       time.Time                   `json:"updatedAt"`
	PaidAt          *time.Time                  `json:"paidAt,omitempty"`
	ShippedAt       *time.Time                  `json:"shippedAt,omitempty"`
	DeliveredAt     *time.Time                  `json:"deliveredAt,omitempty"`
	CancelledAt     *time.Time                  `json:"cancelledAt,omitempty"`
	Items           []orderItemResponse         `json:"items"`
	History         []orderStatusChangeResponse `json:"history,omitempty"`
}

type orderItemResponse struct {
	ID         string         `json:"id"`
	ProductID  string         `json:"productId"`
	SellerID   string         `json:"sellerId"`
	Name       string         `json:"name"`
	ImageURL   string         `json:"imageUrl,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Quantity   int            `json:"quantity"`
	UnitPrice  string         `json:"unitPrice"`
	Total      string         `json:"total"`
}

type orderStatusChangeResponse struct {
	Status    string    `json:"status"`
	Note      string    `json:"note,omitempty"`
	ActorID   string    `json:"actorId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type orderListResponse struct {
	Orders        []orderResponse `json:"orders"`
	NextPageToken string          `json:"nextPageToken,omitempty"`
}

func buildOrderResponse(order domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ID:         item.ID,
			ProductID:  item.ProductID,
			SellerID:   item.SellerID,
			Name:       item.Name,
			ImageURL:   item.ImageURL,
			Attributes: item.Attributes,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice.String(),
			Total:      item.Total.String(),
		})
	}

	history := make([]orderStatusChangeResponse, 0, len(order.History))
	for _, change := range order.History {
		history = append(history, orderStatusChangeResponse{
			Status:    string(change.Status),
			Note:      change.Note,
			ActorID:   change.ActorID,
			CreatedAt: change.CreatedAt,
		})
	}

	return orderResponse{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		UserID:          order.UserID,
		AddressID:       order.AddressID,
		Status:          string(order.Status),
		PaymentMethod:   order.PaymentMethod,
		PaymentStatus:   string(order.PaymentStatus),
		PaymentRef:      order.PaymentRef,
		QuoteRef:        order.QuoteRef,
		Subtotal:        order.Subtotal.String(),
		Tax:             order.Tax.String(),
		Shipping:        order.Shipping.String(),
		Discount:        order.Discount.String(),
		Total:           order.Total.String(),
		Notes:           order.Notes,
		TrackingCarrier: order.TrackingCarrier,
		TrackingCode:    order.TrackingCode,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
		PaidAt:          order.PaidAt,
		ShippedAt:       order.ShippedAt,
		DeliveredAt:     order.DeliveredAt,
		CancelledAt:     order.CancelledAt,
		Items:           items,
		History:         history,
	}
}

func buildOrderListResponse(page domain.CursorPage[domain.Order]) orderListResponse {
	orders := make([]orderResponse, 0, len(page.Items))
	for _, order := range page.Items {
		orders = append(orders, buildOrderResponse(order))
	}
	return orderListResponse{Orders: orders, NextPageToken: page.NextPageToken}
}

type quoteResponse struct {
	ID             string                 `json:"id"`
	ProductID      string                 `json:"productId"`
	CustomerID     string                 `json:"customerId"`
	ArtisanID      string                 `json:"artisanId"`
	Specifications string                 `json:"specifications"`
	RequestedPrice string                 `json:"requestedPrice"`
	CounterOffer   *string                `json:"counterOffer,omitempty"`
	LastOfferBy    string                 `json:"lastOfferBy"`
	FinalPrice     *string                `json:"finalPrice,omitempty"`
	Status         string                 `json:"status"`
	ExpiresAt      time.Time              `json:"expiresAt"`
	CreatedAt      time.Time              `json:"createdAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
	RespondedAt    *time.Time             `json:"respondedAt,omitempty"`
	Messages       []quoteMessageResponse `json:"messages,omitempty"`
}

type quoteMessageResponse struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"senderId"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

type quoteListResponse struct {
	Quotes        []quoteResponse `json:"quotes"`
	NextPageToken string          `json:"nextPageToken,omitempty"`
}

func buildQuoteResponse(quote domain.QuoteRequest) quoteResponse {
	messages := make([]quoteMessageResponse, 0, len(quote.Messages))
	for _, message := range quote.Messages {
		messages = append(messages, quoteMessageResponse{
			ID:        message.ID,
			SenderID:  message.SenderID,
			Body:      message.Body,
			CreatedAt: message.CreatedAt,
		})
	}

	return quoteResponse{
		ID:             quote.ID,
		ProductID:      quote.ProductID,
		CustomerID:     quote.CustomerID,
		ArtisanID:      quote.ArtisanID,
		Specifications: quote.Specifications,
		RequestedPrice: quote.RequestedPrice.String(),
		CounterOffer:   decimalPtrString(quote.CounterOffer),
		LastOfferBy:    string(quote.LastOfferBy),
		FinalPrice:     decimalPtrString(quote.FinalPrice),
		Status:         string(quote.Status),
		ExpiresAt:      quote.ExpiresAt,
		CreatedAt:      quote.CreatedAt,
		UpdatedAt:      quote.UpdatedAt,
		RespondedAt:    quote.RespondedAt,
		Messages:       messages,
	}
}

func buildQuoteListResponse(page domain.CursorPage[domain.QuoteRequest]) quoteListResponse {
	quotes := make([]quoteResponse, 0, len(page.Items))
	for _, quote := range page.Items {
		quotes = append(quotes, buildQuoteResponse(quote))
	}
	return quoteListResponse{Quotes: quotes, NextPageToken: page.NextPageToken}
}

func decimalPtrString(value *decimal.Decimal) *string {
	if value == nil {
		return nil
	}
	rendered := value.String()
	return &rendered
}
