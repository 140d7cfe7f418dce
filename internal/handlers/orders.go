package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/craftmarket/api/internal/domain"
	"github.com/craftmarket/api/internal/platform/httpx"
	"github.com/craftmarket/api/internal/services"
)

// OrderHandlers exposes the order workflow over HTTP.
type OrderHandlers struct {
	orders services.OrderService
}

// NewOrderHandlers wires the order endpoints to the given service.
func NewOrderHandlers(orders services.OrderService) (*OrderHandlers, error) {
	if orders == nil {
		return nil, errors.New("order handlers: order service is required")
	}
	return &OrderHandlers{orders: orders}, nil
}

// Routes registers the order endpoints on the router.
func (h *OrderHandlers) Routes(r chi.Router) {
	r.Post("/", h.createFromCart)
	r.Post("/from-quote", h.createFromQuote)
	r.Get("/", h.list)
	r.Get("/{orderID}", h.get)
	r.Post("/{orderID}:cancel", h.cancel)
	r.Post("/{orderID}:pay", h.pay)
	r.Patch("/{orderID}/status", h.transitionStatus)
	r.Patch("/{orderID}/shipping", h.updateShipping)
}

type createOrderRequest struct {
	AddressID     string `json:"addressId"`
	PaymentMethod string `json:"paymentMethod"`
	Notes         string `json:"notes"`
}

func (h *OrderHandlers) createFromCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorID, ok := actorIDFromContext(ctx, w)
	if !ok {
		return
	}

	var payload createOrderRequest
	if !decodeJSONBody(ctx, w, r, &payload) {
		return
	}

	order, err := h.orders.CreateFromCart(ctx, services.CreateOrderFromCartCommand{
		ActorID:       actorID,
		AddressID:     strings.TrimSpace(payload.AddressID),
		PaymentMethod: strings.TrimSpace(payload.PaymentMethod),
		Notes:         strings.TrimSpace(payload.Notes),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildOrderResponse(order))
}

type createOrderFromQuoteRequest struct {
	QuoteID       string `json:"quoteId"`
	AddressID     string `json:"addressId"`
	PaymentMethod string `json:"paymentMethod"`
	Notes         string `json:"notes"`
}

func (h *OrderHandlers) createFromQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorID, ok := actorIDFromContext(ctx, w)
	if !ok {
		return
	}

	var payload createOrderFromQuoteRequest
	if !decodeJSONBody(ctx, w, r, &payload) {
		return
	}

	order, err := h.orders.CreateFromQuote(ctx, services.CreateOrderFromQuoteCommand{
		ActorID:       actorID,
		QuoteID:       strings.TrimSpace(payload.QuoteID),
		AddressID:     strings.TrimSpace(payload.AddressID),
		PaymentMethod: strings.TrimSpace(payload.PaymentMethod),
		Notes:         strings.TrimSpace(payload.Notes),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildOrderResponse(order))
}

func (h *OrderHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorID, ok := actorIDFromContext(ctx, w)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, services.GetOrderQuery{
		ActorID: actorID,
		OrderID: chi.URLParam(r, "orderID"),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderResponse(order))
}

func (h *OrderHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorID, ok := actorIDFromContext(ctx, w)
	if !ok {
		return
	}

	query := r.URL.Query()
	pagination, err := parsePagination(query)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	statuses, err := parseOrderStatuses(parseFilterValues(query["status"]))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	listQuery := services.ListOrdersQuery{
		ActorID:    actorID,
		Status:     statuses,
		Pagination: pagination,
	}
	if raw := strings.TrimSpace(query.Get("created_after")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_after "+err.Error(), http.StatusBadRequest))
			return
		}
		listQuery.DateRange.From = &ts
	}
	if raw := strings.TrimSpace(query.Get("created_before")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_before "+err.Error(), http.StatusBadRequest))
			return
		}
		listQuery.DateRange.To = &ts
	}

	page, err := h.orders.ListOrders(ctx, listQuery)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderListResponse(page))
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

func (h *OrderHandlers) cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorID, ok := actorIDFromContext(ctx, w)
	if !ok {
		return
	}

	var payload cancelOrderRequest
	if r.ContentLength > 0 {
		if !decodeJSONBody(ctx, w, r, &payload) {
			return
		}
	}

	order, err := h.orders.Cancel(ctx, services.CancelOrderCommand{
		ActorID: actorID,
		OrderID: chi.URLParam(r, "orderID"),
		Reason:  strings.TrimSpace(payload.Reason),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderResponse(order))
}

type processPaymentRequest struct {
	PaymentRef string `json:"paymentRef"`
}

func (h *OrderHandlers) pay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorID, ok := actorIDFromContext(ctx, w)
	if !ok {
		return
	}

	var payload processPaymentRequest
	if !decodeJSONBody(ctx, w, r, &payload) {
		return
	}

	order, err := h.orders.ProcessPayment(ctx, services.ProcessPaymentCommand{
		ActorID:    actorID,
		OrderID:    chi.URLParam(r, "orderID"),
		PaymentRef: strings.TrimSpace(payload.PaymentRef),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderResponse(order))
}

type transitionStatusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

func (h *OrderHandlers) transitionStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorID, ok := actorIDFromContext(ctx, w)
	if !ok {
		return
	}

	var payload transitionStatusRequest
	if !decodeJSONBody(ctx, w, r, &payload) {
		return
	}

	target, err := parseOrderStatus(payload.Status)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	order, err := h.orders.TransitionStatus(ctx, services.OrderStatusTransitionCommand{
		ActorID:      actorID,
		OrderID:      chi.URLParam(r, "orderID"),
		TargetStatus: target,
		Note:         strings.TrimSpace(payload.Note),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderResponse(order))
}

type updateShippingRequest struct {
	Carrier      string `json:"carrier"`
	TrackingCode string `json:"trackingCode"`
}

func (h *OrderHandlers) updateShipping(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorID, ok := actorIDFromContext(ctx, w)
	if !ok {
		return
	}

	var payload updateShippingRequest
	if !decodeJSONBody(ctx, w, r, &payload) {
		return
	}

	order, err := h.orders.UpdateShipping(ctx, services.UpdateShippingCommand{
		ActorID:      actorID,
		OrderID:      chi.URLParam(r, "orderID"),
		Carrier:      strings.TrimSpace(payload.Carrier),
		TrackingCode: strings.TrimSpace(payload.TrackingCode),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderResponse(order))
}

func parseOrderStatus(value string) (domain.OrderStatus, error) {
	status := domain.OrderStatus(strings.ToLower(strings.TrimSpace(value)))
	switch status {
	case domain.OrderStatusPending, domain.OrderStatusPaid, domain.OrderStatusProcessing,
		domain.OrderStatusShipped, domain.OrderStatusDelivered, domain.OrderStatusCancelled,
		domain.OrderStatusRefunded:
		return status, nil
	}
	return "", errors.New("unknown order status")
}

func parseOrderStatuses(values []string) ([]domain.OrderStatus, error) {
	if len(values) == 0 {
		return nil, nil
	}
	statuses := make([]domain.OrderStatus, 0, len(values))
	for _, value := range values {
		status, err := parseOrderStatus(value)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
