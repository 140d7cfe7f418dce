package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	domain "github.com/craftmarket/api/internal/domain"
	"github.com/craftmarket/api/internal/platform/httpx"
	"github.com/craftmarket/api/internal/services"
)

// QuoteHandlers exposes the quote negotiation workflow over HTTP. Quote
// creation is rate limited per actor to keep artisans from being flooded
// with requests.
type QuoteHandlers struct {
	quotes  services.QuoteService
	limiter rateLimiter
}

// NewQuoteHandlers wires the quote endpoints to the given service.
func NewQuoteHandlers(quotes services.QuoteService) (*QuoteHandlers, error) {
	if quotes == nil {
		return nil, errors.New("quote handlers: quote service is required")
	}
	return &QuoteHandlers{
		quotes:  quotes,
		limiter: newActorRateLimiter(defaultQuoteCreateLimit, defaultQuoteCreateWindow, nil),
	}, nil
}

// Routes registers the quote endpoints on the router.
func (h *QuoteHandlers) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{quoteID}", h.get)
	r.Post("/{quoteID}:respond", h.respond)
	r.Post("/{quoteID}:cancel", h.cancel)
	r.Post("/{quoteID}/messages", h.addMessage)
}

// InternalRoutes registers maintenance endpoints reserved for trusted callers
// such as the expiry sweep cron.
func (h *QuoteHandlers) InternalRoutes(r chi.Router) {
	r.Post("/quotes:expire", h.expireOpen)
}

type createQuoteRequest struct {
	ProductID      string `json:"productId"`
	Specifications string `json:"specifications"`
	RequestedPrice string `json:"requestedPrice"`
	ExpiresInDays  int    `json:"expiresInDays"`
}

func (h *QuoteHandlers) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorID, ok := actorIDFromContext(ctx, w)
	if !ok {
		return
	}
	if h.limiter != nil && !h.limiter.Allow(actorID) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many quote requests, try again later", http.StatusTooManyRequests))
		return
	}

	var payload createQuoteRequest
	if !decodeJSONBody(ctx, w, r, &payload) {
		return
	}

	price, err := decimal.NewFromString(strings.TrimSpace(payload.RequestedPrice))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "requestedPrice must be a decimal string", http.StatusBadRequest))
		return
	}

	quote, err := h.quotes.Create(ctx, services.CreateQuoteCommand{
		ActorID:        actorID,
		ProductID:      strings.TrimSpace(payload.ProductID),
		Specifications: strings.TrimSpace(payload.Specifications),
		RequestedPrice: price,
		ExpiresInDays:  payload.ExpiresInDays,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildQuoteResponse(quote))
}

func (h *QuoteHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorID, ok := actorIDFromContext(ctx, w)
	if !ok {
		return
	}

	quote, err := h.quotes.Get(ctx, services.GetQuoteQuery{
		ActorID: actorID,
		QuoteID: chi.URLParam(r, "quoteID"),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildQuoteResponse(quote))
}

func (h *QuoteHandlers) list(w http.ResponseWriter, r *http.Request) {
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

	statuses, err := parseQuoteStatuses(parseFilterValues(query["status"]))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.quotes.List(ctx, services.ListQuotesQuery{
		ActorID:    actorID,
		Status:     statuses,
		Pagination: pagination,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildQuoteListResponse(page))
}

type respondQuoteRequest struct {
	Action       string `json:"action"`
	CounterPrice string `json:"counterPrice"`
	Message      string `json:"message"`
}

func (h *QuoteHandlers) respond(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorID, ok := actorIDFromContext(ctx, w)
	if !ok {
		return
	}

	var payload respondQuoteRequest
	if !decodeJSONBody(ctx, w, r, &payload) {
		return
	}

	action, err := parseRespondAction(payload.Action)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	cmd := services.RespondQuoteCommand{
		ActorID: actorID,
		QuoteID: chi.URLParam(r, "quoteID"),
		Action:  action,
		Message: strings.TrimSpace(payload.Message),
	}
	if raw := strings.TrimSpace(payload.CounterPrice); raw != "" {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "counterPrice must be a decimal string", http.StatusBadRequest))
			return
		}
		cmd.CounterPrice = &price
	}

	quote, err := h.quotes.Respond(ctx, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildQuoteResponse(quote))
}

type addQuoteMessageRequest struct {
	Body string `json:"body"`
}

func (h *QuoteHandlers) addMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorID, ok := actorIDFromContext(ctx, w)
	if !ok {
		return
	}

	var payload addQuoteMessageRequest
	if !decodeJSONBody(ctx, w, r, &payload) {
		return
	}

	quote, err := h.quotes.AddMessage(ctx, services.AddQuoteMessageCommand{
		ActorID: actorID,
		QuoteID: chi.URLParam(r, "quoteID"),
		Body:    strings.TrimSpace(payload.Body),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildQuoteResponse(quote))
}

func (h *QuoteHandlers) cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorID, ok := actorIDFromContext(ctx, w)
	if !ok {
		return
	}

	quote, err := h.quotes.Cancel(ctx, services.CancelQuoteCommand{
		ActorID: actorID,
		QuoteID: chi.URLParam(r, "quoteID"),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildQuoteResponse(quote))
}

type expireQuotesResponse struct {
	Expired int64 `json:"expired"`
}

func (h *QuoteHandlers) expireOpen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	expired, err := h.quotes.ExpireOpen(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, expireQuotesResponse{Expired: expired})
}

func parseRespondAction(value string) (services.RespondAction, error) {
	action := services.RespondAction(strings.ToLower(strings.TrimSpace(value)))
	switch action {
	case services.RespondActionAccept, services.RespondActionReject, services.RespondActionCounter:
		return action, nil
	}
	return "", errors.New("action must be accept, reject, or counter")
}

func parseQuoteStatuses(values []string) ([]domain.QuoteStatus, error) {
	if len(values) == 0 {
		return nil, nil
	}
	statuses := make([]domain.QuoteStatus, 0, len(values))
	for _, value := range values {
		status := domain.QuoteStatus(value)
		switch status {
		case domain.QuoteStatusPending, domain.QuoteStatusCounterOffered, domain.QuoteStatusAccepted,
			domain.QuoteStatusRejected, domain.QuoteStatusCompleted, domain.QuoteStatusExpired:
			statuses = append(statuses, status)
		default:
			return nil, errors.New("unknown quote status")
		}
	}
	return statuses, nil
}
