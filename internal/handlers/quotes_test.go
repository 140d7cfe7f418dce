package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	domain "github.com/craftmarket/api/internal/domain"
	"github.com/craftmarket/api/internal/services"
)

func TestCreateQuote(t *testing.T) {
	var captured services.CreateQuoteCommand
	quotes := &stubQuoteService{
		createFn: func(_ context.Context, cmd services.CreateQuoteCommand) (domain.QuoteRequest, error) {
			captured = cmd
			return sampleQuote(), nil
		},
	}
	router := newTestRouter(nil, quotes)

	body := `{"productId":"prd_0001","specifications":"engrave initials","requestedPrice":"50","expiresInDays":3}`
	rec := doRequest(router, authedRequest(http.MethodPost, "/api/v1/quotes", "usr_customer", &body))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if captured.ProductID != "prd_0001" || !captured.RequestedPrice.Equal(sampleQuote().RequestedPrice) {
		t.Fatalf("command = %+v", captured)
	}
	if captured.ExpiresInDays != 3 {
		t.Fatalf("expiresInDays = %d, want 3", captured.ExpiresInDays)
	}

	var payload quoteResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if payload.Status != "pending" || payload.RequestedPrice != "50" {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestCreateQuoteRejectsMalformedPrice(t *testing.T) {
	router := newTestRouter(nil, &stubQuoteService{})

	body := `{"productId":"prd_0001","requestedPrice":"fifty"}`
	rec := doRequest(router, authedRequest(http.MethodPost, "/api/v1/quotes", "usr_customer", &body))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreateQuoteRateLimited(t *testing.T) {
	quotes := &stubQuoteService{
		createFn: func(context.Context, services.CreateQuoteCommand) (domain.QuoteRequest, error) {
			return sampleQuote(), nil
		},
	}
	handler, err := NewQuoteHandlers(quotes)
	if err != nil {
		t.Fatalf("new handlers: %v", err)
	}
	router := NewRouter(WithQuoteHandlers(handler))

	var last int
	for i := 0; i < defaultQuoteCreateLimit+1; i++ {
		body := fmt.Sprintf(`{"productId":"prd_%04d","requestedPrice":"50"}`, i)
		rec := doRequest(router, authedRequest(http.MethodPost, "/api/v1/quotes", "usr_customer", &body))
		last = rec.Code
	}

	if last != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429 after limit exhausted", last)
	}
}

func TestRespondQuoteCounter(t *testing.T) {
	var captured services.RespondQuoteCommand
	quotes := &stubQuoteService{
		respondFn: func(_ context.Context, cmd services.RespondQuoteCommand) (domain.QuoteRequest, error) {
			captured = cmd
			countered := sampleQuote()
			countered.Status = domain.QuoteStatusCounterOffered
			return countered, nil
		},
	}
	router := newTestRouter(nil, quotes)

	body := `{"action":"counter","counterPrice":"60","message":"materials cost more"}`
	rec := doRequest(router, authedRequest(http.MethodPost, "/api/v1/quotes/qte_0001:respond", "usr_artisan", &body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if captured.Action != services.RespondActionCounter {
		t.Fatalf("action = %s", captured.Action)
	}
	if captured.CounterPrice == nil || captured.CounterPrice.String() != "60" {
		t.Fatalf("counter price = %v", captured.CounterPrice)
	}
	if captured.Message != "materials cost more" {
		t.Fatalf("message = %q", captured.Message)
	}
}

func TestRespondQuoteRejectsUnknownAction(t *testing.T) {
	router := newTestRouter(nil, &stubQuoteService{})

	body := `{"action":"haggle"}`
	rec := doRequest(router, authedRequest(http.MethodPost, "/api/v1/quotes/qte_0001:respond", "usr_artisan", &body))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestRespondQuoteInvalidStateConflict(t *testing.T) {
	quotes := &stubQuoteService{
		respondFn: func(context.Context, services.RespondQuoteCommand) (domain.QuoteRequest, error) {
			return domain.QuoteRequest{}, services.ErrQuoteInvalidState
		},
	}
	router := newTestRouter(nil, quotes)

	body := `{"action":"accept"}`
	rec := doRequest(router, authedRequest(http.MethodPost, "/api/v1/quotes/qte_0001:respond", "usr_customer", &body))

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.Error != "invalid_quote_state" {
		t.Fatalf("error = %s", envelope.Error)
	}
}

func TestListQuotesParsesStatusFilter(t *testing.T) {
	var captured services.ListQuotesQuery
	quotes := &stubQuoteService{
		listFn: func(_ context.Context, query services.ListQuotesQuery) (domain.CursorPage[domain.QuoteRequest], error) {
			captured = query
			return domain.CursorPage[domain.QuoteRequest]{Items: []domain.QuoteRequest{sampleQuote()}}, nil
		},
	}
	router := newTestRouter(nil, quotes)

	rec := doRequest(router, authedRequest(http.MethodGet, "/api/v1/quotes?status=pending,accepted", "usr_customer", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(captured.Status) != 2 || captured.Status[0] != domain.QuoteStatusPending || captured.Status[1] != domain.QuoteStatusAccepted {
		t.Fatalf("statuses = %v", captured.Status)
	}
}

func TestAddQuoteMessage(t *testing.T) {
	var captured services.AddQuoteMessageCommand
	quotes := &stubQuoteService{
		addMessageFn: func(_ context.Context, cmd services.AddQuoteMessageCommand) (domain.QuoteRequest, error) {
			captured = cmd
			return sampleQuote(), nil
		},
	}
	router := newTestRouter(nil, quotes)

	body := `{"body":"can you use oak instead?"}`
	rec := doRequest(router, authedRequest(http.MethodPost, "/api/v1/quotes/qte_0001/messages", "usr_customer", &body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if captured.QuoteID != "qte_0001" || captured.Body != "can you use oak instead?" {
		t.Fatalf("command = %+v", captured)
	}
}

func TestCancelQuoteForbidden(t *testing.T) {
	quotes := &stubQuoteService{
		cancelFn: func(context.Context, services.CancelQuoteCommand) (domain.QuoteRequest, error) {
			return domain.QuoteRequest{}, services.ErrQuoteForbidden
		},
	}
	router := newTestRouter(nil, quotes)

	rec := doRequest(router, authedRequest(http.MethodPost, "/api/v1/quotes/qte_0001:cancel", "usr_artisan", nil))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestExpireOpenQuotesInternal(t *testing.T) {
	quotes := &stubQuoteService{
		expireOpenFn: func(context.Context) (int64, error) {
			return 3, nil
		},
	}
	router := newTestRouter(nil, quotes)

	rec := doRequest(router, authedRequest(http.MethodPost, "/internal/quotes:expire", "", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var payload expireQuotesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if payload.Expired != 3 {
		t.Fatalf("expired = %d, want 3", payload.Expired)
	}
}
