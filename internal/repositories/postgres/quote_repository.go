package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	domain "github.com/craftmarket/api/internal/domain"
	"github.com/craftmarket/api/internal/platform/pagination"
	"github.com/craftmarket/api/internal/repositories"
)

const quoteColumns = `id, product_id, customer_id, artisan_id, specifications, requested_price,
	counter_offer, last_offer_by, final_price, status, expires_at, created_at, updated_at, responded_at`

// QuoteRepository implements repositories.QuoteRepository on Postgres.
type QuoteRepository struct {
	provider *Provider
}

var _ repositories.QuoteRepository = (*QuoteRepository)(nil)

// NewQuoteRepository constructs a Postgres-backed quote repository.
func NewQuoteRepository(provider *Provider) *QuoteRepository {
	return &QuoteRepository{provider: provider}
}

// Insert stores a new quote request.
func (r *QuoteRepository) Insert(ctx context.Context, quote domain.QuoteRequest) error {
	if r == nil || r.provider == nil {
		return errors.New("quote repository not initialised")
	}
	q := r.provider.querier(ctx)

	_, err := q.Exec(ctx, `
		INSERT INTO quote_requests (`+quoteColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		quote.ID, quote.ProductID, quote.CustomerID, quote.ArtisanID, quote.Specifications,
		quote.RequestedPrice, quote.CounterOffer, quote.LastOfferBy, quote.FinalPrice,
		quote.Status, quote.ExpiresAt, quote.CreatedAt, quote.UpdatedAt, quote.RespondedAt,
	)
	if err != nil {
		return wrapError("quotes.insert", err)
	}
	return nil
}

// Update rewrites the negotiation state of an existing quote.
func (r *QuoteRepository) Update(ctx context.Context, quote domain.QuoteRequest) error {
	if r == nil || r.provider == nil {
		return errors.New("quote repository not initialised")
	}
	q := r.provider.querier(ctx)

	tag, err := q.Exec(ctx, `
		UPDATE quote_requests SET
			counter_offer = $2, last_offer_by = $3, final_price = $4, status = $5,
			expires_at = $6, updated_at = $7, responded_at = $8
		WHERE id = $1`,
		quote.ID, quote.CounterOffer, quote.LastOfferBy, quote.FinalPrice, quote.Status,
		quote.ExpiresAt, quote.UpdatedAt, quote.RespondedAt,
	)
	if err != nil {
		return wrapError("quotes.update", err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundError("quotes.update", fmt.Errorf("quote %s not found", quote.ID))
	}
	return nil
}

// AppendMessage records one negotiation thread entry.
func (r *QuoteRepository) AppendMessage(ctx context.Context, message domain.QuoteMessage) error {
	if r == nil || r.provider == nil {
		return errors.New("quote repository not initialised")
	}
	q := r.provider.querier(ctx)

	_, err := q.Exec(ctx, `
		INSERT INTO quote_messages (id, quote_id, sender_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		message.ID, message.QuoteID, message.SenderID, message.Body, message.CreatedAt,
	)
	if err != nil {
		return wrapError("quotes.append_message", err)
	}
	return nil
}

// FindByID loads the quote together with its message thread.
func (r *QuoteRepository) FindByID(ctx context.Context, quoteID string) (domain.QuoteRequest, error) {
	if r == nil || r.provider == nil {
		return domain.QuoteRequest{}, errors.New("quote repository not initialised")
	}
	q := r.provider.querier(ctx)

	row := q.QueryRow(ctx, `SELECT `+quoteColumns+` FROM quote_requests WHERE id = $1`, quoteID)
	quote, err := scanQuote(row)
	if err != nil {
		return domain.QuoteRequest{}, wrapError("quotes.find_by_id", err)
	}

	rows, err := q.Query(ctx, `
		SELECT id, quote_id, sender_id, body, created_at
		FROM quote_messages WHERE quote_id = $1 ORDER BY created_at, id`, quoteID)
	if err != nil {
		return domain.QuoteRequest{}, wrapError("quotes.list_messages", err)
	}
	defer rows.Close()

	for rows.Next() {
		var message domain.QuoteMessage
		if err := rows.Scan(&message.ID, &message.QuoteID, &message.SenderID, &message.Body, &message.CreatedAt); err != nil {
			return domain.QuoteRequest{}, wrapError("quotes.list_messages", err)
		}
		quote.Messages = append(quote.Messages, message)
	}
	if err := rows.Err(); err != nil {
		return domain.QuoteRequest{}, wrapError("quotes.list_messages", err)
	}
	return quote, nil
}

// List returns quotes newest first using keyset pagination.
func (r *QuoteRepository) List(ctx context.Context, filter repositories.QuoteListFilter) (domain.CursorPage[domain.QuoteRequest], error) {
	if r == nil || r.provider == nil {
		return domain.CursorPage[domain.QuoteRequest]{}, errors.New("quote repository not initialised")
	}
	q := r.provider.querier(ctx)

	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}

	var (
		clauses []string
		args    []any
	)
	addArg := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.CustomerID != "" {
		clauses = append(clauses, "customer_id = "+addArg(filter.CustomerID))
	}
	if filter.ArtisanID != "" {
		clauses = append(clauses, "artisan_id = "+addArg(filter.ArtisanID))
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, 0, len(filter.Status))
		for _, status := range filter.Status {
			statuses = append(statuses, string(status))
		}
		clauses = append(clauses, "status = ANY("+addArg(statuses)+")")
	}

	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.QuoteRequest]{}, err
	}
	if !cursor.IsZero() {
		clauses = append(clauses, "(created_at, id) < ("+addArg(cursor.CreatedAt)+", "+addArg(cursor.ID)+")")
	}

	query := `SELECT ` + quoteColumns + ` FROM quote_requests`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT " + addArg(pageSize+1)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return domain.CursorPage[domain.QuoteRequest]{}, wrapError("quotes.list", err)
	}
	defer rows.Close()

	var quotes []domain.QuoteRequest
	for rows.Next() {
		quote, err := scanQuote(rows)
		if err != nil {
			return domain.CursorPage[domain.QuoteRequest]{}, wrapError("quotes.list", err)
		}
		quotes = append(quotes, quote)
	}
	if err := rows.Err(); err != nil {
		return domain.CursorPage[domain.QuoteRequest]{}, wrapError("quotes.list", err)
	}

	page := domain.CursorPage[domain.QuoteRequest]{Items: quotes}
	if len(quotes) > pageSize {
		page.Items = quotes[:pageSize]
		last := page.Items[len(page.Items)-1]
		token, err := pagination.EncodeToken(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		if err != nil {
			return domain.CursorPage[domain.QuoteRequest]{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

// ExpirePending marks unanswered pending quotes past their deadline as expired.
// Quotes with an open counter-offer exchange are deliberately left alone.
func (r *QuoteRepository) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	if r == nil || r.provider == nil {
		return 0, errors.New("quote repository not initialised")
	}
	q := r.provider.querier(ctx)

	tag, err := q.Exec(ctx, `
		UPDATE quote_requests
		SET status = $1, updated_at = $2
		WHERE status = $3 AND expires_at <= $2`,
		domain.QuoteStatusExpired, now, domain.QuoteStatusPending,
	)
	if err != nil {
		return 0, wrapError("quotes.expire_pending", err)
	}
	return tag.RowsAffected(), nil
}

func scanQuote(row pgx.Row) (domain.QuoteRequest, error) {
	var quote domain.QuoteRequest
	err := row.Scan(
		&quote.ID, &quote.ProductID, &quote.CustomerID, &quote.ArtisanID, &quote.Specifications,
		&quote.RequestedPrice, &quote.CounterOffer, &quote.LastOfferBy, &quote.FinalPrice,
		&quote.Status, &quote.ExpiresAt, &quote.CreatedAt, &quote.UpdatedAt, &quote.RespondedAt,
	)
	if err != nil {
		return domain.QuoteRequest{}, err
	}
	return quote, nil
}
