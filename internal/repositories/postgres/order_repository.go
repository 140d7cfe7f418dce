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

const orderColumns = `id, order_number, user_id, address_id, status, payment_method, payment_status,
	payment_ref, quote_ref, subtotal, tax, shipping, discount, total, notes,
	tracking_carrier, tracking_code, created_at, updated_at, paid_at, shipped_at, delivered_at, cancelled_at`

// OrderRepository implements repositories.OrderRepository on Postgres.
type OrderRepository struct {
	provider *Provider
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository constructs a Postgres-backed order repository.
func NewOrderRepository(provider *Provider) *OrderRepository {
	return &OrderRepository{provider: provider}
}

// Insert stores the order header together with its item snapshots and seeded history.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.provider == nil {
		return errors.New("order repository not initialised")
	}
	q := r.provider.querier(ctx)

	_, err := q.Exec(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`,
		order.ID, order.OrderNumber, order.UserID, order.AddressID, order.Status,
		order.PaymentMethod, order.PaymentStatus, order.PaymentRef, order.QuoteRef,
		order.Subtotal, order.Tax, order.Shipping, order.Discount, order.Total, order.Notes,
		order.TrackingCarrier, order.TrackingCode, order.CreatedAt, order.UpdatedAt,
		order.PaidAt, order.ShippedAt, order.DeliveredAt, order.CancelledAt,
	)
	if err != nil {
		if isUniqueViolation(err, "orders_order_number_key") {
			return wrapError("orders.insert_order_number", err)
		}
		return wrapError("orders.insert", err)
	}

	for _, item := range order.Items {
		_, err := q.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, seller_id, name, image_url, attributes, quantity, unit_price, total)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			item.ID, order.ID, item.ProductID, item.SellerID, item.Name, item.ImageURL,
			item.Attributes, item.Quantity, item.UnitPrice, item.Total,
		)
		if err != nil {
			return wrapError("orders.insert_item", err)
		}
	}

	for _, change := range order.History {
		if err := r.AppendStatusChange(ctx, change); err != nil {
			return err
		}
	}
	return nil
}

// Update rewrites the mutable header fields. Items are immutable after insert.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if r == nil || r.provider == nil {
		return errors.New("order repository not initialised")
	}
	q := r.provider.querier(ctx)

	tag, err := q.Exec(ctx, `
		UPDATE orders SET
			status = $2, payment_status = $3, payment_ref = $4, notes = $5,
			tracking_carrier = $6, tracking_code = $7, updated_at = $8,
			paid_at = $9, shipped_at = $10, delivered_at = $11, cancelled_at = $12
		WHERE id = $1`,
		order.ID, order.Status, order.PaymentStatus, order.PaymentRef, order.Notes,
		order.TrackingCarrier, order.TrackingCode, order.UpdatedAt,
		order.PaidAt, order.ShippedAt, order.DeliveredAt, order.CancelledAt,
	)
	if err != nil {
		return wrapError("orders.update", err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundError("orders.update", fmt.Errorf("order %s not found", order.ID))
	}
	return nil
}

// AppendStatusChange records one transition log entry.
func (r *OrderRepository) AppendStatusChange(ctx context.Context, change domain.OrderStatusChange) error {
	if r == nil || r.provider == nil {
		return errors.New("order repository not initialised")
	}
	q := r.provider.querier(ctx)

	_, err := q.Exec(ctx, `
		INSERT INTO order_status_history (id, order_id, status, note, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		change.ID, change.OrderID, change.Status, change.Note, change.ActorID, change.CreatedAt,
	)
	if err != nil {
		return wrapError("orders.append_status_change", err)
	}
	return nil
}

// FindByID loads the order header with its items and history log.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	q := r.provider.querier(ctx)

	row := q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
	order, err := scanOrder(row)
	if err != nil {
		return domain.Order{}, wrapError("orders.find_by_id", err)
	}

	order.Items, err = r.listItems(ctx, q, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	order.History, err = r.listHistory(ctx, q, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// List returns order headers newest first using keyset pagination.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.provider == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
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

	if filter.UserID != "" {
		clauses = append(clauses, "o.user_id = "+addArg(filter.UserID))
	}
	if filter.SellerID != "" {
		clauses = append(clauses, "EXISTS (SELECT 1 FROM order_items oi WHERE oi.order_id = o.id AND oi.seller_id = "+addArg(filter.SellerID)+")")
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, 0, len(filter.Status))
		for _, status := range filter.Status {
			statuses = append(statuses, string(status))
		}
		clauses = append(clauses, "o.status = ANY("+addArg(statuses)+")")
	}
	if filter.DateRange.From != nil {
		clauses = append(clauses, "o.created_at >= "+addArg(*filter.DateRange.From))
	}
	if filter.DateRange.To != nil {
		clauses = append(clauses, "o.created_at <= "+addArg(*filter.DateRange.To))
	}

	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}
	if !cursor.IsZero() {
		clauses = append(clauses, "(o.created_at, o.id) < ("+addArg(cursor.CreatedAt)+", "+addArg(cursor.ID)+")")
	}

	query := `SELECT ` + prefixColumns(orderColumns, "o") + ` FROM orders o`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY o.created_at DESC, o.id DESC LIMIT " + addArg(pageSize+1)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, wrapError("orders.list", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, wrapError("orders.list", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return domain.CursorPage[domain.Order]{}, wrapError("orders.list", err)
	}

	page := domain.CursorPage[domain.Order]{Items: orders}
	if len(orders) > pageSize {
		page.Items = orders[:pageSize]
		last := page.Items[len(page.Items)-1]
		token, err := pagination.EncodeToken(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

func (r *OrderRepository) listItems(ctx context.Context, q querier, orderID string) ([]domain.OrderItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, seller_id, name, image_url, attributes, quantity, unit_price, total
		FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, wrapError("orders.list_items", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.SellerID, &item.Name,
			&item.ImageURL, &item.Attributes, &item.Quantity, &item.UnitPrice, &item.Total); err != nil {
			return nil, wrapError("orders.list_items", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("orders.list_items", err)
	}
	return items, nil
}

func (r *OrderRepository) listHistory(ctx context.Context, q querier, orderID string) ([]domain.OrderStatusChange, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, status, note, actor_id, created_at
		FROM order_status_history WHERE order_id = $1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, wrapError("orders.list_history", err)
	}
	defer rows.Close()

	var history []domain.OrderStatusChange
	for rows.Next() {
		var change domain.OrderStatusChange
		if err := rows.Scan(&change.ID, &change.OrderID, &change.Status, &change.Note,
			&change.ActorID, &change.CreatedAt); err != nil {
			return nil, wrapError("orders.list_history", err)
		}
		history = append(history, change)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("orders.list_history", err)
	}
	return history, nil
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		order     domain.Order
		createdAt time.Time
		updatedAt time.Time
	)
	err := row.Scan(
		&order.ID, &order.OrderNumber, &order.UserID, &order.AddressID, &order.Status,
		&order.PaymentMethod, &order.PaymentStatus, &order.PaymentRef, &order.QuoteRef,
		&order.Subtotal, &order.Tax, &order.Shipping, &order.Discount, &order.Total, &order.Notes,
		&order.TrackingCarrier, &order.TrackingCode, &createdAt, &updatedAt,
		&order.PaidAt, &order.ShippedAt, &order.DeliveredAt, &order.CancelledAt,
	)
	if err != nil {
		return domain.Order{}, err
	}
	order.CreatedAt = createdAt
	order.UpdatedAt = updatedAt
	return order, nil
}

func prefixColumns(columns, alias string) string {
	parts := strings.Split(columns, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		out = append(out, alias+"."+strings.TrimSpace(part))
	}
	return strings.Join(out, ", ")
}
