package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/craftmarket/api/internal/repositories"
)

// CounterRepository implements repositories.CounterRepository on Postgres.
// Each counter is a single row incremented atomically via an upsert.
type CounterRepository struct {
	provider *Provider
}

var _ repositories.CounterRepository = (*CounterRepository)(nil)

// NewCounterRepository constructs a Postgres-backed counter repository.
func NewCounterRepository(provider *Provider) *CounterRepository {
	return &CounterRepository{provider: provider}
}

// Next atomically increments the counter identified by counterID and returns
// the next value. Missing counters start at the step value.
func (r *CounterRepository) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	if r == nil || r.provider == nil {
		return 0, errors.New("counter repository not initialised")
	}
	id := strings.TrimSpace(counterID)
	if id == "" {
		return 0, repositories.NewCounterError(repositories.CounterErrorInvalidInput, "counter id is required", nil)
	}
	if step <= 0 {
		return 0, repositories.NewCounterError(repositories.CounterErrorInvalidInput, fmt.Sprintf("step must be positive, got %d", step), nil)
	}
	q := r.provider.querier(ctx)

	var next int64
	err := q.QueryRow(ctx, `
		INSERT INTO counters (id, current_value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE
		SET current_value = counters.current_value + $2, updated_at = now()
		RETURNING current_value`,
		id, step,
	).Scan(&next)
	if err != nil {
		return 0, wrapError("counters.next", err)
	}
	return next, nil
}
