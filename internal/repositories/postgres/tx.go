package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type txKey struct{}

// querier returns the ambient transaction when one is stashed in ctx, or the
// shared pool otherwise. All repository statements go through this so they
// transparently join a surrounding RunInTx boundary.
func (p *Provider) querier(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return p.pool
}

// RunInTx executes fn inside a single database transaction. Repository calls
// made with the ctx passed to fn join that transaction. Nested calls reuse the
// ambient transaction instead of opening a second one.
func (p *Provider) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (txErr error) {
	if p == nil || p.pool == nil {
		return errors.New("postgres: provider not initialised")
	}
	if fn == nil {
		return errors.New("postgres: transaction function is required")
	}

	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return wrapError("tx.begin", err)
	}

	defer func() {
		if txErr != nil {
			rollbackErr := tx.Rollback(ctx)
			if rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
				txErr = errors.Join(txErr, fmt.Errorf("tx.rollback: %w", rollbackErr))
			}
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return wrapError("tx.commit", err)
	}
	return nil
}
