package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/craftmarket/api/internal/platform/config"
)

const defaultPingTimeout = 5 * time.Second

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so repositories can run
// statements inside or outside an ambient transaction without knowing which.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Provider owns the shared pgx connection pool and the transaction boundary.
type Provider struct {
	pool *pgxpool.Pool
}

// NewProvider connects the pool, registers the decimal codec on every
// connection, and verifies connectivity with a ping.
func NewProvider(ctx context.Context, cfg config.PostgresConfig) (*Provider, error) {
	if ctx == nil {
		return nil, errors.New("postgres: context is required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}

	pingTimeout := cfg.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = defaultPingTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return &Provider{pool: pool}, nil
}

// NewProviderFromPool wraps an existing pool, primarily for tests.
func NewProviderFromPool(pool *pgxpool.Pool) (*Provider, error) {
	if pool == nil {
		return nil, errors.New("postgres: pool is required")
	}
	return &Provider{pool: pool}, nil
}

// Pool exposes the underlying pool for health probes and migrations.
func (p *Provider) Pool() *pgxpool.Pool {
	if p == nil {
		return nil
	}
	return p.pool
}

// Ping verifies database connectivity.
func (p *Provider) Ping(ctx context.Context) error {
	if p == nil || p.pool == nil {
		return errors.New("postgres: provider not initialised")
	}
	return p.pool.Ping(ctx)
}

// Close releases the pool. The Provider cannot be reused afterwards.
func (p *Provider) Close(ctx context.Context) error {
	if p == nil || p.pool == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		p.pool.Close()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
