package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/craftmarket/api/internal/platform/auth"
	"github.com/craftmarket/api/internal/platform/httpx"
	"github.com/craftmarket/api/internal/platform/observability"
)

const (
	defaultAPIPrefix      = "/api/v1"
	defaultRequestTimeout = 60 * time.Second
)

type routerConfig struct {
	prefix      string
	timeout     time.Duration
	logger      *zap.Logger
	orders      *OrderHandlers
	quotes      *QuoteHandlers
	health      *HealthHandlers
	idempotency func(http.Handler) http.Handler
}

// Option customises router construction.
type Option func(*routerConfig)

// WithAPIPrefix overrides the mount prefix for versioned routes.
func WithAPIPrefix(prefix string) Option {
	return func(cfg *routerConfig) {
		if prefix != "" {
			cfg.prefix = prefix
		}
	}
}

// WithRequestTimeout overrides the per-request timeout.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(cfg *routerConfig) {
		if timeout > 0 {
			cfg.timeout = timeout
		}
	}
}

// WithLogger attaches the process logger to request-scoped logging and recovery.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *routerConfig) {
		cfg.logger = logger
	}
}

// WithOrderHandlers mounts the order endpoints.
func WithOrderHandlers(h *OrderHandlers) Option {
	return func(cfg *routerConfig) {
		cfg.orders = h
	}
}

// WithQuoteHandlers mounts the quote endpoints.
func WithQuoteHandlers(h *QuoteHandlers) Option {
	return func(cfg *routerConfig) {
		cfg.quotes = h
	}
}

// WithHealthHandlers mounts the probe endpoints at the router root.
func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) {
		cfg.health = h
	}
}

// WithIdempotencyMiddleware guards mutating order and quote endpoints so
// client retries replay the stored response instead of re-running the flow.
func WithIdempotencyMiddleware(mw func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.idempotency = mw
	}
}

// NewRouter assembles the HTTP surface: probes at the root, versioned order
// and quote groups behind identity extraction, and maintenance endpoints
// under /internal.
func NewRouter(opts ...Option) http.Handler {
	cfg := routerConfig{
		prefix:  defaultAPIPrefix,
		timeout: defaultRequestTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.TraceMiddleware())
	r.Use(auth.Middleware())
	r.Use(observability.InjectLoggerMiddleware(cfg.logger))
	r.Use(observability.RequestLoggerMiddleware())
	r.Use(observability.RecoveryMiddleware(cfg.logger))
	r.Use(middleware.Timeout(cfg.timeout))

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("not_found", "resource not found", http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", "method not allowed", http.StatusMethodNotAllowed))
	})

	if cfg.health != nil {
		cfg.health.Routes(r)
	}

	r.Route(cfg.prefix, func(api chi.Router) {
		if cfg.orders != nil {
			api.Route("/orders", func(group chi.Router) {
				group.Use(auth.RequireIdentity)
				if cfg.idempotency != nil {
					group.Use(cfg.idempotency)
				}
				cfg.orders.Routes(group)
			})
		}
		if cfg.quotes != nil {
			api.Route("/quotes", func(group chi.Router) {
				group.Use(auth.RequireIdentity)
				if cfg.idempotency != nil {
					group.Use(cfg.idempotency)
				}
				cfg.quotes.Routes(group)
			})
		}
	})

	if cfg.quotes != nil {
		r.Route("/internal", func(group chi.Router) {
			cfg.quotes.InternalRoutes(group)
		})
	}

	return r
}
