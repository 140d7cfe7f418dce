package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/craftmarket/api/internal/platform/config"
	"github.com/craftmarket/api/internal/platform/observability"
	"github.com/craftmarket/api/internal/repositories"
	"github.com/craftmarket/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete
// implementations are assembled via dependency injection in NewContainer.
type Services struct {
	Validator services.CartValidator
	Orders    services.OrderService
	Quotes    services.QuoteService
	System    services.SystemService
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// ContainerDeps carries the externally constructed collaborators the container
// threads through the service layer.
type ContainerDeps struct {
	Registry repositories.Registry
	Events   services.NotificationPublisher
	Logger   *zap.Logger
}

// NewContainer constructs the runtime dependencies. Production wiring provides
// the postgres registry and kafka publisher; tests can supply in-memory stand-ins.
func NewContainer(ctx context.Context, cfg config.Config, deps ContainerDeps) (*Container, error) {
	if deps.Registry == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(ctx, cfg, deps)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: deps.Registry,
		Services:     svc,
	}, nil
}

// Close releases repository resources.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, cfg config.Config, deps ContainerDeps) (Services, error) {
	var svc Services
	reg := deps.Registry

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	validator, err := services.NewCartValidator(services.CartValidatorDeps{
		Products: reg.Products(),
		Logger:   observability.EventLogger(logger.Named("cart")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart validator: %w", err)
	}
	svc.Validator = validator

	quoteSvc, err := services.NewQuoteService(services.QuoteServiceDeps{
		Quotes:       reg.Quotes(),
		Products:     reg.Products(),
		Users:        reg.Users(),
		UnitOfWork:   reg,
		Clock:        time.Now,
		Events:       deps.Events,
		Logger:       observability.EventLogger(logger.Named("quotes")),
		ExpiryWindow: time.Duration(cfg.Quotes.ExpiryDays) * 24 * time.Hour,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build quote service: %w", err)
	}
	svc.Quotes = quoteSvc

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:     reg.Orders(),
		Quotes:     quoteSvc,
		Products:   reg.Products(),
		Users:      reg.Users(),
		Addresses:  reg.Addresses(),
		Carts:      reg.Carts(),
		Counters:   reg.Counters(),
		Validator:  validator,
		UnitOfWork: reg,
		Clock:      time.Now,
		Events:     deps.Events,
		Logger:     observability.EventLogger(logger.Named("orders")),
		Pricing: services.PricingPolicy{
			TaxRate:           cfg.Pricing.TaxRate,
			ShippingFlat:      cfg.Pricing.ShippingFlat,
			OrderNumberPrefix: cfg.Pricing.OrderNumberPrefix,
		},
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	if healthRepo := reg.Health(); healthRepo != nil {
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Clock:            time.Now,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	return svc, nil
}
