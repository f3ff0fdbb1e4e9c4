package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	"courierconnect/internal/config"
	"courierconnect/internal/gateway/payment"
	"courierconnect/internal/http/handlers"
	"courierconnect/internal/http/router"
	"courierconnect/internal/logx"
	"courierconnect/internal/metrics"
	"courierconnect/internal/notify"
	"courierconnect/internal/pricing"
	"courierconnect/internal/repository"
	"courierconnect/internal/routing"
	"courierconnect/internal/service/courier"
	"courierconnect/internal/service/delivery"
	"courierconnect/internal/service/escrow"
)

// Typed counters keep the four registered counters apart in the container.
type (
	assignmentConflicts prometheus.Counter
	captureFailures     prometheus.Counter
	payoutFailures      prometheus.Counter
	gatewayRetries      prometheus.Counter
)

// ContainerBuilder is a dig container builder.
type ContainerBuilder struct {
	dbConnect func(context.Context, string, int, time.Duration) (*pgxpool.Pool, error)
	logFatalf func(string, ...interface{})
}

// NewContainerBuilder returns a new dig container builder.
func NewContainerBuilder() *ContainerBuilder {
	return &ContainerBuilder{
		dbConnect: connectDbWithRetry,
		logFatalf: log.Fatalf,
	}
}

// WithDBConnect sets the database connection function.
func (b *ContainerBuilder) WithDBConnect(
	fn func(context.Context, string, int, time.Duration) (*pgxpool.Pool, error),
) *ContainerBuilder {
	if fn != nil {
		b.dbConnect = fn
	}
	return b
}

// WithLogFatalf sets the log.Fatalf function.
func (b *ContainerBuilder) WithLogFatalf(fn func(string, ...interface{})) *ContainerBuilder {
	if fn != nil {
		b.logFatalf = fn
	}
	return b
}

// MustBuild builds and returns a new dig container.
func (b *ContainerBuilder) MustBuild(ctx context.Context) *dig.Container {
	container, err := b.build(ctx)
	if err != nil {
		b.logFatalf("failed to build container: %v", err)
	}
	return container
}

func (b *ContainerBuilder) build(ctx context.Context) (*dig.Container, error) {
	container := dig.New()

	if err := registerCore(container, ctx); err != nil {
		return nil, fmt.Errorf("core: %w", err)
	}
	if err := registerDb(container, b.dbConnect); err != nil {
		return nil, fmt.Errorf("DB: %w", err)
	}
	if err := registerGateways(container); err != nil {
		return nil, fmt.Errorf("gateways: %w", err)
	}
	if err := registerService(container); err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	if err := registerHTTP(container); err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	return container, nil
}

// MustBuildContainer builds and returns a new dig container.
func MustBuildContainer(ctx context.Context) *dig.Container {
	return NewContainerBuilder().MustBuild(ctx)
}

// MustBuildWorkerContainer builds the container for the escrow sweep worker.
func MustBuildWorkerContainer(ctx context.Context) *dig.Container {
	b := NewContainerBuilder()
	container, err := b.build(ctx)
	if err != nil {
		b.logFatalf("failed to build worker container: %v", err)
	}
	return container
}

func provideAll(container *dig.Container, providers ...any) error {
	for _, provider := range providers {
		if err := container.Provide(provider); err != nil {
			return fmt.Errorf("provide %T: %w", provider, err)
		}
	}
	return nil
}

func registerCore(container *dig.Container, ctx context.Context) error {
	return provideAll(container,
		func() context.Context { return ctx },
		func() *log.Logger { return log.Default() },
		NewLogger,
		config.Load,
		func() assignmentConflicts {
			c := metrics.NewAssignmentConflictsTotal()
			prometheus.MustRegister(c)
			return c
		},
		func() captureFailures {
			c := metrics.NewCaptureFailuresTotal()
			prometheus.MustRegister(c)
			return c
		},
		func() payoutFailures {
			c := metrics.NewPayoutFailuresTotal()
			prometheus.MustRegister(c)
			return c
		},
		func() gatewayRetries {
			c := metrics.NewGatewayRetriesTotal()
			prometheus.MustRegister(c)
			return c
		},
	)
}

func registerDb(
	container *dig.Container,
	dbConnect func(context.Context, string, int, time.Duration) (*pgxpool.Pool, error),
) error {
	providerDB := func(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
		return dbConnect(ctx, cfg.DB.DSN(), 10, time.Second)
	}
	return provideAll(container, providerDB)
}

func registerGateways(container *dig.Container) error {
	return provideAll(container,
		func(cfg *config.Config, logger logx.Logger) *routing.Resolver {
			p := routing.NewHTTPProvider(cfg.Routing.BaseURL, cfg.Routing.Timeout)
			if p == nil {
				return routing.NewResolver(nil, logger)
			}
			return routing.NewResolver(p, logger)
		},
		func(cfg *config.Config, logger logx.Logger, retries gatewayRetries) *payment.RetryingGateway {
			stripeGw := payment.NewStripeGateway(cfg.Stripe.SecretKey)
			if stripeGw == nil {
				return nil
			}
			return payment.NewRetryingGateway(
				stripeGw,
				logger,
				retries,
				payment.RetryConfig{
					MaxAttempts: cfg.Gateway.MaxAttempts,
					BaseDelay:   cfg.Gateway.BaseDelay,
					MaxDelay:    cfg.Gateway.MaxDelay,
				},
			)
		},
		func(cfg *config.Config, logger logx.Logger) (notify.Dispatcher, error) {
			d, err := notify.NewKafkaDispatcher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
			if err != nil {
				return nil, err
			}
			if d == nil {
				logger.Info("notifications disabled: no kafka brokers configured")
				return notify.Nop(), nil
			}
			return d, nil
		},
	)
}

func registerService(container *dig.Container) error {
	return provideAll(container,
		repository.NewDeliveryRepo,
		repository.NewCourierRepo,
		func(cfg *config.Config) pricing.Config {
			return pricing.Config{
				BasePrice:    cfg.Pricing.BasePrice,
				PricePerKm:   cfg.Pricing.PricePerKm,
				MinimumPrice: cfg.Pricing.MinimumPrice,
				CourierShare: cfg.Pricing.CourierShare,
			}
		},
		pricing.NewEngine,
		func(repo *repository.DeliveryRepo, conflicts assignmentConflicts) *delivery.Arbiter {
			return delivery.NewArbiter(repo, conflicts)
		},
		func(
			cfg *config.Config,
			deliveries *repository.DeliveryRepo,
			couriers *repository.CourierRepo,
			gw *payment.RetryingGateway,
			captures captureFailures,
			payouts payoutFailures,
			logger logx.Logger,
		) *escrow.Coordinator {
			escrowCfg := escrow.Config{
				Currency:   cfg.Stripe.Currency,
				SuccessURL: cfg.Stripe.SuccessURL,
				CancelURL:  cfg.Stripe.CancelURL,
			}
			if gw == nil {
				logger.Warn("escrow running with a disabled payment gateway")
				return escrow.NewCoordinator(deliveries, couriers, payment.Disabled(), escrowCfg, captures, payouts, logger)
			}
			return escrow.NewCoordinator(deliveries, couriers, gw, escrowCfg, captures, payouts, logger)
		},
		func(
			cfg *config.Config,
			repo *repository.DeliveryRepo,
			couriers *repository.CourierRepo,
			engine *pricing.Engine,
			resolver *routing.Resolver,
			arbiter *delivery.Arbiter,
			coord *escrow.Coordinator,
			dispatcher notify.Dispatcher,
			logger logx.Logger,
		) *delivery.Service {
			return delivery.NewService(repo, couriers, engine, resolver, arbiter, coord, dispatcher, cfg.OperationTimeout, logger)
		},
		func(cfg *config.Config, repo *repository.CourierRepo, logger logx.Logger) *courier.Service {
			return courier.NewService(repo, cfg.OperationTimeout, logger)
		},
		func(cfg *config.Config, repo *repository.DeliveryRepo, coord *escrow.Coordinator, logger logx.Logger) *escrow.Sweeper {
			return escrow.NewSweeper(repo, coord, cfg.Escrow.SweepInterval, cfg.Escrow.SweepBatch, logger)
		},
	)
}

func registerHTTP(container *dig.Container) error {
	serverProvider := func(cfg *config.Config, mux http.Handler) *http.Server {
		return &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
	}
	return provideAll(container,
		handlers.New,
		handlers.NewDeliveryUsecase,
		handlers.NewDeliveryHandler,
		func(cfg *config.Config, logger logx.Logger, c *escrow.Coordinator) *handlers.PaymentHandler {
			return handlers.NewPaymentHandler(logger, c, cfg.Stripe.WebhookSecret)
		},
		func(logger logx.Logger, svc *delivery.Service, pcfg pricing.Config) *handlers.PricingHandler {
			return handlers.NewPricingHandler(logger, svc, pcfg)
		},
		handlers.NewCourierUsecase,
		handlers.NewCourierHandler,
		func(
			base *handlers.Handlers,
			dh *handlers.DeliveryHandler,
			ph *handlers.PaymentHandler,
			prh *handlers.PricingHandler,
			ch *handlers.CourierHandler,
			logger logx.Logger,
		) http.Handler {
			return router.New(router.Deps{
				Base:     base,
				Delivery: dh,
				Payment:  ph,
				Pricing:  prh,
				Courier:  ch,
				Logger:   logger,
			})
		},
		serverProvider,
	)
}
