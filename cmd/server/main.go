package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	customerapp "github.com/crm/backend/internal/application/customer"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/infrastructure/auth"
	"github.com/crm/backend/internal/infrastructure/cache"
	"github.com/crm/backend/internal/infrastructure/config"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/infrastructure/messaging"
	"github.com/crm/backend/internal/infrastructure/postalcode"
	"github.com/crm/backend/internal/infrastructure/telemetry"
	"github.com/crm/backend/internal/interfaces/http/handler"
	"github.com/crm/backend/internal/interfaces/http/middleware"
	"github.com/crm/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "github.com/crm/backend/docs"
)

//	@title			CRM Backend API
//	@version		1.0
//	@description	Customer registry with CPF/CNPJ validation, products, sales funnel stages and postal code enrichment.

//	@contact.name	API Support
//	@contact.url	https://github.com/crm/backend

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	baseLog, closeLog, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Service:    cfg.App.Name,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		logger.Sync(baseLog)
		_ = closeLog()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := newTelemetry(ctx, cfg, baseLog)
	if err != nil {
		return err
	}
	defer tel.shutdown(baseLog)
	log := telemetry.Bridge(baseLog, tel.logs, logger.ParseLevel(cfg.Log.Level))

	log.Info("Starting CRM backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("driver", cfg.Database.Driver),
	)

	customerMetrics, err := telemetry.NewCustomerMetrics(tel.meter.Meter("crm-backend"))
	if err != nil {
		return fmt.Errorf("failed to create customer metrics: %w", err)
	}

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.close(context.Background()); err != nil {
			log.Error("Error closing store", zap.Error(err))
		}
	}()
	checks := st.checks

	cacheFactory := cache.NewFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.Cache.InMemoryFallback),
	)
	defer func() {
		if err := cacheFactory.Close(); err != nil {
			log.Error("Error closing cache", zap.Error(err))
		}
	}()

	var snapshots customerapp.Cache
	if cfg.Cache.Enabled {
		store, err := cacheFactory.CreateCache(ctx)
		if err != nil {
			return err
		}
		snapshots = store
		checks = append(checks, handler.HealthCheck{Name: "cache", Ping: store.Ping})
	}

	var (
		broker    *messaging.RabbitMQClient
		publisher shared.EventPublisher
	)
	if cfg.RabbitMQ.PublisherEnabled || cfg.RabbitMQ.ConsumerEnabled {
		broker, err = messaging.NewRabbitMQClient(cfg.RabbitMQ, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := broker.Close(); err != nil {
				log.Error("Error closing rabbitmq", zap.Error(err))
			}
		}()
		checks = append(checks, handler.HealthCheck{
			Name: "rabbitmq",
			Ping: func(context.Context) error { return broker.Ping() },
		})
	}
	if cfg.RabbitMQ.PublisherEnabled {
		p, err := messaging.NewPublisher(broker, cfg.RabbitMQ.Queue, messaging.WithPublisherLogger(log))
		if err != nil {
			return err
		}
		defer func() { _ = p.Close() }()
		publisher = p
	}

	serviceOpts := []customerapp.Option{
		customerapp.WithLogger(log),
		customerapp.WithCacheTTL(cfg.Cache.TTL),
		customerapp.WithMetrics(customerMetrics),
	}
	customerService := customerapp.NewCustomerService(st.repo, snapshots, publisher, serviceOpts...)
	productService := customerapp.NewProductService(st.repo, snapshots, serviceOpts...)
	stageService := customerapp.NewStageService(st.repo, snapshots, serviceOpts...)

	var consumer *messaging.Consumer
	if cfg.RabbitMQ.ConsumerEnabled {
		consumer, err = newEnrichmentConsumer(ctx, cfg, log, broker, cacheFactory, customerService, customerMetrics)
		if err != nil {
			return err
		}
		defer func() { _ = consumer.Close() }()
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	jwtService := auth.NewJWTService(cfg.JWT)

	var limiter *middleware.RateLimiter
	if cfg.HTTP.RateLimitEnabled {
		limiter = middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		defer limiter.Stop()
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	engine := router.NewEngine(router.Dependencies{
		Config:        cfg,
		Logger:        log,
		Tokens:        jwtService,
		MeterProvider: tel.meter,
		RateLimiter:   limiter,
	}, router.Handlers{
		Customers: handler.NewCustomerHandler(customerService),
		Products:  handler.NewProductHandler(productService),
		Stages:    handler.NewStageHandler(stageService),
		Auth:      handler.NewAuthHandler(jwtService),
		Health:    handler.NewHealthHandler(checks, handler.WithDatabaseStats(st.stats)),
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if consumer != nil {
		g.Go(func() error {
			return consumer.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
		return err
	}
	log.Info("Server exited gracefully")
	return nil
}

func newEnrichmentConsumer(
	ctx context.Context,
	cfg *config.Config,
	log *zap.Logger,
	broker *messaging.RabbitMQClient,
	cacheFactory *cache.Factory,
	customers *customerapp.CustomerService,
	metrics *telemetry.CustomerMetrics,
) (*messaging.Consumer, error) {
	idempotency, err := cacheFactory.CreateIdempotencyStore(ctx)
	if err != nil {
		return nil, err
	}

	lookup := postalcode.NewViaCEPClient(cfg.PostalCode,
		postalcode.WithLogger(log),
		postalcode.WithRecorder(metrics),
	)
	enrichment := customerapp.NewEnrichmentHandler(customers, lookup,
		customerapp.WithIdempotencyStore(idempotency, cfg.RabbitMQ.IdempotencyTTL),
		customerapp.WithEnrichmentLogger(log),
		customerapp.WithEnrichmentMetrics(metrics),
	)
	return messaging.NewConsumer(broker, cfg.RabbitMQ.Queue, enrichment,
		messaging.WithConsumerLogger(log),
		messaging.WithPrefetch(cfg.RabbitMQ.Prefetch),
		messaging.WithConsumerTag(cfg.App.Name+"-enrichment"),
	)
}
