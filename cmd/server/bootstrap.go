package main

import (
	"context"
	"fmt"
	"time"

	"github.com/crm/backend/internal/domain/customer"
	"github.com/crm/backend/internal/infrastructure/config"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/infrastructure/persistence"
	"github.com/crm/backend/internal/infrastructure/persistence/mongodb"
	"github.com/crm/backend/internal/infrastructure/telemetry"
	"github.com/crm/backend/internal/interfaces/http/handler"
	"go.uber.org/zap"
)

// customerStore is the selected customer repository plus its lifecycle hooks
type customerStore struct {
	repo   customer.Repository
	checks []handler.HealthCheck
	stats  func() (any, error)
	close  func(ctx context.Context) error
}

// openStore connects the backend named by database.driver
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (*customerStore, error) {
	if cfg.Database.Driver == config.DriverMongo {
		return openMongoStore(ctx, cfg, log)
	}
	return openSQLStore(cfg, log)
}

func openMongoStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (*customerStore, error) {
	client, err := mongodb.NewClient(ctx, cfg.Mongo, log)
	if err != nil {
		return nil, err
	}
	if cfg.Mongo.EnsureIndexes {
		names, err := mongodb.EnsureIndexes(ctx, client.Customers())
		if err != nil {
			_ = client.Close(context.Background())
			return nil, err
		}
		log.Info("MongoDB indexes ensured", zap.Strings("indexes", names))
	}

	return &customerStore{
		repo:   mongodb.NewCustomerRepository(client.Customers()),
		checks: []handler.HealthCheck{{Name: "mongodb", Ping: client.Ping}},
		close:  client.Close,
	}, nil
}

func openSQLStore(cfg *config.Config, log *zap.Logger) (*customerStore, error) {
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level), 200*time.Millisecond)
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		return nil, err
	}

	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled: cfg.Telemetry.Enabled,
		DBName:  cfg.Database.DBName,
	}, log); err != nil {
		_ = db.Close()
		return nil, err
	}

	// postgres schemas come from cmd/migrate; a sqlite file is created in place
	if cfg.Database.Driver == config.DriverSQLite {
		if err := db.AutoMigrate(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to migrate sqlite schema: %w", err)
		}
	}
	log.Info("Database connected successfully", zap.String("driver", cfg.Database.Driver))

	return &customerStore{
		repo:   persistence.NewGormCustomerRepository(db.DB),
		checks: []handler.HealthCheck{{Name: "database", Ping: db.Ping}},
		stats: func() (any, error) {
			return db.Stats()
		},
		close: func(context.Context) error {
			return db.Close()
		},
	}, nil
}

// telemetryProviders owns every OpenTelemetry provider and the profiler
type telemetryProviders struct {
	tracer   *telemetry.TracerProvider
	meter    *telemetry.MeterProvider
	logs     *telemetry.LoggerProvider
	profiler *telemetry.Profiler
}

func newTelemetry(ctx context.Context, cfg *config.Config, log *zap.Logger) (*telemetryProviders, error) {
	tc := cfg.Telemetry

	tracer, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           tc.Enabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		SamplingRatio:     tc.SamplingRatio,
		ServiceName:       tc.ServiceName,
		Insecure:          tc.Insecure,
	}, log)
	if err != nil {
		return nil, err
	}
	p := &telemetryProviders{tracer: tracer}

	p.meter, err = telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           tc.Enabled && tc.MetricsEnabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		ExportInterval:    tc.MetricsInterval,
		ServiceName:       tc.ServiceName,
		Insecure:          tc.Insecure,
	}, log)
	if err != nil {
		p.shutdown(log)
		return nil, err
	}

	p.logs, err = telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           tc.Enabled && tc.LogsEnabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		ServiceName:       tc.ServiceName,
		Insecure:          tc.Insecure,
	}, log)
	if err != nil {
		p.shutdown(log)
		return nil, err
	}

	p.profiler, err = telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         tc.ProfilingEnabled,
		ServerAddress:   tc.ProfilerAddress,
		ApplicationName: tc.ServiceName,
	}, log)
	if err != nil {
		p.shutdown(log)
		return nil, err
	}
	if p.profiler.IsEnabled() && tracer.IsEnabled() {
		tracer.EnableSpanProfiles()
	}
	return p, nil
}

// shutdown flushes whatever providers were created; errors are logged
func (p *telemetryProviders) shutdown(log *zap.Logger) {
	ctx := context.Background()
	if p.profiler != nil {
		if err := p.profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}
	if p.logs != nil {
		_ = p.logs.Shutdown(ctx)
	}
	if p.meter != nil {
		_ = p.meter.Shutdown(ctx)
	}
	if p.tracer != nil {
		_ = p.tracer.Shutdown(ctx)
	}
}
