package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/caarlos0/env/v11"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-registry/internal/catalog"
	"github.com/ovaphlow/pitchfork/service-registry/internal/emergency"
	"github.com/ovaphlow/pitchfork/service-registry/internal/identity"
	"github.com/ovaphlow/pitchfork/service-registry/internal/justice"
	"github.com/ovaphlow/pitchfork/service-registry/internal/license"
	"github.com/ovaphlow/pitchfork/service-registry/internal/payment"
	"github.com/ovaphlow/pitchfork/service-registry/internal/property"
	"github.com/ovaphlow/pitchfork/service-registry/internal/vehicle"
	"github.com/ovaphlow/pitchfork/service-registry/pkg/database"
	"github.com/ovaphlow/pitchfork/service-registry/pkg/metrics"
	"github.com/ovaphlow/pitchfork/service-registry/pkg/utilities"
)

// serverConfig is the HTTP side of the configuration.
type serverConfig struct {
	Addr           string `env:"REGISTRY_HTTP_ADDR" envDefault:"0.0.0.0:8431"`
	OperatorSecret string `env:"REGISTRY_OPERATOR_SECRET"`
}

func serverConfigFromEnv() (serverConfig, error) {
	var cfg serverConfig
	if err := env.Parse(&cfg); err != nil {
		return serverConfig{}, fmt.Errorf("parse server env: %w", err)
	}
	return cfg, nil
}

// app holds the process-wide dependencies shared by every command.
type app struct {
	logger   *zap.Logger
	sugar    *zap.SugaredLogger
	db       *database.Manager
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	identities  *identity.Service
	licenses    *license.Service
	codes       *payment.Service
	vehicles    *vehicle.Service
	properties  *property.Service
	justice     *justice.Service
	emergencies *emergency.Service
}

// newApp initialises logging, the connection pool, metrics and services.
// Call close when done.
func newApp(ctx context.Context) (_ *app, err error) {
	logCfg, err := utilities.ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	lg, err := utilities.Init(logCfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	defer func() { flushOnError(lg, err) }()
	sugar := lg.Sugar()

	cfg, err := database.ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	cat, err := catalog.FromEnv()
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	sqlDB, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	mgr := database.NewManager(sqlDB,
		database.WithRetryPolicy(cfg.RetryPolicy()),
		database.WithLogger(sugar),
		database.WithMetrics(m),
	)
	if err = mgr.Ping(ctx); err != nil {
		_ = mgr.Close()
		return nil, err
	}
	sugar.Infow("connected to store", "dsn", cfg.Redacted())

	return &app{
		logger:   lg,
		sugar:    sugar,
		db:       mgr,
		registry: reg,
		metrics:  m,

		identities:  identity.NewService(mgr, identity.WithLogger(sugar), identity.WithMetrics(m)),
		licenses:    license.NewService(mgr, license.WithLogger(sugar), license.WithMetrics(m), license.WithCatalog(cat)),
		codes:       payment.NewService(mgr, payment.WithLogger(sugar), payment.WithMetrics(m)),
		vehicles:    vehicle.NewService(mgr, vehicle.WithLogger(sugar), vehicle.WithMetrics(m), vehicle.WithCatalog(cat)),
		properties:  property.NewService(mgr, property.WithLogger(sugar), property.WithMetrics(m), property.WithCatalog(cat)),
		justice:     justice.NewService(mgr, justice.WithLogger(sugar), justice.WithMetrics(m)),
		emergencies: emergency.NewService(mgr, emergency.WithLogger(sugar), emergency.WithMetrics(m)),
	}, nil
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.sugar.Warnw("db close failed", "err", err)
	}
	_ = a.logger.Sync()
}

// flushOnError logs a failed startup and flushes buffered log entries.
func flushOnError(lg *zap.Logger, err error) {
	if err == nil {
		return
	}
	lg.Sugar().Errorw("startup failed", "err", err)
	_ = lg.Sync()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
