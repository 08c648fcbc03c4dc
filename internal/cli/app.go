package cli

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/nurpe/koshtorys/internal/auth"
	"github.com/nurpe/koshtorys/internal/config"
	"github.com/nurpe/koshtorys/internal/db"
	"github.com/nurpe/koshtorys/internal/excel"
	httphandler "github.com/nurpe/koshtorys/internal/http"
	"github.com/nurpe/koshtorys/internal/ledger"
	"github.com/nurpe/koshtorys/internal/lock"
	"github.com/nurpe/koshtorys/internal/metrics"
	"github.com/nurpe/koshtorys/internal/pdf"
	"github.com/nurpe/koshtorys/internal/repository"
	"github.com/nurpe/koshtorys/internal/service"
)

// app holds the wired services shared by the commands.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	db       *gorm.DB
	redis    *redis.Client
	locker   *lock.Locker
	registry *prometheus.Registry
	tokens   *auth.Parser
	services httphandler.Services
}

func newApp(cfg *config.Config, log zerolog.Logger) (*app, error) {
	database, err := db.New(cfg, log)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewLedgerMetrics(registry)

	var client *redis.Client
	if cfg.Lock.RedisAddr != "" {
		client = redis.NewClient(&redis.Options{Addr: cfg.Lock.RedisAddr})
	}
	locker := lock.NewLocker(client, cfg.Lock.TTL, log)

	printer, err := pdf.NewGenerator(cfg.PDF.FontPath)
	if err != nil {
		return nil, err
	}

	tx := db.NewTransactor(database, cfg.DB.TxMaxRetries, log)
	l := ledger.New(cfg.Ledger.Epsilon)

	budgets := repository.NewBudgetRepository(database)
	contracts := repository.NewContractRepository(database)
	specs := repository.NewSpecificationRepository(database)
	vehicles := repository.NewVehicleRepository(database)

	a := &app{
		cfg:      cfg,
		log:      log,
		db:       database,
		redis:    client,
		locker:   locker,
		registry: registry,
		tokens:   auth.NewParser(cfg.Auth.AccessSecret, cfg.Auth.DefaultOwnerID),
	}
	a.services = httphandler.Services{
		Budgets:        service.NewBudgetService(tx, budgets, contracts, excel.NewReportGenerator(), m, log),
		Contracts:      service.NewContractService(tx, budgets, contracts, l, locker, printer, m, log),
		Specifications: service.NewSpecificationService(tx, contracts, specs, l, m, log),
		Imports:        service.NewImportService(excel.NewSpecificationImporter(), excel.NewTemplateGenerator(), m, log),
		Vehicles:       service.NewVehicleService(tx, vehicles, contracts, excel.NewVehicleImporter(), m, log),
		Health:         a.health,
	}
	return a, nil
}

func (a *app) health(ctx context.Context) error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return err
	}
	return a.locker.Ping(ctx)
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close redis")
		}
	}
	if sqlDB, err := a.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close database")
		}
	}
}
