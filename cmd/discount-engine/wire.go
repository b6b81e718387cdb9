package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ghsales/discount-engine/internal/config"
	"github.com/ghsales/discount-engine/internal/currency"
	"github.com/ghsales/discount-engine/internal/installment"
	"github.com/ghsales/discount-engine/internal/inventory"
	"github.com/ghsales/discount-engine/internal/notify"
	"github.com/ghsales/discount-engine/internal/postgres"
	"github.com/ghsales/discount-engine/internal/pricing"
	"github.com/ghsales/discount-engine/internal/server"
	"github.com/ghsales/discount-engine/internal/telemetry"
	"github.com/ghsales/discount-engine/internal/versioning"
	"github.com/ghsales/discount-engine/pkg/constants"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// app holds the wired components of one process.
type app struct {
	pool        *pgxpool.Pool
	versions    *versioning.Manager
	pricing     *pricing.Service
	installment *installment.Service
	notifier    notify.Sender
}

// newApp connects the stores selected by the configuration. Without a
// database URL versions and settings live in memory and the inventory is
// empty.
func newApp(ctx context.Context, conf *config.Configuration, logger *zap.Logger) (*app, error) {
	a := &app{}

	var (
		store    versioning.Store
		settings installment.SettingsStore
		units    inventory.Reader
	)
	if conf.Database.URL != "" {
		pool, err := postgres.Open(ctx, conf.Database.URL, conf.Database.MaxConns)
		if err != nil {
			return nil, err
		}
		a.pool = pool
		if conf.Database.Migrate {
			if err := postgres.Migrate(ctx, pool, logger); err != nil {
				pool.Close()
				return nil, err
			}
		}
		pg := postgres.NewStore(pool, logger)
		store, settings = pg, pg
		units = postgres.NewInventory(pool, logger)
	} else {
		mem := versioning.NewMemoryStore()
		store, settings = mem, mem
		units = inventory.NewMemoryReader()
	}

	fx := newExchangeRates(conf, logger)
	params := conf.PricingParams()

	a.versions = versioning.NewManager(store, logger)
	a.pricing = pricing.NewService(a.versions, units, fx, params, logger)
	a.installment = installment.NewService(settings, a.versions, units, fx, params, logger)
	a.notifier = newNotifier(conf, logger)
	return a, nil
}

func newExchangeRates(conf *config.Configuration, logger *zap.Logger) currency.Provider {
	manual := currency.Static(conf.Currency.ManualRate)
	if conf.Currency.Source == constants.CurrencySourceCBU {
		return currency.NewCBU(conf.Currency.CBUURL, conf.Currency.Timeout, manual, logger)
	}
	return manual
}

func newNotifier(conf *config.Configuration, logger *zap.Logger) notify.Sender {
	if conf.Mail.Enabled && conf.Mail.Host != "" {
		return notify.NewSMTPSender(conf.SMTPConfig(), logger)
	}
	return notify.NewLogSender(logger)
}

func (a *app) handler(conf *config.Configuration, logger *zap.Logger, metrics *telemetry.Metrics) (http.Handler, error) {
	size, err := conf.Server.UploadSizeBytes()
	if err != nil {
		return nil, fmt.Errorf("invalid upload size: %w", err)
	}
	return server.NewHandler(logger, server.Services{
		Versions:    a.versions,
		Pricing:     a.pricing,
		Installment: a.installment,
		Notifier:    a.notifier,
		Metrics:     metrics,
	}, size, version), nil
}

func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}
