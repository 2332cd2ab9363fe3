package infrastructure

import (
	"context"

	"go.uber.org/zap"

	"pesacore/internal/config"
	"pesacore/internal/directory"
	"pesacore/internal/fraud"
	"pesacore/internal/ledger"
	"pesacore/internal/payment"
	transportNATS "pesacore/internal/transport/nats"
)

// Core is the library surface handed to whatever transport embeds this
// module. The HTTP/API layer lives outside this repository.
type Core struct {
	Ledger   *ledger.Ledger
	Payments *payment.Orchestrator
}

// Bootstrap initialises all dependencies from config and wires up the
// application. Returns the App (fraud worker), the Core services, a
// cleanup function, or an error.
func Bootstrap(ctx context.Context) (*App, *Core, func(), error) {
	cfg, err := config.New()
	if err != nil {
		return nil, nil, nil, err
	}

	log, err := zap.NewProduction()
	if err != nil {
		return nil, nil, nil, err
	}

	db, err := connectPostgres(cfg.DSN())
	if err != nil {
		return nil, nil, nil, err
	}

	var cleanupFns []func()
	cleanupFns = append(cleanupFns, db.Close, func() { _ = log.Sync() })

	rdb, err := connectRedis(cfg.RedisAddr())
	if err != nil {
		return nil, nil, runCleanup(cleanupFns), err
	}
	cleanupFns = append(cleanupFns, func() { _ = rdb.Close() })

	nc, err := connectNats(cfg.NatsAddr())
	if err != nil {
		return nil, nil, runCleanup(cleanupFns), err
	}
	cleanupFns = append(cleanupFns, nc.Close)

	// ── Core wiring ───────────────────────────────────────────────────────
	led := ledger.New(db, rdb, log)
	bus := transportNATS.NewBus(nc)
	dir := directory.New(db)
	orchestrator := payment.NewOrchestrator(db, led, dir, bus, log)

	// ── Fraud worker ──────────────────────────────────────────────────────
	store := fraud.NewStore(db, led)
	engine := fraud.NewEngine(store, nil, log)

	var alerter fraud.Alerter = fraud.NopAlerter{}
	if cfg.AlertWebhookURL != "" {
		alerter = fraud.NewWebhookAlerter(cfg.AlertWebhookURL, log)
	}
	worker := fraud.NewWorker(engine, store, alerter, nc, cfg.FraudQueueGroup, log)

	app := NewApp([]Server{worker})
	core := &Core{Ledger: led, Payments: orchestrator}

	return app, core, runCleanup(cleanupFns), nil
}

// runCleanup returns a single function that calls all cleanup functions in reverse order.
func runCleanup(fns []func()) func() {
	return func() {
		for i := len(fns) - 1; i >= 0; i-- {
			fns[i]()
		}
	}
}
