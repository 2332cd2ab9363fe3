package fraud

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"pesacore/internal/metrics"
	"pesacore/internal/model"
	"pesacore/internal/payment"
)

// FlagStore persists flags for transactions scoring above the threshold.
type FlagStore interface {
	UpsertFlag(ctx context.Context, flag model.FraudFlag) error
}

// Worker consumes fraud events from NATS and scores them. Events are
// handled independently; no cross-event ordering is assumed. Malformed
// payloads are dropped and logged, never allowed to stall the loop.
type Worker struct {
	engine  *Engine
	flags   FlagStore
	alerter Alerter
	nc      *nats.Conn
	group   string
	log     *zap.Logger
}

func NewWorker(engine *Engine, flags FlagStore, alerter Alerter, nc *nats.Conn, group string, log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	if alerter == nil {
		alerter = NopAlerter{}
	}
	if group == "" {
		group = "fraud_workers"
	}
	return &Worker{
		engine:  engine,
		flags:   flags,
		alerter: alerter,
		nc:      nc,
		group:   group,
		log:     log,
	}
}

// Start subscribes to the fraud topic and blocks until ctx is cancelled.
// QueueSubscribe spreads events across worker instances in the group;
// each instance keeps its own velocity counters.
func (w *Worker) Start(ctx context.Context) error {
	go w.engine.velocity.Run(ctx)

	sub, err := w.nc.QueueSubscribe(payment.FraudTopic, w.group, func(m *nats.Msg) {
		w.Handle(ctx, m.Data)
	})
	if err != nil {
		return fmt.Errorf("fraud worker: subscribe: %w", err)
	}

	w.log.Info("fraud worker running", zap.String("topic", payment.FraudTopic), zap.String("group", w.group))

	<-ctx.Done()

	w.log.Info("fraud worker shutting down, draining subscription")
	return sub.Drain()
}

// Stop implements the infrastructure.Server interface; shutdown happens
// via ctx in Start.
func (w *Worker) Stop(ctx context.Context) error {
	return nil
}

// Handle scores one raw event payload.
func (w *Worker) Handle(ctx context.Context, data []byte) {
	var event model.FraudEvent
	if err := json.Unmarshal(data, &event); err != nil {
		metrics.FraudEventsDropped.Inc()
		w.log.Error("dropping unparseable fraud event", zap.Error(err))
		return
	}

	score, reasons := w.engine.Score(ctx, event)
	metrics.FraudRiskScore.Set(float64(score))
	metrics.FraudScoreDistribution.Observe(float64(score))

	if score <= RiskThreshold {
		return
	}

	w.log.Warn("high risk transaction flagged",
		zap.String("tx_id", event.TxID.String()),
		zap.Int("risk_score", score),
		zap.Strings("reasons", reasons),
	)

	if err := w.flags.UpsertFlag(ctx, model.FraudFlag{
		TxID:      event.TxID,
		RiskScore: score,
		Reason:    strings.Join(reasons, "; "),
	}); err != nil {
		w.log.Error("failed to persist fraud flag", zap.String("tx_id", event.TxID.String()), zap.Error(err))
	}

	if err := w.alerter.Send(ctx, model.Alert{
		TxID:       event.TxID,
		FromUserID: event.FromUserID,
		ToUserID:   event.ToUserID,
		Amount:     event.Amount,
		RiskScore:  score,
		Reasons:    reasons,
		Timestamp:  event.Timestamp,
	}); err != nil {
		w.log.Error("alert delivery failed", zap.String("tx_id", event.TxID.String()), zap.Error(err))
	}

	metrics.FraudFlagsTotal.Inc()
}
