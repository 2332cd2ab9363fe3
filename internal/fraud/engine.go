package fraud

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pesacore/internal/model"
)

// RiskThreshold is the strict boundary: a transaction is flagged only
// when its score is greater than this value.
const RiskThreshold = 70

const (
	velocityWindow     = time.Minute
	velocityLimit      = 5
	receiverWindow     = 5 * time.Minute
	receiverLimit      = 3
	balanceRatioLimit  = 0.9
	weightVelocity     = 40
	weightLargeAmount  = 30
	weightNewDevice    = 20
	weightSameReceiver = 20
)

// SignalSource supplies the behavioral signals behind the rules. The
// production implementation reads the ledger and journal; tests stub it.
type SignalSource interface {
	SenderBalance(ctx context.Context, userID uuid.UUID) (int64, error)
	KnownDevice(ctx context.Context, userID uuid.UUID, fingerprint string) (bool, error)
	PaymentsToReceiver(ctx context.Context, from, to uuid.UUID, window time.Duration) (int64, error)
	SecondsSinceLastPayment(ctx context.Context, userID uuid.UUID) (float64, error)
	PaymentCount(ctx context.Context, userID uuid.UUID, window time.Duration) (int64, error)
	AvgAmount(ctx context.Context, userID uuid.UUID, window time.Duration) (int64, error)
}

// AnomalyScorer is the optional model hook: a pure function from an
// engineered feature vector to a raw score. Negative output means the
// transaction looks anomalous. When no scorer is configured the engine
// simply omits the bonus term.
type AnomalyScorer func(features []float64) float64

type Engine struct {
	signals  SignalSource
	velocity *velocityTracker
	model    AnomalyScorer
	log      *zap.Logger
	now      func() time.Time
}

func NewEngine(signals SignalSource, model AnomalyScorer, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		signals:  signals,
		velocity: newVelocityTracker(velocityWindow),
		model:    model,
		log:      log,
		now:      time.Now,
	}
}

// Score computes the risk score for one event as the sum of the weights
// of independently triggered rules, plus the optional model bonus.
// Signal lookups that fail are logged and treated as "rule not
// triggered"; scoring never fails as a whole.
func (e *Engine) Score(ctx context.Context, event model.FraudEvent) (int, []string) {
	score := 0
	var reasons []string

	if n := e.velocity.Bump("user:"+event.FromUserID.String(), e.now()); n > velocityLimit {
		score += weightVelocity
		reasons = append(reasons, "high velocity: more than 5 payments in one minute")
	}

	if balance, err := e.signals.SenderBalance(ctx, event.FromUserID); err != nil {
		e.log.Warn("balance signal unavailable", zap.String("tx_id", event.TxID.String()), zap.Error(err))
	} else if float64(event.Amount) > float64(balance)*balanceRatioLimit {
		score += weightLargeAmount
		reasons = append(reasons, "amount exceeds 90% of wallet balance")
	}

	if event.DeviceFingerprint != "" {
		if known, err := e.signals.KnownDevice(ctx, event.FromUserID, event.DeviceFingerprint); err != nil {
			e.log.Warn("device signal unavailable", zap.String("tx_id", event.TxID.String()), zap.Error(err))
		} else if !known {
			score += weightNewDevice
			reasons = append(reasons, "new device detected")
		}
	}

	if n, err := e.signals.PaymentsToReceiver(ctx, event.FromUserID, event.ToUserID, receiverWindow); err != nil {
		e.log.Warn("receiver signal unavailable", zap.String("tx_id", event.TxID.String()), zap.Error(err))
	} else if n > receiverLimit {
		score += weightSameReceiver
		reasons = append(reasons, "repeated payments to same receiver")
	}

	if e.model != nil {
		if features, err := e.features(ctx, event); err != nil {
			e.log.Warn("feature extraction failed", zap.String("tx_id", event.TxID.String()), zap.Error(err))
		} else if raw := e.model(features); raw < 0 {
			if bonus := anomalyBonus(raw); bonus > 0 {
				score += bonus
				reasons = append(reasons, "anomaly model flagged transaction")
			}
		}
	}

	return score, reasons
}

// anomalyBonus maps a negative model output onto 0..50 points. Stronger
// anomalies sit closer to zero, mirroring an isolation-forest decision
// function.
func anomalyBonus(raw float64) int {
	a := math.Abs(raw)
	if a > 1 {
		a = 1
	}
	return int((1 - a) * 50)
}
