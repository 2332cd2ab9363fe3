package fraud

import (
	"context"
	"time"

	"pesacore/internal/model"
)

// featureInputs are the raw signal values the feature vector is built
// from. Kept separate from the queries so the encoding stays pure.
type featureInputs struct {
	amount       int64
	balance      int64
	secondsSince float64
	countLast5m  int64
	avgAmount24h int64
	newDevice    bool
	newIP        bool
	hourOfDay    int
}

// buildFeatures encodes the 8-element vector consumed by the anomaly
// scorer: normalized amount, hours since last transaction, recent
// transaction count, normalized 24h average amount, new-device flag,
// new-ip flag, balance ratio, normalized hour-of-day.
func buildFeatures(in featureInputs) []float64 {
	newDevice := 0.0
	if in.newDevice {
		newDevice = 1.0
	}
	newIP := 0.0
	if in.newIP {
		newIP = 1.0
	}
	balance := in.balance
	if balance < 1 {
		balance = 1
	}
	return []float64{
		float64(in.amount) / 1_000_000,
		in.secondsSince / 3600,
		float64(in.countLast5m),
		float64(in.avgAmount24h) / 1_000_000,
		newDevice,
		newIP,
		float64(in.amount) / float64(balance),
		float64(in.hourOfDay) / 24,
	}
}

func (e *Engine) features(ctx context.Context, event model.FraudEvent) ([]float64, error) {
	balance, err := e.signals.SenderBalance(ctx, event.FromUserID)
	if err != nil {
		return nil, err
	}
	secondsSince, err := e.signals.SecondsSinceLastPayment(ctx, event.FromUserID)
	if err != nil {
		return nil, err
	}
	countLast5m, err := e.signals.PaymentCount(ctx, event.FromUserID, 5*time.Minute)
	if err != nil {
		return nil, err
	}
	avg24h, err := e.signals.AvgAmount(ctx, event.FromUserID, 24*time.Hour)
	if err != nil {
		return nil, err
	}

	newDevice := false
	if event.DeviceFingerprint != "" {
		known, err := e.signals.KnownDevice(ctx, event.FromUserID, event.DeviceFingerprint)
		if err != nil {
			return nil, err
		}
		newDevice = !known
	}

	return buildFeatures(featureInputs{
		amount:       event.Amount,
		balance:      balance,
		secondsSince: secondsSince,
		countLast5m:  countLast5m,
		avgAmount24h: avg24h,
		newDevice:    newDevice,
		// Identity does not share IP history with this core yet, so the
		// new-ip feature stays zero.
		newIP:     false,
		hourOfDay: event.Timestamp.UTC().Hour(),
	}), nil
}
