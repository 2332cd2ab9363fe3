package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WalletMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pesacore_wallet_mutations_total",
		Help: "Wallet credit/debit attempts by operation and outcome.",
	}, []string{"op", "status"})

	WalletMutationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pesacore_wallet_mutation_duration_seconds",
		Help:    "Latency of wallet credit/debit transactions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	PaymentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pesacore_payments_total",
		Help: "Payment attempts by outcome.",
	}, []string{"status"})

	PaymentDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pesacore_payment_duration_seconds",
		Help:    "End-to-end latency of the pay operation.",
		Buckets: prometheus.DefBuckets,
	})

	FraudRiskScore = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pesacore_fraud_risk_score",
		Help: "Risk score of the most recently processed fraud event.",
	})

	FraudScoreDistribution = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pesacore_fraud_score_distribution",
		Help:    "Distribution of computed risk scores.",
		Buckets: prometheus.LinearBuckets(0, 10, 17),
	})

	FraudFlagsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pesacore_fraud_flags_total",
		Help: "Transactions flagged above the risk threshold.",
	})

	FraudEventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pesacore_fraud_events_dropped_total",
		Help: "Fraud events dropped because the payload could not be parsed.",
	})
)
