package pot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricValidators = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "truetrust_validators",
		Help: "Number of registered validators.",
	})
	metricEpoch = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "truetrust_epoch",
		Help: "Current epoch number.",
	})
	metricTotalTrust = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "truetrust_total_trust",
		Help: "Sum of validator trust scores in the latest snapshot, as a float.",
	})
	metricQualityReports = promauto.NewCounter(prometheus.CounterOpts{
		Name: "truetrust_quality_reports_total",
		Help: "Number of quality reports recorded.",
	})
	metricVouches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "truetrust_vouches_total",
		Help: "Number of vouches accepted.",
	})
	metricVouchesRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "truetrust_vouches_rejected_total",
		Help: "Number of vouches rejected by the trust gate.",
	})
	metricLeaderSelections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "truetrust_leader_selections_total",
		Help: "Number of leader selections performed.",
	})
	metricEpochAdvance = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "truetrust_epoch_advance_seconds",
		Help:    "Time spent advancing an epoch (trust update, normalization, snapshot).",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	})
)
