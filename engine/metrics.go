package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	LabelResult = "result"
	LabelMode   = "mode"
	LabelReason = "reason"
)

var (
	RebuildTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prodrec",
		Subsystem: "engine",
		Name:      "rebuild_total",
	}, []string{LabelResult})
	RebuildSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "prodrec",
		Subsystem: "engine",
		Name:      "rebuild_seconds",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	})
	ModelVersion = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "prodrec",
		Subsystem: "engine",
		Name:      "model_version",
	})
	ModelUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "prodrec",
		Subsystem: "engine",
		Name:      "model_users",
	})
	ModelProducts = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "prodrec",
		Subsystem: "engine",
		Name:      "model_products",
	})
	RecommendTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prodrec",
		Subsystem: "engine",
		Name:      "recommend_total",
	}, []string{LabelMode})
	RecommendEmptyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prodrec",
		Subsystem: "engine",
		Name:      "recommend_empty_total",
	}, []string{LabelMode, LabelReason})
)
