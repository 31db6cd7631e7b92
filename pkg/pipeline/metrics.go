package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

const prometheusMetricNamespace = "credit_forecast"

var (
	runTotalCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: prometheusMetricNamespace,
			Name:      "runs_total",
			Help:      "Number of job runs started.",
		},
		[]string{"job"},
	)

	runFailedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: prometheusMetricNamespace,
			Name:      "runs_failed_total",
			Help:      "Number of job runs that failed, by failing stage.",
		},
		[]string{"job", "stage"},
	)

	stageDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: prometheusMetricNamespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each stage of a job run.",
			Buckets:   []float64{1, 5, 15, 60, 300, 900},
		},
		[]string{"job", "stage"},
	)

	seriesFittedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: prometheusMetricNamespace,
			Name:      "series_fitted_total",
			Help:      "Number of series a forecast model was fitted for.",
		},
		[]string{"job"},
	)

	rowsPublishedGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: prometheusMetricNamespace,
			Name:      "rows_published",
			Help:      "Number of rows in the last published report.",
		},
		[]string{"job"},
	)

	lastSuccessGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: prometheusMetricNamespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		},
		[]string{"job"},
	)
)

func init() {
	prometheus.MustRegister(runTotalCounter)
	prometheus.MustRegister(runFailedCounter)
	prometheus.MustRegister(stageDurationHistogram)
	prometheus.MustRegister(seriesFittedCounter)
	prometheus.MustRegister(rowsPublishedGauge)
	prometheus.MustRegister(lastSuccessGauge)
}

// Collectors returns the pipeline metrics, for pushing them from one-shot
// runs.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		runTotalCounter,
		runFailedCounter,
		stageDurationHistogram,
		seriesFittedCounter,
		rowsPublishedGauge,
		lastSuccessGauge,
	}
}
