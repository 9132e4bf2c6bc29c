package branchmerge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricNamespace = "mergekeeper_branchmerge"

const (
	outcomesMetricName = "repository_outcomes_total"
	errorsMetricName   = "errors_total"
	runsMetricName     = "runs_total"
)

const (
	statusLabel   = "status"
	stageLabel    = "stage"
	severityLabel = "severity"
)

type metricCollector struct {
	outcomes *prometheus.CounterVec
	errors   *prometheus.CounterVec
	runs     prometheus.Counter
}

var metrics = newMetricCollector()

func newMetricCollector() *metricCollector {
	return &metricCollector{
		outcomes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      outcomesMetricName,
				Help:      "count of evaluated repositories by outcome",
			},
			[]string{statusLabel},
		),
		errors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      errorsMetricName,
				Help:      "count of recorded errors and warnings",
			},
			[]string{stageLabel, severityLabel},
		),
		runs: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      runsMetricName,
				Help:      "count of branch merge runs",
			},
		),
	}
}

func (m *metricCollector) outcome(s Status) {
	m.outcomes.WithLabelValues(string(s)).Inc()
}

func (m *metricCollector) error(stage Stage, severity Severity) {
	m.errors.WithLabelValues(string(stage), string(severity)).Inc()
}

func (m *metricCollector) run() {
	m.runs.Inc()
}
