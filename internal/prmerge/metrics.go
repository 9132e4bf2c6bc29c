package prmerge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricNamespace = "mergekeeper_prmerge"

const (
	eventsMetricName       = "events_total"
	pullRequestsMetricName = "pull_requests_evaluated_total"
	ciPollsMetricName      = "ci_status_polls_total"
)

const (
	eventTypeLabel = "event_type"
	resultLabel    = "result"
)

const (
	resultMerged    = "merged"
	resultNotMerged = "not_merged"
	resultFailed    = "failed"
)

type metricCollector struct {
	events       *prometheus.CounterVec
	pullRequests *prometheus.CounterVec
	ciPolls      prometheus.Counter
}

var metrics = newMetricCollector()

func newMetricCollector() *metricCollector {
	return &metricCollector{
		events: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      eventsMetricName,
				Help:      "count of processed issue events",
			},
			[]string{eventTypeLabel},
		),
		pullRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      pullRequestsMetricName,
				Help:      "count of evaluated pull requests by result",
			},
			[]string{resultLabel},
		),
		ciPolls: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      ciPollsMetricName,
				Help:      "count of CI status evaluations",
			},
		),
	}
}

func (m *metricCollector) event(eventType string) {
	m.events.WithLabelValues(eventType).Inc()
}

func (m *metricCollector) pullRequest(result string) {
	m.pullRequests.WithLabelValues(result).Inc()
}

func (m *metricCollector) ciPoll() {
	m.ciPolls.Inc()
}
