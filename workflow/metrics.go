package workflow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/justinsantoro/warframesync/workspace"
)

const (
	resultPublished = "published"
	resultUnchanged = "unchanged"
	resultDiscarded = "discarded"
	resultFailed    = "failed"
	resultSkipped   = "skipped"
)

//Metrics counts workflow runs per repository and outcome
type Metrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

//NewMetrics creates the workflow metrics and registers them with reg. A nil
//reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "warframesync",
			Subsystem: "workflow",
			Name:      "runs_total",
			Help:      "Workflow runs by repository and result.",
		}, []string{"repository", "result"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "warframesync",
			Subsystem: "workflow",
			Name:      "run_duration_seconds",
			Help:      "Duration of workflow runs that were not skipped.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"repository"}),
	}
}

func (m *Metrics) observe(d workspace.Descriptor, result string, elapsed time.Duration) {
	m.runs.WithLabelValues(d.Directory, result).Inc()
	if result != resultSkipped {
		m.duration.WithLabelValues(d.Directory).Observe(elapsed.Seconds())
	}
}
