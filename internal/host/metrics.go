package host

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zlc_ai/appevents-bridge/internal/protocol"
)

const (
	taskQueued   = "queued"
	taskOverflow = "overflow"
	taskDropped  = "dropped"
	taskPanicked = "panicked"
)

// Metrics exposes Prometheus collectors that report bridge activity.
type Metrics struct {
	commands *prometheus.CounterVec
	results  *prometheus.CounterVec
	tasks    *prometheus.CounterVec
}

// MustNewMetrics constructs Metrics registered with reg. Registration errors
// panic, so tests should pass a fresh prometheus.NewRegistry().
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	commands := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "appevents_bridge",
			Subsystem: "host",
			Name:      "commands_total",
			Help:      "Exec commands dispatched, by service, action and whether a plugin handled them.",
		},
		[]string{"service", "action", "handled"},
	)
	results := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "appevents_bridge",
			Subsystem: "host",
			Name:      "results_total",
			Help:      "Plugin results delivered to script callers, by status.",
		},
		[]string{"status"},
	)
	tasks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "appevents_bridge",
			Subsystem: "host",
			Name:      "background_tasks_total",
			Help:      "Background tasks submitted to the worker pool, by outcome.",
		},
		[]string{"outcome"},
	)

	reg.MustRegister(commands, results, tasks)
	return &Metrics{commands: commands, results: results, tasks: tasks}
}

func (m *Metrics) command(service, action string, handled bool) {
	if m == nil {
		return
	}
	label := "false"
	if handled {
		label = "true"
	}
	m.commands.WithLabelValues(service, action, label).Inc()
}

func (m *Metrics) result(status protocol.Status) {
	if m == nil {
		return
	}
	m.results.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) taskDone(outcome string) {
	if m == nil {
		return
	}
	m.tasks.WithLabelValues(outcome).Inc()
}
