package syncer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricLocalChanges = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lanclip",
		Subsystem: "sync",
		Name:      "local_changes_total",
		Help:      "Local clipboard changes committed after debouncing.",
	})
	metricEchoes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lanclip",
		Subsystem: "sync",
		Name:      "echoes_suppressed_total",
		Help:      "Local changes dropped as echoes of applied remote content.",
	})
	metricPushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lanclip",
		Subsystem: "sync",
		Name:      "pushes_total",
		Help:      "Clipboard pushes to peers, by outcome.",
	}, []string{"result"})
	metricPulls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lanclip",
		Subsystem: "sync",
		Name:      "pulls_total",
		Help:      "Clipboard pulls from peers, by outcome.",
	}, []string{"result"})
	metricApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lanclip",
		Subsystem: "sync",
		Name:      "remote_updates_total",
		Help:      "Remote clipboard updates received, by outcome.",
	}, []string{"result"})
)

const (
	resultOK    = "ok"
	resultError = "error"
)
