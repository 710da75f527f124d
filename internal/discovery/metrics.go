package discovery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lanclip",
		Subsystem: "discovery",
		Name:      "announcements_sent_total",
		Help:      "Announcement datagrams sent, one per destination.",
	})
	metricSendErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lanclip",
		Subsystem: "discovery",
		Name:      "send_errors_total",
		Help:      "Announcement datagrams that failed to send.",
	})
	metricReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lanclip",
		Subsystem: "discovery",
		Name:      "announcements_received_total",
		Help:      "Announcement datagrams received, by outcome.",
	}, []string{"result"})
)

const (
	resultAccepted  = "accepted"
	resultSelf      = "self"
	resultMalformed = "malformed"
)
