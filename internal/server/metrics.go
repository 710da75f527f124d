package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var metricRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "lanclip",
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "HTTP API requests, by route, method and status code.",
}, []string{"route", "method", "code"})

// instrument counts requests served by h under the given route label.
func instrument(route string, h http.HandlerFunc) http.Handler {
	return promhttp.InstrumentHandlerCounter(
		metricRequests.MustCurryWith(prometheus.Labels{"route": route}),
		h,
	)
}
