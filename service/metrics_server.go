package service

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer exposes the prometheus registry.
type MetricsServer struct {
	httpServer
	gatherer prometheus.Gatherer
}

// NewMetricsServer serves gatherer, or the default registry when gatherer is
// nil, on addr.
func NewMetricsServer(addr string, gatherer prometheus.Gatherer) *MetricsServer {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	m := &MetricsServer{gatherer: gatherer}
	m.httpServer = newHTTPServer("metrics", addr, m.Handler())
	return m
}

func (m *MetricsServer) Handler() http.Handler {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return router
}
