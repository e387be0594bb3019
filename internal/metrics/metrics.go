// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SelectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "choropleth_selections_total",
		Help: "Attribute selection events received",
	})
	CoalescedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "choropleth_selections_coalesced_total",
		Help: "Selection events superseded by a newer event before being painted",
	})
	RecomputesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "choropleth_recomputes_total",
		Help: "Completed classify and repaint cycles by attribute",
	}, []string{"attribute"})
	RecomputeDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "choropleth_recompute_duration_ms",
		Help:    "Classify and repaint duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
	DocumentCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "choropleth_document_cache_total",
		Help: "Rendered document lookups by kind and result",
	}, []string{"kind", "result"})
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "choropleth_http_requests_total",
		Help: "HTTP requests by route and status code",
	}, []string{"route", "code"})
)

func init() {
	prometheus.MustRegister(SelectionsTotal)
	prometheus.MustRegister(CoalescedTotal)
	prometheus.MustRegister(RecomputesTotal)
	prometheus.MustRegister(RecomputeDurationMs)
	prometheus.MustRegister(DocumentCacheTotal)
	prometheus.MustRegister(HTTPRequestsTotal)
}

// Handler exposes the default registry for scraping.
func Handler() http.Handler { return promhttp.Handler() }
