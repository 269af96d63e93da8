package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsManager holds the service's Prometheus collectors on a private registry.
type MetricsManager struct {
	Registry               *prometheus.Registry
	PropertiesCreatedTotal prometheus.Counter
	PropertyUpdatesTotal   prometheus.Counter
	PropertyDeletesTotal   prometheus.Counter
	PropertiesStored       prometheus.Gauge
	HTTPRequestsTotal      *prometheus.CounterVec
	HTTPRequestLatency     *prometheus.HistogramVec
}

func NewMetricsManager(namespace string) *MetricsManager {
	registry := prometheus.NewRegistry()

	m := &MetricsManager{
		Registry: registry,
		PropertiesCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "properties_created_total",
			Help:      "Total number of properties created.",
		}),
		PropertyUpdatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "property_updates_total",
			Help:      "Total number of properties updated.",
		}),
		PropertyDeletesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "property_deletes_total",
			Help:      "Total number of properties deleted.",
		}),
		PropertiesStored: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "properties_stored",
			Help:      "Number of properties currently held by the store.",
		}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by route and status code.",
		}, []string{"method", "route", "status"}),
		HTTPRequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_latency_seconds",
			Help:      "Latency of HTTP requests by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	registry.MustRegister(
		m.PropertiesCreatedTotal,
		m.PropertyUpdatesTotal,
		m.PropertyDeletesTotal,
		m.PropertiesStored,
		m.HTTPRequestsTotal,
		m.HTTPRequestLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *MetricsManager) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Recorder adapts the manager to the usecase's mutation hooks.
type Recorder struct {
	m *MetricsManager
}

func (m *MetricsManager) Recorder() Recorder { return Recorder{m: m} }

func (r Recorder) Created() {
	r.m.PropertiesCreatedTotal.Inc()
	r.m.PropertiesStored.Inc()
}

func (r Recorder) Updated() { r.m.PropertyUpdatesTotal.Inc() }

func (r Recorder) Deleted() {
	r.m.PropertyDeletesTotal.Inc()
	r.m.PropertiesStored.Dec()
}

// Stored resets the gauge, e.g. after the initial load.
func (r Recorder) Stored(n int) { r.m.PropertiesStored.Set(float64(n)) }
