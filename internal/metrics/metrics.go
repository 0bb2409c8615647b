package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its registry so tests and multiple apps do not collide.
// All methods are safe on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	SalesTotal       *prometheus.CounterVec
	SaleAmountTotal  prometheus.Counter
	StockMovements   *prometheus.CounterVec
	StockRejections  *prometheus.CounterVec
	ImportOrders     *prometheus.CounterVec
	ReportCacheHits  *prometheus.CounterVec
	AuthAttempts     *prometheus.CounterVec
	EventPublishFail *prometheus.CounterVec
}

func New(prefix string) *Metrics {
	if prefix == "" {
		prefix = "bookstore"
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		SalesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_sales_total",
			Help: "Committed sale transactions by payment method",
		}, []string{"payment_method"}),
		SaleAmountTotal: f.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_sales_amount_total",
			Help: "Sum of committed sale totals",
		}),
		StockMovements: f.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_stock_movements_total",
			Help: "Units moved by committed stock operations",
		}, []string{"direction"}),
		StockRejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_stock_rejections_total",
			Help: "Operations rejected for insufficient stock",
		}, []string{"operation"}),
		ImportOrders: f.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_import_orders_total",
			Help: "Imported orders by outcome",
		}, []string{"outcome"}),
		ReportCacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_report_cache_total",
			Help: "Report cache lookups by result",
		}, []string{"result"}),
		AuthAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_auth_attempts_total",
			Help: "Login attempts by result",
		}, []string{"result"}),
		EventPublishFail: f.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_event_publish_failures_total",
			Help: "Domain events that failed to publish",
		}, []string{"action"}),
	}
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveHTTP(method, path, status string, took time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(took.Seconds())
}

func (m *Metrics) RecordSale(paymentMethod string, amount float64) {
	if m == nil {
		return
	}
	m.SalesTotal.WithLabelValues(paymentMethod).Inc()
	m.SaleAmountTotal.Add(amount)
}

// RecordStock counts units; direction is "in" or "out"
func (m *Metrics) RecordStock(direction string, units int) {
	if m == nil || units <= 0 {
		return
	}
	m.StockMovements.WithLabelValues(direction).Add(float64(units))
}

func (m *Metrics) RecordStockRejection(operation string) {
	if m == nil {
		return
	}
	m.StockRejections.WithLabelValues(operation).Inc()
}

// RecordImport counts orders; outcome is imported, replaced or failed
func (m *Metrics) RecordImport(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ImportOrders.WithLabelValues(outcome).Add(float64(n))
}

func (m *Metrics) RecordCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.ReportCacheHits.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordAuth(result string) {
	if m == nil {
		return
	}
	m.AuthAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordPublishFailure(action string) {
	if m == nil {
		return
	}
	m.EventPublishFail.WithLabelValues(action).Inc()
}
