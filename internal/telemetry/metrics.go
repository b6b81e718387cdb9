// Package telemetry exposes Prometheus metrics for the HTTP surface and the
// discount workflows.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ghsales/discount-engine/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "discount_engine"

// Metrics holds the collectors of one registry.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge

	activations   *prometheus.CounterVec
	rateEdits     prometheus.Counter
	importedRows  *prometheus.CounterVec
	quotes        *prometheus.CounterVec
	budgetMatches prometheus.Histogram
	notifications *prometheus.CounterVec
}

// NewMetrics creates the collectors on a fresh registry that also carries the
// Go runtime and process collectors.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method", "path"}),
		requestsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		}),
		activations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "versions",
			Name:      "activations_total",
			Help:      "Discount version activations by kind (first or change)",
		}, []string{"kind"}),
		rateEdits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "versions",
			Name:      "rate_modifications_total",
			Help:      "Rate values actually changed in drafts",
		}),
		importedRows: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "versions",
			Name:      "imported_rows_total",
			Help:      "Spreadsheet rows imported into drafts by result",
		}, []string{"result"}),
		quotes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "quotes_total",
			Help:      "Pricing and installment quotes by product and result code",
		}, []string{"product", "result"}),
		budgetMatches: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "budget_matches",
			Help:      "Units matched per budget search",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}),
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "notifications_total",
			Help:      "Activation notifications by delivery result",
		}, []string{"result"}),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request counts, durations and in-flight requests. The
// path label is the matched ServeMux pattern, which keeps ids out of labels.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.requestsInFlight.Inc()
		defer m.requestsInFlight.Dec()

		wrapped := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		m.requestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		m.requestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// VersionActivated counts an activation.
func (m *Metrics) VersionActivated(first bool) {
	kind := "change"
	if first {
		kind = "first"
	}
	m.activations.WithLabelValues(kind).Inc()
}

// RatesModified counts real rate modifications of a draft update.
func (m *Metrics) RatesModified(n int) {
	m.rateEdits.Add(float64(n))
}

// RowsImported counts the rows of an import attempt.
func (m *Metrics) RowsImported(n int, err error) {
	m.importedRows.WithLabelValues(result(err)).Add(float64(n))
}

// Quote counts a quote of a product, labelled by the error code of err.
func (m *Metrics) Quote(product string, err error) {
	m.quotes.WithLabelValues(product, result(err)).Inc()
}

// BudgetSearch records the number of units a budget search matched.
func (m *Metrics) BudgetSearch(matches int) {
	m.budgetMatches.Observe(float64(matches))
}

// NotificationSent counts a notification delivery attempt.
func (m *Metrics) NotificationSent(err error) {
	m.notifications.WithLabelValues(result(err)).Inc()
}

func result(err error) string {
	if err == nil {
		return "ok"
	}
	return domain.ErrorCode(err)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
