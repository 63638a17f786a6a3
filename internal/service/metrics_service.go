package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/todo-api/internal/security"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP surface and the request-defense layer.
type MetricsService struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	admissionTotal    *prometheus.CounterVec
	securityEvents    *prometheus.CounterVec
	tokenRejections   *prometheus.CounterVec
	droppedAuditTotal prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	admissionTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limit_decisions_total",
		Help: "Admission decisions by endpoint class",
	}, []string{"class", "decision"})

	securityEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "security_events_total",
		Help: "Security events by name and outcome",
	}, []string{"event", "outcome"})

	tokenRejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "token_rejections_total",
		Help: "Rejected bearer tokens by internal reason",
	}, []string{"reason"})

	droppedAudit := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "security_events_dropped_total",
		Help: "Security events not persisted because the buffer was full",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, admissionTotal, securityEvents, tokenRejections, droppedAudit, goroutines)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		admissionTotal:    admissionTotal,
		securityEvents:    securityEvents,
		tokenRejections:   tokenRejections,
		droppedAuditTotal: droppedAudit,
	}
}

// TrackRegistries exposes registry sizes as gauges. Each scrape walks both registries.
func (m *MetricsService) TrackRegistries(revocations *security.RevocationRegistry, limiter *security.RateLimiter) {
	if m == nil {
		return
	}
	if revocations != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "revocation_registry_entries",
			Help: "Revoked token identifiers currently held in memory",
		}, func() float64 { return float64(revocations.Len()) }))
	}
	if limiter != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "rate_limit_windows",
			Help: "Live (client, endpoint class) rate-limit windows",
		}, func() float64 { return float64(limiter.Len()) }))
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the private registry for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordAdmission counts one rate-limit decision.
func (m *MetricsService) RecordAdmission(class string, allowed bool) {
	if m == nil {
		return
	}
	decision := "rejected"
	if allowed {
		decision = "admitted"
	}
	m.admissionTotal.WithLabelValues(class, decision).Inc()
}

// RecordSecurityEvent counts one audit event.
func (m *MetricsService) RecordSecurityEvent(event, outcome string) {
	if m == nil {
		return
	}
	m.securityEvents.WithLabelValues(event, outcome).Inc()
}

// RecordTokenRejection counts a rejected bearer token by reason label.
func (m *MetricsService) RecordTokenRejection(reason string) {
	if m == nil {
		return
	}
	m.tokenRejections.WithLabelValues(reason).Inc()
}

// RecordDroppedSecurityEvent counts an event the persistence buffer could not accept.
func (m *MetricsService) RecordDroppedSecurityEvent() {
	if m == nil {
		return
	}
	m.droppedAuditTotal.Inc()
}
