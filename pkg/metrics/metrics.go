package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/clipcast/clipcast/internal/common/config"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry    *prometheus.Registry
	namespace   string
	httpReqCnt  *prometheus.CounterVec
	httpDur     *prometheus.HistogramVec
	httpInfl    *prometheus.GaugeVec
	wsConns     prometheus.Gauge
	notifSent   *prometheus.CounterVec
	notifDrop   *prometheus.CounterVec
	registryErr *prometheus.CounterVec
	relayPub    prometheus.Counter
	relayRecv   prometheus.Counter
}

func New(cfg config.MetricsConfig) *Metrics {
	ns := cfg.Namespace
	r := prometheus.NewRegistry()
	// Register standard process and Go collectors
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	// Register basic HTTP metrics
	httpReqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total"}, []string{"method", "route", "status"})
	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "http_request_duration_seconds", Buckets: cfg.Buckets}, []string{"method", "route", "status"})
	httpInfl := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: ns, Name: "http_requests_inflight"}, []string{"route"})
	r.MustRegister(httpReqCnt, httpDur, httpInfl)

	wsConns := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: ns, Name: "ws_connections"})
	notifSent := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "notifications_delivered_total"}, []string{"event"})
	notifDrop := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "notifications_dropped_total"}, []string{"event", "reason"})
	registryErr := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "presence_registry_errors_total"}, []string{"op"})
	relayPub := prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: "relay_envelopes_published_total"})
	relayRecv := prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: "relay_envelopes_received_total"})
	r.MustRegister(wsConns, notifSent, notifDrop, registryErr, relayPub, relayRecv)

	return &Metrics{
		registry:    r,
		namespace:   ns,
		httpReqCnt:  httpReqCnt,
		httpDur:     httpDur,
		httpInfl:    httpInfl,
		wsConns:     wsConns,
		notifSent:   notifSent,
		notifDrop:   notifDrop,
		registryErr: registryErr,
		relayPub:    relayPub,
		relayRecv:   relayRecv,
	}
}

func (m *Metrics) ConnOpened() { m.wsConns.Inc() }
func (m *Metrics) ConnClosed() { m.wsConns.Dec() }

func (m *Metrics) NotificationDelivered(event string) {
	m.notifSent.WithLabelValues(event).Inc()
}

func (m *Metrics) NotificationDropped(event, reason string) {
	m.notifDrop.WithLabelValues(event, reason).Inc()
}

func (m *Metrics) RegistryError(op string) {
	m.registryErr.WithLabelValues(op).Inc()
}

func (m *Metrics) RelayPublished() { m.relayPub.Inc() }
func (m *Metrics) RelayReceived() { m.relayRecv.Inc() }

func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		m.httpInfl.WithLabelValues(route).Inc()
		start := time.Now()
		c.Next()
		status := httpStatus(c.Writer.Status())
		m.httpReqCnt.WithLabelValues(c.Request.Method, route, status).Inc()
		m.httpDur.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		m.httpInfl.WithLabelValues(route).Dec()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func httpStatus(code int) string { return strconv.Itoa(code) }
