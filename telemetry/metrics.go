// Package telemetry provides Prometheus metrics for the reconciler and the proxy service client.
package telemetry

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	Notifications   *prometheus.CounterVec // labels: outcome, event
	PendingMessages prometheus.Gauge
	SweepExpired    prometheus.Counter
	WebhookAuth     *prometheus.CounterVec // labels: result
	APIRequests     *prometheus.CounterVec // labels: status
	APIDuration     prometheus.Observer
)

// Init registers metrics (idempotent). The record helpers call it, so the
// collectors are never read before they are assigned.
func Init() {
	once.Do(func() {
		Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pkbot_notifications_total",
			Help: "Terminal notifications emitted, by outcome and source event",
		}, []string{"outcome", "event"})
		PendingMessages = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pkbot_pending_messages",
			Help: "Messages waiting for a proxy decision",
		})
		SweepExpired = promauto.NewCounter(prometheus.CounterOpts{
			Name: "pkbot_sweep_expired_total",
			Help: "Pending messages resolved as unproxied by the grace period sweep",
		})
		WebhookAuth = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pkbot_webhook_auth_total",
			Help: "Webhook authentication attempts, by result",
		}, []string{"result"})
		APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pkbot_proxy_api_requests_total",
			Help: "Proxy service message lookups, by status",
		}, []string{"status"})
		APIDuration = promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pkbot_proxy_api_duration_seconds",
			Help:    "Proxy service request duration seconds",
			Buckets: prometheus.DefBuckets,
		})
	})
}

// RecordNotification counts one terminal notification.
func RecordNotification(outcome, event string) {
	Init()
	Notifications.WithLabelValues(outcome, event).Inc()
}

// SetPending records the current pending buffer size.
func SetPending(n int) {
	Init()
	PendingMessages.Set(float64(n))
}

// AddExpired counts messages drained by a sweep.
func AddExpired(n int) {
	if n <= 0 {
		return
	}
	Init()
	SweepExpired.Add(float64(n))
}

// RecordWebhookAuth counts an authentication attempt.
func RecordWebhookAuth(ok bool) {
	Init()
	result := "rejected"
	if ok {
		result = "accepted"
	}
	WebhookAuth.WithLabelValues(result).Inc()
}

// RecordAPIRequest counts a proxy service request and its latency.
func RecordAPIRequest(status string, d time.Duration) {
	Init()
	APIRequests.WithLabelValues(status).Inc()
	APIDuration.Observe(d.Seconds())
}
