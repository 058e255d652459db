package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus collectors for door verification and billing webhooks
var (
	VerificationAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verification_attempts_total",
			Help: "Total number of membership verification attempts by result",
		},
		[]string{"result"},
	)

	VerificationFlagsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verification_flags_total",
			Help: "Total number of verification attempts flagged by the anomaly heuristic",
		},
		[]string{"reason"},
	)

	AuditWriteFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "verification_audit_write_failures_total",
			Help: "Total number of verification events that could not be recorded",
		},
	)

	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Total number of webhook deliveries by path and terminal status",
		},
		[]string{"path", "status"},
	)

	WebhookProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhook_processing_duration_seconds",
			Help:    "Duration of webhook delivery handling",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	PassesIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "passes_issued_total",
			Help: "Total number of signed pass payloads issued by channel",
		},
		[]string{"channel"},
	)
)

// Register registers all Prometheus metrics
func Register() {
	prometheus.MustRegister(VerificationAttemptsTotal)
	prometheus.MustRegister(VerificationFlagsTotal)
	prometheus.MustRegister(AuditWriteFailuresTotal)
	prometheus.MustRegister(WebhookEventsTotal)
	prometheus.MustRegister(WebhookProcessingDuration)
	prometheus.MustRegister(PassesIssuedTotal)
}
