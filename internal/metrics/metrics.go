package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	PaymentTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "astro",
		Subsystem: "billing",
		Name:      "payment_transitions_total",
		Help:      "Payment status transitions, including rejected attempts.",
	}, []string{"from", "to", "result"})

	EntitlementChanges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "astro",
		Subsystem: "billing",
		Name:      "entitlement_changes_total",
		Help:      "Entitlement grants and revocations by reason.",
	}, []string{"change", "reason"})

	JobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "astro",
		Subsystem: "jobs",
		Name:      "run_duration_seconds",
		Help:      "Duration of periodic job runs.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"job", "result"})
)

// Register adds all billing collectors to reg.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{PaymentTransitions, EntitlementChanges, JobDuration} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func ObserveTransition(from, to string, ok bool) {
	result := "ok"
	if !ok {
		result = "rejected"
	}
	PaymentTransitions.WithLabelValues(from, to, result).Inc()
}

func ObserveJob(job string, started time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	JobDuration.WithLabelValues(job, result).Observe(time.Since(started).Seconds())
}
