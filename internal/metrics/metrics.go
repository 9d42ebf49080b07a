package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "callcenter"

var (
	ProviderRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_requests_total",
		Help:      "Telephony provider requests by operation and result.",
	}, []string{"operation", "result"})

	Webhooks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhooks_total",
		Help:      "Provider webhooks received by kind and result.",
	}, []string{"kind", "result"})

	CallTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "call_transitions_total",
		Help:      "Committed call status transitions.",
	}, []string{"from", "to"})

	IgnoredCallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "call_callbacks_ignored_total",
		Help:      "Status callbacks that produced no write.",
	}, []string{"reason"})

	AgentsReleased = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "agents_released_total",
		Help:      "Agents freed after their call reached a terminal status.",
	})

	SweepRepairs = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sweeper_repairs_total",
		Help:      "Busy agents freed by the sweeper because their call was terminal or missing.",
	})

	EventPublishFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "event_publish_failures_total",
		Help:      "State-change events that could not be published.",
	})

	RateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the per-IP rate limiter.",
	}, []string{"scope"})
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		ProviderRequests,
		Webhooks,
		CallTransitions,
		IgnoredCallbacks,
		AgentsReleased,
		SweepRepairs,
		EventPublishFailures,
		RateLimited,
	}
}

// Register adds the service collectors to reg. Registering twice is not an error.
func Register(reg prometheus.Registerer) error {
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// Handler serves the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// ObserveProvider records the result of one provider operation.
func ObserveProvider(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	ProviderRequests.WithLabelValues(op, result).Inc()
}

// ObserveWebhook records a processed webhook.
func ObserveWebhook(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	Webhooks.WithLabelValues(kind, result).Inc()
}

// ObserveTransition records a committed call status change.
func ObserveTransition(from, to string) {
	CallTransitions.WithLabelValues(from, to).Inc()
}

// ObserveIgnored records a callback that was absorbed without a write.
func ObserveIgnored(reason string) {
	IgnoredCallbacks.WithLabelValues(reason).Inc()
}
