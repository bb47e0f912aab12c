package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "castboard", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "castboard", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	// Mutations counts committed writes, labelled by entity (episode|comment)
	// and action (create|update|delete).
	Mutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "castboard", Name: "mutations_total", Help: "Number of committed entity mutations."},
		[]string{"entity", "action"},
	)
	CSRFRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "castboard", Name: "csrf_rejected_total", Help: "Number of delete actions skipped because of an invalid CSRF token."},
		[]string{"entity"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(Mutations)
	reg.MustRegister(CSRFRejected)
}
