package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	TokenValidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "addressmapper", Name: "token_validations_total", Help: "Number of incoming token validations by result."},
		[]string{"result"},
	)
	LookupRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "addressmapper", Name: "lookup_requests_total", Help: "Number of partner Lookup API requests by kind and result."},
		[]string{"kind", "result"},
	)
	Reconciliations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "addressmapper", Name: "reconciliations_total", Help: "Number of identity reconciliations by entity and outcome."},
		[]string{"entity", "outcome"},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "addressmapper", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "addressmapper", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(TokenValidations)
	reg.MustRegister(LookupRequests)
	reg.MustRegister(Reconciliations)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}
