package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Verification and provisioning metrics. Defined in a standalone package to
// avoid import cycles between the token/jwks packages and the HTTP layer.

var (
	TokenVerifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "token_verifications_total",
		Help: "Bearer token verification attempts by provider and result",
	}, []string{"provider", "result"}) // result: ok|invalid|unavailable

	TokenExchanges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "token_exchanges_total",
		Help: "External-to-native token exchanges by provider and result",
	}, []string{"provider", "result"}) // result: ok|invalid|failed

	JWKSFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jwks_fetches_total",
		Help: "JWKS document fetches by result",
	}, []string{"result"}) // result: ok|error
)

// RegisterAuth registers the auth metrics on the given registry (or the
// default if nil).
func RegisterAuth(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{TokenVerifications, TokenExchanges, JWKSFetches} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
