package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	TokensIssuedTotal  *prometheus.CounterVec
	GrantFailuresTotal *prometheus.CounterVec
	DevicePollsTotal   *prometheus.CounterVec
	TokensRevokedTotal prometheus.Counter
	DeviceFlowsStarted prometheus.Counter
)

// InitCustomMetrics initializes and registers the authorization server
// metrics. It should be called once at application startup.
func InitCustomMetrics(reg prometheus.Registerer) {
	TokensIssuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_tokens_issued_total",
		Help: "Total number of access tokens issued, by grant type.",
	}, []string{"grant_type"})
	GrantFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_grant_failures_total",
		Help: "Total number of rejected token requests, by error code.",
	}, []string{"error"})
	DevicePollsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_device_polls_total",
		Help: "Total number of device grant polls, by outcome.",
	}, []string{"outcome"})
	TokensRevokedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_tokens_revoked_total",
		Help: "Total number of tokens revoked.",
	})
	DeviceFlowsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_device_flows_started_total",
		Help: "Total number of device authorization flows started.",
	})

	if reg == nil {
		return
	}
	for _, c := range []prometheus.Collector{
		TokensIssuedTotal, GrantFailuresTotal, DevicePollsTotal,
		TokensRevokedTotal, DeviceFlowsStarted,
	} {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Msg("Failed to register metric")
		}
	}
}

func init() {
	// Metrics are usable without explicit registration, e.g. in tests.
	InitCustomMetrics(nil)
}
