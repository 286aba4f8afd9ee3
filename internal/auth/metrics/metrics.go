// Package metrics holds the prometheus collectors of the auth service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result labels shared by the login and refresh counters.
const (
	ResultSuccess     = "success"
	ResultInvalid     = "invalid"
	ResultExpired     = "expired"
	ResultRateLimited = "rate_limited"
	ResultUnavailable = "unavailable"
	ResultError       = "error"
)

type Metrics struct {
	loginTotal   *prometheus.CounterVec
	refreshTotal *prometheus.CounterVec
	gateRejects  *prometheus.CounterVec
	reg          prometheus.Registerer
}

// New registers the collectors on reg. A nil reg uses a private registry,
// which keeps tests from colliding on the default one.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		loginTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "authcore_login_total",
			Help: "Login attempts by result",
		}, []string{"result"}),
		refreshTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "authcore_refresh_total",
			Help: "Refresh attempts by result",
		}, []string{"result"}),
		gateRejects: f.NewCounterVec(prometheus.CounterOpts{
			Name: "authcore_gate_rejected_total",
			Help: "Requests rejected by the auth gate by reason",
		}, []string{"reason"}),
	}
}

func (m *Metrics) ObserveLogin(result string)      { m.loginTotal.WithLabelValues(result).Inc() }
func (m *Metrics) ObserveRefresh(result string)    { m.refreshTotal.WithLabelValues(result).Inc() }
func (m *Metrics) ObserveGateReject(reason string) { m.gateRejects.WithLabelValues(reason).Inc() }

// TrackWindows exposes the number of live rate-limit windows. size is called
// at scrape time.
func (m *Metrics) TrackWindows(size func() int) {
	promauto.With(m.reg).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "authcore_ratelimit_windows",
		Help: "Client keys with an open login rate-limit window",
	}, func() float64 { return float64(size()) })
}
