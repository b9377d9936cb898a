// Package metrics exposes Prometheus collectors for pulls, sessions and
// the admin HTTP API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "wish"

// Label names
const (
	LabelBanner  = "banner"
	LabelTier    = "tier"
	LabelOutcome = "outcome"
	LabelMethod  = "method"
	LabelPath    = "path"
	LabelStatus  = "status"
)

var httpLatencyBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1}

// Metrics holds every collector registered by the server. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	PullsTotal          *prometheus.CounterVec
	PityTriggers        *prometheus.CounterVec
	Outcomes            *prometheus.CounterVec
	ResolutionFailures  *prometheus.CounterVec
	ActiveSessions      prometheus.Gauge
	DeferredReloads     prometheus.Counter
	FlushedPlayers      prometheus.Counter
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry together with the Go
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		PullsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pulls_total",
			Help:      "Resolved pulls by banner and tier",
		}, []string{LabelBanner, LabelTier}),
		PityTriggers: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pity_triggers_total",
			Help:      "Pulls whose tier was forced by hard pity",
		}, []string{LabelBanner, LabelTier}),
		Outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reward_outcomes_total",
			Help:      "Reward selection outcomes (plain, featured-won, featured-lost...)",
		}, []string{LabelBanner, LabelOutcome}),
		ResolutionFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolution_failures_total",
			Help:      "Batch slots dropped because resolution failed",
		}, []string{LabelBanner}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_opening",
			Help:      "Sessions currently in the opening phase",
		}),
		DeferredReloads: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "banner_reloads_deferred_total",
			Help:      "Banner reloads postponed until open sessions finished",
		}),
		FlushedPlayers: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "players_flushed_total",
			Help:      "Player records written to the store",
		}),
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{LabelMethod, LabelPath, LabelStatus}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   httpLatencyBuckets,
		}, []string{LabelMethod, LabelPath}),
	}
}

// ObservePull records one resolved batch slot.
func (m *Metrics) ObservePull(banner, tier, outcome string, pity bool) {
	if m == nil {
		return
	}
	m.PullsTotal.WithLabelValues(banner, tier).Inc()
	m.Outcomes.WithLabelValues(banner, outcome).Inc()
	if pity {
		m.PityTriggers.WithLabelValues(banner, tier).Inc()
	}
}

func (m *Metrics) ObserveFailures(banner string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ResolutionFailures.WithLabelValues(banner).Add(float64(n))
}

func (m *Metrics) SetOpening(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

func (m *Metrics) ReloadDeferred() {
	if m == nil {
		return
	}
	m.DeferredReloads.Inc()
}

func (m *Metrics) Flushed(n int) {
	if m == nil {
		return
	}
	m.FlushedPlayers.Add(float64(n))
}
