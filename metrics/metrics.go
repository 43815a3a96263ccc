// Package metrics provides the Prometheus instrumentation a Dispatcher
// reports through when configured with apns.WithMetrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recorder holds the counters and gauges a Dispatcher updates while
// running a batch. The zero value is not usable; build one with New or
// NewWithRegisterer.
type Recorder struct {
	InFlight          prometheus.Gauge
	Submitted         prometheus.Counter
	Succeeded         prometheus.Counter
	Failed            prometheus.Counter
	ConnectRetries    prometheus.Counter
	TokensRegenerated prometheus.Counter
}

// New builds a Recorder and registers its metrics with the default
// Prometheus registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer builds a Recorder registered against reg, so callers
// embedding this library alongside their own metrics can use a private
// registry instead of the global default.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "apns",
			Name:      "streams_in_flight",
			Help:      "Number of HTTP/2 streams currently awaiting a response.",
		}),
		Submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "apns",
			Name:      "notifications_submitted_total",
			Help:      "Total notifications submitted to the dispatcher.",
		}),
		Succeeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "apns",
			Name:      "notifications_succeeded_total",
			Help:      "Total notifications APNs accepted with a 200 response.",
		}),
		Failed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "apns",
			Name:      "notifications_failed_total",
			Help:      "Total notifications that ended in a non-200 response or transport error.",
		}),
		ConnectRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "apns",
			Name:      "connect_retries_total",
			Help:      "Total connection attempts beyond the first made by Holder.Connect.",
		}),
		TokensRegenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "apns",
			Name:      "provider_tokens_regenerated_total",
			Help:      "Total JWT provider tokens signed by TokenCredentials.",
		}),
	}
	reg.MustRegister(r.InFlight, r.Submitted, r.Succeeded, r.Failed, r.ConnectRetries, r.TokensRegenerated)
	return r
}
