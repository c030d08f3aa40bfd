package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	AnimationsStarted   prometheus.Counter
	AnimationsFinished  prometheus.Counter
	AnimationsCancelled prometheus.Counter
	ActiveAnimations    prometheus.Gauge

	Steps            prometheus.Counter
	Dwells           prometheus.Counter
	PendingWaypoints prometheus.Gauge
	StepDuration     prometheus.Histogram

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram

	FetchRequests *prometheus.CounterVec // target: locations|directions, outcome: ok|error

	StepDelay  prometheus.Gauge // seconds
	DwellDelay prometheus.Gauge // seconds
}

func NewCollector(stepDelay, dwellDelay time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		AnimationsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "animator_animations_started_total",
			Help: "Total animations started.",
		}),
		AnimationsFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "animator_animations_finished_total",
			Help: "Total animations that reached the destination.",
		}),
		AnimationsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "animator_animations_cancelled_total",
			Help: "Total animations cancelled before the destination.",
		}),
		ActiveAnimations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "animator_active_animations",
			Help: "Number of animations currently running.",
		}),
		Steps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "animator_steps_total",
			Help: "Total marker steps emitted.",
		}),
		Dwells: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "animator_waypoint_dwells_total",
			Help: "Total waypoint dwells.",
		}),
		PendingWaypoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "animator_pending_waypoints",
			Help: "Waypoints not yet reached by the current animation.",
		}),
		StepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "animator_step_duration_seconds",
			Help:    "Duration of step handling (publish and bookkeeping).",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "animator_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "animator_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "animator_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "animator_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "animator_fetch_requests_total",
			Help: "Remote API requests by target and outcome.",
		}, []string{"target", "outcome"}),
		StepDelay: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "animator_step_delay_seconds",
			Help: "Delay between regular steps.",
		}),
		DwellDelay: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "animator_dwell_delay_seconds",
			Help: "Delay after landing on a waypoint.",
		}),
	}

	reg.MustRegister(
		c.AnimationsStarted, c.AnimationsFinished, c.AnimationsCancelled, c.ActiveAnimations,
		c.Steps, c.Dwells, c.PendingWaypoints, c.StepDuration,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
		c.FetchRequests, c.StepDelay, c.DwellDelay,
	)

	c.StepDelay.Set(stepDelay.Seconds())
	c.DwellDelay.Set(dwellDelay.Seconds())

	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

func (c *Collector) Registry() *prometheus.Registry { return c.reg }

// FetchObserve implements fetch.Metrics.
func (c *Collector) FetchObserve(target, outcome string) {
	c.FetchRequests.WithLabelValues(target, outcome).Inc()
}

// NATSPublishedInc and the methods below implement publisher.PublisherMetrics.
func (c *Collector) NATSPublishedInc()              { c.NATSPublished.Inc() }
func (c *Collector) NATSPublishErrInc()             { c.NATSPublishErrs.Inc() }
func (c *Collector) PublishObserve(d time.Duration) { c.PublishDuration.Observe(d.Seconds()) }
func (c *Collector) NATSSetConnected(b bool) {
	if b {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}
