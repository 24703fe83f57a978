package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry with the service's counters.
// A nil *Collector is valid and records nothing.
type Collector struct {
	reg *prometheus.Registry

	TripsStarted    prometheus.Counter
	TripsStopped    prometheus.Counter
	TripDuration    prometheus.Histogram // minutes
	LocationUpdates prometheus.Counter

	NotificationsCreated *prometheus.CounterVec // target label: individual|role|all
	Subscribers          prometheus.Gauge
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		TripsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shuttle_trips_started_total",
			Help: "Total trips started by drivers.",
		}),
		TripsStopped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shuttle_trips_stopped_total",
			Help: "Total trips completed by drivers.",
		}),
		TripDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "shuttle_trip_duration_minutes",
			Help:    "Reported duration of completed trips.",
			Buckets: []float64{5, 10, 15, 20, 30, 45, 60, 90, 120},
		}),
		LocationUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shuttle_location_updates_total",
			Help: "Total accepted driver location updates.",
		}),
		NotificationsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shuttle_notifications_created_total",
			Help: "Notifications created, by addressing mode.",
		}, []string{"target"}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shuttle_location_subscribers",
			Help: "Open live location websocket subscriptions.",
		}),
	}

	reg.MustRegister(
		c.TripsStarted,
		c.TripsStopped,
		c.TripDuration,
		c.LocationUpdates,
		c.NotificationsCreated,
		c.Subscribers,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

func (c *Collector) TripStarted() {
	if c != nil {
		c.TripsStarted.Inc()
	}
}

func (c *Collector) TripStopped(minutes int) {
	if c != nil {
		c.TripsStopped.Inc()
		c.TripDuration.Observe(float64(minutes))
	}
}

func (c *Collector) LocationUpdated() {
	if c != nil {
		c.LocationUpdates.Inc()
	}
}

func (c *Collector) NotificationCreated(target string) {
	if c != nil {
		c.NotificationsCreated.WithLabelValues(target).Inc()
	}
}

func (c *Collector) SubscriberDelta(d float64) {
	if c != nil {
		c.Subscribers.Add(d)
	}
}
