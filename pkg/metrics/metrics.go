package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Order lifecycle metrics
	OrdersCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "igor_orders_created_total",
			Help: "Total number of orders created",
		},
	)

	OrdersAssigned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "igor_orders_assigned_total",
			Help: "Total number of orders assigned to workers",
		},
	)

	OrdersCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "igor_orders_completed_total",
			Help: "Total number of orders completed",
		},
	)

	OrdersUnassigned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "igor_orders_unassigned_total",
			Help: "Total number of orders returned to the pending queue",
		},
	)

	OrdersCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "igor_orders_cancelled_total",
			Help: "Total number of orders cancelled",
		},
	)

	OrdersPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "igor_orders_pending",
			Help: "Orders currently waiting for a worker",
		},
	)

	// Event fan-out metrics
	EventsDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "igor_events_delivered_total",
			Help: "Total number of events delivered to subscribers by type",
		},
		[]string{"event"},
	)

	// Connection metrics
	ConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "igor_connections_active",
			Help: "Currently open control connections",
		},
	)

	// Worker build metrics
	BuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "igor_builds_total",
			Help: "Total number of builds executed by result",
		},
		[]string{"result"},
	)
)

var registerOnce sync.Once

// Register registers all igor collectors with the default registry.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			OrdersCreated,
			OrdersAssigned,
			OrdersCompleted,
			OrdersUnassigned,
			OrdersCancelled,
			OrdersPending,
			EventsDelivered,
			ConnectionsActive,
			BuildsTotal,
		)
	})
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on the given address. It blocks.
func Serve(addr string) error {
	Register()
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return http.ListenAndServe(addr, mux)
}
