package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "upnpevents"

	subsystemCallback     = "callback"
	subsystemDispatch     = "dispatch"
	subsystemSubscription = "subscription"

	LabelReason    = "reason"
	LabelOperation = "operation"
	LabelOutcome   = "outcome"
)

// Rejection reasons
const (
	ReasonRead  = "read"
	ReasonParse = "parse"
)

// Collector records notification and subscription activity.
type Collector interface {
	NotificationReceived()
	NotificationRejected(reason string)
	NotificationDispatched()
	HandlerFailed()
	GENARequest(operation string, err error)
}

// PrometheusCollector implements Collector on top of prometheus counters.
type PrometheusCollector struct {
	received   prometheus.Counter
	rejected   *prometheus.CounterVec
	dispatched prometheus.Counter
	failures   prometheus.Counter
	requests   *prometheus.CounterVec
}

// NewPrometheusCollector registers the collector's metrics with reg.
// A nil reg uses the default registerer.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusCollector{
		received: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemCallback,
			Name:      "notifications_received_total",
			Help:      "number of notification requests received from the device",
		}),
		rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemCallback,
			Name:      "notifications_rejected_total",
			Help:      "number of notifications acknowledged but not dispatched",
		}, []string{LabelReason}),
		dispatched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemDispatch,
			Name:      "attribute_sets_total",
			Help:      "number of attribute sets handed to handlers",
		}),
		failures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemDispatch,
			Name:      "handler_failures_total",
			Help:      "number of handler invocations that returned an error or panicked",
		}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemSubscription,
			Name:      "requests_total",
			Help:      "number of GENA requests sent to the device",
		}, []string{LabelOperation, LabelOutcome}),
	}
}

func (c *PrometheusCollector) NotificationReceived() {
	c.received.Inc()
}

func (c *PrometheusCollector) NotificationRejected(reason string) {
	c.rejected.With(prometheus.Labels{LabelReason: reason}).Inc()
}

func (c *PrometheusCollector) NotificationDispatched() {
	c.dispatched.Inc()
}

func (c *PrometheusCollector) HandlerFailed() {
	c.failures.Inc()
}

func (c *PrometheusCollector) GENARequest(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	c.requests.With(prometheus.Labels{LabelOperation: operation, LabelOutcome: outcome}).Inc()
}
