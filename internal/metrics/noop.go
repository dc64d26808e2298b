package metrics

// NoopCollector discards all measurements.
type NoopCollector struct{}

var _ Collector = (*NoopCollector)(nil)
var _ Collector = (*PrometheusCollector)(nil)

func NewNoopCollector() *NoopCollector {
	return &NoopCollector{}
}

func (nc *NoopCollector) NotificationReceived()                   {}
func (nc *NoopCollector) NotificationRejected(reason string)      {}
func (nc *NoopCollector) NotificationDispatched()                 {}
func (nc *NoopCollector) HandlerFailed()                          {}
func (nc *NoopCollector) GENARequest(operation string, err error) {}
