package gena

import (
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultDevicePort is the port UPnP media renderers serve their event endpoints on.
	DefaultDevicePort = 1400

	// DefaultEventPath is the AVTransport event subscription URL of a media renderer.
	DefaultEventPath = "/MediaRenderer/AVTransport/Event"

	// DefaultNotificationType is the NT header value for GENA property change events.
	DefaultNotificationType = "upnp:event"

	// MethodSubscribe and MethodUnsubscribe are the GENA HTTP verbs.
	MethodSubscribe   = "SUBSCRIBE"
	MethodUnsubscribe = "UNSUBSCRIBE"
)

// GENA request and response headers
const (
	headerCallback = "Callback"
	headerNT       = "NT"
	headerSID      = "SID"
	headerTimeout  = "TIMEOUT"
)

// ErrSubscriptionFailed matches every *SubscriptionError via errors.Is.
var ErrSubscriptionFailed = errors.New("subscription failed")

// Config holds client configuration
type Config struct {
	// Timeout for each HTTP exchange with the device
	Timeout time.Duration

	// DevicePort is the port of the device's event endpoint
	DevicePort int

	// RequestedTimeout is sent as "TIMEOUT: Second-N" when positive.
	// Devices are free to assign a different duration.
	RequestedTimeout time.Duration

	// UserAgent is sent when non-empty
	UserAgent string
}

// SetDefaults sets reasonable default values for the config
func (c *Config) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
	if c.DevicePort == 0 {
		c.DevicePort = DefaultDevicePort
	}
}

// Subscription is one active event registration with a device.
type Subscription struct {
	DeviceAddress    string
	EventPath        string
	EventURL         string
	CallbackURL      string
	NotificationType string

	// SID is the device-assigned subscription identity used for renewal
	// and cancellation. Empty if the device did not return one.
	SID string

	// Timeout is the device-assigned lifetime; zero means infinite or unknown.
	Timeout time.Duration

	SubscribedAt time.Time
	RenewedAt    time.Time
}

// Expiry returns when the subscription lapses without renewal, or the zero
// time if the device assigned no finite timeout.
func (s *Subscription) Expiry() time.Time {
	if s.Timeout <= 0 {
		return time.Time{}
	}
	last := s.SubscribedAt
	if s.RenewedAt.After(last) {
		last = s.RenewedAt
	}
	return last.Add(s.Timeout)
}

// SubscriptionError reports a failed SUBSCRIBE or UNSUBSCRIBE exchange.
// Either StatusCode is set (non-2xx response) or Err is (transport failure).
type SubscriptionError struct {
	Op         string
	URL        string
	StatusCode int
	Status     string
	Err        error
}

func (e *SubscriptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("%s %s: device returned %s", e.Op, e.URL, e.Status)
}

func (e *SubscriptionError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrSubscriptionFailed.
func (e *SubscriptionError) Is(target error) bool {
	return target == ErrSubscriptionFailed
}
