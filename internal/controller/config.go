package controller

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rmacdonaldsmith/upnpevents/pkg/gena"
)

const (
	// DefaultPort is the callback listener port
	DefaultPort = 8080
	// DefaultSubscribeTimeout bounds each GENA exchange with the device
	DefaultSubscribeTimeout = 10 * time.Second
)

var (
	// ErrEmptyDeviceAddress is returned when no target device is configured
	ErrEmptyDeviceAddress = errors.New("device address cannot be empty")
	// ErrInvalidPort is returned when the callback port is out of range
	ErrInvalidPort = errors.New("port must be between 0 and 65535")
	// ErrInvalidRenewInterval is returned for a negative renewal interval
	ErrInvalidRenewInterval = errors.New("renew interval cannot be negative")
)

// Config represents configuration for a Controller
type Config struct {
	// DeviceAddress is the IP or host of the device to subscribe to
	DeviceAddress string `yaml:"device"`

	// DevicePort overrides the device's event port (default 1400)
	DevicePort int `yaml:"device_port"`

	// BindHost is the interface the callback listener binds to; empty means all
	BindHost string `yaml:"bind_host"`

	// Port is the callback listener port; 0 picks a free port
	Port int `yaml:"port"`

	// AdvertiseHost is put in the callback URL instead of the resolved local address
	AdvertiseHost string `yaml:"advertise_host"`

	// ProbeAddress is the route probe target used to resolve the local address
	ProbeAddress string `yaml:"probe_address"`

	// SubscribeTimeout is the HTTP client timeout for GENA requests
	SubscribeTimeout time.Duration `yaml:"subscribe_timeout"`

	// RequestedTimeout is the subscription lifetime asked of the device; 0 lets the device choose
	RequestedTimeout time.Duration `yaml:"requested_timeout"`

	// RenewInterval enables periodic renewal when positive
	RenewInterval time.Duration `yaml:"renew_interval"`

	EventPath        string `yaml:"event_path"`
	NotificationType string `yaml:"notification_type"`

	// MetricsListen is the address of the prometheus endpoint; empty disables it
	MetricsListen string `yaml:"metrics_listen"`
}

// NewConfig creates a new Controller configuration with safe defaults
func NewConfig(deviceAddress string) *Config {
	c := &Config{
		DeviceAddress: deviceAddress,
		Port:          DefaultPort,
	}
	c.SetDefaults()
	return c
}

// LoadConfig reads a YAML configuration file. Keys absent from the file keep
// their NewConfig defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	c := NewConfig("")
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.SetDefaults()
	return c, nil
}

// SetDefaults fills unset optional fields
func (c *Config) SetDefaults() {
	if c.SubscribeTimeout == 0 {
		c.SubscribeTimeout = DefaultSubscribeTimeout
	}
	if c.DevicePort == 0 {
		c.DevicePort = gena.DefaultDevicePort
	}
	if c.EventPath == "" {
		c.EventPath = gena.DefaultEventPath
	}
	if c.NotificationType == "" {
		c.NotificationType = gena.DefaultNotificationType
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	if c.DeviceAddress == "" {
		return ErrEmptyDeviceAddress
	}
	if c.Port < 0 || c.Port > 65535 {
		return ErrInvalidPort
	}
	if c.RenewInterval < 0 {
		return ErrInvalidRenewInterval
	}
	return nil
}

// WithListenAddress sets the callback listener bind host and port
func (c *Config) WithListenAddress(host string, port int) *Config {
	c.BindHost = host
	c.Port = port
	return c
}

// WithAdvertiseHost sets the host advertised in the callback URL
func (c *Config) WithAdvertiseHost(host string) *Config {
	c.AdvertiseHost = host
	return c
}

// WithRenewInterval enables periodic renewal
func (c *Config) WithRenewInterval(interval time.Duration) *Config {
	c.RenewInterval = interval
	return c
}
