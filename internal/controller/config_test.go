package controller

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmacdonaldsmith/upnpevents/pkg/gena"
)

func TestNewConfig(t *testing.T) {
	c := NewConfig("192.168.1.20")

	assert.Equal(t, "192.168.1.20", c.DeviceAddress)
	assert.Equal(t, DefaultPort, c.Port)
	assert.Equal(t, "", c.BindHost)
	assert.Equal(t, DefaultSubscribeTimeout, c.SubscribeTimeout)
	assert.Equal(t, gena.DefaultDevicePort, c.DevicePort)
	assert.Equal(t, gena.DefaultEventPath, c.EventPath)
	assert.Equal(t, gena.DefaultNotificationType, c.NotificationType)
	assert.Zero(t, c.RenewInterval)
	assert.NoError(t, c.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   error
	}{
		{name: "empty_device", mutate: func(c *Config) { c.DeviceAddress = "" }, want: ErrEmptyDeviceAddress},
		{name: "negative_port", mutate: func(c *Config) { c.Port = -1 }, want: ErrInvalidPort},
		{name: "port_too_large", mutate: func(c *Config) { c.Port = 70000 }, want: ErrInvalidPort},
		{name: "negative_renew", mutate: func(c *Config) { c.RenewInterval = -time.Second }, want: ErrInvalidRenewInterval},
		{name: "ephemeral_port", mutate: func(c *Config) { c.Port = 0 }, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewConfig("192.168.1.20")
			tt.mutate(c)

			err := c.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestConfig_Builders(t *testing.T) {
	c := NewConfig("192.168.1.20").
		WithListenAddress("0.0.0.0", 9090).
		WithAdvertiseHost("192.168.1.10").
		WithRenewInterval(5 * time.Minute)

	assert.Equal(t, "0.0.0.0", c.BindHost)
	assert.Equal(t, 9090, c.Port)
	assert.Equal(t, "192.168.1.10", c.AdvertiseHost)
	assert.Equal(t, 5*time.Minute, c.RenewInterval)
}

func TestLoadConfig(t *testing.T) {
	t.Run("full_file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
device: 192.168.1.20
bind_host: 0.0.0.0
port: 9000
advertise_host: 192.168.1.10
subscribe_timeout: 3s
requested_timeout: 30m
renew_interval: 10m
metrics_listen: ":9100"
`), 0o600))

		c, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "192.168.1.20", c.DeviceAddress)
		assert.Equal(t, "0.0.0.0", c.BindHost)
		assert.Equal(t, 9000, c.Port)
		assert.Equal(t, "192.168.1.10", c.AdvertiseHost)
		assert.Equal(t, 3*time.Second, c.SubscribeTimeout)
		assert.Equal(t, 30*time.Minute, c.RequestedTimeout)
		assert.Equal(t, 10*time.Minute, c.RenewInterval)
		assert.Equal(t, ":9100", c.MetricsListen)
		assert.Equal(t, gena.DefaultEventPath, c.EventPath)
	})

	t.Run("defaults_kept", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("device: 10.0.0.7\n"), 0o600))

		c, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, DefaultPort, c.Port)
		assert.Equal(t, DefaultSubscribeTimeout, c.SubscribeTimeout)
	})

	t.Run("missing_file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid_yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("port: [not a number"), 0o600))

		_, err := LoadConfig(path)
		assert.Error(t, err)
	})
}
