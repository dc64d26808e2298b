package localaddr

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrNetworkUnavailable is returned when no outbound IPv4 route exists.
var ErrNetworkUnavailable = errors.New("network unavailable")

// DefaultProbeAddress is a public address the probe socket is "connected" to.
// Connecting a UDP socket only selects a route; nothing is sent.
const DefaultProbeAddress = "8.8.8.8:9"

// Resolver finds the local IPv4 address the host would use to reach the
// public internet.
type Resolver struct {
	// ProbeAddress is the host:port used to select the outbound route
	ProbeAddress string

	dialer net.Dialer
}

// NewResolver creates a resolver using DefaultProbeAddress
func NewResolver() *Resolver {
	return &Resolver{ProbeAddress: DefaultProbeAddress}
}

// Resolve returns the local address of the outbound interface.
func (r *Resolver) Resolve(ctx context.Context) (net.IP, error) {
	probe := r.ProbeAddress
	if probe == "" {
		probe = DefaultProbeAddress
	}

	conn, err := r.dialer.DialContext(ctx, "udp4", probe)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetworkUnavailable, err)
	}
	defer conn.Close()

	udpAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected local address %v", ErrNetworkUnavailable, conn.LocalAddr())
	}

	ip := udpAddr.IP.To4()
	if ip == nil || ip.IsUnspecified() {
		return nil, fmt.Errorf("%w: no usable IPv4 address (got %v)", ErrNetworkUnavailable, udpAddr.IP)
	}
	return ip, nil
}
