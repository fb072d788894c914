// Package connector implements the opensock collaborator: opening an
// outbound TCP stream to a named host, or redirecting to a configured
// upstream proxy when one is set.
package connector

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Connector dials outbound TCP connections on behalf of the request
// pipeline, either straight to the origin or, when configured, to an
// upstream proxy that the caller must itself speak HTTP to.
type Connector struct {
	// DialTimeout bounds how long a single dial may take.
	DialTimeout time.Duration
	// UpstreamHost/UpstreamPort redirect every dial to the upstream proxy
	// instead of the request's own origin whenever UpstreamHost is non-empty;
	// UpstreamPort is used as given, even when it is 0.
	UpstreamHost string
	UpstreamPort uint16

	dialer *net.Dialer
}

// New returns a Connector with the given dial timeout and optional upstream
// target. An upstreamHost of "" means no upstream is configured.
func New(dialTimeout time.Duration, upstreamHost string, upstreamPort uint16) *Connector {
	return &Connector{
		DialTimeout:  dialTimeout,
		UpstreamHost: upstreamHost,
		UpstreamPort: upstreamPort,
		dialer:       &net.Dialer{Timeout: dialTimeout},
	}
}

// HasUpstream reports whether an upstream proxy is configured.
func (c *Connector) HasUpstream() bool {
	return c.UpstreamHost != ""
}

// Dial opens a TCP connection to host:port, or to the configured upstream
// proxy instead when one is set. The caller is responsible for knowing
// which form of request line to emit on the resulting connection (see
// reqpipeline's request-line emission, which consults HasUpstream).
func (c *Connector) Dial(ctx context.Context, host string, port uint16) (net.Conn, error) {
	target := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	if c.HasUpstream() {
		target = net.JoinHostPort(c.UpstreamHost, fmt.Sprintf("%d", c.UpstreamPort))
	}
	conn, err := c.dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		return nil, fmt.Errorf("connector: dial %s: %w", target, err)
	}
	return conn, nil
}
