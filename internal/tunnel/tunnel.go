// Package tunnel implements the Tunnel Bootstrap component: an optional
// opaque-TCP redirect mode that skips HTTP parsing entirely and relays every
// accepted connection straight to a single fixed destination.
package tunnel

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/go-core-stack/gatewayd/internal/relay"
)

// Config names the fixed destination every tunneled connection is relayed
// to. An empty Host means tunnel mode is disabled.
type Config struct {
	Host string
	Port uint16
}

// Enabled reports whether tunnel mode is configured.
func (c Config) Enabled() bool {
	return c.Host != ""
}

// Serve dials Config's fixed destination and relays client bidirectionally
// against it until either side closes or idleTimeout elapses, bypassing the
// request pipeline entirely. Callers should only invoke Serve when
// Config.Enabled() is true.
func Serve(ctx context.Context, client net.Conn, cfg Config, dialTimeout, idleTimeout time.Duration) error {
	dialer := &net.Dialer{Timeout: dialTimeout}
	target := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
	server, err := dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		return fmt.Errorf("tunnel: dial %s: %w", target, err)
	}
	defer server.Close()

	relay.Run(client, server, idleTimeout, nil)
	return nil
}
