package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/go-core-stack/gatewayd/internal/acl"
	"github.com/go-core-stack/gatewayd/internal/anonymous"
	"github.com/go-core-stack/gatewayd/internal/config"
	"github.com/go-core-stack/gatewayd/internal/connector"
	"github.com/go-core-stack/gatewayd/internal/filter"
	"github.com/go-core-stack/gatewayd/internal/relay"
	"github.com/go-core-stack/gatewayd/internal/reqpipeline"
	"github.com/go-core-stack/gatewayd/internal/server"
	"github.com/go-core-stack/gatewayd/internal/stats"
	"github.com/go-core-stack/gatewayd/internal/tunnel"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "start the proxy and serve connections until signaled",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	log.Logger = log.Level(level)

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.ListenAddr, err)
	}

	var limiter *relay.Limiter
	if cfg.RateLimitBytesPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitBytesPerSec), cfg.RateLimitBytesPerSec)
	}

	handler := &reqpipeline.Handler{
		IdleTimeout:         cfg.IdleTimeout,
		Connector:           connector.New(cfg.DialTimeout, cfg.UpstreamHost, cfg.UpstreamPort),
		Filter:              filter.New(cfg.FilterEnabled, cfg.Policy.FilterPatterns),
		ACL:                 acl.New(cfg.Policy.ACLAllow, cfg.Policy.ACLDeny),
		Anonymous:           anonymous.New(cfg.Policy.AnonymousEnabled, cfg.Policy.AnonymousHeaders),
		Counters:            stats.New(time.Now()),
		Limiter:             limiter,
		Tunnel:              tunnel.Config{Host: cfg.TunnelHost, Port: cfg.TunnelPort},
		Stathost:            cfg.Stathost,
		Hostname:            cfg.Hostname,
		PackageName:         "gatewayd",
		Version:             version,
		EmitTinyproxyHeader: cfg.MyDomain != "",
		Log:                 log.Logger,
	}

	srv := server.New(ln, handler, log.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("listen_addr", cfg.ListenAddr).Msg("starting gatewayd")
		serveErr <- srv.Serve(ctx)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("shutting down gatewayd")
	case err := <-serveErr:
		return err
	}

	cancel()
	if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		log.Error().Err(err).Msg("closing listener")
	}

	done := make(chan struct{})
	go func() {
		srv.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("gatewayd stopped")
	case <-time.After(cfg.GracefulShutdownTimeout):
		log.Warn().Msg("graceful shutdown timed out; exiting with connections still open")
	}

	return nil
}
