// Package server implements the accept loop: one goroutine per accepted
// connection, dispatched straight into the request pipeline's per-connection
// state machine.
package server

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/go-core-stack/gatewayd/internal/reqpipeline"
)

// Server owns the listening socket and dispatches every accepted connection
// to Handler.Serve in its own goroutine, tracking in-flight connections so
// Wait can block until they drain.
type Server struct {
	Listener net.Listener
	Handler  *reqpipeline.Handler
	Log      zerolog.Logger

	wg sync.WaitGroup
}

// New returns a Server bound to ln, dispatching accepted connections to handler.
func New(ln net.Listener, handler *reqpipeline.Handler, log zerolog.Logger) *Server {
	return &Server{Listener: ln, Handler: handler, Log: log}
}

// Serve runs the accept loop until Accept fails on a closed listener, or
// fails at all after ctx is canceled; canceling ctx alone does not unblock
// a pending Accept. Each accepted connection is handled on its own
// goroutine and receives ctx.
func (s *Server) Serve(ctx context.Context) error {
	for {
		conn, err := s.Listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			s.Log.Warn().Err(err).Msg("accept failed")
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.Handler.Serve(ctx, conn)
		}()
	}
}

// Wait blocks until every dispatched connection goroutine has returned.
func (s *Server) Wait() {
	s.wg.Wait()
}
