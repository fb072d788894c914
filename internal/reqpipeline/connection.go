// Package reqpipeline implements the Request Parser, Header Collection,
// Header Rewriting, Request-Line Emission, Response Phase, and per-connection
// state machine components, wiring together the line reader, header map,
// connector, relay, and the ACL/filter/anonymity/stats/httperr collaborators.
package reqpipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/go-core-stack/gatewayd/internal/acl"
	"github.com/go-core-stack/gatewayd/internal/anonymous"
	"github.com/go-core-stack/gatewayd/internal/connector"
	"github.com/go-core-stack/gatewayd/internal/filter"
	"github.com/go-core-stack/gatewayd/internal/headermap"
	"github.com/go-core-stack/gatewayd/internal/httperr"
	"github.com/go-core-stack/gatewayd/internal/lineread"
	"github.com/go-core-stack/gatewayd/internal/relay"
	"github.com/go-core-stack/gatewayd/internal/stats"
	"github.com/go-core-stack/gatewayd/internal/tunnel"

	"github.com/rs/zerolog"
)

// Handler holds every ambient and domain collaborator the per-connection
// state machine consults: ACL/filter/anonymity gates, the connector and
// relay engine, process-wide counters, and identity fields used when
// constructing the Via and X-Tinyproxy headers.
type Handler struct {
	IdleTimeout time.Duration

	Connector *connector.Connector
	Filter    *filter.List
	ACL       *acl.List
	Anonymous *anonymous.List
	Counters  *stats.Counters
	Limiter   *relay.Limiter
	Tunnel    tunnel.Config

	Stathost            string
	Hostname            string
	PackageName         string
	Version             string
	EmitTinyproxyHeader bool

	Log zerolog.Logger
}

// Serve drives one accepted connection through the ACCEPTED -> ACL_CHECK ->
// {TUNNEL_BOOT | READ_REQ} -> PARSE -> CONNECT_UPSTREAM -> EMIT_REQUEST ->
// CLIENT_HEADERS -> {RESP_OK | RESP_CONNECT_OK} -> RELAY -> CLOSED state
// machine. Serve takes ownership of conn and always closes it before
// returning.
func (h *Handler) Serve(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	h.Counters.Increment(stats.Open)
	defer h.Counters.Increment(stats.Close)

	var sent httperr.Sent

	clientAddr := remoteAddr(conn)
	if !h.ACL.Allow(clientAddr) {
		h.Counters.Increment(stats.Denied)
		sent.Write(conn, httperr.StatusForbidden, httperr.MessageFor(httperr.StatusForbidden), "access denied by policy")
		h.Log.Info().Str("client", clientAddr.String()).Msg("connection denied by acl")
		return
	}

	if h.Tunnel.Enabled() {
		if err := tunnel.Serve(ctx, conn, h.Tunnel, h.Connector.DialTimeout, h.IdleTimeout); err != nil {
			h.Log.Info().Err(err).Msg("tunnel session ended")
		}
		return
	}

	r := bufio.NewReaderSize(conn, lineread.MaxBuffSize)

	line, err := lineread.ReadRequestLine(r)
	if err != nil {
		h.Counters.Increment(stats.BadConn)
		return
	}

	req, err := ParseRequestLine(line)
	if err != nil {
		h.Counters.Increment(stats.BadConn)
		sent.Write(conn, httperr.StatusBadRequest, httperr.MessageFor(httperr.StatusBadRequest), "malformed request line")
		return
	}

	if h.Filter.Denied(req.Host) {
		h.Counters.Increment(stats.Denied)
		sent.Write(conn, httperr.StatusNotFound, httperr.MessageFor(httperr.StatusNotFound), "host denied by policy")
		return
	}

	if h.Stathost != "" && strings.EqualFold(req.Host, h.Stathost) {
		if err := stats.RenderStathost(conn, h.Counters); err != nil {
			h.Log.Debug().Err(err).Msg("stathost render failed")
		}
		return
	}

	headers, err := CollectHeaders(r)
	if err != nil {
		h.Counters.Increment(stats.BadConn)
		var pe *PipelineError
		if errors.As(err, &pe) && pe.Status != 0 {
			sent.Write(conn, pe.Status, httperr.MessageFor(pe.Status), "malformed headers")
		}
		return
	}

	useUpstream := h.Connector.HasUpstream()

	server, err := h.Connector.Dial(ctx, req.Host, req.Port)
	if err != nil {
		h.Counters.Increment(stats.Refused)
		status := httperr.StatusInternalServerError
		if useUpstream {
			status = httperr.StatusNotFound
		}
		sent.Write(conn, status, httperr.MessageFor(status), "could not reach destination")
		h.Log.Info().Err(err).Str("host", req.Host).Msg("connect failed")
		return
	}
	defer server.Close()

	// clientConn relays through r instead of conn directly: r may already
	// hold bytes read ahead of the request line/headers (a client that
	// pipelines tunnel bytes, or a body, in the same segment as the
	// request), and those buffered bytes must reach the relay rather than
	// being stranded in a reader that's about to go out of scope.
	clientConn := &bufferedConn{Conn: conn, r: r}

	if req.Connect && !useUpstream {
		if _, err := conn.Write([]byte(ConnectEstablishedResponse(h.PackageName, h.Version))); err != nil {
			h.Log.Debug().Err(err).Msg("connect response failed")
			return
		}
		sent.MarkSent()
		relay.Run(clientConn, server, h.IdleTimeout, h.Limiter)
		return
	}

	if err := h.forwardRequest(server, r, req, headers, useUpstream, clientAddr); err != nil {
		h.Log.Debug().Err(err).Msg("request forwarding failed")
		if !sent.AlreadySent() {
			sent.Write(conn, httperr.StatusInternalServerError, httperr.MessageFor(httperr.StatusInternalServerError), "upstream request failed")
		}
		return
	}

	// The server's response (including, for CONNECT under an upstream
	// proxy, the upstream's own real status line for the tunnel request)
	// is copied verbatim through the header block. serverReader keeps
	// reading the server's response body/tunnel bytes it has already
	// buffered once the relay takes over, for the same reason as above.
	serverReader := bufio.NewReaderSize(server, lineread.MaxBuffSize)
	if err := copyResponseLines(conn, serverReader, &sent); err != nil {
		h.Log.Debug().Err(err).Msg("response relay failed")
		return
	}

	serverConn := &bufferedConn{Conn: server, r: serverReader}
	relay.Run(clientConn, serverConn, h.IdleTimeout, h.Limiter)
}

// forwardRequest emits the request line and rewritten headers to server,
// then pumps any request body declared by Content-Length from bodySrc
// (the same bufio.Reader that collected the request line and headers, so
// any body bytes it already buffered are forwarded rather than lost).
func (h *Handler) forwardRequest(server net.Conn, bodySrc io.Reader, req *Request, headers *headermap.Map, useUpstream bool, clientAddr netip.Addr) error {
	if _, err := server.Write([]byte(EmitRequestLine(req, useUpstream))); err != nil {
		return fmt.Errorf("emit request line: %w", err)
	}

	policy := RewritePolicy{
		ProtoMajor:          req.Major,
		ProtoMinor:          req.Minor,
		Hostname:            h.Hostname,
		PackageName:         h.PackageName,
		Version:             h.Version,
		Anonymous:           h.Anonymous,
		EmitTinyproxyHeader: h.EmitTinyproxyHeader,
		ClientIP:            clientAddr.String(),
	}
	result := RewriteHeaders(headers, policy)
	for _, line := range result.Lines {
		if _, err := server.Write([]byte(line)); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	if _, err := server.Write([]byte("\r\n")); err != nil {
		return fmt.Errorf("write header terminator: %w", err)
	}

	if result.ContentLength > 0 {
		buf := make([]byte, lineread.MaxBuffSize)
		if _, err := io.CopyBuffer(server, io.LimitReader(bodySrc, result.ContentLength), buf); err != nil {
			return fmt.Errorf("pump request body: %w", err)
		}
	}
	return nil
}

// copyResponseLines copies lines verbatim from r to conn until a bare
// terminator line ends the header block, marking sent so no further HTTP
// error body can be layered on top of a response already in flight.
func copyResponseLines(conn net.Conn, r *bufio.Reader, sent *httperr.Sent) error {
	for {
		line, err := lineread.ReadLine(r)
		if err != nil {
			return err
		}
		if _, werr := conn.Write([]byte(line)); werr != nil {
			return werr
		}
		sent.MarkSent()
		if lineread.IsEndOfHeaders(line) {
			return nil
		}
	}
}

// bufferedConn wraps a net.Conn so that Read drains a bufio.Reader already
// positioned on the same socket before it falls through to further raw
// reads. This keeps the relay phase reading a single consistent byte
// stream with whatever parsed the request/response lines, instead of
// losing bytes stranded in a bufio.Reader that parsing leaves behind.
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (b *bufferedConn) Read(p []byte) (int, error) {
	return b.r.Read(p)
}

// CloseWrite half-closes the wrapped connection when it supports it, so the
// relay's half-close still reaches the socket through the wrapper.
func (b *bufferedConn) CloseWrite() error {
	if wc, ok := b.Conn.(interface{ CloseWrite() error }); ok {
		return wc.CloseWrite()
	}
	return nil
}

func remoteAddr(conn net.Conn) netip.Addr {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return netip.Addr{}
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}
	}
	return addr
}
