package server

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/go-core-stack/gatewayd/internal/acl"
	"github.com/go-core-stack/gatewayd/internal/connector"
	"github.com/go-core-stack/gatewayd/internal/filter"
	"github.com/go-core-stack/gatewayd/internal/reqpipeline"
	"github.com/go-core-stack/gatewayd/internal/stats"
)

func TestServeDispatchesEachConnection(t *testing.T) {
	origin, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer origin.Close()

	go func() {
		for {
			conn, err := origin.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				r := bufio.NewReader(conn)
				r.ReadString('\n')
				for {
					line, err := r.ReadString('\n')
					if err != nil || line == "\r\n" || line == "\n" {
						break
					}
				}
				conn.Write([]byte("HTTP/1.0 200 OK\r\nContent-Length: 2\r\n\r\nok"))
			}()
		}
	}()

	originHost, originPort, err := net.SplitHostPort(origin.Addr().String())
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	_ = originHost

	proxyLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer proxyLn.Close()

	handler := &reqpipeline.Handler{
		IdleTimeout: 2 * time.Second,
		Connector:   connector.New(time.Second, "", 0),
		Filter:      filter.New(false, nil),
		ACL:         acl.New(nil, nil),
		Counters:    stats.New(time.Now()),
		Hostname:    "gatewayd-test",
		PackageName: "gatewayd",
		Version:     "test",
		Log:         zerolog.Nop(),
	}

	srv := New(proxyLn, handler, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	client, err := net.Dial("tcp", proxyLn.Addr().String())
	if err != nil {
		t.Fatalf("dial proxy: %v", err)
	}
	req := "GET http://" + origin.Addr().String() + "/ HTTP/1.1\r\nHost: x\r\n\r\n"
	if _, err := client.Write([]byte(req)); err != nil {
		t.Fatalf("write request: %v", err)
	}
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	resp, err := io.ReadAll(client)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	if !strings.Contains(string(resp), "200 OK") || !strings.Contains(string(resp), "ok") {
		t.Errorf("unexpected response: %q", resp)
	}

	cancel()
	proxyLn.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
	srv.Wait()

	_ = originPort
}
