package tunnel

import (
	"context"
	"io"
	"net"
	"strconv"
	"testing"
	"time"
)

func TestServeRelaysToFixedDestination(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	echoed := make(chan struct{})
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 4)
		io.ReadFull(conn, buf)
		conn.Write(buf)
		close(echoed)
	}()

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	portNum, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	cfg := Config{Host: host, Port: uint16(portNum)}
	if !cfg.Enabled() {
		t.Fatal("Config.Enabled() = false; want true")
	}

	clientSide, proxySide := net.Pipe()
	go func() {
		Serve(context.Background(), proxySide, cfg, time.Second, time.Second)
	}()

	clientSide.Write([]byte("ping"))
	buf := make([]byte, 4)
	clientSide.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := io.ReadFull(clientSide, buf); err != nil {
		t.Fatalf("read echoed bytes: %v", err)
	}
	if string(buf) != "ping" {
		t.Fatalf("echoed %q; want ping", buf)
	}

	select {
	case <-echoed:
	case <-time.After(2 * time.Second):
		t.Fatal("server side never completed echo")
	}
}
