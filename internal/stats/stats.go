// Package stats holds the process-wide counters the proxy updates through
// atomic increments, plus the stathost JSON status renderer. Workers share
// no mutable state except these counters, per the concurrency model.
package stats

import (
	"encoding/json"
	"io"
	"strconv"
	"sync/atomic"
	"time"
)

// Kind enumerates the counter families update_stats accepts.
type Kind int

const (
	// Open marks an accepted connection entering the pipeline, before any
	// gate is applied.
	Open Kind = iota
	// Close marks any connection teardown, success or failure.
	Close
	// Denied marks an ACL or filter rejection.
	Denied
	// Refused marks a connect failure reaching the origin or upstream.
	Refused
	// BadConn marks a malformed request (parse failure), distinct from Denied
	// per the original implementation's finer-grained counters.
	BadConn
)

// Counters holds the atomic, process-wide gauges. The zero value is ready
// to use.
type Counters struct {
	open, closed, denied, refused, badConn atomic.Int64
	startedAt                              time.Time
}

// New returns a Counters ready for use, stamped with the current process
// start time for the stathost uptime field.
func New(startedAt time.Time) *Counters {
	return &Counters{startedAt: startedAt}
}

// Increment bumps the counter identified by kind by one. Safe for concurrent
// use from every connection's goroutine; no ordering across connections is
// required or provided.
func (c *Counters) Increment(kind Kind) {
	switch kind {
	case Open:
		c.open.Add(1)
	case Close:
		c.closed.Add(1)
	case Denied:
		c.denied.Add(1)
	case Refused:
		c.refused.Add(1)
	case BadConn:
		c.badConn.Add(1)
	}
}

// Snapshot is the JSON-serializable view of the counters rendered by the
// stathost status page.
type Snapshot struct {
	OpenConnections    int64  `json:"open_connections"`
	ClosedConnections  int64  `json:"closed_connections"`
	DeniedConnections  int64  `json:"denied_connections"`
	RefusedConnections int64  `json:"refused_connections"`
	BadConnections     int64  `json:"bad_connections"`
	UptimeSeconds      int64  `json:"uptime_seconds"`
	Status             string `json:"status"`
}

// Snapshot returns a consistent-enough point-in-time read of the counters.
// Individual fields may be read out of sync with each other under
// concurrent updates; no cross-counter ordering is guaranteed or needed.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		OpenConnections:    c.open.Load(),
		ClosedConnections:  c.closed.Load(),
		DeniedConnections:  c.denied.Load(),
		RefusedConnections: c.refused.Load(),
		BadConnections:     c.badConn.Load(),
		UptimeSeconds:      int64(time.Since(c.startedAt).Seconds()),
		Status:             "ok",
	}
}

// RenderStathost writes the JSON status page used when a request's Host
// matches the configured stathost sentinel, handling its own HTTP framing
// since it answers in place of the normal response phase.
func RenderStathost(w io.Writer, c *Counters) error {
	body, err := json.MarshalIndent(c.Snapshot(), "", "  ")
	if err != nil {
		return err
	}
	_, err = io.WriteString(w,
		"HTTP/1.0 200 OK\r\n"+
			"Content-Type: application/json\r\n"+
			"Content-Length: "+strconv.Itoa(len(body)+1)+"\r\n"+
			"Connection: close\r\n"+
			"\r\n"+string(body)+"\n")
	return err
}
