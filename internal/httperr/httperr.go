// Package httperr renders the short HTML error bodies the proxy writes to
// clients for gated/failed requests, and tracks the response_message_sent
// gate described by the proxy's data model (invariant: at most one error
// body is ever written per connection).
package httperr

import (
	"fmt"
	"io"
)

// Sent tracks whether an HTTP error body has already been written to a
// client connection. Once true it never reverts — callers must create a new
// Sent per connection.
type Sent struct {
	done bool
}

// AlreadySent reports whether Write has already succeeded once or MarkSent
// has been called.
func (s *Sent) AlreadySent() bool {
	return s.done
}

// MarkSent records that a response has been written to the client through
// some other path (e.g. a verbatim server-response copy), so Write becomes
// a no-op without this package having rendered anything itself.
func (s *Sent) MarkSent() {
	s.done = true
}

// Write renders "HTTP/1.0 <code> <message>" followed by a short HTML body
// and Connection: close, and marks the gate. It is a no-op (returning nil)
// if a response was already sent on this connection, matching the policy
// that at most one HTTP error body is ever written per connection.
func (s *Sent) Write(w io.Writer, code int, message, detail string) error {
	if s.done {
		return nil
	}
	body := fmt.Sprintf(
		"<html><head><title>%d %s</title></head>\r\n"+
			"<body><h1>%s</h1><p>%s</p></body></html>\r\n",
		code, message, message, detail)
	status := fmt.Sprintf(
		"HTTP/1.0 %d %s\r\n"+
			"Content-Type: text/html\r\n"+
			"Content-Length: %d\r\n"+
			"Connection: close\r\n"+
			"\r\n%s",
		code, message, len(body), body)
	if _, err := io.WriteString(w, status); err != nil {
		return err
	}
	s.done = true
	return nil
}

// Known status lines used throughout the pipeline, named per spec.md §7.
const (
	StatusBadRequest          = 400
	StatusForbidden           = 403
	StatusNotFound            = 404
	StatusInternalServerError = 500
)

var messages = map[int]string{
	StatusBadRequest:          "Bad Request",
	StatusForbidden:           "Forbidden",
	StatusNotFound:            "Not Found",
	StatusInternalServerError: "Internal Server Error",
}

// MessageFor returns the canonical reason phrase for one of the status codes
// this package knows about, or "Error" if unrecognized.
func MessageFor(code int) string {
	if m, ok := messages[code]; ok {
		return m
	}
	return "Error"
}
