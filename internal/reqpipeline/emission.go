package reqpipeline

import "fmt"

// EmitRequestLine formats the request line and fixed Host/Connection lines
// sent to the origin or upstream proxy, ahead of the rewritten client
// headers. In direct mode the server sees an origin-relative path; in
// upstream mode it sees the absolute-URI (or authority, for CONNECT) form so
// the upstream proxy can route the request itself.
func EmitRequestLine(req *Request, useUpstream bool) string {
	var target string
	switch {
	case useUpstream && req.Connect:
		target = fmt.Sprintf("%s:%d", req.Host, req.Port)
	case useUpstream:
		target = fmt.Sprintf("http://%s:%d%s", req.Host, req.Port, req.Path)
	default:
		target = req.Path
	}

	line := fmt.Sprintf("%s %s HTTP/1.0\r\n", req.Method, target)
	line += fmt.Sprintf("Host: %s\r\n", req.Host)
	line += "Connection: close\r\n"
	return line
}

// ConnectEstablishedResponse is written to the client in place of relaying a
// server response when a CONNECT request is handled directly (no upstream
// proxy configured): the tunnel is established immediately and opaque bytes
// follow.
func ConnectEstablishedResponse(packageName, version string) string {
	return "HTTP/1.0 200 Connection established\r\n" +
		fmt.Sprintf("Proxy-agent: %s/%s\r\n", packageName, version) +
		"\r\n"
}
