package reqpipeline

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-core-stack/gatewayd/internal/anonymous"
	"github.com/go-core-stack/gatewayd/internal/headermap"
	"github.com/go-core-stack/gatewayd/internal/lineread"
)

// hopByHop is the fixed set of header names dropped unconditionally before
// forwarding, regardless of what the Connection header named.
var hopByHop = map[string]bool{
	"host":                true,
	"connection":          true,
	"keep-alive":          true,
	"proxy-authenticate":  true,
	"proxy-authorization": true,
	"te":                  true,
	"trailers":            true,
	"transfer-encoding":   true,
	"upgrade":             true,
}

// connectionTokenDelims is the RFC 2616 separator class used to tokenize a
// Connection header's value into the header names it names as hop-by-hop.
const connectionTokenDelims = "(),;:<>@\"/[]?={} \t\\"

// CollectHeaders reads lines from r until end-of-headers, splitting each at
// its first colon. A line with no colon is a protocol error.
func CollectHeaders(r *bufio.Reader) (*headermap.Map, error) {
	headers := headermap.New()
	for {
		line, err := lineread.ReadLine(r)
		if err != nil {
			if errors.Is(err, lineread.ErrLineTooLong) {
				return nil, newError(KindHeaderOverflow, 0, err)
			}
			return nil, newError(KindPeerClose, 0, err)
		}
		if lineread.IsEndOfHeaders(line) {
			return headers, nil
		}
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			return nil, newError(KindParseError, 400, fmt.Errorf("header line has no colon: %q", line))
		}
		name := line[:idx]
		value := stripSeparatorRun(line[idx+1:])
		headers.Insert(name, value)
	}
}

// stripSeparatorRun drops the line terminator and the leading run of ':',
// ' ', and '\t' bytes immediately following the header name's colon, per
// §4.3: only that separator run is consumed, so any other whitespace inside
// the value (including trailing spaces) is preserved byte-for-byte.
func stripSeparatorRun(rest string) string {
	rest = strings.TrimRight(rest, "\r\n")
	i := 0
	for i < len(rest) && (rest[i] == ':' || rest[i] == ' ' || rest[i] == '\t') {
		i++
	}
	return rest[i:]
}

// RewriteResult is the outcome of applying the header rewrite policy: the
// headers to forward, in order, plus any Content-Length captured for the
// subsequent body pump.
type RewriteResult struct {
	Lines         []string // fully formatted "Key: Value\r\n" lines, in emission order
	ContentLength int64    // -1 if absent
}

// RewritePolicy names the ambient inputs the 8-step rewrite pipeline needs
// beyond the raw header map itself.
type RewritePolicy struct {
	ProtoMajor, ProtoMinor int
	Hostname               string
	PackageName            string
	Version                string
	Anonymous              *anonymous.List
	EmitTinyproxyHeader    bool
	ClientIP               string
}

// RewriteHeaders applies the header rewriting policy in the fixed order
// the specification names: Connection-token hop-by-hop removal,
// Content-Length capture, Via construction/chaining, the fixed denylist,
// anonymity-gated emission, and the optional X-Tinyproxy header.
func RewriteHeaders(headers *headermap.Map, policy RewritePolicy) RewriteResult {
	result := RewriteResult{ContentLength: -1}

	if conn, _, ok := headers.Lookup("Connection"); ok {
		for _, tok := range tokenize(conn) {
			headers.Remove(tok)
		}
		headers.Remove("Connection")
	}

	if cl, _, ok := headers.Lookup("Content-Length"); ok {
		if n, err := strconv.ParseInt(strings.TrimSpace(cl), 10, 64); err == nil {
			result.ContentLength = n
		}
	}

	via := fmt.Sprintf("%d.%d %s (%s/%s)", policy.ProtoMajor, policy.ProtoMinor, policy.Hostname, policy.PackageName, policy.Version)
	if old, _, ok := headers.Lookup("Via"); ok {
		via = old + ", " + via
		headers.Remove("Via")
	}
	result.Lines = append(result.Lines, formatLine("Via", via))

	for name := range hopByHop {
		headers.Remove(name)
	}

	anonEnabled := policy.Anonymous != nil && policy.Anonymous.Enabled()
	for _, key := range headers.Keys() {
		if anonEnabled && !policy.Anonymous.Allowed(key) {
			continue
		}
		for _, value := range headers.Values(key) {
			result.Lines = append(result.Lines, formatLine(key, value))
		}
	}

	if policy.EmitTinyproxyHeader && policy.ClientIP != "" {
		result.Lines = append(result.Lines, formatLine("X-Tinyproxy", policy.ClientIP))
	}

	return result
}

func formatLine(key, value string) string {
	return key + ": " + value + "\r\n"
}

// tokenize splits a Connection header value on the RFC 2616 separator class,
// discarding empty tokens, and lowercases each token for map-key lookups.
func tokenize(value string) []string {
	var out []string
	var cur strings.Builder
	isDelim := func(b byte) bool { return strings.IndexByte(connectionTokenDelims, b) >= 0 }
	for i := 0; i < len(value); i++ {
		if isDelim(value[i]) {
			if cur.Len() > 0 {
				out = append(out, strings.ToLower(cur.String()))
				cur.Reset()
			}
			continue
		}
		cur.WriteByte(value[i])
	}
	if cur.Len() > 0 {
		out = append(out, strings.ToLower(cur.String()))
	}
	return out
}
