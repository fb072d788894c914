package reqpipeline

import (
	"bufio"
	"strings"
	"testing"

	"github.com/go-core-stack/gatewayd/internal/anonymous"
	"github.com/go-core-stack/gatewayd/internal/headermap"
)

func TestCollectHeadersSplitsAtFirstColon(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("Host: example.com\r\nX-Custom: a:b:c\r\n\r\n"))
	headers, err := CollectHeaders(r)
	if err != nil {
		t.Fatalf("CollectHeaders error: %v", err)
	}
	if v, _, ok := headers.Lookup("host"); !ok || v != "example.com" {
		t.Errorf("Host = %q, ok=%v; want example.com, true", v, ok)
	}
	if v, _, ok := headers.Lookup("X-Custom"); !ok || v != "a:b:c" {
		t.Errorf("X-Custom = %q, ok=%v; want a:b:c, true", v, ok)
	}
}

func TestCollectHeadersNoColonIsProtocolError(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("malformed header line\r\n\r\n"))
	if _, err := CollectHeaders(r); err == nil {
		t.Fatal("expected error for header line with no colon")
	}
}

func TestRewriteHeadersRemovesHopByHopAndConnectionTokens(t *testing.T) {
	headers := headermap.New()
	headers.Insert("Connection", "Keep-Alive, X-Custom-Hop")
	headers.Insert("X-Custom-Hop", "should be dropped")
	headers.Insert("Proxy-Authorization", "Basic xyz")
	headers.Insert("Accept", "text/html")

	result := RewriteHeaders(headers, RewritePolicy{ProtoMajor: 1, ProtoMinor: 1, Hostname: "gatewayd-host", PackageName: "gatewayd", Version: "1.0"})

	joined := strings.Join(result.Lines, "")
	for _, dropped := range []string{"keep-alive", "x-custom-hop", "should be dropped", "proxy-authorization"} {
		if strings.Contains(joined, dropped) {
			t.Errorf("output contains %q, expected it removed: %s", dropped, joined)
		}
	}
	if !strings.Contains(joined, "accept: text/html") {
		t.Errorf("output missing passthrough header: %s", joined)
	}
}

func TestRewriteHeadersViaChaining(t *testing.T) {
	headers := headermap.New()
	headers.Insert("Via", "1.0 upstream-proxy")

	result := RewriteHeaders(headers, RewritePolicy{ProtoMajor: 1, ProtoMinor: 0, Hostname: "h", PackageName: "gatewayd", Version: "2.0"})
	joined := strings.Join(result.Lines, "")
	if !strings.Contains(joined, "Via: 1.0 upstream-proxy, 1.0 h (gatewayd/2.0)") {
		t.Errorf("Via chaining incorrect: %s", joined)
	}
}

func TestRewriteHeadersContentLengthCaptured(t *testing.T) {
	headers := headermap.New()
	headers.Insert("Content-Length", "42")

	result := RewriteHeaders(headers, RewritePolicy{Hostname: "h", PackageName: "gatewayd", Version: "1.0"})
	if result.ContentLength != 42 {
		t.Errorf("ContentLength = %d; want 42", result.ContentLength)
	}
}

func TestRewriteHeadersNoContentLengthLeavesNegativeOne(t *testing.T) {
	headers := headermap.New()
	result := RewriteHeaders(headers, RewritePolicy{Hostname: "h", PackageName: "gatewayd", Version: "1.0"})
	if result.ContentLength != -1 {
		t.Errorf("ContentLength = %d; want -1", result.ContentLength)
	}
}

func TestRewriteHeadersAnonymityRestrictsEmission(t *testing.T) {
	headers := headermap.New()
	headers.Insert("Accept", "text/html")
	headers.Insert("Cookie", "secret=1")

	allow := anonymous.New(true, []string{"Accept"})
	result := RewriteHeaders(headers, RewritePolicy{Hostname: "h", PackageName: "gatewayd", Version: "1.0", Anonymous: allow})
	joined := strings.Join(result.Lines, "")
	if !strings.Contains(joined, "accept: text/html") {
		t.Errorf("expected allow-listed header forwarded: %s", joined)
	}
	if strings.Contains(joined, "cookie") {
		t.Errorf("expected non-allow-listed header dropped: %s", joined)
	}
}

func TestRewriteHeadersXTinyproxyHeader(t *testing.T) {
	headers := headermap.New()
	result := RewriteHeaders(headers, RewritePolicy{Hostname: "h", PackageName: "gatewayd", Version: "1.0", EmitTinyproxyHeader: true, ClientIP: "10.0.0.5"})
	joined := strings.Join(result.Lines, "")
	if !strings.Contains(joined, "X-Tinyproxy: 10.0.0.5") {
		t.Errorf("expected X-Tinyproxy header: %s", joined)
	}
}
