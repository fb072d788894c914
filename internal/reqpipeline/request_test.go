package reqpipeline

import "testing"

func TestParseRequestLineAbsoluteForms(t *testing.T) {
	cases := []struct {
		name     string
		line     string
		wantHost string
		wantPort uint16
		wantPath string
	}{
		{"host port path", "GET http://example.com:8080/index.html HTTP/1.1", "example.com", 8080, "/index.html"},
		{"host path", "GET http://example.com/index.html HTTP/1.1", "example.com", 80, "/index.html"},
		{"host port only", "GET http://example.com:8080 HTTP/1.1", "example.com", 8080, "/"},
		{"bare host", "GET http://example.com HTTP/1.1", "example.com", 80, "/"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := ParseRequestLine(tc.line)
			if err != nil {
				t.Fatalf("ParseRequestLine(%q) error: %v", tc.line, err)
			}
			if req.Host != tc.wantHost || req.Port != tc.wantPort || req.Path != tc.wantPath {
				t.Errorf("got host=%q port=%d path=%q; want host=%q port=%d path=%q",
					req.Host, req.Port, req.Path, tc.wantHost, tc.wantPort, tc.wantPath)
			}
			if req.Connect {
				t.Errorf("Connect = true for absolute-form request")
			}
			if req.Protocol != "HTTP/1.1" || req.Major != 1 || req.Minor != 1 {
				t.Errorf("protocol = %q %d.%d; want HTTP/1.1 1.1", req.Protocol, req.Major, req.Minor)
			}
		})
	}
}

func TestParseRequestLineConnect(t *testing.T) {
	req, err := ParseRequestLine("CONNECT example.com:443 HTTP/1.1")
	if err != nil {
		t.Fatalf("ParseRequestLine error: %v", err)
	}
	if !req.Connect {
		t.Fatal("Connect = false for CONNECT request")
	}
	if req.Host != "example.com" || req.Port != 443 {
		t.Errorf("got host=%q port=%d; want example.com 443", req.Host, req.Port)
	}
}

func TestParseRequestLineConnectDefaultPort(t *testing.T) {
	req, err := ParseRequestLine("CONNECT example.com HTTP/1.1")
	if err != nil {
		t.Fatalf("ParseRequestLine error: %v", err)
	}
	if req.Port != 443 {
		t.Errorf("Port = %d; want 443 (default)", req.Port)
	}
}

func TestParseRequestLineTooFewFields(t *testing.T) {
	if _, err := ParseRequestLine("GET"); err == nil {
		t.Fatal("expected error for single-field request line")
	}
}

func TestParseRequestLineUnsupportedTarget(t *testing.T) {
	if _, err := ParseRequestLine("GET /relative/path HTTP/1.1"); err == nil {
		t.Fatal("expected error for non-absolute, non-CONNECT target")
	}
}

func TestParseRequestLineNoProtocolToken(t *testing.T) {
	req, err := ParseRequestLine("GET http://example.com/")
	if err != nil {
		t.Fatalf("ParseRequestLine error: %v", err)
	}
	if req.Protocol != "" || req.Major != 0 || req.Minor != 0 {
		t.Errorf("protocol = %q %d.%d; want empty/zero with no protocol token", req.Protocol, req.Major, req.Minor)
	}
}

func TestParseRequestLineUnrecognizedProtocolLeavesVersionZero(t *testing.T) {
	req, err := ParseRequestLine("GET http://example.com/ GARBAGE")
	if err != nil {
		t.Fatalf("ParseRequestLine error: %v", err)
	}
	if req.Major != 0 || req.Minor != 0 {
		t.Errorf("Major/Minor = %d.%d; want 0.0 for unrecognized protocol token", req.Major, req.Minor)
	}
}

func TestParseRequestLineCaseInsensitiveScheme(t *testing.T) {
	req, err := ParseRequestLine("GET HTTP://Example.com/path HTTP/1.0")
	if err != nil {
		t.Fatalf("ParseRequestLine error: %v", err)
	}
	if req.Host != "Example.com" {
		t.Errorf("Host = %q; want Example.com", req.Host)
	}
}
