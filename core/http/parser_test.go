package http

import (
	"strings"
	"testing"
)

func parseFull(t *testing.T, raw string) (*Request, error) {
	t.Helper()
	buf := []byte(raw)
	end := FindHeadersEnd(buf)
	if end == -1 {
		return nil, ErrMalformed
	}
	req := &Request{}
	err := Parse(buf, end, req)
	return req, err
}

func TestParseMinimalRequest(t *testing.T) {
	req, err := parseFull(t, "GET / HTTP/1.1\r\nHost: x\r\n\r\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Method != "GET" || req.Target != "/" || req.Proto != "HTTP/1.1" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if !req.KeepAlive() {
		t.Fatalf("expected keep-alive by default on HTTP/1.1")
	}
}

func TestParseHTTP10DefaultsToClose(t *testing.T) {
	req, err := parseFull(t, "GET /health HTTP/1.0\r\nHost: x\r\n\r\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.KeepAlive() {
		t.Fatalf("expected HTTP/1.0 without Connection: keep-alive to close")
	}
}

func TestParseConnectionClose(t *testing.T) {
	req, err := parseFull(t, "GET /health HTTP/1.1\r\nConnection: close\r\n\r\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.KeepAlive() {
		t.Fatalf("expected Connection: close to disable keep-alive")
	}
}

func TestParseRejectsBody(t *testing.T) {
	_, err := parseFull(t, "POST /health HTTP/1.1\r\nContent-Length: 1\r\n\r\n")
	if err != ErrBodyPresent {
		t.Fatalf("expected ErrBodyPresent, got %v", err)
	}
}

func TestParseAllowsZeroContentLength(t *testing.T) {
	req, err := parseFull(t, "POST /health HTTP/1.1\r\nContent-Length: 0\r\n\r\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Method != "POST" {
		t.Fatalf("unexpected method: %s", req.Method)
	}
}

func TestParseRejectsUpgrade(t *testing.T) {
	_, err := parseFull(t, "GET /health HTTP/1.1\r\nUpgrade: websocket\r\n\r\n")
	if err != ErrUpgradeRequested {
		t.Fatalf("expected ErrUpgradeRequested, got %v", err)
	}
}

func TestParseRejectsUnsupportedVersion(t *testing.T) {
	_, err := parseFull(t, "GET /health HTTP/2.0\r\n\r\n")
	if err != ErrUnsupportedVersion {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestParseRejectsPathTraversal(t *testing.T) {
	_, err := parseFull(t, "GET /../etc/passwd HTTP/1.1\r\nHost: x\r\n\r\n")
	if err != ErrInvalidTarget {
		t.Fatalf("expected ErrInvalidTarget, got %v", err)
	}
}

func TestParseRejectsDoubleSlash(t *testing.T) {
	_, err := parseFull(t, "GET //health HTTP/1.1\r\n\r\n")
	if err != ErrInvalidTarget {
		t.Fatalf("expected ErrInvalidTarget, got %v", err)
	}
}

func TestParseTargetBoundary(t *testing.T) {
	target255 := "/" + strings.Repeat("a", MaxTargetBytes-1)
	if len(target255) != MaxTargetBytes {
		t.Fatalf("test setup: want %d got %d", MaxTargetBytes, len(target255))
	}
	req, err := parseFull(t, "GET "+target255+" HTTP/1.1\r\n\r\n")
	if err != nil {
		t.Fatalf("255-byte target should be accepted: %v", err)
	}
	if len(req.Target) != MaxTargetBytes {
		t.Fatalf("unexpected target length %d", len(req.Target))
	}

	target256 := target255 + "a"
	_, err = parseFull(t, "GET "+target256+" HTTP/1.1\r\n\r\n")
	if err != ErrInvalidTarget {
		t.Fatalf("256-byte target should be rejected, got %v", err)
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	buf := []byte("GET /health HTTP/1.1\r\n\r\nGET /health HTTP/1.1\r\n\r\n")
	end := FindHeadersEnd(buf)
	req := &Request{}
	err := Parse(buf, end, req)
	if err != ErrTrailingData {
		t.Fatalf("expected ErrTrailingData, got %v", err)
	}
}

func TestFindHeadersEndBoundary(t *testing.T) {
	headers := "GET /health HTTP/1.1\r\n" + strings.Repeat("X-Pad: a\r\n", 1000)
	raw := headers + "\r\n"
	buf := []byte(raw)
	end := FindHeadersEnd(buf)
	if end == -1 {
		t.Fatalf("expected headers end to be found")
	}
	if end != len(buf) {
		t.Fatalf("expected headers end at buffer length, got %d of %d", end, len(buf))
	}
}
