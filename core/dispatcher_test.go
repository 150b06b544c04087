package core

import (
	"bytes"
	"strings"
	"testing"

	"github.com/Happensit/bff/core/routes"
)

func newTestConn(method, target, proto, connection string) *Connection {
	c := &Connection{}
	c.req.Method = method
	c.req.Target = target
	c.req.Proto = proto
	c.req.Connection = connection
	return c
}

func dispatchedResponse(c *Connection) string {
	return string(c.respScratch[:c.respLen]) + string(c.bodySeg)
}

func TestDispatchKnownRoute(t *testing.T) {
	table := routes.Default()
	c := newTestConn("GET", "/health", "HTTP/1.1", "")
	Dispatch(c, table)

	if c.state != StateWriting {
		t.Fatalf("expected state Writing, got %v", c.state)
	}
	resp := dispatchedResponse(c)
	if !strings.HasPrefix(resp, "HTTP/1.1 200 OK") {
		t.Fatalf("expected 200 OK status line, got %q", resp)
	}
	if !strings.Contains(resp, `{"status":"OK"}`) {
		t.Fatalf("expected health body in response, got %q", resp)
	}
	if !c.keepAlive {
		t.Fatal("expected keep-alive to default true for HTTP/1.1 with no Connection header")
	}
}

func TestDispatchUnknownRoute(t *testing.T) {
	table := routes.Default()
	c := newTestConn("GET", "/nope", "HTTP/1.1", "")
	Dispatch(c, table)

	resp := dispatchedResponse(c)
	if !strings.HasPrefix(resp, "HTTP/1.1 404 Not Found") {
		t.Fatalf("expected 404, got %q", resp)
	}
	if c.keepAlive {
		t.Fatal("expected keep-alive false on a 404")
	}
}

func TestDispatchMethodNotAllowed(t *testing.T) {
	table := routes.Default()
	c := newTestConn("POST", "/health", "HTTP/1.1", "")
	Dispatch(c, table)

	resp := dispatchedResponse(c)
	if !strings.HasPrefix(resp, "HTTP/1.1 405 Method Not Allowed") {
		t.Fatalf("expected 405, got %q", resp)
	}
}

func TestDispatchStripsQueryString(t *testing.T) {
	table := routes.Default()
	c := newTestConn("GET", "/games?sort=asc", "HTTP/1.1", "")
	Dispatch(c, table)

	resp := dispatchedResponse(c)
	if !strings.HasPrefix(resp, "HTTP/1.1 200 OK") {
		t.Fatalf("expected the query string to be ignored for routing, got %q", resp)
	}
}

func TestDispatchConnectionCloseOverridesKeepAlive(t *testing.T) {
	table := routes.Default()
	c := newTestConn("GET", "/bonuses", "HTTP/1.1", "close")
	Dispatch(c, table)

	if c.keepAlive {
		t.Fatal("expected Connection: close to force keepAlive=false")
	}
	resp := dispatchedResponse(c)
	if !strings.Contains(resp, "Connection: close") {
		t.Fatalf("expected Connection: close header, got %q", resp)
	}
}

func TestDispatchResetsByteCounterForFreshWrite(t *testing.T) {
	table := routes.Default()
	c := newTestConn("GET", "/settings", "HTTP/1.1", "")
	c.bytesSent = 999
	Dispatch(c, table)

	if c.bytesSent != 0 {
		t.Fatalf("expected bytesSent reset to 0, got %d", c.bytesSent)
	}
}

func TestScatterRemainingElidesExhaustedHeaderSegment(t *testing.T) {
	table := routes.Default()
	c := newTestConn("GET", "/health", "HTTP/1.1", "")
	Dispatch(c, table)

	c.bytesSent = c.respLen // headers fully sent, body remains
	segs := c.scatterRemaining()
	if len(segs) != 1 {
		t.Fatalf("expected exactly one remaining segment once headers drain, got %d", len(segs))
	}
	if !bytes.Equal(segs[0], c.bodySeg) {
		t.Fatal("expected the remaining segment to be the full body")
	}
}

func TestScatterRemainingEmptyWhenFullySent(t *testing.T) {
	table := routes.Default()
	c := newTestConn("GET", "/health", "HTTP/1.1", "")
	Dispatch(c, table)

	c.bytesSent = c.totalResponseLen()
	segs := c.scatterRemaining()
	if len(segs) != 0 {
		t.Fatalf("expected no remaining segments once fully sent, got %d", len(segs))
	}
}
