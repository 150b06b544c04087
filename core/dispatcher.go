package core

import (
	"strconv"
	"strings"

	"github.com/Happensit/bff/core/routes"
)

const serverHeader = "BFF/1.0"

var (
	notFoundBody           = []byte(`{"error":"Not Found"}`)
	methodNotAllowedBody   = []byte(`{"error":"Method Not Allowed"}`)
	internalErrorBody      = []byte(`{"error":"Internal Server Error"}`)
	badRequestBody         = []byte(`{"error":"Bad Request"}`)
)

// cannedInternalError is pre-formatted in full (status line through
// blank line plus body) so it never itself risks overflowing the
// 512-byte scratch buffer it is copied into.
var cannedInternalError = buildCanned(500, "Internal Server Error", internalErrorBody)

func buildCanned(code int, reason string, body []byte) []byte {
	var b strings.Builder
	b.WriteString("HTTP/1.1 ")
	b.WriteString(strconv.Itoa(code))
	b.WriteByte(' ')
	b.WriteString(reason)
	b.WriteString("\r\nContent-Type: application/json\r\nContent-Length: ")
	b.WriteString(strconv.Itoa(len(body)))
	b.WriteString("\r\nServer: ")
	b.WriteString(serverHeader)
	b.WriteString("\r\nX-Content-Type-Options: nosniff\r\nX-Frame-Options: DENY\r\nConnection: close\r\n\r\n")
	b.Write(body)
	return []byte(b.String())
}

// Dispatch performs the request-dispatcher component's six steps: it
// strips the query string, re-validates the target, method-checks,
// looks up the route, formats response headers into the connection's
// scratch buffer, and assembles the scatter list. It mutates c in
// place and always leaves c in state Writing with bytesSent reset.
func Dispatch(c *Connection, table *routes.Table) {
	target := c.req.Target
	path := target
	if i := strings.IndexByte(target, '?'); i != -1 {
		path = target[:i]
	}

	var status int
	var reason string
	var body []byte
	keepAlive := c.req.KeepAlive()

	switch {
	case path == "" || path[0] != '/':
		status, reason, body, keepAlive = 400, "Bad Request", badRequestBody, false
	case c.req.Method != "GET":
		status, reason, body, keepAlive = 405, "Method Not Allowed", methodNotAllowedBody, false
	default:
		entry, ok := table.Lookup(path)
		if !ok {
			status, reason, body, keepAlive = 404, "Not Found", notFoundBody, false
		} else {
			status, reason, body = 200, "OK", entry.Body
		}
	}

	c.keepAlive = keepAlive
	if !formatResponse(c, status, reason, body, keepAlive) {
		// Header formatting overflowed the 512-byte scratch: substitute
		// the canned 500 and force the connection closed.
		copy(c.respScratch[:], cannedInternalError)
		c.respLen = len(cannedInternalError)
		c.bodySeg = nil
		c.keepAlive = false
	} else {
		c.bodySeg = body
	}

	c.bytesSent = 0
	c.state = StateWriting
}

// formatResponse writes the status line and headers into c's 512-byte
// scratch buffer. It returns false without having written a partial
// response if the formatted headers would not fit.
func formatResponse(c *Connection, status int, reason string, body []byte, keepAlive bool) bool {
	var b strings.Builder
	b.Grow(headerScratchSize)
	b.WriteString("HTTP/1.1 ")
	b.WriteString(strconv.Itoa(status))
	b.WriteByte(' ')
	b.WriteString(reason)
	b.WriteString("\r\nContent-Type: application/json\r\nContent-Length: ")
	b.WriteString(strconv.Itoa(len(body)))
	b.WriteString("\r\nServer: ")
	b.WriteString(serverHeader)
	b.WriteString("\r\nX-Content-Type-Options: nosniff\r\nX-Frame-Options: DENY\r\n")
	if keepAlive {
		b.WriteString("Connection: keep-alive\r\nKeep-Alive: timeout=10\r\n\r\n")
	} else {
		b.WriteString("Connection: close\r\n\r\n")
	}

	formatted := b.String()
	if len(formatted) > headerScratchSize {
		return false
	}
	c.respLen = copy(c.respScratch[:], formatted)
	return true
}
