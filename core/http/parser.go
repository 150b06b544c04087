package http

import (
	"bytes"
	"errors"
)

var (
	// ErrMalformed covers structurally broken request lines or header
	// blocks that do not fit any of the more specific errors below.
	ErrMalformed = errors.New("http: malformed request")
	// ErrInvalidTarget is returned when the request-target fails the
	// length, prefix, character-class, or traversal checks.
	ErrInvalidTarget = errors.New("http: invalid request target")
	// ErrUnsupportedVersion is returned for any protocol version other
	// than HTTP/1.0 or HTTP/1.1.
	ErrUnsupportedVersion = errors.New("http: unsupported protocol version")
	// ErrUpgradeRequested is returned when an Upgrade header is present;
	// protocol upgrades are out of scope entirely.
	ErrUpgradeRequested = errors.New("http: upgrade requested")
	// ErrBodyPresent is returned when Content-Length is nonzero; request
	// bodies are not supported.
	ErrBodyPresent = errors.New("http: request body present")
	// ErrHeadersTooLarge is returned when the header block exceeds the
	// 8192-byte ceiling.
	ErrHeadersTooLarge = errors.New("http: headers too large")
	// ErrTrailingData is returned when bytes remain in the read buffer
	// past the header terminator — pipelining is not supported.
	ErrTrailingData = errors.New("http: trailing data after headers")
)

const (
	// MaxHeaderBytes bounds the header block, matching the 8192-byte
	// request ceiling enforced by the reactor's read path.
	MaxHeaderBytes = 8192
	// MaxTargetBytes bounds the request-target length.
	MaxTargetBytes = 255
)

var crlfcrlf = []byte("\r\n\r\n")

// FindHeadersEnd scans buf for the blank line terminating the header
// block and returns the index one past it (the length of the header
// block including the terminator), or -1 if not yet present. The
// reactor calls this on every read before invoking Parse, so partial
// reads never pay full-parse cost.
func FindHeadersEnd(buf []byte) int {
	i := bytes.Index(buf, crlfcrlf)
	if i == -1 {
		return -1
	}
	return i + len(crlfcrlf)
}

// Parse parses the header block buf[:headersEnd] (as located by
// FindHeadersEnd) into req. It returns ErrTrailingData if buf holds
// bytes beyond headersEnd — one read is never allowed to carry a
// second, pipelined request.
func Parse(buf []byte, headersEnd int, req *Request) error {
	if headersEnd > MaxHeaderBytes {
		return ErrHeadersTooLarge
	}
	if len(buf) > headersEnd {
		return ErrTrailingData
	}
	data := buf[:headersEnd]

	lineEnd := bytes.IndexByte(data, '\n')
	if lineEnd == -1 {
		return ErrMalformed
	}
	line := data[:lineEnd]
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}

	sp1 := bytes.IndexByte(line, ' ')
	if sp1 <= 0 {
		return ErrMalformed
	}
	rest := line[sp1+1:]
	sp2 := bytes.IndexByte(rest, ' ')
	if sp2 == -1 {
		return ErrMalformed
	}

	method := line[:sp1]
	target := rest[:sp2]
	proto := rest[sp2+1:]

	if err := validateTarget(target); err != nil {
		return err
	}

	req.Method = string(method)
	req.Target = string(target)
	req.Proto = string(proto)

	if req.Proto != "HTTP/1.1" && req.Proto != "HTTP/1.0" {
		return ErrUnsupportedVersion
	}

	if err := parseHeaders(req, data[lineEnd+1:]); err != nil {
		return err
	}
	if req.HasUpgrade {
		return ErrUpgradeRequested
	}
	if req.HasContentLength && req.ContentLength != 0 {
		return ErrBodyPresent
	}
	return nil
}

// validTargetByte matches [A-Za-z0-9/\-_.?=&].
func validTargetByte(c byte) bool {
	switch {
	case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		return true
	case c == '/' || c == '-' || c == '_' || c == '.' || c == '?' || c == '=' || c == '&':
		return true
	default:
		return false
	}
}

func validateTarget(target []byte) error {
	if len(target) == 0 || len(target) > MaxTargetBytes {
		return ErrInvalidTarget
	}
	if target[0] != '/' {
		return ErrInvalidTarget
	}
	for i, c := range target {
		if !validTargetByte(c) {
			return ErrInvalidTarget
		}
		if c == '/' && i+1 < len(target) && target[i+1] == '/' {
			return ErrInvalidTarget
		}
		if c == '.' && i+1 < len(target) && target[i+1] == '.' {
			return ErrInvalidTarget
		}
	}
	return nil
}

func parseHeaders(req *Request, data []byte) error {
	for len(data) > 0 {
		lineEnd := bytes.IndexByte(data, '\n')
		if lineEnd == -1 {
			lineEnd = len(data)
		}

		line := data[:lineEnd]
		if len(line) > 0 && line[len(line)-1] == '\r' {
			line = line[:len(line)-1]
		}
		if len(line) == 0 {
			break
		}

		colon := bytes.IndexByte(line, ':')
		if colon <= 0 {
			return ErrMalformed
		}
		key := bytes.TrimSpace(line[:colon])
		value := bytes.TrimSpace(line[colon+1:])

		switch {
		case headerNameEqualFold(key, "Content-Length"):
			n, ok := parseUint(value)
			if !ok {
				return ErrMalformed
			}
			req.HasContentLength = true
			req.ContentLength = n
		case headerNameEqualFold(key, "Connection"):
			req.Connection = string(value)
		case headerNameEqualFold(key, "Upgrade"):
			req.HasUpgrade = true
		}

		if lineEnd >= len(data) {
			break
		}
		data = data[lineEnd+1:]
	}
	return nil
}

func headerNameEqualFold(name []byte, want string) bool {
	if len(name) != len(want) {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		w := want[i]
		if 'A' <= w && w <= 'Z' {
			w += 'a' - 'A'
		}
		if c != w {
			return false
		}
	}
	return true
}

func parseUint(b []byte) (int, bool) {
	if len(b) == 0 {
		return 0, false
	}
	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}
