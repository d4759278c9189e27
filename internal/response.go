package internal

import (
	"bytes"
	"strconv"
	"strings"
)

var headerTerminator = []byte("\r\n\r\n")

// RawResponse is a framed long-poll HTTP response. Header names are kept as received.
type RawResponse struct {
	StatusLine string
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// ParseResponse splits raw bytes into status line, headers and body.
// Chunked transfer, redirects and continuation lines are not supported.
func ParseResponse(data []byte) (*RawResponse, error) {
	head, body, ok := bytes.Cut(data, headerTerminator)
	if !ok {
		return nil, &ProtocolError{Stage: "framing", Detail: "no blank line after headers"}
	}

	lines := strings.Split(string(head), "\r\n")
	status := strings.Fields(lines[0])
	if len(status) < 3 || !strings.HasPrefix(status[0], "HTTP/") {
		return nil, &ProtocolError{Stage: "status", Detail: "malformed status line " + strconv.Quote(lines[0])}
	}
	code, err := strconv.Atoi(status[1])
	if err != nil {
		return nil, &ProtocolError{Stage: "status", Detail: "malformed status code " + strconv.Quote(status[1]), Err: err}
	}

	resp := &RawResponse{
		StatusLine: lines[0],
		StatusCode: code,
		Headers:    make(map[string]string, len(lines)-1),
		Body:       body,
	}
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			LogDebug("skipping malformed header line %q", line)
			continue
		}
		resp.Headers[name] = strings.TrimSpace(value)
	}

	if n, ok := resp.ContentLength(); ok && n < len(resp.Body) {
		resp.Body = resp.Body[:n]
	}

	return resp, nil
}

// Header returns a header value. An exact-case match wins; otherwise names are
// compared case-insensitively.
func (r *RawResponse) Header(name string) (string, bool) {
	if v, ok := r.Headers[name]; ok {
		return v, true
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// ConnectionClose reports whether the server asked to drop the connection.
// A missing Connection header means keep-alive.
func (r *RawResponse) ConnectionClose() bool {
	v, ok := r.Header("Connection")
	return ok && strings.EqualFold(v, "close")
}

// ContentLength returns the declared body length, if any
func (r *RawResponse) ContentLength() (int, bool) {
	v, ok := r.Header("Content-Length")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// responseComplete reports whether data holds a full response with a declared length
func responseComplete(data []byte) bool {
	idx := bytes.Index(data, headerTerminator)
	if idx < 0 {
		return false
	}
	resp, err := ParseResponse(data)
	if err != nil {
		return false
	}
	n, ok := resp.ContentLength()
	if !ok {
		return false
	}
	return len(data)-idx-len(headerTerminator) >= n
}
