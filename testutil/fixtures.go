package testutil

import (
	"fmt"
	"strings"
)

// LongPollResponse builds a 200 answer carrying body, with a Content-Length header and
// the extra header lines given as "Name: value".
func LongPollResponse(body string, headers ...string) string {
	return RawResponse("HTTP/1.1 200 OK", body, headers...)
}

// RawResponse builds an HTTP response with the given status line
func RawResponse(status, body string, headers ...string) string {
	var b strings.Builder
	b.WriteString(status)
	b.WriteString("\r\n")
	for _, h := range headers {
		b.WriteString(h)
		b.WriteString("\r\n")
	}
	fmt.Fprintf(&b, "Content-Length: %d\r\n\r\n", len(body))
	b.WriteString(body)
	return b.String()
}

// UpdatesBody builds a long-poll body with cursor ts and the given raw update records
func UpdatesBody(ts int, updates ...string) string {
	return fmt.Sprintf(`{"ts":%d,"updates":[%s]}`, ts, strings.Join(updates, ","))
}

// NewMessageUpdate renders a "new message" record
func NewMessageUpdate(id, flags, from, ts int64, body string) string {
	return fmt.Sprintf(`[4,%d,%d,%d,%d," ... ",%q,{}]`, id, flags, from, ts, body)
}
