// Package edge defines the boundary shapes exchanged with the request
// interception layer, and the dispatcher that routes intercepted requests to
// handlers. The shapes mirror the edge platform's event format: header names
// are lower-cased keys of a multimap, the querystring is carried raw, and a
// handler either crafts a response or hands the original request back
// unchanged so the caller proceeds to the origin.
package edge

import (
	"context"
	"strings"
)

// Header is a single header entry. Key preserves the original casing; the
// Headers map key is the lower-cased name.
type Header struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Headers is a multimap of lower-cased header name to entries.
type Headers map[string][]Header

// Add appends a header entry under the lower-cased form of key.
func (h Headers) Add(key, value string) {
	lk := strings.ToLower(key)
	h[lk] = append(h[lk], Header{Key: key, Value: value})
}

// Values returns all values recorded under the lower-cased name.
func (h Headers) Values(name string) []string {
	entries := h[strings.ToLower(name)]
	if len(entries) == 0 {
		return nil
	}
	vs := make([]string, 0, len(entries))
	for _, e := range entries {
		vs = append(vs, e.Value)
	}
	return vs
}

// Request is one intercepted request. URI is the path only; Querystring is the
// raw URL-encoded query without the leading "?".
type Request struct {
	Method      string  `json:"method"`
	URI         string  `json:"uri"`
	Querystring string  `json:"querystring"`
	Headers     Headers `json:"headers"`
}

// Response is the terminal outcome of a handler. When Request is non-nil the
// response is a pass-through: the interception layer fetches the origin with
// the original request and Status/Headers are ignored.
type Response struct {
	Status            int      `json:"status,omitempty"`
	StatusDescription string   `json:"statusDescription,omitempty"`
	Headers           Headers  `json:"headers,omitempty"`
	Request           *Request `json:"-"`
}

// PassThrough signals that req should proceed to the origin unchanged.
func PassThrough(req *Request) *Response {
	return &Response{Request: req}
}

// IsPassThrough reports whether the response hands the original request back.
func (r *Response) IsPassThrough() bool {
	return r.Request != nil
}

// Handler processes one intercepted request to a single terminal outcome.
// A non-nil error is an invocation-level failure; the interception layer
// applies its default error behavior.
type Handler func(ctx context.Context, req *Request) (*Response, error)
