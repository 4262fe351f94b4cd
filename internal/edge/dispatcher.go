package edge

import (
	"context"
	"fmt"
	"regexp"
)

// Route binds a path pattern to a handler. Patterns are matched against the
// request URI in registration order.
type Route struct {
	Pattern *regexp.Regexp
	Handler Handler
}

// Dispatcher routes intercepted requests to the first matching route. Requests
// matching no route pass through to the origin unchanged.
type Dispatcher struct {
	routes []Route
}

// NewDispatcher builds a dispatcher over an ordered route list.
func NewDispatcher(routes []Route) *Dispatcher {
	return &Dispatcher{routes: routes}
}

// Dispatch handles a single request. Panics inside handlers are recovered and
// reported as the invocation's failure; no partial response escapes.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) (resp *Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp = nil
			err = fmt.Errorf("handler panic on %s: %v", req.URI, r)
		}
	}()

	for _, route := range d.routes {
		if route.Pattern.MatchString(req.URI) {
			return route.Handler(ctx, req)
		}
	}
	return PassThrough(req), nil
}

// Event is an inbound invocation carrying intercepted requests. The platform's
// event format allows several records per invocation; this gateway requires
// exactly one and treats anything else as a deployment misconfiguration.
type Event struct {
	Records []*Request `json:"records"`
}

// DispatchEvent unwraps a single-record event and dispatches it.
func (d *Dispatcher) DispatchEvent(ctx context.Context, ev *Event) (*Response, error) {
	if n := len(ev.Records); n != 1 {
		return nil, fmt.Errorf("expected exactly 1 record per invocation, got %d", n)
	}
	return d.Dispatch(ctx, ev.Records[0])
}
