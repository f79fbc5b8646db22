package router

import (
	"errors"
	"fmt"

	"github.com/Brownie44l1/foundry-express/internal/body"
	"github.com/Brownie44l1/foundry-express/internal/request"
	"github.com/Brownie44l1/foundry-express/internal/response"
)

// Serve dispatches one request.
//
// Lookup runs on the head alone; the body is read only once a route
// matched, so 404 and 405 leave it on the connection. A returned error
// means the request could not be handled and no response was written by
// the router; the caller should drop the connection.
func (r *Router) Serve(w *response.Writer, req *request.Request) error {
	if runMiddleware(r.early, req, w) {
		return nil
	}

	if req.URL == nil {
		if err := req.ParseURL(); err != nil {
			return w.BadRequest()
		}
	}

	route, err := r.Lookup(req.Path, req.Method)
	switch {
	case errors.Is(err, ErrRouteNotFound):
		return w.NotFound()
	case errors.Is(err, ErrMethodNotSupported):
		return w.MethodNotAllowed(r.Allowed(req.Path)...)
	}

	if err := req.ReadBody(); err != nil {
		return fmt.Errorf("reading body: %w", err)
	}

	raw, err := body.Decode(req.Body, r.settings.Encoding)
	if err != nil {
		return fmt.Errorf("decoding body: %w", err)
	}

	parsed, err := body.Parse(raw, route.Format)
	if err != nil {
		return fmt.Errorf("%s %s: %w", route.Method, route.Path, err)
	}
	req.ParsedBody = parsed

	if runMiddleware(r.late, req, w) {
		return nil
	}

	route.Handler(req, w)
	return nil
}

// runMiddleware reports whether a middleware produced the response
func runMiddleware(chain []Middleware, req *request.Request, w *response.Writer) bool {
	for _, mw := range chain {
		mw(req, w)
		if w.Written() {
			return true
		}
	}
	return false
}
