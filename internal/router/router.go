package router

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Brownie44l1/foundry-express/internal/body"
	"github.com/Brownie44l1/foundry-express/internal/headers"
	"github.com/Brownie44l1/foundry-express/internal/request"
	"github.com/Brownie44l1/foundry-express/internal/response"
)

var (
	ErrInvalidHandler     = errors.New("handler is not callable")
	ErrRouteNotFound      = errors.New("route not found")
	ErrMethodNotSupported = errors.New("method not supported")
	ErrInvalidMethod      = errors.New("invalid route method")
)

// DefaultEncoding is applied to request bodies unless Settings override it
const DefaultEncoding = "utf-8"

// Handler produces the response for a matched route, through the helpers
// on w or its raw Write* primitives.
type Handler func(req *request.Request, w *response.Writer)

// Middleware is called for its side effects around dispatch.
type Middleware func(req *request.Request, w *response.Writer)

// Route is one registered (pathname, method) pair
type Route struct {
	Method  string
	Path    string
	Handler Handler
	Format  body.Format
}

// Settings are the router-wide defaults
type Settings struct {
	Encoding    string      // charset used to decode request bodies
	ParseFormat body.Format // used when a route declares none
}

func DefaultSettings() Settings {
	return Settings{
		Encoding:    DefaultEncoding,
		ParseFormat: body.Raw,
	}
}

// Router maps pathnames and methods to handlers.
//
// Registration (Handle, Get, Post, Use, UseEarly) must finish before the
// router starts serving; after that it is only read and may be shared by
// any number of connections.
type Router struct {
	settings Settings
	routes   map[string]map[string]*Route // pathname -> method -> route
	early    []Middleware
	late     []Middleware
}

// New creates a router. Zero-valued settings fields fall back to the defaults.
func New(settings Settings) (*Router, error) {
	if settings.Encoding == "" {
		settings.Encoding = DefaultEncoding
	}

	if _, err := body.LookupEncoding(settings.Encoding); err != nil {
		return nil, err
	}

	if !settings.ParseFormat.Valid() {
		return nil, fmt.Errorf("%w: %s", body.ErrUnsupportedFormat, settings.ParseFormat)
	}

	return &Router{
		settings: settings,
		routes:   make(map[string]map[string]*Route),
	}, nil
}

// Settings returns the router-wide defaults in use
func (r *Router) Settings() Settings {
	return r.settings
}

// Handle registers handler for method and pathname. format is optional; at
// most one may be given. Registering the same pair again replaces it.
func (r *Router) Handle(method, pathname string, handler Handler, format ...body.Format) error {
	if handler == nil {
		return fmt.Errorf("%w: %s %s", ErrInvalidHandler, method, pathname)
	}

	method = strings.ToUpper(strings.TrimSpace(method))
	if !headers.ValidName(method) {
		return fmt.Errorf("%w: %q", ErrInvalidMethod, method)
	}

	f := r.settings.ParseFormat
	if len(format) > 0 {
		f = format[0]
	}
	if !f.Valid() {
		return fmt.Errorf("%w: %s", body.ErrUnsupportedFormat, f)
	}

	methods, ok := r.routes[pathname]
	if !ok {
		methods = make(map[string]*Route)
		r.routes[pathname] = methods
	}

	methods[method] = &Route{
		Method:  method,
		Path:    pathname,
		Handler: handler,
		Format:  f,
	}
	return nil
}

// Get is a shortcut for Handle("GET", ...)
func (r *Router) Get(pathname string, handler Handler, format ...body.Format) error {
	return r.Handle("GET", pathname, handler, format...)
}

// Post is a shortcut for Handle("POST", ...)
func (r *Router) Post(pathname string, handler Handler, format ...body.Format) error {
	return r.Handle("POST", pathname, handler, format...)
}

// UseEarly appends middleware run before route lookup
func (r *Router) UseEarly(mw Middleware) error {
	if mw == nil {
		return fmt.Errorf("%w: early middleware", ErrInvalidHandler)
	}
	r.early = append(r.early, mw)
	return nil
}

// Use appends middleware run after the body is parsed, right before the handler
func (r *Router) Use(mw Middleware) error {
	if mw == nil {
		return fmt.Errorf("%w: middleware", ErrInvalidHandler)
	}
	r.late = append(r.late, mw)
	return nil
}

// Lookup finds the route for pathname and method.
// It returns ErrRouteNotFound for an unknown pathname and
// ErrMethodNotSupported when the pathname has no route for method.
func (r *Router) Lookup(pathname, method string) (*Route, error) {
	methods, ok := r.routes[pathname]
	if !ok {
		return nil, ErrRouteNotFound
	}

	route, ok := methods[strings.ToUpper(method)]
	if !ok {
		return nil, ErrMethodNotSupported
	}
	return route, nil
}

// Allowed lists the methods registered for pathname, sorted
func (r *Router) Allowed(pathname string) []string {
	methods := r.routes[pathname]
	allowed := make([]string, 0, len(methods))
	for method := range methods {
		allowed = append(allowed, method)
	}
	sort.Strings(allowed)
	return allowed
}

// Routes returns every registered route ordered by path then method
func (r *Router) Routes() []*Route {
	var all []*Route
	for _, methods := range r.routes {
		for _, route := range methods {
			all = append(all, route)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Path != all[j].Path {
			return all[i].Path < all[j].Path
		}
		return all[i].Method < all[j].Method
	})
	return all
}
