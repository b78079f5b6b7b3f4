package server

import (
	"net/http"
	"strings"
)

// Middleware wraps an http.Handler and returns a new http.Handler with
// additional behavior (logging, recovery, auth, and so on).
type Middleware func(http.Handler) http.Handler

// Handler is an http.Handler that also knows the route patterns it
// wants registered, so a [Router] can mount it in one call instead of
// the caller repeating its paths.
type Handler interface {
	http.Handler
	Routes() []string
}

// Router is the minimal routing contract [BasicRouter] satisfies for
// the local OAuth callback server.
type Router interface {
	Use(middleware ...Middleware)
	Handle(method, path string, handler http.Handler)
	Handler(handler Handler)
	ServeHTTP(w http.ResponseWriter, r *http.Request)
}

// BasicRouter is a [Router] built on [http.ServeMux], used for the
// short-lived local server the `auth spotify` command starts to catch
// the OAuth redirect. The always-on observability API doesn't go
// through this type; see API.Router in api.go.
type BasicRouter struct {
	mux *http.ServeMux
	middlewares []Middleware
}

// NewBasicRouter creates an empty BasicRouter.
func NewBasicRouter() *BasicRouter {
	return &BasicRouter{
		mux: http.NewServeMux(),
		middlewares: []Middleware{},
	}
}

// Use appends middleware to the router's stack, applied in the order added.
func (r *BasicRouter) Use(middleware ...Middleware) {
	r.middlewares = append(r.middlewares, middleware...)
}

// Handle registers handler for method and path, wrapped with every
// middleware added so far.
func (r *BasicRouter) Handle(method, path string, handler http.Handler) {
	wrapped := r.Apply(handler)

	methodHandler := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if !strings.EqualFold(req.Method, method) {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		wrapped.ServeHTTP(w, req)
	})

	r.mux.Handle(path, methodHandler)
}

// Handler registers every route handler reports under the wrapped handler.
func (r *BasicRouter) Handler(handler Handler) {
	wrapped := r.Apply(handler)

	for _, route := range handler.Routes() {
		r.mux.Handle(route, wrapped)
	}
}

// ServeHTTP implements http.Handler for the whole router.
func (r *BasicRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Apply wraps handler with every registered middleware, first added
// running first (outermost).
func (r *BasicRouter) Apply(handler http.Handler) http.Handler {
	wrapped := handler

	for i := len(r.middlewares) - 1; i >= 0; i-- {
		wrapped = r.middlewares[i](wrapped)
	}

	return wrapped
}
