package proxy

import (
	"net/http"
	"strings"
)

// Route sends requests whose path starts with Prefix to Handler.
type Route struct {
	Prefix  string
	Handler http.Handler
}

// Router dispatches on path prefix. Routes are tried in the order they
// were added, so more specific prefixes go first.
type Router struct {
	routes []Route
}

// NewRouter returns an empty router; unmatched paths get 404.
func NewRouter() *Router {
	return &Router{}
}

// AddRoute appends a route. It is matched after every route added before it.
func (r *Router) AddRoute(prefix string, handler http.Handler) {
	r.routes = append(r.routes, Route{
		Prefix:  prefix,
		Handler: handler,
	})
}

// Routes returns the registered prefixes in match order.
func (r *Router) Routes() []string {
	out := make([]string, len(r.routes))
	for i, route := range r.routes {
		out[i] = route.Prefix
	}
	return out
}

// ServeHTTP dispatches to the first matching route.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	for _, route := range r.routes {
		if strings.HasPrefix(req.URL.Path, route.Prefix) {
			route.Handler.ServeHTTP(w, req)
			return
		}
	}

	http.NotFound(w, req)
}
