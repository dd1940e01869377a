package echo

import "net/http"

// Endpoint documents one echo route.
type Endpoint struct {
	Path        string `json:"path"`
	Method      string `json:"method"`
	Description string `json:"description"`
}

// Endpoints lists the echo routes served by Handlers.
var Endpoints = []Endpoint{
	{"/", "GET", "Root welcome message."},
	{"/get", "GET", "Echoes request details for GET."},
	{"/get", "HEAD", "Responds with headers for GET."},
	{"/post", "POST", "Echoes request details for POST, expects JSON body."},
	{"/put", "PUT", "Echoes request details for PUT, expects JSON body."},
	{"/patch", "PATCH", "Echoes request details for PATCH, expects JSON body."},
	{"/delete", "DELETE", "Echoes request details for DELETE."},
	{"/options", "OPTIONS", "Responds with allowed HTTP methods."},
	{"/status/{code}", "ANY", "Returns the specified HTTP status code."},
	{"/anything", "ANY", "Echoes request details for any HTTP method."},
	{"/anything/{path...}", "ANY", "Echoes request details under any sub-path."},
	{"/delay/{n}", "ANY", "Delays the response by n seconds (max 300)."},
	{"/redirect/{n}", "ANY", "Redirects n times before landing on /get (max 20)."},
	{"/cookies", "GET", "Returns cookies sent with the request."},
	{"/cookies/set", "GET", "Sets cookies from query parameters and redirects to /cookies."},
	{"/cookies/delete", "GET", "Expires cookies named in the query and redirects to /cookies."},
	{"/healthz", "GET", "Health check."},
	{"/endpoints", "GET", "Lists available endpoints."},
	{"/metrics", "GET", "Request metrics snapshot."},
}

// Handlers serves the echo endpoints.
type Handlers struct {
	mux *http.ServeMux
}

// New returns echo handlers. extra routes (such as /metrics) are mounted
// on the same mux so they run behind the same pipeline.
func New(extra map[string]http.Handler) *Handlers {
	h := &Handlers{mux: http.NewServeMux()}

	h.mux.HandleFunc("GET /{$}", h.root)
	h.mux.HandleFunc("GET /get", h.get)
	h.mux.HandleFunc("POST /post", h.withJSONBody)
	h.mux.HandleFunc("PUT /put", h.withJSONBody)
	h.mux.HandleFunc("PATCH /patch", h.withJSONBody)
	h.mux.HandleFunc("DELETE /delete", h.delete)
	h.mux.HandleFunc("OPTIONS /options", h.options)
	h.mux.HandleFunc("/status/{code}", h.status)
	h.mux.HandleFunc("/anything", h.anything)
	h.mux.HandleFunc("/anything/{path...}", h.anything)
	h.mux.HandleFunc("/delay/{n}", h.delay)
	h.mux.HandleFunc("/redirect/{n}", h.redirect)
	h.mux.HandleFunc("GET /cookies", h.cookies)
	h.mux.HandleFunc("GET /cookies/set", h.setCookies)
	h.mux.HandleFunc("GET /cookies/delete", h.deleteCookies)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /endpoints", h.endpoints)

	for pattern, handler := range extra {
		h.mux.Handle(pattern, handler)
	}
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handlers) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}
