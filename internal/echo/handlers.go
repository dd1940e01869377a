package echo

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// MaxDelaySeconds caps /delay/{n}.
	MaxDelaySeconds = 300
	// MaxRedirectHops caps /redirect/{n}.
	MaxRedirectHops = 20
	// MaxBodyBytes caps request bodies read by echo handlers.
	MaxBodyBytes = 10 << 20
)

// Request is the echo payload returned by the method endpoints.
type Request struct {
	Method     string            `json:"method"`
	Path       string            `json:"path,omitempty"`
	Query      string            `json:"query,omitempty"`
	Headers    map[string]string `json:"headers"`
	Body       any               `json:"body,omitempty"`
	DurationMs *float64          `json:"duration_ms,omitempty"`
}

func echoOf(r *http.Request) Request {
	headers := flattenHeaders(r.Header)
	if r.Host != "" {
		headers["Host"] = r.Host
	}
	return Request{
		Method:     r.Method,
		Path:       r.URL.Path,
		Query:      r.URL.RawQuery,
		Headers:    headers,
		DurationMs: durationMs(r),
	}
}

func (h *Handlers) root(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "Welcome to Rucho!\n")
}

func (h *Handlers) get(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, r, http.StatusOK, echoOf(r))
}

func (h *Handlers) delete(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, echoOf(r))
}

// withJSONBody echoes requests that must carry a JSON body.
func (h *Handlers) withJSONBody(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read body")
		return
	}

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	resp := echoOf(r)
	resp.Body = payload
	writeJSON(w, r, http.StatusOK, resp)
}

func (h *Handlers) anything(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read body")
		return
	}

	resp := echoOf(r)
	resp.Body = strings.ToValidUTF8(string(raw), "\uFFFD")
	writeJSON(w, r, http.StatusOK, resp)
}

func (h *Handlers) options(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", "GET, POST, PUT, PATCH, DELETE, OPTIONS, HEAD")
	w.WriteHeader(http.StatusNoContent)
}

// status answers with the requested code. Codes outside 100-599 become 400.
func (h *Handlers) status(w http.ResponseWriter, r *http.Request) {
	code, err := strconv.Atoi(r.PathValue("code"))
	if err != nil || code < 100 || code > 599 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.WriteHeader(code)
}

func (h *Handlers) delay(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "Invalid delay")
		return
	}
	if n > MaxDelaySeconds {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Delay of %d seconds exceeds maximum allowed value of %d", n, MaxDelaySeconds))
		return
	}

	timer := time.NewTimer(time.Duration(n) * time.Second)
	defer timer.Stop()
	select {
	case <-r.Context().Done():
		return
	case <-timer.C:
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintf(w, "Response delayed by %d seconds\n", n)
}

func (h *Handlers) redirect(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "Invalid redirect count")
		return
	}
	if n > MaxRedirectHops {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = fmt.Fprintf(w, "Redirect count of %d exceeds maximum allowed value of %d", n, MaxRedirectHops)
		return
	}
	if n == 0 {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "Redirect complete")
		return
	}

	location := "/get"
	if n > 1 {
		location = "/redirect/" + strconv.Itoa(n-1)
	}
	w.Header().Set("Location", location)
	w.WriteHeader(http.StatusFound)
}

func (h *Handlers) cookies(w http.ResponseWriter, r *http.Request) {
	jar := make(map[string]string)
	for _, c := range r.Cookies() {
		jar[c.Name] = c.Value
	}
	writeJSON(w, r, http.StatusOK, struct {
		Cookies    map[string]string `json:"cookies"`
		DurationMs *float64          `json:"duration_ms,omitempty"`
	}{jar, durationMs(r)})
}

func (h *Handlers) setCookies(w http.ResponseWriter, r *http.Request) {
	for name, values := range r.URL.Query() {
		c := &http.Cookie{Name: name, Value: values[0], Path: "/"}
		if c.Valid() == nil {
			http.SetCookie(w, c)
		}
	}
	w.Header().Set("Location", "/cookies")
	w.WriteHeader(http.StatusFound)
}

func (h *Handlers) deleteCookies(w http.ResponseWriter, r *http.Request) {
	for name := range r.URL.Query() {
		c := &http.Cookie{Name: name, Path: "/", MaxAge: -1}
		if c.Valid() == nil {
			http.SetCookie(w, c)
		}
	}
	w.Header().Set("Location", "/cookies")
	w.WriteHeader(http.StatusFound)
}

func (h *Handlers) healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "OK")
}

func (h *Handlers) endpoints(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, Endpoints)
}
