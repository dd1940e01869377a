package echo

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rumpus/rucho/internal/timing"
)

// writeJSON encodes v with a trailing newline. ?pretty=true indents the output.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	var (
		body []byte
		err  error
	)
	if pretty, _ := strconv.ParseBool(r.URL.Query().Get("pretty")); pretty {
		body, err = json.MarshalIndent(v, "", "  ")
	} else {
		body, err = json.Marshal(v)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode response")
		return
	}
	body = append(body, '\n')

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeError sends {"error": msg}.
func writeError(w http.ResponseWriter, status int, msg string) {
	body, _ := json.Marshal(map[string]string{"error": msg})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// durationMs reads the elapsed time since the request entered the pipeline.
// It returns nil outside the pipeline so the field is omitted.
func durationMs(r *http.Request) *float64 {
	t, ok := timing.FromContext(r.Context())
	if !ok {
		return nil
	}
	ms := t.ElapsedMs()
	return &ms
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h)+1)
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
