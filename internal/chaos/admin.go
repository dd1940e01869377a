package chaos

import (
	"encoding/json"
	"net/http"
)

// StatusResponse represents the current chaos state
type StatusResponse struct {
	Enabled bool    `json:"enabled"`
	Config  *Config `json:"config,omitempty"`
	Stats   Stats   `json:"stats"`
}

// StatusHandler handles GET /_rucho/chaos to inspect the active configuration
// and injection counters. A nil engine reports chaos as disabled.
func StatusHandler(e *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var resp StatusResponse
		if e != nil {
			resp = StatusResponse{
				Enabled: true,
				Config:  e.Config(),
				Stats:   e.Stats(),
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
