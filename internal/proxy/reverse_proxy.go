package proxy

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"go.uber.org/zap"
)

// NewReverseProxy returns a proxy to target that forwards the original
// path and query, and reports upstream errors as 502 JSON.
func NewReverseProxy(target string, logger *zap.Logger) (*httputil.ReverseProxy, error) {
	backendURL, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parse upstream %q: %w", target, err)
	}
	if backendURL.Scheme == "" || backendURL.Host == "" {
		return nil, fmt.Errorf("upstream %q must be an absolute URL", target)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(backendURL)
			pr.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Warn("upstream request failed",
				zap.String("upstream", backendURL.String()),
				zap.String("path", r.URL.Path),
				zap.Error(err))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Upstream unavailable"})
		},
	}, nil
}

func ProxyHandler(target string, logger *zap.Logger) (http.Handler, error) {
	proxy, err := NewReverseProxy(target, logger)
	if err != nil {
		return nil, err
	}
	return proxy, nil
}
