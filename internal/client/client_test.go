package client

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentify(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    Client
	}{
		{"explicit header", map[string]string{Header: "tenant-a"}, "10.0.0.1:5555", Client{"tenant-a", SourceHeader}},
		{"header wins over forwarded", map[string]string{Header: "b", "X-Forwarded-For": "1.2.3.4"}, "10.0.0.1:5555", Client{"b", SourceHeader}},
		{"forwarded first hop", map[string]string{"X-Forwarded-For": " 1.2.3.4 , 5.6.7.8"}, "10.0.0.1:5555", Client{"1.2.3.4", SourceForwarded}},
		{"remote host", nil, "10.0.0.1:5555", Client{"10.0.0.1", SourceRemote}},
		{"remote without port", nil, "unix", Client{"unix", SourceRemote}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, Identify(r))
		})
	}
}

func TestMiddleware(t *testing.T) {
	var got Client
	var ok bool
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = FromContext(r.Context())
	}))

	r := httptest.NewRequest("GET", "/get", nil)
	r.Header.Set(Header, "ci")
	h.ServeHTTP(httptest.NewRecorder(), r)

	require.True(t, ok)
	assert.Equal(t, "ci", got.ID)
	assert.Equal(t, SourceHeader, got.Source)
}

func TestIDFromContext_Missing(t *testing.T) {
	assert.Empty(t, IDFromContext(httptest.NewRequest("GET", "/", nil).Context()))
}
