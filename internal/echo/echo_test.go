package echo

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumpus/rucho/internal/timing"
)

func serve(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestRoot(t *testing.T) {
	w := serve(t, New(nil), "GET", "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Welcome")

	w = serve(t, New(nil), "GET", "/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGet(t *testing.T) {
	h := New(nil)
	r := httptest.NewRequest("GET", "/get?a=1", nil)
	r.Header.Set("X-Test", "yes")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	body := decode(t, w)
	assert.Equal(t, "GET", body["method"])
	assert.Equal(t, "a=1", body["query"])
	assert.Equal(t, "yes", body["headers"].(map[string]any)["X-Test"])
	assert.NotContains(t, body, "duration_ms")
}

func TestGet_Head(t *testing.T) {
	w := serve(t, New(nil), "HEAD", "/get", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestGet_WrongMethod(t *testing.T) {
	w := serve(t, New(nil), "POST", "/get", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestGet_Pretty(t *testing.T) {
	w := serve(t, New(nil), "GET", "/get?pretty=true", "")
	assert.Contains(t, w.Body.String(), "\n  \"method\"")
}

func TestDurationFromTiming(t *testing.T) {
	r := httptest.NewRequest("GET", "/get", nil)
	r = r.WithContext(timing.WithTiming(r.Context(), timing.Start()))
	w := httptest.NewRecorder()
	New(nil).ServeHTTP(w, r)

	body := decode(t, w)
	require.Contains(t, body, "duration_ms")
	assert.GreaterOrEqual(t, body["duration_ms"].(float64), 0.0)
}

func TestJSONBodyMethods(t *testing.T) {
	for _, method := range []string{"POST", "PUT", "PATCH"} {
		path := "/" + strings.ToLower(method)

		w := serve(t, New(nil), method, path, `{"k":"v"}`)
		require.Equal(t, http.StatusOK, w.Code, method)
		body := decode(t, w)
		assert.Equal(t, method, body["method"])
		assert.Equal(t, map[string]any{"k": "v"}, body["body"])

		w = serve(t, New(nil), method, path, `{not json`)
		assert.Equal(t, http.StatusBadRequest, w.Code, method)
		assert.JSONEq(t, `{"error":"Invalid JSON payload"}`, w.Body.String())
	}
}

func TestDelete(t *testing.T) {
	w := serve(t, New(nil), "DELETE", "/delete", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DELETE", decode(t, w)["method"])
}

func TestOptions(t *testing.T) {
	w := serve(t, New(nil), "OPTIONS", "/options", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Allow"), "PATCH")
}

func TestAnything(t *testing.T) {
	w := serve(t, New(nil), "PUT", "/anything/a/b?x=y", "raw text")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "PUT", body["method"])
	assert.Equal(t, "/anything/a/b", body["path"])
	assert.Equal(t, "x=y", body["query"])
	assert.Equal(t, "raw text", body["body"])

	w = serve(t, New(nil), "DELETE", "/anything", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStatus(t *testing.T) {
	tests := []struct {
		path string
		want int
	}{
		{"/status/200", 200},
		{"/status/418", 418},
		{"/status/503", 503},
		{"/status/999", 400},
		{"/status/abc", 400},
	}
	for _, tt := range tests {
		w := serve(t, New(nil), "GET", tt.path, "")
		assert.Equal(t, tt.want, w.Code, tt.path)
	}

	w := serve(t, New(nil), "POST", "/status/201", "")
	assert.Equal(t, 201, w.Code)
}

func TestDelay(t *testing.T) {
	w := serve(t, New(nil), "GET", "/delay/0", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Response delayed by 0 seconds\n", w.Body.String())

	w = serve(t, New(nil), "GET", "/delay/301", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(t, New(nil), "GET", "/delay/x", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRedirect(t *testing.T) {
	w := serve(t, New(nil), "GET", "/redirect/3", "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/redirect/2", w.Header().Get("Location"))

	w = serve(t, New(nil), "POST", "/redirect/1", "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/get", w.Header().Get("Location"))

	w = serve(t, New(nil), "GET", "/redirect/0", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(t, New(nil), "GET", "/redirect/20", "")
	assert.Equal(t, http.StatusFound, w.Code)

	w = serve(t, New(nil), "GET", "/redirect/21", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCookies(t *testing.T) {
	r := httptest.NewRequest("GET", "/cookies", nil)
	r.Header.Set("Cookie", "foo=bar; token=abc=def")
	w := httptest.NewRecorder()
	New(nil).ServeHTTP(w, r)

	body := decode(t, w)
	assert.Equal(t, map[string]any{"foo": "bar", "token": "abc=def"}, body["cookies"])

	w = serve(t, New(nil), "GET", "/cookies", "")
	assert.Equal(t, map[string]any{}, decode(t, w)["cookies"])
}

func TestSetAndDeleteCookies(t *testing.T) {
	w := serve(t, New(nil), "GET", "/cookies/set?foo=bar&theme=dark", "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/cookies", w.Header().Get("Location"))
	set := w.Header().Values("Set-Cookie")
	assert.Len(t, set, 2)
	assert.Contains(t, set, "foo=bar; Path=/")
	assert.Contains(t, set, "theme=dark; Path=/")

	w = serve(t, New(nil), "GET", "/cookies/delete?foo", "")
	assert.Equal(t, http.StatusFound, w.Code)
	set = w.Header().Values("Set-Cookie")
	require.Len(t, set, 1)
	assert.Contains(t, set[0], "foo=")
	assert.Contains(t, set[0], "Max-Age=0")
}

func TestHealthz(t *testing.T) {
	w := serve(t, New(nil), "GET", "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestEndpoints(t *testing.T) {
	w := serve(t, New(nil), "GET", "/endpoints", "")
	var got []Endpoint
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, Endpoints, got)
}

func TestExtraRoutes(t *testing.T) {
	h := New(map[string]http.Handler{
		"GET /metrics": http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("metrics"))
		}),
	})
	w := serve(t, h, "GET", "/metrics", "")
	assert.Equal(t, "metrics", w.Body.String())
}
