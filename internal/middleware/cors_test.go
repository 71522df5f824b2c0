package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func serve(origins []string, method, origin string) (*httptest.ResponseRecorder, bool) {
	called := false
	h := CORS(origins)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	req := httptest.NewRequest(method, "/api/widget/chat", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w, called
}

func TestCORSWildcard(t *testing.T) {
	t.Parallel()

	w, called := serve([]string{"*"}, http.MethodPost, "https://shop.example")
	if !called {
		t.Fatal("next handler not called")
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://shop.example" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "" {
		t.Errorf("Allow-Credentials = %q for wildcard", got)
	}
	allow := w.Header().Get("Access-Control-Allow-Headers")
	for _, h := range []string{"X-Agent-Id", "X-Session-Id"} {
		if !strings.Contains(allow, h) {
			t.Errorf("Allow-Headers %q missing %s", allow, h)
		}
	}
	if got := w.Header().Get("Access-Control-Expose-Headers"); got != "X-New-Session-ID" {
		t.Errorf("Expose-Headers = %q", got)
	}
}

func TestCORSExplicitOriginGetsCredentials(t *testing.T) {
	t.Parallel()

	w, _ := serve([]string{"https://shop.example"}, http.MethodGet, "https://shop.example")
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Allow-Credentials = %q", got)
	}
}

func TestCORSUnknownOrigin(t *testing.T) {
	t.Parallel()

	w, called := serve([]string{"https://shop.example"}, http.MethodGet, "https://evil.example")
	if !called {
		t.Fatal("next handler not called")
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin = %q", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	w, called := serve([]string{"*"}, http.MethodOptions, "https://shop.example")
	if called {
		t.Error("preflight reached next handler")
	}
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}
