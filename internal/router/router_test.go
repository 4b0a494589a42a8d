package router

import (
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"novachat/internal/httpapi"
	"novachat/internal/metrics"
)

type mockHandler struct {
	methods []string
}

func (m *mockHandler) Handle(req *httpapi.Request) *httpapi.Response {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return &httpapi.Response{Status: http.StatusOK, Header: h, Body: []byte(`{"status":"ok"}`)}
}

func (m *mockHandler) SupportedMethods() []string {
	if m.methods != nil {
		return m.methods
	}
	return []string{http.MethodGet}
}

func TestRegisterAndListPaths(t *testing.T) {
	r := New(nil)
	r.Register("/api/test", &mockHandler{})

	paths := r.RegisteredPaths()
	if len(paths) != 1 || paths[0] != "/api/test" {
		t.Fatalf("expected [/api/test], got %v", paths)
	}
}

func TestRegisterDuplicateOverwrites(t *testing.T) {
	r := New(nil)
	first := &mockHandler{}
	second := &mockHandler{}
	r.Register("/api/test", first)
	r.Register("/api/test", second)

	if got := r.Resolve("/api/test"); got != httpapi.Handler(second) {
		t.Fatalf("expected duplicate registration to overwrite with the second handler")
	}
}

func TestRegisterNilHandlerPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic registering a nil handler")
		}
	}()
	New(nil).Register("/api/test", nil)
}

func TestResolveExactMatch(t *testing.T) {
	r := New(nil)
	h := &mockHandler{}
	r.Register("/api/test", h)

	if got := r.Resolve("/api/test"); got != httpapi.Handler(h) {
		t.Fatalf("expected exact match to resolve the registered handler")
	}
}

func TestResolveMatchesBarePath(t *testing.T) {
	// Resolve only ever receives the path component (the caller strips
	// the query string before calling); this documents that contract.
	r := New(nil)
	h := &mockHandler{}
	r.Register("/api/test", h)

	if got := r.Resolve("/api/test"); got != httpapi.Handler(h) {
		t.Fatalf("expected match on bare path")
	}
}

func TestResolvePrefixMatch(t *testing.T) {
	r := New(nil)
	h := &mockHandler{}
	r.Register("/api", h)

	if got := r.Resolve("/api/v1/users"); got != httpapi.Handler(h) {
		t.Fatalf("expected /api/v1/users to fall back to the /api prefix handler")
	}
}

func TestResolveNotFound(t *testing.T) {
	r := New(nil)
	r.Register("/api/test", &mockHandler{})

	if got := r.Resolve("/api/unknown"); got != nil {
		t.Fatalf("expected nil for an unregistered path, got %v", got)
	}
}

func TestResolveEmptyPath(t *testing.T) {
	r := New(nil)
	h := &mockHandler{}
	r.Register("/", h)

	if got := r.Resolve("/"); got != httpapi.Handler(h) {
		t.Fatalf("expected root registration to match root path")
	}
}

func TestResolveNormalizesRegisteredPath(t *testing.T) {
	r := New(nil)
	h := &mockHandler{}
	r.Register("api/test", h) // without leading slash

	if got := r.Resolve("/api/test"); got != httpapi.Handler(h) {
		t.Fatalf("expected registration without leading slash to still match")
	}
}

func TestResolveTrailingSlashOnEitherSide(t *testing.T) {
	r := New(nil)
	h := &mockHandler{}
	r.Register("/api/test/", h)

	if got := r.Resolve("/api/test"); got != httpapi.Handler(h) {
		t.Fatalf("expected trailing-slash registration to match bare path")
	}
	if got := r.Resolve("/api/test/"); got != httpapi.Handler(h) {
		t.Fatalf("expected trailing-slash registration to match trailing-slash request")
	}
}

func TestResolveRejectsUnboundedPrefix(t *testing.T) {
	// "/api/v1" must not match a request for "/api/v10/x": the character
	// after the registered prefix has to be "/" or end-of-string.
	r := New(nil)
	h := &mockHandler{}
	r.Register("/api/v1", h)

	if got := r.Resolve("/api/v10/x"); got != nil {
		t.Fatalf("expected no match across a path segment boundary, got %v", got)
	}
}

func TestGetRegisteredPathsSorted(t *testing.T) {
	r := New(nil)
	r.Register("/api/test2", &mockHandler{})
	r.Register("/api/test1", &mockHandler{})

	paths := r.RegisteredPaths()
	if len(paths) != 2 || paths[0] != "/api/test1" || paths[1] != "/api/test2" {
		t.Fatalf("expected sorted paths, got %v", paths)
	}
}

func TestRemoveHandler(t *testing.T) {
	r := New(nil)
	r.Register("/api/test", &mockHandler{})

	if r.Resolve("/api/test") == nil {
		t.Fatalf("expected handler to resolve before removal")
	}
	r.Remove("/api/test")
	if r.Resolve("/api/test") != nil {
		t.Fatalf("expected handler to be gone after removal")
	}
}

func TestRemoveNonExistentHandlerIsSafe(t *testing.T) {
	r := New(nil)
	r.Remove("/api/nonexistent") // must not panic
}

func TestDispatchReturns404Envelope(t *testing.T) {
	r := New(nil)
	resp := r.Dispatch(&httpapi.Request{Method: http.MethodGet, Path: "/api/unknown"})
	if resp.Status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Status)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected CORS header on 404 response")
	}
}

func TestDispatchReturns405ForUnsupportedMethod(t *testing.T) {
	r := New(nil)
	r.Register("/api/test", &mockHandler{methods: []string{http.MethodGet}})

	resp := r.Dispatch(&httpapi.Request{Method: http.MethodPost, Path: "/api/test"})
	if resp.Status != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.Status)
	}
	if resp.Header.Get("Allow") != "GET" {
		t.Fatalf("expected Allow header listing GET, got %q", resp.Header.Get("Allow"))
	}
}

func TestDispatchCallsHandlerOnMatch(t *testing.T) {
	r := New(nil)
	r.Register("/api/test", &mockHandler{})

	resp := r.Dispatch(&httpapi.Request{Method: http.MethodGet, Path: "/api/test"})
	if resp.Status != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
}

func TestDispatchRecordsHTTPMetrics(t *testing.T) {
	r := New(nil)
	r.Register("/api/metered", &mockHandler{})

	before := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/metered", "200"))
	r.Dispatch(&httpapi.Request{Method: http.MethodGet, Path: "/api/metered"})
	after := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/metered", "200"))
	if after != before+1 {
		t.Fatalf("expected HTTPRequestsTotal to increment by 1, went %v -> %v", before, after)
	}
}

func TestDispatchSkipsMetricsForMetricsEndpoint(t *testing.T) {
	r := New(nil)
	r.Register("/metrics", &mockHandler{})

	before := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/metrics", "200"))
	r.Dispatch(&httpapi.Request{Method: http.MethodGet, Path: "/metrics"})
	after := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/metrics", "200"))
	if after != before {
		t.Fatalf("expected /metrics dispatch not to self-count, went %v -> %v", before, after)
	}
}
