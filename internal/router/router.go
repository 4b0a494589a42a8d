// Package router implements the path-to-handler table (C7): exact,
// base-path, and prefix matching over registered httpapi.Handler
// groups, ported from the reference implementation's Router class.
package router

import (
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"novachat/internal/httpapi"
	"novachat/internal/metrics"
)

// Router maps normalized URL paths to handler groups. Safe for
// concurrent use; registration and lookup are both mutex-guarded.
type Router struct {
	mu       sync.Mutex
	handlers map[string]httpapi.Handler
	log      *slog.Logger
}

// New returns an empty Router. log may be nil.
func New(log *slog.Logger) *Router {
	return &Router{handlers: make(map[string]httpapi.Handler), log: log}
}

// Register binds handler to path, normalizing the path first.
// Registering over an existing path replaces it and logs a warning,
// mirroring Router::registerHandler's overwrite behavior.
func (r *Router) Register(path string, handler httpapi.Handler) {
	if handler == nil {
		panic("router: handler cannot be nil")
	}
	normalized := normalizePath(path)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[normalized]; exists {
		r.logWarn("overwriting existing handler for path", "path", normalized)
	}
	r.handlers[normalized] = handler
	r.logInfo("registered handler for path", "path", normalized)
}

// Remove drops the handler registered for path, if any.
func (r *Router) Remove(path string) {
	normalized := normalizePath(path)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[normalized]; exists {
		delete(r.handlers, normalized)
		r.logInfo("removed handler for path", "path", normalized)
		return
	}
	r.logWarn("attempt to remove non-existent handler for path", "path", normalized)
}

// Resolve finds the handler for requestPath, trying an exact match,
// then a base-path match (first two path segments), then a full
// prefix scan over every registered path — in that order, matching
// Router::findHandler. Returns nil if nothing matches.
func (r *Router) Resolve(requestPath string) httpapi.Handler {
	normalized := normalizePath(requestPath)
	base := extractBasePath(normalized)

	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.handlers[normalized]; ok {
		r.logDebug("found exact handler match", "path", normalized)
		return h
	}

	if h, ok := r.handlers[base]; ok && isPathMatch(normalized, base) {
		r.logDebug("found base path handler", "path", normalized, "matched", base)
		return h
	}

	for registeredPath, h := range r.handlers {
		if strings.HasPrefix(normalized, registeredPath) && isPathMatch(normalized, registeredPath) {
			r.logDebug("found prefix handler", "path", normalized, "matched", registeredPath)
			return h
		}
	}

	r.logDebug("no handler found for path", "path", normalized)
	return nil
}

// RegisteredPaths returns every registered path, sorted, for
// diagnostics — mirroring Router::getRegisteredPaths.
func (r *Router) RegisteredPaths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	paths := make([]string, 0, len(r.handlers))
	for p := range r.handlers {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Dispatch resolves req.Path and either calls the matched handler,
// rejects the method with 405 if the handler doesn't support it, or
// falls back to the 404/ENDPOINT_NOT_FOUND envelope. Every dispatch
// except the /metrics endpoint itself is timed and counted, mirroring
// the teacher's WithMetrics middleware wrapping every proxied route.
func (r *Router) Dispatch(req *httpapi.Request) *httpapi.Response {
	if req.Path == "/metrics" {
		return r.dispatch(req)
	}

	start := time.Now()
	resp := r.dispatch(req)
	duration := time.Since(start).Seconds()

	metrics.HTTPRequestsTotal.WithLabelValues(req.Method, req.Path, strconv.Itoa(resp.Status)).Inc()
	metrics.HTTPRequestDurationSeconds.WithLabelValues(req.Method, req.Path).Observe(duration)
	return resp
}

func (r *Router) dispatch(req *httpapi.Request) *httpapi.Response {
	handler := r.Resolve(req.Path)
	if handler == nil {
		return notFoundResponse(req.Path)
	}
	for _, m := range handler.SupportedMethods() {
		if m == req.Method {
			return handler.Handle(req)
		}
	}
	return methodNotAllowedResponse(handler.SupportedMethods())
}

func notFoundResponse(path string) *httpapi.Response {
	return jsonErrorResponse(http.StatusNotFound, "ENDPOINT_NOT_FOUND", "Endpoint not found: "+path)
}

func methodNotAllowedResponse(allowed []string) *httpapi.Response {
	resp := jsonErrorResponse(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	resp.Header.Set("Allow", strings.Join(allowed, ", "))
	return resp
}

func jsonErrorResponse(status int, code, message string) *httpapi.Response {
	body := `{"status":"error","code":"` + code + `","message":"` + message + `"}`
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Cache-Control", "no-cache")
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	return &httpapi.Response{Status: status, Header: h, Body: []byte(body)}
}

// normalizePath ensures a leading slash and strips any trailing slash
// except on the root path.
func normalizePath(path string) string {
	if path == "" || path == "/" {
		return "/"
	}
	normalized := path
	if normalized[0] != '/' {
		normalized = "/" + normalized
	}
	if len(normalized) > 1 && normalized[len(normalized)-1] == '/' {
		normalized = normalized[:len(normalized)-1]
	}
	return normalized
}

// extractBasePath returns the first two path segments (e.g.
// "/api/v1/messages/send" -> "/api/v1"), falling back to fewer
// segments or "/" when the path is shorter.
func extractBasePath(fullPath string) string {
	if fullPath == "" || fullPath == "/" {
		return "/"
	}
	var parts []string
	for _, part := range strings.Split(fullPath, "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	switch {
	case len(parts) >= 2:
		return "/" + parts[0] + "/" + parts[1]
	case len(parts) == 1:
		return "/" + parts[0]
	default:
		return "/"
	}
}

// isPathMatch reports whether requestPath equals registeredPath or
// has it as a segment-boundary-respecting prefix (the character right
// after the prefix must be "/" or end-of-string, so "/api/v10" never
// matches a registration for "/api/v1").
func isPathMatch(requestPath, registeredPath string) bool {
	if requestPath == registeredPath {
		return true
	}
	if !strings.HasPrefix(requestPath, registeredPath) {
		return false
	}
	if len(requestPath) == len(registeredPath) {
		return true
	}
	return requestPath[len(registeredPath)] == '/'
}

func (r *Router) logInfo(msg string, args ...any) {
	if r.log != nil {
		r.log.Info(msg, args...)
	}
}

func (r *Router) logWarn(msg string, args ...any) {
	if r.log != nil {
		r.log.Warn(msg, args...)
	}
}

func (r *Router) logDebug(msg string, args ...any) {
	if r.log != nil {
		r.log.Debug(msg, args...)
	}
}
