package httpapi

import (
	"bytes"
	"net/http"
)

// MetricsHandler adapts a stdlib net/http.Handler (promhttp's
// exposition handler) into the Handler interface so /metrics can be
// registered on the same router as every JSON endpoint. It is the one
// deliberate exception to the envelope: whatever bytes and status the
// wrapped handler writes pass through unchanged.
type MetricsHandler struct {
	Inner http.Handler
}

func (h *MetricsHandler) SupportedMethods() []string {
	return []string{http.MethodGet}
}

func (h *MetricsHandler) Handle(req *Request) *Response {
	httpReq, err := http.NewRequest(req.Method, req.Path, bytes.NewReader(req.Body))
	if err != nil {
		return h.RespondError(http.StatusInternalServerError, "INTERNAL_ERROR", "failed to build metrics request")
	}
	httpReq.Header = req.Header

	rec := newResponseRecorder()
	h.Inner.ServeHTTP(rec, httpReq)
	return &Response{Status: rec.status, Header: rec.header, Body: rec.body.Bytes()}
}

func (h *MetricsHandler) RespondError(status int, code, message string) *Response {
	return Protocol{}.RespondError(status, code, message)
}

// responseRecorder is a minimal http.ResponseWriter, standing in for
// the net/http.Server this handler never gets to run behind.
type responseRecorder struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newResponseRecorder() *responseRecorder {
	return &responseRecorder{header: http.Header{}, status: http.StatusOK}
}

func (r *responseRecorder) Header() http.Header { return r.header }

func (r *responseRecorder) Write(b []byte) (int, error) { return r.body.Write(b) }

func (r *responseRecorder) WriteHeader(status int) { r.status = status }
