package transport

import (
	"bufio"
	"bytes"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"novachat/internal/httpapi"
)

// session drives one accepted connection through TLS handshake,
// then a read-dispatch-write loop that keeps the connection alive
// across requests until the client or a deadline closes it,
// mirroring Session::start / doRead / onRead / doWrite / doClose.
type session struct {
	conn       net.Conn
	dispatcher Dispatcher
	log        *slog.Logger
	cfg        Config
	clientIP   string
}

func newSession(conn net.Conn, dispatcher Dispatcher, log *slog.Logger, cfg Config) *session {
	ip := "unknown"
	if addr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		ip = addr.IP.String()
	}
	return &session{conn: conn, dispatcher: dispatcher, log: log, cfg: cfg, clientIP: ip}
}

func (s *session) run() {
	defer s.close()

	if tlsConn, ok := s.conn.(*tls.Conn); ok {
		_ = s.conn.SetDeadline(time.Now().Add(s.cfg.HandshakeTimeout))
		if err := tlsConn.Handshake(); err != nil {
			s.logError("tls handshake failed", err)
			return
		}
		s.logDebug("tls handshake completed", "client_ip", s.clientIP)
	}

	reader := bufio.NewReader(s.conn)

	for {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadWriteTimeout))

		httpReq, err := http.ReadRequest(reader)
		if err != nil {
			if err != io.EOF {
				s.logDebug("read error", "error", err, "client_ip", s.clientIP)
			}
			return
		}

		s.logRequest(httpReq)

		req, err := toHandlerRequest(httpReq, s.cfg.MaxRequestBytes)
		if err != nil {
			s.logError("failed to decode request body", err)
			s.writeAndMaybeClose(httpReq, internalErrorResponse())
			return
		}

		resp := s.safeDispatch(req)
		s.logResponse(resp)

		if !s.writeAndMaybeClose(httpReq, resp) {
			return
		}
	}
}

// writeAndMaybeClose writes resp back on the wire and reports whether
// the connection should stay open for another request.
func (s *session) writeAndMaybeClose(httpReq *http.Request, resp *httpapi.Response) bool {
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.ReadWriteTimeout))

	httpResp := toHTTPResponse(httpReq, resp)
	if err := httpResp.Write(s.conn); err != nil {
		s.logError("write error", err)
		return false
	}
	return !httpResp.Close
}

// safeDispatch guards against a panicking handler taking the whole
// session (and its goroutine) down, translating it into a 500 the way
// Session::onRead's catch block turns a thrown exception into an
// INTERNAL_ERROR JSON body.
func (s *session) safeDispatch(req *httpapi.Request) (resp *httpapi.Response) {
	defer func() {
		if r := recover(); r != nil {
			s.logError("panic handling request", fmt.Errorf("%v", r))
			resp = internalErrorResponse()
		}
	}()
	return s.dispatcher.Dispatch(req)
}

func (s *session) close() {
	_ = s.conn.SetDeadline(time.Now().Add(s.cfg.ShutdownTimeout))
	_ = s.conn.Close()
	s.logDebug("session closed", "client_ip", s.clientIP)
}

func toHandlerRequest(httpReq *http.Request, maxBodyBytes int64) (*httpapi.Request, error) {
	var body []byte
	if httpReq.Body != nil {
		var err error
		body, err = io.ReadAll(io.LimitReader(httpReq.Body, maxBodyBytes))
		if err != nil {
			return nil, err
		}
	}
	return &httpapi.Request{
		Method: httpReq.Method,
		Path:   httpReq.URL.Path,
		Query:  httpReq.URL.Query(),
		Header: httpReq.Header,
		Body:   body,
	}, nil
}

func toHTTPResponse(httpReq *http.Request, resp *httpapi.Response) *http.Response {
	header := resp.Header.Clone()
	header.Del("Content-Length")

	shouldClose := httpReq.Close || !httpReq.ProtoAtLeast(1, 1)
	if v := header.Get("Connection"); v == "close" {
		shouldClose = true
	}

	return &http.Response{
		StatusCode:    resp.Status,
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(resp.Body)),
		ContentLength: int64(len(resp.Body)),
		Close:         shouldClose,
		Request:       httpReq,
	}
}

func internalErrorResponse() *httpapi.Response {
	return httpapi.Protocol{}.RespondError(http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
}

func (s *session) logRequest(req *http.Request) {
	if s.log == nil {
		return
	}
	s.log.Debug("request", "client_ip", s.clientIP, "method", req.Method, "target", req.URL.RequestURI(), "proto", req.Proto)
}

func (s *session) logResponse(resp *httpapi.Response) {
	if s.log == nil {
		return
	}
	s.log.Debug("response", "client_ip", s.clientIP, "status", resp.Status)
}

func (s *session) logDebug(msg string, args ...any) {
	if s.log != nil {
		s.log.Debug(msg, args...)
	}
}

func (s *session) logError(msg string, err error, args ...any) {
	if s.log != nil {
		s.log.Error(msg, append([]any{"error", err}, args...)...)
	}
}
