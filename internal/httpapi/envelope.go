// Package httpapi implements the handler protocol and the
// Auth/User/Message endpoint handlers (C6): per-endpoint validation,
// authorization, orchestration of the store/JWT/domain layers, and
// the canonical JSON response envelope.
package httpapi

import (
	"net/http"
	"net/url"
)

// Request is the transport-neutral view of an inbound HTTP request
// that the session engine (C8) builds off the wire. Handlers never
// see a net/http.ResponseWriter or *net/http.Request directly.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// Response is the transport-neutral HTTP response a Handler produces.
// The session engine writes it back onto the wire.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Handler is the capability set every endpoint group implements:
// handle a request (never panics, always returns a Response) and
// report which methods it accepts, for 405 handling by the router.
type Handler interface {
	Handle(req *Request) *Response
	SupportedMethods() []string
}

// successEnvelope is the wire shape for {"status":"success",...}.
type successEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// errorEnvelope is the wire shape for {"status":"error",...}.
type errorEnvelope struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
