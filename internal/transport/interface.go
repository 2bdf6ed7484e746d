package transport

import (
	"context"
	"io"
	"net/http"
	"net/url"
)

// Mode tells the session builder how the handshake must be authenticated
// for this transport.
type Mode int

const (
	// ModeSignedHeader carries the signature in the Authorization header.
	ModeSignedHeader Mode = iota
	// ModePresignedURL carries the signature in the request URL query.
	ModePresignedURL
)

// Request is the canonical outbound handshake: target URL, method, header
// set, and the streaming body handle. The body stays open for the life of
// the session; only the session owner may close it.
type Request struct {
	URL    *url.URL
	Method string
	Header http.Header
	Body   *StreamBody
}

type ResponseMetadata struct {
	StatusCode int
	Header     http.Header
}

// PendingResponse is an in-flight exchange. Header resolution and body
// consumption are split so the caller can close the outbound body before
// draining an error body; draining while the paired request stream is
// still open can deadlock a duplex transport.
type PendingResponse interface {
	// ResolveHeaders blocks until response headers are available.
	ResolveHeaders(ctx context.Context) (ResponseMetadata, error)
	// DrainBody reads the response body to completion. Only valid after
	// ResolveHeaders.
	DrainBody(ctx context.Context) ([]byte, error)
	// Body exposes the streaming response body for frame decoding.
	Body() io.Reader
	// Close releases the inbound side. Safe to call more than once.
	Close() error
}

// Transport opens one duplex exchange per session.
type Transport interface {
	Mode() Mode
	Send(ctx context.Context, req *Request) (PendingResponse, error)
}
