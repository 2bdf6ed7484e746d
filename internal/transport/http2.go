package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/net/http2"
)

// HTTP2Transport drives the duplex exchange over a single HTTP/2 request:
// the request body streams signed frames up while the response body
// streams event frames down.
type HTTP2Transport struct {
	client *http.Client
	log    *slog.Logger
}

func NewHTTP2(log *slog.Logger) *HTTP2Transport {
	if log == nil {
		log = slog.Default()
	}
	return &HTTP2Transport{
		client: &http.Client{
			Transport: &http2.Transport{
				TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
			},
		},
		log: log,
	}
}

// NewHTTP2WithClient swaps the underlying client, used by tests to point
// the transport at a local server.
func NewHTTP2WithClient(client *http.Client, log *slog.Logger) *HTTP2Transport {
	t := NewHTTP2(log)
	t.client = client
	return t
}

func (t *HTTP2Transport) Mode() Mode { return ModeSignedHeader }

func (t *HTTP2Transport) Send(ctx context.Context, req *Request) (PendingResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), req.Body)
	if err != nil {
		return nil, fmt.Errorf("transport: build request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	// Unknown length keeps the request body streaming.
	httpReq.ContentLength = -1

	p := &httpPending{done: make(chan struct{})}
	go func() {
		resp, err := t.client.Do(httpReq)
		p.resp, p.err = resp, err
		if err != nil {
			t.log.Debug("handshake round trip failed", "error", err)
		}
		close(p.done)
	}()
	return p, nil
}

type httpPending struct {
	done chan struct{}
	resp *http.Response
	err  error
}

func (p *httpPending) ResolveHeaders(ctx context.Context) (ResponseMetadata, error) {
	select {
	case <-p.done:
	case <-ctx.Done():
		return ResponseMetadata{}, ctx.Err()
	}
	if p.err != nil {
		return ResponseMetadata{}, fmt.Errorf("transport: %w", p.err)
	}
	return ResponseMetadata{StatusCode: p.resp.StatusCode, Header: p.resp.Header}, nil
}

func (p *httpPending) DrainBody(ctx context.Context) ([]byte, error) {
	if p.resp == nil {
		return nil, fmt.Errorf("transport: no response to drain")
	}
	defer p.resp.Body.Close()

	type result struct {
		b   []byte
		err error
	}
	ch := make(chan result, 1)
	go func() {
		b, err := io.ReadAll(p.resp.Body)
		ch <- result{b, err}
	}()
	select {
	case r := <-ch:
		return r.b, r.err
	case <-ctx.Done():
		p.resp.Body.Close()
		return nil, ctx.Err()
	}
}

func (p *httpPending) Body() io.Reader {
	if p.resp == nil {
		return nil
	}
	return p.resp.Body
}

func (p *httpPending) Close() error {
	if p.resp == nil {
		return nil
	}
	return p.resp.Body.Close()
}
