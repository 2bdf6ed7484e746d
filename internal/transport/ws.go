package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait = 10 * time.Second
	// One event-stream frame per binary message; frames are written to the
	// body in single writes, so one read is one frame.
	wsFrameBuffer = 1 << 20
)

// WebSocketTransport speaks the same event-stream protocol over a
// presigned WebSocket URL: outbound frames become binary messages,
// inbound binary messages concatenate into the response stream.
type WebSocketTransport struct {
	dialer *websocket.Dialer
	log    *slog.Logger
}

func NewWebSocket(log *slog.Logger) *WebSocketTransport {
	if log == nil {
		log = slog.Default()
	}
	return &WebSocketTransport{dialer: websocket.DefaultDialer, log: log}
}

func (t *WebSocketTransport) Mode() Mode { return ModePresignedURL }

func (t *WebSocketTransport) Send(ctx context.Context, req *Request) (PendingResponse, error) {
	conn, resp, err := t.dialer.DialContext(ctx, req.URL.String(), nil)
	if err != nil {
		if errors.Is(err, websocket.ErrBadHandshake) && resp != nil {
			// Surface the rejected upgrade as a normal response so the
			// classifier can parse the service error from it.
			return &wsPending{resp: resp}, nil
		}
		return nil, fmt.Errorf("transport: websocket dial: %w", err)
	}

	p := &wsPending{conn: conn, resp: resp, body: req.Body}
	go p.writeLoop(req.Body, t.log)
	return p, nil
}

type wsPending struct {
	conn *websocket.Conn
	resp *http.Response
	body *StreamBody

	readMu  sync.Mutex
	current io.Reader

	closeOnce sync.Once
	closeErr  error
}

func (p *wsPending) ResolveHeaders(ctx context.Context) (ResponseMetadata, error) {
	if p.conn != nil {
		// Upgrade succeeded; report it as the success status the session
		// classifier expects.
		return ResponseMetadata{StatusCode: http.StatusOK, Header: p.resp.Header}, nil
	}
	return ResponseMetadata{StatusCode: p.resp.StatusCode, Header: p.resp.Header}, nil
}

func (p *wsPending) DrainBody(ctx context.Context) ([]byte, error) {
	if p.conn != nil || p.resp == nil || p.resp.Body == nil {
		return nil, nil
	}
	defer p.resp.Body.Close()
	return io.ReadAll(p.resp.Body)
}

func (p *wsPending) Body() io.Reader { return p }

// Read concatenates inbound binary messages into one frame stream. A
// normal close from the peer ends the stream with io.EOF.
func (p *wsPending) Read(b []byte) (int, error) {
	p.readMu.Lock()
	defer p.readMu.Unlock()
	if p.conn == nil {
		return 0, io.EOF
	}
	for {
		if p.current != nil {
			n, err := p.current.Read(b)
			if err == io.EOF {
				p.current = nil
				if n > 0 {
					return n, nil
				}
				continue
			}
			return n, err
		}
		msgType, r, err := p.conn.NextReader()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, io.EOF
			}
			return 0, err
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		p.current = r
	}
}

func (p *wsPending) Close() error {
	p.closeOnce.Do(func() {
		if p.body != nil {
			p.body.Close()
		}
		if p.conn != nil {
			p.closeErr = p.conn.Close()
		} else if p.resp != nil && p.resp.Body != nil {
			p.closeErr = p.resp.Body.Close()
		}
	})
	return p.closeErr
}

// writeLoop pumps outbound frames onto the connection. On any exit it
// closes the body: a pipe nobody reads would block the producer forever,
// so once the connection is dead producer writes must fail instead.
func (p *wsPending) writeLoop(body *StreamBody, log *slog.Logger) {
	defer body.Close()
	buf := make([]byte, wsFrameBuffer)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			p.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if werr := p.conn.WriteMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
				log.Debug("websocket write failed", "error", werr)
				return
			}
		}
		if err != nil {
			if err == io.EOF {
				p.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				p.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			}
			return
		}
	}
}
