package transport

import (
	"io"
	"sync"
)

// StreamBody is the outbound streaming request body. The transport reads
// from it; the audio producer writes framed messages into it. Each Write
// carries exactly one frame, and the pipe preserves write boundaries for
// transports that need per-frame messages.
type StreamBody struct {
	pr *io.PipeReader
	pw *io.PipeWriter

	mu     sync.Mutex
	closed bool
}

func NewStreamBody() *StreamBody {
	pr, pw := io.Pipe()
	return &StreamBody{pr: pr, pw: pw}
}

func (b *StreamBody) Read(p []byte) (int, error) {
	return b.pr.Read(p)
}

// Write blocks until the transport has consumed the frame. This is the
// flow-control point between the producer and the connection.
func (b *StreamBody) Write(p []byte) (int, error) {
	return b.pw.Write(p)
}

// Close ends the outbound stream: subsequent reads return io.EOF so the
// transport finishes the request stream, and subsequent writes fail.
// Idempotent.
func (b *StreamBody) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.pw.Close()
}

func (b *StreamBody) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
