package audio

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/time/rate"
)

const bytesPerSample = 2

// Pacer feeds pre-recorded PCM to a consumer at realtime playback rate.
// Streaming transcription signs each chunk against a narrow timestamp
// window, so a file pushed at disk speed runs ahead of the window and
// gets rejected mid-stream. The pacer throttles to the byte rate the
// audio format implies.
type Pacer struct {
	limiter   *rate.Limiter
	chunkSize int
}

// NewPacer sizes the rate limit for 16-bit PCM at the given sample rate
// and channel count. chunkDurationMs controls how much audio each
// delivered chunk carries; 100ms is a sensible default for callers that
// pass 0.
func NewPacer(sampleRateHz, channels, chunkDurationMs int) *Pacer {
	if chunkDurationMs <= 0 {
		chunkDurationMs = 100
	}
	bytesPerSecond := sampleRateHz * channels * bytesPerSample
	chunkSize := bytesPerSecond * chunkDurationMs / 1000
	return &Pacer{
		limiter:   rate.NewLimiter(rate.Limit(bytesPerSecond), chunkSize),
		chunkSize: chunkSize,
	}
}

// ChunkSize is the number of PCM bytes per delivered chunk.
func (p *Pacer) ChunkSize() int { return p.chunkSize }

// Stream reads r to exhaustion, delivering chunkSize-byte chunks to send
// at realtime rate. The final chunk may be short. Returns nil on a fully
// delivered stream, the context error on cancellation, or the first
// error from r or send.
func (p *Pacer) Stream(ctx context.Context, r io.Reader, send func(ctx context.Context, chunk []byte) error) error {
	buf := make([]byte, p.chunkSize)
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			if werr := p.limiter.WaitN(ctx, n); werr != nil {
				return werr
			}
			if serr := send(ctx, buf[:n]); serr != nil {
				return serr
			}
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return nil
		default:
			return fmt.Errorf("audio: read source: %w", err)
		}
	}
}
