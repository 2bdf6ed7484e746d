package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/eleven-am/transcribe-stream/internal/auth"
	"github.com/eleven-am/transcribe-stream/internal/eventstream"
	"github.com/eleven-am/transcribe-stream/internal/sigv4"
	"github.com/eleven-am/transcribe-stream/internal/transport"
)

// Session is the duplex stream returned by a successful handshake: an
// outbound signed-audio producer and an inbound transcript consumer over
// one transport connection. The two halves are driven independently and
// concurrently by the caller.
type Session struct {
	Audio       *AudioStream
	Transcripts *TranscriptStream
	Response    *StartStreamTranscriptionResponse
}

// Close tears the whole session down: ends the outbound stream and
// releases the inbound side.
func (s *Session) Close() error {
	err := s.Audio.Close()
	if cerr := s.Transcripts.close(); err == nil {
		err = cerr
	}
	return err
}

// AudioStream is the outbound half of a session. Each Send wraps one
// audio buffer in a signed frame whose signature chains from the previous
// frame, rooted at the handshake signature.
//
// Chunks must be fed at roughly realtime playback rate. The signing
// window is a few minutes wide, so a producer that runs far ahead of real
// time accumulates timestamp skew and the service starts rejecting chunks
// as expired. That failure surfaces downstream as an authentication
// exception, not here. audio.Pacer exists for pre-recorded sources.
type AudioStream struct {
	signer *sigv4.EventSigner
	creds  auth.CredentialResolver
	body   *transport.StreamBody

	// mu enforces the single-writer chain ordering: one chunk is signed
	// and transmitted at a time, in signature order.
	mu      sync.Mutex
	prevSig []byte
	closed  bool
}

func newAudioStream(signer *sigv4.EventSigner, creds auth.CredentialResolver, body *transport.StreamBody, seed []byte) *AudioStream {
	return &AudioStream{signer: signer, creds: creds, body: body, prevSig: seed}
}

// Send signs and transmits one audio chunk. An empty buffer is valid and
// still produces a signed frame; use it to keep the stream alive through
// silence. Fails with ErrStreamClosed once Close has been called.
func (s *AudioStream) Send(ctx context.Context, audio []byte) error {
	inner, err := eventstream.Encode(eventstream.Message{
		Headers: eventstream.Headers{
			{Name: eventstream.HeaderMessageType, Value: eventstream.StringValue(eventstream.MessageTypeEvent)},
			{Name: eventstream.HeaderEventType, Value: eventstream.StringValue("AudioEvent")},
			{Name: eventstream.HeaderContentType, Value: eventstream.StringValue("application/octet-stream")},
		},
		Payload: audio,
	})
	if err != nil {
		return fmt.Errorf("transcribe: encode audio event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	return s.sendLocked(ctx, inner)
}

// Close transmits the end-of-stream frame (a signed empty payload) and
// marks the producer terminal. Idempotent; the first error wins.
func (s *AudioStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	err := s.sendLocked(context.Background(), nil)
	s.closed = true
	if cerr := s.body.Close(); err == nil {
		err = cerr
	}
	return err
}

func (s *AudioStream) sendLocked(ctx context.Context, payload []byte) error {
	creds, err := s.creds.Resolve(ctx)
	if err != nil {
		return &CredentialError{Err: err}
	}

	headers, sig, err := s.signer.SignEvent(creds, s.prevSig, payload)
	if err != nil {
		return &CredentialError{Err: err}
	}
	// The chain advances the moment a chunk is signed. A failed transmit
	// below must not leave a signature that could be reused.
	s.prevSig = sig

	frame, err := eventstream.Encode(eventstream.Message{Headers: headers, Payload: payload})
	if err != nil {
		return fmt.Errorf("transcribe: encode signed frame: %w", err)
	}
	if _, err := s.body.Write(frame); err != nil {
		if errors.Is(err, io.ErrClosedPipe) {
			return ErrStreamClosed
		}
		return fmt.Errorf("transcribe: transmit frame: %w", err)
	}
	return nil
}

// TranscriptStream is the inbound half of a session: a lazy, single-pass
// sequence of transcript events. Decoding is driven by Next; at most one
// frame is in flight at a time.
type TranscriptStream struct {
	dec     *eventstream.Decoder
	pending transport.PendingResponse

	err  error
	done bool
}

func newTranscriptStream(pending transport.PendingResponse) *TranscriptStream {
	return &TranscriptStream{dec: eventstream.NewDecoder(pending.Body()), pending: pending}
}

// Next blocks for the next transcript event. It returns io.EOF after a
// clean end of stream. A service exception or protocol fault terminates
// the sequence: the error is returned and latched, and every later call
// returns it again.
func (s *TranscriptStream) Next() (*TranscriptEvent, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.done {
		return nil, io.EOF
	}

	for {
		msg, err := s.dec.Decode()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.done = true
				return nil, io.EOF
			}
			s.err = &ProtocolError{Message: "decode frame: " + err.Error()}
			return nil, s.err
		}

		switch msg.Headers.Get(eventstream.HeaderMessageType) {
		case eventstream.MessageTypeEvent:
			if msg.Headers.Get(eventstream.HeaderEventType) != "TranscriptEvent" {
				// Unknown event members are skipped for forward
				// compatibility.
				continue
			}
			var event TranscriptEvent
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				s.err = &ProtocolError{Message: "malformed transcript event: " + err.Error()}
				return nil, s.err
			}
			return &event, nil
		case eventstream.MessageTypeException:
			var body serviceErrorBody
			json.Unmarshal(msg.Payload, &body)
			msgText := body.message()
			if msgText == "" {
				msgText = "stream exception"
			}
			s.err = &ServiceError{
				Code:    cleanErrorCode(msg.Headers.Get(eventstream.HeaderExceptionType)),
				Message: msgText,
			}
			return nil, s.err
		case eventstream.MessageTypeError:
			s.err = &ProtocolError{Message: fmt.Sprintf(
				"stream error %s: %s",
				msg.Headers.Get(eventstream.HeaderErrorCode),
				msg.Headers.Get(eventstream.HeaderErrorMessage),
			)}
			return nil, s.err
		default:
			s.err = &ProtocolError{Message: "unexpected message type " + msg.Headers.Get(eventstream.HeaderMessageType)}
			return nil, s.err
		}
	}
}

func (s *TranscriptStream) close() error {
	if s.pending == nil {
		return nil
	}
	return s.pending.Close()
}
