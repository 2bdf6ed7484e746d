package sigv4

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/eleven-am/transcribe-stream/internal/auth"
	"github.com/eleven-am/transcribe-stream/internal/eventstream"
)

// EventSigner signs one chunk of an event stream. Each signature binds the
// previous one, so chunks form an ordered chain rooted at the handshake
// signature. The signer itself is stateless; the caller owns the chain
// state and must feed signatures back strictly in order.
type EventSigner struct {
	service string
	region  string

	// Now is the signing clock; overridable in tests.
	Now func() time.Time
}

func NewEventSigner(service, region string) *EventSigner {
	return &EventSigner{service: service, region: region, Now: time.Now}
}

// SignEvent computes the signature for one chunk payload given the
// previous signature in the chain. It returns the wrapper headers
// (:date and :chunk-signature) and the new signature to chain from.
// The signing key is re-derived from the snapshot on every call, so a
// refreshed credential snapshot rotates key material without disturbing
// the chain.
func (s *EventSigner) SignEvent(creds auth.Credentials, prevSignature, payload []byte) (eventstream.Headers, []byte, error) {
	if !creds.HasKeys() {
		return nil, nil, auth.ErrNoCredentials
	}
	now := s.Now().UTC()
	amzDate := now.Format(timeFormat)
	dateStamp := now.Format(dateFormat)

	dateHeader := eventstream.Headers{
		{Name: eventstream.HeaderDate, Value: eventstream.TimestampValue(now)},
	}
	encodedDateHeader, err := eventstream.EncodeHeaders(dateHeader)
	if err != nil {
		return nil, nil, fmt.Errorf("sigv4: encode date header: %w", err)
	}

	stringToSign := strings.Join([]string{
		payloadAlgorithm,
		amzDate,
		credentialScope(dateStamp, s.region, s.service),
		hex.EncodeToString(prevSignature),
		hashHex(encodedDateHeader),
		hashHex(payload),
	}, "\n")

	key := deriveSigningKey(creds.SecretAccessKey, dateStamp, s.region, s.service)
	signature := hmacSHA256(key, []byte(stringToSign))

	headers := append(dateHeader, eventstream.Header{
		Name:  eventstream.HeaderChunkSig,
		Value: eventstream.BytesValue(signature),
	})
	return headers, signature, nil
}
