package transcribe

import (
	"errors"
	"fmt"
)

// ErrStreamClosed is returned by producer operations after the end-of-
// stream frame has been sent.
var ErrStreamClosed = errors.New("transcribe: stream closed")

// ValidationError reports bad session parameters. It is raised before any
// network activity.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "transcribe: invalid session request: " + e.Message
}

// CredentialError reports missing or expired credentials at signing time.
type CredentialError struct {
	Err error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("transcribe: credentials: %v", e.Err)
}

func (e *CredentialError) Unwrap() error { return e.Err }

// ProtocolError reports an exchange the protocol does not account for: an
// unexpected handshake status or a malformed frame. It carries no service
// error code because none is guaranteed to be present. Fatal; never
// retried internally.
type ProtocolError struct {
	Message    string
	StatusCode int
}

func (e *ProtocolError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transcribe: protocol error: %s (status %d)", e.Message, e.StatusCode)
	}
	return "transcribe: protocol error: " + e.Message
}

// ServiceError is a structured failure returned by the service, either as
// a handshake error body or a mid-stream exception frame.
type ServiceError struct {
	Code       string
	Message    string
	StatusCode int
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("transcribe: service error %s: %s", e.Code, e.Message)
}
