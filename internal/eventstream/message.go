package eventstream

import (
	"fmt"
	"time"
)

// Wire-format limits. A frame that exceeds either is malformed and must
// be rejected before allocation.
const (
	MaxHeadersLen = 128 * 1024
	MaxPayloadLen = 16 * 1024 * 1024
)

// Well-known header names used to classify frames.
const (
	HeaderMessageType   = ":message-type"
	HeaderEventType     = ":event-type"
	HeaderExceptionType = ":exception-type"
	HeaderContentType   = ":content-type"
	HeaderErrorCode     = ":error-code"
	HeaderErrorMessage  = ":error-message"
	HeaderDate          = ":date"
	HeaderChunkSig      = ":chunk-signature"
)

// Message type values carried in the :message-type header.
const (
	MessageTypeEvent     = "event"
	MessageTypeException = "exception"
	MessageTypeError     = "error"
)

type valueType byte

const (
	typeBoolTrue valueType = iota
	typeBoolFalse
	typeByte
	typeInt16
	typeInt32
	typeInt64
	typeBytes
	typeString
	typeTimestamp
	typeUUID
)

// Value is one typed header value. Exactly one constructor family applies
// per wire type; decoding an unknown type fails the whole frame.
type Value struct {
	kind valueType

	boolVal  bool
	intVal   int64
	bytesVal []byte
	strVal   string
	timeVal  time.Time
	uuidVal  [16]byte
}

func BoolValue(v bool) Value {
	if v {
		return Value{kind: typeBoolTrue, boolVal: true}
	}
	return Value{kind: typeBoolFalse}
}

func Int16Value(v int16) Value  { return Value{kind: typeInt16, intVal: int64(v)} }
func Int32Value(v int32) Value  { return Value{kind: typeInt32, intVal: int64(v)} }
func Int64Value(v int64) Value  { return Value{kind: typeInt64, intVal: v} }
func BytesValue(v []byte) Value { return Value{kind: typeBytes, bytesVal: v} }
func StringValue(v string) Value {
	return Value{kind: typeString, strVal: v}
}

// TimestampValue truncates to millisecond precision, which is what the
// wire format carries.
func TimestampValue(v time.Time) Value {
	return Value{kind: typeTimestamp, timeVal: v.UTC().Truncate(time.Millisecond)}
}

func UUIDValue(v [16]byte) Value { return Value{kind: typeUUID, uuidVal: v} }

func (v Value) Bool() bool           { return v.boolVal }
func (v Value) Int() int64           { return v.intVal }
func (v Value) Bytes() []byte        { return v.bytesVal }
func (v Value) Timestamp() time.Time { return v.timeVal }

// String returns the string form for string-typed values and a debug form
// for everything else.
func (v Value) String() string {
	switch v.kind {
	case typeString:
		return v.strVal
	case typeBoolTrue:
		return "true"
	case typeBoolFalse:
		return "false"
	case typeTimestamp:
		return v.timeVal.Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("eventstream.Value(type=%d)", v.kind)
	}
}

type Header struct {
	Name  string
	Value Value
}

type Headers []Header

// Get returns the string form of the named header, or "" when absent.
func (hs Headers) Get(name string) string {
	for _, h := range hs {
		if h.Name == name {
			return h.Value.String()
		}
	}
	return ""
}

// Lookup returns the raw value of the named header.
func (hs Headers) Lookup(name string) (Value, bool) {
	for _, h := range hs {
		if h.Name == name {
			return h.Value, true
		}
	}
	return Value{}, false
}

// Message is one frame of the event-stream protocol: an ordered header
// block plus an opaque payload.
type Message struct {
	Headers Headers
	Payload []byte
}
