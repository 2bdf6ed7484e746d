package eventstream

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"time"
)

var (
	ErrPreludeChecksum = errors.New("eventstream: prelude checksum mismatch")
	ErrMessageChecksum = errors.New("eventstream: message checksum mismatch")
)

// Decoder reads framed messages from a byte stream. It holds at most one
// frame in memory; callers drive it one Decode at a time.
type Decoder struct {
	r io.Reader
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// Decode reads and verifies the next frame. A clean end of the underlying
// stream between frames returns io.EOF; a stream cut mid-frame returns
// io.ErrUnexpectedEOF.
func (d *Decoder) Decode() (Message, error) {
	var prelude [preludeLen]byte
	if _, err := io.ReadFull(d.r, prelude[:1]); err != nil {
		if errors.Is(err, io.EOF) {
			return Message{}, io.EOF
		}
		return Message{}, err
	}
	if _, err := io.ReadFull(d.r, prelude[1:]); err != nil {
		return Message{}, unexpectedEOF(err)
	}

	total := binary.BigEndian.Uint32(prelude[0:4])
	headersLen := binary.BigEndian.Uint32(prelude[4:8])
	preludeCRC := binary.BigEndian.Uint32(prelude[8:12])
	if crc32.ChecksumIEEE(prelude[:8]) != preludeCRC {
		return Message{}, ErrPreludeChecksum
	}
	if headersLen > MaxHeadersLen {
		return Message{}, fmt.Errorf("eventstream: header block %d bytes exceeds limit", headersLen)
	}
	if total < minMessageLen+headersLen {
		return Message{}, fmt.Errorf("eventstream: total length %d too small", total)
	}
	payloadLen := total - minMessageLen - headersLen
	if payloadLen > MaxPayloadLen {
		return Message{}, fmt.Errorf("eventstream: payload %d bytes exceeds limit", payloadLen)
	}

	rest := make([]byte, total-preludeLen)
	if _, err := io.ReadFull(d.r, rest); err != nil {
		return Message{}, unexpectedEOF(err)
	}

	crc := crc32.ChecksumIEEE(prelude[:])
	crc = crc32.Update(crc, crc32.IEEETable, rest[:len(rest)-4])
	if crc != binary.BigEndian.Uint32(rest[len(rest)-4:]) {
		return Message{}, ErrMessageChecksum
	}

	headers, err := decodeHeaders(rest[:headersLen])
	if err != nil {
		return Message{}, err
	}
	payload := rest[headersLen : headersLen+payloadLen]
	return Message{Headers: headers, Payload: payload}, nil
}

// DecodeBytes parses exactly one frame from b.
func DecodeBytes(b []byte) (Message, error) {
	return NewDecoder(bytes.NewReader(b)).Decode()
}

func decodeHeaders(b []byte) (Headers, error) {
	var hs Headers
	for len(b) > 0 {
		nameLen := int(b[0])
		b = b[1:]
		if nameLen == 0 || nameLen > len(b) {
			return nil, errors.New("eventstream: truncated header name")
		}
		name := string(b[:nameLen])
		b = b[nameLen:]

		v, rest, err := decodeValue(b)
		if err != nil {
			return nil, fmt.Errorf("eventstream: header %q: %w", name, err)
		}
		b = rest
		hs = append(hs, Header{Name: name, Value: v})
	}
	return hs, nil
}

func decodeValue(b []byte) (Value, []byte, error) {
	if len(b) == 0 {
		return Value{}, nil, errors.New("missing value type")
	}
	kind := valueType(b[0])
	b = b[1:]

	need := func(n int) ([]byte, error) {
		if len(b) < n {
			return nil, errors.New("truncated value")
		}
		return b[:n], nil
	}

	switch kind {
	case typeBoolTrue:
		return BoolValue(true), b, nil
	case typeBoolFalse:
		return BoolValue(false), b, nil
	case typeByte:
		v, err := need(1)
		if err != nil {
			return Value{}, nil, err
		}
		return Value{kind: typeByte, intVal: int64(int8(v[0]))}, b[1:], nil
	case typeInt16:
		v, err := need(2)
		if err != nil {
			return Value{}, nil, err
		}
		return Int16Value(int16(binary.BigEndian.Uint16(v))), b[2:], nil
	case typeInt32:
		v, err := need(4)
		if err != nil {
			return Value{}, nil, err
		}
		return Int32Value(int32(binary.BigEndian.Uint32(v))), b[4:], nil
	case typeInt64:
		v, err := need(8)
		if err != nil {
			return Value{}, nil, err
		}
		return Int64Value(int64(binary.BigEndian.Uint64(v))), b[8:], nil
	case typeBytes, typeString:
		lb, err := need(2)
		if err != nil {
			return Value{}, nil, err
		}
		n := int(binary.BigEndian.Uint16(lb))
		if len(b) < 2+n {
			return Value{}, nil, errors.New("truncated value")
		}
		data := b[2 : 2+n]
		rest := b[2+n:]
		if kind == typeString {
			return StringValue(string(data)), rest, nil
		}
		out := make([]byte, n)
		copy(out, data)
		return BytesValue(out), rest, nil
	case typeTimestamp:
		v, err := need(8)
		if err != nil {
			return Value{}, nil, err
		}
		ms := int64(binary.BigEndian.Uint64(v))
		return TimestampValue(time.UnixMilli(ms)), b[8:], nil
	case typeUUID:
		v, err := need(16)
		if err != nil {
			return Value{}, nil, err
		}
		var u [16]byte
		copy(u[:], v)
		return UUIDValue(u), b[16:], nil
	default:
		return Value{}, nil, fmt.Errorf("unsupported value type %d", kind)
	}
}

func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
