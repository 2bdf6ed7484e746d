package eventstream

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// Wire layout:
//
//	prelude: total length (u32) | headers length (u32) | prelude CRC32 (u32)
//	headers: repeated (name length u8 | name | value type u8 | value)
//	payload
//	message CRC32 (u32) over everything preceding it
//
// All integers are big-endian.
const (
	preludeLen    = 12
	minMessageLen = preludeLen + 4
)

// Encode serializes one message into its framed wire form.
func Encode(msg Message) ([]byte, error) {
	headers, err := encodeHeaders(msg.Headers)
	if err != nil {
		return nil, err
	}
	if len(headers) > MaxHeadersLen {
		return nil, fmt.Errorf("eventstream: header block %d bytes exceeds limit", len(headers))
	}
	if len(msg.Payload) > MaxPayloadLen {
		return nil, fmt.Errorf("eventstream: payload %d bytes exceeds limit", len(msg.Payload))
	}

	total := minMessageLen + len(headers) + len(msg.Payload)
	out := make([]byte, 0, total)

	var prelude [preludeLen]byte
	binary.BigEndian.PutUint32(prelude[0:4], uint32(total))
	binary.BigEndian.PutUint32(prelude[4:8], uint32(len(headers)))
	binary.BigEndian.PutUint32(prelude[8:12], crc32.ChecksumIEEE(prelude[:8]))
	out = append(out, prelude[:]...)
	out = append(out, headers...)
	out = append(out, msg.Payload...)

	var trailer [4]byte
	binary.BigEndian.PutUint32(trailer[:], crc32.ChecksumIEEE(out))
	out = append(out, trailer[:]...)
	return out, nil
}

// EncodeHeaders serializes a header block alone, without framing. The
// chunk signer hashes this form of the :date header.
func EncodeHeaders(hs Headers) ([]byte, error) {
	return encodeHeaders(hs)
}

func encodeHeaders(hs Headers) ([]byte, error) {
	var buf bytes.Buffer
	for _, h := range hs {
		if len(h.Name) == 0 || len(h.Name) > 255 {
			return nil, fmt.Errorf("eventstream: header name %q length out of range", h.Name)
		}
		buf.WriteByte(byte(len(h.Name)))
		buf.WriteString(h.Name)
		if err := encodeValue(&buf, h.Value); err != nil {
			return nil, fmt.Errorf("eventstream: header %q: %w", h.Name, err)
		}
	}
	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v Value) error {
	buf.WriteByte(byte(v.kind))
	switch v.kind {
	case typeBoolTrue, typeBoolFalse:
		// Type byte carries the value.
	case typeByte:
		buf.WriteByte(byte(v.intVal))
	case typeInt16:
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(v.intVal))
		buf.Write(b[:])
	case typeInt32:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(v.intVal))
		buf.Write(b[:])
	case typeInt64:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(v.intVal))
		buf.Write(b[:])
	case typeBytes:
		if len(v.bytesVal) > 0xFFFF {
			return fmt.Errorf("byte value %d bytes exceeds limit", len(v.bytesVal))
		}
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(len(v.bytesVal)))
		buf.Write(b[:])
		buf.Write(v.bytesVal)
	case typeString:
		if len(v.strVal) > 0xFFFF {
			return fmt.Errorf("string value %d bytes exceeds limit", len(v.strVal))
		}
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(len(v.strVal)))
		buf.Write(b[:])
		buf.WriteString(v.strVal)
	case typeTimestamp:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(v.timeVal.UnixMilli()))
		buf.Write(b[:])
	case typeUUID:
		buf.Write(v.uuidVal[:])
	default:
		return fmt.Errorf("unsupported value type %d", v.kind)
	}
	return nil
}
