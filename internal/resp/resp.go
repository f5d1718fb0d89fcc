// Package resp implements the RESP (REdis Serialization Protocol) frame
// codec: detecting the end of a complete frame in an append-only byte
// buffer, decoding a command array into its argument vector, and encoding
// replies.
package resp

import (
	"bytes"
	"fmt"
	"strconv"
)

// FrameLen reports whether buf begins with a complete RESP frame and, if so,
// the number of leading bytes that frame occupies. It never copies or
// mutates buf; the caller is responsible for draining the returned length
// once a frame is complete.
func FrameLen(buf []byte) (n int, complete bool) {
	if len(buf) == 0 {
		return 0, false
	}

	switch buf[0] {
	case '+', '-', ':':
		idx := bytes.Index(buf, []byte("\r\n"))
		if idx == -1 {
			return 0, false
		}
		return idx + 2, true
	case '$':
		return bulkStringLen(buf)
	case '*':
		return arrayLen(buf)
	default:
		// Inline command: terminated by a bare newline.
		idx := bytes.IndexByte(buf, '\n')
		if idx == -1 {
			return 0, false
		}
		return idx + 1, true
	}
}

// bulkStringLen measures a `$<n>\r\n<n bytes>\r\n` frame starting at buf[0].
// A length of -1 denotes a null bulk string with no body.
func bulkStringLen(buf []byte) (int, bool) {
	crlf := bytes.Index(buf, []byte("\r\n"))
	if crlf == -1 {
		return 0, false
	}
	length, err := strconv.Atoi(string(buf[1:crlf]))
	if err != nil {
		return 0, false
	}
	if length < 0 {
		return crlf + 2, true
	}
	total := crlf + 2 + length + 2
	if len(buf) < total {
		return 0, false
	}
	return total, true
}

// arrayLen measures a `*<k>\r\n` header followed by k nested frames.
func arrayLen(buf []byte) (int, bool) {
	crlf := bytes.Index(buf, []byte("\r\n"))
	if crlf == -1 {
		return 0, false
	}
	count, err := strconv.Atoi(string(buf[1:crlf]))
	if err != nil {
		return 0, false
	}
	idx := crlf + 2
	if count <= 0 {
		return idx, true
	}
	for i := 0; i < count; i++ {
		if idx >= len(buf) {
			return 0, false
		}
		n, ok := FrameLen(buf[idx:])
		if !ok {
			return 0, false
		}
		idx += n
	}
	return idx, true
}

// DecodeCommand parses a complete `*k\r\n$n\r\n...` frame into its ordered
// bulk-string arguments. Only arrays of bulk strings are accepted for
// command input; any other shape is a malformed command.
func DecodeCommand(frame []byte) ([][]byte, error) {
	if len(frame) == 0 || frame[0] != '*' {
		return nil, fmt.Errorf("expected array, got %q", framePrefix(frame))
	}
	crlf := bytes.Index(frame, []byte("\r\n"))
	if crlf == -1 {
		return nil, fmt.Errorf("malformed array header")
	}
	count, err := strconv.Atoi(string(frame[1:crlf]))
	if err != nil {
		return nil, fmt.Errorf("invalid array length: %w", err)
	}
	if count < 0 {
		return nil, fmt.Errorf("invalid array length %d", count)
	}
	idx := crlf + 2
	args := make([][]byte, 0, count)
	for i := 0; i < count; i++ {
		if idx >= len(frame) || frame[idx] != '$' {
			return nil, fmt.Errorf("expected bulk string element")
		}
		bcrlf := bytes.Index(frame[idx:], []byte("\r\n"))
		if bcrlf == -1 {
			return nil, fmt.Errorf("malformed bulk string header")
		}
		length, err := strconv.Atoi(string(frame[idx+1 : idx+bcrlf]))
		if err != nil {
			return nil, fmt.Errorf("invalid bulk string length: %w", err)
		}
		start := idx + bcrlf + 2
		if length < 0 {
			args = append(args, nil)
			idx = start
			continue
		}
		end := start + length
		if end+2 > len(frame) {
			return nil, fmt.Errorf("truncated bulk string")
		}
		args = append(args, frame[start:end])
		idx = end + 2
	}
	return args, nil
}

func framePrefix(frame []byte) string {
	if len(frame) == 0 {
		return ""
	}
	return string(frame[:1])
}

// BulkHeaderLen parses a `$<n>\r\n` header at the start of buf (without
// requiring the trailing CRLF that normally closes a bulk string). It
// reports the header's length and the declared payload length n, as needed
// to locate a raw payload such as the RDB snapshot that follows a FULLRESYNC
// line. The replica client's own RDB reader parses that header itself and
// does not call this function.
func BulkHeaderLen(buf []byte) (headerLen int, payloadLen int, ok bool) {
	if len(buf) == 0 || buf[0] != '$' {
		return 0, 0, false
	}
	crlf := bytes.Index(buf, []byte("\r\n"))
	if crlf == -1 {
		return 0, 0, false
	}
	n, err := strconv.Atoi(string(buf[1:crlf]))
	if err != nil || n < 0 {
		return 0, 0, false
	}
	return crlf + 2, n, true
}

// --- Encoders ---

func EncodeSimpleString(s string) []byte {
	return []byte("+" + s + "\r\n")
}

func EncodeError(s string) []byte {
	return []byte("-" + s + "\r\n")
}

func EncodeInteger(i int64) []byte {
	return []byte(":" + strconv.FormatInt(i, 10) + "\r\n")
}

func EncodeBulkString(b []byte) []byte {
	out := make([]byte, 0, len(b)+16)
	out = append(out, '$')
	out = strconv.AppendInt(out, int64(len(b)), 10)
	out = append(out, '\r', '\n')
	out = append(out, b...)
	out = append(out, '\r', '\n')
	return out
}

func EncodeNullBulk() []byte {
	return []byte("$-1\r\n")
}

func EncodeNullArray() []byte {
	return []byte("*-1\r\n")
}

// EncodeRawArray wraps already-encoded frames in an array header. Used for
// command re-serialization and for replies whose elements are themselves
// RESP values (XRANGE/XREAD entries, EXEC results).
func EncodeRawArray(items [][]byte) []byte {
	out := make([]byte, 0, 16)
	out = append(out, '*')
	out = strconv.AppendInt(out, int64(len(items)), 10)
	out = append(out, '\r', '\n')
	for _, item := range items {
		out = append(out, item...)
	}
	return out
}

// EncodeBulkArray encodes a plain array of byte-string elements as bulk
// strings.
func EncodeBulkArray(items [][]byte) []byte {
	encoded := make([][]byte, len(items))
	for i, item := range items {
		encoded[i] = EncodeBulkString(item)
	}
	return EncodeRawArray(encoded)
}

// EncodeCommand re-serializes a decoded command's arguments as a RESP array
// of bulk strings — the canonical wire form handed to the replication
// component for propagation.
func EncodeCommand(args [][]byte) []byte {
	return EncodeBulkArray(args)
}
