// Package wire implements minikv's request/response framing and its
// tagged-value reply encoding: a frame is a little-endian uint32 length
// prefix followed by that many payload bytes, and a reply body is a
// sequence of self-describing typed values.
//
// The byte layout is fixed by the protocol itself, so this package
// hand-rolls it with encoding/binary rather than reaching for a general
// schema-driven serialization library, which would fight its own framing
// trying to reproduce this exact layout (see DESIGN.md).
package wire

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// DefaultMaxMsg is the largest payload (request) or body (response) this
// protocol allows.
const DefaultMaxMsg = 4096

// Reply type tags.
const (
	SerNil = 0
	SerErr = 1
	SerStr = 2
	SerInt = 3
	SerArr = 4
	// SerDbl carries sorted-set scores without lossy truncation to int64.
	SerDbl = 5
)

// Error codes carried by a SerErr reply.
const (
	Err2Big    = 0
	ErrUnknown = 1
	// ErrType is this server's addition, for commands applied to a key
	// holding the wrong value kind (e.g. ZADD against a string key).
	ErrType = 2
)

var (
	// ErrFrameTooLarge is returned by TryParseFrame when a declared
	// length exceeds maxMsg; the caller must terminate the connection.
	ErrFrameTooLarge = errors.New("wire: frame exceeds MAX_MSG")
	// ErrMalformed is returned by DecodeArgs when argc or an argument
	// length doesn't fit the payload, or trailing bytes remain.
	ErrMalformed = errors.New("wire: malformed request payload")
)

const lenPrefixSize = 4

// TryParseFrame looks for one complete length-prefixed frame at the start
// of buf. It returns the frame's payload (a sub-slice of buf, valid only
// until buf is mutated), the total number of bytes the frame occupied
// (header+payload, for the caller to compact out of its read buffer), and
// ok=true if a full frame was present. If buf starts with a declared
// length exceeding maxMsg, it returns ErrFrameTooLarge and the caller must
// terminate the connection. If fewer bytes are buffered than the frame
// needs, it returns ok=false with no error (more reads are needed).
func TryParseFrame(buf []byte, maxMsg uint32) (payload []byte, consumed int, ok bool, err error) {
	if len(buf) < lenPrefixSize {
		return nil, 0, false, nil
	}
	length := binary.LittleEndian.Uint32(buf[:lenPrefixSize])
	if length > maxMsg {
		return nil, 0, false, ErrFrameTooLarge
	}
	total := lenPrefixSize + int(length)
	if len(buf) < total {
		return nil, 0, false, nil
	}
	return buf[lenPrefixSize:total], total, true, nil
}

// DecodeArgs parses a frame payload into its argument list: a uint32 argc
// followed by argc length-prefixed byte strings. It rejects an argc
// exceeding maxMsg, any argument length that would read past payload, and
// any trailing bytes left after the declared arguments are consumed.
func DecodeArgs(payload []byte, maxMsg uint32) ([][]byte, error) {
	if len(payload) < 4 {
		if len(payload) == 0 {
			return nil, nil
		}
		return nil, ErrMalformed
	}
	argc := binary.LittleEndian.Uint32(payload[:4])
	if argc > maxMsg {
		return nil, ErrMalformed
	}
	pos := 4
	args := make([][]byte, 0, argc)
	for i := uint32(0); i < argc; i++ {
		if len(payload)-pos < 4 {
			return nil, ErrMalformed
		}
		argLen := binary.LittleEndian.Uint32(payload[pos : pos+4])
		pos += 4
		if argLen > uint32(len(payload)-pos) {
			return nil, ErrMalformed
		}
		args = append(args, payload[pos:pos+int(argLen)])
		pos += int(argLen)
	}
	if pos != len(payload) {
		return nil, ErrMalformed
	}
	return args, nil
}

// EncodeFrame wraps a reply body in its outer length-prefixed frame,
// substituting a SerErr(Err2Big) body when body exceeds maxMsg.
func EncodeFrame(body []byte, maxMsg uint32) []byte {
	if uint32(len(body)) > maxMsg {
		w := NewReplyWriter()
		w.Err(Err2Big, "response is too big")
		body = w.Bytes()
	}
	frame := make([]byte, lenPrefixSize+len(body))
	binary.LittleEndian.PutUint32(frame, uint32(len(body)))
	copy(frame[lenPrefixSize:], body)
	return frame
}

// ReplyWriter incrementally builds a reply body out of tagged values.
type ReplyWriter struct {
	buf []byte
}

// NewReplyWriter returns an empty ReplyWriter.
func NewReplyWriter() *ReplyWriter {
	return &ReplyWriter{}
}

// Bytes returns the encoded body built so far.
func (w *ReplyWriter) Bytes() []byte {
	return w.buf
}

// Nil appends a SerNil value.
func (w *ReplyWriter) Nil() {
	w.buf = append(w.buf, SerNil)
}

// Err appends a SerErr value.
func (w *ReplyWriter) Err(code int32, msg string) {
	w.buf = append(w.buf, SerErr)
	w.buf = appendUint32(w.buf, uint32(code))
	w.buf = appendUint32(w.buf, uint32(len(msg)))
	w.buf = append(w.buf, msg...)
}

// Str appends a SerStr value.
func (w *ReplyWriter) Str(s string) {
	w.buf = append(w.buf, SerStr)
	w.buf = appendUint32(w.buf, uint32(len(s)))
	w.buf = append(w.buf, s...)
}

// Int appends a SerInt value.
func (w *ReplyWriter) Int(v int64) {
	w.buf = append(w.buf, SerInt)
	w.buf = appendUint64(w.buf, uint64(v))
}

// Dbl appends a SerDbl value.
func (w *ReplyWriter) Dbl(v float64) {
	w.buf = append(w.buf, SerDbl)
	w.buf = appendUint64(w.buf, math.Float64bits(v))
}

// ArrHeader appends a SerArr tag and its element count; the caller must
// follow with exactly n further appended values.
func (w *ReplyWriter) ArrHeader(n uint32) {
	w.buf = append(w.buf, SerArr)
	w.buf = appendUint32(w.buf, n)
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}
