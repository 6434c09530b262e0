package wire

import (
	"encoding/binary"
	"math"
)

// Value is a decoded reply, used by tests (and any future client-side
// tooling) to verify encode/decode round-trip without hand-parsing bytes.
type Value struct {
	Tag     byte
	Int     int64
	Dbl     float64
	Str     string
	ErrCode int32
	ErrMsg  string
	Arr     []Value
}

// DecodeValue parses one tagged value from the front of buf, returning the
// value and the number of bytes consumed.
func DecodeValue(buf []byte) (Value, int, error) {
	if len(buf) < 1 {
		return Value{}, 0, ErrMalformed
	}
	tag := buf[0]
	pos := 1
	switch tag {
	case SerNil:
		return Value{Tag: tag}, pos, nil
	case SerErr:
		if len(buf)-pos < 8 {
			return Value{}, 0, ErrMalformed
		}
		code := int32(binary.LittleEndian.Uint32(buf[pos:]))
		pos += 4
		msgLen := binary.LittleEndian.Uint32(buf[pos:])
		pos += 4
		if uint32(len(buf)-pos) < msgLen {
			return Value{}, 0, ErrMalformed
		}
		msg := string(buf[pos : pos+int(msgLen)])
		pos += int(msgLen)
		return Value{Tag: tag, ErrCode: code, ErrMsg: msg}, pos, nil
	case SerStr:
		if len(buf)-pos < 4 {
			return Value{}, 0, ErrMalformed
		}
		strLen := binary.LittleEndian.Uint32(buf[pos:])
		pos += 4
		if uint32(len(buf)-pos) < strLen {
			return Value{}, 0, ErrMalformed
		}
		s := string(buf[pos : pos+int(strLen)])
		pos += int(strLen)
		return Value{Tag: tag, Str: s}, pos, nil
	case SerInt:
		if len(buf)-pos < 8 {
			return Value{}, 0, ErrMalformed
		}
		v := int64(binary.LittleEndian.Uint64(buf[pos:]))
		pos += 8
		return Value{Tag: tag, Int: v}, pos, nil
	case SerDbl:
		if len(buf)-pos < 8 {
			return Value{}, 0, ErrMalformed
		}
		v := math.Float64frombits(binary.LittleEndian.Uint64(buf[pos:]))
		pos += 8
		return Value{Tag: tag, Dbl: v}, pos, nil
	case SerArr:
		if len(buf)-pos < 4 {
			return Value{}, 0, ErrMalformed
		}
		n := binary.LittleEndian.Uint32(buf[pos:])
		pos += 4
		arr := make([]Value, 0, n)
		for i := uint32(0); i < n; i++ {
			v, used, err := DecodeValue(buf[pos:])
			if err != nil {
				return Value{}, 0, err
			}
			arr = append(arr, v)
			pos += used
		}
		return Value{Tag: tag, Arr: arr}, pos, nil
	default:
		return Value{}, 0, ErrMalformed
	}
}

// EncodeArgs is the wire encoding of a request payload (argc + args),
// usable by tests and any client tooling.
func EncodeArgs(args [][]byte) []byte {
	buf := appendUint32(nil, uint32(len(args)))
	for _, a := range args {
		buf = appendUint32(buf, uint32(len(a)))
		buf = append(buf, a...)
	}
	return buf
}

// EncodeRequestFrame wraps an argument list in its outer length-prefixed
// frame.
func EncodeRequestFrame(args [][]byte) []byte {
	payload := EncodeArgs(args)
	frame := make([]byte, lenPrefixSize+len(payload))
	binary.LittleEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[lenPrefixSize:], payload)
	return frame
}
