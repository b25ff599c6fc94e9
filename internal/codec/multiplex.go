package codec

import (
	"bytes"
	"encoding/binary"
	"unicode/utf8"
)

const requestIDLen = 4

// MultiplexCodec prefixes every line with the request id, big-endian:
//
//	+-- request id --+------- frame payload --------+
//	|   \x00000001   | This is the frame payload \n |
//	+----------------+------------------------------+
type MultiplexCodec struct{}

func (MultiplexCodec) Decode(buf *bytes.Buffer) (*Frame, error) {
	// 4 bytes of id and at least the '\n'
	if buf.Len() < requestIDLen+1 {
		return nil, nil
	}
	// the search skips the id so that an id byte is never read as the delimiter
	line, ok := takeLine(buf, requestIDLen)
	if !ok {
		return nil, nil
	}
	payload := line[requestIDLen:]
	if !utf8.Valid(payload) {
		return nil, ErrInvalidString
	}
	return MessageWithID(binary.BigEndian.Uint32(line[:requestIDLen]), string(payload)), nil
}

func (MultiplexCodec) Encode(f *Frame, buf *bytes.Buffer) error {
	if f.Type == FrameError {
		return f.Err
	}
	var id [requestIDLen]byte
	binary.BigEndian.PutUint32(id[:], f.ID)
	buf.Write(id[:])
	buf.WriteString(f.Payload)
	buf.WriteByte('\n')
	return nil
}
