package codec

import (
	"bytes"
	"unicode/utf8"
)

// LineCodec is the plain line protocol. A frame is UTF-8 text terminated by a '\n'
type LineCodec struct{}

// takeLine removes the first line from buf, starting the search for '\n' at offset from.
func takeLine(buf *bytes.Buffer, from int) (line []byte, ok bool) {
	b := buf.Bytes()
	if len(b) <= from {
		return nil, false
	}
	i := bytes.IndexByte(b[from:], '\n')
	if i < 0 {
		return nil, false
	}
	line = make([]byte, from+i)
	copy(line, b[:from+i])
	buf.Next(from + i + 1)
	return line, true
}

func (LineCodec) Decode(buf *bytes.Buffer) (*Frame, error) {
	line, ok := takeLine(buf, 0)
	if !ok {
		return nil, nil
	}
	if !utf8.Valid(line) {
		return nil, ErrInvalidString
	}
	return Message(string(line)), nil
}

func (LineCodec) Encode(f *Frame, buf *bytes.Buffer) error {
	if f.Type == FrameError {
		return f.Err
	}
	buf.WriteString(f.Payload)
	buf.WriteByte('\n')
	return nil
}
