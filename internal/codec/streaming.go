package codec

import (
	"bytes"
	"errors"
	"unicode/utf8"
)

var ErrEmptyChunk = errors.New("empty body chunk cannot be encoded")

// StreamingCodec is the line protocol with streaming bodies. An empty line seen while decoding heads announces a
// body; every following line is a body chunk until the next empty line, which ends the body.
type StreamingCodec struct {
	decodingHead bool
}

func NewStreamingCodec() *StreamingCodec {
	return &StreamingCodec{decodingHead: true}
}

func (c *StreamingCodec) Decode(buf *bytes.Buffer) (*Frame, error) {
	line, ok := takeLine(buf, 0)
	if !ok {
		return nil, nil
	}
	if !utf8.Valid(line) {
		return nil, ErrInvalidString
	}

	if len(line) == 0 {
		wasHead := c.decodingHead
		c.decodingHead = !c.decodingHead
		if wasHead {
			return BodyHead(), nil
		}
		return EndOfBody(), nil
	}

	if c.decodingHead {
		return Message(string(line)), nil
	}
	return BodyChunk(string(line)), nil
}

func (c *StreamingCodec) Encode(f *Frame, buf *bytes.Buffer) error {
	switch f.Type {
	case FrameMessage:
		if (f.Payload == "") != f.HasBody {
			panic("codec: a streaming head must be empty if and only if it announces a body")
		}
		buf.WriteString(f.Payload)
	case FrameBody:
		if !f.End {
			if f.Payload == "" {
				return ErrEmptyChunk
			}
			buf.WriteString(f.Payload)
		}
	case FrameError:
		return f.Err
	}
	buf.WriteByte('\n')
	return nil
}
