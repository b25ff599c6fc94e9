package codec

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
)

var ErrInvalidString = errors.New("invalid string")
var ErrUnknownCodec = errors.New("unknown codec")

// A Codec turns the front of a byte buffer into a Frame and a Frame into bytes. It does no I/O.
type Codec interface {
	// Decode consumes one frame from the front of buf. It returns nil, nil if buf doesn't hold a complete frame yet.
	Decode(buf *bytes.Buffer) (*Frame, error)
	// Encode appends the wire representation of f to buf
	Encode(f *Frame, buf *bytes.Buffer) error
}

var codecs = map[string]func() Codec{
	"line":      func() Codec { return LineCodec{} },
	"multiplex": func() Codec { return MultiplexCodec{} },
	"streaming": func() Codec { return NewStreamingCodec() },
}

// New makes a fresh codec by its name. Codecs may carry decoding state, so every connection needs its own.
func New(name string) (Codec, error) {
	mk, ok := codecs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownCodec, name)
	}
	return mk(), nil
}

func Names() []string {
	ret := make([]string, 0, len(codecs))
	for name := range codecs {
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret
}
