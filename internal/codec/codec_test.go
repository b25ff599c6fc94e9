package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineCodec_RoundTrip(t *testing.T) {
	payloads := []string{"Hello", "", "with spaces and ünïcode", "[ping]"}
	for _, p := range payloads {
		var buf bytes.Buffer
		err := LineCodec{}.Encode(Message(p), &buf)
		assert.NoError(t, err)

		f, err := LineCodec{}.Decode(&buf)
		assert.NoError(t, err)
		if assert.NotNil(t, f) {
			assert.Equal(t, FrameMessage, f.Type)
			assert.Equal(t, p, f.Payload)
		}
		assert.Equal(t, 0, buf.Len())
	}
}

func TestLineCodec_Decode(t *testing.T) {
	t.Run("incomplete", func(t *testing.T) {
		buf := bytes.NewBufferString("no newline yet")
		f, err := LineCodec{}.Decode(buf)
		assert.NoError(t, err)
		assert.Nil(t, f)
		assert.Equal(t, len("no newline yet"), buf.Len(), "nothing should be consumed")
	})

	t.Run("consumes one frame at a time", func(t *testing.T) {
		buf := bytes.NewBufferString("one\ntwo\nthr")
		f, _ := LineCodec{}.Decode(buf)
		assert.Equal(t, "one", f.Payload)
		f, _ = LineCodec{}.Decode(buf)
		assert.Equal(t, "two", f.Payload)
		f, _ = LineCodec{}.Decode(buf)
		assert.Nil(t, f)
		assert.Equal(t, "thr", buf.String())
	})

	t.Run("invalid utf8", func(t *testing.T) {
		buf := bytes.NewBuffer([]byte{0xff, 0xfe, '\n'})
		_, err := LineCodec{}.Decode(buf)
		assert.Equal(t, ErrInvalidString, err)
	})
}

func TestMultiplexCodec_RoundTrip(t *testing.T) {
	ids := []uint32{0, 1, 10, 0x0a0a0a0a, 0xffffffff}
	for _, id := range ids {
		var buf bytes.Buffer
		err := MultiplexCodec{}.Encode(MessageWithID(id, "payload"), &buf)
		assert.NoError(t, err)

		f, err := MultiplexCodec{}.Decode(&buf)
		assert.NoError(t, err)
		if assert.NotNil(t, f) {
			assert.Equal(t, id, f.ID)
			assert.Equal(t, "payload", f.Payload)
		}
	}
}

func TestMultiplexCodec_Decode(t *testing.T) {
	t.Run("4 bytes is not enough", func(t *testing.T) {
		buf := bytes.NewBuffer([]byte{0, 0, 0, 1})
		f, err := MultiplexCodec{}.Decode(buf)
		assert.NoError(t, err)
		assert.Nil(t, f)
	})

	t.Run("5 bytes without delimiter is not enough", func(t *testing.T) {
		buf := bytes.NewBuffer([]byte{0, 0, 0, 1, 'a'})
		f, err := MultiplexCodec{}.Decode(buf)
		assert.NoError(t, err)
		assert.Nil(t, f)
		assert.Equal(t, 5, buf.Len())
	})

	t.Run("newline byte inside the id", func(t *testing.T) {
		buf := bytes.NewBuffer([]byte{'\n', 0, '\n', 0, 'h', 'i', '\n'})
		f, err := MultiplexCodec{}.Decode(buf)
		assert.NoError(t, err)
		if assert.NotNil(t, f) {
			assert.Equal(t, uint32(0x0a000a00), f.ID)
			assert.Equal(t, "hi", f.Payload)
		}
	})

	t.Run("empty payload", func(t *testing.T) {
		buf := bytes.NewBuffer([]byte{0, 0, 0, 7, '\n'})
		f, err := MultiplexCodec{}.Decode(buf)
		assert.NoError(t, err)
		if assert.NotNil(t, f) {
			assert.Equal(t, uint32(7), f.ID)
			assert.Equal(t, "", f.Payload)
		}
	})

	t.Run("invalid utf8", func(t *testing.T) {
		buf := bytes.NewBuffer([]byte{0, 0, 0, 7, 0xff, '\n'})
		_, err := MultiplexCodec{}.Decode(buf)
		assert.Equal(t, ErrInvalidString, err)
	})
}

func TestStreamingCodec_Decode(t *testing.T) {
	c := NewStreamingCodec()
	buf := bytes.NewBufferString("head\n\nchunk1\nchunk2\n\nnext\n")

	expected := []*Frame{
		Message("head"),
		BodyHead(),
		BodyChunk("chunk1"),
		BodyChunk("chunk2"),
		EndOfBody(),
		Message("next"),
	}
	for _, exp := range expected {
		f, err := c.Decode(buf)
		assert.NoError(t, err)
		assert.Equal(t, exp, f)
	}
	f, err := c.Decode(buf)
	assert.NoError(t, err)
	assert.Nil(t, f)
}

func TestStreamingCodec_Encode(t *testing.T) {
	c := NewStreamingCodec()
	var buf bytes.Buffer
	for _, f := range []*Frame{BodyHead(), BodyChunk("a"), BodyChunk("b"), EndOfBody(), Message("x")} {
		assert.NoError(t, c.Encode(f, &buf))
	}
	assert.Equal(t, "\na\nb\n\nx\n", buf.String())

	t.Run("empty chunk", func(t *testing.T) {
		var buf bytes.Buffer
		assert.Equal(t, ErrEmptyChunk, c.Encode(BodyChunk(""), &buf))
	})

	t.Run("head and body mismatch", func(t *testing.T) {
		var buf bytes.Buffer
		assert.Panics(t, func() { _ = c.Encode(Message(""), &buf) })
		assert.Panics(t, func() { _ = c.Encode(&Frame{Type: FrameMessage, Payload: "x", HasBody: true}, &buf) })
	})
}

func TestEncodeErrorFrame(t *testing.T) {
	cause := assert.AnError
	for _, name := range Names() {
		c, err := New(name)
		assert.NoError(t, err)
		var buf bytes.Buffer
		assert.Equal(t, cause, c.Encode(ConnError(cause), &buf), name)
	}
}

func TestNew(t *testing.T) {
	_, err := New("morse")
	assert.ErrorIs(t, err, ErrUnknownCodec)

	a, _ := New("streaming")
	b, _ := New("streaming")
	assert.False(t, a == b, "streaming codecs carry state and must not be shared")
}
