package transport

import (
	"bytes"
	"io"
	"testing"

	"github.com/cbeuw/linewire/internal/codec"
	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

// scriptedStream hands out reads one step at a time and accepts at most writeCap bytes before it would block
type scriptedStream struct {
	reads    [][]byte
	eof      bool
	written  bytes.Buffer
	writeCap int
	ready    chan struct{}
	closed   bool
}

func newScriptedStream(writeCap int, reads ...string) *scriptedStream {
	s := &scriptedStream{writeCap: writeCap, ready: make(chan struct{}, 1)}
	for _, r := range reads {
		s.reads = append(s.reads, []byte(r))
	}
	return s
}

func (s *scriptedStream) Read(p []byte) (int, error) {
	if len(s.reads) == 0 {
		if s.eof {
			return 0, io.EOF
		}
		return 0, ErrWouldBlock
	}
	n := copy(p, s.reads[0])
	s.reads[0] = s.reads[0][n:]
	if len(s.reads[0]) == 0 {
		s.reads = s.reads[1:]
	}
	return n, nil
}

func (s *scriptedStream) Write(p []byte) (int, error) {
	if s.writeCap <= 0 {
		return 0, ErrWouldBlock
	}
	n := len(p)
	if n > s.writeCap {
		n = s.writeCap
	}
	s.written.Write(p[:n])
	s.writeCap -= n
	if n < len(p) {
		return n, ErrWouldBlock
	}
	return n, nil
}

func (s *scriptedStream) Ready() <-chan struct{} { return s.ready }
func (s *scriptedStream) Close() error           { s.closed = true; return nil }

func TestTransport_ReadFrame(t *testing.T) {
	t.Run("frame split across reads", func(t *testing.T) {
		s := newScriptedStream(0, "Hel", "lo\nWor")
		tp := NewTransport(s, codec.LineCodec{})

		f, err := tp.ReadFrame()
		assert.NoError(t, err)
		if assert.NotNil(t, f) {
			assert.Equal(t, "Hello", f.Payload)
		}

		f, err = tp.ReadFrame()
		assert.NoError(t, err)
		assert.Nil(t, f, "no complete frame and stream would block")

		s.reads = append(s.reads, []byte("ld\n"))
		f, err = tp.ReadFrame()
		assert.NoError(t, err)
		if assert.NotNil(t, f) {
			assert.Equal(t, "World", f.Payload)
		}
	})

	t.Run("end of input", func(t *testing.T) {
		s := newScriptedStream(0, "last\n")
		s.eof = true
		tp := NewTransport(s, codec.LineCodec{})

		f, err := tp.ReadFrame()
		assert.NoError(t, err)
		assert.Equal(t, "last", f.Payload)

		f, err = tp.ReadFrame()
		assert.Equal(t, io.EOF, err)
		assert.Nil(t, f)
	})

	t.Run("unterminated line at end of input", func(t *testing.T) {
		hook := logtest.NewGlobal()
		defer hook.Reset()
		level := log.GetLevel()
		log.SetLevel(log.DebugLevel)
		defer log.SetLevel(level)

		s := newScriptedStream(0, "last\ntrunc")
		s.eof = true
		tp := NewTransport(s, codec.LineCodec{})

		f, err := tp.ReadFrame()
		assert.NoError(t, err)
		assert.Equal(t, "last", f.Payload)

		f, err = tp.ReadFrame()
		assert.Equal(t, io.EOF, err)
		assert.Nil(t, f)
		if assert.NotNil(t, hook.LastEntry()) {
			assert.Contains(t, hook.LastEntry().Message, "5 bytes")
		}
	})

	t.Run("decode error", func(t *testing.T) {
		s := newScriptedStream(0, "\xff\n")
		tp := NewTransport(s, codec.LineCodec{})
		_, err := tp.ReadFrame()
		assert.Equal(t, codec.ErrInvalidString, err)
	})
}

func TestTransport_WriteFrame(t *testing.T) {
	t.Run("immediate flush", func(t *testing.T) {
		s := newScriptedStream(1024)
		tp := NewTransport(s, codec.LineCodec{})
		assert.NoError(t, tp.WriteFrame(codec.Message("Hello")))
		assert.True(t, tp.WriteReady())
		assert.Equal(t, "Hello\n", s.written.String())
	})

	t.Run("pending writes", func(t *testing.T) {
		s := newScriptedStream(3)
		tp := NewTransport(s, codec.LineCodec{})
		assert.NoError(t, tp.WriteFrame(codec.Message("Hello")))
		assert.False(t, tp.WriteReady())
		assert.Equal(t, "Hel", s.written.String())

		assert.Equal(t, ErrPendingWrites, tp.WriteFrame(codec.Message("second")))

		done, err := tp.Flush()
		assert.NoError(t, err)
		assert.False(t, done)

		s.writeCap = 100
		done, err = tp.Flush()
		assert.NoError(t, err)
		assert.True(t, done)
		assert.Equal(t, "Hello\n", s.written.String(), "the frame must not be encoded twice")

		assert.NoError(t, tp.WriteFrame(codec.Message("second")))
		assert.Equal(t, "Hello\nsecond\n", s.written.String())
	})

	t.Run("encode error leaves transport writable", func(t *testing.T) {
		s := newScriptedStream(100)
		tp := NewTransport(s, codec.LineCodec{})
		assert.Equal(t, assert.AnError, tp.WriteFrame(codec.ConnError(assert.AnError)))
		assert.True(t, tp.WriteReady())
	})
}

func TestPingPong(t *testing.T) {
	t.Run("ping never surfaces", func(t *testing.T) {
		s := newScriptedStream(1024, "[ping]\nhello\n")
		pp := NewPingPong(NewTransport(s, codec.LineCodec{}))

		f, err := pp.ReadFrame()
		assert.NoError(t, err)
		if assert.NotNil(t, f) {
			assert.Equal(t, "hello", f.Payload)
		}
		assert.Equal(t, "[pong]\n", s.written.String())
		assert.Equal(t, 0, pp.PongsOwed())
	})

	t.Run("pong goes before queued application frame", func(t *testing.T) {
		s := newScriptedStream(0, "[ping]\n")
		pp := NewPingPong(NewTransport(s, codec.LineCodec{}))

		f, err := pp.ReadFrame()
		assert.NoError(t, err)
		assert.Nil(t, f)
		assert.Empty(t, s.written.String())

		assert.False(t, pp.WriteReady())
		assert.Equal(t, ErrPendingWrites, pp.WriteFrame(codec.Message("app")))

		s.writeCap = 1024
		done, err := pp.Flush()
		assert.NoError(t, err)
		assert.True(t, done)
		assert.NoError(t, pp.WriteFrame(codec.Message("app")))
		assert.Equal(t, "[pong]\napp\n", s.written.String())
	})

	t.Run("flush stops when upstream is full", func(t *testing.T) {
		s := newScriptedStream(9, "[ping]\n[ping]\n[ping]\n")
		pp := NewPingPong(NewTransport(s, codec.LineCodec{}))

		f, err := pp.ReadFrame()
		assert.NoError(t, err)
		assert.Nil(t, f)
		// one pong fits entirely, the second only partly
		assert.Equal(t, "[pong]\n[p", s.written.String())
		assert.Equal(t, 1, pp.PongsOwed())

		s.writeCap = 1024
		done, err := pp.Flush()
		assert.NoError(t, err)
		assert.True(t, done)
		assert.Equal(t, "[pong]\n[pong]\n[pong]\n", s.written.String())
	})

	t.Run("pong waits for outgoing body to end", func(t *testing.T) {
		s := newScriptedStream(1024)
		pp := NewPingPong(NewTransport(s, codec.NewStreamingCodec()))

		assert.NoError(t, pp.WriteFrame(codec.BodyHead()))
		assert.NoError(t, pp.WriteFrame(codec.BodyChunk("c1")))

		s.reads = append(s.reads, []byte("[ping]\n"))
		f, err := pp.ReadFrame()
		assert.NoError(t, err)
		assert.Nil(t, f)
		assert.Equal(t, 1, pp.PongsOwed())
		assert.True(t, pp.WriteReady())

		assert.NoError(t, pp.WriteFrame(codec.BodyChunk("c2")))
		assert.NoError(t, pp.WriteFrame(codec.EndOfBody()))
		assert.False(t, pp.WriteReady())
		assert.Equal(t, ErrPendingWrites, pp.WriteFrame(codec.Message("next")))

		done, err := pp.Flush()
		assert.NoError(t, err)
		assert.True(t, done)
		assert.NoError(t, pp.WriteFrame(codec.Message("next")))
		assert.Equal(t, "\nc1\nc2\n\n[pong]\nnext\n", s.written.String())
	})

	t.Run("pong carries the ping's id", func(t *testing.T) {
		s := newScriptedStream(1024, "\x00\x00\x00\x2a[ping]\n")
		pp := NewPingPong(NewTransport(s, codec.MultiplexCodec{}))
		_, err := pp.ReadFrame()
		assert.NoError(t, err)
		assert.Equal(t, "\x00\x00\x00\x2a[pong]\n", s.written.String())
	})
}
