package transport

import (
	"bytes"
	"errors"
	"io"

	"github.com/cbeuw/linewire/internal/codec"
	log "github.com/sirupsen/logrus"
)

// ErrPendingWrites is returned when a frame is offered before the previous one has been flushed. The caller should
// Flush and retry.
var ErrPendingWrites = errors.New("pending writes")

const readChunkSize = 4096

// A FrameTransport is a duplex channel of frames for one connection.
type FrameTransport interface {
	// ReadFrame returns the next frame. It returns nil, nil when no complete frame is available until the next
	// Ready, and nil, io.EOF when the peer has closed.
	ReadFrame() (*codec.Frame, error)
	// WriteFrame accepts a frame for sending. It returns ErrPendingWrites if it cannot take one right now.
	WriteFrame(f *codec.Frame) error
	// Flush pushes accepted frames to the stream. It returns true once everything has been written.
	Flush() (bool, error)
	// WriteReady reports whether WriteFrame would accept a frame
	WriteReady() bool
	Ready() <-chan struct{}
	Close() error
}

// Transport frames a Stream with a Codec. It owns exactly one read buffer and one write buffer.
type Transport struct {
	stream Stream
	codec  codec.Codec

	rbuf  bytes.Buffer
	chunk []byte
	eof   bool

	// the write buffer is only refilled once it has fully drained
	wbuf bytes.Buffer
}

func NewTransport(stream Stream, c codec.Codec) *Transport {
	return &Transport{
		stream: stream,
		codec:  c,
		chunk:  make([]byte, readChunkSize),
	}
}

func (t *Transport) ReadFrame() (*codec.Frame, error) {
	for {
		f, err := t.codec.Decode(&t.rbuf)
		if err != nil {
			return nil, err
		}
		if f != nil {
			log.Tracef("decoded frame %+v", f)
			return f, nil
		}
		if t.eof {
			if t.rbuf.Len() > 0 {
				log.Debugf("peer closed with %v bytes of an unterminated line, discarding", t.rbuf.Len())
				t.rbuf.Reset()
			}
			return nil, io.EOF
		}

		n, err := t.stream.Read(t.chunk)
		if n > 0 {
			t.rbuf.Write(t.chunk[:n])
		}
		switch {
		case err == ErrWouldBlock:
			return nil, nil
		case err == io.EOF || (n == 0 && err == nil):
			// whatever was read alongside the EOF may still hold frames
			t.eof = true
		case err != nil:
			return nil, err
		}
	}
}

func (t *Transport) WriteReady() bool { return t.wbuf.Len() == 0 }

func (t *Transport) WriteFrame(f *codec.Frame) error {
	if !t.WriteReady() {
		return ErrPendingWrites
	}
	if err := t.codec.Encode(f, &t.wbuf); err != nil {
		t.wbuf.Reset()
		return err
	}
	_, err := t.Flush()
	return err
}

func (t *Transport) Flush() (bool, error) {
	for t.wbuf.Len() > 0 {
		n, err := t.stream.Write(t.wbuf.Bytes())
		t.wbuf.Next(n)
		if err == ErrWouldBlock {
			log.Trace("transport flush would block")
			return false, nil
		}
		if err != nil {
			return false, err
		}
	}
	return true, nil
}

func (t *Transport) Ready() <-chan struct{} { return t.stream.Ready() }

func (t *Transport) Close() error { return t.stream.Close() }

// Stream returns the underlying byte stream
func (t *Transport) Stream() Stream { return t.stream }
