package proto

import (
	"errors"
	"io"
	"sync"
	"time"
)

var ErrBodyTimeout = errors.New("deadline exceeded waiting for a body chunk")

// Body is a streamed request or response body: a finite sequence of chunks that can be consumed only once.
// Next blocks until a chunk is available. The producer calls Send for every chunk and Close at the end.
type Body struct {
	chunks []string

	closed    bool
	err       error
	rwCond    *sync.Cond
	rDeadline time.Time
}

func NewBody() *Body {
	return &Body{
		rwCond: sync.NewCond(&sync.Mutex{}),
	}
}

// BodyOf makes a complete body out of chunks
func BodyOf(chunks ...string) *Body {
	b := NewBody()
	b.chunks = append(b.chunks, chunks...)
	b.closed = true
	return b
}

func (b *Body) Send(chunk string) error {
	b.rwCond.L.Lock()
	defer b.rwCond.L.Unlock()
	if b.closed {
		return io.ErrClosedPipe
	}
	b.chunks = append(b.chunks, chunk)
	b.rwCond.Broadcast()
	return nil
}

// Close ends the body after the chunks already sent
func (b *Body) Close() error { return b.CloseWithError(nil) }

// CloseWithError ends the body. Once the chunks already sent have been consumed, Next returns err.
func (b *Body) CloseWithError(err error) error {
	b.rwCond.L.Lock()
	defer b.rwCond.L.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.err = err
	b.rwCond.Broadcast()
	return nil
}

// Next returns the next chunk, or io.EOF after the last one
func (b *Body) Next() (string, error) {
	b.rwCond.L.Lock()
	defer b.rwCond.L.Unlock()
	for {
		if len(b.chunks) > 0 {
			break
		}
		if b.closed {
			if b.err != nil {
				return "", b.err
			}
			return "", io.EOF
		}
		if !b.rDeadline.IsZero() {
			d := time.Until(b.rDeadline)
			if d <= 0 {
				return "", ErrBodyTimeout
			}
			time.AfterFunc(d, b.rwCond.Broadcast)
		}
		b.rwCond.Wait()
	}
	chunk := b.chunks[0]
	b.chunks[0] = ""
	b.chunks = b.chunks[1:]
	return chunk, nil
}

func (b *Body) SetReadDeadline(t time.Time) {
	b.rwCond.L.Lock()
	defer b.rwCond.L.Unlock()

	b.rDeadline = t
	b.rwCond.Broadcast()
}

// Collect consumes the whole body
func (b *Body) Collect() ([]string, error) {
	var ret []string
	for {
		chunk, err := b.Next()
		if err == io.EOF {
			return ret, nil
		}
		if err != nil {
			return ret, err
		}
		ret = append(ret, chunk)
	}
}
