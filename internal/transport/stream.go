package transport

import (
	"errors"
	"io"
)

// ErrWouldBlock is returned by a Stream that cannot make progress right now. It is never surfaced as a failure:
// the operation is retried once Ready fires.
var ErrWouldBlock = errors.New("operation would block")

// A Stream is a raw duplex byte stream.
//
// Read and Write return ErrWouldBlock instead of blocking. Read returns io.EOF once the peer has closed, a
// zero-length read with no error is treated the same way. Ready is signalled whenever the stream may have become
// readable or writable.
type Stream interface {
	io.ReadWriteCloser
	Ready() <-chan struct{}
}
