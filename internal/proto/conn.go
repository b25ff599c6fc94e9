package proto

import (
	"errors"
	"fmt"
	"io"

	"github.com/cbeuw/linewire/internal/codec"
	"github.com/cbeuw/linewire/internal/transport"
)

var ErrConnectionClosed = errors.New("connection closed")
var ErrUnexpectedBody = errors.New("body chunk received outside of a streamed body")

type bodyChunk struct {
	chunk string
	err   error
}

// bodyPump pulls chunks out of an outgoing body so that the connection goroutine never blocks on it
type bodyPump struct {
	body   *Body
	chunks chan bodyChunk
}

// connection is the state shared by both ends of a connection. It is owned by a single goroutine.
type connection struct {
	t     transport.FrameTransport
	proto Protocol

	queue []*outgoing
	// frame taken off the queue that the transport hasn't accepted yet
	pending *codec.Frame
	// body currently being written. Nothing else is dequeued until it has ended
	pump *bodyPump
	// body currently being received
	recvBody *Body

	// closed when the connection goroutine exits
	die chan struct{}
}

func makeConnection(t transport.FrameTransport, p Protocol) connection {
	return connection{
		t:     t,
		proto: p,
		die:   make(chan struct{}),
	}
}

func (c *connection) startPump(b *Body) {
	p := &bodyPump{body: b, chunks: make(chan bodyChunk)}
	go func() {
		for {
			chunk, err := b.Next()
			select {
			case p.chunks <- bodyChunk{chunk, err}:
			case <-c.die:
				return
			}
			if err != nil {
				return
			}
		}
	}()
	c.pump = p
}

// pumpCh is nil unless the connection is ready for the next chunk of the outgoing body
func (c *connection) pumpCh() <-chan bodyChunk {
	if c.pump != nil && c.pending == nil {
		return c.pump.chunks
	}
	return nil
}

func (c *connection) acceptChunk(bc bodyChunk) {
	switch {
	case bc.err == io.EOF:
		c.pending = codec.EndOfBody()
		c.pump = nil
	case bc.err != nil:
		// the line protocol has no way to abort a body, so the connection goes down
		c.pending = codec.ConnError(fmt.Errorf("sending body: %w", bc.err))
		c.pump = nil
	default:
		c.pending = codec.BodyChunk(bc.chunk)
	}
}

// flush writes as many queued frames as the transport takes
func (c *connection) flush() error {
	for {
		if c.pending == nil {
			if c.pump != nil || len(c.queue) == 0 {
				break
			}
			o := c.queue[0]
			c.queue[0] = nil
			c.queue = c.queue[1:]
			c.pending = o.head
			if o.body != nil {
				c.startPump(o.body)
			}
		}

		err := c.t.WriteFrame(c.pending)
		if err == transport.ErrPendingWrites {
			done, err := c.t.Flush()
			if err != nil {
				return err
			}
			if !done {
				return nil
			}
			continue
		}
		if err != nil {
			return err
		}
		c.pending = nil
	}
	_, err := c.t.Flush()
	return err
}

// idle is true when everything queued has reached the stream
func (c *connection) idle() bool {
	return c.pending == nil && c.pump == nil && len(c.queue) == 0 && c.t.WriteReady()
}

// lineOf turns an inbound message into a Line. A message announcing a body becomes a Stream fed by the body
// frames that follow.
func (c *connection) lineOf(f *codec.Frame) Line {
	if f.HasBody {
		b := NewBody()
		c.recvBody = b
		return Stream(b)
	}
	return Once(f.Payload)
}

func (c *connection) recvBodyFrame(f *codec.Frame) error {
	if c.recvBody == nil {
		return ErrUnexpectedBody
	}
	if f.End {
		_ = c.recvBody.Close()
		c.recvBody = nil
		return nil
	}
	// the body is unbounded so this never blocks the connection
	_ = c.recvBody.Send(f.Payload)
	return nil
}

func (c *connection) teardown() {
	if c.recvBody != nil {
		_ = c.recvBody.CloseWithError(ErrConnectionClosed)
		c.recvBody = nil
	}
	if c.pump != nil {
		_ = c.pump.body.CloseWithError(ErrConnectionClosed)
		c.pump = nil
	}
	close(c.die)
	_ = c.t.Close()
}
