package proto

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cbeuw/linewire/internal/codec"
	"github.com/cbeuw/linewire/internal/transport"
	log "github.com/sirupsen/logrus"
)

var ErrClientClosed = errors.New("client closed")
var ErrUnexpectedPong = errors.New("peer did not answer the ping with a pong")

type ClientOptions struct {
	// KeepAlive is how often a ping is sent while no call is outstanding. Zero disables it.
	KeepAlive time.Duration
}

// Client sends requests over one connection and hands each caller its own response. A single goroutine owns the
// transport; Call may be used concurrently.
type Client struct {
	connection
	corr correlator
	opts ClientOptions

	submit chan *pendingCall

	closing   chan struct{}
	closeOnce sync.Once

	// only read after die has been closed
	err error
}

func NewClient(t transport.FrameTransport, p Protocol, opts ClientOptions) *Client {
	c := &Client{
		connection: makeConnection(t, p),
		corr:       newCorrelator(p.Discipline),
		opts:       opts,
		submit:     make(chan *pendingCall),
		closing:    make(chan struct{}),
	}
	go c.loop()
	return c
}

// Call sends req and waits for its response. If ctx is done first, ctx.Err() is returned; the request may still
// reach the peer, and its response is read and discarded.
func (c *Client) Call(ctx context.Context, req Line) (Line, error) {
	call := newPendingCall(req, false)
	return c.do(ctx, call)
}

// Ping sends a ping and waits for the pong
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, newPendingCall(Once(transport.PingToken), true))
	if err != nil {
		return err
	}
	if resp.IsStream() || resp.Text != transport.PongToken {
		return fmt.Errorf("%w: got %v", ErrUnexpectedPong, resp)
	}
	return nil
}

func (c *Client) do(ctx context.Context, call *pendingCall) (Line, error) {
	select {
	case c.submit <- call:
	case <-c.die:
		return Line{}, c.err
	case <-ctx.Done():
		return Line{}, ctx.Err()
	}
	select {
	case r := <-call.done:
		return r.resp, r.err
	case <-ctx.Done():
		return Line{}, ctx.Err()
	}
}

// Close fails every outstanding call with ErrClientClosed and closes the connection
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.closing) })
	<-c.die
	return nil
}

// Done is closed once the connection is gone
func (c *Client) Done() <-chan struct{} { return c.die }

// Err is why the connection went away. It blocks until it has.
func (c *Client) Err() error {
	<-c.die
	return c.err
}

func (c *Client) loop() {
	err := c.run()
	if err == io.EOF {
		err = ErrConnectionClosed
	} else if err != ErrClientClosed {
		log.WithField("protocol", c.proto.Name).Debugf("client connection failed: %v", err)
	}
	c.err = err
	for _, call := range c.corr.drain() {
		call.resolve(Line{}, err)
	}
	c.teardown()
}

func (c *Client) run() error {
	var tick <-chan time.Time
	if c.opts.KeepAlive > 0 {
		ticker := time.NewTicker(c.opts.KeepAlive)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		if err := c.readFrames(); err != nil {
			return err
		}
		if err := c.flush(); err != nil {
			return err
		}

		select {
		case <-c.t.Ready():
		case call := <-c.submit:
			c.enqueue(call)
		case bc := <-c.pumpCh():
			c.acceptChunk(bc)
		case <-tick:
			// a pong must not land in the middle of a body being received
			if c.corr.outstanding() == 0 && c.recvBody == nil {
				log.Trace("sending keep-alive ping")
				c.enqueue(newPendingCall(Once(transport.PingToken), true))
			}
		case <-c.closing:
			return ErrClientClosed
		}
	}
}

func (c *Client) enqueue(call *pendingCall) {
	o, err := c.proto.outgoingOf(0, call.req)
	if err != nil {
		call.resolve(Line{}, err)
		return
	}
	c.corr.register(call)
	o.head.ID = call.id
	c.queue = append(c.queue, o)
}

func (c *Client) readFrames() error {
	for {
		f, err := c.t.ReadFrame()
		if err != nil {
			return err
		}
		if f == nil {
			return nil
		}
		if f.Type == codec.FrameBody {
			if err := c.recvBodyFrame(f); err != nil {
				return err
			}
			continue
		}
		call, err := c.corr.match(f)
		if err != nil {
			return err
		}
		call.resolve(c.lineOf(f), nil)
	}
}
