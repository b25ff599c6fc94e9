package proto

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cbeuw/linewire/internal/codec"
	"github.com/cbeuw/linewire/internal/transport"
)

const (
	HandshakeGreeting = "You ready?"
	HandshakeAccept   = "Bring it!"
	HandshakeReject   = "No! Go away!"
)

var ErrServerAtCapacity = errors.New("server rejected the connection")
var ErrInvalidHandshake = errors.New("invalid handshake")

// recvFrame waits for one whole frame
func recvFrame(ctx context.Context, t transport.FrameTransport) (*codec.Frame, error) {
	for {
		f, err := t.ReadFrame()
		if err != nil {
			return nil, err
		}
		if f != nil {
			return f, nil
		}
		select {
		case <-t.Ready():
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// sendFrame waits until f has been written out in full
func sendFrame(ctx context.Context, t transport.FrameTransport, f *codec.Frame) error {
	accepted := false
	for {
		if !accepted {
			err := t.WriteFrame(f)
			if err == nil {
				accepted = true
			} else if err != transport.ErrPendingWrites {
				return err
			}
		}
		done, err := t.Flush()
		if err != nil {
			return err
		}
		if accepted && done {
			return nil
		}
		if !done {
			select {
			case <-t.Ready():
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func handshakeLine(ctx context.Context, t transport.FrameTransport) (string, error) {
	f, err := recvFrame(ctx, t)
	if err == io.EOF {
		return "", fmt.Errorf("%w: connection closed", ErrInvalidHandshake)
	}
	if err != nil {
		return "", err
	}
	if f.Type != codec.FrameMessage || f.HasBody {
		return "", fmt.Errorf("%w: unexpected frame", ErrInvalidHandshake)
	}
	return f.Payload, nil
}

// ClientHandshake greets the server and waits to be let in. It must run before the transport is handed to a Client.
func ClientHandshake(ctx context.Context, t transport.FrameTransport) error {
	if err := sendFrame(ctx, t, codec.Message(HandshakeGreeting)); err != nil {
		return err
	}
	reply, err := handshakeLine(ctx, t)
	if err != nil {
		return err
	}
	switch reply {
	case HandshakeAccept:
		return nil
	case HandshakeReject:
		return ErrServerAtCapacity
	default:
		return fmt.Errorf("%w: server replied %q", ErrInvalidHandshake, reply)
	}
}

// ServerHandshake waits for the client's greeting and lets the client in if accept is true. A rejected client gets
// ErrServerAtCapacity back, after it has been told so.
func ServerHandshake(ctx context.Context, t transport.FrameTransport, accept bool) error {
	greeting, err := handshakeLine(ctx, t)
	if err != nil {
		return err
	}
	if greeting != HandshakeGreeting {
		return fmt.Errorf("%w: client greeted with %q", ErrInvalidHandshake, greeting)
	}
	if !accept {
		if err := sendFrame(ctx, t, codec.Message(HandshakeReject)); err != nil {
			return err
		}
		return ErrServerAtCapacity
	}
	return sendFrame(ctx, t, codec.Message(HandshakeAccept))
}
