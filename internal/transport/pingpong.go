package transport

import (
	"github.com/cbeuw/linewire/internal/codec"
)

const (
	PingToken = "[ping]"
	PongToken = "[pong]"
)

// PingPong is a keep-alive layer over a FrameTransport. Incoming pings are answered with pongs without ever reaching
// the caller of ReadFrame. While pongs are owed, application frames are refused so that a pong is never queued
// behind them. The exception is a streamed body already on its way out: its frames go through and the pongs wait
// until it has ended, since a pong in the middle would be read as a chunk.
type PingPong struct {
	upstream FrameTransport
	// one pong for each ping received, carrying the ping's id
	pongsRemaining []uint32
	// a head announcing a body has been written and its end hasn't
	inBody bool
}

func NewPingPong(upstream FrameTransport) *PingPong {
	return &PingPong{upstream: upstream}
}

func isPing(f *codec.Frame) bool {
	return f.Type == codec.FrameMessage && !f.HasBody && f.Payload == PingToken
}

func (p *PingPong) ReadFrame() (*codec.Frame, error) {
	for {
		f, err := p.upstream.ReadFrame()
		if err != nil || f == nil {
			return f, err
		}
		if !isPing(f) {
			return f, nil
		}
		p.pongsRemaining = append(p.pongsRemaining, f.ID)
		// only errors matter here, an unfinished flush is picked up by the next Flush
		if _, err := p.Flush(); err != nil {
			return nil, err
		}
	}
}

func (p *PingPong) WriteFrame(f *codec.Frame) error {
	if len(p.pongsRemaining) > 0 && !p.inBody {
		return ErrPendingWrites
	}
	if err := p.upstream.WriteFrame(f); err != nil {
		return err
	}
	switch {
	case f.Type == codec.FrameMessage && f.HasBody:
		p.inBody = true
	case f.Type == codec.FrameBody && f.End:
		p.inBody = false
	}
	return nil
}

func (p *PingPong) Flush() (bool, error) {
	for len(p.pongsRemaining) > 0 && !p.inBody {
		if !p.upstream.WriteReady() {
			done, err := p.upstream.Flush()
			if err != nil {
				return false, err
			}
			if !done {
				// upstream can't take more right now, carry on from here next time
				break
			}
		}
		if err := p.upstream.WriteFrame(codec.MessageWithID(p.pongsRemaining[0], PongToken)); err != nil {
			if err == ErrPendingWrites {
				break
			}
			return false, err
		}
		p.pongsRemaining = p.pongsRemaining[1:]
	}
	done, err := p.upstream.Flush()
	// pongs held back by a body don't count as unflushed
	return done && (len(p.pongsRemaining) == 0 || p.inBody), err
}

func (p *PingPong) WriteReady() bool {
	return (len(p.pongsRemaining) == 0 || p.inBody) && p.upstream.WriteReady()
}

func (p *PingPong) PongsOwed() int { return len(p.pongsRemaining) }

func (p *PingPong) Ready() <-chan struct{} { return p.upstream.Ready() }

func (p *PingPong) Close() error { return p.upstream.Close() }
