package proto

import (
	"context"
	"io"

	"github.com/cbeuw/linewire/internal/codec"
	"github.com/cbeuw/linewire/internal/transport"
	log "github.com/sirupsen/logrus"
)

// serverCall is a request being processed by the Service
type serverCall struct {
	id   uint32
	resp Line
	err  error
	done bool
}

type serverConn struct {
	connection
	svc Service

	// calls in request order, only used by Pipeline
	inflight []*serverCall
	results  chan *serverCall
	running  int

	eof     bool
	failure error
}

// ServeConn answers requests arriving on t with svc until the peer closes, ctx is done, or the connection fails.
// It returns nil if the peer closed the connection cleanly. t is closed when ServeConn returns.
//
// Every request is handed to svc in its own goroutine. With the Pipeline discipline responses are written in the
// order the requests came in, with Multiplex they are written as soon as they are ready.
//
// There is no way of sending an error over the wire, so an error returned by svc fails the whole connection:
// responses that are ready to go are still written, then the connection is closed and the error returned.
func ServeConn(ctx context.Context, t transport.FrameTransport, svc Service, p Protocol) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := &serverConn{
		connection: makeConnection(t, p),
		svc:        svc,
		results:    make(chan *serverCall),
	}
	err := s.run(ctx)
	s.teardown()
	return err
}

func (s *serverConn) reading() bool { return !s.eof && s.failure == nil }

func (s *serverConn) run(ctx context.Context) error {
	for {
		if s.reading() {
			if err := s.readFrames(ctx); err == io.EOF {
				s.eof = true
				// the rest of this body is never coming
				if s.recvBody != nil {
					_ = s.recvBody.CloseWithError(ErrConnectionClosed)
					s.recvBody = nil
				}
			} else if err != nil {
				return err
			}
		}
		if err := s.flush(); err != nil {
			return err
		}

		if s.failure != nil && s.idle() {
			return s.failure
		}
		if s.eof && s.running == 0 && s.idle() {
			log.Trace("peer closed and all responses written")
			return nil
		}

		select {
		case <-s.t.Ready():
		case call := <-s.results:
			s.running--
			s.complete(call)
		case bc := <-s.pumpCh():
			s.acceptChunk(bc)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *serverConn) readFrames(ctx context.Context) error {
	for {
		f, err := s.t.ReadFrame()
		if err != nil {
			return err
		}
		if f == nil {
			return nil
		}
		if f.Type == codec.FrameBody {
			if err := s.recvBodyFrame(f); err != nil {
				return err
			}
			continue
		}
		s.dispatch(ctx, f.ID, s.lineOf(f))
	}
}

func (s *serverConn) dispatch(ctx context.Context, id uint32, req Line) {
	call := &serverCall{id: id}
	if s.proto.Discipline == Pipeline {
		s.inflight = append(s.inflight, call)
	}
	s.running++
	go func() {
		call.resp, call.err = s.svc.Call(ctx, req)
		select {
		case s.results <- call:
		case <-s.die:
		}
	}()
}

func (s *serverConn) complete(call *serverCall) {
	call.done = true
	if s.proto.Discipline == Multiplex {
		s.respond(call)
		return
	}
	for len(s.inflight) > 0 && s.inflight[0].done && s.failure == nil {
		next := s.inflight[0]
		s.inflight[0] = nil
		s.inflight = s.inflight[1:]
		s.respond(next)
	}
}

func (s *serverConn) respond(call *serverCall) {
	if s.failure != nil {
		return
	}
	if call.err != nil {
		log.WithField("protocol", s.proto.Name).Debugf("service failed, closing connection: %v", call.err)
		s.failure = call.err
		return
	}
	o, err := s.proto.outgoingOf(call.id, call.resp)
	if err != nil {
		s.failure = err
		return
	}
	s.queue = append(s.queue, o)
}
