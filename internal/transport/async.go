package transport

import (
	"bytes"
	"io"
	"net"
	"sync"

	log "github.com/sirupsen/logrus"
)

const (
	connReceiveBufferSize = 16384
	recvBufferSizeLimit   = 1 << 20
)

// AsyncStream makes a blocking net.Conn look like a Stream. A goroutine constantly reads from the conn into a
// bounded buffer and signals Ready whenever something arrives, so Read never blocks. Writes go straight to the conn
// and therefore never return ErrWouldBlock.
type AsyncStream struct {
	conn  net.Conn
	valve *Valve

	rwCond *sync.Cond
	buf    bytes.Buffer
	// terminal read error, io.EOF when the peer closed
	rErr   error
	closed bool

	ready chan struct{}
}

func NewAsyncStream(conn net.Conn, valve *Valve) *AsyncStream {
	if valve == nil {
		valve = MakeUnlimitedValve()
	}
	s := &AsyncStream{
		conn:   conn,
		valve:  valve,
		rwCond: sync.NewCond(&sync.Mutex{}),
		ready:  make(chan struct{}, 1),
	}
	go s.deplex()
	return s
}

func (s *AsyncStream) notify() {
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// deplex constantly reads from the conn until it fails
func (s *AsyncStream) deplex() {
	buf := make([]byte, connReceiveBufferSize)
	for {
		n, err := s.conn.Read(buf)
		s.valve.rxWait(n)
		s.valve.AddRx(int64(n))

		s.rwCond.L.Lock()
		for !s.closed && s.buf.Len() > recvBufferSizeLimit {
			s.rwCond.Wait()
		}
		if n > 0 {
			s.buf.Write(buf[:n])
		}
		if err != nil {
			s.rErr = err
		}
		s.rwCond.L.Unlock()
		s.notify()

		if err != nil {
			if err != io.EOF {
				log.Debugf("reading from %v: %v", s.conn.RemoteAddr(), err)
			}
			return
		}
	}
}

func (s *AsyncStream) Read(p []byte) (int, error) {
	s.rwCond.L.Lock()
	defer s.rwCond.L.Unlock()
	if s.buf.Len() > 0 {
		n, _ := s.buf.Read(p)
		s.rwCond.Broadcast()
		return n, nil
	}
	if s.rErr != nil {
		return 0, s.rErr
	}
	return 0, ErrWouldBlock
}

func (s *AsyncStream) Write(p []byte) (int, error) {
	s.valve.txWait(len(p))
	n, err := s.conn.Write(p)
	s.valve.AddTx(int64(n))
	return n, err
}

func (s *AsyncStream) Ready() <-chan struct{} { return s.ready }

func (s *AsyncStream) Close() error {
	s.rwCond.L.Lock()
	s.closed = true
	s.rwCond.Broadcast()
	s.rwCond.L.Unlock()
	return s.conn.Close()
}

func (s *AsyncStream) Valve() *Valve        { return s.valve }
func (s *AsyncStream) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }
func (s *AsyncStream) LocalAddr() net.Addr  { return s.conn.LocalAddr() }
